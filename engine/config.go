// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package engine

import (
	"errors"
	"strings"
	"time"
)

// Config holds connection settings for the search engine.
type Config struct {
	// Host is the base URL of the engine's HTTP interface.
	// Example: "http://localhost:9200"
	Host string

	// Index is the document index holding host content.
	// Default: "posts"
	Index string

	// PipelineName is the ingest pipeline appended to indexing requests.
	// Default: "wordpress_nlp_ingester"
	PipelineName string

	// Timeout bounds each request, retries included.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt for
	// transport failures and 5xx/429 replies.
	MaxRetries int

	// RetryWaitMin and RetryWaitMax bound the backoff between retries.
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	// RequestsPerSecond limits the request rate. Zero or negative disables limiting.
	RequestsPerSecond float64
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithHost sets the engine base URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.Host = host
	}
}

// WithIndex sets the document index.
func WithIndex(index string) ConfigOption {
	return func(c *Config) {
		c.Index = index
	}
}

// WithPipelineName sets the ingest pipeline name.
func WithPipelineName(name string) ConfigOption {
	return func(c *Config) {
		c.PipelineName = name
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithRetries sets the retry count and backoff bounds.
func WithRetries(max int, waitMin, waitMax time.Duration) ConfigOption {
	return func(c *Config) {
		c.MaxRetries = max
		c.RetryWaitMin = waitMin
		c.RetryWaitMax = waitMax
	}
}

// WithRequestsPerSecond sets the request rate limit.
func WithRequestsPerSecond(rps float64) ConfigOption {
	return func(c *Config) {
		c.RequestsPerSecond = rps
	}
}

// DefaultConfig returns a Config for a local single-node engine.
func DefaultConfig() *Config {
	return &Config{
		Host:              "http://localhost:9200",
		Index:             "posts",
		PipelineName:      "wordpress_nlp_ingester",
		Timeout:           10 * time.Second,
		MaxRetries:        3,
		RetryWaitMin:      100 * time.Millisecond,
		RetryWaitMax:      2 * time.Second,
		RequestsPerSecond: 50,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("https://search.internal:9200"),
//	    WithIndex("articles"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize puts the configuration in canonical form: the host gets a
// scheme when it has none and loses trailing slashes.
func (c *Config) Normalize() {
	c.Host = strings.TrimSpace(c.Host)
	if c.Host != "" && !strings.Contains(c.Host, "://") {
		c.Host = "http://" + c.Host
	}
	c.Host = strings.TrimRight(c.Host, "/")
	c.Index = strings.TrimSpace(c.Index)
	c.PipelineName = strings.TrimSpace(c.PipelineName)
}

// Validate checks that the configuration is complete.
// It normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.Host == "" {
		return errors.New("engine config: Host is required")
	}
	if c.Index == "" {
		return errors.New("engine config: Index is required")
	}
	if strings.ContainsAny(c.Index, "/?&,") {
		return errors.New("engine config: Index contains invalid characters")
	}
	if c.PipelineName == "" {
		return errors.New("engine config: PipelineName is required")
	}
	if c.Timeout <= 0 {
		return errors.New("engine config: Timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return errors.New("engine config: MaxRetries must not be negative")
	}
	if c.RetryWaitMin > c.RetryWaitMax {
		return errors.New("engine config: RetryWaitMin exceeds RetryWaitMax")
	}
	return nil
}
