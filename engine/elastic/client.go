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

package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/poiesic/entsync/core"
	"github.com/poiesic/entsync/engine"
)

const (
	contentJSON   = "application/json"
	contentNDJSON = "application/x-ndjson"
)

// Client implements engine.Client against an Elasticsearch-compatible HTTP API.
type Client struct {
	config       *engine.Config
	http         *retryablehttp.Client
	limiter      *rate.Limiter
	interceptors []engine.RequestInterceptor
	publisher    engine.Publisher
	logger       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithInterceptors adds interceptors applied, in order, to indexing request paths.
func WithInterceptors(interceptors ...engine.RequestInterceptor) Option {
	return func(c *Client) {
		c.interceptors = append(c.interceptors, interceptors...)
	}
}

// WithPublisher sets the receiver of indexing completion events.
func WithPublisher(p engine.Publisher) Option {
	return func(c *Client) {
		c.publisher = p
	}
}

// WithLogger sets the logger. The retry transport logs through it as well.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http.HTTPClient = hc
	}
}

// newClient is an internal constructor that returns the concrete type.
func newClient(config *engine.Config, opts ...Option) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = config.MaxRetries
	rc.RetryWaitMin = config.RetryWaitMin
	rc.RetryWaitMax = config.RetryWaitMax
	// Hand the final response back so engine error bodies can be classified.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	limit := rate.Inf
	burst := 1
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
		burst = max(1, int(config.RequestsPerSecond))
	}

	c := &Client{
		config:  config,
		http:    rc,
		limiter: rate.NewLimiter(limit, burst),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "elastic-client")
	rc.Logger = c.logger
	return c, nil
}

// NewClient creates a client for the engine described by config.
// The config is validated and normalized before use.
//
// Returns engine.Client interface to enforce abstraction.
func NewClient(config *engine.Config, opts ...Option) (engine.Client, error) {
	return newClient(config, opts...)
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.logger.Debug("closing engine client")
	if c.http.HTTPClient != nil {
		c.http.HTTPClient.CloseIdleConnections()
	}
	return nil
}

// PutPipeline creates or replaces the ingest pipeline described by desc.
func (c *Client) PutPipeline(ctx context.Context, desc core.PipelineDescriptor) error {
	processors := make([]map[string]any, 0, len(desc.EffectiveProcessors()))
	for _, p := range desc.EffectiveProcessors() {
		def := make(map[string]any, len(p.Options)+1)
		for k, v := range p.Options {
			def[k] = v
		}
		def["field"] = p.Field
		processors = append(processors, map[string]any{p.Type: def})
	}

	body := map[string]any{
		"description": desc.Description,
		"processors":  processors,
	}
	_, err := c.doJSON(ctx, http.MethodPut, "/_ingest/pipeline/"+url.PathEscape(desc.Name), body)
	if err != nil {
		return err
	}
	c.logger.Info("ingest pipeline stored", "pipeline", desc.Name, "processors", len(processors))
	return nil
}

// PutMapping adds the fields of desc to the index mapping.
func (c *Client) PutMapping(ctx context.Context, desc core.MappingDescriptor) error {
	properties := make(map[string]any, len(desc.Fields))
	for field, m := range desc.Fields {
		def := map[string]any{"type": m.Type}
		if m.CopyTo != "" {
			def["copy_to"] = m.CopyTo
		}
		properties[field] = def
	}

	body := map[string]any{"properties": properties}
	_, err := c.doJSON(ctx, http.MethodPut, "/"+url.PathEscape(desc.Index)+"/_mapping", body)
	if err != nil {
		return err
	}
	c.logger.Info("index mapping updated", "index", desc.Index, "fields", len(properties))
	return nil
}

// MultiGet fetches the selected source fields of ids in one request.
func (c *Client) MultiGet(ctx context.Context, index string, ids []core.DocumentID, fields []string) ([]engine.Hit, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	path := "/" + url.PathEscape(index) + "/_mget"
	if len(fields) > 0 {
		path += "?_source=" + url.QueryEscape(strings.Join(fields, ","))
	}

	body, err := c.doJSON(ctx, http.MethodPost, path, map[string]any{"ids": ids})
	if err != nil {
		return nil, err
	}

	docs := gjson.GetBytes(body, "docs")
	if !docs.IsArray() {
		return nil, c.malformed(http.MethodPost, path, "response has no docs array")
	}

	hits := make([]engine.Hit, 0, len(ids))
	for _, doc := range docs.Array() {
		hit := engine.Hit{
			ID:    core.DocumentID(doc.Get("_id").String()),
			Found: doc.Get("found").Bool(),
		}
		if source := doc.Get("_source"); source.Exists() {
			hit.Source = []byte(source.Raw)
		}
		hits = append(hits, hit)
	}
	c.logger.Debug("multi-get complete", "index", index, "requested", len(ids), "returned", len(hits))
	return hits, nil
}

// Index stores one document and publishes a completion event for it.
func (c *Client) Index(ctx context.Context, index string, doc engine.Document) error {
	path := c.intercept("/" + url.PathEscape(index) + "/_doc/" + url.PathEscape(string(doc.ID)))
	if _, err := c.doJSON(ctx, http.MethodPut, path, doc.Source); err != nil {
		return err
	}
	c.publish(ctx, []core.DocumentID{doc.ID})
	return nil
}

// BulkIndex stores docs in one request and publishes a completion event for
// the accepted documents. Per-item rejections are reported as a
// core.ErrRejected RequestError after the accepted documents are published.
func (c *Client) BulkIndex(ctx context.Context, index string, docs []engine.Document) (core.DocumentBatch, error) {
	if len(docs) == 0 {
		return core.DocumentBatch{}, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		action := map[string]any{"index": map[string]any{"_index": index, "_id": doc.ID}}
		if err := enc.Encode(action); err != nil {
			return core.DocumentBatch{}, errors.Wrapf(err, "encode bulk action for %s", doc.ID)
		}
		if err := enc.Encode(doc.Source); err != nil {
			return core.DocumentBatch{}, errors.Wrapf(err, "encode bulk source for %s", doc.ID)
		}
	}

	path := c.intercept("/_bulk")
	body, err := c.do(ctx, http.MethodPost, path, contentNDJSON, buf.Bytes())
	if err != nil {
		return core.DocumentBatch{}, err
	}

	items := gjson.GetBytes(body, "items")
	if !items.IsArray() {
		return core.DocumentBatch{}, c.malformed(http.MethodPost, path, "response has no items array")
	}

	accepted := make([]core.DocumentID, 0, len(docs))
	var rejected []string
	for _, item := range items.Array() {
		result := item.Get("index")
		id := result.Get("_id").String()
		if status := result.Get("status").Int(); status >= 300 {
			rejected = append(rejected, id)
			c.logger.Warn("bulk item rejected", "id", id, "status", status,
				"type", result.Get("error.type").String(), "reason", result.Get("error.reason").String())
			continue
		}
		accepted = append(accepted, core.DocumentID(id))
	}

	batch := c.publish(ctx, accepted)
	if len(rejected) > 0 {
		return batch, &engine.RequestError{
			Kind:       core.ErrRejected,
			Method:     http.MethodPost,
			Path:       path,
			StatusCode: http.StatusOK,
			Reason:     "rejected items: " + strings.Join(rejected, ","),
			Cause:      errors.Newf("%d of %d bulk items rejected", len(rejected), len(docs)),
		}
	}
	return batch, nil
}

func (c *Client) intercept(path string) string {
	for _, i := range c.interceptors {
		path = i.InterceptPath(path)
	}
	return path
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s %s body", method, path)
	}
	return c.do(ctx, method, path, contentJSON, data)
}

// do sends one request, retrying transport failures and 5xx replies, and
// returns the body of a 2xx reply.
func (c *Client) do(ctx context.Context, method, path, contentType string, payload []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.unreachable(method, path, errors.Wrap(err, "rate limiter"))
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.config.Host+path, payload)
	if err != nil {
		return nil, errors.Wrapf(err, "build %s %s", method, path)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", contentJSON)

	resp, err := c.http.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, c.unreachable(method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.unreachable(method, path, errors.Wrap(err, "read response body"))
	}

	if resp.StatusCode >= 300 {
		errType := gjson.GetBytes(body, "error.type").String()
		reason := gjson.GetBytes(body, "error.reason").String()
		if errType == "" && gjson.GetBytes(body, "error").Type == gjson.String {
			reason = gjson.GetBytes(body, "error").String()
		}
		kind := engine.Classify(resp.StatusCode, errType, reason)
		c.logger.Warn("engine request failed", "method", method, "path", path,
			"status", resp.StatusCode, "type", errType, "reason", reason)
		return nil, &engine.RequestError{
			Kind:       kind,
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Type:       errType,
			Reason:     reason,
			Cause: errors.WithDetailf(
				errors.Newf("engine replied %d", resp.StatusCode),
				"body: %s", truncate(body, 512)),
		}
	}

	if !gjson.ValidBytes(body) {
		return nil, c.malformed(method, path, "response is not valid JSON")
	}
	return body, nil
}

func (c *Client) unreachable(method, path string, err error) error {
	c.logger.Error("engine unreachable", "method", method, "path", path, "err", err)
	return &engine.RequestError{
		Kind:   core.ErrUnreachable,
		Method: method,
		Path:   path,
		Cause: errors.WithHintf(errors.Wrapf(err, "%s %s", method, path),
			"check that the search engine is reachable at %s", c.config.Host),
	}
}

func (c *Client) malformed(method, path, msg string) error {
	c.logger.Error("malformed engine response", "method", method, "path", path, "reason", msg)
	return &engine.RequestError{
		Kind:   core.ErrMalformed,
		Method: method,
		Path:   path,
		Cause:  errors.New(msg),
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
