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

// Package elastic implements engine.Client for Elasticsearch-compatible HTTP APIs.
//
// Requests go through a retrying transport (bounded retries with backoff on
// transport failures, 429 and 5xx) behind a token-bucket rate limiter. Each
// request is bounded by Config.Timeout. Indexing paths run through the
// configured interceptors and successful indexing publishes a
// BulkIndexCompleted event.
//
// # Usage
//
//	cfg := engine.NewConfig(engine.WithHost("http://localhost:9200"))
//	client, err := elastic.NewClient(cfg,
//	    elastic.WithInterceptors(engine.NewAugmenter(cfg.PipelineName)),
//	    elastic.WithPublisher(bus),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
package elastic
