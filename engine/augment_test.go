package engine

import (
	"errors"
	"testing"

	"github.com/poiesic/entsync/core"
	"github.com/stretchr/testify/assert"
)

func TestAugmenter_Augment(t *testing.T) {
	a := NewAugmenter("wordpress_nlp_ingester")

	tests := []struct {
		path string
		want string
	}{
		{"/posts/_doc/1", "/posts/_doc/1?pipeline=wordpress_nlp_ingester"},
		{"/_bulk", "/_bulk?pipeline=wordpress_nlp_ingester"},
		{"/_bulk?refresh=true", "/_bulk?refresh=true&pipeline=wordpress_nlp_ingester"},
		{"/_bulk?", "/_bulk?pipeline=wordpress_nlp_ingester"},
		{"/_bulk?refresh=true&", "/_bulk?refresh=true&pipeline=wordpress_nlp_ingester"},
		{"/_bulk?pipeline=other", "/_bulk?pipeline=other"},
		{"/_bulk?refresh=true&pipeline=wordpress_nlp_ingester", "/_bulk?refresh=true&pipeline=wordpress_nlp_ingester"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Augment(tt.path))
		})
	}
}

func TestAugmenter_Idempotent(t *testing.T) {
	a := NewAugmenter("nlp")
	for _, path := range []string{"/_bulk", "/posts/_doc/9?refresh=wait_for", "/x?"} {
		once := a.Augment(path)
		assert.Equal(t, once, a.Augment(once), "path %s", path)
	}
}

func TestAugmenter_EmptyPipeline(t *testing.T) {
	assert.Equal(t, "/_bulk", NewAugmenter("").Augment("/_bulk"))
}

func TestAugmenter_IsInterceptor(t *testing.T) {
	var interceptor RequestInterceptor = NewAugmenter("p")
	assert.Equal(t, "/_bulk?pipeline=p", interceptor.InterceptPath("/_bulk"))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		errType string
		reason  string
		want    error
	}{
		{"conflict status", 409, "version_conflict_engine_exception", "", core.ErrConflict},
		{"mapping type change", 400, "illegal_argument_exception", "mapper [entities.dates] cannot be changed from type [text] to [keyword]", core.ErrConflict},
		{"mapper conflict", 400, "mapper_parsing_exception", "Mapping definition conflicts with existing", core.ErrConflict},
		{"bad request", 400, "parse_exception", "unknown processor type [opennlp]", core.ErrRejected},
		{"illegal argument", 400, "illegal_argument_exception", "unknown setting", core.ErrRejected},
		{"not found", 404, "index_not_found_exception", "no such index", core.ErrRejected},
		{"server error", 503, "", "", core.ErrUnreachable},
		{"request timeout", 408, "", "", core.ErrUnreachable},
		{"throttled", 429, "es_rejected_execution_exception", "rejected execution of coordinating operation", core.ErrUnreachable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.status, tt.errType, tt.reason))
		})
	}
}

func TestRequestError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &RequestError{Kind: core.ErrUnreachable, Method: "PUT", Path: "/_ingest/pipeline/p", Cause: cause}

	assert.ErrorIs(t, err, core.ErrUnreachable)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, core.ErrRejected)
	assert.Contains(t, err.Error(), "connection refused")

	err = &RequestError{Kind: core.ErrRejected, Method: "PUT", Path: "/posts/_mapping", StatusCode: 400, Type: "parse_exception", Reason: "bad"}
	assert.Equal(t, "PUT /posts/_mapping: "+core.ErrRejected.Error()+" (status 400): parse_exception: bad", err.Error())
}
