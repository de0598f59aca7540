package otel

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fllo/go-coline/pkg/request"
)

func TestIsRedirection(t *testing.T) {
	t.Parallel()
	assert.False(t, isRedirection(nil))
	assert.False(t, isRedirection(&http.Response{}))
	assert.False(t, isRedirection(&http.Response{StatusCode: http.StatusOK}))
	assert.False(t, isRedirection(&http.Response{StatusCode: http.StatusBadRequest}))
	assert.True(t, isRedirection(&http.Response{StatusCode: http.StatusTemporaryRedirect}))
}

func TestOutcomeKind(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Success", outcomeKind(&request.Success{StatusCode: 200}))
	assert.Equal(t, "ServerError", outcomeKind(&request.Failure{StatusCode: 500, Kind: request.ServerError}))
	assert.Equal(t, "MalformedURL", outcomeKind(&request.Failure{Kind: request.MalformedURL}))
}

func TestRedactURL(t *testing.T) {
	t.Parallel()
	cfg := newConfig([]Option{WithRedactedQueryParam("Token")})
	assert.Equal(t, "https://example.com/path?foo=bar&token=****", redactURL(cfg, "https://example.com/path?token=secret&foo=bar"))
	assert.Equal(t, "http//bad", redactURL(cfg, "http//bad"))
}
