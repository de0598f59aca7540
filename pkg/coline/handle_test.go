package coline_test

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fllo/go-coline/pkg/client"
	. "github.com/fllo/go-coline/pkg/coline"
	"github.com/fllo/go-coline/pkg/loop"
	"github.com/fllo/go-coline/pkg/request"
)

const testTimeout = 5 * time.Second

func newMockedLine(t *testing.T, opts ...Option) (*Line, *httpmock.MockTransport) {
	t.Helper()
	c, transport := client.NewMockedClient()
	return New(append([]Option{WithClient(c)}, opts...)...), transport
}

// receive waits for one outcome.
func receive(t *testing.T, ch <-chan request.Outcome) request.Outcome {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(testTimeout):
		require.FailNow(t, "timeout")
		return nil
	}
}

func waitFinished(t *testing.T, h *Handle) {
	t.Helper()
	assert.Eventually(t, func() bool {
		return h.State() == StateFinished
	}, testTimeout, time.Millisecond)
}

func TestHandle_Exec_Success(t *testing.T) {
	t.Parallel()

	line, transport := newMockedLine(t)
	transport.RegisterResponder("GET", `https://example.com/users/1`, httpmock.NewStringResponder(200, `{"id":1}`))

	owner := loop.New()
	defer owner.Close()

	results := make(chan request.Outcome, 10)
	h := line.Init(owner).
		URL(request.GET, "https://example.com/users/1").
		OnResult(func(outcome request.Outcome) { results <- outcome })
	assert.Equal(t, StateCreated, h.State())
	assert.NotEmpty(t, h.ID())

	require.NoError(t, h.Exec())

	success, failure := request.Split(receive(t, results))
	require.Nil(t, failure)
	assert.Equal(t, 200, success.StatusCode)
	assert.Equal(t, `{"id":1}`, success.Body)
	waitFinished(t, h)

	// Exactly once
	owner.Close()
	<-owner.Done()
	assert.Empty(t, results)
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestHandle_Exec_ServerError(t *testing.T) {
	t.Parallel()

	line, transport := newMockedLine(t)
	transport.RegisterResponder("GET", `https://example.com/missing`, httpmock.NewStringResponder(404, "not found"))

	results := make(chan request.Outcome, 10)
	h := line.Init(loop.Inline(context.Background())).
		URL(request.GET, "https://example.com/missing").
		OnResult(func(outcome request.Outcome) { results <- outcome })
	require.NoError(t, h.Exec())

	_, failure := request.Split(receive(t, results))
	require.NotNil(t, failure)
	assert.Equal(t, request.ServerError, failure.Kind)
	assert.Equal(t, 404, failure.StatusCode)
	assert.Equal(t, "not found", failure.Message)
	waitFinished(t, h)
}

func TestHandle_Exec_MalformedURL(t *testing.T) {
	t.Parallel()

	line, _ := newMockedLine(t)
	results := make(chan request.Outcome, 10)
	h := line.Init(loop.Inline(context.Background())).
		URL(request.POST, "http//bad").
		With(map[string]any{"a": "1"}).
		OnResult(func(outcome request.Outcome) { results <- outcome })
	require.NoError(t, h.Exec())

	_, failure := request.Split(receive(t, results))
	require.NotNil(t, failure)
	assert.Equal(t, request.MalformedURL, failure.Kind)
}

func TestHandle_Exec_DeadOwner(t *testing.T) {
	t.Parallel()

	line, transport := newMockedLine(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	transport.RegisterResponder("GET", `https://example.com`, func(req *http.Request) (*http.Response, error) {
		close(entered)
		<-release
		return httpmock.NewStringResponse(200, "OK"), nil
	})

	owner := loop.New()
	defer owner.Close()
	token := loop.NewToken()

	var calls atomic.Int32
	h := line.Init(token.Bind(owner)).
		URL(request.GET, "https://example.com").
		OnResult(func(request.Outcome) { calls.Add(1) })
	require.NoError(t, h.Exec())

	// Owner is discarded while the request is running
	<-entered
	token.Discard()
	close(release)

	waitFinished(t, h)
	assert.Equal(t, int32(0), calls.Load())
}

func TestHandle_Exec_WithoutCallback(t *testing.T) {
	t.Parallel()

	line, transport := newMockedLine(t)
	transport.RegisterResponder("GET", `https://example.com`, httpmock.NewStringResponder(200, "OK"))

	h := line.Init(loop.Inline(context.Background())).URL(request.GET, "https://example.com")
	require.NoError(t, h.Exec())
	waitFinished(t, h)
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestHandle_FailFast(t *testing.T) {
	t.Parallel()

	line, transport := newMockedLine(t)
	owner := loop.Inline(context.Background())

	// URL not set
	err := line.Init(owner).Exec()
	assert.ErrorIs(t, err, request.ErrMethodNotSet)
	err = line.Init(owner).URL(request.GET, "").Enqueue()
	assert.ErrorIs(t, err, request.ErrURLNotSet)

	// Unknown method
	err = line.Init(owner).URL("TRACE", "https://example.com").Exec()
	assert.ErrorIs(t, err, request.ErrInvalidMethod)

	// Invalid header
	err = line.Init(owner).URL(request.GET, "https://example.com").Head(map[string]string{"Bad Header": "v"}).Exec()
	assert.ErrorIs(t, err, request.ErrInvalidHeader)

	// Invalid handle can be fixed
	h := line.Init(owner)
	require.Error(t, h.Exec())
	assert.Equal(t, StateCreated, h.State())
	transport.RegisterResponder("GET", `https://example.com`, httpmock.NewStringResponder(200, "OK"))
	require.NoError(t, h.URL(request.GET, "https://example.com").Exec())

	// Second start
	assert.ErrorIs(t, h.Exec(), ErrAlreadyStarted)
	assert.ErrorIs(t, h.Enqueue(), ErrAlreadyStarted)
	waitFinished(t, h)
	assert.ErrorIs(t, h.Exec(), ErrAlreadyStarted)
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestHandle_Builder(t *testing.T) {
	t.Parallel()

	logger, hook := test.NewNullLogger()
	line, _ := newMockedLine(t, WithLogger(logger))

	h := line.Init(loop.Inline(context.Background())).
		URL(request.PUT, "https://example.com/users/1").
		With(map[string]any{"name": "Jon"}).
		Head(map[string]string{"X-Custom": "value"}).
		Auth(request.BasicAuth, "dXNlcjpwYXNz")

	spec := h.Spec()
	assert.Equal(t, request.PUT, spec.Method())
	assert.Equal(t, "https://example.com/users/1", spec.URL())
	assert.Equal(t, map[string]any{"name": "Jon"}, spec.Fields())
	assert.Equal(t, map[string]string{"X-Custom": "value", "Authorization": "Basic dXNlcjpwYXNz"}, spec.Headers())
	assert.Empty(t, hook.AllEntries())

	// Empty maps are logged, the request proceeds
	h.With(map[string]any{}).Head(nil)
	require.Len(t, hook.AllEntries(), 2)
	assert.Equal(t, logrus.InfoLevel, hook.AllEntries()[0].Level)
	assert.Equal(t, `please check the values sent in "With"`, hook.AllEntries()[0].Message)
	assert.Equal(t, `please check the properties sent in "Head"`, hook.AllEntries()[1].Message)
	assert.Equal(t, h.ID(), hook.AllEntries()[1].Data["request_id"])
	assert.False(t, h.Spec().HasBody())
}

func TestHandle_WithPairs(t *testing.T) {
	t.Parallel()

	logger, hook := test.NewNullLogger()
	line, _ := newMockedLine(t, WithLogger(logger))

	h := line.Init(loop.Inline(context.Background())).WithPairs("a", 1, "b", true)
	assert.Equal(t, map[string]any{"a": 1, "b": true}, h.Spec().Fields())
	assert.Empty(t, hook.AllEntries())

	// Dangling key
	h.WithPairs("c", "3", "d")
	assert.Equal(t, map[string]any{"a": 1, "b": true, "c": "3"}, h.Spec().Fields())
	assert.Equal(t, `please check the values sent in "WithPairs"`, hook.LastEntry().Message)
}

func TestHandle_BuilderAfterStart(t *testing.T) {
	t.Parallel()

	logger, hook := test.NewNullLogger()
	line, transport := newMockedLine(t, WithLogger(logger))
	transport.RegisterResponder("GET", `https://example.com`, httpmock.NewStringResponder(200, "OK"))

	h := line.Init(loop.Inline(context.Background())).URL(request.GET, "https://example.com")
	require.NoError(t, h.Enqueue())
	h.URL(request.POST, "https://example.com/other")

	assert.Equal(t, request.GET, h.Spec().Method())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, `"URL" ignored: request has already been started`, hook.LastEntry().Message)
}

func TestHandle_Cancel(t *testing.T) {
	t.Parallel()

	logger, hook := test.NewNullLogger()
	line, transport := newMockedLine(t, WithLogger(logger))
	entered := make(chan struct{})
	transport.RegisterResponder("GET", `https://example.com`, func(req *http.Request) (*http.Response, error) {
		close(entered)
		<-req.Context().Done()
		return nil, req.Context().Err()
	})

	results := make(chan request.Outcome, 10)
	h := line.Init(loop.Inline(context.Background())).
		URL(request.GET, "https://example.com").
		OnResult(func(outcome request.Outcome) { results <- outcome })

	// Not running yet, logged only
	h.Cancel()
	assert.Equal(t, `cannot cancel request in state "created"`, hook.LastEntry().Message)

	// The callback still fires
	h2 := line.Init(loop.Inline(context.Background())).
		URL(request.GET, "https://example.com").
		OnResult(func(outcome request.Outcome) { results <- outcome })
	require.NoError(t, h2.Exec())
	<-entered
	h2.Cancel()

	_, failure := request.Split(receive(t, results))
	require.NotNil(t, failure)
	assert.Equal(t, request.ConnectionError, failure.Kind)
	assert.Contains(t, failure.Detail, "canceled")
	waitFinished(t, h2)

	// Finished, logged only
	h2.Cancel()
	assert.Equal(t, `cannot cancel request in state "finished"`, hook.LastEntry().Message)
}

func TestHandle_CancelBeforeStart(t *testing.T) {
	t.Parallel()

	line, transport := newMockedLine(t)
	transport.RegisterResponder("GET", `https://example.com`, httpmock.NewStringResponder(200, "OK"))

	results := make(chan request.Outcome, 1)
	h := line.Init(loop.Inline(context.Background())).
		URL(request.GET, "https://example.com").
		OnResult(func(outcome request.Outcome) { results <- outcome })

	// Cancel of a created handle doesn't affect the later execution
	h.Cancel()
	require.NoError(t, h.Exec())

	success, failure := request.Split(receive(t, results))
	require.Nil(t, failure)
	assert.Equal(t, "OK", success.Body)
}

func TestState_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "created", StateCreated.String())
	assert.Equal(t, "queued", StateQueued.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "finished", StateFinished.String())
	assert.Equal(t, "State(10)", State(10).String())
}
