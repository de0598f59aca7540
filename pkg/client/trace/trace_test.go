package trace_test

import (
	"net/http"
	"net/http/httptrace"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fllo/go-coline/pkg/client/trace"
	"github.com/fllo/go-coline/pkg/request"
)

func TestClientTrace_Compose(t *testing.T) {
	t.Parallel()

	var calls []string
	old := &trace.ClientTrace{
		HTTPRequestStart: func(*http.Request) { calls = append(calls, "old:start") },
		TransferDone:     func(request.Outcome) { calls = append(calls, "old:transfer") },
	}
	current := &trace.ClientTrace{
		HTTPRequestStart: func(*http.Request) { calls = append(calls, "new:start") },
		BodyRead:         func(int64, error) { calls = append(calls, "new:body") },
	}
	current.Compose(old)
	current.Compose(nil)

	current.HTTPRequestStart(nil)
	current.BodyRead(0, nil)
	current.TransferDone(&request.Success{StatusCode: 200})
	assert.Equal(t, []string{"old:start", "new:start", "new:body", "old:transfer"}, calls)
}

func TestClientTrace_Compose_SkipsNative(t *testing.T) {
	t.Parallel()

	var called bool
	old := &trace.ClientTrace{ClientTrace: httptrace.ClientTrace{GotFirstResponseByte: func() { called = true }}}
	current := &trace.ClientTrace{}
	current.Compose(old)

	// Native hooks are composed by the httptrace package
	assert.Nil(t, current.GotFirstResponseByte)
	assert.False(t, called)
}
