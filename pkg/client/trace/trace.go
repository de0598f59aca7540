// Package trace extends the httptrace.ClientTrace and adds hooks for each stage of a transfer.
// A custom ClientTrace definition can be registered in the client.Client by the WithTrace or AndTrace methods.
package trace

import (
	"context"
	"net/http"
	"net/http/httptrace"
	"reflect"

	"github.com/fllo/go-coline/pkg/request"
)

// Factory creates ClientTrace hooks for a transfer.
type Factory func(ctx context.Context, spec request.Spec) (context.Context, *ClientTrace)

// ClientTrace is a set of hooks to run at various stages of a transfer.
type ClientTrace struct {
	httptrace.ClientTrace // native, low level trace
	// HTTPRequestStart is called when the request begins. It includes redirects.
	HTTPRequestStart func(request *http.Request)
	// HTTPRequestDone is called when the response headers are received or the request failed. It includes redirects.
	HTTPRequestDone func(response *http.Response, err error)
	// BodyRead is called when the response body has been drained, err is nil on success.
	BodyRead func(bytes int64, err error)
	// TransferDone is called with the classified outcome, it is the last hook called.
	TransferDone func(outcome request.Outcome)
}

// Compose modifies t such that it respects the previously-registered hooks in old.
// Copy of httptrace.compose.
func (t *ClientTrace) Compose(old *ClientTrace) {
	if old == nil {
		return
	}
	tv := reflect.ValueOf(t).Elem()
	ov := reflect.ValueOf(old).Elem()
	structType := tv.Type()
	for i := 0; i < structType.NumField(); i++ {
		tf := tv.Field(i)
		hookType := tf.Type()
		if hookType.Kind() != reflect.Func {
			continue
		}
		of := ov.Field(i)
		if of.IsNil() {
			continue
		}
		if tf.IsNil() {
			tf.Set(of)
			continue
		}

		// Make a copy of tf for tf to call. (Otherwise it
		// creates a recursive call cycle and stack overflows)
		tfCopy := reflect.ValueOf(tf.Interface())

		// We need to call both tf and of in some order.
		newFunc := reflect.MakeFunc(hookType, func(args []reflect.Value) []reflect.Value {
			of.Call(args)
			return tfCopy.Call(args)
		})
		tv.Field(i).Set(newFunc)
	}
}
