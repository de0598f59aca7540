package trace

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"sync/atomic"
	"time"

	"github.com/fllo/go-coline/pkg/request"
)

type logTrace struct {
	ClientTrace
	wr io.Writer
}

// LogTracer writes one line for each stage of a transfer.
func LogTracer(wr io.Writer) Factory {
	var idGenerator uint64
	return func(ctx context.Context, spec request.Spec) (context.Context, *ClientTrace) {
		transferID := atomic.AddUint64(&idGenerator, 1)

		var connStartTime time.Time
		var startTime time.Time
		var doneTime time.Time
		var statusCode int

		t := &logTrace{wr: wr}
		t.ConnectStart = func(network, addr string) {
			connStartTime = time.Now()
		}
		t.GotConn = func(info httptrace.GotConnInfo) {
			var infoStr string
			if info.Reused {
				infoStr = "reused conn"
			} else {
				infoStr = fmt.Sprintf("new conn | %s", time.Since(connStartTime))
			}
			t.log(transferID, fmt.Sprintf(`CONN  %s | %s`, spec, infoStr))
		}
		t.HTTPRequestStart = func(r *http.Request) {
			startTime = time.Now()
			t.log(transferID, fmt.Sprintf(`START %s "%s"`, r.Method, r.URL.String()))
		}
		t.HTTPRequestDone = func(r *http.Response, err error) {
			doneTime = time.Now()
			var errorStr string
			if err == nil {
				statusCode = r.StatusCode
			} else {
				errorStr = fmt.Sprintf(" | error=%s", err)
			}
			t.log(transferID, fmt.Sprintf(`DONE  %s | %d | %s%s`, spec, statusCode, doneTime.Sub(startTime).String(), errorStr))
		}
		t.BodyRead = func(bytes int64, err error) {
			var errorStr string
			if err != nil {
				errorStr = fmt.Sprintf(" | error=%s", err)
			}
			t.log(transferID, fmt.Sprintf(`BODY  %s | %dB | %s%s`, spec, bytes, time.Since(doneTime).String(), errorStr))
		}
		t.TransferDone = func(outcome request.Outcome) {
			if res, failure := request.Split(outcome); failure != nil {
				t.log(transferID, fmt.Sprintf(`FAIL  %s | %s`, spec, failure.Kind))
			} else {
				t.log(transferID, fmt.Sprintf(`OK    %s | %d`, spec, res.StatusCode))
			}
		}
		return ctx, &t.ClientTrace
	}
}

func (t *logTrace) log(transferID uint64, a ...any) {
	a = append([]any{fmt.Sprintf("HTTP_TRANSFER[%04d]", transferID)}, a...)
	_, _ = fmt.Fprintln(t.wr, a...)
}
