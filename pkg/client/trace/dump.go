package trace

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"os"
	"strings"
	"time"

	"github.com/fllo/go-coline/pkg/request"
)

const dumpTraceMaxLength = 2000

type dumpTrace struct {
	ClientTrace
	wr io.Writer
}

// DumpTracer dumps HTTP request and response to a writer.
// Output may contain unmasked tokens, do not use it in production!
func DumpTracer(wr io.Writer) Factory {
	return func(ctx context.Context, spec request.Spec) (context.Context, *ClientTrace) {
		var requestDump []byte
		var startTime, headersTime time.Time

		t := &dumpTrace{wr: wr}
		t.HTTPRequestStart = func(r *http.Request) {
			startTime = time.Now()
			requestDump, _ = httputil.DumpRequestOut(r, true)
		}
		t.HTTPRequestDone = func(r *http.Response, err error) {
			headersTime = time.Now()

			// Dump request
			t.log()
			t.log(">>>>>> HTTP DUMP")
			t.dump(string(requestDump))

			// Dump response headers, the body is dumped by the TransferDone hook
			t.log("------")
			if err != nil {
				t.log("ERROR: ", err)
			} else if v, err := httputil.DumpResponse(r, false); err == nil {
				t.log(strings.TrimSpace(string(v)))
			} else {
				t.log("cannot dump response headers: ", err)
			}
			t.log("<<<<<< HTTP DUMP END")
		}
		t.TransferDone = func(outcome request.Outcome) {
			t.log()
			t.log(">>>>>> HTTP TRANSFER DONE", "| ", spec.String(), outcome.Status(), "| HEADERS AT:", headersTime.Sub(startTime), "| DONE AT:", time.Since(startTime))
			switch v := outcome.(type) {
			case *request.Success:
				t.dump(v.Body)
			case *request.Failure:
				t.log("FAILURE: ", v.Error())
			}
			t.log("<<<<<< HTTP TRANSFER DONE END")
		}
		return ctx, &t.ClientTrace
	}
}

func (t *dumpTrace) dump(body string) {
	body = strings.TrimSpace(body)
	if len(body) > dumpTraceMaxLength && os.Getenv("HTTP_DUMP_TRACE_FULL") != "true" { //nolint:forbidigo
		t.log(body[:dumpTraceMaxLength])
		t.log("... (set env HTTP_DUMP_TRACE_FULL=true to see full output)")
	} else {
		t.log(body)
	}
}

func (t *dumpTrace) log(a ...any) {
	_, _ = fmt.Fprintln(t.wr, a...)
}
