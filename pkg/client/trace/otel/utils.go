package otel

import (
	"net/http"

	"github.com/fllo/go-coline/pkg/request"
)

func isRedirection(r *http.Response) bool {
	return r != nil && r.StatusCode >= http.StatusMultipleChoices && r.StatusCode < http.StatusBadRequest
}

// outcomeKind returns "Success" or the failure kind.
func outcomeKind(o request.Outcome) string {
	if _, failure := request.Split(o); failure != nil {
		return failure.Kind.String()
	}
	return "Success"
}
