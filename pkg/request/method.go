package request

import (
	"net/http"
)

// Method is an HTTP verb supported by the Spec.
type Method string

const (
	GET    Method = http.MethodGet
	POST   Method = http.MethodPost
	PUT    Method = http.MethodPut
	PATCH  Method = http.MethodPatch
	DELETE Method = http.MethodDelete
	HEAD   Method = http.MethodHead
)

// Methods lists all supported methods.
func Methods() []Method {
	return []Method{GET, POST, PUT, PATCH, DELETE, HEAD}
}

func (m Method) String() string {
	return string(m)
}

// Valid returns true if the method is one of the supported HTTP verbs.
func (m Method) Valid() bool {
	switch m {
	case GET, POST, PUT, PATCH, DELETE, HEAD:
		return true
	default:
		return false
	}
}
