package request

import (
	"fmt"
	"net/http"
)

// Kind classifies a Failure.
type Kind int

const (
	// MalformedURL - the URL cannot be parsed or is not an absolute http(s) URL.
	MalformedURL Kind = iota + 1
	// ConnectionError - connection could not be opened or the request could not be written.
	ConnectionError
	// EmptyResponseStream - the response has no body stream.
	EmptyResponseStream
	// ReadError - the response body could not be read.
	ReadError
	// ServerError - the response status is outside 200-299.
	ServerError
)

// NoStatus is the status of a Failure that never obtained a response.
const NoStatus = 0

// DefaultServerErrorMessage is used when the server returned an error status with an empty body.
const DefaultServerErrorMessage = "an error occurred when trying to contact the server"

func (k Kind) String() string {
	switch k {
	case MalformedURL:
		return "MalformedURL"
	case ConnectionError:
		return "ConnectionError"
	case EmptyResponseStream:
		return "EmptyResponseStream"
	case ReadError:
		return "ReadError"
	case ServerError:
		return "ServerError"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Outcome is the result of one transfer: *Success or *Failure, never both, never neither.
type Outcome interface {
	// Status returns HTTP status code, NoStatus if no response has been received.
	Status() int
	// IsSuccess returns true for *Success.
	IsSuccess() bool
	outcome()
}

// Success is a transfer completed with `code >= 200 and <= 299`.
type Success struct {
	StatusCode int
	// Body is the raw response body, byte-for-byte.
	Body string
}

// Failure is a transfer that did not produce a Success.
type Failure struct {
	StatusCode int
	Kind       Kind
	Message    string
	// Detail is the underlying error, if any.
	Detail string
}

// Split returns exactly one non-nil value.
func Split(o Outcome) (*Success, *Failure) {
	switch v := o.(type) {
	case *Success:
		return v, nil
	case *Failure:
		return nil, v
	default:
		panic(fmt.Errorf("unexpected outcome type %T", o))
	}
}

// IsSuccessStatus returns true if HTTP status `code >= 200 and <= 299`.
func IsSuccessStatus(code int) bool {
	return code >= 200 && code <= 299
}

func (s *Success) Status() int {
	return s.StatusCode
}

func (s *Success) IsSuccess() bool {
	return true
}

func (s *Success) String() string {
	return fmt.Sprintf("%d %s", s.StatusCode, http.StatusText(s.StatusCode))
}

func (*Success) outcome() {}

func (f *Failure) Status() int {
	return f.StatusCode
}

func (f *Failure) IsSuccess() bool {
	return false
}

func (f *Failure) Error() string {
	msg := f.Kind.String()
	if f.StatusCode != NoStatus {
		msg += fmt.Sprintf(" %d", f.StatusCode)
	}
	msg += ": " + f.Message
	if f.Detail != "" {
		msg += ": " + f.Detail
	}
	return msg
}

func (*Failure) outcome() {}

// NewFailure creates a Failure, err is optional and is stored as Detail.
func NewFailure(kind Kind, status int, message string, err error) *Failure {
	f := &Failure{StatusCode: status, Kind: kind, Message: message}
	if err != nil {
		f.Detail = err.Error()
	}
	return f
}
