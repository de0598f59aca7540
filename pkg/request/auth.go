package request

import (
	"fmt"
)

// AuthScheme selects the prefix of the Authorization header.
type AuthScheme int

const (
	BasicAuth AuthScheme = iota + 1
	BearerAuth
)

// Prefix returns the scheme name used in the Authorization header, e.g. "Basic ".
func (s AuthScheme) Prefix() string {
	switch s {
	case BasicAuth:
		return "Basic "
	case BearerAuth:
		return "Bearer "
	default:
		return ""
	}
}

func (s AuthScheme) String() string {
	switch s {
	case BasicAuth:
		return "basic"
	case BearerAuth:
		return "bearer"
	default:
		return fmt.Sprintf("AuthScheme(%d)", int(s))
	}
}
