package client

import (
	"net"
	"net/http"
	"time"
)

// ConnectTimeout specifies default maximum connection initialization time.
const ConnectTimeout = 7 * time.Second

// ReadTimeout specifies default amount of time to wait for response headers and for each read of the body.
const ReadTimeout = 5 * time.Second

// DefaultTransport returns a transport with default timeouts.
//
// Keep-alives are disabled, each transfer opens its own connection.
func DefaultTransport() http.RoundTripper {
	return newTransport(ConnectTimeout, ReadTimeout)
}

func newTransport(connectTimeout, readTimeout time.Duration) *http.Transport {
	dialer := Dialer(connectTimeout)
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: readTimeout,
		DisableKeepAlives:     true,
		DisableCompression:    true, // Content-Encoding is decoded by the decode package
	}
}

// Dialer returns a dialer with the connect timeout.
func Dialer(connectTimeout time.Duration) *net.Dialer {
	return &net.Dialer{Timeout: connectTimeout}
}
