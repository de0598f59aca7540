// Package decode unwraps a response body according to its Content-Encoding header.
package decode

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
)

// Decode returns a reader of the decoded body.
// Unknown and empty encodings are passed through unchanged.
// An empty body is empty regardless of the encoding, e.g. a HEAD or 204 response.
// Closing the returned reader closes the original body.
func Decode(body io.ReadCloser, contentEncoding string) (io.ReadCloser, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))
	switch encoding {
	case "gzip", "deflate", "br":
	default:
		return body, nil
	}

	buffered := bufio.NewReader(body)
	if _, err := buffered.Peek(1); errors.Is(err, io.EOF) {
		return readCloser{Reader: buffered, close: body.Close}, nil
	}

	switch encoding {
	case "gzip":
		v, err := gzip.NewReader(buffered)
		if err != nil {
			return nil, fmt.Errorf("cannot decode gzip: %w", err)
		}
		return readCloser{Reader: v, close: body.Close}, nil
	case "deflate":
		return readCloser{Reader: flate.NewReader(buffered), close: body.Close}, nil
	default:
		return readCloser{Reader: brotli.NewReader(buffered), close: body.Close}, nil
	}
}

type readCloser struct {
	io.Reader
	close func() error
}

func (r readCloser) Close() error {
	return r.close()
}
