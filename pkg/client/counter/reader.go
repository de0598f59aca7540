// Package counter provides a response body wrapper that counts bytes drained from it.
package counter

import (
	"errors"
	"io"
	"sync"
)

// OnClose is called once, when the body is closed, with the number of bytes read
// and the first error that occurred, if any.
type OnClose func(bytes int64, err error)

// ReadCloser wraps a response body to count bytes read from it.
type ReadCloser struct {
	wrapped io.ReadCloser
	onClose OnClose
	once    sync.Once
	bytes   int64
	readErr error
}

func NewReadCloser(wrapped io.ReadCloser, onClose OnClose) *ReadCloser {
	return &ReadCloser{wrapped: wrapped, onClose: onClose}
}

// Bytes returns number of bytes read so far.
func (r *ReadCloser) Bytes() int64 {
	return r.bytes
}

// Err returns the last read error, io.EOF is not an error.
func (r *ReadCloser) Err() error {
	if errors.Is(r.readErr, io.EOF) {
		return nil
	}
	return r.readErr
}

func (r *ReadCloser) Read(b []byte) (int, error) {
	n, err := r.wrapped.Read(b)
	r.bytes += int64(n)
	if err != nil {
		r.readErr = err
	}
	return n, err
}

func (r *ReadCloser) Close() error {
	closeErr := r.wrapped.Close()
	r.once.Do(func() {
		if r.onClose == nil {
			return
		}
		// Read error is reported before close error, it is usually more useful
		err := r.Err()
		if err == nil {
			err = closeErr
		}
		r.onClose(r.bytes, err)
	})
	return closeErr
}
