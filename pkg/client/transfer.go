package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fllo/go-coline/pkg/client/counter"
	"github.com/fllo/go-coline/pkg/client/decode"
	"github.com/fllo/go-coline/pkg/client/trace"
	"github.com/fllo/go-coline/pkg/request"
)

// ErrReadTimeout is the cause of a ReadError, if the body read has been idle for longer than the read timeout.
var ErrReadTimeout = errors.New("read timeout")

// Transfer performs the HTTP exchange and classifies its outcome.
// It blocks until the body is drained, the context is canceled or a timeout occurs.
//
// The returned Outcome is never nil.
// An invalid spec, see request.Spec.Validate, is reported as a MalformedURL or ConnectionError Failure.
func (c Client) Transfer(ctx context.Context, spec request.Spec) (outcome request.Outcome) {
	// Method cannot be called on an empty value
	if c.transport == nil {
		panic(fmt.Errorf("client value is not initialized"))
	}

	logger := c.logger.WithFields(logrus.Fields{"method": spec.Method().String(), "url": spec.URL()})

	// Init trace
	var tc *trace.ClientTrace
	if c.traceFactory != nil {
		ctx, tc = c.traceFactory(ctx, spec)
		if tc != nil {
			ctx = httptrace.WithClientTrace(ctx, &tc.ClientTrace)
		}
	}
	if tc != nil && tc.TransferDone != nil {
		defer func() {
			tc.TransferDone(outcome)
		}()
	}

	// Validate
	if err := spec.Validate(); err != nil {
		logger.Errorf("invalid request: %s", err)
		if errors.Is(err, request.ErrURLNotSet) {
			return request.NewFailure(request.MalformedURL, request.NoStatus, "an error occurred when trying to get URL", err)
		}
		return request.NewFailure(request.ConnectionError, request.NoStatus, "error in http url connection", err)
	}

	// Parse URL
	logger.Debugf("URL: %s", spec.URL())
	reqURL, err := parseURL(spec.URL())
	if err != nil {
		logger.Errorf("error in route: %s", err)
		return request.NewFailure(request.MalformedURL, request.NoStatus, "an error occurred when trying to get URL", err)
	}

	// Cancel the transfer, if the body read is idle for too long
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	// Create request
	req, err := c.newRequest(ctx, spec, reqURL, logger)
	if err != nil {
		logger.Errorf("cannot create request: %s", err)
		return request.NewFailure(request.ConnectionError, request.NoStatus, "error in http url connection", err)
	}

	// Send request
	logger.Debug("do connection...")
	nativeClient := http.Client{Transport: roundTripper{trace: tc, wrapped: c.transport}}
	startedAt := time.Now()
	res, err := nativeClient.Do(req)
	if err != nil {
		err = handleSendError(startedAt, req, err)
		logger.Errorf("error in http url connection: %s", err)
		return request.NewFailure(request.ConnectionError, request.NoStatus, "error in http url connection", err)
	}
	logger.Debug("connection established")

	// Select stream
	status := res.StatusCode
	logger = logger.WithField("status", status)
	if status >= 200 && status < 400 {
		logger.Debugf("status response: %d, reading primary stream", status)
	} else {
		logger.Debugf("status response: %d, reading error stream", status)
	}
	if _, ok := res.Body.(missingBody); ok {
		logger.Error("response stream is missing")
		return request.NewFailure(request.EmptyResponseStream, status, "an error occurred when trying to get server response", nil)
	}

	// Drain stream
	body, err := c.readBody(res, tc, cancel)
	if err != nil {
		if errors.Is(context.Cause(ctx), ErrReadTimeout) {
			err = fmt.Errorf("%w after %s: %w", ErrReadTimeout, c.readTimeout, err)
		}
		logger.Errorf("error when reading response: %s", err)
		return request.NewFailure(request.ReadError, status, "an error occurred when reading server response", err)
	}
	logger.Debugf("response body read: %d bytes", len(body))

	// Classify
	if request.IsSuccessStatus(status) {
		return &request.Success{StatusCode: status, Body: body}
	}
	message := body
	if message == "" {
		message = request.DefaultServerErrorMessage
	}
	return request.NewFailure(request.ServerError, status, message, nil)
}

func (c Client) newRequest(ctx context.Context, spec request.Spec, reqURL *url.URL, logger logrus.FieldLogger) (*http.Request, error) {
	// Output is enabled only if there is a body
	var bodyReader io.Reader
	if body, ok := spec.Body(logger); ok {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, spec.Method().String(), reqURL.String(), bodyReader)
	if err != nil {
		return nil, err
	}

	// Client headers
	for k, values := range c.header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	// Request headers
	for k, values := range spec.Header() {
		req.Header.Del(k) // clear client values
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	return req, nil
}

func (c Client) readBody(res *http.Response, tc *trace.ClientTrace, cancel context.CancelCauseFunc) (string, error) {
	// Trace body read
	var onClose counter.OnClose
	if tc != nil && tc.BodyRead != nil {
		onClose = tc.BodyRead
	}
	counted := counter.NewReadCloser(res.Body, onClose)

	// Body read must not be idle longer than the read timeout
	watchdog := time.AfterFunc(c.readTimeout, func() {
		cancel(ErrReadTimeout)
	})
	defer watchdog.Stop()

	reader, err := decode.Decode(&idleReader{ReadCloser: counted, watchdog: watchdog, timeout: c.readTimeout}, res.Header.Get("Content-Encoding"))
	if err != nil {
		_ = counted.Close()
		return "", err
	}

	var out strings.Builder
	_, readErr := io.Copy(&out, reader)
	closeErr := reader.Close()
	if readErr != nil {
		return "", readErr
	}
	if closeErr != nil {
		return "", closeErr
	}
	return out.String(), nil
}

// parseURL accepts only absolute http(s) URLs.
func parseURL(str string) (*url.URL, error) {
	u, err := url.Parse(str)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" {
		return nil, fmt.Errorf(`no protocol: "%s"`, str)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf(`unknown protocol: "%s"`, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf(`no host: "%s"`, str)
	}
	return u, nil
}

func handleSendError(startedAt time.Time, req *http.Request, err error) error {
	// Timeout
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) {
		err = urlError(req, fmt.Errorf("timeout after %s", time.Since(startedAt)))
	} else if errors.Is(err, context.Canceled) {
		err = urlError(req, fmt.Errorf("canceled after %s", time.Since(startedAt)))
	} else if errors.As(err, &netErr) && netErr.Timeout() {
		err = urlError(req, fmt.Errorf("timeout after %s: %w", time.Since(startedAt), netErr))
	}

	// Url error
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = fmt.Errorf(`request %s "%s" failed: %w`, strings.ToUpper(urlErr.Op), urlErr.URL, urlErr.Err)
	}

	return err
}

func urlError(req *http.Request, err error) *url.Error {
	return &url.Error{Op: req.Method, URL: req.URL.String(), Err: err}
}

// idleReader postpones the watchdog on each read.
type idleReader struct {
	io.ReadCloser
	watchdog *time.Timer
	timeout  time.Duration
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	r.watchdog.Reset(r.timeout)
	return n, err
}

// roundTripper wraps a http.RoundTripper and adds trace functionality.
type roundTripper struct {
	trace   *trace.ClientTrace
	wrapped http.RoundTripper
}

func (rt roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	// Trace request start
	if rt.trace != nil && rt.trace.HTTPRequestStart != nil {
		rt.trace.HTTPRequestStart(req)
	}

	// Send
	res, err := rt.wrapped.RoundTrip(req)

	// Mark missing stream, http.Client would replace it by an empty body
	if err == nil && res != nil && res.Body == nil {
		res.Body = missingBody{}
	}

	// Trace request done
	if rt.trace != nil && rt.trace.HTTPRequestDone != nil {
		rt.trace.HTTPRequestDone(res, err)
	}

	return res, err
}

// missingBody replaces a nil response body returned by a transport.
type missingBody struct{}

func (missingBody) Read([]byte) (int, error) {
	return 0, io.EOF
}

func (missingBody) Close() error {
	return nil
}
