package transport

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// RetryPolicy controls the executor's backoff loop. MaxRetries counts
// retries, so a request is attempted at most MaxRetries+1 times.
type RetryPolicy struct {
	MaxRetries   int
	BaseDelay    time.Duration
	GrowthFactor float64
	MaxDelay     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   3,
		BaseDelay:    100 * time.Millisecond,
		GrowthFactor: 2,
		MaxDelay:     5 * time.Second,
	}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d = time.Duration(float64(d) * p.GrowthFactor)
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

type config struct {
	policy  RetryPolicy
	timeout time.Duration
	base    http.RoundTripper
}

type Option func(*config)

func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *config) {
		c.policy = p
	}
}

func WithTimeout(t time.Duration) Option {
	return func(c *config) {
		c.timeout = t
	}
}

// WithRoundTripper swaps the shared transport, mainly for tests.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(c *config) {
		c.base = rt
	}
}

// Executor issues requests with capped exponential-backoff retries.
// Transport failures and retryable statuses are absorbed by the loop; the
// caller only ever sees the final Response. The error return is reserved
// for contract violations such as an unparsable URL.
type Executor struct {
	c        *config
	base     http.RoundTripper
	acquired bool
}

func NewExecutor(opts ...Option) *Executor {
	c := &config{
		policy:  DefaultRetryPolicy(),
		timeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	e := &Executor{c: c, base: c.base}
	if e.base == nil {
		e.base = acquireSharedTransport()
		e.acquired = true
	}
	return e
}

// Close releases the executor's reference on the shared transport. The
// transport itself stays alive, see releaseSharedTransport.
func (e *Executor) Close() error {
	if e.acquired {
		releaseSharedTransport()
		e.acquired = false
	}
	return nil
}

// Execute runs the request to completion: success, terminal failure or
// exhausted retries. The returned response is never nil when err is nil.
func (e *Executor) Execute(ctx context.Context, req *Request) (*Response, error) {
	if req.Body != nil && req.Body.Data != nil && req.Body.File != nil {
		return nil, fmt.Errorf("request body must be memory or file, not both")
	}
	reqid := requestID(req.URL)
	logger := logutil.GetLogger(ctx).With(
		zap.String("req_id", reqid),
		zap.String("method", req.Method),
		zap.String("url", req.URL),
	)
	var rsp *Response
	for attempt := 0; attempt <= e.c.policy.MaxRetries; attempt++ {
		var err error
		rsp, err = e.doOnce(ctx, req)
		if err != nil {
			return nil, err
		}
		retryable, reason := classify(rsp)
		if !retryable {
			if attempt > 0 {
				logger.Info("request recovered after retry", zap.Int("attempt", attempt+1))
			}
			return rsp, nil
		}
		if attempt >= e.c.policy.MaxRetries {
			logger.Error("request failed, retries exhausted",
				zap.Int("attempts", attempt+1), zap.String("reason", reason))
			return rsp, nil
		}
		wait := e.c.policy.delay(attempt)
		logger.Warn("request failed, wait retry",
			zap.Int("attempt", attempt+1), zap.String("reason", reason), zap.Duration("wait", wait))
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return rsp, nil
		}
	}
	return rsp, nil
}

// doOnce performs a single attempt with a fresh header collector, so a
// retry never mixes header sets with a previous attempt.
func (e *Executor) doOnce(ctx context.Context, req *Request) (*Response, error) {
	timeout := e.c.timeout
	if req.Body.Len() > LargeUploadThreshold {
		timeout = largeUploadTimeout
	}
	subctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	hreq, err := e.buildHTTPRequest(subctx, req)
	if err != nil {
		return nil, err
	}

	col := &HeaderCollector{}
	cli := &http.Client{
		Transport: &recordingRoundTripper{base: e.base, col: col},
	}
	hrsp, err := cli.Do(hreq)
	if err != nil {
		return &Response{TransportErr: err.Error(), cause: err}, nil
	}
	defer hrsp.Body.Close()
	body, err := io.ReadAll(hrsp.Body)
	if err != nil {
		// partial transfer, reported as a transport failure
		return &Response{TransportErr: err.Error(), cause: io.ErrUnexpectedEOF}, nil
	}
	status, hdr, ok := col.Final()
	if !ok {
		status, hdr = hrsp.StatusCode, hrsp.Header
	}
	return &Response{StatusCode: status, Header: hdr, Body: body}, nil
}

func (e *Executor) buildHTTPRequest(ctx context.Context, req *Request) (*http.Request, error) {
	var body io.Reader
	var length int64
	if req.Body != nil {
		if req.Body.File != nil {
			if _, err := req.Body.File.Seek(0, io.SeekStart); err != nil {
				return nil, fmt.Errorf("rewind staged body: %w", err)
			}
			body = io.LimitReader(req.Body.File, req.Body.Size)
			length = req.Body.Size
		} else if req.Body.Data != nil {
			body = bytes.NewReader(req.Body.Data)
			length = int64(len(req.Body.Data))
		}
	}
	hreq, err := http.NewRequestWithContext(ctx, req.Method, req.target(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}
	if body != nil {
		hreq.ContentLength = length
	}
	if req.Body.Len() > LargeUploadThreshold {
		hreq.Header.Del("Expect")
	}
	return hreq, nil
}

// classify maps a response to retryable-or-not plus a reason for logging.
func classify(rsp *Response) (bool, string) {
	if rsp.TransportErr != "" {
		if IsRetryableTransportError(rsp.cause) {
			return true, "transport: " + rsp.TransportErr
		}
		return false, ""
	}
	switch rsp.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true, fmt.Sprintf("http status %d", rsp.StatusCode)
	}
	return false, ""
}

// IsRetryableTransportError reports whether a connection-level error is
// worth retrying: refused connections, DNS failures, timeouts and broken
// transfers. Kept exported for callers that bypass the executor loop.
func IsRetryableTransportError(err error) bool {
	if err == nil {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var de *net.DNSError
	if errors.As(err, &de) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	return false
}

func requestID(link string) string {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, xxhash.Sum64String(link)^uint64(time.Now().UnixNano()))
	return hex.EncodeToString(buf)
}
