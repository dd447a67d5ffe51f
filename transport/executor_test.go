package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries:   maxRetries,
		BaseDelay:    time.Millisecond,
		GrowthFactor: 2,
		MaxDelay:     5 * time.Millisecond,
	}
}

type flakyRoundTripper struct {
	failures int
	calls    int
	rt       http.RoundTripper
}

func (f *flakyRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, syscall.ECONNREFUSED
	}
	return f.rt.RoundTrip(req)
}

func TestExecuteRetryTransportErrorThenSuccess(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello"))
	}))
	defer svr.Close()
	rt := &flakyRoundTripper{failures: 2, rt: http.DefaultTransport}
	e := NewExecutor(WithRoundTripper(rt), WithRetryPolicy(fastPolicy(3)))
	defer e.Close()
	rsp, err := e.Execute(context.Background(), &Request{Method: http.MethodGet, URL: svr.URL})
	assert.NoError(t, err)
	assert.Equal(t, 3, rt.calls)
	assert.Empty(t, rsp.TransportErr)
	assert.Equal(t, http.StatusOK, rsp.StatusCode)
	assert.Equal(t, []byte("hello"), rsp.Body)
}

func TestExecuteRetriesExhausted(t *testing.T) {
	var calls int
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer svr.Close()
	e := NewExecutor(WithRetryPolicy(fastPolicy(2)))
	defer e.Close()
	rsp, err := e.Execute(context.Background(), &Request{Method: http.MethodGet, URL: svr.URL})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, http.StatusServiceUnavailable, rsp.StatusCode)
}

func TestExecuteTerminalStatusNoRetry(t *testing.T) {
	var calls int
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer svr.Close()
	e := NewExecutor(WithRetryPolicy(fastPolicy(3)))
	defer e.Close()
	rsp, err := e.Execute(context.Background(), &Request{Method: http.MethodGet, URL: svr.URL})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusNotFound, rsp.StatusCode)
	assert.False(t, rsp.IsSuccess())
}

func TestRetryDelayGrowthAndCap(t *testing.T) {
	p := DefaultRetryPolicy()
	last := time.Duration(0)
	for i := 0; i < 10; i++ {
		d := p.delay(i)
		assert.GreaterOrEqual(t, d, last)
		assert.LessOrEqual(t, d, p.MaxDelay)
		last = d
	}
	assert.Equal(t, 100*time.Millisecond, p.delay(0))
	assert.Equal(t, 200*time.Millisecond, p.delay(1))
	assert.Equal(t, p.MaxDelay, p.delay(9))
}

func TestExecuteCustomMethod(t *testing.T) {
	var method string
	var depth string
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		depth = r.Header.Get("Depth")
		w.WriteHeader(http.StatusMultiStatus)
	}))
	defer svr.Close()
	e := NewExecutor()
	defer e.Close()
	hdr := make(http.Header)
	hdr.Set("Depth", "1")
	rsp, err := e.Execute(context.Background(), &Request{Method: "PROPFIND", URL: svr.URL, Header: hdr})
	assert.NoError(t, err)
	assert.Equal(t, "PROPFIND", method)
	assert.Equal(t, "1", depth)
	assert.Equal(t, http.StatusMultiStatus, rsp.StatusCode)
}

func TestLargeUploadDropsExpectHeader(t *testing.T) {
	e := NewExecutor()
	defer e.Close()
	hdr := make(http.Header)
	hdr.Set("Expect", "100-continue")
	req := &Request{
		Method: http.MethodPut,
		URL:    "http://example.org/big.bin",
		Header: hdr,
		Body:   &UploadSource{Data: make([]byte, LargeUploadThreshold+1)},
	}
	hreq, err := e.buildHTTPRequest(context.Background(), req)
	assert.NoError(t, err)
	assert.Empty(t, hreq.Header.Get("Expect"))
	assert.Equal(t, int64(LargeUploadThreshold+1), hreq.ContentLength)
}

func TestIsRetryableTransportError(t *testing.T) {
	assert.True(t, IsRetryableTransportError(syscall.ECONNREFUSED))
	assert.True(t, IsRetryableTransportError(context.DeadlineExceeded))
	assert.False(t, IsRetryableTransportError(nil))
	assert.False(t, IsRetryableTransportError(assert.AnError))
}
