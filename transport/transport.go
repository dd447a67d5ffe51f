package transport

import (
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"
)

const (
	defaultRequestTimeout = 30 * time.Second

	// Some servers mishandle the 100-continue negotiation for big bodies,
	// so uploads above this size drop the Expect header and run with
	// largeUploadTimeout instead of the normal request timeout.
	LargeUploadThreshold = 10 * 1024 * 1024
	largeUploadTimeout   = 10 * time.Minute
)

// UploadSource is the body of an outgoing request: either an in-memory
// byte slice or a staged file streamed with a declared length. At most one
// of Data/File may be set.
type UploadSource struct {
	Data []byte
	File *os.File
	Size int64
}

func (s *UploadSource) Len() int64 {
	if s == nil {
		return 0
	}
	if s.File != nil {
		return s.Size
	}
	return int64(len(s.Data))
}

// Request describes one logical request. The executor rebuilds the
// underlying *http.Request per attempt, so a Request can be re-executed.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Query  url.Values
	Body   *UploadSource
}

func (r *Request) target() string {
	if len(r.Query) == 0 {
		return r.URL
	}
	return r.URL + "?" + r.Query.Encode()
}

// Response is the normalized outcome of a request. TransportErr is set only
// when the connection itself failed; the server answering with an error
// status is not a transport error. StatusCode is 0 when TransportErr is set.
type Response struct {
	StatusCode   int
	Header       http.Header
	Body         []byte
	TransportErr string

	// underlying connection error, kept for retry classification
	cause error
}

func (r *Response) IsSuccess() bool {
	return r.TransportErr == "" && r.StatusCode >= 200 && r.StatusCode < 300
}

var (
	sharedMu    sync.Mutex
	sharedCount int
	sharedTr    *http.Transport
)

// acquireSharedTransport hands out the process-wide connection pool,
// creating it on first use.
func acquireSharedTransport() *http.Transport {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if sharedCount == 0 && sharedTr == nil {
		sharedTr = &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     60 * time.Second,
		}
	}
	sharedCount++
	return sharedTr
}

// releaseSharedTransport drops a reference. The pool is never torn down,
// even at zero references: closing it while another handle is mid-request
// breaks in-flight verification, and keeping idle connections until process
// exit is harmless.
func releaseSharedTransport() {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if sharedCount > 0 {
		sharedCount--
	}
}
