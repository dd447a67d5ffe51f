package transport

import "net/http"

// HeaderCollector accumulates the header sets seen during one logical
// request. Every status line starts a fresh set, so after a redirect chain
// only the final hop's headers are exposed; intermediate hops are kept but
// never returned.
type HeaderCollector struct {
	hops []collectedHop
}

type collectedHop struct {
	status int
	header http.Header
}

// Observe records one hop. The header map is cloned so later mutation of
// the response does not leak into the collector.
func (c *HeaderCollector) Observe(status int, hdr http.Header) {
	c.hops = append(c.hops, collectedHop{status: status, header: hdr.Clone()})
}

// Final returns the status and headers of the last observed hop.
func (c *HeaderCollector) Final() (int, http.Header, bool) {
	if len(c.hops) == 0 {
		return 0, nil, false
	}
	last := c.hops[len(c.hops)-1]
	return last.status, last.header, true
}

func (c *HeaderCollector) HopCount() int {
	return len(c.hops)
}

// Reset clears the accumulated hops before a retry attempt.
func (c *HeaderCollector) Reset() {
	c.hops = c.hops[:0]
}

// recordingRoundTripper feeds every hop the underlying transport sees into
// the collector. The http.Client drives it once per redirect hop, which is
// exactly the status-line granularity the collector wants.
type recordingRoundTripper struct {
	base http.RoundTripper
	col  *HeaderCollector
}

func (rt *recordingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	rsp, err := rt.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	rt.col.Observe(rsp.StatusCode, rsp.Header)
	return rsp, nil
}
