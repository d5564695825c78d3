// Package intercept defines the transport-tap capability and provides a
// reverse-proxy host for it. The tap sees every outbound URL and gets a
// chance to rewrite content-bearing response bodies before the client reads
// them; everything else about how traffic is captured stays on this side of
// the interface.
package intercept

// Tap observes traffic passing through an interception host.
//
// OnRequestStart fires once per outbound request with the target URL, before
// the request is forwarded. OnResponseBody fires with the full response body
// for requests the host selected for transformation, and its return value
// replaces the body delivered downstream. Implementations must never panic
// the host: a tap that cannot process a body returns it unchanged.
type Tap interface {
	OnRequestStart(url string)
	OnResponseBody(url string, body []byte) []byte
}
