package httpmsg

import "io"

// BodyKind classifies how a request or response body is framed on the
// wire, per the invariant in §3: at most one of Content-Length or
// chunked framing accompanies a body.
type BodyKind int

const (
	// BodyNone means no body accompanies the message.
	BodyNone BodyKind = iota
	// BodyContentLength means the body is exactly ContentLength bytes.
	BodyContentLength
	// BodyChunked means the body is framed as chunked transfer-coding.
	BodyChunked
)

// Request is a parsed HTTP request head, with Body attached once the
// connection driver wires up the streaming reader for the negotiated
// framing.
type Request struct {
	Method  Method
	Target  string // origin-form, percent-encoded, preserved verbatim
	Version Version
	Header  *Header

	BodyKind      BodyKind
	ContentLength int64 // meaningful only when BodyKind == BodyContentLength

	// Body streams the request body. Nil when BodyKind == BodyNone.
	// It is either a materialized *bytes.Reader (bodies below the
	// driver's buffering threshold) or a streaming reader that must be
	// fully consumed before the connection can be reused.
	Body io.Reader
}

// KeepAlive reports whether the connection should persist after this
// request's response is written, per §4.5's keep-alive policy: HTTP/1.1
// defaults to keep-alive unless Connection: close is present; HTTP/1.0
// defaults to close unless Connection: keep-alive is present.
func (r *Request) KeepAlive() bool {
	if r.Header.HasToken("Connection", "close") {
		return false
	}
	if r.Header.HasToken("Connection", "keep-alive") {
		return true
	}
	return r.Version.KeepAliveDefault()
}

// ExpectsContinue reports whether the client sent Expect: 100-continue,
// per §9: the driver must send an interim 100 before reading the body.
func (r *Request) ExpectsContinue() bool {
	return r.Header.HasToken("Expect", "100-continue")
}
