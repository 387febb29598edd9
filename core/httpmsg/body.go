package httpmsg

import (
	"bufio"
	"io"
)

// AttachBody wires req.Body to r according to req.BodyKind, which
// ParseRequestHead has already decided from the framing headers. r must
// be positioned exactly at the first body byte (i.e. right after the
// consumed head bytes).
func AttachBody(req *Request, r *bufio.Reader) {
	switch req.BodyKind {
	case BodyContentLength:
		req.Body = io.LimitReader(r, req.ContentLength)
	case BodyChunked:
		req.Body = NewChunkedReader(r)
	default:
		req.Body = nil
	}
}
