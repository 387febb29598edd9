package httpmsg

import (
	"bytes"
	"io"
	"time"
)

// Response is a server-generated HTTP response, per §3's data model.
type Response struct {
	Status int
	Header *Header

	// Exactly one of Body (known length) or Stream (unknown length,
	// written chunked) should be set. Neither set means an empty body.
	// If Stream implements io.Closer, WriteTo closes it exactly once on
	// every exit path (success, read error, or write error).
	Body   []byte
	Stream io.Reader
}

// NewResponse returns a Response with an initialized Header and the
// given status and buffered body.
func NewResponse(status int, body []byte) *Response {
	return &Response{Status: status, Header: NewHeader(), Body: body}
}

// NewStreamResponse returns a Response whose body is streamed from r
// without the codec ever buffering it fully, emitted with chunked
// framing.
func NewStreamResponse(status int, r io.Reader) *Response {
	return &Response{Status: status, Header: NewHeader(), Stream: r}
}

// NewTextResponse returns a text/plain response for s with the given
// status.
func NewTextResponse(status int, s string) *Response {
	r := NewResponse(status, []byte(s))
	r.Header.Set("Content-Type", "text/plain; charset=utf-8")
	return r
}

// prepareHeaders fills in Content-Length/Transfer-Encoding and Date per
// §3's invariant, if the caller hasn't already set them.
func (r *Response) prepareHeaders() {
	if !r.Header.Has("Date") {
		r.Header.Set("Date", time.Now().UTC().Format(time.RFC1123))
	}
	if r.Header.Has("Content-Length") || r.Header.Has("Transfer-Encoding") {
		return
	}
	if r.Stream != nil {
		r.Header.Set("Transfer-Encoding", "chunked")
	} else {
		r.Header.Set("Content-Length", itoa(len(r.Body)))
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// WriteTo serializes the response to w: status line, headers in
// insertion order, an empty line, then the body — streamed chunked when
// Stream is set, written verbatim otherwise. The codec never buffers an
// unbounded body (§4.1).
func (r *Response) WriteTo(w io.Writer) error {
	r.prepareHeaders()

	if c, ok := r.Stream.(io.Closer); ok {
		defer c.Close()
	}

	var head bytes.Buffer
	head.WriteString(HTTP11.String())
	head.WriteByte(' ')
	head.WriteString(itoa(r.Status))
	head.WriteByte(' ')
	head.WriteString(ReasonPhrase(r.Status))
	head.WriteString("\r\n")
	r.Header.Each(func(name string, values []string) {
		for _, v := range values {
			head.WriteString(name)
			head.WriteString(": ")
			head.WriteString(v)
			head.WriteString("\r\n")
		}
	})
	head.WriteString("\r\n")
	if _, err := w.Write(head.Bytes()); err != nil {
		return err
	}

	if r.Stream != nil {
		cw := NewChunkedWriter(w)
		buf := make([]byte, 32*1024)
		for {
			n, err := r.Stream.Read(buf)
			if n > 0 {
				if _, werr := cw.Write(buf[:n]); werr != nil {
					return werr
				}
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
		}
		return cw.Close()
	}

	if len(r.Body) > 0 {
		if _, err := w.Write(r.Body); err != nil {
			return err
		}
	}
	return nil
}
