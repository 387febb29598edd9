package conn

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"log"
	"strings"

	"github.com/originhttp/originserver/core/httpmsg"
	"github.com/originhttp/originserver/core/timeouts"
)

// Handler is the capability a route reduces to: invoke with a parsed
// request, get back a response. Closures over captured state are the
// expected form, per §9.
type Handler func(*httpmsg.Request) *httpmsg.Response

// Router is the interface the driver's Dispatch state consumes. The
// router's own implementation (radix/prefix lookup) lives outside core,
// per §1; the driver only needs this lookup shape.
type Router interface {
	Find(method, path string) (Handler, []string, bool)
}

// Outcome tells the server facade what to do with a connection once
// Handle returns: keep it registered for another request, or drop it.
type Outcome int

const (
	OutcomeKeepAlive Outcome = iota
	OutcomeClosed
)

// DefaultBodyBufferThreshold is the default cutoff below which a
// Content-Length body is materialized into memory rather than handed to
// the handler as a streaming reader, per §4.5.
const DefaultBodyBufferThreshold = 64 << 10

// Driver runs the per-connection state machine of §4.5: AwaitRead ->
// AwaitBody -> Dispatch -> Writing -> KeepAlive | Closed.
type Driver struct {
	Router              Router
	Timeouts            timeouts.Timeouts
	Limits              httpmsg.Limits
	BodyBufferThreshold int64
	Log                 *log.Logger

	maxHeadBytes int
}

// NewDriver constructs a Driver. A nil logger means the driver logs
// nothing.
func NewDriver(router Router, to timeouts.Timeouts, limits httpmsg.Limits, bodyBufferThreshold int64, logger *log.Logger) *Driver {
	if bodyBufferThreshold <= 0 {
		bodyBufferThreshold = DefaultBodyBufferThreshold
	}
	return &Driver{
		Router:              router,
		Timeouts:            to,
		Limits:              limits,
		BodyBufferThreshold: bodyBufferThreshold,
		Log:                 logger,
		maxHeadBytes:        limits.MaxRequestLineBytes + limits.MaxHeaderCount*limits.MaxHeaderLineBytes + 4,
	}
}

// Handle runs exactly one request/response cycle on c and reports
// whether c should be re-armed for another request or closed, per the
// keep-alive policy in §4.5. It is the single place codec/IO errors are
// converted into on-wire responses, per §7.
func (d *Driver) Handle(c *Connection) Outcome {
	d.Timeouts.ApplyRead(c.Sock, timeouts.ReadRequestHead)

	req, err := d.readRequestHead(c)
	if err != nil {
		d.respondToHeadError(c, err)
		return OutcomeClosed
	}

	if req.Version == httpmsg.HTTP11 && !req.Header.Has("Host") {
		d.writeSimple(c, 400)
		return OutcomeClosed
	}

	handler, miss := d.route(req)
	if handler == nil {
		return d.finish(c, req, miss)
	}

	if req.ExpectsContinue() {
		if !d.writeInterim(c, 100) {
			return OutcomeClosed
		}
	}

	d.Timeouts.ApplyRead(c.Sock, timeouts.ReadRequestBody)
	if err := d.attachBody(c, req); err != nil {
		d.respondToBodyError(c, err)
		return OutcomeClosed
	}

	resp := d.invoke(handler, req)
	return d.finish(c, req, resp)
}

// finish writes resp, drains any unread request body so a pipelined
// request behind it can be parsed, and reports the keep-alive outcome
// per §4.5. Used both for a dispatched handler's response and for a
// routing miss resolved before the body was ever attached.
func (d *Driver) finish(c *Connection, req *httpmsg.Request, resp *httpmsg.Response) Outcome {
	d.Timeouts.ApplyWrite(c.Sock, timeouts.WriteResponse)
	if err := resp.WriteTo(c.Sock); err != nil {
		if d.Log != nil {
			d.Log.Printf("conn %d: write response: %v", c.ID, err)
		}
		return OutcomeClosed
	}
	c.written = true

	if req.Body != nil {
		if _, err := io.Copy(io.Discard, req.Body); err != nil {
			return OutcomeClosed
		}
	} else if req.BodyKind != httpmsg.BodyNone {
		// A routing miss short-circuits before the body is ever attached
		// (per §9), so any bytes the client framed as a body are still
		// sitting unread on the wire. Re-arming for another request
		// would have the next head parse start mid-body; close instead.
		return OutcomeClosed
	}

	if !req.KeepAlive() {
		return OutcomeClosed
	}
	c.written = false
	return OutcomeKeepAlive
}

// readRequestHead accumulates bytes from c's reader until
// httpmsg.ParseRequestHead succeeds, enforcing the same head-size cap the
// parser enforces incrementally so a client trickling bytes one at a
// time can't grow the head buffer past the configured limits.
//
// Bytes pulled out of c.reader that turn out to belong after the head
// (the request's body, or the next pipelined request's head, arriving
// in the same underlying read as this head) are saved to c.leftover
// rather than rewrapping c.reader, so a connection serving many
// keep-alive requests never grows a deeper reader chain. tmp is sized
// to at least c.reader's own buffer capacity so every Read call below
// drains that buffer completely instead of leaving a remainder inside
// it that c.leftover wouldn't be ordered ahead of.
func (d *Driver) readRequestHead(c *Connection) (*httpmsg.Request, error) {
	buf := make([]byte, 0, 1024)
	if len(c.leftover) > 0 {
		buf = append(buf, c.leftover...)
		c.leftover = nil
	}
	tmp := make([]byte, requestLineBudget)

	for {
		req, consumed, err := httpmsg.ParseRequestHead(buf, d.Limits)
		if err == nil {
			if extra := buf[consumed:]; len(extra) > 0 {
				c.leftover = append([]byte(nil), extra...)
			}
			return req, nil
		}
		if err != httpmsg.ErrNeedMore {
			return nil, err
		}
		if len(buf) > d.maxHeadBytes {
			return nil, &httpmsg.Error{Kind: httpmsg.KindTooLarge, Msg: "request head exceeds configured limits"}
		}

		n, rerr := c.reader.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
		}
		if rerr != nil {
			if n > 0 {
				continue // try one more parse attempt before surfacing the read error
			}
			return nil, rerr
		}
	}
}

// attachBody wires req.Body per §4.5's materialize-below-threshold,
// stream-otherwise contract. Content-Length bodies at or below the
// threshold are read fully into memory; chunked bodies, and
// Content-Length bodies above the threshold, are left as streaming
// readers the handler must consume.
//
// Body bytes that readRequestHead already pulled into c.leftover are
// read first. For a Content-Length body, only the body's own share of
// c.leftover is taken and the rest stays saved for the next request. For
// a chunked body, any bytes that follow the body and were already
// received are not kept for the next request.
//
// A failure from io.ReadFull is returned as-is rather than wrapped into
// a *httpmsg.Error: by this point the head has already parsed cleanly,
// so a short read here is a deadline expiry or a transport failure
// (e.g. the peer resetting the connection mid-body), never a syntax
// error — respondToBodyError, not respondToHeadError, classifies it.
func (d *Driver) attachBody(c *Connection, req *httpmsg.Request) error {
	httpmsg.AttachBody(req, c.reader)
	if len(c.leftover) > 0 {
		switch req.BodyKind {
		case httpmsg.BodyContentLength:
			n := min(int64(len(c.leftover)), req.ContentLength)
			head := c.leftover[:n]
			if c.leftover = c.leftover[n:]; len(c.leftover) == 0 {
				c.leftover = nil
			}
			req.Body = io.MultiReader(bytes.NewReader(head), io.LimitReader(c.reader, req.ContentLength-n))
		case httpmsg.BodyChunked:
			req.Body = httpmsg.NewChunkedReader(bufio.NewReader(io.MultiReader(bytes.NewReader(c.leftover), c.reader)))
			c.leftover = nil
		}
	}

	if req.BodyKind == httpmsg.BodyContentLength && req.ContentLength <= d.BodyBufferThreshold {
		data := make([]byte, req.ContentLength)
		if _, err := io.ReadFull(req.Body, data); err != nil {
			return err
		}
		req.Body = bytes.NewReader(data)
	}
	return nil
}

// route resolves req's handler via the router, ahead of any Expect:
// 100-continue handling or body read per §9: a request that will only
// ever 404 or 405 must not have its body read or its interim response
// sent. handler is nil iff the lookup missed, in which case miss is
// the 404/405 response Handle should write without ever touching the
// body.
func (d *Driver) route(req *httpmsg.Request) (handler Handler, miss *httpmsg.Response) {
	handler, allowed, ok := d.Router.Find(string(req.Method), req.Target)
	if ok {
		return handler, nil
	}
	if len(allowed) > 0 {
		resp := httpmsg.NewTextResponse(405, "method not allowed")
		resp.Header.Set("Allow", strings.Join(allowed, ", "))
		return nil, resp
	}
	return nil, httpmsg.NewTextResponse(404, "not found")
}

// invoke calls handler, isolating a panic per §9: the driver recovers,
// logs, and synthesizes a 500 rather than letting the panic escape to
// the worker.
func (d *Driver) invoke(handler Handler, req *httpmsg.Request) (resp *httpmsg.Response) {
	defer func() {
		if r := recover(); r != nil {
			if d.Log != nil {
				d.Log.Printf("handler panic for %s %s: %v", req.Method, req.Target, r)
			}
			resp = httpmsg.NewTextResponse(500, "internal server error")
		}
	}()

	return handler(req)
}

// respondToHeadError writes a best-effort error response for a codec/IO
// failure while reading a request head, per §7's disposition table, then
// the caller closes the connection.
func (d *Driver) respondToHeadError(c *Connection, err error) {
	if c.written {
		return
	}
	if timeouts.IsTimeout(err) {
		d.writeSimple(c, 408)
		return
	}

	var herr *httpmsg.Error
	if !errors.As(err, &herr) {
		if d.Log != nil {
			d.Log.Printf("conn %d: io error reading head: %v", c.ID, err)
		}
		return
	}

	switch herr.Kind {
	case httpmsg.KindTooLarge:
		d.writeSimple(c, 431)
	case httpmsg.KindUnsupported:
		if strings.Contains(herr.Msg, "version") {
			d.writeSimple(c, 505)
		} else {
			d.writeSimple(c, 501)
		}
	default:
		d.writeSimple(c, 400)
	}
}

// respondToBodyError applies §7's Timeout/IoError dispositions for a
// failure reading the request body. Unlike a head-read failure, the
// client is always mid-stream by the time a body read fails, so there
// is never a "head read timed out with nothing sent" case to answer
// with 408 — both a deadline expiry and a transport failure here are
// silent closes, the latter logged.
func (d *Driver) respondToBodyError(c *Connection, err error) {
	if timeouts.IsTimeout(err) {
		return
	}
	if d.Log != nil {
		d.Log.Printf("conn %d: io error reading body: %v", c.ID, err)
	}
}

func (d *Driver) writeSimple(c *Connection, status int) {
	resp := httpmsg.NewTextResponse(status, httpmsg.ReasonPhrase(status))
	d.Timeouts.ApplyWrite(c.Sock, timeouts.WriteResponse)
	if err := resp.WriteTo(c.Sock); err == nil {
		c.written = true
	}
}

// writeInterim writes a bodyless interim status line directly, bypassing
// Response.WriteTo's Content-Length/Date machinery, per RFC 7231's
// "informational responses have no body" rule for 1xx statuses.
func (d *Driver) writeInterim(c *Connection, status int) bool {
	_, err := c.Sock.Write([]byte(httpmsg.HTTP11.String() + " " + itoaStatus(status) + " " + httpmsg.ReasonPhrase(status) + "\r\n\r\n"))
	return err == nil
}

func itoaStatus(n int) string {
	return string([]byte{byte('0' + n/100), byte('0' + (n/10)%10), byte('0' + n%10)})
}
