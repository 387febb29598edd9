package server

import (
	"bufio"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/originhttp/originserver/core/conn"
	"github.com/originhttp/originserver/core/httpmsg"
	"github.com/originhttp/originserver/core/timeouts"
)

// stubRouter is a minimal conn.Router for exercising the server without
// depending on the real radix router package.
type stubRouter struct {
	handler conn.Handler
	allowed []string
}

func (r *stubRouter) Find(method, path string) (conn.Handler, []string, bool) {
	if path != "/" {
		return nil, nil, false
	}
	if method != "GET" {
		return nil, r.allowed, false
	}
	return r.handler, nil, true
}

func newTestServer(t *testing.T, handler conn.Handler) (*Server, string) {
	t.Helper()
	router := &stubRouter{handler: handler, allowed: []string{"GET"}}
	s := New(router, Options{
		PoolMin:             1,
		PoolMax:             4,
		Timeouts:            timeouts.Default(),
		Limits:              httpmsg.DefaultLimits(),
		BodyBufferThreshold: conn.DefaultBodyBufferThreshold,
	})
	if err := s.Run("127.0.0.1:0"); err != nil {
		t.Fatalf("run: %v", err)
	}
	t.Cleanup(func() {
		s.Shutdown()
	})
	return s, s.ln.Addr().String()
}

func TestServerServesSimpleRequest(t *testing.T) {
	_, addr := newTestServer(t, func(req *httpmsg.Request) *httpmsg.Response {
		return httpmsg.NewTextResponse(200, "hello world")
	})

	c, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	if _, err := c.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	resp, err := http.ReadResponse(bufio.NewReader(c), nil)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Length"); got != "11" {
		t.Fatalf("content-length = %q, want 11", got)
	}
}

func TestServerKeepAliveServesSecondRequest(t *testing.T) {
	calls := 0
	_, addr := newTestServer(t, func(req *httpmsg.Request) *httpmsg.Response {
		calls++
		return httpmsg.NewTextResponse(200, "ok")
	})

	c, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()
	c.SetDeadline(time.Now().Add(2 * time.Second))
	r := bufio.NewReader(c)

	for i := 0; i < 2; i++ {
		if _, err := c.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n")); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		resp, err := http.ReadResponse(r, nil)
		if err != nil {
			t.Fatalf("read response %d: %v", i, err)
		}
		resp.Body.Close()
		if resp.StatusCode != 200 {
			t.Fatalf("status %d = %d, want 200", i, resp.StatusCode)
		}
	}
}

func TestServerMethodNotAllowedSetsAllowHeader(t *testing.T) {
	_, addr := newTestServer(t, func(req *httpmsg.Request) *httpmsg.Response {
		return httpmsg.NewTextResponse(200, "ok")
	})

	c, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()
	c.SetDeadline(time.Now().Add(2 * time.Second))

	if _, err := c.Write([]byte("POST / HTTP/1.1\r\nHost: x\r\nContent-Length: 0\r\n\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	resp, err := http.ReadResponse(bufio.NewReader(c), nil)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 405 {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
	if got := resp.Header.Get("Allow"); got != "GET" {
		t.Fatalf("allow = %q, want GET", got)
	}
}

func TestServerHTTP10ClosesAfterResponse(t *testing.T) {
	_, addr := newTestServer(t, func(req *httpmsg.Request) *httpmsg.Response {
		return httpmsg.NewTextResponse(200, "ok")
	})

	c, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()
	c.SetDeadline(time.Now().Add(2 * time.Second))

	if _, err := c.Write([]byte("GET / HTTP/1.0\r\n\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := bufio.NewReader(c)
	resp, err := http.ReadResponse(r, nil)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	resp.Body.Close()

	// The server should close the connection now; a subsequent read
	// must observe EOF rather than hang waiting for more data.
	buf := make([]byte, 1)
	if _, err := r.Read(buf); err == nil {
		t.Fatalf("expected EOF after HTTP/1.0 response, got more data")
	}
}

func TestServerShutdownStopsAcceptingConnections(t *testing.T) {
	s, addr := newTestServer(t, func(req *httpmsg.Request) *httpmsg.Response {
		return httpmsg.NewTextResponse(200, "ok")
	})

	if err := s.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if _, err := net.DialTimeout("tcp", addr, time.Second); err == nil {
		t.Fatalf("expected dial to fail after shutdown")
	}
}
