package httpmsg

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

var errBoom = errors.New("boom")

// closeTrackingReader counts Close calls and serves data once, then fails
// with failErr if set or EOFs otherwise.
type closeTrackingReader struct {
	data    []byte
	failErr error
	closed  int
}

func (r *closeTrackingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		if r.failErr != nil {
			return 0, r.failErr
		}
		return 0, io.EOF
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func (r *closeTrackingReader) Close() error {
	r.closed++
	return nil
}

// failingWriter succeeds on its first allowed Write calls, then fails
// every one after that. Sized per test to let the response head through
// and fail partway into the chunked body.
type failingWriter struct{ allow int }

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.allow <= 0 {
		return 0, errBoom
	}
	w.allow--
	return len(p), nil
}

func TestResponseWriteToSetsContentLength(t *testing.T) {
	resp := NewTextResponse(200, "hello world")
	var buf bytes.Buffer
	if err := resp.WriteTo(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("unexpected status line: %q", out)
	}
	if !strings.Contains(out, "Content-Length: 11\r\n") {
		t.Fatalf("missing Content-Length: %q", out)
	}
	if !strings.HasSuffix(out, "hello world") {
		t.Fatalf("missing body: %q", out)
	}
}

func TestResponseWriteToStreamsChunked(t *testing.T) {
	resp := NewStreamResponse(200, strings.NewReader("streamed"))
	var buf bytes.Buffer
	if err := resp.WriteTo(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Transfer-Encoding: chunked\r\n") {
		t.Fatalf("missing chunked header: %q", out)
	}
	if strings.Contains(out, "Content-Length") {
		t.Fatalf("should not set Content-Length when streaming: %q", out)
	}
	if !strings.Contains(out, "8\r\nstreamed\r\n0\r\n\r\n") {
		t.Fatalf("unexpected chunk framing: %q", out)
	}
}

func TestResponseWriteToClosesStreamOnSuccess(t *testing.T) {
	stream := &closeTrackingReader{data: []byte("streamed")}
	resp := NewStreamResponse(200, stream)
	var buf bytes.Buffer
	if err := resp.WriteTo(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	if stream.closed != 1 {
		t.Fatalf("stream closed %d times, want 1", stream.closed)
	}
}

func TestResponseWriteToClosesStreamOnReadError(t *testing.T) {
	stream := &closeTrackingReader{data: []byte("streamed"), failErr: errBoom}
	resp := NewStreamResponse(200, stream)
	var buf bytes.Buffer
	if err := resp.WriteTo(&buf); err != errBoom {
		t.Fatalf("err = %v, want errBoom", err)
	}
	if stream.closed != 1 {
		t.Fatalf("stream closed %d times, want 1", stream.closed)
	}
}

func TestResponseWriteToClosesStreamOnWriteError(t *testing.T) {
	stream := &closeTrackingReader{data: []byte("streamed")}
	resp := NewStreamResponse(200, stream)
	w := &failingWriter{allow: 1}
	if err := resp.WriteTo(w); err == nil {
		t.Fatal("expected write error, got nil")
	}
	if stream.closed != 1 {
		t.Fatalf("stream closed %d times, want 1", stream.closed)
	}
}

func TestResponseHonorsCallerFraming(t *testing.T) {
	resp := NewResponse(204, nil)
	resp.Header.Set("Content-Length", "0")
	var buf bytes.Buffer
	if err := resp.WriteTo(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	if strings.Count(buf.String(), "Content-Length:") != 1 {
		t.Fatalf("Content-Length should not be duplicated: %q", buf.String())
	}
}
