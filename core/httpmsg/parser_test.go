package httpmsg

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestParseRequestHeadBasic(t *testing.T) {
	raw := "GET /hello HTTP/1.1\r\nHost: example.com\r\nConnection: keep-alive\r\n\r\n"
	req, consumed, err := ParseRequestHead([]byte(raw), DefaultLimits())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if consumed != len(raw) {
		t.Fatalf("consumed = %d, want %d", consumed, len(raw))
	}
	if req.Method != GET || req.Target != "/hello" || req.Version != HTTP11 {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.Header.Get("Host") != "example.com" {
		t.Fatalf("host header not parsed")
	}
	if !req.KeepAlive() {
		t.Fatalf("expected keep-alive")
	}
}

func TestParseRequestHeadNeedsMore(t *testing.T) {
	partial := "GET /hello HTTP/1.1\r\nHost: exa"
	_, _, err := ParseRequestHead([]byte(partial), DefaultLimits())
	if err != ErrNeedMore {
		t.Fatalf("expected ErrNeedMore, got %v", err)
	}
}

func TestParseRequestHeadTooLargeLine(t *testing.T) {
	line := "GET /" + strings.Repeat("a", 9000) + " HTTP/1.1\r\n\r\n"
	_, _, err := ParseRequestHead([]byte(line), DefaultLimits())
	herr, ok := err.(*Error)
	if !ok || herr.Kind != KindTooLarge {
		t.Fatalf("expected TooLarge error, got %v", err)
	}
}

func TestParseRequestHeadConflictingFraming(t *testing.T) {
	raw := "POST / HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\nTransfer-Encoding: chunked\r\n\r\n"
	_, _, err := ParseRequestHead([]byte(raw), DefaultLimits())
	herr, ok := err.(*Error)
	if !ok || herr.Kind != KindMalformed {
		t.Fatalf("expected Malformed error, got %v", err)
	}
}

func TestParseRequestHeadUnsupportedTransferCoding(t *testing.T) {
	raw := "POST / HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: gzip\r\n\r\n"
	_, _, err := ParseRequestHead([]byte(raw), DefaultLimits())
	herr, ok := err.(*Error)
	if !ok || herr.Kind != KindUnsupported {
		t.Fatalf("expected Unsupported error, got %v", err)
	}
}

func TestParseRequestHeadRejectsObsoleteFolding(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nHost: x\r\n Folded: value\r\n\r\n"
	_, _, err := ParseRequestHead([]byte(raw), DefaultLimits())
	herr, ok := err.(*Error)
	if !ok || herr.Kind != KindMalformed {
		t.Fatalf("expected Malformed error, got %v", err)
	}
}

func TestAttachBodyContentLength(t *testing.T) {
	raw := "POST /echo HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\n\r\nabcde"
	req, consumed, err := ParseRequestHead([]byte(raw), DefaultLimits())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := bufio.NewReader(bytes.NewReader([]byte(raw)[consumed:]))
	AttachBody(req, r)
	body, err := io.ReadAll(req.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "abcde" {
		t.Fatalf("body = %q, want abcde", body)
	}
}

func TestChunkedRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	cw := NewChunkedWriter(&buf)
	if _, err := cw.Write([]byte("hello ")); err != nil {
		t.Fatal(err)
	}
	if _, err := cw.Write([]byte("world")); err != nil {
		t.Fatal(err)
	}
	if err := cw.Close(); err != nil {
		t.Fatal(err)
	}

	cr := NewChunkedReader(bufio.NewReader(&buf))
	data, err := io.ReadAll(cr)
	if err != nil {
		t.Fatalf("read chunked: %v", err)
	}
	if string(data) != "hello world" {
		t.Fatalf("data = %q, want %q", data, "hello world")
	}
}
