package httpmsg

import (
	"bytes"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Limits bounds the resources a single request head may consume while
// parsing, per §4.1 Phase 1/2.
type Limits struct {
	MaxRequestLineBytes int // default 8 KiB
	MaxHeaderLineBytes  int // default 8 KiB per header
	MaxHeaderCount      int // default 100
}

// DefaultLimits returns the spec's default parser limits.
func DefaultLimits() Limits {
	return Limits{
		MaxRequestLineBytes: 8 << 10,
		MaxHeaderLineBytes:  8 << 10,
		MaxHeaderCount:      100,
	}
}

// ParseRequestHead parses a request line and headers out of buf. It
// tolerates buf holding only part of the message: if the terminating
// blank line hasn't arrived yet (and no limit has been exceeded) it
// returns ErrNeedMore so the caller can read more bytes and retry with a
// larger buffer, per §4.1's "arbitrarily small slices" requirement.
//
// On success it returns the parsed Request (Body left unattached — the
// caller wires framing to the connection's stream) and the number of
// bytes of buf consumed by the head, including the terminating CRLFCRLF.
func ParseRequestHead(buf []byte, limits Limits) (*Request, int, error) {
	lineEnd := bytes.Index(buf, []byte("\r\n"))
	if lineEnd == -1 {
		if len(buf) > limits.MaxRequestLineBytes {
			return nil, 0, newErr(KindTooLarge, "request line exceeds %d bytes", limits.MaxRequestLineBytes)
		}
		return nil, 0, ErrNeedMore
	}
	if lineEnd > limits.MaxRequestLineBytes {
		return nil, 0, newErr(KindTooLarge, "request line exceeds %d bytes", limits.MaxRequestLineBytes)
	}

	req, err := parseRequestLine(buf[:lineEnd])
	if err != nil {
		return nil, 0, err
	}

	headerStart := lineEnd + 2
	headerEnd, err := findHeaderBlockEnd(buf[headerStart:], limits)
	if err != nil {
		return nil, 0, err
	}
	if headerEnd == -1 {
		return nil, 0, ErrNeedMore
	}

	hdr, err := parseHeaderBlock(buf[headerStart:headerStart+headerEnd], limits)
	if err != nil {
		return nil, 0, err
	}
	req.Header = hdr

	if err := attachFraming(req); err != nil {
		return nil, 0, err
	}

	consumed := headerStart + headerEnd + 2 // + the blank line's CRLF; the last header's CRLF is already inside headerEnd
	return req, consumed, nil
}

func parseRequestLine(line []byte) (*Request, error) {
	sp1 := bytes.IndexByte(line, ' ')
	if sp1 <= 0 {
		return nil, newErr(KindMalformed, "malformed request line")
	}
	rest := line[sp1+1:]
	sp2 := bytes.IndexByte(rest, ' ')
	if sp2 <= 0 {
		return nil, newErr(KindMalformed, "malformed request line")
	}

	methodTok := string(line[:sp1])
	target := string(rest[:sp2])
	versionTok := string(rest[sp2+1:])

	method, ok := ParseMethod(methodTok)
	if !ok {
		return nil, newErr(KindMalformed, "unknown method %q", methodTok)
	}
	if len(target) == 0 {
		return nil, newErr(KindMalformed, "empty request target")
	}
	version, ok := ParseVersion(versionTok)
	if !ok {
		return nil, newErr(KindUnsupported, "unsupported version %q", versionTok)
	}

	return &Request{Method: method, Target: target, Version: version}, nil
}

// findHeaderBlockEnd locates the CRLFCRLF terminating the header block
// within buf, enforcing per-header-line and header-count caps as it
// scans. Returns -1 if the terminator hasn't arrived yet.
func findHeaderBlockEnd(buf []byte, limits Limits) (int, error) {
	count := 0
	offset := 0
	for {
		idx := bytes.Index(buf[offset:], []byte("\r\n"))
		if idx == -1 {
			if len(buf)-offset > limits.MaxHeaderLineBytes {
				return 0, newErr(KindTooLarge, "header line exceeds %d bytes", limits.MaxHeaderLineBytes)
			}
			return -1, nil
		}
		if idx == 0 {
			// Blank line: end of header block.
			return offset, nil
		}
		if idx > limits.MaxHeaderLineBytes {
			return 0, newErr(KindTooLarge, "header line exceeds %d bytes", limits.MaxHeaderLineBytes)
		}
		if buf[offset] == ' ' || buf[offset] == '\t' {
			return 0, newErr(KindMalformed, "obsolete line folding is not supported")
		}
		count++
		if count > limits.MaxHeaderCount {
			return 0, newErr(KindTooLarge, "too many headers (max %d)", limits.MaxHeaderCount)
		}
		offset += idx + 2
	}
}

func parseHeaderBlock(buf []byte, limits Limits) (*Header, error) {
	hdr := NewHeader()
	offset := 0
	for offset < len(buf) {
		idx := bytes.Index(buf[offset:], []byte("\r\n"))
		if idx == -1 {
			idx = len(buf) - offset
		}
		line := buf[offset : offset+idx]
		offset += idx + 2

		colon := bytes.IndexByte(line, ':')
		if colon <= 0 {
			return nil, newErr(KindMalformed, "malformed header line %q", string(line))
		}
		name := string(line[:colon])
		if !httpguts.ValidHeaderFieldName(name) {
			return nil, newErr(KindMalformed, "invalid header name %q", name)
		}
		value := strings.TrimSpace(string(line[colon+1:]))
		if !httpguts.ValidHeaderFieldValue(value) {
			return nil, newErr(KindMalformed, "invalid header value for %q", name)
		}
		hdr.Add(name, value)
	}
	return hdr, nil
}

// attachFraming decides BodyKind/ContentLength from the Content-Length
// and Transfer-Encoding headers, rejecting conflicting or unsupported
// framing per §3's invariant and §4.1's tie-breaks.
func attachFraming(req *Request) error {
	teValues := req.Header.Values("Transfer-Encoding")
	clValues := req.Header.Values("Content-Length")

	hasTE := len(teValues) > 0
	hasCL := len(clValues) > 0

	if hasTE && hasCL {
		return newErr(KindMalformed, "both Content-Length and Transfer-Encoding present")
	}

	if hasTE {
		for _, v := range teValues {
			for _, coding := range strings.Split(v, ",") {
				coding = strings.ToLower(strings.TrimSpace(coding))
				if coding != "chunked" {
					return newErr(KindUnsupported, "unsupported transfer-coding %q", coding)
				}
			}
		}
		req.BodyKind = BodyChunked
		return nil
	}

	if hasCL {
		first := strings.TrimSpace(clValues[0])
		for _, v := range clValues[1:] {
			if strings.TrimSpace(v) != first {
				return newErr(KindMalformed, "conflicting Content-Length values")
			}
		}
		n, err := strconv.ParseInt(first, 10, 64)
		if err != nil || n < 0 {
			return newErr(KindMalformed, "invalid Content-Length %q", first)
		}
		if n == 0 {
			req.BodyKind = BodyNone
			return nil
		}
		req.BodyKind = BodyContentLength
		req.ContentLength = n
		return nil
	}

	req.BodyKind = BodyNone
	return nil
}
