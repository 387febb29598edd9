package httpmsg

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ChunkedReader decodes an HTTP chunked transfer-coding body, per
// §4.1: size-line in hex (chunk extensions ignored), CRLF, data, CRLF,
// terminated by a zero-size chunk followed by optional trailers and an
// empty line. Used for chunked request bodies, which the spec treats as
// optional to support (§9).
type ChunkedReader struct {
	r       *bufio.Reader
	remain  int64
	done    bool
	trailer error
}

// NewChunkedReader wraps r to decode chunked framing.
func NewChunkedReader(r *bufio.Reader) *ChunkedReader {
	return &ChunkedReader{r: r}
}

func (c *ChunkedReader) Read(p []byte) (int, error) {
	if c.done {
		return 0, io.EOF
	}
	if c.remain == 0 {
		if err := c.nextChunkSize(); err != nil {
			return 0, err
		}
		if c.remain == 0 {
			c.done = true
			if err := c.readTrailer(); err != nil {
				return 0, err
			}
			return 0, io.EOF
		}
	}

	if int64(len(p)) > c.remain {
		p = p[:c.remain]
	}
	n, err := c.r.Read(p)
	c.remain -= int64(n)
	if err != nil {
		return n, err
	}
	if c.remain == 0 {
		if _, err := c.r.Discard(2); err != nil { // trailing CRLF after chunk data
			return n, err
		}
	}
	return n, nil
}

func (c *ChunkedReader) nextChunkSize() error {
	line, err := c.r.ReadString('\n')
	if err != nil {
		return err
	}
	line = strings.TrimRight(line, "\r\n")
	if idx := strings.IndexByte(line, ';'); idx != -1 {
		line = line[:idx] // chunk extensions are ignored
	}
	size, err := strconv.ParseInt(strings.TrimSpace(line), 16, 64)
	if err != nil || size < 0 {
		return newErr(KindMalformed, "invalid chunk size %q", line)
	}
	c.remain = size
	return nil
}

func (c *ChunkedReader) readTrailer() error {
	for {
		line, err := c.r.ReadString('\n')
		if err != nil {
			return err
		}
		if strings.TrimRight(line, "\r\n") == "" {
			return nil
		}
	}
}

// ChunkedWriter streams a response body as chunked transfer-coding,
// never buffering the full body: each Write becomes its own
// "<hex-size>CRLF<data>CRLF", and Close emits the terminating
// "0CRLF CRLF", per §4.1.
type ChunkedWriter struct {
	w io.Writer
}

// NewChunkedWriter wraps w to emit chunked framing.
func NewChunkedWriter(w io.Writer) *ChunkedWriter {
	return &ChunkedWriter{w: w}
}

func (c *ChunkedWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if _, err := fmt.Fprintf(c.w, "%x\r\n", len(p)); err != nil {
		return 0, err
	}
	n, err := c.w.Write(p)
	if err != nil {
		return n, err
	}
	if _, err := c.w.Write(crlf); err != nil {
		return n, err
	}
	return n, nil
}

// Close writes the terminating zero-size chunk and empty trailer line.
func (c *ChunkedWriter) Close() error {
	_, err := c.w.Write([]byte("0\r\n\r\n"))
	return err
}

var crlf = []byte("\r\n")
