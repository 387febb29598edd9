// Package conn implements the per-connection state machine of §4.5: read
// a request head, attach its body, dispatch to the router-provided
// handler, write the response, and decide whether the connection is
// reused for another request or closed.
package conn

import (
	"bufio"
	"net"
	"os"
)

// requestLineBudget sizes the connection's read buffer so a full request
// head can usually be parsed out of a single underlying Read, matching
// the teacher's buffered-reader-per-connection pattern.
const requestLineBudget = 8 << 10

// Connection carries the identity and transport state of one accepted
// socket, per §3: a monotonically increasing id assigned at accept, the
// underlying socket, the peer address, and the buffered reader the
// driver parses request heads out of across the connection's lifetime.
type Connection struct {
	ID   uint64
	Sock net.Conn
	Peer net.Addr

	// FD is the raw, non-blocking socket descriptor registered with the
	// readiness poller. File keeps it open for the connection's lifetime
	// since Sock (built via net.FileConn) operates on its own duplicate.
	FD   int
	File *os.File

	reader *bufio.Reader

	// leftover holds bytes the driver already pulled out of reader while
	// accumulating a request head but that belong to what follows it
	// (the request's body, or the next pipelined request's head).
	// attachBody reads the body's share of it first, and readRequestHead
	// drains the rest before touching reader again, so the
	// same reader instance serves the connection's whole lifetime
	// instead of growing a new wrapper layer per request.
	leftover []byte

	// written tracks whether any response bytes have reached the socket
	// for the in-flight request, so an error mid-write is classified as
	// "close" rather than "write a second response" per §7.
	written bool
}

// NewConnection wraps an accepted socket, assigning it id. fd/file are the
// raw descriptor the poller tracks; sock is the net.Conn the driver
// performs deadline-aware reads/writes through. The buffered reader
// persists across keep-alive requests so bytes read ahead for one
// request are not lost when parsing the next.
func NewConnection(id uint64, fd int, file *os.File, sock net.Conn) *Connection {
	return &Connection{
		ID:     id,
		Sock:   sock,
		Peer:   sock.RemoteAddr(),
		FD:     fd,
		File:   file,
		reader: bufio.NewReaderSize(sock, requestLineBudget),
	}
}

// Close closes both the net.Conn and the raw descriptor kept alive for
// poller registration.
func (c *Connection) Close() error {
	err := c.Sock.Close()
	if ferr := c.File.Close(); err == nil {
		err = ferr
	}
	return err
}
