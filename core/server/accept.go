package server

import (
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/originhttp/originserver/core/conn"
	"github.com/originhttp/originserver/core/httpmsg"
	"github.com/originhttp/originserver/core/pool"
	"github.com/originhttp/originserver/core/poller"
)

// acceptLoop is the server's single dedicated acceptor goroutine: it
// blocks only in poller.Wait, per §5, fanning listener readiness out to
// acceptConnections and connection readiness out to the worker pool.
func (s *Server) acceptLoop() {
	defer s.acceptWG.Done()

	events := make([]poller.Event, 128)
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		n, err := s.poll.Wait(events, idleScanInterval)
		if err != nil {
			select {
			case <-s.stop:
				return
			default:
			}
			s.logf("server: poller wait: %v", err)
			s.setRunErr(err)
			s.signalDone()
			return
		}

		for i := 0; i < n; i++ {
			ev := events[i]
			if ev.ID == listenerID {
				s.acceptConnections()
				if err := s.poll.Modify(listenerID, poller.Interest{Readable: true}); err != nil {
					select {
					case <-s.stop:
					default:
						s.logf("server: re-arm listener: %v", err)
					}
				}
				continue
			}
			s.handleConnReady(ev.ID)
		}
	}
}

// acceptConnections drains the listener's backlog, per §4.6: accept is
// called in a loop until it returns WouldBlock.
func (s *Server) acceptConnections() {
	for {
		nfd, _, err := unix.Accept4(s.lnFD, unix.SOCK_NONBLOCK)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			select {
			case <-s.stop:
				return
			default:
			}
			s.logf("server: accept: %v", err)
			return
		}
		s.onAccepted(nfd)
	}
}

// onAccepted wraps a freshly accepted, already non-blocking fd as a
// Connection, assigns it an id, and registers it with the poller for
// read-readiness, per §4.6.
func (s *Server) onAccepted(nfd int) {
	file := os.NewFile(uintptr(nfd), "conn")
	sock, err := net.FileConn(file)
	if err != nil {
		s.logf("server: wrap accepted fd %d: %v", nfd, err)
		file.Close()
		return
	}

	id := s.nextID.Add(1) - 1
	c := conn.NewConnection(id, nfd, file, sock)

	s.mu.Lock()
	s.conns[id] = &tracked{c: c}
	s.mu.Unlock()

	if err := s.poll.Add(id, nfd, poller.Interest{Readable: true}); err != nil {
		s.logf("server: register conn %d: %v", id, err)
		s.dropConn(id)
	}
}

// handleConnReady is called from the acceptor when a connection becomes
// read-ready; one-shot semantics mean it will not fire again for this id
// until the worker re-arms it, so the connection is no longer considered
// idle from this point.
func (s *Server) handleConnReady(id uint64) {
	s.mu.Lock()
	t, ok := s.conns[id]
	if ok {
		t.idleDeadline = time.Time{}
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	c := t.c
	if err := s.pool.Submit(func() { s.runConn(id, c) }); err != nil {
		s.handleSubmitError(id, c, err)
	}
}

// runConn is the unit of work a worker executes: one request/response
// cycle via the driver, then either re-arming the connection for another
// request or dropping it, per §4.5's KeepAlive/Closed transitions.
func (s *Server) runConn(id uint64, c *conn.Connection) {
	switch s.driver.Handle(c) {
	case conn.OutcomeKeepAlive:
		s.rearmKeepAlive(id, c)
	default:
		s.dropConn(id)
	}
}

// rearmKeepAlive returns c to the poller with read interest and starts
// its keep-alive idle deadline, per §4.5's KeepAlive state.
func (s *Server) rearmKeepAlive(id uint64, c *conn.Connection) {
	select {
	case <-s.stop:
		s.dropConn(id)
		return
	default:
	}

	s.mu.Lock()
	t, ok := s.conns[id]
	if ok {
		var deadline time.Time
		if s.opts.Timeouts.KeepAliveIdle > 0 {
			deadline = time.Now().Add(s.opts.Timeouts.KeepAliveIdle)
		}
		t.idleDeadline = deadline
	}
	s.mu.Unlock()
	if !ok {
		c.Close()
		return
	}

	if err := s.poll.Modify(id, poller.Interest{Readable: true}); err != nil {
		s.logf("server: re-arm conn %d: %v", id, err)
		s.dropConn(id)
	}
}

// handleSubmitError applies §7's PoolBusy/ShuttingDown dispositions: a
// busy pool gets a best-effort 503 before the connection is dropped; a
// pool already shutting down just drops it.
func (s *Server) handleSubmitError(id uint64, c *conn.Connection, err error) {
	switch err {
	case pool.ErrBusy:
		s.logf("server: pool busy, rejecting conn %d", id)
		writeServiceUnavailable(c)
	case pool.ErrShuttingDown:
		// no response; the connection is going away with the server
	default:
		s.logf("server: submit conn %d: %v", id, err)
	}
	s.dropConn(id)
}

// writeServiceUnavailable is the handle_busy analogue grounded on the
// original implementation's lib.rs: send a 503 on a short deadline,
// best-effort.
func writeServiceUnavailable(c *conn.Connection) {
	c.Sock.SetWriteDeadline(time.Now().Add(2 * time.Second))
	resp := httpmsg.NewTextResponse(503, "service unavailable")
	resp.WriteTo(c.Sock)
}

// dropConn deregisters and closes a connection, idempotent against a
// connection that has already been dropped.
func (s *Server) dropConn(id uint64) {
	s.mu.Lock()
	t, ok := s.conns[id]
	if ok {
		delete(s.conns, id)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	s.poll.Delete(id)
	t.c.Close()
}

// idleReapLoop periodically closes connections that have been parked in
// the poller past their keep-alive idle deadline, grounded on the
// teacher's cleanupIdleConnections ticker.
func (s *Server) idleReapLoop() {
	defer s.reaperWG.Done()

	ticker := time.NewTicker(idleScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.reapIdle()
		}
	}
}

func (s *Server) reapIdle() {
	now := time.Now()
	var expired []uint64

	s.mu.Lock()
	for id, t := range s.conns {
		if !t.idleDeadline.IsZero() && now.After(t.idleDeadline) {
			expired = append(expired, id)
		}
	}
	s.mu.Unlock()

	for _, id := range expired {
		s.dropConn(id)
	}
}
