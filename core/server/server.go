// Package server implements the Server facade of §4.6: binds a listener,
// registers it with the readiness poller, drives the accept loop, and
// wires every accepted connection through the worker pool and connection
// driver, owning the shutdown sequence.
//
// Grounded on the original implementation's Server (lib.rs: a stop flag,
// an acceptor thread, a handle_busy 503 path) restructured around the
// elastic pool and one-shot poller in the idiom of the teacher's
// Engine.Run accept loop (core/engine.go): accept in a loop until
// EWOULDBLOCK, a dedicated goroutine scanning for idle connections
// separate from the accept loop itself.
package server

import (
	"log"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/originhttp/originserver/core/conn"
	"github.com/originhttp/originserver/core/httpmsg"
	"github.com/originhttp/originserver/core/pool"
	"github.com/originhttp/originserver/core/poller"
	"github.com/originhttp/originserver/core/timeouts"
)

// listenerID is the sentinel poller id bound to the listening socket;
// accepted connections are assigned ids starting at 1 so they never
// collide with it.
const listenerID = 0

// idleScanInterval is how often the idle reaper wakes to check
// keep-alive deadlines, grounded on the teacher's cleanupIdleConnections
// ticker.
const idleScanInterval = time.Second

// Options configures a Server, covering every tunable §6 names:
// Timeouts, pool min/max, header limits, and the body-buffering
// threshold.
type Options struct {
	PoolMin, PoolMax    int
	IdleInterval        time.Duration // worker pool above-floor reap interval; 0 uses pool.DefaultIdleInterval
	Timeouts            timeouts.Timeouts
	Limits              httpmsg.Limits
	BodyBufferThreshold int64
	ShutdownGrace       time.Duration // 0 uses a 30s default
	Logger              *log.Logger
}

// tracked is what the server keeps per live connection: the connection
// itself and, while it is parked in the poller awaiting its next
// request, the deadline the idle reaper enforces. A zero idleDeadline
// means the connection is not currently idle-tracked (e.g. a worker has
// it checked out).
type tracked struct {
	c            *conn.Connection
	idleDeadline time.Time
}

// Server is the control surface of §6: New, Run, Wait, Shutdown.
type Server struct {
	router conn.Router
	opts   Options
	log    *log.Logger

	ln     net.Listener
	lnFile *os.File
	lnFD   int

	poll   poller.Poller
	pool   *pool.Pool
	driver *conn.Driver

	nextID atomic.Uint64

	mu    sync.Mutex
	conns map[uint64]*tracked

	stop     chan struct{}
	acceptWG sync.WaitGroup
	reaperWG sync.WaitGroup

	runErrMu sync.Mutex
	runErr   error

	started  atomic.Bool
	done     chan struct{}
	doneOnce sync.Once
}

// New constructs a Server bound to router but not yet listening; call
// Run to start accepting.
func New(router conn.Router, opts Options) *Server {
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = 30 * time.Second
	}
	if opts.IdleInterval <= 0 {
		opts.IdleInterval = pool.DefaultIdleInterval
	}
	s := &Server{
		router: router,
		opts:   opts,
		log:    opts.Logger,
		conns:  make(map[uint64]*tracked),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	s.driver = conn.NewDriver(router, opts.Timeouts, opts.Limits, opts.BodyBufferThreshold, opts.Logger)
	s.nextID.Store(1)
	return s
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

// Run binds addr, registers the listener with the poller, and starts the
// acceptor and idle-reaper goroutines, returning control to the caller
// immediately per §6's "non-blocking start" contract.
func (s *Server) Run(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return errNotTCP
	}
	lnFile, err := tcpLn.File()
	if err != nil {
		ln.Close()
		return err
	}
	lnFD := int(lnFile.Fd())
	if err := unix.SetNonblock(lnFD, true); err != nil {
		lnFile.Close()
		ln.Close()
		return err
	}

	p, err := poller.New()
	if err != nil {
		lnFile.Close()
		ln.Close()
		return err
	}
	if err := p.Add(listenerID, lnFD, poller.Interest{Readable: true}); err != nil {
		p.Close()
		lnFile.Close()
		ln.Close()
		return err
	}

	s.ln = ln
	s.lnFile = lnFile
	s.lnFD = lnFD
	s.poll = p
	s.pool = pool.New(s.opts.PoolMin, s.opts.PoolMax, s.opts.IdleInterval, s.log)

	s.logf("server: listening on %s", ln.Addr())

	s.acceptWG.Add(1)
	go s.acceptLoop()
	s.reaperWG.Add(1)
	go s.idleReapLoop()

	s.started.Store(true)
	return nil
}

// Wait blocks until the server stops, via Shutdown or a fatal accept-loop
// error, per §6.
func (s *Server) Wait() error {
	<-s.done
	s.runErrMu.Lock()
	defer s.runErrMu.Unlock()
	return s.runErr
}

// Shutdown signals the acceptor to stop, closes the listener, drains the
// worker pool, and joins both the acceptor and the idle reaper, per §5's
// shutdown sequence: signal -> acceptor exits -> pool shutdown -> join.
func (s *Server) Shutdown() error {
	if !s.started.Load() {
		return errNotStarted
	}
	select {
	case <-s.stop:
		return nil // already shutting down
	default:
		close(s.stop)
	}

	s.ln.Close()
	s.poll.Close()

	s.acceptWG.Wait()
	s.reaperWG.Wait()

	var shutdownErr error
	if s.pool != nil {
		shutdownErr = s.pool.Shutdown(s.opts.ShutdownGrace)
	}

	s.mu.Lock()
	for id, t := range s.conns {
		t.c.Close()
		delete(s.conns, id)
	}
	s.mu.Unlock()

	s.lnFile.Close()
	s.setRunErr(nil)
	s.signalDone()
	return shutdownErr
}

func (s *Server) setRunErr(err error) {
	s.runErrMu.Lock()
	if s.runErr == nil {
		s.runErr = err
	}
	s.runErrMu.Unlock()
}

func (s *Server) signalDone() {
	s.doneOnce.Do(func() { close(s.done) })
}
