/*
Package originserver is an experimental HTTP/1.1 origin server: a
connection acceptor driven by a readiness poller, an elastic worker
pool, and an HTTP/1.1 message codec, wired together around the
keep-alive state machine that decides when a connection goes back to
the poller and when it closes.

Scope

This is not a general-purpose web framework. It implements RFC
7230/7231's request-line parsing, Content-Length and chunked framing,
persistent connections, Expect: 100-continue, and the Host requirement
for HTTP/1.1 — nothing above that layer. HTTP/2, HTTP/3, request
pipelining, and content negotiation are out of scope.

Quick Start

	package main

	import (
	    "github.com/originhttp/originserver/config"
	    "github.com/originhttp/originserver/core/httpmsg"
	    "github.com/originhttp/originserver/core/server"
	    "github.com/originhttp/originserver/router"
	)

	func main() {
	    cfg := config.New()

	    routes := router.New()
	    routes.Add("GET", "/", func(req *httpmsg.Request) *httpmsg.Response {
	        return httpmsg.NewTextResponse(200, "hello world")
	    })
	    routes.Freeze()

	    srv := server.New(routes, server.Options{
	        PoolMin:  cfg.PoolMin,
	        PoolMax:  cfg.PoolMax,
	        Timeouts: cfg.Timeouts(),
	        Limits:   cfg.Limits(),
	    })
	    if err := srv.Run(cfg.Addr); err != nil {
	        panic(err)
	    }
	    srv.Wait()
	}

Modules

The core is three tightly coupled packages and a handful of
collaborators built around them:

  - core/httpmsg: the HTTP/1.1 message codec — request-head parsing,
    chunked transfer-coding, response serialization.
  - core/poller: the readiness poller — epoll on Linux, kqueue on
    BSD/macOS, one-shot registration keyed by an opaque id rather than a
    raw file descriptor.
  - core/pool: the elastic worker pool — a permanent floor of
    goroutines, on-demand expansion to a ceiling, idle reaping above the
    floor.
  - core/conn: the per-connection driver tying the codec to one
    request/response cycle and deciding keep-alive vs. close.
  - core/server: the facade binding a listener, the poller, and the
    pool into the accept loop and its shutdown sequence.
  - core/timeouts: per-phase read/write deadlines applied to a
    connection at each stage of the driver's state machine.
  - router: a radix-tree router implementing the Find(method, path)
    interface core/conn consumes.
  - handlers: request logging middleware and static file serving.
  - config: flag-based configuration for every tunable the server
    exposes.
  - cmd/originserver: an example program wiring the above together.

See cmd/originserver for a complete, runnable example.
*/
package originserver
