// Command originserver is the example program §6 exit codes describe:
// wire config.Config into a router.Router and a server.Server and run
// until a signal or a fatal server error, grounded on the teacher's
// app.App (app/app.go) and the original's lib.rs doc example.
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/originhttp/originserver/config"
	"github.com/originhttp/originserver/core/httpmsg"
	"github.com/originhttp/originserver/core/server"
	"github.com/originhttp/originserver/handlers"
	"github.com/originhttp/originserver/router"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetPrefix("originserver: ")

	cfg := config.New()
	logger := log.Default()

	routes := router.New()
	routes.Add("GET", "/", handlers.Logging(logger, func(req *httpmsg.Request) *httpmsg.Response {
		return httpmsg.NewTextResponse(200, "hello world")
	}))
	routes.Add("GET", "/healthz", handlers.Logging(logger, func(req *httpmsg.Request) *httpmsg.Response {
		return httpmsg.NewTextResponse(200, "ok")
	}))
	if cfg.StaticRoot != "" {
		routes.Add("GET", "/static/*", handlers.Logging(logger, handlers.StaticFile(cfg.StaticRoot)))
	}
	routes.Freeze()

	srv := server.New(routes, server.Options{
		PoolMin:             cfg.PoolMin,
		PoolMax:             cfg.PoolMax,
		IdleInterval:        cfg.IdleInterval(),
		Timeouts:            cfg.Timeouts(),
		Limits:              cfg.Limits(),
		BodyBufferThreshold: cfg.MaxBodyBufferBytes,
		ShutdownGrace:       cfg.ShutdownGrace,
		Logger:              logger,
	})

	if err := srv.Run(cfg.Addr); err != nil {
		log.Printf("startup failed: %v", err)
		os.Exit(1)
	}
	log.Printf("listening on %s", cfg.Addr)

	go awaitSignal(srv)

	if err := srv.Wait(); err != nil {
		log.Printf("server stopped with error: %v", err)
		os.Exit(1)
	}
	os.Exit(0)
}

func awaitSignal(srv *server.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("signal received: %v, shutting down", sig)
	if err := srv.Shutdown(); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
