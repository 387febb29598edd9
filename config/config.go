// Package config loads the server's tunables from flags, following the
// teacher's config.New() pattern and extended with the full surface
// named in §6: pool bounds, per-phase timeouts, header/body limits, and
// the listen address.
package config

import (
	"flag"
	"os"
	"time"

	"github.com/originhttp/originserver/core/httpmsg"
	"github.com/originhttp/originserver/core/pool"
	"github.com/originhttp/originserver/core/timeouts"
)

// defaultBodyBufferThreshold mirrors conn.DefaultBodyBufferThreshold;
// duplicated as a constant here rather than imported, since config is
// wired into conn.NewDriver by the caller, not the other way around.
const defaultBodyBufferThreshold = 64 << 10

// Config holds every tunable named in §6's server control surface plus
// the listen address and an optional static-file root.
type Config struct {
	Addr string

	PoolMin int
	PoolMax int

	ReadRequestHeadTimeout time.Duration
	ReadRequestBodyTimeout time.Duration
	WriteResponseTimeout   time.Duration
	KeepAliveIdleTimeout   time.Duration

	MaxRequestLineBytes int
	MaxHeaderLineBytes  int
	MaxHeaderCount      int
	MaxBodyBufferBytes  int64

	ShutdownGrace time.Duration

	StaticRoot string
}

// New parses flags (and a PORT/ADDR env override, following the
// teacher's PORT pattern) into a Config seeded with the spec's defaults.
func New() *Config {
	limits := httpmsg.DefaultLimits()
	to := timeouts.Default()
	cfg := &Config{}

	flag.StringVar(&cfg.Addr, "addr", "127.0.0.1:8080", "listen address")
	flag.IntVar(&cfg.PoolMin, "pool-min", 4, "permanent floor of worker goroutines")
	flag.IntVar(&cfg.PoolMax, "pool-max", 64, "ceiling of worker goroutines")
	flag.DurationVar(&cfg.ReadRequestHeadTimeout, "read-head-timeout", to.ReadRequestHead, "deadline for reading a request head")
	flag.DurationVar(&cfg.ReadRequestBodyTimeout, "read-body-timeout", to.ReadRequestBody, "deadline for reading a request body")
	flag.DurationVar(&cfg.WriteResponseTimeout, "write-timeout", to.WriteResponse, "deadline for writing a response")
	flag.DurationVar(&cfg.KeepAliveIdleTimeout, "keep-alive-timeout", to.KeepAliveIdle, "idle deadline between keep-alive requests")
	flag.IntVar(&cfg.MaxRequestLineBytes, "max-request-line-bytes", limits.MaxRequestLineBytes, "maximum request-line size")
	flag.IntVar(&cfg.MaxHeaderLineBytes, "max-header-line-bytes", limits.MaxHeaderLineBytes, "maximum size of a single header line")
	flag.IntVar(&cfg.MaxHeaderCount, "max-header-count", limits.MaxHeaderCount, "maximum number of request headers")
	flag.Int64Var(&cfg.MaxBodyBufferBytes, "max-body-buffer-bytes", defaultBodyBufferThreshold, "bodies at or below this size are materialized, larger bodies stream")
	flag.DurationVar(&cfg.ShutdownGrace, "shutdown-grace", 30*time.Second, "grace period for in-flight handlers to finish on shutdown")
	flag.StringVar(&cfg.StaticRoot, "static-root", "", "directory served by the static file handler, if set")

	flag.Parse()

	if port := os.Getenv("PORT"); port != "" {
		cfg.Addr = hostWithPort(cfg.Addr, port)
	}
	if addr := os.Getenv("ADDR"); addr != "" {
		cfg.Addr = addr
	}

	return cfg
}

// Limits builds the httpmsg.Limits this config describes.
func (c *Config) Limits() httpmsg.Limits {
	return httpmsg.Limits{
		MaxRequestLineBytes: c.MaxRequestLineBytes,
		MaxHeaderLineBytes:  c.MaxHeaderLineBytes,
		MaxHeaderCount:      c.MaxHeaderCount,
	}
}

// Timeouts builds the timeouts.Timeouts this config describes.
func (c *Config) Timeouts() timeouts.Timeouts {
	return timeouts.Timeouts{
		ReadRequestHead: c.ReadRequestHeadTimeout,
		ReadRequestBody: c.ReadRequestBodyTimeout,
		WriteResponse:   c.WriteResponseTimeout,
		KeepAliveIdle:   c.KeepAliveIdleTimeout,
	}
}

// IdleInterval is the worker pool's above-floor idle reap interval. The
// spec names it only as "default 60s" (§4.3) rather than a configurable
// flag, so it reuses the pool package's default.
func (c *Config) IdleInterval() time.Duration {
	return pool.DefaultIdleInterval
}

func hostWithPort(addr, port string) string {
	host := addr
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			host = addr[:i]
			break
		}
	}
	return host + ":" + port
}
