package handlers

import (
	"log"
	"time"

	"github.com/originhttp/originserver/core/conn"
	"github.com/originhttp/originserver/core/httpmsg"
)

// Logging wraps next with request logging: method, target, resulting
// status, and elapsed duration, per the original's log_middleware
// referenced in lib.rs's doc example. A nil logger logs nothing.
func Logging(logger *log.Logger, next conn.Handler) conn.Handler {
	return func(req *httpmsg.Request) *httpmsg.Response {
		start := time.Now()
		resp := next(req)
		if logger != nil {
			logger.Printf("%s %s -> %d (%s)", req.Method, req.Target, resp.Status, time.Since(start))
		}
		return resp
	}
}
