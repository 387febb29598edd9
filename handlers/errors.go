package handlers

import (
	"strings"

	"github.com/originhttp/originserver/core/httpmsg"
)

// NotFound is the body a missing route or static file resolves to; the
// driver's own router-miss path (core/conn.Driver.route) already
// synthesizes an equivalent response, these exist for handlers (like
// StaticFile) that need the same body outside the driver.
func NotFound() *httpmsg.Response {
	return httpmsg.NewTextResponse(404, "not found")
}

// MethodNotAllowed builds a 405 with the Allow header listing the
// methods actually registered for the matched path.
func MethodNotAllowed(allowed []string) *httpmsg.Response {
	resp := httpmsg.NewTextResponse(405, "method not allowed")
	resp.Header.Set("Allow", strings.Join(allowed, ", "))
	return resp
}
