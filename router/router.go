// Package router is the trie-based router named as a collaborator, out
// of core scope, in §1: a simple radix/prefix lookup keyed by exact
// path, specified only at the interface core/conn.Router consumes.
//
// Adapted from the teacher's core/router/radix.go (node, addRoute,
// getValue) with the named-param wildcard machinery dropped — the spec
// calls for "simple prefix lookup" (§1), not path parameters — while
// longestCommonPrefix-based edge splitting is kept for the static tree,
// and a trailing "/*" catch-all mount (see catchAllRoute) stands in for
// the teacher's catch-all wildcard for handlers that need a path
// prefix rather than an exact match. Also adds Freeze() per §9's
// "freezing at server start is an invariant to enforce at the type
// level where possible" and the registered-methods list §6's 405
// handling needs.
package router

import (
	"sort"
	"strings"

	"github.com/originhttp/originserver/core/conn"
)

type node struct {
	path     string
	indices  string
	children []*node
	handlers map[string]conn.Handler
}

// catchAllRoute is a trailing "/*" mount, matched by prefix rather than
// by the radix tree, per §6's allowance for "trie-prefix semantics as
// the router defines" — the teacher's radix tree supports a named
// catch-all wildcard (findWildcard/catchAll in radix.go); since no
// handler here consumes the captured suffix as a parameter, that's
// simplified to a plain prefix match.
type catchAllRoute struct {
	prefix   string
	handlers map[string]conn.Handler
}

// Router is a radix-tree prefix router. The zero value is not usable;
// use New.
type Router struct {
	root      *node
	catchAlls []catchAllRoute
	frozen    bool
}

// New returns an empty, mutable Router.
func New() *Router {
	return &Router{root: &node{handlers: make(map[string]conn.Handler)}}
}

// Add registers handler for method and path. Path must begin with '/'.
// A path ending in "/*" is a catch-all mount matching any path sharing
// that prefix, useful for handlers.StaticFile. Add panics if called
// after Freeze, per §9's invariant that the router is read-only once
// the server starts.
func (r *Router) Add(method, path string, handler conn.Handler) {
	if r.frozen {
		panic("router: Add called after Freeze")
	}
	if len(path) == 0 || path[0] != '/' {
		panic("router: path must begin with '/'")
	}
	if strings.HasSuffix(path, "/*") {
		prefix := path[:len(path)-1]
		for i := range r.catchAlls {
			if r.catchAlls[i].prefix == prefix {
				r.catchAlls[i].handlers[method] = handler
				return
			}
		}
		r.catchAlls = append(r.catchAlls, catchAllRoute{
			prefix:   prefix,
			handlers: map[string]conn.Handler{method: handler},
		})
		return
	}
	r.root.addRoute(method, path, handler)
}

// Freeze marks the router read-only. Subsequent calls to Add panic.
// Find is safe for concurrent use without locking only after Freeze,
// per §5's "constructed single-threaded, frozen before the server
// starts, read-only thereafter" contract.
func (r *Router) Freeze() {
	r.frozen = true
}

// Find looks up method and path per the interface §6 names: ok is true
// and handler is non-nil only when method is registered for an exact
// path match or, failing that, for the longest matching "/*" catch-all
// prefix. If path matches some registered route but method does not, ok
// is false and
// allowed lists every method registered for that path (for the driver's
// 405 Allow header). If path matches nothing, allowed is nil.
func (r *Router) Find(method, path string) (conn.Handler, []string, bool) {
	if n := r.root.getValue(path); n != nil && len(n.handlers) > 0 {
		if h, ok := n.handlers[method]; ok {
			return h, nil, true
		}
		return nil, allowedMethods(n.handlers), false
	}

	if ca := r.longestCatchAll(path); ca != nil {
		if h, ok := ca.handlers[method]; ok {
			return h, nil, true
		}
		return nil, allowedMethods(ca.handlers), false
	}

	return nil, nil, false
}

// longestCatchAll returns the catch-all registration whose prefix is a
// prefix of path and longest among those that match, nil if none do.
func (r *Router) longestCatchAll(path string) *catchAllRoute {
	var best *catchAllRoute
	for i := range r.catchAlls {
		ca := &r.catchAlls[i]
		if !strings.HasPrefix(path, ca.prefix) {
			continue
		}
		if best == nil || len(ca.prefix) > len(best.prefix) {
			best = ca
		}
	}
	return best
}

func allowedMethods(handlers map[string]conn.Handler) []string {
	methods := make([]string, 0, len(handlers))
	for m := range handlers {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

func (n *node) addRoute(method, path string, handler conn.Handler) {
	if n.path == "" && len(n.children) == 0 && len(n.handlers) == 0 {
		n.path = path
		n.handlers[method] = handler
		return
	}

	for {
		i := longestCommonPrefix(path, n.path)

		if i < len(n.path) {
			child := &node{
				path:     n.path[i:],
				indices:  n.indices,
				children: n.children,
				handlers: n.handlers,
			}
			n.children = []*node{child}
			n.indices = string(n.path[i])
			n.path = path[:i]
			n.handlers = make(map[string]conn.Handler)
		}

		if i < len(path) {
			path = path[i:]
			idxc := path[0]

			childFound := false
			for j, c := range []byte(n.indices) {
				if c == idxc {
					n = n.children[j]
					childFound = true
					break
				}
			}
			if childFound {
				continue
			}

			n.indices += string(idxc)
			child := &node{handlers: make(map[string]conn.Handler)}
			n.children = append(n.children, child)
			n = child
			n.path = path
			n.handlers[method] = handler
			return
		}

		if n.handlers == nil {
			n.handlers = make(map[string]conn.Handler)
		}
		n.handlers[method] = handler
		return
	}
}

func (n *node) getValue(path string) *node {
	for {
		prefix := n.path
		if path == prefix {
			return n
		}
		if len(path) <= len(prefix) || path[:len(prefix)] != prefix {
			return nil
		}
		path = path[len(prefix):]
		idxc := path[0]

		childFound := false
		for i, c := range []byte(n.indices) {
			if c == idxc {
				n = n.children[i]
				childFound = true
				break
			}
		}
		if !childFound {
			return nil
		}
	}
}

func longestCommonPrefix(a, b string) int {
	i := 0
	max := len(a)
	if len(b) < max {
		max = len(b)
	}
	for i < max && a[i] == b[i] {
		i++
	}
	return i
}
