package server

import "errors"

var (
	errNotStarted = errors.New("server: not started")
	errNotTCP     = errors.New("server: listener is not a *net.TCPListener")
)
