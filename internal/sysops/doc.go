// Package sysops implements the dispatch capabilities against the local
// host: gopsutil for metrics, processes and sockets, discrete-argv exec for
// service managers and ping, and plain TCP dials for port probes.
package sysops

import "errors"

var (
	ErrInvalidPID      = errors.New("invalid PID")
	ErrCriticalProcess = errors.New("refusing to terminate critical process")
	ErrInvalidService  = errors.New("invalid service")
	ErrInvalidHost     = errors.New("invalid host")
)
