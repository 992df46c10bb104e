// Package pty spawns interactive CLI processes behind a pseudo-terminal,
// fans their output out to subscribers with bounded replay, and tracks one
// process per Terminal.
package pty

import "io"

// Handle abstracts PTY operations across Unix (creack/pty) and Windows
// (ConPTY) backends.
type Handle interface {
	io.ReadWriteCloser
	Resize(cols, rows uint16) error
	Pid() int
}

// SpawnOptions configures a new PTY-wrapped process.
type SpawnOptions struct {
	Command string
	Args    []string
	Dir     string
	Env     []string
	Cols    uint16
	Rows    uint16
}
