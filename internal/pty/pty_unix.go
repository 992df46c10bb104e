//go:build !windows

package pty

import (
	"os"
	"os/exec"

	"github.com/creack/pty"
)

// unixHandle wraps the master side of a Unix pseudo-terminal.
type unixHandle struct {
	f   *os.File
	cmd *exec.Cmd
}

// Spawn starts opts.Command inside a new pseudo-terminal.
func Spawn(opts SpawnOptions) (Handle, error) {
	cmd := exec.Command(opts.Command, opts.Args...)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env

	f, err := pty.StartWithSize(cmd, &pty.Winsize{
		Cols: opts.Cols,
		Rows: opts.Rows,
	})
	if err != nil {
		return nil, err
	}

	return &unixHandle{f: f, cmd: cmd}, nil
}

func (h *unixHandle) Read(p []byte) (int, error)  { return h.f.Read(p) }
func (h *unixHandle) Write(p []byte) (int, error) { return h.f.Write(p) }
func (h *unixHandle) Close() error                { return h.f.Close() }

func (h *unixHandle) Resize(cols, rows uint16) error {
	return pty.Setsize(h.f, &pty.Winsize{Cols: cols, Rows: rows})
}

func (h *unixHandle) Pid() int {
	if h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}
