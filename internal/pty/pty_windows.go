//go:build windows

package pty

import (
	"fmt"
	"os"
	"strings"

	"github.com/UserExistsError/conpty"
)

// windowsHandle wraps a Windows ConPTY session.
type windowsHandle struct {
	cpty *conpty.ConPty
	pid  int
}

// Spawn starts opts.Command inside a new ConPTY session.
func Spawn(opts SpawnOptions) (Handle, error) {
	cmdline := buildCmdLine(opts.Command, opts.Args)

	cpty, err := conpty.Start(
		cmdline,
		conpty.ConPtyDimensions(int(opts.Cols), int(opts.Rows)),
		conpty.ConPtyWorkDir(opts.Dir),
		conpty.ConPtyEnv(opts.Env),
	)
	if err != nil {
		return nil, err
	}

	pid := 0
	if proc, err := os.FindProcess(int(cpty.Pid())); err == nil && proc != nil {
		pid = proc.Pid
	}

	return &windowsHandle{cpty: cpty, pid: pid}, nil
}

func (h *windowsHandle) Read(p []byte) (int, error)  { return h.cpty.Read(p) }
func (h *windowsHandle) Write(p []byte) (int, error) { return h.cpty.Write(p) }
func (h *windowsHandle) Close() error                { return h.cpty.Close() }

func (h *windowsHandle) Resize(cols, rows uint16) error {
	return h.cpty.Resize(int(cols), int(rows))
}

func (h *windowsHandle) Pid() int {
	return h.pid
}

func buildCmdLine(command string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, quoteIfNeeded(command))
	for _, a := range args {
		parts = append(parts, quoteIfNeeded(a))
	}
	return strings.Join(parts, " ")
}

func quoteIfNeeded(s string) string {
	if strings.ContainsAny(s, " \t\"") {
		return fmt.Sprintf("%q", s)
	}
	return s
}
