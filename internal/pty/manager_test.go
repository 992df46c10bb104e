package pty

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/huanchong-99/gitcortex/internal/logger"
)

func TestManagerSpawnWriteAndSubscribe(t *testing.T) {
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "debug", Format: "text", OutputPath: "stdout"})
	require.NoError(t, err)

	m := NewManager(4096, log)

	pid, err := m.Spawn("term-1", SpawnOptions{
		Command: "/bin/cat",
		Cols:    80,
		Rows:    24,
	})
	require.NoError(t, err)
	require.Greater(t, pid, 0)
	defer m.Close("term-1")

	_, ch, unsub, err := m.Subscribe("term-1", 16)
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, m.Write("term-1", []byte("ping\n")))

	var received strings.Builder
	deadline := time.After(3 * time.Second)
	for !strings.Contains(received.String(), "ping") {
		select {
		case chunk := <-ch:
			received.WriteString(chunk.Text)
		case <-deadline:
			t.Fatalf("timed out waiting for echo, got %q", received.String())
		}
	}
}

func TestManagerSpawnDuplicateTerminalIDFails(t *testing.T) {
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "info", Format: "text", OutputPath: "stdout"})
	require.NoError(t, err)
	m := NewManager(4096, log)

	_, err = m.Spawn("term-dup", SpawnOptions{Command: "/bin/cat"})
	require.NoError(t, err)
	defer m.Close("term-dup")

	_, err = m.Spawn("term-dup", SpawnOptions{Command: "/bin/cat"})
	require.ErrorIs(t, err, ErrTerminalExists)
}

func TestManagerOperationsOnUnknownTerminal(t *testing.T) {
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "info", Format: "text", OutputPath: "stdout"})
	require.NoError(t, err)
	m := NewManager(4096, log)

	require.ErrorIs(t, m.Write("missing", []byte("x")), ErrTerminalNotFound)
	require.ErrorIs(t, m.Close("missing"), ErrTerminalNotFound)
	require.False(t, m.IsAlive("missing"))
}
