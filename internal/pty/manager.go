package pty

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/huanchong-99/gitcortex/internal/logger"
	"github.com/huanchong-99/gitcortex/internal/ptyio"
)

// ErrTerminalNotFound is returned for operations against an unknown terminal ID.
var ErrTerminalNotFound = errors.New("pty: terminal not found")

// ErrTerminalExists is returned when spawning with a terminal ID already in use.
var ErrTerminalExists = errors.New("pty: terminal already spawned")

type process struct {
	handle  Handle
	fanout  *Fanout
	writeMu sync.Mutex
	done    chan struct{}
}

// Manager owns one PTY-wrapped process per Terminal ID and fans each
// process's decoded output out to subscribers.
type Manager struct {
	mu          sync.RWMutex
	procs       map[string]*process
	replayBytes int
	log         *logger.Logger
}

// NewManager returns a Manager whose fanouts retain up to replayBytes of
// output history per terminal.
func NewManager(replayBytes int, log *logger.Logger) *Manager {
	return &Manager{
		procs:       make(map[string]*process),
		replayBytes: replayBytes,
		log:         log,
	}
}

// Spawn starts a new PTY-wrapped process for terminalID and begins
// streaming its decoded output into that terminal's Fanout.
func (m *Manager) Spawn(terminalID string, opts SpawnOptions) (int, error) {
	m.mu.Lock()
	if _, exists := m.procs[terminalID]; exists {
		m.mu.Unlock()
		return 0, ErrTerminalExists
	}
	m.mu.Unlock()

	handle, err := Spawn(opts)
	if err != nil {
		return 0, fmt.Errorf("pty: spawn %s: %w", terminalID, err)
	}

	p := &process{
		handle: handle,
		fanout: NewFanout(m.replayBytes),
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	m.procs[terminalID] = p
	m.mu.Unlock()

	go m.pump(terminalID, p)

	return handle.Pid(), nil
}

func (m *Manager) pump(terminalID string, p *process) {
	defer close(p.done)
	defer p.fanout.Close()

	dec := ptyio.NewDecoder()
	buf := make([]byte, 32*1024)
	for {
		n, err := p.handle.Read(buf)
		if n > 0 {
			res := dec.Feed(buf[:n])
			if res.DroppedInvalidBytes > 0 && m.log != nil {
				m.log.Debug("terminal pty output contained invalid UTF-8",
					zap.String("terminal_id", terminalID),
					zap.Int("dropped_bytes", res.DroppedInvalidBytes))
			}
			p.fanout.Publish(res.Text)
		}
		if err != nil {
			if tail := dec.Flush(); tail != "" {
				p.fanout.Publish(tail)
			}
			if m.log != nil {
				m.log.Debug("terminal pty closed", zap.String("terminal_id", terminalID), zap.Error(err))
			}
			return
		}
	}
}

// Write sends bytes to the terminal's stdin (e.g. the prompt watcher's
// auto-response, or an operator's keystrokes).
func (m *Manager) Write(terminalID string, data []byte) error {
	p, err := m.get(terminalID)
	if err != nil {
		return err
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_, err = p.handle.Write(data)
	return err
}

// Resize changes the terminal's PTY dimensions.
func (m *Manager) Resize(terminalID string, cols, rows uint16) error {
	p, err := m.get(terminalID)
	if err != nil {
		return err
	}
	return p.handle.Resize(cols, rows)
}

// Subscribe attaches to terminalID's output fanout, returning buffered
// replay chunks followed by live chunks on the returned channel.
func (m *Manager) Subscribe(terminalID string, bufferSize int) ([]Chunk, <-chan Chunk, func(), error) {
	return m.SubscribeFrom(terminalID, 0, bufferSize)
}

// SubscribeFrom attaches to terminalID's output fanout starting after
// fromSeq, letting a reconnecting subscriber (e.g. the prompt watcher after
// a restart) resume without re-processing already-seen output.
func (m *Manager) SubscribeFrom(terminalID string, fromSeq uint64, bufferSize int) ([]Chunk, <-chan Chunk, func(), error) {
	p, err := m.get(terminalID)
	if err != nil {
		return nil, nil, nil, err
	}
	replay, ch, unsub := p.fanout.SubscribeFrom(fromSeq, bufferSize)
	return replay, ch, unsub, nil
}

// Close terminates the terminal's process and releases its resources.
func (m *Manager) Close(terminalID string) error {
	m.mu.Lock()
	p, ok := m.procs[terminalID]
	if ok {
		delete(m.procs, terminalID)
	}
	m.mu.Unlock()
	if !ok {
		return ErrTerminalNotFound
	}
	return p.handle.Close()
}

// IsAlive reports whether terminalID's reader goroutine has observed process exit.
func (m *Manager) IsAlive(terminalID string) bool {
	p, err := m.get(terminalID)
	if err != nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (m *Manager) get(terminalID string) (*process, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.procs[terminalID]
	if !ok {
		return nil, ErrTerminalNotFound
	}
	return p, nil
}
