package orchestrator

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/huanchong-99/gitcortex/internal/bus"
	"github.com/huanchong-99/gitcortex/internal/logger"
	"github.com/huanchong-99/gitcortex/internal/pty"
)

// TerminalMessageEvent is the payload carried on terminal:{pty_session_id}
// instructing the bridge to write message to that PTY's stdin.
type TerminalMessageEvent struct {
	Message string `json:"message"`
}

// Bridge subscribes to one terminal's bus topic and forwards TerminalMessage
// payloads to its PTY stdin, serialized per PTY by pty.Manager.Write (spec §4.7).
type Bridge struct {
	ptySessionID string
	pty          *pty.Manager
	bus          bus.EventBus
	log          *logger.Logger
	sub          bus.Subscription
}

// StartBridge subscribes ptySessionID's topic and returns the running Bridge.
// Call Stop to unsubscribe when the PTY closes.
func StartBridge(ptySessionID string, ptyMgr *pty.Manager, eventBus bus.EventBus, log *logger.Logger) (*Bridge, error) {
	b := &Bridge{ptySessionID: ptySessionID, pty: ptyMgr, bus: eventBus, log: log}
	sub, err := eventBus.Subscribe(bus.TerminalTopic(ptySessionID), b.handle)
	if err != nil {
		return nil, err
	}
	b.sub = sub
	return b, nil
}

func (b *Bridge) handle(_ context.Context, event *bus.Event) error {
	if event.Type != bus.EventTerminalMessage {
		return nil
	}
	var payload TerminalMessageEvent
	if err := bus.Decode(event.Data, &payload); err != nil {
		if b.log != nil {
			b.log.Warn("bridge: malformed terminal message", zap.String("pty_session_id", b.ptySessionID), zap.Error(err))
		}
		return nil
	}
	msg := payload.Message
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	return b.pty.Write(b.ptySessionID, []byte(msg))
}

// Stop unsubscribes the bridge from its topic. Safe to call once the PTY has
// closed or when the owning terminal is torn down.
func (b *Bridge) Stop() {
	if b.sub != nil && b.sub.IsValid() {
		_ = b.sub.Unsubscribe()
	}
}

// WatchAndStop runs in its own goroutine: once ptyMgr reports the PTY is no
// longer alive, it stops the bridge. pollEvery governs how often liveness is
// checked (the PTY manager exposes no close-notification channel of its own).
func (b *Bridge) WatchAndStop(pollEvery time.Duration) {
	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()
	for range ticker.C {
		if !b.pty.IsAlive(b.ptySessionID) {
			b.Stop()
			return
		}
	}
}
