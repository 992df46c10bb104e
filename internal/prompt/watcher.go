package prompt

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/tuzig/vt10x"
	"go.uber.org/zap"

	"github.com/huanchong-99/gitcortex/internal/bus"
	"github.com/huanchong-99/gitcortex/internal/logger"
	"github.com/huanchong-99/gitcortex/internal/pty"
)

// defaultScreenCols/Rows mirror the orchestrator Launcher's default PTY
// dimensions (internal/orchestrator.Launcher.ptyCols/ptyRows).
const (
	defaultScreenCols = 80
	defaultScreenRows = 24
)

// State is the per-terminal prompt state machine (spec §4.5).
type State string

const (
	StateIdle             State = "idle"
	StateDetected         State = "detected"
	StateAwaitingDecision State = "awaiting_decision"
	StateResponded        State = "responded"
)

// DefaultDebounce is the quiescence window before the detector runs on
// accumulated output.
const DefaultDebounce = 200 * time.Millisecond

// TerminalPromptDetectedEvent is published to workflow:{workflow_id} whenever
// the watcher classifies a new prompt.
type TerminalPromptDetectedEvent struct {
	TerminalID  string   `json:"terminal_id"`
	Kind        Kind     `json:"kind"`
	Confidence  float64  `json:"confidence"`
	MatchedText string   `json:"matched_text"`
	Options     []string `json:"options,omitempty"`
	Dangerous   bool     `json:"dangerous"`
}

// Watcher monitors one terminal's output fanout, classifies prompts, and
// publishes TerminalPromptDetected onto the workflow topic.
type Watcher struct {
	terminalID string
	workflowID string
	debounce   time.Duration

	ptyMgr *pty.Manager
	bus    bus.EventBus
	log    *logger.Logger

	cols, rows int
	term       vt10x.Terminal

	mu          sync.Mutex
	state       State
	lastDedup   string
	lastSeq     uint64
	buf         string
	lastWriteAt time.Time

	stop chan struct{}
}

// NewWatcher returns a Watcher that has not yet started consuming output. Its
// virtual screen defaults to defaultScreenCols x defaultScreenRows; call
// WithScreenSize before Run to match a differently-sized PTY.
func NewWatcher(terminalID, workflowID string, ptyMgr *pty.Manager, eventBus bus.EventBus, log *logger.Logger) *Watcher {
	return &Watcher{
		terminalID: terminalID,
		workflowID: workflowID,
		debounce:   DefaultDebounce,
		ptyMgr:     ptyMgr,
		bus:        eventBus,
		log:        log,
		state:      StateIdle,
		stop:       make(chan struct{}),
		cols:       defaultScreenCols,
		rows:       defaultScreenRows,
		term:       vt10x.New(vt10x.WithSize(defaultScreenCols, defaultScreenRows)),
	}
}

// WithScreenSize resizes the watcher's virtual terminal to match the PTY it
// will observe.
func (w *Watcher) WithScreenSize(cols, rows int) *Watcher {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cols, w.rows = cols, rows
	w.term.Resize(cols, rows)
	return w
}

// Run subscribes to the terminal's fanout and blocks, classifying prompts on
// a debounce timer, until the fanout closes or Stop is called.
func (w *Watcher) Run(ctx context.Context) {
	replay, ch, unsub, err := w.ptyMgr.SubscribeFrom(w.terminalID, w.lastSeq, 256)
	if err != nil {
		if w.log != nil {
			w.log.Warn("prompt watcher: subscribe failed", zap.String("terminal_id", w.terminalID), zap.Error(err))
		}
		return
	}
	defer unsub()

	timer := time.NewTimer(w.debounce)
	defer timer.Stop()
	if !timer.Stop() {
		<-timer.C
	}

	for _, c := range replay {
		w.accumulate(c)
	}
	if w.buf != "" {
		timer.Reset(w.debounce)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case chunk, ok := <-ch:
			if !ok {
				return
			}
			w.accumulate(chunk)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
		case <-timer.C:
			w.onQuiescent()
		}
	}
}

// Stop terminates Run's loop.
func (w *Watcher) Stop() {
	close(w.stop)
}

func (w *Watcher) accumulate(c pty.Chunk) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastSeq = c.Seq
	w.buf += c.Text
	if len(w.buf) > 16*1024 {
		w.buf = w.buf[len(w.buf)-16*1024:]
	}
	_, _ = w.term.Write([]byte(c.Text))
}

func (w *Watcher) onQuiescent() {
	w.mu.Lock()
	text := RenderScreen(w.term, w.cols, w.rows)
	w.mu.Unlock()

	detected, ok := Classify(text)
	if !ok {
		return
	}

	key := dedupKey(detected)
	w.mu.Lock()
	if key == w.lastDedup && w.state != StateIdle {
		w.mu.Unlock()
		return
	}
	w.lastDedup = key
	w.state = StateAwaitingDecision // Detected collapses straight to AwaitingDecision: classification and decision-routing happen in the same pass
	w.mu.Unlock()

	event := TerminalPromptDetectedEvent{
		TerminalID:  w.terminalID,
		Kind:        detected.Kind,
		Confidence:  detected.Confidence,
		MatchedText: detected.MatchedText,
		Options:     detected.Options,
		Dangerous:   len(detected.DangerousKeywords) > 0,
	}
	data, err := bus.Encode(event)
	if err != nil {
		return
	}
	evt := bus.NewEvent(bus.EventTerminalPromptDetected, "prompt-watcher", data)
	if err := w.bus.Publish(context.Background(), bus.WorkflowTopic(w.workflowID), evt); err != nil && w.log != nil {
		w.log.Warn("prompt watcher: publish failed", zap.String("terminal_id", w.terminalID), zap.Error(err))
	}

	w.mu.Lock()
	w.state = StateIdle
	w.mu.Unlock()
}

func dedupKey(d Detected) string {
	h := sha256.Sum256([]byte(string(d.Kind) + "\x00" + d.MatchedText))
	return hex.EncodeToString(h[:8])
}
