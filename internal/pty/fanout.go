package pty

import "sync"

// Chunk is one decoded slice of terminal output, tagged with a monotonic
// sequence number so a late subscriber can ask "send me everything after N".
type Chunk struct {
	Seq  uint64
	Text string
}

// Fanout broadcasts a terminal's decoded output to any number of
// subscribers while retaining a bounded tail for replay to subscribers that
// attach mid-session (e.g. a reconnecting viewer).
type Fanout struct {
	mu          sync.Mutex
	nextSeq     uint64
	replay      []Chunk
	replayBytes int
	maxBytes    int
	subs        map[int]chan Chunk
	nextSubID   int
	closed      bool
}

// NewFanout returns a Fanout that retains at most maxBytes of replay history.
func NewFanout(maxBytes int) *Fanout {
	return &Fanout{
		maxBytes: maxBytes,
		subs:     make(map[int]chan Chunk),
	}
}

// Publish appends text to the replay buffer and delivers it to every
// current subscriber. Slow subscribers never block the writer: a full
// subscriber channel is drained of its oldest entry to make room.
func (f *Fanout) Publish(text string) {
	if text == "" {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}

	f.nextSeq++
	chunk := Chunk{Seq: f.nextSeq, Text: text}

	f.replay = append(f.replay, chunk)
	f.replayBytes += len(text)
	for f.replayBytes > f.maxBytes && len(f.replay) > 1 {
		f.replayBytes -= len(f.replay[0].Text)
		f.replay = f.replay[1:]
	}

	for _, ch := range f.subs {
		select {
		case ch <- chunk:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- chunk:
			default:
			}
		}
	}
}

// Subscribe registers a new subscriber and returns its channel plus the
// replay buffer chunks that precede it (to send before live chunks arrive),
// and an unsubscribe func.
func (f *Fanout) Subscribe(bufferSize int) ([]Chunk, <-chan Chunk, func()) {
	return f.SubscribeFrom(0, bufferSize)
}

// SubscribeFrom is like Subscribe but only replays chunks with Seq > fromSeq,
// letting a reconnecting subscriber resume without re-delivering what it has
// already seen. A fromSeq of 0 replays the entire retained buffer.
func (f *Fanout) SubscribeFrom(fromSeq uint64, bufferSize int) ([]Chunk, <-chan Chunk, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextSubID
	f.nextSubID++
	ch := make(chan Chunk, bufferSize)
	f.subs[id] = ch

	var replay []Chunk
	for _, c := range f.replay {
		if c.Seq > fromSeq {
			replay = append(replay, c)
		}
	}

	unsubscribe := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if sub, ok := f.subs[id]; ok {
			close(sub)
			delete(f.subs, id)
		}
	}

	return replay, ch, unsubscribe
}

// Close stops accepting new publishes and closes all subscriber channels.
func (f *Fanout) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for id, ch := range f.subs {
		close(ch)
		delete(f.subs, id)
	}
}
