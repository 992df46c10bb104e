// Package ptyio decodes raw PTY byte chunks into valid UTF-8 text, holding
// back a trailing partial multi-byte sequence until more bytes arrive
// instead of emitting the Unicode replacement character mid-rune. Invalid
// bytes that aren't just an incomplete tail are replaced with U+FFFD rather
// than passed through raw, matching String::from_utf8_lossy's contract.
package ptyio

import (
	"strings"
	"unicode/utf8"
)

// FeedResult is the outcome of one Feed call.
type FeedResult struct {
	// Text is the decoded, always-valid-UTF-8 prefix of this chunk.
	Text string
	// DroppedInvalidBytes counts bytes in this chunk that were not part of
	// a trailing incomplete sequence and were replaced with U+FFFD.
	DroppedInvalidBytes int
	// HadIncompleteTail reports whether this chunk ended mid-rune, leaving
	// bytes held back for the next Feed (or Flush).
	HadIncompleteTail bool
	// PendingTailLen is the number of bytes currently held back.
	PendingTailLen int
}

// Stats are the Decoder's lifetime counters.
type Stats struct {
	ChunksDecoded        int
	DroppedBytes         int
	IncompleteTailEvents int
}

// Decoder accumulates PTY output across read boundaries and emits only
// valid UTF-8 text. It is not safe for concurrent use; each PTY gets its
// own Decoder, guarded by the owning reader goroutine.
type Decoder struct {
	pending []byte
	stats   Stats
}

// NewDecoder returns a Decoder with no pending bytes.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends chunk to any previously pending bytes and lossily decodes
// the result. A truncated multi-byte sequence at the tail is held back and
// prepended to the next Feed (or emitted as replacement characters by a
// later Flush); any other invalid bytes are replaced with U+FFFD in place.
func (d *Decoder) Feed(chunk []byte) FeedResult {
	buf := chunk
	if len(d.pending) > 0 {
		buf = append(append([]byte(nil), d.pending...), chunk...)
		d.pending = nil
	}

	cut := trailingIncompleteRuneStart(buf)
	hadIncompleteTail := cut < len(buf)
	if hadIncompleteTail {
		d.pending = append(d.pending, buf[cut:]...)
	}

	text, dropped := decodeLossy(buf[:cut])

	d.stats.ChunksDecoded++
	d.stats.DroppedBytes += dropped
	if hadIncompleteTail {
		d.stats.IncompleteTailEvents++
	}

	return FeedResult{
		Text:                text,
		DroppedInvalidBytes: dropped,
		HadIncompleteTail:   hadIncompleteTail,
		PendingTailLen:      len(d.pending),
	}
}

// trailingIncompleteRuneStart returns the index at which a truncated
// multi-byte UTF-8 sequence begins at the end of buf, or len(buf) if the
// tail is already complete (or invalid, in which case it's left as-is).
func trailingIncompleteRuneStart(buf []byte) int {
	limit := len(buf) - utf8.UTFMax
	if limit < 0 {
		limit = 0
	}
	for i := len(buf) - 1; i >= limit; i-- {
		b := buf[i]
		if b < 0x80 {
			// ASCII byte: nothing multi-byte can start before this point
			// other than what's already been checked.
			return len(buf)
		}
		if utf8.RuneStart(b) {
			if !utf8.FullRune(buf[i:]) {
				return i
			}
			return len(buf)
		}
		// Continuation byte (10xxxxxx): keep scanning backwards for its
		// sequence's start byte.
	}
	return len(buf)
}

// decodeLossy decodes buf rune by rune, replacing each invalid byte with
// U+FFFD, and reports how many bytes were dropped. buf is assumed to have
// already had any trailing incomplete sequence stripped, so every error
// found here is a genuine invalid byte, not a need for more input.
func decodeLossy(buf []byte) (string, int) {
	if utf8.Valid(buf) {
		return string(buf), 0
	}

	var sb strings.Builder
	sb.Grow(len(buf))
	dropped := 0
	for len(buf) > 0 {
		r, size := utf8.DecodeRune(buf)
		if r == utf8.RuneError && size == 1 {
			sb.WriteRune(utf8.RuneError)
			dropped++
			buf = buf[1:]
			continue
		}
		sb.WriteRune(r)
		buf = buf[size:]
	}
	return sb.String(), dropped
}

// Flush returns any pending bytes, replacing them with U+FFFD, for use
// when the PTY has closed and no more bytes are coming to complete the
// sequence.
func (d *Decoder) Flush() string {
	if len(d.pending) == 0 {
		return ""
	}
	text, dropped := decodeLossy(d.pending)
	d.stats.DroppedBytes += dropped
	d.pending = nil
	return text
}

// Stats returns the decoder's lifetime counters.
func (d *Decoder) Stats() Stats {
	return d.stats
}
