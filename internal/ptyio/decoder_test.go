package ptyio

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestFeedPassesThroughCompleteASCII(t *testing.T) {
	d := NewDecoder()
	res := d.Feed([]byte("hello"))
	require.Equal(t, "hello", res.Text)
	require.False(t, res.HadIncompleteTail)
	require.Zero(t, res.DroppedInvalidBytes)
	require.Equal(t, "", d.Flush())
}

func TestFeedHoldsBackSplitMultiByteRune(t *testing.T) {
	// "é" is 0xC3 0xA9 in UTF-8.
	full := []byte("caf\xc3\xa9")
	first, second := full[:len(full)-1], full[len(full)-1:]

	d := NewDecoder()
	out1 := d.Feed(first)
	require.Equal(t, "caf", out1.Text)
	require.True(t, out1.HadIncompleteTail)
	require.Equal(t, 1, out1.PendingTailLen)

	out2 := d.Feed(second)
	require.Equal(t, "é", out2.Text)
	require.False(t, out2.HadIncompleteTail)
	require.Equal(t, out1.Text+out2.Text, "café")
	require.Equal(t, "", d.Flush())
}

func TestFeedHoldsBackSplitThreeByteRune(t *testing.T) {
	// "€" is 0xE2 0x82 0xAC.
	full := []byte("price: \xe2\x82\xac")
	d := NewDecoder()

	out1 := d.Feed(full[:8])
	require.Equal(t, "price: ", out1.Text)

	out2 := d.Feed(full[8:9])
	require.Equal(t, "", out2.Text)
	require.True(t, out2.HadIncompleteTail)

	out3 := d.Feed(full[9:])
	require.Equal(t, "€", out3.Text)
	require.False(t, out3.HadIncompleteTail)
}

func TestFlushEmitsPendingBytesAsReplacementCharOnClose(t *testing.T) {
	d := NewDecoder()
	full := []byte("x\xe2\x82\xac")
	_ = d.Feed(full[:2])

	flushed := d.Flush()
	require.Equal(t, string(utf8.RuneError), flushed)
}

func TestFeedReplacesInvalidMiddleByteWithoutHanging(t *testing.T) {
	d := NewDecoder()
	res := d.Feed([]byte{0xFF, 'a', 'b'})
	require.Equal(t, string(utf8.RuneError)+"ab", res.Text)
	require.Equal(t, 1, res.DroppedInvalidBytes)
	require.False(t, res.HadIncompleteTail)
}

// TestDecodeLossyRoundTrip exercises the property spec'd for the decoder:
// concat(Feed(...).Text) ++ Flush() == string(utf8.RuneError-substituted
// lossy decoding of the whole stream), for a stream split across
// arbitrary chunk boundaries.
func TestDecodeLossyRoundTrip(t *testing.T) {
	stream := []byte("hello \xe2\x82\xac world \xff\xfe café \xc3")
	want := decodeLossyWhole(stream)

	splits := [][]int{
		{len(stream)},
		{1, len(stream)},
		{5, 9, len(stream)},
		{3, 3, 3, len(stream)},
	}

	for _, points := range splits {
		d := NewDecoder()
		var got string
		prev := 0
		for _, p := range points {
			if p > len(stream) {
				p = len(stream)
			}
			got += d.Feed(stream[prev:p]).Text
			prev = p
		}
		got += d.Flush()
		require.Equal(t, want, got, "split points %v", points)
	}
}

func decodeLossyWhole(b []byte) string {
	text, _ := decodeLossy(b)
	return text
}

func TestStatsAccumulateAcrossFeeds(t *testing.T) {
	d := NewDecoder()
	d.Feed([]byte("ok"))
	d.Feed([]byte{0xFF})
	d.Feed([]byte("caf\xc3"))
	d.Flush()

	stats := d.Stats()
	require.Equal(t, 3, stats.ChunksDecoded)
	// 1 byte dropped decoding the standalone 0xFF, plus 1 more when Flush
	// lossily emits the still-incomplete trailing 0xC3.
	require.Equal(t, 2, stats.DroppedBytes)
	require.Equal(t, 1, stats.IncompleteTailEvents)
}
