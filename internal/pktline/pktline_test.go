package pktline

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadLength(t *testing.T) {
	cases := []struct {
		name string
		buf  []byte
		off  int
		want int
	}{
		{"flush", []byte("0000"), 0, 0},
		{"valid", []byte("001ehello"), 0, 30},
		{"short buffer", []byte("00"), 0, -1},
		{"non hex", []byte("xxxxpayload"), 0, -1},
		{"uppercase hex rejected", []byte("00AAxxxx"), 0, -1},
		{"offset into buffer", []byte("aaaa0009abcde"), 4, 9},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.want, ReadLength(c.buf, c.off))
		})
	}
}

func TestIterateRoundTrip(t *testing.T) {
	// property 1: iterating frames then concatenating reproduces the input.
	input := []byte("0006a\n0006b\n0000")
	var frames [][]byte
	consumed, trailer, err := Iterate(input, false, false, func(f Frame) bool {
		frames = append(frames, f.Bytes(input))
		return true
	})
	require.NoError(t, err)
	require.Empty(t, trailer)
	require.Equal(t, len(input), consumed)
	require.Len(t, frames, 3)

	var buffers [][]byte
	buffers = append(buffers, frames...)
	out, err := ConcatPackets(buffers, nil)
	require.NoError(t, err)
	require.Equal(t, input, out)
}

func TestIterateInvalidLength(t *testing.T) {
	_, _, err := Iterate([]byte("0002x"), false, false, func(Frame) bool { return true })
	require.ErrorIs(t, err, ErrInvalidPacket)
}

func TestIterateIncomplete(t *testing.T) {
	_, _, err := Iterate([]byte("000fshort"), false, false, func(Frame) bool { return true })
	require.ErrorIs(t, err, ErrIncompletePacket)
}

func TestIterateBreakOnFlush(t *testing.T) {
	input := []byte("0006a\n00000006b\n")
	var frames [][]byte
	consumed, trailer, err := Iterate(input, true, false, func(f Frame) bool {
		frames = append(frames, f.Bytes(input))
		return true
	})
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Equal(t, []byte("0006b\n"), trailer)
	require.Equal(t, 6, consumed)
}

func TestIterateBreakOnUnderflow(t *testing.T) {
	input := []byte("0006a\n000fshort")
	consumed, trailer, err := Iterate(input, false, true, func(Frame) bool { return true })
	require.NoError(t, err)
	require.Equal(t, 6, consumed)
	require.Equal(t, []byte("000fshort"), trailer)
}

func TestPacketReaderForwardsAndSplitsFrames(t *testing.T) {
	var sink bytes.Buffer
	var got [][]byte
	r := NewPacketReader(&sink, func(f []byte) {
		got = append(got, append([]byte(nil), f...))
	})

	// Split a frame across two writes to exercise the carry-over buffer.
	n, err := r.Write([]byte("0006a"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	n, err = r.Write([]byte("\n0000"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.NoError(t, r.Close())

	require.Equal(t, []byte("0006a\n0000"), sink.Bytes())
	require.Len(t, got, 2)
	require.Equal(t, []byte("0006a\n"), got[0])
	require.Equal(t, []byte("0000"), got[1])
}

func TestPacketReaderIncompleteAtClose(t *testing.T) {
	var sink bytes.Buffer
	r := NewPacketReader(&sink, func([]byte) {})
	_, err := r.Write([]byte("000fshort"))
	require.NoError(t, err)
	err = r.Close()
	require.ErrorIs(t, err, ErrIncompletePacket)
}

func TestConcatPacketsSplitAtInsertsBeforeFlush(t *testing.T) {
	driverBody := []byte("000dhello\n0000")
	sideband := EncodeSideband(SidebandProgress, []byte("progress\n"))
	idx := 0
	out, err := ConcatPackets([][]byte{driverBody, sideband}, &idx)
	require.NoError(t, err)
	require.Equal(t, append(append([]byte("000dhello\n"), sideband...), []byte("0000")...), out)
}

func TestWriterEncodesLines(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteLine([]byte("hello\n")))
	require.NoError(t, w.WriteFlush())
	require.Equal(t, []byte("000ahello\n0000"), buf.Bytes())
}
