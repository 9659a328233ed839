// Package pktline implements Git's pkt-line wire framing as used by the
// Smart HTTP protocol: a four hex digit length prefix followed by that
// many bytes of payload, with the special length "0000" marking a flush.
//
// See https://git-scm.com/docs/gitprotocol-common#_pkt_line_format for the
// on-wire format this package encodes and decodes.
package pktline

import (
	"bytes"
	"errors"
	"fmt"
)

const (
	// LengthSize is the size of the length field in a pkt-line (4 ASCII hex digits).
	LengthSize = 4

	// MaxDataSize is the maximum size of a pkt-line's data component.
	MaxDataSize = 65516

	// MaxLineSize is the maximum total size of a pkt-line (length field + data).
	MaxLineSize = MaxDataSize + LengthSize
)

// Flush, Delim and ResponseEnd are the special zero-length pkt-lines.
var (
	Flush       = []byte("0000")
	Delim       = []byte("0001")
	ResponseEnd = []byte("0002")
)

// InvalidPacketError is returned when a length field is 0001-0003. (A
// length prefix that is not four lowercase hex digits is reported as an
// IncompletePacketError instead.)
type InvalidPacketError struct {
	Offset int
	BufLen int
}

func (e *InvalidPacketError) Error() string {
	return fmt.Sprintf("pktline: invalid packet at offset %d (buffer length %d)", e.Offset, e.BufLen)
}

// IncompletePacketError is returned when a frame's declared length runs
// past the end of the buffer currently available.
type IncompletePacketError struct {
	ExpectedEnd int
	BufLen      int
}

func (e *IncompletePacketError) Error() string {
	return fmt.Sprintf("pktline: incomplete packet, expected end %d but buffer has %d bytes", e.ExpectedEnd, e.BufLen)
}

// ErrInvalidPacket and ErrIncompletePacket are sentinels usable with errors.As
// to detect the two failure kinds regardless of their offsets.
var (
	ErrInvalidPacket    = errors.New("pktline: invalid packet")
	ErrIncompletePacket = errors.New("pktline: incomplete packet")
)

func (e *InvalidPacketError) Unwrap() error    { return ErrInvalidPacket }
func (e *IncompletePacketError) Unwrap() error { return ErrIncompletePacket }

// ReadLength parses the 4-byte hex length prefix at buf[offset:]. It returns
// -1 if fewer than 4 bytes remain or the bytes aren't lowercase hex digits,
// matching Git's own lenient treatment of a short or malformed prefix as
// "not a packet yet" rather than an error.
func ReadLength(buf []byte, offset int) int {
	if offset+LengthSize > len(buf) {
		return -1
	}
	n := 0
	for i := 0; i < LengthSize; i++ {
		c := buf[offset+i]
		var v int
		switch {
		case c >= '0' && c <= '9':
			v = int(c - '0')
		case c >= 'a' && c <= 'f':
			v = int(c-'a') + 10
		default:
			return -1
		}
		n = n<<4 | v
	}
	return n
}

// Frame identifies a complete pkt-line's byte range, length included, within
// a buffer: buf[Start:End].
type Frame struct {
	Start, End int
}

// Bytes returns the frame's bytes (length prefix plus payload) from buf.
func (f Frame) Bytes(buf []byte) []byte { return buf[f.Start:f.End] }

// Payload returns the frame's payload, the length prefix stripped.
func (f Frame) Payload(buf []byte) []byte { return buf[f.Start+LengthSize : f.End] }

// IsFlush reports whether the frame is a flush-pkt ("0000").
func (f Frame) IsFlush(buf []byte) bool { return f.End-f.Start == LengthSize && bytes.Equal(buf[f.Start:f.End], Flush) }

// Iterate walks buf yielding one Frame per complete pkt-line found, calling
// yield for each. It stops early if yield returns false.
//
// breakOnFlush: when a flush packet is encountered, stop iterating and
// report the remaining bytes (from the flush packet's end) as the trailer
// return value, instead of treating the flush as an ordinary 4-byte frame.
//
// breakOnUnderflow: when a frame's declared length extends past the end of
// buf, stop iterating and return the unconsumed tail as the trailer instead
// of failing.
//
// The returned offset is how many bytes of buf were consumed by complete
// frames (excluding any trailer).
func Iterate(buf []byte, breakOnFlush, breakOnUnderflow bool, yield func(Frame) bool) (consumed int, trailer []byte, err error) {
	offset := 0
	for offset < len(buf) {
		length := ReadLength(buf, offset)
		if length == -1 {
			if breakOnUnderflow {
				return offset, buf[offset:], nil
			}
			return offset, nil, &IncompletePacketError{ExpectedEnd: offset + LengthSize, BufLen: len(buf)}
		}
		if length >= 1 && length <= 3 {
			return offset, nil, &InvalidPacketError{Offset: offset, BufLen: len(buf)}
		}
		if length == 0 {
			if breakOnFlush {
				return offset, buf[offset+LengthSize:], nil
			}
			frame := Frame{Start: offset, End: offset + LengthSize}
			offset = frame.End
			if !yield(frame) {
				return offset, nil, nil
			}
			continue
		}
		end := offset + length
		if end > len(buf) {
			if breakOnUnderflow {
				return offset, buf[offset:], nil
			}
			return offset, nil, &IncompletePacketError{ExpectedEnd: end, BufLen: len(buf)}
		}
		frame := Frame{Start: offset, End: end}
		offset = end
		if !yield(frame) {
			return offset, nil, nil
		}
	}
	return offset, nil, nil
}

// ConcatPackets concatenates a list of whole pkt-line buffers. When splitAt
// is non-nil, it locates the first flush packet inside buffers[*splitAt] and
// inserts every later buffer in the list immediately before that flush --
// the mechanism the response framer uses to inject sideband messages just
// before the terminating flush of a driver's response body.
func ConcatPackets(buffers [][]byte, splitAt *int) ([]byte, error) {
	if splitAt == nil {
		var out bytes.Buffer
		for _, b := range buffers {
			out.Write(b)
		}
		return out.Bytes(), nil
	}
	idx := *splitAt
	if idx < 0 || idx >= len(buffers) {
		return nil, fmt.Errorf("pktline: splitAt index %d out of range", idx)
	}
	target := buffers[idx]
	flushOffset := -1
	_, _, err := Iterate(target, false, false, func(f Frame) bool {
		if f.IsFlush(target) {
			flushOffset = f.Start
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	for i := 0; i < idx; i++ {
		out.Write(buffers[i])
	}
	if flushOffset == -1 {
		out.Write(target)
		for i := idx + 1; i < len(buffers); i++ {
			out.Write(buffers[i])
		}
		return out.Bytes(), nil
	}
	out.Write(target[:flushOffset])
	for i := idx + 1; i < len(buffers); i++ {
		out.Write(buffers[i])
	}
	out.Write(target[flushOffset:])
	return out.Bytes(), nil
}
