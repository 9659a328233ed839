package pktline

import (
	"fmt"
	"io"
)

// SidebandChannel identifies one of the three sideband multiplex channels
// used by git-upload-pack/git-receive-pack responses.
type SidebandChannel byte

const (
	SidebandData     SidebandChannel = 1
	SidebandProgress SidebandChannel = 2
	SidebandError    SidebandChannel = 3
)

// Writer encodes lines, flush/delim markers and sideband frames as pkt-lines
// onto an underlying io.Writer.
type Writer struct {
	w io.Writer
}

// NewWriter returns a Writer that writes encoded pkt-lines to w.
func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

// WriteLine encodes and writes data as a single pkt-line.
func (w *Writer) WriteLine(data []byte) error {
	if len(data) > MaxDataSize {
		return fmt.Errorf("pktline: data of %d bytes exceeds max %d", len(data), MaxDataSize)
	}
	header := fmt.Sprintf("%04x", len(data)+LengthSize)
	if _, err := io.WriteString(w.w, header); err != nil {
		return err
	}
	_, err := w.w.Write(data)
	return err
}

// WriteFlush writes a flush-pkt.
func (w *Writer) WriteFlush() error {
	_, err := w.w.Write(Flush)
	return err
}

// WriteDelim writes a delimiter packet (protocol v2).
func (w *Writer) WriteDelim() error {
	_, err := w.w.Write(Delim)
	return err
}

// WriteSideband writes data on the given sideband channel.
func (w *Writer) WriteSideband(channel SidebandChannel, data []byte) error {
	return w.WriteLine(append([]byte{byte(channel)}, data...))
}

// EncodeLine returns the pkt-line encoding of data without writing it
// anywhere -- used to build the sideband buffer the controller accumulates.
func EncodeLine(data []byte) []byte {
	header := fmt.Sprintf("%04x", len(data)+LengthSize)
	out := make([]byte, 0, len(header)+len(data))
	out = append(out, header...)
	out = append(out, data...)
	return out
}

// EncodeSideband returns the pkt-line encoding of data prefixed with the
// given sideband channel byte.
func EncodeSideband(channel SidebandChannel, data []byte) []byte {
	payload := make([]byte, 0, len(data)+1)
	payload = append(payload, byte(channel))
	payload = append(payload, data...)
	return EncodeLine(payload)
}
