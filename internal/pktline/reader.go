package pktline

import "io"

// PacketReader is a streaming pkt-line transform: it accepts arbitrarily
// chunked input via Write, invokes OnFrame for every complete pkt-line it
// recognizes, and forwards every byte unchanged to an underlying sink. It
// keeps an internal carry-over buffer for frames that straddle two Write
// calls, playing the role of the spec's "iterator with lookahead" without a
// coroutine: state lives in the carry field alone.
type PacketReader struct {
	sink    io.Writer
	onFrame func([]byte)
	carry   []byte
	err     error
}

// NewPacketReader returns a PacketReader that forwards all written bytes to
// sink, calling onFrame with each complete pkt-line's raw bytes (length
// prefix included) as they are recognized.
func NewPacketReader(sink io.Writer, onFrame func(frame []byte)) *PacketReader {
	return &PacketReader{sink: sink, onFrame: onFrame}
}

// Write implements io.Writer. It never reports a short write; framing
// errors are recorded and returned from future calls including Close.
func (r *PacketReader) Write(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	if _, err := r.sink.Write(p); err != nil {
		r.err = err
		return 0, err
	}
	buf := append(r.carry, p...)
	_, trailer, err := Iterate(buf, false, true, func(f Frame) bool {
		r.onFrame(f.Bytes(buf))
		return true
	})
	if err != nil {
		r.err = err
		return 0, err
	}
	r.carry = append([]byte(nil), trailer...)
	return len(p), nil
}

// Close finalizes the stream. A non-empty carry-over buffer at this point
// means the input ended mid-packet, which is reported as IncompletePacketError.
func (r *PacketReader) Close() error {
	if r.err != nil {
		return r.err
	}
	if len(r.carry) > 0 {
		return &IncompletePacketError{ExpectedEnd: ReadLength(r.carry, 0), BufLen: len(r.carry)}
	}
	return nil
}
