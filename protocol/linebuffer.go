package protocol

import "bytes"

// LineBuffer reassembles a stream of arbitrarily chunked transport reads
// into complete lines.
//
// The transport delivers whatever chunk sizes it pleases, a line can be
// split anywhere, including in the middle of a percent escape. Receive
// accumulates partial input across calls and only ever emits whole lines.
// A trailing fragment is never dropped and never emitted early, it waits
// in the buffer until its terminator arrives.
type LineBuffer struct {
	buf []byte
}

// Receive appends chunk to the accumulator and returns every line it
// completed, oldest first, with the terminator stripped. It returns nil
// when the chunk completed no line.
func (l *LineBuffer) Receive(chunk []byte) [][]byte {
	l.buf = append(l.buf, chunk...)

	var lines [][]byte

	for {
		idx := bytes.IndexByte(l.buf, '\n')
		if idx < 0 {
			break
		}

		line := make([]byte, idx)
		copy(line, l.buf[:idx])
		lines = append(lines, line)

		l.buf = l.buf[idx+1:]
	}

	return lines
}

// Pending returns the bytes of the trailing incomplete line. The slice is
// only valid until the next Receive.
func (l *LineBuffer) Pending() []byte {
	return l.buf
}

// Len reports how many bytes are buffered awaiting a terminator.
func (l *LineBuffer) Len() int {
	return len(l.buf)
}

// Reset discards any buffered partial line.
func (l *LineBuffer) Reset() {
	l.buf = nil
}
