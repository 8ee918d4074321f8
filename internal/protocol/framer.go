package protocol

import (
	"bytes"
)

// DefaultMaxFragmentBytes bounds how much unterminated data a Framer holds.
const DefaultMaxFragmentBytes = 64 * 1024

// Framer splits a raw byte stream into newline-delimited fragments. Data
// after the last newline is held until a later Feed completes it.
// A Framer is not safe for concurrent use.
type Framer struct {
	buf     []byte
	max     int
	dropped int
	// discarding is set once an unterminated run overflows max; input is
	// skipped up to and including the next newline.
	discarding bool
}

// NewFramer creates a framer. maxFragment <= 0 selects DefaultMaxFragmentBytes.
func NewFramer(maxFragment int) *Framer {
	if maxFragment <= 0 {
		maxFragment = DefaultMaxFragmentBytes
	}
	return &Framer{max: maxFragment}
}

// Feed consumes chunk and returns every fragment completed by it, without
// the trailing newline.
func (f *Framer) Feed(chunk []byte) []string {
	var out []string
	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			f.hold(chunk)
			break
		}
		switch {
		case f.discarding:
			f.dropped += i
			f.discarding = false
		case len(f.buf) > 0:
			out = append(out, string(f.buf)+string(chunk[:i]))
			f.buf = nil
		default:
			out = append(out, string(chunk[:i]))
		}
		chunk = chunk[i+1:]
	}
	return out
}

func (f *Framer) hold(rest []byte) {
	if f.discarding {
		f.dropped += len(rest)
		return
	}
	f.buf = append(f.buf, rest...)
	if len(f.buf) > f.max {
		// An unterminated run this long is noise, not a frame.
		f.dropped += len(f.buf)
		f.buf = nil
		f.discarding = true
	}
}

// Buffered returns the number of bytes waiting for a newline.
func (f *Framer) Buffered() int { return len(f.buf) }

// Dropped returns the number of bytes discarded for exceeding the limit.
func (f *Framer) Dropped() int { return f.dropped }

// Reset discards any partial fragment.
func (f *Framer) Reset() {
	f.buf = nil
	f.discarding = false
}
