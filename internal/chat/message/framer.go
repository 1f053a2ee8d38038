package message

import (
	"bytes"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Terminator - line terminator appended to every outgoing line.
const Terminator = "\n"

// DefaultMaxLineSize - default limit (in bytes) for a single inbound line.
const DefaultMaxLineSize = 4096

// ErrLineTooLong - reported by Decoder when an inbound line exceeds the size limit.
// The line is dropped, decoding continues from the next line.
var ErrLineTooLong = errors.New("message.Decoder: line too long")

// Decoder - splits inbound byte stream into text lines.
// Lines are delimited with '\n', an optional '\r' before it is stripped.
// Zero value is ready to use with DefaultMaxLineSize.
type Decoder struct {
	// MaxLineSize - max length of a line in bytes, without terminator.
	MaxLineSize int

	pending  bytes.Buffer
	overflow bool // current line is over the limit, skip bytes until next '\n'
}

// Feed - consumes next chunk of the stream and returns lines completed by it.
// Non-nil error is only ErrLineTooLong and does not invalidate returned lines.
func (d *Decoder) Feed(p []byte) (lines []string, err error) {
	d.Scan(p, func(line string, lerr error) bool {
		if lerr != nil {
			err = lerr
			return true
		}
		lines = append(lines, line)
		return true
	})
	return lines, err
}

// Scan - consumes next chunk of the stream and calls fn for every line completed by it,
// in stream order. Dropped line is reported with ErrLineTooLong instead of the text.
// When fn returns false the rest of the chunk is discarded.
func (d *Decoder) Scan(p []byte, fn func(line string, err error) bool) {
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			d.collect(p)
			return
		}
		d.collect(p[:i])
		p = p[i+1:]
		line := bytes.TrimSuffix(d.pending.Bytes(), []byte{'\r'})
		overflow := d.overflow || len(line) > d.maxLineSize()
		d.overflow = false
		var next bool
		if overflow {
			next = fn("", ErrLineTooLong)
		} else {
			next = fn(Sanitize(line), nil)
		}
		d.pending.Reset()
		if !next {
			d.Reset()
			return
		}
	}
}

// Buffered - returns number of bytes of incomplete line held by decoder.
func (d *Decoder) Buffered() int {
	return d.pending.Len()
}

// Reset - discards any incomplete line.
func (d *Decoder) Reset() {
	d.pending.Reset()
	d.overflow = false
}

func (d *Decoder) collect(p []byte) {
	if d.overflow {
		return
	}
	// one extra byte is left for '\r' of "\r\n" terminator, the limit is checked again on '\n'
	if d.pending.Len()+len(p) > d.maxLineSize()+1 {
		d.overflow = true
		d.pending.Reset()
		return
	}
	d.pending.Write(p)
}

func (d *Decoder) maxLineSize() int {
	if d.MaxLineSize <= 0 {
		return DefaultMaxLineSize
	}
	return d.MaxLineSize
}

// Sanitize - converts raw line into text.
// Trailing '\r' is stripped, invalid UTF-8 sequences and control characters are dropped,
// other whitespace is replaced with a regular space.
func Sanitize(line []byte) string {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	str := strings.Builder{}
	str.Grow(len(line))
	for len(line) > 0 {
		r, size := utf8.DecodeRune(line)
		line = line[size:]
		switch {
		case r == utf8.RuneError && size == 1:
			// drop
		case unicode.IsSpace(r):
			str.WriteByte(' ')
		case unicode.IsControl(r):
			// drop
		default:
			str.WriteRune(r)
		}
	}
	return str.String()
}

// Encode - converts outgoing line into bytes ready to write into transport.
func Encode(line string) []byte {
	b := make([]byte, 0, len(line)+len(Terminator))
	b = append(b, line...)
	return append(b, Terminator...)
}

// Format - builds chat entry from author login and message text.
func Format(login, text string) string {
	return "<" + login + "> " + text
}
