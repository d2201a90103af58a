package protocol

import (
	"errors"
	"fmt"
)

var ErrInvalidEscape = errors.New("Invalid percent escape, expected '%' followed by two hex digits")

const upperhex = "0123456789ABCDEF"

// needsEscape reports whether b must be written as a %XX escape.
//
// Everything outside printable ASCII is escaped, as is '%' itself. That
// guarantees the escaped form fits on a single protocol line no matter
// what bytes the input holds.
func needsEscape(b byte) bool {
	return b < 0x21 || b > 0x7e || b == '%'
}

// Escape percent encodes data byte-wise. It is total: any input, text or
// not, escapes cleanly. The input is never routed through a text encoding,
// doing so would lose exact bytes for non-text payloads.
func Escape(data []byte) []byte {
	escaped := make([]byte, 0, len(data))

	for _, b := range data {
		if !needsEscape(b) {
			escaped = append(escaped, b)
			continue
		}

		escaped = append(escaped, '%', upperhex[b>>4], upperhex[b&0x0f])
	}

	return escaped
}

// Unescape reverses Escape exactly, for every possible byte value. Hex
// digits are accepted in either case.
func Unescape(data []byte) ([]byte, error) {
	unescaped := make([]byte, 0, len(data))

	for i := 0; i < len(data); i++ {
		b := data[i]

		if b != '%' {
			unescaped = append(unescaped, b)
			continue
		}

		if i+2 >= len(data) {
			return nil, fmt.Errorf("Failed to unescape '%s': %w",
				string(data), ErrInvalidEscape)
		}

		hi, ok := unhex(data[i+1])
		lo, ok2 := unhex(data[i+2])
		if !ok || !ok2 {
			return nil, fmt.Errorf("Failed to unescape '%s': %w",
				string(data), ErrInvalidEscape)
		}

		unescaped = append(unescaped, hi<<4|lo)
		i += 2
	}

	return unescaped, nil
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}

	return 0, false
}
