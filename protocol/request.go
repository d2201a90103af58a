package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

var ErrRequestContainsLineFeed = errors.New("Request is malformed, it contains a line feed")

// Request is one encoded wire line, ready to send. It never contains the
// line terminator, the Client appends that at transmission time.
type Request []byte

func (r Request) String() string {
	return string(r)
}

// EncodeCommand encodes a command line, `"<command>"` or
// `"<command> <parameters>"` when parameters are present.
//
// Parameters are sent verbatim, no escaping is applied. The only thing
// checked here is that neither field smuggles in a line feed, which would
// silently split the request in two and corrupt the exchange.
func EncodeCommand(command Command, parameters string) (Request, error) {
	if strings.ContainsRune(string(command), '\n') {
		return nil, fmt.Errorf("Failed to encode '%s': %w",
			string(command), ErrRequestContainsLineFeed)
	}

	if strings.ContainsRune(parameters, '\n') {
		return nil, fmt.Errorf("Failed to encode '%s %s': %w",
			string(command), parameters, ErrRequestContainsLineFeed)
	}

	if parameters == "" {
		return Request(command), nil
	}

	return Request(string(command) + " " + parameters), nil
}

// EncodeData encodes one raw data chunk as `"D " + Escape(payload)`.
//
// The payload can hold any bytes at all, escaping keeps the result on a
// single line.
func EncodeData(payload []byte) Request {
	line := make([]byte, 0, len(payload)+2)
	line = append(line, 'D', ' ')

	return Request(append(line, Escape(payload)...))
}

// RawRequest adopts an already formed wire line, for callers that relay
// lines they did not build themselves. The terminator check is the same
// one EncodeCommand applies.
func RawRequest(line []byte) (Request, error) {
	if bytes.IndexByte(line, '\n') >= 0 {
		return nil, fmt.Errorf("Failed to adopt '%s': %w",
			string(line), ErrRequestContainsLineFeed)
	}

	req := make(Request, len(line))
	copy(req, line)

	return req, nil
}
