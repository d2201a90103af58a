package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrUnknownResponseType  = errors.New("Unknown response, the line starts with no recognised prefix")
	ErrResponseParse        = errors.New("Response is malformed, the payload does not match its prefix's grammar")
	ErrResponseTypeMismatch = errors.New("Response was read as the wrong type")

	PrefixOk      = []byte("OK")
	PrefixErr     = []byte("ERR")
	PrefixStatus  = []byte("S")
	PrefixComment = []byte("#")
	PrefixData    = []byte("D")
)

// Classify matches line against the five response prefixes, in order.
// Only position 0 is inspected, a prefix appearing further into the line
// means nothing.
func Classify(line []byte) (ResponseType, error) {
	switch {
	case bytes.HasPrefix(line, PrefixOk):
		return RespOk, nil

	case bytes.HasPrefix(line, PrefixErr):
		return RespErr, nil

	case bytes.HasPrefix(line, PrefixStatus):
		return RespStatus, nil

	case bytes.HasPrefix(line, PrefixComment):
		return RespComment, nil

	case bytes.HasPrefix(line, PrefixData):
		return RespData, nil

	default:
		return "", fmt.Errorf("Failed to classify '%s': %w",
			string(line), ErrUnknownResponseType)
	}
}

// ParseResponse decodes one line received from the agent into a tagged
// Response. The line is classified and decoded exactly once, the As*
// accessors afterwards are plain field reads.
//
// The line must not include the terminator, which is how lines come out
// of a LineBuffer.
func ParseResponse(line []byte) (*Response, error) {
	respType, err := Classify(line)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		Type: respType,
		raw:  append([]byte(nil), line...),
	}

	switch respType {
	case RespOk:
		// A bare OK carries no message, otherwise the message is
		// everything after "OK "
		if len(line) > 3 {
			resp.message = string(line[3:])
		}

		return resp, nil

	case RespErr:
		return parseErr(resp, line)

	case RespStatus:
		return parseStatus(resp, line)

	case RespComment:
		// Comments are lenient, strip the marker and one following space
		rest := line[1:]
		if len(rest) > 0 && rest[0] == ' ' {
			rest = rest[1:]
		}

		resp.comment = string(rest)

		return resp, nil

	case RespData:
		if len(line) < 2 || line[1] != ' ' {
			// There should be a space delimiting the D from it's payload
			return nil, fmt.Errorf("Failed to parse '%s', the data payload is missing: %w",
				string(line), ErrResponseParse)
		}

		resp.data, err = Unescape(line[2:])
		if err != nil {
			return nil, err
		}

		return resp, nil
	}

	// Classify never produces a type outside the five above
	return nil, fmt.Errorf("Failed to parse '%s': %w",
		string(line), ErrUnknownResponseType)
}

// parseErr decodes `ERR <code>[ <description>]`. The numeric code is
// mandatory.
func parseErr(resp *Response, line []byte) (*Response, error) {
	if len(line) < 5 || line[3] != ' ' {
		// There should be a space delimiting the ERR from it's code
		return nil, fmt.Errorf("Failed to parse '%s', the numeric code is missing: %w",
			string(line), ErrResponseParse)
	}

	code := line[4:]
	if idx := bytes.IndexByte(code, ' '); idx >= 0 {
		resp.description = string(code[idx+1:])
		code = code[:idx]
	}

	n, err := parseCode(code)
	if err != nil {
		return nil, fmt.Errorf("Failed to parse '%s', the code '%s' is not numeric: %w",
			string(line), string(code), ErrResponseParse)
	}

	resp.code = n

	return resp, nil
}

// parseStatus decodes `S <keyword>[ <text>]`.
func parseStatus(resp *Response, line []byte) (*Response, error) {
	if len(line) < 3 || line[1] != ' ' {
		// There should be a space delimiting the S from it's keyword
		return nil, fmt.Errorf("Failed to parse '%s', the status keyword is missing: %w",
			string(line), ErrResponseParse)
	}

	rest := line[2:]
	if idx := bytes.IndexByte(rest, ' '); idx >= 0 {
		resp.keyword = string(rest[:idx])
		resp.text = string(rest[idx+1:])
	} else {
		resp.keyword = string(rest)
	}

	return resp, nil
}

// parseCode parses a run of decimal digits. Unlike strconv.Atoi alone it
// rejects signs and whitespace, the wire grammar allows digits only.
func parseCode(digits []byte) (int, error) {
	if len(digits) == 0 {
		return 0, ErrResponseParse
	}

	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, ErrResponseParse
		}
	}

	return strconv.Atoi(string(digits))
}
