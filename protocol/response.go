package protocol

import (
	"fmt"
)

// Response is one line received from the agent, decoded once into its
// variant by ParseResponse. Only the fields for the decoded Type are
// populated, the As* accessors guard against reading the wrong ones.
type Response struct {
	Type ResponseType

	raw []byte

	// RespOk
	message string

	// RespErr
	code        int
	description string

	// RespStatus
	keyword string
	text    string

	// RespComment
	comment string

	// RespData
	data []byte
}

// Raw returns the line exactly as it came off the wire, without the
// terminator.
func (r *Response) Raw() []byte {
	return r.raw
}

// AsOk returns the optional human readable message of an OK line. A bare
// `OK` has no message and returns "".
func (r *Response) AsOk() (string, error) {
	if r.Type != RespOk {
		return "", r.mismatch(RespOk)
	}

	return r.message, nil
}

// AsError returns the numeric gpg-error code and optional description of
// an ERR line.
func (r *Response) AsError() (int, string, error) {
	if r.Type != RespErr {
		return 0, "", r.mismatch(RespErr)
	}

	return r.code, r.description, nil
}

// AsData returns the raw payload of a D line, unescaped back to the exact
// bytes the agent sent.
func (r *Response) AsData() ([]byte, error) {
	if r.Type != RespData {
		return nil, r.mismatch(RespData)
	}

	return r.data, nil
}

// AsStatus returns the keyword and trailing text of an S line.
func (r *Response) AsStatus() (string, string, error) {
	if r.Type != RespStatus {
		return "", "", r.mismatch(RespStatus)
	}

	return r.keyword, r.text, nil
}

// AsInquire reads an S line as an inquiry: the keyword naming what the
// agent wants, then its parameters.
//
// The wire format cannot tell an inquiry apart from a plain status line,
// both are S lines and parse identically. Which one you are holding is
// decided by where the line sits in the exchange, and only the caller
// knows that. See the package docs.
func (r *Response) AsInquire() (string, string, error) {
	return r.AsStatus()
}

// AsComment returns the text of a # line.
func (r *Response) AsComment() (string, error) {
	if r.Type != RespComment {
		return "", r.mismatch(RespComment)
	}

	return r.comment, nil
}

// ErrorOrNil returns an error if the response is an ERR line. Otherwise it
// returns nil.
func (r *Response) ErrorOrNil() error {
	if r.Type == RespErr {
		return &AgentError{Code: r.code, Description: r.description}
	}

	return nil
}

func (r *Response) mismatch(want ResponseType) error {
	return fmt.Errorf("Wanted a '%s' response but '%s' is a '%s': %w",
		string(want), string(r.raw), string(r.Type), ErrResponseTypeMismatch)
}

// AgentError is a failure reported by the agent itself through an ERR
// line, as opposed to a failure of the transport or of parsing.
type AgentError struct {
	// Code is a gpg-error style numeric code
	Code int

	Description string
}

func (e *AgentError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("Agent returned error code %d", e.Code)
	}

	return fmt.Sprintf("Agent returned error code %d: %s", e.Code, e.Description)
}
