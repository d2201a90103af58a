package protocol

type Command string

// The housekeeping commands every Assuan agent understands. Anything else
// (SIGN, PKDECRYPT, ...) is agent specific and is sent as a free-form
// Command value.
const (
	NOP     Command = "NOP"
	BYE     Command = "BYE"
	RESET   Command = "RESET"
	OPTION  Command = "OPTION"
	GETINFO Command = "GETINFO"

	// END and CAN terminate an inquiry: END after the client has sent its
	// data lines, CAN to refuse the inquiry outright.
	END Command = "END"
	CAN Command = "CAN"
)

type ResponseType string

const (
	RespOk      ResponseType = "OK"
	RespErr     ResponseType = "ERR"
	RespStatus  ResponseType = "S"
	RespComment ResponseType = "#"
	RespData    ResponseType = "D"
)
