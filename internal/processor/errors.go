package processor

import "errors"

var (
	// ErrNotHandled is returned by a processor whose command does not match.
	// It is a fallthrough signal for the chain, never sent to a client.
	ErrNotHandled = errors.New("request not handled by this processor")

	ErrMissingParameter    = errors.New("missing required parameter")
	ErrCantFindRoom        = errors.New("can't find room")
	ErrCantFindDevice      = errors.New("can't find device")
	ErrCantGetReport       = errors.New("can't get report")
	ErrCantStartStream     = errors.New("can't start report stream")
	ErrUnrecognizedCommand = errors.New("no processor could handle this request")
)

// ErrorResponsePrefix starts every error response line
const ErrorResponsePrefix = "Proccess request error : "

// ErrorResponse formats err as the response line sent to the client
func ErrorResponse(err error) string {
	return ErrorResponsePrefix + err.Error()
}
