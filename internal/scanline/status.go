package scanline

import "fmt"

// Code classifies a codec failure. CodeOK means no failure.
type Code int

const (
	CodeOK Code = iota
	CodeHeader
	CodeDimensions
	CodeChannels
	CodeDecode
	CodeEncode
)

var codeText = [...]string{
	CodeOK:         "No error",
	CodeHeader:     "Error reading image header",
	CodeDimensions: "Image dimensions out of range",
	CodeChannels:   "Invalid number of color channels",
	CodeDecode:     "Error decoding image data",
	CodeEncode:     "Error writing image data",
}

// String returns the fixed user-facing message for c.
func (c Code) String() string {
	if c < 0 || int(c) >= len(codeText) {
		return "Unknown error"
	}
	return codeText[c]
}

// Error lets a Code act as a sentinel for errors.Is.
func (c Code) Error() string { return c.String() }

// Error is a codec failure with its underlying cause.
type Error struct {
	Code  Code
	Cause error
}

func (e *Error) Error() string { return e.Code.String() }

func (e *Error) Unwrap() error { return e.Cause }

// Is matches a bare Code sentinel.
func (e *Error) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.Code
}

// Detail renders the message together with its cause, for logs.
func (e *Error) Detail() string {
	if e.Cause == nil {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Cause)
}

// Status is the sticky health of a stream: either OK or failed with a Code.
// The first failure wins; later failures are ignored.
type Status struct {
	err *Error
}

// Fail records a failure unless one is already recorded and returns the
// recorded error.
func (s *Status) Fail(code Code, cause error) error {
	if s.err == nil {
		s.err = &Error{Code: code, Cause: cause}
	}
	return s.err
}

// OK reports whether no failure has been recorded.
func (s *Status) OK() bool { return s.err == nil }

// Err returns nil or the recorded failure.
func (s *Status) Err() error {
	if s.err == nil {
		return nil
	}
	return s.err
}
