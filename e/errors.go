package e

import (
	"errors"
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// ExtendedError is our custom error
type ExtendedError struct {
	InnerError     error
	Message        string
	TruncateXLines int
	original       error
}

// Error returns the string of the inner error
func (e *ExtendedError) Error() string {
	s := fmt.Sprintf("%+v", e.InnerError)
	if e.TruncateXLines == 0 {
		return s
	}

	// Truncate the last x lines
	r := []rune(s)
	idx, numNewLines := 0, 0

	for i := len(r) - 1; i > 0 && numNewLines < e.TruncateXLines; i-- {
		if r[i] == '\n' {
			idx = i
			numNewLines++
		}
	}

	if numNewLines > 0 {
		r = r[0:idx]
	}

	return string(r)
}

// Unwrap returns the originating error, so errors.Is/As see through the wrapper
func (e *ExtendedError) Unwrap() error {
	return e.original
}

// IsError checks if the originating error is the specified target
func (e *ExtendedError) IsError(tgt error) bool {
	return errors.Is(e.original, tgt)
}

// AsError calls errors.As on the original error with the specified target error.
// If it is the target error, it will set the target as the original error value
// and return true, otherwise it returns false
func (e *ExtendedError) AsError(tgt interface{}) bool {
	if e.original == nil {
		return false
	}
	return errors.As(e.original, tgt)
}

// NewStr creates a new error string based on the code and message list
func NewStr(code string, msgList ...string) (s string) {
	if len(msgList) == 0 {
		return code
	}
	return fmt.Sprintf("%s: %s", code, strings.Join(msgList, "|"))
}

// AsExtendedError helper function that returns the error as an ExtendedError
// if it is one. Otherwise it returns nil
func AsExtendedError(err error) (ee *ExtendedError) {
	if errors.As(err, &ee) {
		return ee
	}
	return nil
}

// ContainsError checks if the error contains the specified error message
func ContainsError(err error, msg string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), msg)
}

// Contains checks if the error contains the code
func Contains(err error, code string) bool {
	return ContainsError(err, code)
}

// N creates a new error with the code and message. The message is also
// used as the user facing message
func N(code, msg string) error {
	return WWM(nil, code, msg, msg)
}

// WWM calls W, then sets the extended error's message to the passed message
func WWM(err error, code, msg string, debugMessages ...string) error {
	ee := W(err, code, debugMessages...)
	ee.Message = NewStr(code, msg)
	return ee
}

// W checks if the passed error has been wrapped before by this func
// and either wraps the original error as an ExtendedError or adds the
// debug messages to the already existing ExtendedError's InnerError.
// This function always returns an extended error
func W(err error, code string, debugMessages ...string) (ee *ExtendedError) {
	msg := NewStr(code, debugMessages...)

	// If the error is already an extended error, then just update the
	// inner error
	if ee = AsExtendedError(err); ee != nil {
		ee.InnerError = fmt.Errorf("[%s]%+v", msg, ee.InnerError)
		return ee
	}

	ee = &ExtendedError{
		original: err,
	}

	if err == nil {
		ee.InnerError = pkgerrors.New(msg)
		ee.Message = msg
		return ee
	}

	ee.InnerError = fmt.Errorf("[%s]%s", msg, err.Error())
	ee.Message = NewStr(code, MsgUnknownInternalServerError)

	return ee
}

// Cause returns the originating error of an extended error, or the error
// itself if it is not one
func Cause(err error) error {
	if ee := AsExtendedError(err); ee != nil && ee.original != nil {
		return ee.original
	}
	return err
}

// Reason returns a single line description of the error for people: the
// originating error's message, or the extended error's message when it did
// not wrap one
func Reason(err error) string {
	if err == nil {
		return ""
	}

	ee := AsExtendedError(err)
	if ee == nil {
		return err.Error()
	}
	if ee.original != nil {
		return ee.original.Error()
	}

	return ee.Message
}
