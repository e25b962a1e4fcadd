package errs

import (
	"fmt"
	"runtime/debug"
)

var (
	PrintErr func(e error) string
	// CodeNames maps error codes to readable names. Packages owning codes
	// register their names here from init.
	CodeNames = map[int]string{}
)

type Error struct {
	Code  int
	msg   string
	cause error
	Stack string
}

func New(code int, err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return &Error{Code: code, cause: err, Stack: string(debug.Stack())}
}

func NewMsg(code int, format string, args ...interface{}) *Error {
	return &Error{Code: code, msg: fmt.Sprintf(format, args...), Stack: string(debug.Stack())}
}

func NewFull(code int, err error, format string, args ...interface{}) *Error {
	res := &Error{Code: code, cause: err, Stack: string(debug.Stack())}
	res.msg = fmt.Sprintf(format, args...)
	return res
}

func (e *Error) CodeName() string {
	if name, ok := CodeNames[e.Code]; ok {
		return name
	}
	return fmt.Sprintf("Code%d", e.Code)
}

func (e *Error) Message() string {
	if e.msg != "" {
		return e.msg
	}
	if e.cause != nil {
		if PrintErr != nil {
			return PrintErr(e.cause)
		}
		return e.cause.Error()
	}
	return ""
}

/*
Short returns "Name: message" without the stack, for log fields.
*/
func (e *Error) Short() string {
	return fmt.Sprintf("%s: %s", e.CodeName(), e.Message())
}

func (e *Error) Error() string {
	if e.Stack != "" {
		return fmt.Sprintf("[%s] %s\n%s", e.CodeName(), e.Message(), e.Stack)
	}
	return e.Short()
}

func (e *Error) Unwrap() error {
	return e.cause
}
