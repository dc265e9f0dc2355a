package engine

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeFetch      Code = "FETCH_ERROR"
	CodeSubmit     Code = "SUBMIT_ERROR"
	CodeValidation Code = "VALIDATION_ERROR"
)

var (
	ErrEmptyBody     = errors.New("comment body is empty")
	ErrMissingTarget = errors.New("reaction has no target comment")
	ErrClosed        = errors.New("discussion closed")
)

// Error is returned by every coordinator operation that fails. Op names the
// operation ("load", "create", "edit", "react").
type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func fetchError(op string, err error) error {
	return &Error{Code: CodeFetch, Op: op, Err: err}
}

func submitError(op string, err error) error {
	return &Error{Code: CodeSubmit, Op: op, Err: err}
}

func validationError(op string, err error) error {
	return &Error{Code: CodeValidation, Op: op, Err: err}
}

func hasCode(err error, code Code) bool {
	var engineErr *Error
	return errors.As(err, &engineErr) && engineErr.Code == code
}

func IsFetch(err error) bool      { return hasCode(err, CodeFetch) }
func IsSubmit(err error) bool     { return hasCode(err, CodeSubmit) }
func IsValidation(err error) bool { return hasCode(err, CodeValidation) }
