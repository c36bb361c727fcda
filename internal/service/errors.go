package service

import "errors"

// Error kinds the HTTP layer maps onto status codes.
var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrInvalid   = errors.New("invalid request")
)

// Error carries a caller-facing message and one of the kinds above.
type Error struct {
	kind error
	msg  string
}

func (e *Error) Error() string { return e.msg }
func (e *Error) Unwrap() error { return e.kind }

func notFound(msg string) error  { return &Error{kind: ErrNotFound, msg: msg} }
func forbidden(msg string) error { return &Error{kind: ErrForbidden, msg: msg} }
func invalid(msg string) error   { return &Error{kind: ErrInvalid, msg: msg} }
