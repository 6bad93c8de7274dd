package db

import "errors"

// Error kinds. Handlers switch on these with errors.Is to pick a status code.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
)

// Error carries the user-facing message while unwrapping to its kind.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }
func (e *Error) Unwrap() error { return e.Kind }

func notFound(msg string) *Error { return &Error{Kind: ErrNotFound, Msg: msg} }
func conflict(msg string) *Error { return &Error{Kind: ErrConflict, Msg: msg} }
func invalid(msg string) *Error  { return &Error{Kind: ErrValidation, Msg: msg} }

var (
	ErrUserNotFound      = notFound("User not found")
	ErrEquipmentNotFound = notFound("Equipment not found!")
	ErrRequestNotFound   = notFound("Request not found!")

	ErrEquipmentUnavailable   = conflict("Equipment not available!")
	ErrDuplicateActiveRequest = conflict("You already have an active request or borrowed this equipment!")
	ErrEquipmentInUse         = conflict("Cannot delete equipment with existing borrow requests!")
	ErrInvalidTransition      = conflict("Request can no longer change status")

	ErrInvalidQuantity = invalid("availableQuantity must be between 0 and quantity")
	ErrMissingFields   = invalid("Email and password are required")
	ErrInvalidRole     = invalid("role must be STUDENT or ADMIN")

	ErrInvalidCredentials = &Error{Kind: ErrUnauthorized, Msg: "Invalid email or password"}
)

// EmailExistsError is returned by CreateUser for a taken email.
func EmailExistsError(email string) error {
	return conflict("Email already registered: " + email)
}
