// internal/options/errors.go
//
// Error taxonomy for option validation.
//
// Every failure is a *FieldError carrying its Kind and the offending
// field name.  Callers branch with errors.Is against the per-kind
// sentinels, or against ErrInvalidOptions to catch any of them.
package options

import (
	"errors"
	"fmt"
)

// Kind classifies a validation failure.
type Kind int

const (
	MissingOptions Kind = iota + 1
	MissingCredential
	MissingAccountEndpoint
	MissingDatabaseID
	MissingContainerID
)

var kindNames = map[Kind]string{
	MissingOptions:         "missing_options",
	MissingCredential:      "missing_credential",
	MissingAccountEndpoint: "missing_account_endpoint",
	MissingDatabaseID:      "missing_database_id",
	MissingContainerID:     "missing_container_id",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ErrInvalidOptions matches every *FieldError.
var ErrInvalidOptions = errors.New("invalid repository options")

// Per-kind sentinels.
var (
	ErrMissingOptions         = &FieldError{Kind: MissingOptions}
	ErrMissingCredential      = &FieldError{Kind: MissingCredential}
	ErrMissingAccountEndpoint = &FieldError{Kind: MissingAccountEndpoint}
	ErrMissingDatabaseID      = &FieldError{Kind: MissingDatabaseID}
	ErrMissingContainerID     = &FieldError{Kind: MissingContainerID}
)

// FieldError names the missing field or argument.
type FieldError struct {
	Kind  Kind
	Field string
}

func (e *FieldError) Error() string {
	if e.Field == "" {
		return ErrInvalidOptions.Error() + ": " + e.Kind.String()
	}
	return fmt.Sprintf("%s: %s (%s)", ErrInvalidOptions, e.Field, e.Kind)
}

// Is matches ErrInvalidOptions and any *FieldError of the same Kind.
func (e *FieldError) Is(target error) bool {
	if target == ErrInvalidOptions {
		return true
	}
	t, ok := target.(*FieldError)
	return ok && t.Kind == e.Kind
}

func missing(k Kind, field string) error {
	return &FieldError{Kind: k, Field: field}
}
