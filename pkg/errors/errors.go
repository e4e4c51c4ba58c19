// Package errors provides common domain error types for gendercode.
//
// Sentinel errors describe conditions callers may want to branch on with
// errors.Is. Lookups and batch classification never return these; they come
// from the supporting layers: dictionary sources, configuration and the CLI.
//
// Usage:
//
//	import gcerrors "github.com/otherjamesbrown/gendercode/pkg/errors"
//
//	if gcerrors.IsNotFound(err) {
//	    // handle missing table
//	}
package errors

import (
	"errors"
	"fmt"
)

// Domain errors.
var (
	// ErrNotFound indicates the requested table or resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates invalid input or configuration.
	ErrValidation = errors.New("validation error")

	// ErrUnsupportedFormat indicates a file or source kind that cannot be read.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrSourceUnavailable indicates the dictionary backend could not be reached.
	ErrSourceUnavailable = errors.New("dictionary source unavailable")
)

// IsNotFound reports whether any error in err's chain is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether any error in err's chain is ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsUnsupportedFormat reports whether any error in err's chain is ErrUnsupportedFormat.
func IsUnsupportedFormat(err error) bool {
	return errors.Is(err, ErrUnsupportedFormat)
}

// IsSourceUnavailable reports whether any error in err's chain is ErrSourceUnavailable.
func IsSourceUnavailable(err error) bool {
	return errors.Is(err, ErrSourceUnavailable)
}

// TableError records a failure to load one dictionary table from a source.
type TableError struct {
	Source string
	Table  string
	Cause  error
}

func (e *TableError) Error() string {
	return fmt.Sprintf("%s: loading table %s: %v", e.Source, e.Table, e.Cause)
}

func (e *TableError) Unwrap() error {
	return e.Cause
}
