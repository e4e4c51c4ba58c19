package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"direct match", ErrNotFound, true},
		{"wrapped once", fmt.Errorf("load table: %w", ErrNotFound), true},
		{"wrapped twice", fmt.Errorf("store: %w", fmt.Errorf("sqlite: %w", ErrNotFound)), true},
		{"different error", ErrValidation, false},
		{"nil error", nil, false},
		{"unrelated error", errors.New("something else"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.want {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsValidation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"direct match", ErrValidation, true},
		{"wrapped", fmt.Errorf("config: %w", ErrValidation), true},
		{"different error", ErrNotFound, false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidation(tt.err); got != tt.want {
				t.Errorf("IsValidation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsUnsupportedFormat(t *testing.T) {
	if !IsUnsupportedFormat(fmt.Errorf("names.xml: %w", ErrUnsupportedFormat)) {
		t.Error("expected wrapped ErrUnsupportedFormat to match")
	}
	if IsUnsupportedFormat(ErrSourceUnavailable) {
		t.Error("ErrSourceUnavailable should not match ErrUnsupportedFormat")
	}
}

func TestTableError(t *testing.T) {
	err := &TableError{Source: "sqlite", Table: "us", Cause: ErrSourceUnavailable}

	if got, want := err.Error(), "sqlite: loading table us: dictionary source unavailable"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !IsSourceUnavailable(err) {
		t.Error("expected TableError to unwrap to its cause")
	}

	var te *TableError
	if !errors.As(fmt.Errorf("load: %w", err), &te) || te.Table != "us" {
		t.Error("expected errors.As to find the TableError")
	}
}
