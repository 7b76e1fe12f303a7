package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalidJSON is returned when a trade submission is not a JSON object.
	ErrInvalidJSON = errors.New("invalid JSON data")
	// ErrNoPosition is returned for a sell of an instrument with no holding.
	ErrNoPosition = errors.New("no holdings found in portfolio")
	// ErrInsufficientQuantity is returned for a sell larger than the holding.
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	// ErrRiskLimit is returned for a buy that would breach a configured limit.
	ErrRiskLimit = errors.New("risk limit exceeded")
	// ErrNotFound is returned when an instrument has no open holding.
	ErrNotFound = errors.New("not found")
	// ErrUnknownInstrument is returned by price sources for unpriced symbols.
	ErrUnknownInstrument = errors.New("unknown instrument")
)

const (
	msgRequired  = "Missing data for required field."
	msgNotNumber = "Not a valid number."
)

// ValidationError maps request fields to human-readable problems.
type ValidationError struct {
	Fields map[string][]string
}

// Add records msg against field.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// Err returns e, or nil when nothing was recorded.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, f := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", f, strings.Join(e.Fields[f], " ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsValidation unwraps a *ValidationError from err.
func AsValidation(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
