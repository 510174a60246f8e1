package features

import (
	"fmt"
	"strings"
	"time"
)

// SchemaError reports a mismatch between the columns a predictor was trained
// on and the columns offered at inference time.
type SchemaError struct {
	Version string
	Missing []string
	Extra   []string
}

func (e *SchemaError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, fmt.Sprintf("unexpected %s", strings.Join(e.Extra, ", ")))
	}
	return fmt.Sprintf("feature schema %q mismatch: %s", e.Version, strings.Join(parts, "; "))
}

// InsufficientHistoryError reports a date without a fully populated lag window.
type InsufficientHistoryError struct {
	Date   time.Time
	Reason string
}

func (e *InsufficientHistoryError) Error() string {
	if e.Date.IsZero() {
		return fmt.Sprintf("insufficient history: %s", e.Reason)
	}
	return fmt.Sprintf("insufficient history for %s: %s", e.Date.Format(time.DateOnly), e.Reason)
}

// EncodingError reports a description label absent from the encoding table.
type EncodingError struct {
	Label   string
	Version string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("description %q not in encoding %s", e.Label, e.Version)
}

// MissingVariableError reports an observation lacking a tracked variable.
type MissingVariableError struct {
	Variable string
	Date     time.Time
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("observation %s missing tracked variable %s", e.Date.Format(time.DateOnly), e.Variable)
}
