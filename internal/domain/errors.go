package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDate is matched by every InvalidDateError.
var ErrInvalidDate = errors.New("invalid date")

// MissingFieldsError aborts a run when required canonical fields stay unresolved.
type MissingFieldsError struct {
	Fields []CanonicalField
}

func (e *MissingFieldsError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = string(f)
	}
	return "missing required fields: " + strings.Join(names, ", ")
}

// InvalidDateError reports a raw value the date normalizer could not read.
type InvalidDateError struct {
	Value  string
	Reason string
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("invalid date %q: %s", e.Value, e.Reason)
}

func (e *InvalidDateError) Is(target error) bool {
	return target == ErrInvalidDate
}

// AmbiguousMappingError is a warning: two fields wanted the same raw column.
type AmbiguousMappingError struct {
	Column string
	Kept   CanonicalField
	Lost   CanonicalField
}

func (e *AmbiguousMappingError) Error() string {
	return fmt.Sprintf("column %q matches both %s and %s; kept %s", e.Column, e.Kept, e.Lost, e.Kept)
}

// RenderingGapWarning reports a {{FIELD}} marker left in the output.
type RenderingGapWarning struct {
	Marker        string `json:"marker"`
	VoucherNumber string `json:"voucher_number"`
}

func (w RenderingGapWarning) Error() string {
	return fmt.Sprintf("unresolved marker {{%s}} in voucher %s", w.Marker, w.VoucherNumber)
}

// InputError reports a spreadsheet or template that could not be read.
type InputError struct {
	Source string
	Err    error
}

func (e *InputError) Error() string {
	return e.Source + ": " + e.Err.Error()
}

func (e *InputError) Unwrap() error {
	return e.Err
}
