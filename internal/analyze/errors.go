package analyze

import "fmt"

// SpecificationParseError reports model output that could not be decoded as
// a team design, even after repair. Raw is the untouched model output.
type SpecificationParseError struct {
	Raw string
	Err error
}

func (e *SpecificationParseError) Error() string {
	return fmt.Sprintf("parse team specification (%d chars of model output): %v", len(e.Raw), e.Err)
}

func (e *SpecificationParseError) Unwrap() error { return e.Err }

// SpecificationValidationError reports a decoded design that is structurally
// or referentially inconsistent. Field is a path such as "tasks[1].agent".
type SpecificationValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *SpecificationValidationError) Error() string {
	return fmt.Sprintf("invalid team specification: %s: %s", e.Field, e.Reason)
}

func (e *SpecificationValidationError) Unwrap() error { return e.Err }
