package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

func IsValidation(err error) bool {
	_, ok := errors.Cause(err).(*ValidationError)
	return ok
}

// ConflictError reports a uniqueness violation on one field (duplicate email, receipt, class name...).
type ConflictError struct {
	Field   string
	Message string
}

func NewConflictError(field, msg string) error {
	return &ConflictError{Field: field, Message: msg}
}

func (err ConflictError) Error() string {
	return err.Message
}

func IsConflict(err error) bool {
	_, ok := errors.Cause(err).(*ConflictError)
	return ok
}

// NotFoundError is returned by repositories when no row matches.
type NotFoundError struct {
	message string
}

func NewNotFoundError(msg string) error {
	return &NotFoundError{message: msg}
}

func (err NotFoundError) Error() string {
	return err.message
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

// StateError is returned when a status transition is not allowed.
type StateError struct {
	Entity string
	From   string
	To     string
}

func NewStateError(entity, from, to string) error {
	return &StateError{Entity: entity, From: from, To: to}
}

func (err StateError) Error() string {
	return fmt.Sprintf("cannot change %s status from %q to %q", err.Entity, err.From, err.To)
}

func IsState(err error) bool {
	_, ok := errors.Cause(err).(*StateError)
	return ok
}

// RuleError is returned when a business rule refuses an otherwise valid request.
type RuleError struct {
	message string
}

func NewRuleError(msg string) error {
	return &RuleError{message: msg}
}

func (err RuleError) Error() string {
	return err.message
}

func IsRule(err error) bool {
	_, ok := errors.Cause(err).(*RuleError)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
