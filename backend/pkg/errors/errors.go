package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeVersionConflict represents a stale expected version
	ErrorTypeVersionConflict ErrorType = "version_conflict"
	// ErrorTypeNotFound represents a missing course, topic, slide or concept
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeAlreadyExists represents an attempt to initialize an existing document
	ErrorTypeAlreadyExists ErrorType = "already_exists"
	// ErrorTypeValidation represents malformed input rejected before any mutation
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeInvalidTransition represents an approval transition outside the state table
	ErrorTypeInvalidTransition ErrorType = "invalid_transition"
	// ErrorTypeDuplicate represents a duplicate concept or relation
	ErrorTypeDuplicate ErrorType = "duplicate"
	// ErrorTypeIntegrity represents a dangling relation endpoint
	ErrorTypeIntegrity ErrorType = "integrity"
	// ErrorTypeIDCollision represents two distinct labels hashing to the same concept id
	ErrorTypeIDCollision ErrorType = "id_collision"
	// ErrorTypeStorage represents persistence backend failures
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// ErrorType lets callers classify an error without knowing its concrete type.
func (e *BaseError) ErrorType() ErrorType {
	return e.Type
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Concurrency Errors

// ErrVersionConflict is returned when expectedVersion does not match the stored version.
// No document accompanies it; the caller must reload and recompute.
type ErrVersionConflict struct {
	*BaseError
	CourseID        string
	Kind            string
	ExpectedVersion int64
	CurrentVersion  int64
}

func NewVersionConflict(kind, courseID string, expected, current int64) *ErrVersionConflict {
	return &ErrVersionConflict{
		BaseError: NewBaseError(ErrorTypeVersionConflict,
			fmt.Sprintf("%s %s: expected version %d, stored version %d", kind, courseID, expected, current), nil),
		CourseID:        courseID,
		Kind:            kind,
		ExpectedVersion: expected,
		CurrentVersion:  current,
	}
}

// Lookup Errors

// ErrNotFound is returned when a referenced entity does not exist
type ErrNotFound struct {
	*BaseError
	Entity string
	ID     string
}

func NewNotFound(entity, id string) *ErrNotFound {
	return &ErrNotFound{
		BaseError: NewBaseError(ErrorTypeNotFound, fmt.Sprintf("%s not found: %s", entity, id), nil),
		Entity:    entity,
		ID:        id,
	}
}

// ErrAlreadyExists is returned when initializing a document that is already present
type ErrAlreadyExists struct {
	*BaseError
	Entity string
	ID     string
}

func NewAlreadyExists(entity, id string) *ErrAlreadyExists {
	return &ErrAlreadyExists{
		BaseError: NewBaseError(ErrorTypeAlreadyExists, fmt.Sprintf("%s already exists: %s", entity, id), nil),
		Entity:    entity,
		ID:        id,
	}
}

// Input Errors

// ErrValidation is returned for malformed input; nothing has been written
type ErrValidation struct {
	*BaseError
	Field  string
	Reason string
}

func NewValidation(field, reason string) *ErrValidation {
	return &ErrValidation{
		BaseError: NewBaseError(ErrorTypeValidation, fmt.Sprintf("invalid %s: %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// WrapValidation tags a lower-level validation failure (e.g. struct tags) with the offending field
func WrapValidation(field string, err error) *ErrValidation {
	return &ErrValidation{
		BaseError: NewBaseError(ErrorTypeValidation, fmt.Sprintf("invalid %s", field), err),
		Field:     field,
		Reason:    err.Error(),
	}
}

// ErrInvalidTransition is returned when an approval transition is not in the state table
type ErrInvalidTransition struct {
	*BaseError
	TopicID string
	From    string
	To      string
}

func NewInvalidTransition(topicID, from, to string) *ErrInvalidTransition {
	return &ErrInvalidTransition{
		BaseError: NewBaseError(ErrorTypeInvalidTransition,
			fmt.Sprintf("topic %s: transition %s -> %s not permitted", topicID, from, to), nil),
		TopicID: topicID,
		From:    from,
		To:      to,
	}
}

// Concept Graph Errors

// ErrDuplicateConcept is returned when a concept with the same normalized label exists
type ErrDuplicateConcept struct {
	*BaseError
	ConceptID string
	Label     string
}

func NewDuplicateConcept(conceptID, label string) *ErrDuplicateConcept {
	return &ErrDuplicateConcept{
		BaseError: NewBaseError(ErrorTypeDuplicate, fmt.Sprintf("concept %q already exists as %s", label, conceptID), nil),
		ConceptID: conceptID,
		Label:     label,
	}
}

// ErrDuplicateRelation is returned when the same (source, target, type) relation exists
type ErrDuplicateRelation struct {
	*BaseError
	SourceID     string
	TargetID     string
	RelationType string
}

func NewDuplicateRelation(sourceID, targetID, relationType string) *ErrDuplicateRelation {
	return &ErrDuplicateRelation{
		BaseError: NewBaseError(ErrorTypeDuplicate,
			fmt.Sprintf("relation %s -[%s]-> %s already exists", sourceID, relationType, targetID), nil),
		SourceID:     sourceID,
		TargetID:     targetID,
		RelationType: relationType,
	}
}

// ErrIntegrityViolation is returned when a relation would reference a missing concept
type ErrIntegrityViolation struct {
	*BaseError
	ConceptID string
}

func NewIntegrityViolation(conceptID, reason string) *ErrIntegrityViolation {
	return &ErrIntegrityViolation{
		BaseError: NewBaseError(ErrorTypeIntegrity, fmt.Sprintf("%s: %s", reason, conceptID), nil),
		ConceptID: conceptID,
	}
}

// ErrIDCollision is returned when two different normalized labels produce the same truncated hash
type ErrIDCollision struct {
	*BaseError
	ConceptID     string
	ExistingLabel string
	Label         string
}

func NewIDCollision(conceptID, existingLabel, label string) *ErrIDCollision {
	return &ErrIDCollision{
		BaseError: NewBaseError(ErrorTypeIDCollision,
			fmt.Sprintf("concept id %s of %q collides with existing %q", conceptID, label, existingLabel), nil),
		ConceptID:     conceptID,
		ExistingLabel: existingLabel,
		Label:         label,
	}
}

// Storage Errors

// ErrStorage is returned when the persistence backend fails
type ErrStorage struct {
	*BaseError
	Operation string
}

func NewStorage(operation string, err error) *ErrStorage {
	return &ErrStorage{
		BaseError: NewBaseError(ErrorTypeStorage, fmt.Sprintf("storage operation failed: %s", operation), err),
		Operation: operation,
	}
}

// Config Errors

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

type typed interface {
	ErrorType() ErrorType
}

// TypeOf returns the category of the first classified error in the chain, or "" if none.
func TypeOf(err error) ErrorType {
	var t typed
	if errors.As(err, &t) {
		return t.ErrorType()
	}
	return ""
}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	return err != nil && TypeOf(err) == errType
}

// IsRetryable reports whether a caller may retry after reloading state.
// The store itself never retries; a conflict must be recomputed against the fresh version.
func IsRetryable(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeVersionConflict, ErrorTypeStorage:
		return true
	}
	return false
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return errors.As(err, target)
}
