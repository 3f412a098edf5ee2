package types

import (
	"errors"
	"fmt"
)

// Field errors returned by descriptors and the metadata façade.
var (
	ErrUnknownField        = errors.New("unknown field")
	ErrTypeMismatch        = errors.New("type mismatch")
	ErrFormatViolation     = errors.New("format violation")
	ErrVocabularyViolation = errors.New("value not in controlled vocabulary")
	ErrLengthViolation     = errors.New("list length violation")
	ErrStoreWrite          = errors.New("packet store write failed")
)

// Packet errors.
var (
	ErrPropertyShape = errors.New("property has a different shape")
	ErrInvalidPath   = errors.New("invalid property path")
)

// Schema errors.
var (
	ErrDuplicateField    = errors.New("duplicate field name")
	ErrDuplicateProperty = errors.New("duplicate namespace and path")
	ErrUnknownKind       = errors.New("unknown field kind")
	ErrUnknownNamespace  = errors.New("unknown namespace")
	ErrInvalidDescriptor = errors.New("invalid field descriptor")
)

// Catalog lifecycle errors.
var (
	ErrCatalogDetached = errors.New("catalog is detached")
	ErrAlreadyAttached = errors.New("catalog is already attached")
	ErrPacketNotFound  = errors.New("packet not found")
	ErrInvalidID       = errors.New("invalid packet ID")
)

// File errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// FieldError reports a failure on a single field. Err is one of the
// sentinel errors above so callers can classify it with errors.Is.
type FieldError struct {
	Field  string
	Err    error
	Reason string
}

func (e *FieldError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Reason == "" {
		return fmt.Sprintf("field %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("field %s: %v: %s", e.Field, e.Err, e.Reason)
}

func (e *FieldError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
