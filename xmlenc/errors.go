package xmlenc

import (
	"errors"
	"fmt"
)

// Kind classifies a processing failure the way callers need to branch on:
// by what went wrong, not by which function returned it.
type Kind string

const (
	// KindXMLFailed means the underlying XML library reported a parse or
	// serialization failure.
	KindXMLFailed Kind = "XML_FAILED"
	// KindFailed is a generic engine failure with no more specific kind.
	KindFailed Kind = "XMLSEC_FAILED"
	// KindXSLTFailed means stylesheet compilation or application failed.
	KindXSLTFailed Kind = "XSLT_FAILED"
	// KindMallocFailed means a buffer allocation/grow operation failed.
	KindMallocFailed Kind = "MALLOC_FAILED"
	// KindInvalidNode means a required child element is missing.
	KindInvalidNode Kind = "INVALID_NODE"
	// KindUnexpectedNode means a node was found where a different one
	// was expected (e.g. a sibling out of the order the schema requires).
	KindUnexpectedNode Kind = "UNEXPECTED_NODE"
	// KindInvalidNodeContent means a node's text/attribute content does
	// not parse as the type it claims to hold.
	KindInvalidNodeContent Kind = "INVALID_NODE_CONTENT"
	// KindInvalidData means the data handed to an operation is malformed
	// or out of place for the current context (e.g. a CipherReference
	// where only CipherValue is legal).
	KindInvalidData Kind = "INVALID_DATA"
	// KindInvalidType means a value's type tag doesn't match what the
	// caller asked for (e.g. asking to decrypt an EncryptedKey as
	// EncryptedData).
	KindInvalidType Kind = "INVALID_TYPE"
	// KindInvalidStatus means an operation was attempted while the
	// context/transform was in a state that doesn't allow it.
	KindInvalidStatus Kind = "INVALID_STATUS"
	// KindKeyNotFound means no key manager candidate matched the
	// required algorithm/usage.
	KindKeyNotFound Kind = "KEY_NOT_FOUND"
	// KindInvalidURI means a CipherReference/DataReference URI could not
	// be classified or resolved.
	KindInvalidURI Kind = "INVALID_URI"
)

// Error is the structured error type returned throughout this package. It
// carries a Kind for programmatic branching, the processing location
// (typically a component/function name) and an optional wrapped cause,
// following the same errors.New/fmt.Errorf("%w", ...) idiom used
// elsewhere in this module.
type Error struct {
	Kind     Kind
	Location string
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("xmlenc [%s] %s: %s: %v", e.Kind, e.Location, e.Message, e.Cause)
	}
	return fmt.Sprintf("xmlenc [%s] %s: %s", e.Kind, e.Location, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// newError constructs an *Error without a wrapped cause.
func newError(kind Kind, location, message string) *Error {
	return &Error{Kind: kind, Location: location, Message: message}
}

// wrapError constructs an *Error wrapping a lower-level cause.
func wrapError(kind Kind, location, message string, cause error) *Error {
	return &Error{Kind: kind, Location: location, Message: message, Cause: cause}
}

// NewXSLTError and WrapXSLTError are exported for the xslt subpackage,
// which cannot call the unexported newError/wrapError constructors
// directly but still needs to report failures tagged KindXSLTFailed.
func NewXSLTError(message string) error {
	return newError(KindXSLTFailed, "xslt.transform", message)
}

func WrapXSLTError(message string, cause error) error {
	return wrapError(KindXSLTFailed, "xslt.transform", message, cause)
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, and reports whether one was found.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
