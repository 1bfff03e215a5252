// Package unityerr defines the single error type returned by the asset index,
// the reference codec and the document merger. Every failure carries a Kind
// so callers can branch on the failure source without string matching.
package unityerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies the source of a failure.
type Kind int

const (
	// KindUnknown is reported by KindOf for errors not produced by this package.
	KindUnknown Kind = iota
	// KindIO covers open, read, write and rename failures.
	KindIO
	// KindParse covers malformed document syntax.
	KindParse
	// KindUnsupportedFormatVersion is returned when a sidecar declares a format other than 2.
	KindUnsupportedFormatVersion
	// KindGUIDNotFound is returned when a GUID is not present in the index.
	KindGUIDNotFound
	// KindNameNotFound is returned when no indexed filename contains a fragment.
	KindNameNotFound
	// KindSchemaMismatch is returned when a typed projection does not fit a document.
	KindSchemaMismatch
	// KindDuplicateGUID is returned when two sidecars declare the same GUID and duplicates are rejected.
	KindDuplicateGUID
	// KindReferenceMismatch is returned by strict decoding when fileID/type disagree with the kind.
	KindReferenceMismatch
)

var kindNames = map[Kind]string{
	KindUnknown:                  "unknown",
	KindIO:                       "io failure",
	KindParse:                    "parse failure",
	KindUnsupportedFormatVersion: "unsupported format version",
	KindGUIDNotFound:             "guid not found",
	KindNameNotFound:             "name not found",
	KindSchemaMismatch:           "schema mismatch",
	KindDuplicateGUID:            "duplicate guid",
	KindReferenceMismatch:        "reference mismatch",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the tagged error type. Only the fields relevant to Kind are set.
type Error struct {
	Kind     Kind
	Path     string
	GUID     string
	Fragment string
	Version  int
	Msg      string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	switch e.Kind {
	case KindUnsupportedFormatVersion:
		msg = fmt.Sprintf("%s %d", msg, e.Version)
	case KindGUIDNotFound, KindDuplicateGUID:
		msg = fmt.Sprintf("%s %q", msg, e.GUID)
	case KindNameNotFound:
		msg = fmt.Sprintf("%s %q", msg, e.Fragment)
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying error to errors.Is and errors.As.
func (e *Error) Unwrap() error { return e.Err }

// IO wraps a filesystem failure on path.
func IO(path string, err error) error {
	return &Error{Kind: KindIO, Path: path, Err: err}
}

// Parse wraps a syntax failure on path.
func Parse(path string, err error) error {
	return &Error{Kind: KindParse, Path: path, Err: err}
}

// UnsupportedFormatVersion reports a sidecar with a format version other than 2.
func UnsupportedFormatVersion(path string, version int) error {
	return &Error{Kind: KindUnsupportedFormatVersion, Path: path, Version: version}
}

// GUIDNotFound reports a missing GUID.
func GUIDNotFound(guid string) error {
	return &Error{Kind: KindGUIDNotFound, GUID: guid}
}

// NameNotFound reports a name fragment with no matching file.
func NameNotFound(fragment string) error {
	return &Error{Kind: KindNameNotFound, Fragment: fragment}
}

// SchemaMismatch reports a typed projection that does not fit the document at path.
func SchemaMismatch(path string, format string, args ...interface{}) error {
	return &Error{Kind: KindSchemaMismatch, Path: path, Msg: fmt.Sprintf(format, args...)}
}

// WrapSchemaMismatch is SchemaMismatch with an underlying decoder error.
func WrapSchemaMismatch(path string, err error) error {
	return &Error{Kind: KindSchemaMismatch, Path: path, Err: err}
}

// DuplicateGUID reports a GUID declared by both first and second.
func DuplicateGUID(guid, first, second string) error {
	return &Error{Kind: KindDuplicateGUID, GUID: guid, Path: second, Msg: "already declared by " + first}
}

// ReferenceMismatch reports a record whose constants do not match the expected kind.
func ReferenceMismatch(kind string, format string, args ...interface{}) error {
	return &Error{Kind: KindReferenceMismatch, Msg: kind + ": " + fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
