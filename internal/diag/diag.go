// Package diag implements the error-kind taxonomy: a single struct carrying
// a kind, a message, and an optional source location, with one constructor
// per kind.
//
// Propagation policy: recoverable errors are accumulated into
// a Diagnostic slice and returned alongside a best-effort partial tree.
// Programmer errors (InvalidSpec) are built by InvalidSpecf and returned
// synchronously as errors wrapped with github.com/pkg/errors, so they carry
// a stack trace pointing at the call that built them; nothing here panics.
package diag

import (
	"fmt"

	"github.com/pkg/errors"

	"cqasm/internal/srcloc"
)

// Kind enumerates the error kinds
type Kind string

const (
	ParseError            Kind = "ParseError"
	NameResolution        Kind = "NameResolution"
	OverloadResolution    Kind = "OverloadResolution"
	TypePromotion         Kind = "TypePromotion"
	IndexOutOfRange       Kind = "IndexOutOfRange"
	DuplicateDeclaration  Kind = "DuplicateDeclaration"
	InstructionConstraint Kind = "InstructionConstraint"
	VersionMismatch       Kind = "VersionMismatch"
	InvalidSpec           Kind = "InvalidSpec"
	DivisionByZero        Kind = "DivisionByZero"
	InvalidArgument       Kind = "InvalidArgument"
)

// Diagnostic is a single accumulated error with source location.
type Diagnostic struct {
	Kind     Kind
	Message  string
	Location srcloc.Range
}

func (d *Diagnostic) Error() string {
	if d.Location.IsKnown() {
		return fmt.Sprintf("%s: %s (at %s)", d.Kind, d.Message, d.Location)
	}
	return fmt.Sprintf("%s: %s", d.Kind, d.Message)
}

// New builds a Diagnostic of the given kind at loc.
func New(kind Kind, loc srcloc.Range, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Kind: kind, Message: fmt.Sprintf(format, args...), Location: loc}
}

// Sink accumulates diagnostics without ever stopping analysis on the first
// error.
type Sink struct {
	items []*Diagnostic
}

func (s *Sink) Add(d *Diagnostic) { s.items = append(s.items, d) }

// Addf is a convenience wrapper around New+Add.
func (s *Sink) Addf(kind Kind, loc srcloc.Range, format string, args ...interface{}) {
	s.Add(New(kind, loc, format, args...))
}

func (s *Sink) Items() []*Diagnostic { return s.items }
func (s *Sink) Empty() bool          { return len(s.items) == 0 }

// Merge appends other's diagnostics after s's own, used to combine parse-time
// and analysis-time sinks into the order a reader expects: lexical/syntactic
// problems first, semantic problems after.
func (s *Sink) Merge(other *Sink) {
	if other == nil {
		return
	}
	s.items = append(s.items, other.items...)
}

// Unwrap converts a non-empty Sink into a single exceptional error for
// callers that want fail-fast instead of accumulation. The full list is still available via Items.
func (s *Sink) Unwrap() error {
	if s.Empty() {
		return nil
	}
	if len(s.items) == 1 {
		return s.items[0]
	}
	return fmt.Errorf("%d errors, first: %s", len(s.items), s.items[0].Error())
}

// InvalidSpecf raises a synchronous programmer error for a malformed
// shorthand type spec or an incompatible double-registration, wrapped with
// a stack trace via github.com/pkg/errors.
func InvalidSpecf(format string, args ...interface{}) error {
	return errors.WithStack(&Diagnostic{Kind: InvalidSpec, Message: fmt.Sprintf(format, args...)})
}
