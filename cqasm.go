// Package cqasm is the public entry point: parsing and analyzing cQASM
// source text or files under either supported dialect, plus the list-form
// and JSON-form serializations of the result.
package cqasm

import (
	"fmt"
	"os"

	"cqasm/internal/analyzer"
	"cqasm/internal/ast"
	"cqasm/internal/diag"
	"cqasm/internal/dialect"
	"cqasm/internal/lexer"
	"cqasm/internal/parser"
	"cqasm/internal/serialize"
	"cqasm/internal/srcloc"
	"cqasm/internal/version"
)

// DefaultFileName is used by the *String entry points when the caller
// doesn't supply one.
const DefaultFileName = "<unknown>"

// Dialect re-exports internal/dialect's type so callers never need to
// import it directly.
type Dialect = dialect.Dialect

// V1 and V3 re-export the dialect tags so callers don't need to import
// internal/dialect directly.
const (
	V1 = dialect.V1
	V3 = dialect.V3
)

// ParseString tokenizes and parses src under dialect d. fileName is used
// only for diagnostic locations; an empty string defaults to
// DefaultFileName. The returned Program is always non-nil; the returned
// Sink holds any lexical or syntactic diagnostics.
func ParseString(d dialect.Dialect, src, fileName string) (*ast.Program, *diag.Sink) {
	if fileName == "" {
		fileName = DefaultFileName
	}
	sc := lexer.New(src, d)
	tokens := sc.ScanTokens()
	p := parser.New(tokens, d, fileName)
	prog, errs := p.Parse()
	if sc.HadError() {
		for _, msg := range sc.Errors() {
			errs.Addf(diag.ParseError, srcloc.Range{File: fileName}, "%s", msg)
		}
	}
	return prog, errs
}

// ParseFile reads path and parses its contents under dialect d.
func ParseFile(d dialect.Dialect, path string) (*ast.Program, *diag.Sink, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("cqasm: open %s: %w", path, err)
	}
	prog, errs := ParseString(d, string(data), path)
	return prog, errs, nil
}

// AnalyzeString parses and fully analyzes src under dialect d, rejecting
// any version header that exceeds maxVersion.
func AnalyzeString(d dialect.Dialect, maxVersion version.Version, src, fileName string) *analyzer.AnalysisResult {
	if fileName == "" {
		fileName = DefaultFileName
	}
	prog, parseErrs := ParseString(d, src, fileName)
	result := analyzer.Analyze(prog, analyzer.Config{Dialect: d, MaxVersion: maxVersion, FileName: fileName})
	if !parseErrs.Empty() {
		merged := &diag.Sink{}
		merged.Merge(parseErrs)
		merged.Merge(result.Errors)
		result.Errors = merged
	}
	return result
}

// AnalyzeFile reads path and fully analyzes its contents under dialect d.
func AnalyzeFile(d dialect.Dialect, maxVersion version.Version, path string) (*analyzer.AnalysisResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cqasm: open %s: %w", path, err)
	}
	return AnalyzeString(d, maxVersion, string(data), path), nil
}

// AnalyzeStringToStrings is the list-form return shape: one element with
// the tag-value tree dump on success, or one element per diagnostic on
// failure.
func AnalyzeStringToStrings(d dialect.Dialect, maxVersion version.Version, src, fileName string) []string {
	return serialize.ToStrings(AnalyzeString(d, maxVersion, src, fileName))
}

// AnalyzeFileToStrings is the file-reading counterpart of
// AnalyzeStringToStrings.
func AnalyzeFileToStrings(d dialect.Dialect, maxVersion version.Version, path string) ([]string, error) {
	result, err := AnalyzeFile(d, maxVersion, path)
	if err != nil {
		return nil, err
	}
	return serialize.ToStrings(result), nil
}

// AnalyzeStringToJSON is the JSON-form return shape: {"Program": ...} on
// success or {"errors": [...]} on failure, each error in the LSP
// Diagnostic shape.
func AnalyzeStringToJSON(d dialect.Dialect, maxVersion version.Version, src, fileName string) (string, error) {
	return serialize.ToJSON(AnalyzeString(d, maxVersion, src, fileName))
}

// AnalyzeFileToJSON is the file-reading counterpart of AnalyzeStringToJSON.
func AnalyzeFileToJSON(d dialect.Dialect, maxVersion version.Version, path string) (string, error) {
	result, err := AnalyzeFile(d, maxVersion, path)
	if err != nil {
		return "", err
	}
	return serialize.ToJSON(result)
}
