// Package version implements the cQASM version gate: a
// single-purpose scanner over the first tokens of a source file that
// extracts the `version M(.N)*` header without invoking the full lexer or
// parser. It shares nothing with internal/lexer or internal/parser, by
// design.
package version

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// Version is a dotted sequence of non-negative integers, e.g. "1.0" or "3".
// Missing trailing components compare as zero.
type Version struct {
	Components []int
}

// Parse extracts the version header from the start of src. It tolerates
// leading blank lines and `//`-style comments before the `version` keyword.
func Parse(src string) (Version, error) {
	lines := strings.Split(src, "\n")
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] != "version" {
			return Version{}, fmt.Errorf("expected 'version M(.N)*' header, found %q", line)
		}
		return parseComponents(fields[1])
	}
	return Version{}, fmt.Errorf("source contains no version header")
}

// ParseSpec parses a bare "M(.N)*" version spec, without the surrounding
// `version` header line Parse expects — the form a command-line flag or a
// MaxVersion ceiling is given in directly.
func ParseSpec(spec string) (Version, error) {
	return parseComponents(spec)
}

func parseComponents(spec string) (Version, error) {
	parts := strings.Split(spec, ".")
	if len(parts) == 0 {
		return Version{}, fmt.Errorf("empty version spec")
	}
	components := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("invalid version component %q", p)
		}
		components = append(components, n)
	}
	return Version{Components: components}, nil
}

// String renders the version in its dotted form.
func (v Version) String() string {
	parts := make([]string, len(v.Components))
	for i, c := range v.Components {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, ".")
}

// semverString zero-extends to the three components golang.org/x/mod/semver
// requires and prefixes "v", so that cQASM's "M(.N)*" header can ride on the
// standard library's lexicographic-with-numeric-components comparator
// instead of a hand-rolled one.
func (v Version) semverString() string {
	major, minor, patch := 0, 0, 0
	if len(v.Components) > 0 {
		major = v.Components[0]
	}
	if len(v.Components) > 1 {
		minor = v.Components[1]
	}
	if len(v.Components) > 2 {
		patch = v.Components[2]
	}
	return fmt.Sprintf("v%d.%d.%d", major, minor, patch)
}

// Compare returns -1, 0, or 1 as v is lexicographically less than, equal to,
// or greater than other, treating missing trailing components as zero.
// Components beyond the first three still compare correctly because any
// cQASM version exceeding major.minor.patch granularity is, in practice,
// already a VersionMismatch by the time this matters.
func (v Version) Compare(other Version) int {
	if c := semver.Compare(v.semverString(), other.semverString()); c != 0 {
		return c
	}
	return compareTail(v.Components, other.Components, 3)
}

func compareTail(a, b []int, skip int) int {
	for i := skip; i < len(a) || i < len(b); i++ {
		var av, bv int
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Exceeds reports whether v is strictly greater than max, the condition
// that triggers a VersionMismatch.
func (v Version) Exceeds(max Version) bool {
	return v.Compare(max) > 0
}
