// Package dialect names the two cQASM language generations the analyzer
// architecture serves. It exists as its own package so every layer (lexer,
// parser, types, registry, analyzer) can depend on the enum without
// depending on each other.
package dialect

// Dialect selects grammar, type shorthand table, default instruction set,
// and name case-sensitivity.
type Dialect int

const (
	// V1 is the legacy dialect: case-insensitive instruction names,
	// `qubits N` declaration, no bit-array type.
	V1 Dialect = iota
	// V3 is the current dialect: case-sensitive instruction names,
	// `qubit[N] q` / `bit[N] b` declarations, gate modifiers.
	V3
)

func (d Dialect) String() string {
	switch d {
	case V1:
		return "v1"
	case V3:
		return "v3"
	default:
		return "unknown"
	}
}

// CaseSensitive reports whether name resolution in this dialect compares
// names case-sensitively.
func (d Dialect) CaseSensitive() bool {
	return d == V3
}
