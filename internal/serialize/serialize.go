// Package serialize renders an analysis result three ways: a human-readable
// text dump of the semantic tree for the list-form entry points, an
// LSP-Diagnostic-shaped JSON document for the JSON-form entry points, and a
// portable tag-value byte encoding (Serialize/Deserialize) of the tree
// itself for storage and exchange between processes.
package serialize

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/crypto/blake2b"

	"cqasm/internal/analyzer"
	"cqasm/internal/diag"
	"cqasm/internal/semantic"
	"cqasm/internal/srcloc"
	"cqasm/internal/values"
)

// ToStrings renders the list-form return shape: one element holding the
// tag-value tree dump on success, or one element per diagnostic message in
// source order on failure.
func ToStrings(result *analyzer.AnalysisResult) []string {
	if result.Errors.Empty() {
		return []string{DumpProgram(result.Program)}
	}
	items := result.Errors.Items()
	out := make([]string, 0, len(items))
	for _, d := range items {
		out = append(out, d.Error())
	}
	return out
}

// ToJSON renders the JSON-form return shape: {"Program": ...} on success or
// {"errors": [...]} on failure, each error in the LSP Diagnostic shape.
func ToJSON(result *analyzer.AnalysisResult) (string, error) {
	var payload interface{}
	if result.Errors.Empty() {
		payload = struct {
			Program jsonProgram `json:"Program"`
		}{Program: programToJSON(result.Program)}
	} else {
		items := result.Errors.Items()
		diags := make([]lspDiagnostic, 0, len(items))
		for _, d := range items {
			diags = append(diags, diagnosticToJSON(d))
		}
		payload = struct {
			Errors []lspDiagnostic `json:"errors"`
		}{Errors: diags}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Digest content-addresses arbitrary bytes (source text, or an encoded tree)
// for cache keys and staleness checks.
func Digest(data []byte) [32]byte {
	return blake2b.Sum256(data)
}

// ---- tag-value tree dump ----

// DumpProgram renders the semantic tree as a tag-value text format: each
// node is `Tag{field: value, ...}`, arrays are bracketed and comma-joined.
func DumpProgram(p *semantic.Program) string {
	var sb strings.Builder
	sb.WriteString("Program{")
	fmt.Fprintf(&sb, "api_version: %q, version: %q, num_qubits: %d, num_bits: %d", p.APIVersion, p.Version, p.NumQubits, p.NumBits)
	sb.WriteString(", error_model: ")
	if p.ErrorModel == nil {
		sb.WriteString("none")
	} else {
		dumpErrorModel(&sb, p.ErrorModel)
	}
	sb.WriteString(", mappings: [")
	for i, m := range p.Mappings {
		if i > 0 {
			sb.WriteString(", ")
		}
		dumpMapping(&sb, m)
	}
	sb.WriteString("], variables: [")
	for i, v := range p.Variables {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "Variable{name: %q, type: %s}", v.Name, v.Type.Type().String())
	}
	sb.WriteString("], subcircuits: [")
	for i, sc := range p.Subcircuits {
		if i > 0 {
			sb.WriteString(", ")
		}
		dumpSubcircuit(&sb, sc)
	}
	sb.WriteString("]}")
	return sb.String()
}

func dumpErrorModel(sb *strings.Builder, em *semantic.ErrorModel) {
	fmt.Fprintf(sb, "ErrorModel{name: %q, operands: [", em.Name)
	dumpValues(sb, em.Operands)
	sb.WriteString("]}")
}

func dumpMapping(sb *strings.Builder, m *semantic.Mapping) {
	fmt.Fprintf(sb, "Mapping{name: %q, value: %s}", m.Name, m.Value.String())
}

func dumpSubcircuit(sb *strings.Builder, sc *semantic.Subcircuit) {
	fmt.Fprintf(sb, "Subcircuit{name: %q, iterations: ", sc.Name)
	if sc.Iterations == nil {
		sb.WriteString("none")
	} else {
		sb.WriteString(sc.Iterations.String())
	}
	sb.WriteString(", bundles: [")
	for i, b := range sc.Bundles {
		if i > 0 {
			sb.WriteString(", ")
		}
		dumpBundle(sb, b)
	}
	sb.WriteString("]}")
}

func dumpBundle(sb *strings.Builder, b *semantic.Bundle) {
	sb.WriteString("Bundle{instructions: [")
	for i, instr := range b.Instructions {
		if i > 0 {
			sb.WriteString(", ")
		}
		dumpInstruction(sb, instr)
	}
	sb.WriteString("]}")
}

func dumpInstruction(sb *strings.Builder, instr *semantic.Instruction) {
	fmt.Fprintf(sb, "Instruction{ref: %q, condition: ", instr.Ref)
	if instr.Condition == nil {
		sb.WriteString("none")
	} else {
		sb.WriteString(instr.Condition.String())
	}
	sb.WriteString(", operands: [")
	dumpValues(sb, instr.Operands)
	sb.WriteString("], annotations: [")
	for i, a := range instr.Annotations {
		if i > 0 {
			sb.WriteString(", ")
		}
		dumpAnnotation(sb, a)
	}
	sb.WriteString("]}")
}

func dumpAnnotation(sb *strings.Builder, a semantic.Annotation) {
	fmt.Fprintf(sb, "Annotation{interface: %q, operation: %q, operands: [", a.Interface, a.Operation)
	dumpValues(sb, a.Operands)
	sb.WriteString("]}")
}

func dumpValues(sb *strings.Builder, vs []values.Value) {
	for i, v := range vs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(v.String())
	}
}

// ---- LSP diagnostic JSON ----

type lspPosition struct {
	Line      uint32 `json:"line"`
	Character uint32 `json:"character"`
}

type lspRange struct {
	Start lspPosition `json:"start"`
	End   lspPosition `json:"end"`
}

type lspLocation struct {
	URI   string   `json:"uri"`
	Range lspRange `json:"range"`
}

type lspRelatedInfo struct {
	Location lspLocation `json:"location"`
	Message  string      `json:"message"`
}

type lspDiagnostic struct {
	Range              lspRange         `json:"range"`
	Message            string           `json:"message"`
	Severity           int              `json:"severity"`
	RelatedInformation []lspRelatedInfo `json:"relatedInformation,omitempty"`
}

func toLSPRange(loc srcloc.Range) lspRange {
	toPos := func(p srcloc.Position) lspPosition {
		line, col := uint32(0), uint32(0)
		if p.Line > 0 {
			line = p.Line - 1
		}
		if p.Column > 0 {
			col = p.Column - 1
		}
		return lspPosition{Line: line, Character: col}
	}
	return lspRange{Start: toPos(loc.First), End: toPos(loc.Last)}
}

// Diagnostic is the exported LSP-Diagnostic-shaped record; internal/lspserver
// reuses it for textDocument/publishDiagnostics notifications instead of
// re-deriving the LSP shape from a diag.Sink itself.
type Diagnostic = lspDiagnostic

// Diagnostics converts every diagnostic in sink to its LSP shape, in order.
func Diagnostics(sink *diag.Sink) []Diagnostic {
	items := sink.Items()
	out := make([]Diagnostic, 0, len(items))
	for _, d := range items {
		out = append(out, diagnosticToJSON(d))
	}
	return out
}

func diagnosticToJSON(d *diag.Diagnostic) lspDiagnostic {
	r := toLSPRange(d.Location)
	out := lspDiagnostic{Range: r, Message: d.Message, Severity: 1}
	if d.Location.File != "" {
		u := url.URL{Scheme: "file", Path: d.Location.File}
		out.RelatedInformation = []lspRelatedInfo{{
			Location: lspLocation{URI: u.String(), Range: r},
			Message:  d.Message,
		}}
	}
	return out
}

// ---- JSON tree mirror ----

type jsonValue struct {
	Kind string `json:"kind"`
	Repr string `json:"repr"`
}

func valueToJSON(v values.Value) *jsonValue {
	if v == nil {
		return nil
	}
	return &jsonValue{Kind: kindName(v.Kind()), Repr: v.String()}
}

func valuesToJSON(vs []values.Value) []jsonValue {
	out := make([]jsonValue, len(vs))
	for i, v := range vs {
		out[i] = *valueToJSON(v)
	}
	return out
}

func kindName(k values.Kind) string {
	switch k {
	case values.KindConstBool:
		return "bool"
	case values.KindConstInt:
		return "int"
	case values.KindConstReal:
		return "real"
	case values.KindConstComplex:
		return "complex"
	case values.KindConstString:
		return "string"
	case values.KindConstAxis:
		return "axis"
	case values.KindConstRealMatrix:
		return "real_matrix"
	case values.KindConstComplexMatrix:
		return "complex_matrix"
	case values.KindQubitRefs:
		return "qubit_refs"
	case values.KindBitRefs:
		return "bit_refs"
	case values.KindFunctionCall:
		return "function_call"
	case values.KindVariableRef:
		return "variable_ref"
	default:
		return "unknown"
	}
}

type jsonAnnotation struct {
	Interface string      `json:"interface"`
	Operation string      `json:"operation"`
	Operands  []jsonValue `json:"operands"`
}

type jsonInstruction struct {
	Ref         string           `json:"ref"`
	Condition   *jsonValue       `json:"condition,omitempty"`
	Operands    []jsonValue      `json:"operands"`
	Annotations []jsonAnnotation `json:"annotations,omitempty"`
}

type jsonBundle struct {
	Instructions []jsonInstruction `json:"instructions"`
}

type jsonSubcircuit struct {
	Name       string       `json:"name"`
	Iterations *jsonValue   `json:"iterations,omitempty"`
	Bundles    []jsonBundle `json:"bundles"`
}

type jsonMapping struct {
	Name  string    `json:"name"`
	Value jsonValue `json:"value"`
}

type jsonVariable struct {
	Name string    `json:"name"`
	Type jsonValue `json:"type"`
}

type jsonErrorModel struct {
	Name     string      `json:"name"`
	Operands []jsonValue `json:"operands"`
}

type jsonProgram struct {
	APIVersion  string           `json:"api_version"`
	Version     string           `json:"version"`
	NumQubits   int              `json:"num_qubits"`
	NumBits     int              `json:"num_bits"`
	ErrorModel  *jsonErrorModel  `json:"error_model,omitempty"`
	Subcircuits []jsonSubcircuit `json:"subcircuits"`
	Mappings    []jsonMapping    `json:"mappings"`
	Variables   []jsonVariable   `json:"variables"`
}

func programToJSON(p *semantic.Program) jsonProgram {
	out := jsonProgram{
		APIVersion: p.APIVersion,
		Version:    p.Version,
		NumQubits:  p.NumQubits,
		NumBits:    p.NumBits,
	}
	if p.ErrorModel != nil {
		out.ErrorModel = &jsonErrorModel{Name: p.ErrorModel.Name, Operands: valuesToJSON(p.ErrorModel.Operands)}
	}
	for _, m := range p.Mappings {
		out.Mappings = append(out.Mappings, jsonMapping{Name: m.Name, Value: *valueToJSON(m.Value)})
	}
	for _, v := range p.Variables {
		out.Variables = append(out.Variables, jsonVariable{Name: v.Name, Type: *valueToJSON(v.Type)})
	}
	for _, sc := range p.Subcircuits {
		jsc := jsonSubcircuit{Name: sc.Name, Iterations: valueToJSON(sc.Iterations)}
		for _, b := range sc.Bundles {
			jb := jsonBundle{}
			for _, instr := range b.Instructions {
				ji := jsonInstruction{
					Ref:       instr.Ref,
					Condition: valueToJSON(instr.Condition),
					Operands:  valuesToJSON(instr.Operands),
				}
				for _, a := range instr.Annotations {
					ji.Annotations = append(ji.Annotations, jsonAnnotation{
						Interface: a.Interface,
						Operation: a.Operation,
						Operands:  valuesToJSON(a.Operands),
					})
				}
				jb.Instructions = append(jb.Instructions, ji)
			}
			jsc.Bundles = append(jsc.Bundles, jb)
		}
		out.Subcircuits = append(out.Subcircuits, jsc)
	}
	return out
}
