package serialize

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"cqasm/internal/analyzer"
	"cqasm/internal/diag"
	"cqasm/internal/registry"
	"cqasm/internal/semantic"
	"cqasm/internal/srcloc"
	"cqasm/internal/types"
	"cqasm/internal/values"
)

func sampleProgram() *semantic.Program {
	return &semantic.Program{
		APIVersion: "3.0",
		Version:    "3.0",
		NumQubits:  2,
		Mappings: []*semantic.Mapping{
			{Name: "theta", Value: values.NewConstReal(1.5, srcloc.Unknown)},
		},
		Variables: []*semantic.Variable{
			{Name: "b", Type: values.NewBitRefs([]int{0, 1}, srcloc.Unknown)},
		},
		Subcircuits: []*semantic.Subcircuit{
			{
				Name: "default",
				Bundles: []*semantic.Bundle{
					{Instructions: []*semantic.Instruction{
						{Ref: "h", Operands: []values.Value{values.NewQubitRefs([]int{0}, srcloc.Unknown)}},
					}},
				},
			},
		},
	}
}

func TestDumpProgramShape(t *testing.T) {
	out := DumpProgram(sampleProgram())
	for _, want := range []string{
		`Program{`,
		`api_version: "3.0"`,
		`num_qubits: 2`,
		`error_model: none`,
		`Mapping{name: "theta", value: 1.5}`,
		`Variable{name: "b", type: bit[](2)}`,
		`Subcircuit{name: "default"`,
		`Instruction{ref: "h"`,
		`condition: none`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("DumpProgram() = %q, want it to contain %q", out, want)
		}
	}
}

func TestDumpProgramWithErrorModel(t *testing.T) {
	p := sampleProgram()
	p.ErrorModel = &semantic.ErrorModel{Name: "depolarizing_channel", Operands: []values.Value{values.NewConstReal(0.1, srcloc.Unknown)}}
	out := DumpProgram(p)
	if !strings.Contains(out, `ErrorModel{name: "depolarizing_channel", operands: [0.1]}`) {
		t.Errorf("DumpProgram() = %q, want the error model rendered inline", out)
	}
}

func TestToStringsSuccessIsOneElement(t *testing.T) {
	result := &analyzer.AnalysisResult{Program: sampleProgram(), Errors: &diag.Sink{}}
	out := ToStrings(result)
	if len(out) != 1 {
		t.Fatalf("ToStrings on success = %d elements, want 1", len(out))
	}
	if !strings.HasPrefix(out[0], "Program{") {
		t.Errorf("ToStrings()[0] = %q, want it to start with Program{", out[0])
	}
}

func TestToStringsFailureIsOnePerDiagnostic(t *testing.T) {
	errs := &diag.Sink{}
	errs.Addf(diag.NameResolution, srcloc.Unknown, "unknown name %q", "x")
	errs.Addf(diag.TypePromotion, srcloc.Unknown, "bad type")
	result := &analyzer.AnalysisResult{Program: sampleProgram(), Errors: errs}
	out := ToStrings(result)
	if len(out) != 2 {
		t.Fatalf("ToStrings on failure = %d elements, want 2", len(out))
	}
	if !strings.Contains(out[0], "unknown name") {
		t.Errorf("ToStrings()[0] = %q", out[0])
	}
}

func TestToJSONSuccessShape(t *testing.T) {
	result := &analyzer.AnalysisResult{Program: sampleProgram(), Errors: &diag.Sink{}}
	s, err := ToJSON(result)
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		t.Fatalf("ToJSON produced invalid JSON: %v", err)
	}
	if _, ok := decoded["Program"]; !ok {
		t.Errorf("success JSON should nest under \"Program\", got keys %v", decoded)
	}
}

func TestToJSONFailureShape(t *testing.T) {
	errs := &diag.Sink{}
	errs.Addf(diag.NameResolution, srcloc.Range{File: "prog.cq", First: srcloc.Position{Line: 2, Column: 1}, Last: srcloc.Position{Line: 2, Column: 1}}, "unknown name %q", "x")
	result := &analyzer.AnalysisResult{Program: sampleProgram(), Errors: errs}
	s, err := ToJSON(result)
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}
	var decoded struct {
		Errors []lspDiagnostic `json:"errors"`
	}
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		t.Fatalf("ToJSON produced invalid JSON: %v", err)
	}
	if len(decoded.Errors) != 1 {
		t.Fatalf("expected one error, got %d", len(decoded.Errors))
	}
	d := decoded.Errors[0]
	if d.Severity != 1 {
		t.Errorf("Severity = %d, want 1", d.Severity)
	}
	if d.Range.Start.Line != 1 {
		t.Errorf("the 1-based source line 2 should become 0-based LSP line 1, got %d", d.Range.Start.Line)
	}
	if len(d.RelatedInformation) != 1 {
		t.Fatalf("a diagnostic with a known file should carry relatedInformation, got %d entries", len(d.RelatedInformation))
	}
	if !strings.HasPrefix(d.RelatedInformation[0].Location.URI, "file://") {
		t.Errorf("relatedInformation URI = %q, want a file:// URI", d.RelatedInformation[0].Location.URI)
	}
}

func TestDiagnosticOmitsRelatedInfoWithoutFile(t *testing.T) {
	d := diagnosticToJSON(diag.New(diag.ParseError, srcloc.Unknown, "oops"))
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if strings.Contains(string(b), "relatedInformation") {
		t.Errorf("a diagnostic with no known file should omit relatedInformation entirely, got %s", b)
	}
}

func TestDigestIsStableAndDistinguishesContent(t *testing.T) {
	a := Digest([]byte("version 1.0"))
	b := Digest([]byte("version 1.0"))
	if a != b {
		t.Error("Digest should be deterministic for identical input")
	}
	c := Digest([]byte("version 3.0"))
	if a == c {
		t.Error("Digest should differ for different input")
	}
}

func TestDiagnosticsConvertsEntireSink(t *testing.T) {
	s := &diag.Sink{}
	s.Addf(NameResolutionKind(), srcloc.Unknown, "one")
	s.Addf(NameResolutionKind(), srcloc.Unknown, "two")
	out := Diagnostics(s)
	if len(out) != 2 {
		t.Fatalf("Diagnostics() = %d entries, want 2", len(out))
	}
}

// NameResolutionKind avoids a second direct import alias collision in this
// test file; it is just diag.NameResolution.
func NameResolutionKind() diag.Kind { return diag.NameResolution }

func TestRoundTripSimpleProgram(t *testing.T) {
	p := sampleProgram()
	data, err := Serialize(p)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	if !reflect.DeepEqual(p, got) {
		t.Errorf("round trip mismatch:\n got  %#v\n want %#v", got, p)
	}
}

// richProgram exercises every values.Value kind and the instruction-flag
// fields, the widest single tree this package's decoder touches.
func richProgram() *semantic.Program {
	complexType := types.Scalar(types.Complex)
	return &semantic.Program{
		APIVersion: "3.0",
		Version:    "3.0",
		NumQubits:  3,
		NumBits:    2,
		ErrorModel: &semantic.ErrorModel{
			Name:     "depolarizing_channel",
			Operands: []values.Value{values.NewConstReal(0.05, srcloc.Unknown)},
		},
		Mappings: []*semantic.Mapping{
			{Name: "flag", Value: values.NewConstBool(true, srcloc.Unknown)},
			{Name: "label", Value: values.NewConstString("bell", srcloc.Unknown)},
			{Name: "amp", Value: values.NewConstComplex(complex(0.5, -0.25), srcloc.Unknown)},
			{Name: "dir", Value: values.NewConstAxis(0, 1, 0, srcloc.Unknown)},
			{Name: "rm", Value: values.NewConstRealMatrix(2, []float64{1, 0, 0, 1}, srcloc.Unknown)},
			{Name: "cm", Value: values.NewConstComplexMatrix(2, []complex128{1, 0, 0, 1i}, srcloc.Unknown)},
		},
		Variables: []*semantic.Variable{
			{Name: "q", Type: values.NewQubitRefs([]int{0, 1, 2}, srcloc.Unknown)},
			{Name: "b", Type: values.NewBitRefs([]int{0, 1}, srcloc.Unknown)},
		},
		Subcircuits: []*semantic.Subcircuit{
			{
				Name:       "grover",
				Iterations: values.NewConstInt(4, srcloc.Unknown),
				Bundles: []*semantic.Bundle{
					{Instructions: []*semantic.Instruction{
						{
							Ref:       "cnot",
							Condition: values.NewVariableRef("b", types.Scalar(types.Bit), srcloc.Unknown),
							Operands: []values.Value{
								values.NewQubitRefs([]int{0}, srcloc.Unknown),
								values.NewFunctionCall("measure", []values.Value{values.NewQubitRefs([]int{1}, srcloc.Unknown)}, complexType, srcloc.Unknown),
							},
							Flags: registry.Flags{
								AllowConditional:         true,
								AllowParallel:            true,
								AllowReusedQubits:        false,
								AllowDifferentIndexSizes: true,
							},
							Annotations: []semantic.Annotation{
								{Interface: "qx", Operation: "barrier", Operands: []values.Value{values.NewConstInt(1, srcloc.Unknown)}},
							},
						},
					}},
				},
			},
		},
	}
}

func TestRoundTripRichProgram(t *testing.T) {
	p := richProgram()
	data, err := Serialize(p)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	if !reflect.DeepEqual(p, got) {
		t.Errorf("round trip mismatch:\n got  %#v\n want %#v", got, p)
	}
}

func TestSerializeUsesShortTagValueKeys(t *testing.T) {
	data, err := Serialize(sampleProgram())
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Serialize output is not valid JSON: %v", err)
	}
	for _, key := range []string{"a", "v", "q", "b", "m", "r", "s"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("serialized program missing short key %q: %v", key, decoded)
		}
	}
	mappings, ok := decoded["m"].([]interface{})
	if !ok || len(mappings) == 0 {
		t.Fatalf("decoded.m = %#v, want a non-empty array", decoded["m"])
	}
	first, ok := mappings[0].(map[string]interface{})
	if !ok {
		t.Fatalf("mapping entry is not a map: %#v", mappings[0])
	}
	value, ok := first["x"].(map[string]interface{})
	if !ok {
		t.Fatalf("mapping.x is not a map: %#v", first["x"])
	}
	if value["k"] != "real" {
		t.Errorf("mapping value kind = %v, want \"real\"", value["k"])
	}
}

func TestDeserializeRejectsNonObjectTop(t *testing.T) {
	if _, err := Deserialize([]byte(`[1,2,3]`)); err == nil {
		t.Error("Deserialize should reject a top-level JSON array")
	}
}

func TestDeserializeRejectsUnknownValueKind(t *testing.T) {
	data, err := Serialize(sampleProgram())
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	mangled := strings.Replace(string(data), `"k":"real"`, `"k":"nonsense"`, 1)
	if mangled == string(data) {
		t.Fatal("test setup failed to locate the real-kind tag to mangle")
	}
	if _, err := Deserialize([]byte(mangled)); err == nil {
		t.Error("Deserialize should reject an unrecognized value kind")
	}
}
