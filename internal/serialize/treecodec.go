package serialize

import (
	"bytes"
	"encoding/json"
	"fmt"

	"cqasm/internal/semantic"
	"cqasm/internal/srcloc"
	"cqasm/internal/types"
	"cqasm/internal/values"
)

// Serialize renders the semantic tree as a tag-value byte encoding: every
// node is a map keyed by short field names, the same keying scheme
// cqasm-v1-primitives.cpp's CBOR writer uses for the value primitives ("x"
// for a scalar payload, "r"/"i" for complex components, "c"/"d" for matrix
// columns/data). A "k" key tags each node with the concrete type
// Deserialize should reconstruct it as.
//
// Source locations are not part of the encoding: they are analysis-time
// provenance, not data a portable tree needs to carry, so every value
// Deserialize reconstructs carries srcloc.Unknown.
func Serialize(p *semantic.Program) ([]byte, error) {
	return json.Marshal(programNode(p))
}

// Deserialize reconstructs a Program from bytes Serialize produced.
func Deserialize(data []byte) (*semantic.Program, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("serialize: decode: %w", err)
	}
	root, ok := asMap(raw)
	if !ok {
		return nil, fmt.Errorf("serialize: top-level value is not a tag-value map")
	}
	return programFromNode(root)
}

// ---- node tree (maps/slices keyed by short field names) ----

func programNode(p *semantic.Program) map[string]interface{} {
	mappings := make([]interface{}, len(p.Mappings))
	for i, m := range p.Mappings {
		mappings[i] = mappingNode(m)
	}
	vars := make([]interface{}, len(p.Variables))
	for i, v := range p.Variables {
		vars[i] = variableNode(v)
	}
	subs := make([]interface{}, len(p.Subcircuits))
	for i, sc := range p.Subcircuits {
		subs[i] = subcircuitNode(sc)
	}
	n := map[string]interface{}{
		"a": p.APIVersion,
		"v": p.Version,
		"q": p.NumQubits,
		"b": p.NumBits,
		"m": mappings,
		"r": vars,
		"s": subs,
	}
	if p.ErrorModel != nil {
		n["e"] = errorModelNode(p.ErrorModel)
	}
	return n
}

func programFromNode(n map[string]interface{}) (*semantic.Program, error) {
	p := &semantic.Program{Loc: srcloc.Unknown}
	p.APIVersion, _ = n["a"].(string)
	p.Version, _ = n["v"].(string)
	var err error
	if p.NumQubits, err = asInt(n["q"]); err != nil {
		return nil, fmt.Errorf("serialize: program.q: %w", err)
	}
	if p.NumBits, err = asInt(n["b"]); err != nil {
		return nil, fmt.Errorf("serialize: program.b: %w", err)
	}
	if em, ok := n["e"]; ok && em != nil {
		emMap, ok := asMap(em)
		if !ok {
			return nil, fmt.Errorf("serialize: program.e is not a map")
		}
		errorModel, err := errorModelFromNode(emMap)
		if err != nil {
			return nil, err
		}
		p.ErrorModel = errorModel
	}
	mappings, err := asArray(n["m"])
	if err != nil {
		return nil, fmt.Errorf("serialize: program.m: %w", err)
	}
	for _, raw := range mappings {
		m, ok := asMap(raw)
		if !ok {
			return nil, fmt.Errorf("serialize: mapping entry is not a map")
		}
		mapping, err := mappingFromNode(m)
		if err != nil {
			return nil, err
		}
		p.Mappings = append(p.Mappings, mapping)
	}
	varNodes, err := asArray(n["r"])
	if err != nil {
		return nil, fmt.Errorf("serialize: program.r: %w", err)
	}
	for _, raw := range varNodes {
		m, ok := asMap(raw)
		if !ok {
			return nil, fmt.Errorf("serialize: variable entry is not a map")
		}
		v, err := variableFromNode(m)
		if err != nil {
			return nil, err
		}
		p.Variables = append(p.Variables, v)
	}
	subNodes, err := asArray(n["s"])
	if err != nil {
		return nil, fmt.Errorf("serialize: program.s: %w", err)
	}
	for _, raw := range subNodes {
		m, ok := asMap(raw)
		if !ok {
			return nil, fmt.Errorf("serialize: subcircuit entry is not a map")
		}
		sc, err := subcircuitFromNode(m)
		if err != nil {
			return nil, err
		}
		p.Subcircuits = append(p.Subcircuits, sc)
	}
	return p, nil
}

func errorModelNode(em *semantic.ErrorModel) map[string]interface{} {
	return map[string]interface{}{"n": em.Name, "o": valueNodes(em.Operands)}
}

func errorModelFromNode(n map[string]interface{}) (*semantic.ErrorModel, error) {
	name, _ := n["n"].(string)
	operands, err := valuesFromNode(n["o"])
	if err != nil {
		return nil, fmt.Errorf("serialize: error_model %q: %w", name, err)
	}
	return &semantic.ErrorModel{Name: name, Operands: operands, Loc: srcloc.Unknown}, nil
}

func mappingNode(m *semantic.Mapping) map[string]interface{} {
	return map[string]interface{}{"n": m.Name, "x": valueNode(m.Value)}
}

func mappingFromNode(n map[string]interface{}) (*semantic.Mapping, error) {
	name, _ := n["n"].(string)
	v, err := valueFromAny(n["x"])
	if err != nil {
		return nil, fmt.Errorf("serialize: mapping %q: %w", name, err)
	}
	return &semantic.Mapping{Name: name, Value: v, Loc: srcloc.Unknown}, nil
}

func variableNode(v *semantic.Variable) map[string]interface{} {
	return map[string]interface{}{"n": v.Name, "t": valueNode(v.Type)}
}

func variableFromNode(n map[string]interface{}) (*semantic.Variable, error) {
	name, _ := n["n"].(string)
	t, err := valueFromAny(n["t"])
	if err != nil {
		return nil, fmt.Errorf("serialize: variable %q: %w", name, err)
	}
	return &semantic.Variable{Name: name, Type: t, Loc: srcloc.Unknown}, nil
}

func subcircuitNode(sc *semantic.Subcircuit) map[string]interface{} {
	bundles := make([]interface{}, len(sc.Bundles))
	for i, b := range sc.Bundles {
		bundles[i] = bundleNode(b)
	}
	n := map[string]interface{}{"n": sc.Name, "u": bundles}
	if sc.Iterations != nil {
		n["i"] = valueNode(sc.Iterations)
	}
	return n
}

func subcircuitFromNode(n map[string]interface{}) (*semantic.Subcircuit, error) {
	name, _ := n["n"].(string)
	sc := &semantic.Subcircuit{Name: name, Loc: srcloc.Unknown}
	if it, ok := n["i"]; ok && it != nil {
		v, err := valueFromAny(it)
		if err != nil {
			return nil, fmt.Errorf("serialize: subcircuit %q iterations: %w", name, err)
		}
		sc.Iterations = v
	}
	bundleNodes, err := asArray(n["u"])
	if err != nil {
		return nil, fmt.Errorf("serialize: subcircuit %q.u: %w", name, err)
	}
	for _, raw := range bundleNodes {
		m, ok := asMap(raw)
		if !ok {
			return nil, fmt.Errorf("serialize: bundle entry is not a map")
		}
		b, err := bundleFromNode(m)
		if err != nil {
			return nil, err
		}
		sc.Bundles = append(sc.Bundles, b)
	}
	return sc, nil
}

func bundleNode(b *semantic.Bundle) map[string]interface{} {
	instrs := make([]interface{}, len(b.Instructions))
	for i, instr := range b.Instructions {
		instrs[i] = instructionNode(instr)
	}
	return map[string]interface{}{"i": instrs}
}

func bundleFromNode(n map[string]interface{}) (*semantic.Bundle, error) {
	b := &semantic.Bundle{Loc: srcloc.Unknown}
	instrNodes, err := asArray(n["i"])
	if err != nil {
		return nil, fmt.Errorf("serialize: bundle.i: %w", err)
	}
	for _, raw := range instrNodes {
		m, ok := asMap(raw)
		if !ok {
			return nil, fmt.Errorf("serialize: instruction entry is not a map")
		}
		instr, err := instructionFromNode(m)
		if err != nil {
			return nil, err
		}
		b.Instructions = append(b.Instructions, instr)
	}
	return b, nil
}

// instructionNode's "c","p","r","d" keys mirror the real libqasm
// InstructionDescriptor encoding in cqasm-instruction.cpp (allow_conditional,
// allow_parallel, allow_reused_qubits, allow_different_index_sizes) — here
// they tag the same four flags as resolved onto this call site.
func instructionNode(instr *semantic.Instruction) map[string]interface{} {
	annots := make([]interface{}, len(instr.Annotations))
	for i, a := range instr.Annotations {
		annots[i] = annotationNode(a)
	}
	n := map[string]interface{}{
		"n": instr.Ref,
		"o": valueNodes(instr.Operands),
		"a": annots,
		"c": instr.Flags.AllowConditional,
		"p": instr.Flags.AllowParallel,
		"r": instr.Flags.AllowReusedQubits,
		"d": instr.Flags.AllowDifferentIndexSizes,
	}
	if instr.Condition != nil {
		n["w"] = valueNode(instr.Condition)
	}
	return n
}

func instructionFromNode(n map[string]interface{}) (*semantic.Instruction, error) {
	ref, _ := n["n"].(string)
	instr := &semantic.Instruction{Ref: ref, Loc: srcloc.Unknown}
	instr.Flags.AllowConditional, _ = n["c"].(bool)
	instr.Flags.AllowParallel, _ = n["p"].(bool)
	instr.Flags.AllowReusedQubits, _ = n["r"].(bool)
	instr.Flags.AllowDifferentIndexSizes, _ = n["d"].(bool)
	if w, ok := n["w"]; ok && w != nil {
		v, err := valueFromAny(w)
		if err != nil {
			return nil, fmt.Errorf("serialize: instruction %q condition: %w", ref, err)
		}
		instr.Condition = v
	}
	operands, err := valuesFromNode(n["o"])
	if err != nil {
		return nil, fmt.Errorf("serialize: instruction %q operands: %w", ref, err)
	}
	instr.Operands = operands
	annotNodes, err := asArray(n["a"])
	if err != nil {
		return nil, fmt.Errorf("serialize: instruction %q.a: %w", ref, err)
	}
	for _, raw := range annotNodes {
		m, ok := asMap(raw)
		if !ok {
			return nil, fmt.Errorf("serialize: annotation entry is not a map")
		}
		a, err := annotationFromNode(m)
		if err != nil {
			return nil, err
		}
		instr.Annotations = append(instr.Annotations, a)
	}
	return instr, nil
}

func annotationNode(a semantic.Annotation) map[string]interface{} {
	return map[string]interface{}{"f": a.Interface, "p": a.Operation, "o": valueNodes(a.Operands)}
}

func annotationFromNode(n map[string]interface{}) (semantic.Annotation, error) {
	iface, _ := n["f"].(string)
	op, _ := n["p"].(string)
	operands, err := valuesFromNode(n["o"])
	if err != nil {
		return semantic.Annotation{}, fmt.Errorf("serialize: annotation %s.%s: %w", iface, op, err)
	}
	return semantic.Annotation{Interface: iface, Operation: op, Operands: operands, Loc: srcloc.Unknown}, nil
}

// ---- value primitives (grounded on cqasm-v1-primitives.cpp's key scheme) ----

func valueNodes(vs []values.Value) []interface{} {
	out := make([]interface{}, len(vs))
	for i, v := range vs {
		out[i] = valueNode(v)
	}
	return out
}

func valuesFromNode(raw interface{}) ([]values.Value, error) {
	items, err := asArray(raw)
	if err != nil {
		return nil, err
	}
	out := make([]values.Value, len(items))
	for i, item := range items {
		v, err := valueFromAny(item)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func valueNode(v values.Value) map[string]interface{} {
	kind := kindName(v.Kind())
	switch c := v.(type) {
	case *values.ConstBool:
		return map[string]interface{}{"k": kind, "x": c.Value}
	case *values.ConstInt:
		return map[string]interface{}{"k": kind, "x": c.Value}
	case *values.ConstReal:
		return map[string]interface{}{"k": kind, "x": c.Value}
	case *values.ConstComplex:
		return map[string]interface{}{"k": kind, "r": real(c.Value), "i": imag(c.Value)}
	case *values.ConstString:
		return map[string]interface{}{"k": kind, "x": c.Value}
	case *values.ConstAxis:
		return map[string]interface{}{"k": kind, "x": c.X, "y": c.Y, "z": c.Z}
	case *values.ConstRealMatrix:
		return map[string]interface{}{"k": kind, "c": c.Cols, "d": c.Data}
	case *values.ConstComplexMatrix:
		data := make([]float64, 0, len(c.Data)*2)
		for _, z := range c.Data {
			data = append(data, real(z), imag(z))
		}
		return map[string]interface{}{"k": kind, "c": c.Cols, "d": data}
	case *values.QubitRefs:
		return map[string]interface{}{"k": kind, "x": c.Indices}
	case *values.BitRefs:
		return map[string]interface{}{"k": kind, "x": c.Indices}
	case *values.FunctionCall:
		return map[string]interface{}{"k": kind, "n": c.Ref, "a": valueNodes(c.Args), "t": typeNode(c.Type())}
	case *values.VariableRef:
		return map[string]interface{}{"k": kind, "n": c.Name, "t": typeNode(c.Type())}
	default:
		return map[string]interface{}{"k": "unknown"}
	}
}

func valueFromAny(raw interface{}) (values.Value, error) {
	m, ok := asMap(raw)
	if !ok {
		return nil, fmt.Errorf("serialize: value node is not a map")
	}
	return valueFromNode(m)
}

func valueFromNode(n map[string]interface{}) (values.Value, error) {
	kind, _ := n["k"].(string)
	switch kind {
	case "bool":
		b, ok := n["x"].(bool)
		if !ok {
			return nil, fmt.Errorf("serialize: bool.x is not a bool")
		}
		return values.NewConstBool(b, srcloc.Unknown), nil
	case "int":
		x, err := asInt64(n["x"])
		if err != nil {
			return nil, fmt.Errorf("serialize: int.x: %w", err)
		}
		return values.NewConstInt(x, srcloc.Unknown), nil
	case "real":
		x, err := asFloat64(n["x"])
		if err != nil {
			return nil, fmt.Errorf("serialize: real.x: %w", err)
		}
		return values.NewConstReal(x, srcloc.Unknown), nil
	case "complex":
		r, err := asFloat64(n["r"])
		if err != nil {
			return nil, fmt.Errorf("serialize: complex.r: %w", err)
		}
		i, err := asFloat64(n["i"])
		if err != nil {
			return nil, fmt.Errorf("serialize: complex.i: %w", err)
		}
		return values.NewConstComplex(complex(r, i), srcloc.Unknown), nil
	case "string":
		s, ok := n["x"].(string)
		if !ok {
			return nil, fmt.Errorf("serialize: string.x is not a string")
		}
		return values.NewConstString(s, srcloc.Unknown), nil
	case "axis":
		x, err := asFloat64(n["x"])
		if err != nil {
			return nil, fmt.Errorf("serialize: axis.x: %w", err)
		}
		y, err := asFloat64(n["y"])
		if err != nil {
			return nil, fmt.Errorf("serialize: axis.y: %w", err)
		}
		z, err := asFloat64(n["z"])
		if err != nil {
			return nil, fmt.Errorf("serialize: axis.z: %w", err)
		}
		return values.NewConstAxis(x, y, z, srcloc.Unknown), nil
	case "real_matrix":
		cols, err := asInt(n["c"])
		if err != nil {
			return nil, fmt.Errorf("serialize: real_matrix.c: %w", err)
		}
		data, err := asFloat64Slice(n["d"])
		if err != nil {
			return nil, fmt.Errorf("serialize: real_matrix.d: %w", err)
		}
		return values.NewConstRealMatrix(cols, data, srcloc.Unknown), nil
	case "complex_matrix":
		cols, err := asInt(n["c"])
		if err != nil {
			return nil, fmt.Errorf("serialize: complex_matrix.c: %w", err)
		}
		flat, err := asFloat64Slice(n["d"])
		if err != nil {
			return nil, fmt.Errorf("serialize: complex_matrix.d: %w", err)
		}
		if len(flat)%2 != 0 {
			return nil, fmt.Errorf("serialize: complex_matrix.d has odd length %d", len(flat))
		}
		data := make([]complex128, 0, len(flat)/2)
		for i := 0; i < len(flat); i += 2 {
			data = append(data, complex(flat[i], flat[i+1]))
		}
		return values.NewConstComplexMatrix(cols, data, srcloc.Unknown), nil
	case "qubit_refs":
		idx, err := asIntSlice(n["x"])
		if err != nil {
			return nil, fmt.Errorf("serialize: qubit_refs.x: %w", err)
		}
		return values.NewQubitRefs(idx, srcloc.Unknown), nil
	case "bit_refs":
		idx, err := asIntSlice(n["x"])
		if err != nil {
			return nil, fmt.Errorf("serialize: bit_refs.x: %w", err)
		}
		return values.NewBitRefs(idx, srcloc.Unknown), nil
	case "function_call":
		ref, _ := n["n"].(string)
		args, err := valuesFromNode(n["a"])
		if err != nil {
			return nil, fmt.Errorf("serialize: function_call %q args: %w", ref, err)
		}
		tMap, ok := asMap(n["t"])
		if !ok {
			return nil, fmt.Errorf("serialize: function_call %q.t is not a map", ref)
		}
		t, err := typeFromNode(tMap)
		if err != nil {
			return nil, fmt.Errorf("serialize: function_call %q.t: %w", ref, err)
		}
		return values.NewFunctionCall(ref, args, t, srcloc.Unknown), nil
	case "variable_ref":
		name, _ := n["n"].(string)
		tMap, ok := asMap(n["t"])
		if !ok {
			return nil, fmt.Errorf("serialize: variable_ref %q.t is not a map", name)
		}
		t, err := typeFromNode(tMap)
		if err != nil {
			return nil, fmt.Errorf("serialize: variable_ref %q.t: %w", name, err)
		}
		return values.NewVariableRef(name, t, srcloc.Unknown), nil
	default:
		return nil, fmt.Errorf("serialize: unknown value kind %q", kind)
	}
}

func typeNode(t types.Type) map[string]interface{} {
	return map[string]interface{}{"g": int(t.Tag), "s": t.Size}
}

func typeFromNode(n map[string]interface{}) (types.Type, error) {
	g, err := asInt(n["g"])
	if err != nil {
		return types.Type{}, fmt.Errorf("type.g: %w", err)
	}
	s, err := asInt(n["s"])
	if err != nil {
		return types.Type{}, fmt.Errorf("type.s: %w", err)
	}
	return types.Type{Tag: types.Tag(g), Size: s}, nil
}

// ---- decoded-JSON accessors (json.Number-aware, since Deserialize decodes
// with UseNumber to keep int64 payloads exact) ----

func asMap(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

func asArray(v interface{}) ([]interface{}, error) {
	if v == nil {
		return nil, nil
	}
	a, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected an array, got %T", v)
	}
	return a, nil
}

func asInt64(v interface{}) (int64, error) {
	num, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
	return num.Int64()
}

func asInt(v interface{}) (int, error) {
	n, err := asInt64(v)
	return int(n), err
}

func asFloat64(v interface{}) (float64, error) {
	num, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
	return num.Float64()
}

func asIntSlice(v interface{}) ([]int, error) {
	items, err := asArray(v)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(items))
	for i, item := range items {
		n, err := asInt(item)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func asFloat64Slice(v interface{}) ([]float64, error) {
	items, err := asArray(v)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(items))
	for i, item := range items {
		f, err := asFloat64(item)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}
