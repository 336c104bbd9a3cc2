package analyzer

import (
	"math"
	"math/cmplx"

	"cqasm/internal/dialect"
	"cqasm/internal/diag"
	"cqasm/internal/registry"
	"cqasm/internal/srcloc"
	"cqasm/internal/types"
	"cqasm/internal/values"
)

// DefaultFunctions builds the function table for a dialect's recognized
// operator set and math functions; nothing beyond this set is registered,
// so any other name fails resolution.
//
// Overloads for a given operator are added widest-type-first (Complex, then
// Real, then Int) so that the narrowest exact match is tried first under
// the resolver's reverse-insertion-order rule: two Int operands pick the
// Int overload rather than being silently widened to Real because it
// happened to be registered later.
func DefaultFunctions(d dialect.Dialect) *registry.FunctionTable {
	ft := registry.NewFunctionTable(d.CaseSensitive())

	addArithmetic(ft, "+",
		func(a []values.Value, loc srcloc.Range) (values.Value, error) {
			return values.NewConstComplex(cplx(a[0])+cplx(a[1]), loc), nil
		},
		func(a []values.Value, loc srcloc.Range) (values.Value, error) {
			return values.NewConstReal(flt(a[0])+flt(a[1]), loc), nil
		},
		func(a []values.Value, loc srcloc.Range) (values.Value, error) {
			return values.NewConstInt(i64(a[0])+i64(a[1]), loc), nil
		})
	addArithmetic(ft, "-",
		func(a []values.Value, loc srcloc.Range) (values.Value, error) {
			return values.NewConstComplex(cplx(a[0])-cplx(a[1]), loc), nil
		},
		func(a []values.Value, loc srcloc.Range) (values.Value, error) {
			return values.NewConstReal(flt(a[0])-flt(a[1]), loc), nil
		},
		func(a []values.Value, loc srcloc.Range) (values.Value, error) {
			return values.NewConstInt(i64(a[0])-i64(a[1]), loc), nil
		})
	addArithmetic(ft, "*",
		func(a []values.Value, loc srcloc.Range) (values.Value, error) {
			return values.NewConstComplex(cplx(a[0])*cplx(a[1]), loc), nil
		},
		func(a []values.Value, loc srcloc.Range) (values.Value, error) {
			return values.NewConstReal(flt(a[0])*flt(a[1]), loc), nil
		},
		func(a []values.Value, loc srcloc.Range) (values.Value, error) {
			return values.NewConstInt(i64(a[0])*i64(a[1]), loc), nil
		})
	addArithmetic(ft, "**",
		func(a []values.Value, loc srcloc.Range) (values.Value, error) {
			return values.NewConstComplex(cmplx.Pow(cplx(a[0]), cplx(a[1])), loc), nil
		},
		func(a []values.Value, loc srcloc.Range) (values.Value, error) {
			return values.NewConstReal(math.Pow(flt(a[0]), flt(a[1])), loc), nil
		},
		func(a []values.Value, loc srcloc.Range) (values.Value, error) {
			return values.NewConstInt(int64(math.Pow(float64(i64(a[0])), float64(i64(a[1])))), loc), nil
		})

	// Division and modulo: Int/Int truncates toward zero and the modulo
	// takes the dividend's sign; Real/Real and Complex/Complex
	// fail with DivisionByZero on an exact zero divisor.
	ft.Add("operator/", []types.Type{types.Scalar(types.Complex), types.Scalar(types.Complex)},
		func(a []values.Value, loc srcloc.Range) (values.Value, error) {
			d := cplx(a[1])
			if d == 0 {
				return nil, diag.New(diag.DivisionByZero, loc, "division by zero")
			}
			return values.NewConstComplex(cplx(a[0])/d, loc), nil
		})
	ft.Add("operator/", []types.Type{types.Scalar(types.Real), types.Scalar(types.Real)},
		func(a []values.Value, loc srcloc.Range) (values.Value, error) {
			d := flt(a[1])
			if d == 0 {
				return nil, diag.New(diag.DivisionByZero, loc, "division by zero")
			}
			return values.NewConstReal(flt(a[0])/d, loc), nil
		})
	ft.Add("operator/", []types.Type{types.Scalar(types.Int), types.Scalar(types.Int)},
		func(a []values.Value, loc srcloc.Range) (values.Value, error) {
			d := i64(a[1])
			if d == 0 {
				return nil, diag.New(diag.DivisionByZero, loc, "division by zero")
			}
			return values.NewConstInt(i64(a[0])/d, loc), nil // Go / already truncates toward zero
		})
	ft.Add("operator%", []types.Type{types.Scalar(types.Int), types.Scalar(types.Int)},
		func(a []values.Value, loc srcloc.Range) (values.Value, error) {
			d := i64(a[1])
			if d == 0 {
				return nil, diag.New(diag.DivisionByZero, loc, "division by zero")
			}
			return values.NewConstInt(i64(a[0])%d, loc), nil // Go % already matches the dividend's sign
		})

	addComparison(ft, "==",
		func(a []values.Value, loc srcloc.Range) bool { return cplx(a[0]) == cplx(a[1]) },
		func(a []values.Value, loc srcloc.Range) bool { return flt(a[0]) == flt(a[1]) },
		func(a []values.Value, loc srcloc.Range) bool { return i64(a[0]) == i64(a[1]) })
	addComparison(ft, "!=",
		func(a []values.Value, loc srcloc.Range) bool { return cplx(a[0]) != cplx(a[1]) },
		func(a []values.Value, loc srcloc.Range) bool { return flt(a[0]) != flt(a[1]) },
		func(a []values.Value, loc srcloc.Range) bool { return i64(a[0]) != i64(a[1]) })
	ft.Add("operator==", []types.Type{types.Scalar(types.Bool), types.Scalar(types.Bool)},
		boolCmp(func(a, b bool) bool { return a == b }))
	ft.Add("operator!=", []types.Type{types.Scalar(types.Bool), types.Scalar(types.Bool)},
		boolCmp(func(a, b bool) bool { return a != b }))
	ft.Add("operator==", []types.Type{types.Scalar(types.String), types.Scalar(types.String)},
		stringCmp(func(a, b string) bool { return a == b }))
	ft.Add("operator!=", []types.Type{types.Scalar(types.String), types.Scalar(types.String)},
		stringCmp(func(a, b string) bool { return a != b }))

	ft.Add("operator<", []types.Type{types.Scalar(types.Real), types.Scalar(types.Real)}, realCmp(func(a, b float64) bool { return a < b }))
	ft.Add("operator<", []types.Type{types.Scalar(types.Int), types.Scalar(types.Int)}, intCmp(func(a, b int64) bool { return a < b }))
	ft.Add("operator<=", []types.Type{types.Scalar(types.Real), types.Scalar(types.Real)}, realCmp(func(a, b float64) bool { return a <= b }))
	ft.Add("operator<=", []types.Type{types.Scalar(types.Int), types.Scalar(types.Int)}, intCmp(func(a, b int64) bool { return a <= b }))
	ft.Add("operator>", []types.Type{types.Scalar(types.Real), types.Scalar(types.Real)}, realCmp(func(a, b float64) bool { return a > b }))
	ft.Add("operator>", []types.Type{types.Scalar(types.Int), types.Scalar(types.Int)}, intCmp(func(a, b int64) bool { return a > b }))
	ft.Add("operator>=", []types.Type{types.Scalar(types.Real), types.Scalar(types.Real)}, realCmp(func(a, b float64) bool { return a >= b }))
	ft.Add("operator>=", []types.Type{types.Scalar(types.Int), types.Scalar(types.Int)}, intCmp(func(a, b int64) bool { return a >= b }))

	ft.Add("operator&&", []types.Type{types.Scalar(types.Bool), types.Scalar(types.Bool)},
		func(a []values.Value, loc srcloc.Range) (values.Value, error) {
			return values.NewConstBool(a[0].(*values.ConstBool).Value && a[1].(*values.ConstBool).Value, loc), nil
		})
	ft.Add("operator||", []types.Type{types.Scalar(types.Bool), types.Scalar(types.Bool)},
		func(a []values.Value, loc srcloc.Range) (values.Value, error) {
			return values.NewConstBool(a[0].(*values.ConstBool).Value || a[1].(*values.ConstBool).Value, loc), nil
		})

	ft.Add("operator^", []types.Type{types.Scalar(types.Int), types.Scalar(types.Int)}, intOp(func(a, b int64) int64 { return a ^ b }))
	ft.Add("operator&", []types.Type{types.Scalar(types.Int), types.Scalar(types.Int)}, intOp(func(a, b int64) int64 { return a & b }))
	ft.Add("operator<<", []types.Type{types.Scalar(types.Int), types.Scalar(types.Int)}, intOp(func(a, b int64) int64 { return a << uint(b) }))
	ft.Add("operator>>", []types.Type{types.Scalar(types.Int), types.Scalar(types.Int)}, intOp(func(a, b int64) int64 { return a >> uint(b) }))
	if d == dialect.V1 {
		// Logical (unsigned) right shift, v1 only.
		ft.Add("operator>>>", []types.Type{types.Scalar(types.Int), types.Scalar(types.Int)},
			intOp(func(a, b int64) int64 { return int64(uint64(a) >> uint(b)) }))
	}

	// Unary operators: narrowest-last for the same reason as the binary set.
	ft.Add("operator-", []types.Type{types.Scalar(types.Complex)}, func(a []values.Value, loc srcloc.Range) (values.Value, error) {
		return values.NewConstComplex(-cplx(a[0]), loc), nil
	})
	ft.Add("operator-", []types.Type{types.Scalar(types.Real)}, func(a []values.Value, loc srcloc.Range) (values.Value, error) {
		return values.NewConstReal(-flt(a[0]), loc), nil
	})
	ft.Add("operator-", []types.Type{types.Scalar(types.Int)}, func(a []values.Value, loc srcloc.Range) (values.Value, error) {
		return values.NewConstInt(-i64(a[0]), loc), nil
	})
	ft.Add("operator!", []types.Type{types.Scalar(types.Bool)}, func(a []values.Value, loc srcloc.Range) (values.Value, error) {
		return values.NewConstBool(!a[0].(*values.ConstBool).Value, loc), nil
	})
	ft.Add("operator~", []types.Type{types.Scalar(types.Int)}, func(a []values.Value, loc srcloc.Range) (values.Value, error) {
		return values.NewConstInt(^i64(a[0]), loc), nil
	})

	addMathFunctions(ft)
	return ft
}

func addArithmetic(ft *registry.FunctionTable, op string, complexFn, realFn, intFn registry.FunctionImpl) {
	name := "operator" + op
	ft.Add(name, []types.Type{types.Scalar(types.Complex), types.Scalar(types.Complex)}, complexFn)
	ft.Add(name, []types.Type{types.Scalar(types.Real), types.Scalar(types.Real)}, realFn)
	ft.Add(name, []types.Type{types.Scalar(types.Int), types.Scalar(types.Int)}, intFn)
}

func addComparison(ft *registry.FunctionTable, op string, complexCmp func([]values.Value, srcloc.Range) bool, realCmpFn func([]values.Value, srcloc.Range) bool, intCmpFn func([]values.Value, srcloc.Range) bool) {
	name := "operator" + op
	ft.Add(name, []types.Type{types.Scalar(types.Complex), types.Scalar(types.Complex)}, func(a []values.Value, loc srcloc.Range) (values.Value, error) {
		return values.NewConstBool(complexCmp(a, loc), loc), nil
	})
	ft.Add(name, []types.Type{types.Scalar(types.Real), types.Scalar(types.Real)}, func(a []values.Value, loc srcloc.Range) (values.Value, error) {
		return values.NewConstBool(realCmpFn(a, loc), loc), nil
	})
	ft.Add(name, []types.Type{types.Scalar(types.Int), types.Scalar(types.Int)}, func(a []values.Value, loc srcloc.Range) (values.Value, error) {
		return values.NewConstBool(intCmpFn(a, loc), loc), nil
	})
}

func realCmp(pred func(a, b float64) bool) registry.FunctionImpl {
	return func(a []values.Value, loc srcloc.Range) (values.Value, error) {
		return values.NewConstBool(pred(flt(a[0]), flt(a[1])), loc), nil
	}
}
func intCmp(pred func(a, b int64) bool) registry.FunctionImpl {
	return func(a []values.Value, loc srcloc.Range) (values.Value, error) {
		return values.NewConstBool(pred(i64(a[0]), i64(a[1])), loc), nil
	}
}
func boolCmp(pred func(a, b bool) bool) registry.FunctionImpl {
	return func(a []values.Value, loc srcloc.Range) (values.Value, error) {
		return values.NewConstBool(pred(a[0].(*values.ConstBool).Value, a[1].(*values.ConstBool).Value), loc), nil
	}
}
func stringCmp(pred func(a, b string) bool) registry.FunctionImpl {
	return func(a []values.Value, loc srcloc.Range) (values.Value, error) {
		return values.NewConstBool(pred(a[0].(*values.ConstString).Value, a[1].(*values.ConstString).Value), loc), nil
	}
}
func intOp(fn func(a, b int64) int64) registry.FunctionImpl {
	return func(a []values.Value, loc srcloc.Range) (values.Value, error) {
		return values.NewConstInt(fn(i64(a[0]), i64(a[1])), loc), nil
	}
}

// addMathFunctions registers the transcendental and complex-number builder
// functions: sqrt, exp, log, the trig/hyperbolic family, abs, complex,
// polar, real, imag, arg, norm, conj.
func addMathFunctions(ft *registry.FunctionTable) {
	reg1 := func(name string, fn func(float64) float64) {
		ft.Add(name, []types.Type{types.Scalar(types.Real)}, func(a []values.Value, loc srcloc.Range) (values.Value, error) {
			return values.NewConstReal(fn(flt(a[0])), loc), nil
		})
	}
	reg1("sqrt", math.Sqrt)
	reg1("exp", math.Exp)
	reg1("log", math.Log)
	reg1("sin", math.Sin)
	reg1("cos", math.Cos)
	reg1("tan", math.Tan)
	reg1("asin", math.Asin)
	reg1("acos", math.Acos)
	reg1("atan", math.Atan)
	reg1("sinh", math.Sinh)
	reg1("cosh", math.Cosh)
	reg1("tanh", math.Tanh)
	reg1("asinh", math.Asinh)
	reg1("acosh", math.Acosh)
	reg1("atanh", math.Atanh)

	ft.Add("abs", []types.Type{types.Scalar(types.Real)}, func(a []values.Value, loc srcloc.Range) (values.Value, error) {
		return values.NewConstReal(math.Abs(flt(a[0])), loc), nil
	})
	ft.Add("abs", []types.Type{types.Scalar(types.Int)}, func(a []values.Value, loc srcloc.Range) (values.Value, error) {
		n := i64(a[0])
		if n < 0 {
			n = -n
		}
		return values.NewConstInt(n, loc), nil
	})
	ft.Add("abs", []types.Type{types.Scalar(types.Complex)}, func(a []values.Value, loc srcloc.Range) (values.Value, error) {
		return values.NewConstReal(cmplx.Abs(cplx(a[0])), loc), nil
	})

	ft.Add("complex", []types.Type{types.Scalar(types.Real), types.Scalar(types.Real)}, func(a []values.Value, loc srcloc.Range) (values.Value, error) {
		return values.NewConstComplex(complex(flt(a[0]), flt(a[1])), loc), nil
	})
	ft.Add("polar", []types.Type{types.Scalar(types.Real), types.Scalar(types.Real)}, func(a []values.Value, loc srcloc.Range) (values.Value, error) {
		return values.NewConstComplex(cmplx.Rect(flt(a[0]), flt(a[1])), loc), nil
	})
	ft.Add("real", []types.Type{types.Scalar(types.Complex)}, func(a []values.Value, loc srcloc.Range) (values.Value, error) {
		return values.NewConstReal(real(cplx(a[0])), loc), nil
	})
	ft.Add("imag", []types.Type{types.Scalar(types.Complex)}, func(a []values.Value, loc srcloc.Range) (values.Value, error) {
		return values.NewConstReal(imag(cplx(a[0])), loc), nil
	})
	ft.Add("arg", []types.Type{types.Scalar(types.Complex)}, func(a []values.Value, loc srcloc.Range) (values.Value, error) {
		return values.NewConstReal(cmplx.Phase(cplx(a[0])), loc), nil
	})
	ft.Add("norm", []types.Type{types.Scalar(types.Complex)}, func(a []values.Value, loc srcloc.Range) (values.Value, error) {
		c := cplx(a[0])
		return values.NewConstReal(real(c)*real(c)+imag(c)*imag(c), loc), nil
	})
	ft.Add("conj", []types.Type{types.Scalar(types.Complex)}, func(a []values.Value, loc srcloc.Range) (values.Value, error) {
		return values.NewConstComplex(cmplx.Conj(cplx(a[0])), loc), nil
	})
}

func i64(v values.Value) int64 {
	n, _ := values.IntOf(v)
	return n
}
func flt(v values.Value) float64 {
	switch c := v.(type) {
	case *values.ConstReal:
		return c.Value
	case *values.ConstInt:
		return float64(c.Value)
	case *values.ConstBool:
		if c.Value {
			return 1
		}
		return 0
	default:
		return 0
	}
}
func cplx(v values.Value) complex128 {
	switch c := v.(type) {
	case *values.ConstComplex:
		return c.Value
	default:
		return complex(flt(v), 0)
	}
}

// DefaultInstructions builds the instruction table for v1 or v3. Flags are
// assigned per family: measurement and gate instructions disallow qubit
// reuse and mismatched index arity by default; `skip` takes no qubit
// operand, so those flags are moot for it, while `wait` and `barrier` take
// one single-index qubit operand like the gates.
func DefaultInstructions(d dialect.Dialect) *registry.InstructionTable {
	it := registry.NewInstructionTable(d.CaseSensitive())
	gate := registry.Flags{AllowConditional: true, AllowParallel: true, AllowReusedQubits: false, AllowDifferentIndexSizes: false}
	plain := registry.Flags{AllowConditional: false, AllowParallel: true, AllowReusedQubits: false, AllowDifferentIndexSizes: false}

	if d == dialect.V1 {
		qArr := types.Array(types.QubitArray, 1)
		singleQubitGates := []string{"x", "y", "z", "i", "h", "x90", "y90", "mx90", "my90", "s", "sdag", "t", "tdag", "rx", "ry", "rz", "prep", "prepx", "prepy", "prepz", "measure", "measurex", "measurey", "measurez"}
		for _, name := range singleQubitGates {
			it.Add(name, []types.Type{qArr}, gate)
		}
		twoQubitGates := []string{"cnot", "cz", "swap", "cr", "crk", "toffoli"}
		for _, name := range twoQubitGates {
			it.Add(name, []types.Type{qArr, qArr}, gate)
		}
		it.Add("toffoli", []types.Type{qArr, qArr, qArr}, gate)
		it.Add("not", []types.Type{qArr}, gate)
		it.Add("u", []types.Type{qArr, types.Scalar(types.RealMatrix)}, gate)
		it.Add("measure_all", nil, plain)
		it.Add("measure_parity", []types.Type{qArr, qArr}, plain)
		it.Add("display", nil, plain)
		it.Add("display_binary", nil, plain)
		it.Add("skip", []types.Type{types.Scalar(types.Int)}, plain)
		it.Add("wait", []types.Type{qArr, types.Scalar(types.Int)}, plain)
		it.Add("barrier", []types.Type{qArr}, plain)
		it.Add("reset-averaging", nil, plain)
		it.Add("reset-averaging", []types.Type{qArr}, plain)
		it.Add("load_state", []types.Type{types.Scalar(types.String)}, plain)
		return it
	}

	// v3
	q1 := types.Array(types.QubitArray, 1)
	axis := types.Scalar(types.Axis)
	singleQubitGates := []string{"H", "I", "X", "Y", "Z", "S", "Sdag", "T", "Tdag", "X90", "Y90", "mX90", "mY90"}
	for _, name := range singleQubitGates {
		it.Add(name, []types.Type{q1}, gate)
	}
	rotations := []string{"Rx", "Ry", "Rz"}
	for _, name := range rotations {
		it.Add(name, []types.Type{q1, types.Scalar(types.Real)}, gate)
		it.Add(name, []types.Type{axis, types.Scalar(types.Real)}, gate)
	}
	twoQubitGates := []string{"CNOT", "CZ"}
	for _, name := range twoQubitGates {
		it.Add(name, []types.Type{q1, q1}, gate)
	}
	it.Add("CR", []types.Type{q1, q1, types.Scalar(types.Real)}, gate)
	it.Add("CRk", []types.Type{q1, q1, types.Scalar(types.Int)}, gate)
	it.Add("measure", []types.Type{q1}, registry.Flags{AllowConditional: false, AllowParallel: true, AllowReusedQubits: false, AllowDifferentIndexSizes: false})
	it.Add("reset", []types.Type{q1}, plain)
	it.Add("reset", nil, plain)
	return it
}

// DefaultErrorModels registers the small set of noise-parameter models a
// caller would otherwise have to supply via internal/regstore before
// analyzing a program that declares one.
func DefaultErrorModels(d dialect.Dialect) *registry.ErrorModelTable {
	et := registry.NewErrorModelTable(d.CaseSensitive())
	et.Add("depolarizing_channel", []types.Type{types.Scalar(types.Real)})
	return et
}
