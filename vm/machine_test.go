package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"regvm/config"
)

// ins is a tiny helper for building an InstructionStream literal without a
// codegen pass, the way the teacher's vm_test.go builds Bytecode directly
// out of Make() calls — here used to drive Machine behaviors that
// don't need a full compiler to exercise.
func ins(words ...int32) InstructionStream {
	out := make(InstructionStream, len(words))
	for i, w := range words {
		out[i] = Instruction(w)
	}
	return out
}

// TestArithmeticDispatch exercises the program-level load/add/mult/end path
// directly against a hand-built CodeBlock, checking along the way that
// numRegisters == numLocals + numTemporaries.
func TestArithmeticDispatch(t *testing.T) {
	cb := &CodeBlock{
		Name: "",
		Instructions: ins(
			int32(OpLoad), 0, 0, // r0 = 1
			int32(OpLoad), 1, 1, // r1 = 2
			int32(OpAdd), 2, 0, 1, // r2 = r0 + r1
			int32(OpLoad), 3, 2, // r3 = 3
			int32(OpMult), 4, 2, 3, // r4 = r2 * r3
			int32(OpEnd), 4,
		),
		Values:         []Value{Number(1), Number(2), Number(3)},
		NumTemporaries: 5,
	}
	require.Equal(t, cb.NumLocals+cb.NumTemporaries, cb.NumRegisters())

	m := NewMachine(config.DefaultConfig())
	result, err := m.Execute(cb, &ScopeChain{Object: m.Global()})
	require.NoError(t, err)
	require.Equal(t, "9", result.ToString())
}

// TestCallParameterUnderflow: argc < P fills
// the missing parameter slot with undefined, built directly at the
// CodeBlock level rather than through codegen.
func TestCallParameterUnderflow(t *testing.T) {
	// callee: function(x, y) { return y; } -- P=2, reads parameter y at r[-1].
	callee := &CodeBlock{
		Name:           "f",
		Instructions:   ins(int32(OpRet), -1),
		NumParameters:  2,
		NumTemporaries: 0,
	}
	// caller: loads the callee function object, calls it with argc=1.
	calleeBody := NewCompiledFunctionBody("f", callee)
	caller := &CodeBlock{
		Name: "",
		Instructions: ins(
			int32(OpLoad), 0, 0, // r0 = fn
			int32(OpLoad), 2, 1, // r2(argv) = 7 (this slot unused by a plain call)
			int32(OpCall), 1, 0, int32(MissingThisMarker), 2, 1, // r1 = call r0(r2..r2+1), argc=1
			int32(OpEnd), 1,
		),
		Values:         []Value{Undefined(), Number(7)},
		Functions:      []*FunctionBody{calleeBody},
		NumTemporaries: 3,
	}
	caller.Values[0] = NewFunctionObjectValue("f", calleeBody, nil)

	m := NewMachine(config.DefaultConfig())
	result, err := m.Execute(caller, &ScopeChain{Object: m.Global()})
	require.NoError(t, err)
	require.Equal(t, TypeUndefined, result.Type)
}

// TestCallParameterOverflow: argc > P takes the copy-up path and
// leaves the extra argument addressable (beyond P) but not bound to a named
// parameter.
func TestCallParameterOverflow(t *testing.T) {
	// callee: function(x) { return x; } -- P=1.
	callee := &CodeBlock{
		Name:           "f",
		Instructions:   ins(int32(OpRet), -1),
		NumParameters:  1,
		NumTemporaries: 0,
	}
	calleeBody := NewCompiledFunctionBody("f", callee)
	caller := &CodeBlock{
		Name: "",
		Instructions: ins(
			int32(OpLoad), 0, 0, // r0 = fn
			int32(OpLoad), 2, 1, // argv = this slot
			int32(OpLoad), 3, 2, // arg0 = 10
			int32(OpLoad), 4, 3, // arg1 = 20
			int32(OpCall), 1, 0, int32(MissingThisMarker), 2, 2, // argc=2
			int32(OpEnd), 1,
		),
		Values:         []Value{Undefined(), Undefined(), Number(10), Number(20)},
		Functions:      []*FunctionBody{calleeBody},
		NumTemporaries: 5,
	}
	caller.Values[0] = NewFunctionObjectValue("f", calleeBody, nil)

	m := NewMachine(config.DefaultConfig())
	result, err := m.Execute(caller, &ScopeChain{Object: m.Global()})
	require.NoError(t, err)
	require.Equal(t, "10", result.ToString())
}

// TestActivationDetach: a frame
// with NeedsActivation set detaches its registers on return, and the
// activation object remains readable afterward.
func TestActivationDetach(t *testing.T) {
	callee := &CodeBlock{
		Name: "inner",
		Instructions: ins(
			int32(OpResolve), 0, 0, // r0 = resolve "v"
			int32(OpRet), 0,
		),
		Identifiers:     []string{"v"},
		NumParameters:   0,
		NumLocals:       1,
		NumTemporaries:  1,
		SymbolNames:     map[string]int{"v": -1},
		NeedsActivation: true,
	}

	m := NewMachine(config.DefaultConfig())
	scope := &ScopeChain{Object: m.Global()}
	fn := &FunctionObject{Name: "inner", Body: NewCompiledFunctionBody("inner", callee), Scope: scope}

	result, err := m.CallFunction(fn, Undefined(), nil)
	require.NoError(t, err)
	require.Equal(t, TypeUndefined, result.Type) // v was never written, reads as undefined
}

// TestReturnInfoUntouchedAcrossNestedCall: a call made from inside a callee
// must not corrupt the outer call's own return-info block. Exercised by
// calling a function that itself calls another function before returning.
func TestReturnInfoUntouchedAcrossNestedCall(t *testing.T) {
	// inner: function() { return 5; }
	inner := &CodeBlock{
		Name:           "inner",
		Instructions:   ins(int32(OpLoad), 0, 0, int32(OpRet), 0),
		Values:         []Value{Number(5)},
		NumTemporaries: 1,
	}
	innerBody := NewCompiledFunctionBody("inner", inner)
	// outer: function() { return inner() + 1; }
	outer := &CodeBlock{
		Name: "outer",
		Instructions: ins(
			int32(OpLoad), 0, 0, // r0 = innerFn
			int32(OpLoad), 2, 1, // argv this slot
			int32(OpCall), 1, 0, int32(MissingThisMarker), 2, 0, // r1 = inner()
			int32(OpLoad), 3, 2, // r3 = 1
			int32(OpAdd), 4, 1, 3, // r4 = r1 + 1
			int32(OpRet), 4,
		),
		Values:         []Value{Undefined(), Undefined(), Number(1)},
		Functions:      []*FunctionBody{innerBody},
		NumTemporaries: 5,
	}
	outer.Values[0] = NewFunctionObjectValue("inner", innerBody, nil)

	outerBody := NewCompiledFunctionBody("outer", outer)
	driver := &CodeBlock{
		Name: "",
		Instructions: ins(
			int32(OpLoad), 0, 0, // r0 = outerFn
			int32(OpLoad), 2, 1, // argv
			int32(OpCall), 1, 0, int32(MissingThisMarker), 2, 0,
			int32(OpEnd), 1,
		),
		Values:         []Value{Undefined(), Undefined()},
		Functions:      []*FunctionBody{outerBody},
		NumTemporaries: 3,
	}
	driver.Values[0] = NewFunctionObjectValue("outer", outerBody, nil)

	m := NewMachine(config.DefaultConfig())
	result, err := m.Execute(driver, &ScopeChain{Object: m.Global()})
	require.NoError(t, err)
	require.Equal(t, "6", result.ToString())
}

// TestLazyCompileOnFirstCall: a function body stays uncompiled until the
// first call enters it, then the compiled block is served from the cache on
// every later call.
func TestLazyCompileOnFirstCall(t *testing.T) {
	callee := &CodeBlock{
		Name:           "f",
		Instructions:   ins(int32(OpLoad), 0, 0, int32(OpRet), 0),
		Values:         []Value{Number(5)},
		NumTemporaries: 1,
	}
	compiles := 0
	body := &FunctionBody{Name: "f"}
	body.Key = body
	body.Compile = func() (*CodeBlock, error) {
		compiles++
		return callee, nil
	}

	m := NewMachine(config.DefaultConfig())
	fn := &FunctionObject{Name: "f", Body: body, Scope: &ScopeChain{Object: m.Global()}}
	require.Zero(t, compiles, "no compilation before the first call")

	for i := 0; i < 3; i++ {
		result, err := m.CallFunction(fn, Undefined(), nil)
		require.NoError(t, err)
		require.Equal(t, "5", result.ToString())
	}
	require.Equal(t, 1, compiles, "compiled on first entry, cached thereafter")
}

// TestCompileCacheEviction: the cache is bounded; an evicted body is
// recompiled transparently on its next call.
func TestCompileCacheEviction(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.CodeBlockCacheSize = 1
	m := NewMachine(cfg)

	newCounted := func(name string, n float64, compiles *int) *FunctionObject {
		cb := &CodeBlock{
			Name:           name,
			Instructions:   ins(int32(OpLoad), 0, 0, int32(OpRet), 0),
			Values:         []Value{Number(n)},
			NumTemporaries: 1,
		}
		body := &FunctionBody{Name: name}
		body.Key = body
		body.Compile = func() (*CodeBlock, error) {
			*compiles++
			return cb, nil
		}
		return &FunctionObject{Name: name, Body: body, Scope: &ScopeChain{Object: m.Global()}}
	}

	var fCompiles, gCompiles int
	f := newCounted("f", 1, &fCompiles)
	g := newCounted("g", 2, &gCompiles)

	_, err := m.CallFunction(f, Undefined(), nil)
	require.NoError(t, err)
	_, err = m.CallFunction(g, Undefined(), nil) // evicts f
	require.NoError(t, err)
	result, err := m.CallFunction(f, Undefined(), nil)
	require.NoError(t, err)
	require.Equal(t, "1", result.ToString())
	require.Equal(t, 2, fCompiles, "evicted body recompiles on its next call")
	require.Equal(t, 1, gCompiles)
}

func TestRelationalStringComparison(t *testing.T) {
	m := NewMachine(config.DefaultConfig())
	v, err := m.relational2(String("apple"), String("banana"))
	require.NoError(t, err)
	require.Negative(t, v)
}

// relational2 adapts Machine.relational's register-indexed signature for a
// direct value-to-value test without staging a register file.
func (m *Machine) relational2(l, r Value) (int, error) {
	m.regs = []Value{l, r}
	m.r = 0
	return m.relational(0, 1)
}

func TestErrorKinds(t *testing.T) {
	require.Equal(t, "ReferenceError", ReferenceError.String())
	require.Equal(t, "TypeError", TypeError.String())
	err := newRangeError("too deep", 3)
	require.Equal(t, RangeError, err.Kind)
	require.Contains(t, err.Error(), "RangeError")
}

func TestMaxCallDepthRangeError(t *testing.T) {
	// self-recursive callee with no base case; must hit MaxCallDepth.
	self := &CodeBlock{Name: "rec", NumTemporaries: 3}
	self.Instructions = ins(
		int32(OpLoad), 0, 0, // r0 = selfFn (patched below)
		int32(OpLoad), 2, 1, // argv
		int32(OpCall), 1, 0, int32(MissingThisMarker), 2, 0,
		int32(OpRet), 1,
	)
	selfBody := NewCompiledFunctionBody("rec", self)
	self.Values = []Value{Undefined(), Undefined()}
	self.Functions = []*FunctionBody{selfBody}
	self.Values[0] = NewFunctionObjectValue("rec", selfBody, nil)

	cfg := config.DefaultConfig()
	cfg.MaxCallDepth = 8
	m := NewMachine(cfg)
	fn := &FunctionObject{Name: "rec", Body: selfBody, Scope: &ScopeChain{Object: m.Global()}}
	_, err := m.CallFunction(fn, Undefined(), nil)
	require.Error(t, err)

	scriptErr, ok := err.(*ScriptError)
	require.True(t, ok)
	require.Equal(t, RangeError, scriptErr.Kind)
}
