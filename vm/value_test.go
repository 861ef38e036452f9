package vm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToBoolean(t *testing.T) {
	assert.False(t, Undefined().ToBoolean())
	assert.False(t, Null().ToBoolean())
	assert.False(t, Number(0).ToBoolean())
	assert.False(t, Number(math.NaN()).ToBoolean())
	assert.False(t, String("").ToBoolean())
	assert.True(t, Number(1).ToBoolean())
	assert.True(t, String("x").ToBoolean())
	assert.True(t, Obj(NewObject(nil)).ToBoolean())
}

func TestToNumberCoercions(t *testing.T) {
	assert.True(t, math.IsNaN(Undefined().ToNumber()))
	assert.Equal(t, float64(0), Null().ToNumber())
	assert.Equal(t, float64(1), Bool(true).ToNumber())
	assert.Equal(t, float64(42), String("42").ToNumber())
	assert.True(t, math.IsNaN(String("pear").ToNumber()))
}

func TestToStringFormatting(t *testing.T) {
	assert.Equal(t, "3", Number(3).ToString())
	assert.Equal(t, "3.5", Number(3.5).ToString())
	assert.Equal(t, "NaN", Number(math.NaN()).ToString())
	assert.Equal(t, "Infinity", Number(math.Inf(1)).ToString())
	assert.Equal(t, "undefined", Undefined().ToString())
	assert.Equal(t, "null", Null().ToString())
}

func TestStrictEquals(t *testing.T) {
	assert.True(t, Number(1).StrictEquals(Number(1)))
	assert.False(t, Number(1).StrictEquals(String("1")))
	assert.False(t, Number(math.NaN()).StrictEquals(Number(math.NaN())))
	o := Obj(NewObject(nil))
	assert.True(t, o.StrictEquals(o))
	assert.False(t, o.StrictEquals(Obj(NewObject(nil))))
}

func TestAbstractEquals(t *testing.T) {
	assert.True(t, Number(1).AbstractEquals(String("1")))
	assert.True(t, Null().AbstractEquals(Undefined()))
	assert.False(t, Null().AbstractEquals(Number(0)))
	assert.True(t, Bool(true).AbstractEquals(Number(1)))
	assert.False(t, Number(math.NaN()).AbstractEquals(Number(math.NaN())))
}

func TestScopeChainSharedPrefix(t *testing.T) {
	global := NewObject(nil)
	root := &ScopeChain{Object: global}

	a := root.Push(NewObject(nil))
	b := root.Push(NewObject(nil))
	require.Same(t, root, a.Parent)
	require.Same(t, root, b.Parent)

	a.Object.Put("x", Number(1))
	v, found := a.Resolve("x")
	require.True(t, found)
	assert.Equal(t, "1", v.ToString())

	_, found = b.Resolve("x")
	assert.False(t, found)

	global.Put("y", Number(2))
	base := a.ResolveBase("y")
	require.Same(t, global, base)
	base = a.ResolveBase("nowhere")
	require.Same(t, global, base, "resolve_base miss falls back to the outermost scope")
}

func TestActivationDetachKeepsValues(t *testing.T) {
	cb := &CodeBlock{
		Name:          "f",
		NumParameters: 1,
		NumLocals:     1,
		SymbolNames:   map[string]int{"p": -2, "v": -1},
	}
	m := NewMachine(nil)
	m.regs = []Value{Number(10), Number(20)} // p at base-2, v at base-1

	act := newActivation(cb, m, 2)
	v, ok := act.Get("v")
	require.True(t, ok)
	assert.Equal(t, "20", v.ToString())

	// Writes while attached land in the register file.
	act.Put("v", Number(21))
	assert.Equal(t, "21", m.regs[1].ToString())

	act.Detach()
	m.regs = m.regs[:0] // frame torn down

	v, ok = act.Get("v")
	require.True(t, ok)
	assert.Equal(t, "21", v.ToString())
	p, ok := act.Get("p")
	require.True(t, ok)
	assert.Equal(t, "10", p.ToString())

	// Dynamically created names live in the per-activation map either way.
	act.Put("dyn", Number(1))
	_, ok = act.Get("dyn")
	assert.True(t, ok)
	assert.False(t, act.DeleteProperty("arguments"))
	assert.True(t, act.DeleteProperty("dyn"))
}
