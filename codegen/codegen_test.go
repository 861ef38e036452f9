package codegen

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"regvm/ast"
	"regvm/config"
	"regvm/lexer"
	"regvm/parser"
	"regvm/vm"
)

// compileAndRun lexes, parses, generates, and executes source against a
// fresh Machine — the pipeline the `run` subcommand of cmd/regvmctl drives.
func compileAndRun(t *testing.T, source string) vm.Value {
	t.Helper()

	l := lexer.New(source)
	p := parser.New(l)
	program := p.ParseProgram()
	require.Empty(t, p.Errors(), "parser errors")

	cb, err := Generate(program)
	require.NoError(t, err)

	m := vm.NewMachine(config.DefaultConfig())
	m.SetEvalCompiler(NewEvalCompiler(m.Cache()))
	result, err := m.Execute(cb, &vm.ScopeChain{Object: m.Global()})
	require.NoError(t, err)
	return result
}

// TestArithmetic: (1+2)*3 == 9, emitted as two
// loads feeding an add, then a load feeding a mult.
func TestArithmetic(t *testing.T) {
	program := mustParse(t, "(1 + 2) * 3;")
	cb, err := Generate(program)
	require.NoError(t, err)

	lines := cb.Instructions.Disassemble()
	var ops []vm.Opcode
	for _, l := range lines {
		ops = append(ops, l.Op)
	}
	require.Contains(t, ops, vm.OpAdd)
	require.Contains(t, ops, vm.OpMult)
	require.Equal(t, vm.OpEnd, ops[len(ops)-1])

	result := compileAndRun(t, "(1 + 2) * 3;")
	require.Equal(t, "9", result.ToString())
}

// TestCallExactParams: argc == P, the zero-copy aliasing path.
func TestCallExactParams(t *testing.T) {
	result := compileAndRun(t, `
function f(x, y) { return x * y; }
f(4, 5);
`)
	require.Equal(t, "20", result.ToString())
}

// TestProgramContinuesAfterCall: a program-level call returning must resume
// the program, not end it — the statement after the call decides the result.
func TestProgramContinuesAfterCall(t *testing.T) {
	result := compileAndRun(t, `
function f(x, y) { return x * y; }
f(4, 5);
99;
`)
	require.Equal(t, "99", result.ToString())
}

// TestCallUnderflowParams: argc < P leaves the
// missing parameter undefined.
func TestCallUnderflowParams(t *testing.T) {
	result := compileAndRun(t, `
function f(x, y) { return y; }
f(7);
`)
	require.Equal(t, vm.TypeUndefined, result.Type)
}

// TestCallOverflowParams: argc > P takes the
// copy-up path; the callee still only sees its own declared parameter.
func TestCallOverflowParams(t *testing.T) {
	result := compileAndRun(t, `
function f(x) { return x; }
f(10, 20);
`)
	require.Equal(t, "10", result.ToString())
}

// TestClosureEscape: a closure over a local that
// outlives the declaring frame's return, resolved through a detached
// activation.
func TestClosureEscape(t *testing.T) {
	result := compileAndRun(t, `
function outer() {
	var v = 42;
	return function() { return v; };
}
outer()();
`)
	require.Equal(t, "42", result.ToString())
}

// TestLabelledBreakAcrossScope: a with block
// wrapped in a labelled infinite loop, broken out of by label — exercises
// jmp_scopes's scopeDelta.
func TestLabelledBreakAcrossScope(t *testing.T) {
	cb, err := Generate(mustParse(t, `
var o = {};
outer: for (;;) {
	with (o) {
		break outer;
	}
}
`))
	require.NoError(t, err)

	var sawJmpScopes bool
	for _, l := range cb.Instructions.Disassemble() {
		if l.Op == vm.OpJmpScopes {
			sawJmpScopes = true
			require.Equal(t, int32(1), l.Operands[0], "scopeDelta")
		}
	}
	require.True(t, sawJmpScopes, "expected a jmp_scopes instruction")

	result := compileAndRun(t, `
var o = {};
outer: for (;;) {
	with (o) {
		break outer;
	}
}
`)
	require.Equal(t, vm.TypeUndefined, result.Type)
}

func TestControlFlow(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"if_true", `if (1 < 2) { 10; } else { 20; }`, "10"},
		{"if_false", `if (1 > 2) { 10; } else { 20; }`, "20"},
		{"while_sum", `var sum = 0; var i = 0; while (i < 5) { sum = sum + i; i = i + 1; } sum;`, "10"},
		{"for_sum", `var sum = 0; for (var i = 0; i < 5; i = i + 1) { sum = sum + i; } sum;`, "10"},
		{"logical_and_short_circuits", `var calls = 0; function bump() { calls = calls + 1; return true; } false && bump(); calls;`, "0"},
		{"logical_or_short_circuits", `var calls = 0; function bump() { calls = calls + 1; return true; } true || bump(); calls;`, "0"},
		{"break_in_loop", `var i = 0; while (true) { if (i == 3) { break; } i = i + 1; } i;`, "3"},
		{"continue_in_loop", `var sum = 0; for (var i = 0; i < 5; i = i + 1) { if (i == 2) { continue; } sum = sum + i; } sum;`, "8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, compileAndRun(t, tt.input).ToString())
		})
	}
}

func TestObjectsAndArrays(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"array_literal_index", `var a = [1, 2, 3]; a[1];`, "2"},
		{"object_literal_member", `var o = {x: 1, y: 2}; o.y;`, "2"},
		{"object_computed_member", `var o = {x: 1}; var k = "x"; o[k];`, "1"},
		{"array_length", `var a = [1, 2, 3]; a.length;`, "3"},
		{"delete_property", `var o = {x: 1}; delete o.x; o.x;`, "undefined"},
		{"typeof_number", `typeof 1;`, "number"},
		{"typeof_function", `function f() {} typeof f;`, "function"},
		{"typeof_undeclared", `typeof neverDeclared;`, "undefined"},
		{"in_operator_true", `var o = {x: 1}; "x" in o;`, "true"},
		{"in_operator_false", `var o = {x: 1}; "y" in o;`, "false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, compileAndRun(t, tt.input).ToString())
		})
	}
}

func TestComparisonEvaluationOrder(t *testing.T) {
	// f()/g() must evaluate left-to-right even though `>`/`>=` lower to a
	// swapped `less`/`lesseq` with no dedicated opcode of their own.
	result := compileAndRun(t, `
var order = [];
function f() { order = order + "f"; return 2; }
function g() { order = order + "g"; return 1; }
var r = f() > g();
order;
`)
	require.Equal(t, "fg", result.ToString())
}

func TestForIn(t *testing.T) {
	result := compileAndRun(t, `
var o = {a: 1, b: 2, c: 3};
var keys = "";
for (var k in o) {
	keys = keys + k;
}
keys;
`)
	require.Equal(t, "abc", result.ToString())
}

// TestForInVarDeclaresLocal: `for (var k in o)` introduces k as a variable
// of the enclosing function, leaving an outer k of the same name untouched.
func TestForInVarDeclaresLocal(t *testing.T) {
	result := compileAndRun(t, `
var k = "outer";
function f(o) {
	for (var k in o) {
	}
}
f({a: 1, b: 2});
k;
`)
	require.Equal(t, "outer", result.ToString())
}

// TestForInBareAssignsThroughScopeChain: the bare `for (k in o)` form
// declares nothing; each iteration assigns k through the scope chain, here
// reaching the global binding.
func TestForInBareAssignsThroughScopeChain(t *testing.T) {
	result := compileAndRun(t, `
var k = "outer";
function f(o) {
	for (k in o) {
	}
}
f({a: 1, b: 2});
k;
`)
	require.Equal(t, "b", result.ToString())
}

func TestNewConstruct(t *testing.T) {
	result := compileAndRun(t, `
function Point(x, y) {
	this.x = x;
	this.y = y;
}
var p = new Point(3, 4);
p.x + p.y;
`)
	require.Equal(t, "7", result.ToString())
}

// TestRegisterReclamation exercises temporary reuse indirectly through the
// high-water mark: an
// expression with several disjoint subexpressions should not need one
// temporary per leaf.
func TestRegisterReclamation(t *testing.T) {
	cb, err := Generate(mustParse(t, "1 + 2 + 3 + 4 + 5;"))
	require.NoError(t, err)
	require.Less(t, cb.NumTemporaries, 5)
}

// TestCompileTwiceDeterministic: compiling
// the same source twice yields identical instruction streams and identifier
// pools.
func TestCompileTwiceDeterministic(t *testing.T) {
	const source = `
function f(x) { return x + 1; }
var total = f(2) + f(3);
total;
`
	first, err := Generate(mustParse(t, source))
	require.NoError(t, err)
	second, err := Generate(mustParse(t, source))
	require.NoError(t, err)

	if diff := cmp.Diff(first.Instructions, second.Instructions); diff != "" {
		t.Fatalf("instruction streams differ (-first +second):\n%s\nfirst stream:\n%s",
			diff, spew.Sdump(first.Instructions))
	}
	require.Equal(t, first.Identifiers, second.Identifiers)
	require.Equal(t, first.NumTemporaries, second.NumTemporaries)
}

// TestWithDynamicResolution: inside a with block, a name bound both as a
// function local and as a property of the with object must resolve to the
// with object's binding — the scope-depth rule of registerForLocal.
func TestWithDynamicResolution(t *testing.T) {
	result := compileAndRun(t, `
function f() {
	var x = 1;
	var o = {x: 2};
	var seen = 0;
	with (o) {
		seen = x;
	}
	return seen;
}
f();
`)
	require.Equal(t, "2", result.ToString())
}

// TestWithFallsThroughToLocals: a with object that does NOT bind the name
// falls through to the frame's own variables, which requires the frame's
// names to be reachable on the scope chain while a with is active.
func TestWithFallsThroughToLocals(t *testing.T) {
	result := compileAndRun(t, `
function f() {
	var x = 7;
	var r = 0;
	with ({}) {
		r = x;
	}
	return r;
}
f();
`)
	require.Equal(t, "7", result.ToString())
}

func TestEval(t *testing.T) {
	result := compileAndRun(t, `
var x = 5;
eval("x + 1");
`)
	require.Equal(t, "6", result.ToString())
}

// TestEvalSeesFunctionLocals: eval runs in the caller's scope chain, so a
// string evaluated inside a function resolves that function's locals through
// its activation.
func TestEvalSeesFunctionLocals(t *testing.T) {
	result := compileAndRun(t, `
function f() {
	var a = 3;
	return eval("a + 2");
}
f();
`)
	require.Equal(t, "5", result.ToString())
}

func TestEvalSyntaxError(t *testing.T) {
	l := lexer.New(`eval("var )");`)
	p := parser.New(l)
	program := p.ParseProgram()
	require.Empty(t, p.Errors())

	cb, err := Generate(program)
	require.NoError(t, err)

	m := vm.NewMachine(config.DefaultConfig())
	m.SetEvalCompiler(NewEvalCompiler(m.Cache()))
	_, err = m.Execute(cb, &vm.ScopeChain{Object: m.Global()})
	require.Error(t, err)
	scriptErr, ok := err.(*vm.ScriptError)
	require.True(t, ok)
	require.Equal(t, vm.SyntaxError, scriptErr.Kind)
}

// TestGlobalsPersistAcrossExecutes: top-level vars live on the global
// object, so a second program run against the same Machine sees them — the
// behavior the repl subcommand depends on.
func TestGlobalsPersistAcrossExecutes(t *testing.T) {
	m := vm.NewMachine(config.DefaultConfig())
	scope := &vm.ScopeChain{Object: m.Global()}

	first, err := Generate(mustParse(t, `var counter = 41;`))
	require.NoError(t, err)
	_, err = m.Execute(first, scope)
	require.NoError(t, err)

	second, err := Generate(mustParse(t, `counter + 1;`))
	require.NoError(t, err)
	result, err := m.Execute(second, scope)
	require.NoError(t, err)
	require.Equal(t, "42", result.ToString())
}

func TestUndeclaredReferenceError(t *testing.T) {
	l := lexer.New(`missing + 1;`)
	p := parser.New(l)
	program := p.ParseProgram()
	require.Empty(t, p.Errors())

	cb, err := Generate(program)
	require.NoError(t, err)

	m := vm.NewMachine(config.DefaultConfig())
	_, err = m.Execute(cb, &vm.ScopeChain{Object: m.Global()})
	require.Error(t, err)
	scriptErr, ok := err.(*vm.ScriptError)
	require.True(t, ok)
	require.Equal(t, vm.ReferenceError, scriptErr.Kind)
}

func mustParse(t *testing.T, source string) *ast.Program {
	t.Helper()
	l := lexer.New(source)
	p := parser.New(l)
	program := p.ParseProgram()
	require.Empty(t, p.Errors())
	return program
}
