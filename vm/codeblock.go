package vm

// CodeBlock is the compiled artifact for one function or the top-level
// program: the instruction stream plus the constant pools and
// register-layout counts the Machine needs to allocate a frame for it.
type CodeBlock struct {
	Name string

	Instructions InstructionStream
	Identifiers  []string // interned names: property/variable name pool
	Values       []Value  // literal number/boolean/string constant pool

	// Functions is the pool of function bodies declared inside this block.
	// Entries are uncompiled descriptions, not CodeBlocks: op_new_func only
	// mints a closure over one, and the Machine compiles it on the first
	// call/construct that actually enters it (see resolveCodeBlock).
	Functions []*FunctionBody

	// Regexps is the regular-expression constant pool. Always empty: the
	// lexer this codegen consumes has no regex-literal token, so nothing
	// ever populates it.
	Regexps []Value

	NumParameters  int
	NumLocals      int
	NumTemporaries int

	// SymbolNames maps a parameter/local's name to its register index
	// (negative: parameters below locals, locals below zero) for Activation
	// property resolution, which is how resolve/resolve_base reach a
	// function's named slots through the scope chain.
	SymbolNames map[string]int

	UsesEval        bool
	NeedsClosure    bool
	NeedsActivation bool // the frame's names must live on the scope chain
}

// NumRegisters is the frame size the Machine allocates: locals plus the
// temporary high-water mark.
func (cb *CodeBlock) NumRegisters() int {
	return cb.NumLocals + cb.NumTemporaries
}

// FunctionBody describes one source function before it is compiled: a stable
// identity for cache lookups and a Compile hook that lowers its AST subtree.
// Closures minted by op_new_func share the body of the literal they came
// from, so however many closures exist, the body compiles at most once per
// Machine — and, because the compiled block lives in the Machine's bounded
// CodeBlockCache rather than here, an evicted block is simply recompiled on
// its next call.
type FunctionBody struct {
	Name string

	// Key identifies the source function for cache purposes; the code
	// generator uses the AST function-literal node itself.
	Key interface{}

	Compile func() (*CodeBlock, error)
}

// NewCompiledFunctionBody wraps an already-built CodeBlock as a FunctionBody,
// for embedders and tests that construct instruction streams by hand.
func NewCompiledFunctionBody(name string, cb *CodeBlock) *FunctionBody {
	fb := &FunctionBody{Name: name}
	fb.Key = fb
	fb.Compile = func() (*CodeBlock, error) { return cb, nil }
	return fb
}
