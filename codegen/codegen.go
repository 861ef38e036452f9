package codegen

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"regvm/ast"
	"regvm/lexer"
	"regvm/parser"
	"regvm/vm"
)

// loopContext tracks one enclosing loop (or labelled statement) for
// break/continue resolution: the labels to
// jump to, and the scope depth the loop was entered at so a break/continue
// crossing one or more `with` blocks can compute how many op_jmp_scopes to
// unwind.
type loopContext struct {
	label             string
	breakLabel        *LabelID
	continueLabel     *LabelID // nil for a plain labelled non-loop statement
	scopeDepthAtEntry int
}

// CodeGenerator walks one function body (or the top-level program) and
// produces one vm.CodeBlock. A fresh CodeGenerator is used per
// function: none of this state is meaningful across function boundaries,
// unlike the constant pools and register file it builds up within one.
type CodeGenerator struct {
	log zerolog.Logger

	name      string
	isProgram bool

	code vm.InstructionStream

	identifiers []string
	identIndex  map[string]int32

	values     []vm.Value
	valueIndex map[ast.Expression]int32

	functions []*vm.FunctionBody
	funcIndex map[*ast.FunctionLiteral]int32

	localIndex map[string]int32
	numLocals  int
	numParams  int

	// nextTemp/deadTemporaries/maxTemp back newTemporary (register.go) — the
	// stack-discipline temporary arena.
	nextTemp        int32
	deadTemporaries map[int32]bool
	maxTemp         int32

	scopeDepth int
	loopStack  []*loopContext

	usesEval     bool
	needsClosure bool
	usesWith     bool

	funcBodies map[*ast.FunctionLiteral]*vm.FunctionBody

	// resultReg holds the value of the most recently evaluated top-level
	// expression statement, which becomes op_end's operand — how a REPL or
	// eval reports a script's result. Only set when isProgram.
	resultReg *RegisterID
}

func newCodeGenerator(name string) *CodeGenerator {
	return &CodeGenerator{
		log:             log.With().Str("component", "codegen").Str("function", name).Logger(),
		name:            name,
		identIndex:      make(map[string]int32),
		valueIndex:      make(map[ast.Expression]int32),
		funcIndex:       make(map[*ast.FunctionLiteral]int32),
		localIndex:      make(map[string]int32),
		deadTemporaries: make(map[int32]bool),
		funcBodies:      make(map[*ast.FunctionLiteral]*vm.FunctionBody),
	}
}

// Generate compiles a top-level program into a CodeBlock — the compile
// half of the embedding surface. The program's last evaluated expression
// statement becomes the value op_end returns, matching how a REPL or `eval`
// reports a script's result.
func Generate(program *ast.Program) (cb *vm.CodeBlock, err error) {
	cg := newCodeGenerator("<program>")
	cg.isProgram = true
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("codegen: %v", rec)
		}
	}()
	return cg.compileProgram(program), nil
}

// NewEvalCompiler builds the source-to-CodeBlock closure Machine.
// SetEvalCompiler wants, backing the `eval` builtin. Compiled results
// are memoized in cache, keyed by the source string itself — repeated eval
// of the same source (a REPL history replay, a hot eval call site) compiles
// once.
func NewEvalCompiler(cache *vm.CodeBlockCache) func(source string) (*vm.CodeBlock, error) {
	return func(source string) (*vm.CodeBlock, error) {
		if cb, ok := cache.Get(source); ok {
			return cb, nil
		}
		l := lexer.New(source)
		p := parser.New(l)
		program := p.ParseProgram()
		if errs := p.Errors(); len(errs) > 0 {
			return nil, &vm.ScriptError{Kind: vm.SyntaxError, Value: vm.String(errs[0]), Line: 0}
		}
		cb, err := Generate(program)
		if err != nil {
			return nil, err
		}
		cache.Put(source, cb)
		return cb, nil
	}
}

// ---- constant pool helpers ----

func (cg *CodeGenerator) emit(op vm.Opcode, operands ...int32) {
	cg.code = append(cg.code, vm.Instruction(op))
	for _, o := range operands {
		cg.code = append(cg.code, vm.Instruction(o))
	}
}

func (cg *CodeGenerator) addIdentifier(name string) int32 {
	if idx, ok := cg.identIndex[name]; ok {
		return idx
	}
	idx := int32(len(cg.identifiers))
	cg.identifiers = append(cg.identifiers, name)
	cg.identIndex[name] = idx
	return idx
}

// addValue interns val into the constant pool, deduping by the AST literal
// node's identity when one is supplied; pool indices are append-only and
// stable for the life of the CodeBlock.
func (cg *CodeGenerator) addValue(node ast.Expression, val vm.Value) int32 {
	if node != nil {
		if idx, ok := cg.valueIndex[node]; ok {
			return idx
		}
	}
	idx := int32(len(cg.values))
	cg.values = append(cg.values, val)
	if node != nil {
		cg.valueIndex[node] = idx
	}
	return idx
}

func (cg *CodeGenerator) addFunctionBody(lit *ast.FunctionLiteral) int32 {
	if idx, ok := cg.funcIndex[lit]; ok {
		return idx
	}
	idx := int32(len(cg.functions))
	cg.functions = append(cg.functions, cg.functionBody(lit))
	cg.funcIndex[lit] = idx
	return idx
}

func (cg *CodeGenerator) emitLoad(val vm.Value, node ast.Expression) *RegisterID {
	dst := cg.newTemporary()
	k := cg.addValue(node, val)
	cg.emit(vm.OpLoad, dst.Index, k)
	return dst
}

func (cg *CodeGenerator) emitResolve(name string) *RegisterID {
	dst := cg.newTemporary()
	cg.emit(vm.OpResolve, dst.Index, cg.addIdentifier(name))
	return dst
}

func (cg *CodeGenerator) emitResolveBase(name string) *RegisterID {
	dst := cg.newTemporary()
	cg.emit(vm.OpResolveBase, dst.Index, cg.addIdentifier(name))
	return dst
}

func (cg *CodeGenerator) emitObjectGet(base *RegisterID, name string) *RegisterID {
	dst := cg.newTemporary()
	cg.emit(vm.OpObjectGet, dst.Index, base.Index, cg.addIdentifier(name))
	return dst
}

func (cg *CodeGenerator) emitObjectPut(base *RegisterID, name string, src *RegisterID) {
	cg.emit(vm.OpObjectPut, base.Index, cg.addIdentifier(name), src.Index)
}

// registerForLocal returns the RegisterID for a named parameter/local only
// when the current `with` scope depth is zero;
// otherwise it logs the dynamic-scope shadow and returns nil, forcing the
// caller onto the resolve/resolve_base path since a `with` object might
// shadow the name at runtime.
func (cg *CodeGenerator) registerForLocal(name string) *RegisterID {
	if cg.scopeDepth != 0 {
		if _, ok := cg.localIndex[name]; ok {
			cg.log.Warn().Str("name", name).Msg("dynamic scope shadow forces runtime resolve")
		}
		return nil
	}
	idx, ok := cg.localIndex[name]
	if !ok {
		return nil
	}
	return cg.persistentRegister(idx)
}

func (cg *CodeGenerator) assignToIdentifier(name string, v *RegisterID) {
	if r := cg.registerForLocal(name); r != nil {
		cg.emit(vm.OpMov, r.Index, v.Index)
		return
	}
	base := cg.emitResolveBase(name)
	cg.emit(vm.OpObjectPut, base.Index, cg.addIdentifier(name), v.Index)
	base.Deref()
}

// ---- hoisting ----

// hoistLocals walks stmts recursively through nested blocks/if/for/while/
// for-in/with/labelled statements — but not into a nested function's own
// body — collecting every `var` name and function-declaration name, in
// first-occurrence order, skipping anything already bound as a parameter.
func hoistLocals(stmts []ast.Statement, params map[string]bool) (locals []string, funcDecls []*ast.FunctionDeclaration) {
	seen := make(map[string]bool)
	add := func(name string) {
		if name == "" || params[name] || seen[name] {
			return
		}
		seen[name] = true
		locals = append(locals, name)
	}
	var walkStmt func(s ast.Statement)
	walkStmts := func(list []ast.Statement) {
		for _, s := range list {
			walkStmt(s)
		}
	}
	walkStmt = func(s ast.Statement) {
		switch st := s.(type) {
		case *ast.VarStatement:
			add(st.Name.Value)
		case *ast.FunctionDeclaration:
			add(st.Function.Name)
			funcDecls = append(funcDecls, st)
		case *ast.BlockStatement:
			walkStmts(st.Statements)
		case *ast.IfStatement:
			walkStmt(st.Consequence)
			if st.Alternative != nil {
				walkStmt(st.Alternative)
			}
		case *ast.ForStatement:
			if st.Init != nil {
				walkStmt(st.Init)
			}
			walkStmt(st.Body)
		case *ast.WhileStatement:
			walkStmt(st.Body)
		case *ast.ForInStatement:
			// Only `for (var x in ...)` declares x; the bare form assigns
			// through the scope chain like any other undeclared write.
			if st.Declared {
				add(st.Variable.Value)
			}
			walkStmt(st.Body)
		case *ast.WithStatement:
			walkStmt(st.Body)
		case *ast.LabeledStatement:
			walkStmt(st.Body)
		}
	}
	walkStmts(stmts)
	return locals, funcDecls
}

// anyFunctionLiteral conservatively approximates needsClosure: true
// if a function literal appears anywhere in stmts, at any depth, even
// inside another nested function. Any such literal's closure chain may end
// up sharing this function's scope, so this function must materialize an
// activation whenever one exists — a syntactic over-approximation rather
// than real capture analysis, acceptable per the Design Notes.
func anyFunctionLiteral(stmts []ast.Statement) bool {
	for _, s := range stmts {
		if stmtHasFunctionLiteral(s) {
			return true
		}
	}
	return false
}

func stmtHasFunctionLiteral(s ast.Statement) bool {
	switch st := s.(type) {
	case *ast.ExpressionStatement:
		return st.Expression != nil && exprHasFunctionLiteral(st.Expression)
	case *ast.VarStatement:
		return st.Value != nil && exprHasFunctionLiteral(st.Value)
	case *ast.BlockStatement:
		return anyFunctionLiteral(st.Statements)
	case *ast.IfStatement:
		if exprHasFunctionLiteral(st.Condition) || stmtHasFunctionLiteral(st.Consequence) {
			return true
		}
		return st.Alternative != nil && stmtHasFunctionLiteral(st.Alternative)
	case *ast.ForStatement:
		if st.Init != nil && stmtHasFunctionLiteral(st.Init) {
			return true
		}
		if st.Condition != nil && exprHasFunctionLiteral(st.Condition) {
			return true
		}
		if st.Post != nil && stmtHasFunctionLiteral(st.Post) {
			return true
		}
		return stmtHasFunctionLiteral(st.Body)
	case *ast.WhileStatement:
		return exprHasFunctionLiteral(st.Condition) || stmtHasFunctionLiteral(st.Body)
	case *ast.ForInStatement:
		return exprHasFunctionLiteral(st.Object) || stmtHasFunctionLiteral(st.Body)
	case *ast.ReturnStatement:
		return st.ReturnValue != nil && exprHasFunctionLiteral(st.ReturnValue)
	case *ast.WithStatement:
		return exprHasFunctionLiteral(st.Object) || stmtHasFunctionLiteral(st.Body)
	case *ast.LabeledStatement:
		return stmtHasFunctionLiteral(st.Body)
	case *ast.FunctionDeclaration:
		return true
	default:
		return false
	}
}

func exprHasFunctionLiteral(e ast.Expression) bool {
	switch ex := e.(type) {
	case *ast.FunctionLiteral:
		return true
	case *ast.PrefixExpression:
		return exprHasFunctionLiteral(ex.Right)
	case *ast.UpdateExpression:
		return exprHasFunctionLiteral(ex.Argument)
	case *ast.InfixExpression:
		return exprHasFunctionLiteral(ex.Left) || exprHasFunctionLiteral(ex.Right)
	case *ast.AssignmentExpression:
		return exprHasFunctionLiteral(ex.Target) || exprHasFunctionLiteral(ex.Value)
	case *ast.CallExpression:
		if exprHasFunctionLiteral(ex.Function) {
			return true
		}
		for _, a := range ex.Arguments {
			if exprHasFunctionLiteral(a) {
				return true
			}
		}
		return false
	case *ast.NewExpression:
		if exprHasFunctionLiteral(ex.Callee) {
			return true
		}
		for _, a := range ex.Arguments {
			if exprHasFunctionLiteral(a) {
				return true
			}
		}
		return false
	case *ast.MemberExpression:
		return exprHasFunctionLiteral(ex.Object) || (ex.Computed && exprHasFunctionLiteral(ex.Property))
	case *ast.ArrayLiteral:
		for _, el := range ex.Elements {
			if exprHasFunctionLiteral(el) {
				return true
			}
		}
		return false
	case *ast.ObjectLiteral:
		for _, v := range ex.Values {
			if exprHasFunctionLiteral(v) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// anyEvalCall detects a direct call to a global named "eval",
// stopping at a nested function's own boundary: eval inside a
// closure only affects that closure's own activation, not its enclosing
// function's.
func anyEvalCall(stmts []ast.Statement) bool {
	for _, s := range stmts {
		if stmtHasEvalCall(s) {
			return true
		}
	}
	return false
}

func stmtHasEvalCall(s ast.Statement) bool {
	switch st := s.(type) {
	case *ast.ExpressionStatement:
		return st.Expression != nil && exprHasEvalCall(st.Expression)
	case *ast.VarStatement:
		return st.Value != nil && exprHasEvalCall(st.Value)
	case *ast.BlockStatement:
		return anyEvalCall(st.Statements)
	case *ast.IfStatement:
		if exprHasEvalCall(st.Condition) || stmtHasEvalCall(st.Consequence) {
			return true
		}
		return st.Alternative != nil && stmtHasEvalCall(st.Alternative)
	case *ast.ForStatement:
		if st.Init != nil && stmtHasEvalCall(st.Init) {
			return true
		}
		if st.Condition != nil && exprHasEvalCall(st.Condition) {
			return true
		}
		if st.Post != nil && stmtHasEvalCall(st.Post) {
			return true
		}
		return stmtHasEvalCall(st.Body)
	case *ast.WhileStatement:
		return exprHasEvalCall(st.Condition) || stmtHasEvalCall(st.Body)
	case *ast.ForInStatement:
		return exprHasEvalCall(st.Object) || stmtHasEvalCall(st.Body)
	case *ast.ReturnStatement:
		return st.ReturnValue != nil && exprHasEvalCall(st.ReturnValue)
	case *ast.WithStatement:
		return exprHasEvalCall(st.Object) || stmtHasEvalCall(st.Body)
	case *ast.LabeledStatement:
		return stmtHasEvalCall(st.Body)
	default:
		return false
	}
}

func exprHasEvalCall(e ast.Expression) bool {
	switch ex := e.(type) {
	case *ast.CallExpression:
		if id, ok := ex.Function.(*ast.Identifier); ok && id.Value == "eval" {
			return true
		}
		if exprHasEvalCall(ex.Function) {
			return true
		}
		for _, a := range ex.Arguments {
			if exprHasEvalCall(a) {
				return true
			}
		}
		return false
	case *ast.PrefixExpression:
		return exprHasEvalCall(ex.Right)
	case *ast.UpdateExpression:
		return exprHasEvalCall(ex.Argument)
	case *ast.InfixExpression:
		return exprHasEvalCall(ex.Left) || exprHasEvalCall(ex.Right)
	case *ast.AssignmentExpression:
		return exprHasEvalCall(ex.Target) || exprHasEvalCall(ex.Value)
	case *ast.NewExpression:
		if exprHasEvalCall(ex.Callee) {
			return true
		}
		for _, a := range ex.Arguments {
			if exprHasEvalCall(a) {
				return true
			}
		}
		return false
	case *ast.MemberExpression:
		return exprHasEvalCall(ex.Object) || (ex.Computed && exprHasEvalCall(ex.Property))
	case *ast.ArrayLiteral:
		for _, el := range ex.Elements {
			if exprHasEvalCall(el) {
				return true
			}
		}
		return false
	case *ast.ObjectLiteral:
		for _, v := range ex.Values {
			if exprHasEvalCall(v) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// ---- top-level / function body compilation ----

func (cg *CodeGenerator) compileProgram(program *ast.Program) *vm.CodeBlock {
	return cg.compileBody(nil, program.Statements)
}

// compileFunctionBody compiles one nested function's AST subtree into its
// own CodeBlock: P is fixed by the parameter list, L by the
// hoisting pass, in that order, since parameter register indices are offset
// by L.
func (cg *CodeGenerator) compileFunctionBody(params []*ast.Identifier, stmts []ast.Statement) *vm.CodeBlock {
	return cg.compileBody(params, stmts)
}

func (cg *CodeGenerator) compileBody(params []*ast.Identifier, stmts []ast.Statement) *vm.CodeBlock {
	p := len(params)
	paramNames := make(map[string]bool, p)
	for _, ident := range params {
		paramNames[ident.Value] = true
	}

	locals, funcDecls := hoistLocals(stmts, paramNames)
	cg.numParams = p

	if cg.isProgram {
		// Global code has no register-resident named variables: its `var`
		// and function declarations live on the global object, resolved
		// dynamically, so they persist across separate Execute calls (a
		// REPL, repeated eval) and are visible to every closure without an
		// activation. Only function code gets the negative register bands.
		cg.numLocals = 0
	} else {
		l := len(locals)
		cg.numLocals = l
		for i, ident := range params {
			cg.localIndex[ident.Value] = int32(-(p + l) + i)
		}
		for i, name := range locals {
			cg.localIndex[name] = int32(-l + i)
		}
	}

	cg.usesEval = anyEvalCall(stmts)
	cg.needsClosure = anyFunctionLiteral(stmts)

	if cg.isProgram {
		// Never Deref'd, so its index is never reclaimed: this temporary is
		// effectively permanent for the program's duration.
		cg.resultReg = cg.newTemporary()
		cg.declareGlobals(locals)
	}

	cg.log.Debug().Int("params", p).Int("locals", cg.numLocals).Msg("compiling code block")

	for _, fd := range funcDecls {
		cg.compileFunctionDeclInit(fd)
	}
	for _, s := range stmts {
		cg.compileStatement(s)
	}

	if cg.isProgram {
		cg.emit(vm.OpEnd, cg.resultReg.Index)
	} else {
		u := cg.emitLoad(vm.Undefined(), nil)
		cg.emit(vm.OpRet, u.Index)
		u.Deref()
	}

	symbolNames := make(map[string]int, len(cg.localIndex))
	for name, idx := range cg.localIndex {
		symbolNames[name] = int(idx)
	}

	return &vm.CodeBlock{
		Name:           cg.name,
		Instructions:   cg.code,
		Identifiers:    cg.identifiers,
		Values:         cg.values,
		Functions:      cg.functions,
		NumParameters:  p,
		NumLocals:      cg.numLocals,
		NumTemporaries: int(cg.maxTemp),
		SymbolNames:    symbolNames,
		UsesEval:       cg.usesEval,
		NeedsClosure:   cg.needsClosure,
		// A frame whose names can be captured (closure), observed (eval), or
		// shadow-resolved (with) must put them on the scope chain. Global
		// code never needs one: the global object is its variable object.
		NeedsActivation: !cg.isProgram && (cg.usesEval || cg.needsClosure || cg.usesWith),
	}
}

// declareGlobals emits the global-code prologue: every hoisted `var` springs
// into existence as a global-object property holding undefined, so a read
// before the first assignment sees undefined rather than a ReferenceError.
func (cg *CodeGenerator) declareGlobals(names []string) {
	if len(names) == 0 {
		return
	}
	u := cg.emitLoad(vm.Undefined(), nil)
	for _, name := range names {
		base := cg.emitResolveBase(name)
		cg.emit(vm.OpObjectPut, base.Index, cg.addIdentifier(name), u.Index)
		base.Deref()
	}
	u.Deref()
}

// functionBody wraps lit as an uncompiled vm.FunctionBody: nothing is
// lowered here. The Compile hook runs a fresh CodeGenerator over the
// literal's subtree when the Machine first enters the function; the literal
// node itself is the cache key, so every closure minted over the same
// declaration shares one compiled block per Machine.
func (cg *CodeGenerator) functionBody(lit *ast.FunctionLiteral) *vm.FunctionBody {
	if fb, ok := cg.funcBodies[lit]; ok {
		return fb
	}
	name := lit.Name
	if name == "" {
		name = "<anonymous>"
	}
	fb := &vm.FunctionBody{
		Name: name,
		Key:  lit,
		Compile: func() (cb *vm.CodeBlock, err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = fmt.Errorf("codegen: %v", rec)
				}
			}()
			child := newCodeGenerator(name)
			return child.compileFunctionBody(lit.Parameters, lit.Body.Statements), nil
		},
	}
	cg.funcBodies[lit] = fb
	return fb
}

func (cg *CodeGenerator) compileFunctionDeclInit(fd *ast.FunctionDeclaration) {
	lit := fd.Function
	idx := cg.addFunctionBody(lit)
	tmp := cg.newTemporary()
	cg.emit(vm.OpNewFunc, tmp.Index, idx)
	if localIdx, ok := cg.localIndex[lit.Name]; ok {
		cg.emit(vm.OpMov, localIdx, tmp.Index)
	} else {
		cg.assignToIdentifier(lit.Name, tmp)
	}
	tmp.Deref()
}

// ---- statements ----

func (cg *CodeGenerator) compileStatement(s ast.Statement) {
	switch st := s.(type) {
	case *ast.ExpressionStatement:
		cg.compileExpressionStatement(st)
	case *ast.VarStatement:
		cg.compileVar(st)
	case *ast.BlockStatement:
		for _, inner := range st.Statements {
			cg.compileStatement(inner)
		}
	case *ast.IfStatement:
		cg.compileIf(st)
	case *ast.ForStatement:
		cg.compileFor(st, "")
	case *ast.WhileStatement:
		cg.compileWhile(st, "")
	case *ast.ForInStatement:
		cg.compileForIn(st, "")
	case *ast.ReturnStatement:
		cg.compileReturn(st)
	case *ast.BreakStatement:
		cg.compileBreak(st)
	case *ast.ContinueStatement:
		cg.compileContinue(st)
	case *ast.WithStatement:
		cg.compileWith(st)
	case *ast.LabeledStatement:
		cg.compileLabeled(st)
	case *ast.FunctionDeclaration:
		// already instantiated by the hoisting pre-pass.
	}
}

func (cg *CodeGenerator) compileExpressionStatement(st *ast.ExpressionStatement) {
	if st.Expression == nil {
		return
	}
	v := cg.compileExpression(st.Expression)
	if cg.isProgram {
		cg.emit(vm.OpMov, cg.resultReg.Index, v.Index)
	}
	v.Deref()
}

func (cg *CodeGenerator) compileVar(st *ast.VarStatement) {
	if st.Value == nil {
		return
	}
	v := cg.compileExpression(st.Value)
	if idx, ok := cg.localIndex[st.Name.Value]; ok && cg.scopeDepth == 0 {
		cg.emit(vm.OpMov, idx, v.Index)
	} else {
		cg.assignToIdentifier(st.Name.Value, v)
	}
	v.Deref()
}

func (cg *CodeGenerator) compileIf(st *ast.IfStatement) {
	cond := cg.compileExpression(st.Condition)
	elseLabel := cg.newLabel()
	cg.emit(vm.OpJfalse, cond.Index)
	elseLabel.emitOffset()
	cond.Deref()

	cg.compileStatement(st.Consequence)

	if st.Alternative != nil {
		endLabel := cg.newLabel()
		cg.emit(vm.OpJmp)
		endLabel.emitOffset()
		elseLabel.Bind()
		cg.compileStatement(st.Alternative)
		endLabel.Bind()
	} else {
		elseLabel.Bind()
	}
}

func (cg *CodeGenerator) compileFor(st *ast.ForStatement, label string) {
	if st.Init != nil {
		cg.compileStatement(st.Init)
	}

	condLabel := cg.newLabel()
	endLabel := cg.newLabel()
	continueLabel := cg.newLabel()

	ctx := &loopContext{label: label, breakLabel: endLabel, continueLabel: continueLabel, scopeDepthAtEntry: cg.scopeDepth}
	cg.loopStack = append(cg.loopStack, ctx)

	condLabel.Bind()
	if st.Condition != nil {
		cv := cg.compileExpression(st.Condition)
		cg.emit(vm.OpJfalse, cv.Index)
		endLabel.emitOffset()
		cv.Deref()
	}

	cg.compileStatement(st.Body)

	continueLabel.Bind()
	if st.Post != nil {
		cg.compileStatement(st.Post)
	}
	cg.emit(vm.OpJmp)
	condLabel.emitOffset()
	endLabel.Bind()

	cg.loopStack = cg.loopStack[:len(cg.loopStack)-1]
}

func (cg *CodeGenerator) compileWhile(st *ast.WhileStatement, label string) {
	condLabel := cg.newLabel()
	endLabel := cg.newLabel()

	ctx := &loopContext{label: label, breakLabel: endLabel, continueLabel: condLabel, scopeDepthAtEntry: cg.scopeDepth}
	cg.loopStack = append(cg.loopStack, ctx)

	condLabel.Bind()
	cv := cg.compileExpression(st.Condition)
	cg.emit(vm.OpJfalse, cv.Index)
	endLabel.emitOffset()
	cv.Deref()

	cg.compileStatement(st.Body)
	cg.emit(vm.OpJmp)
	condLabel.emitOffset()
	endLabel.Bind()

	cg.loopStack = cg.loopStack[:len(cg.loopStack)-1]
}

func (cg *CodeGenerator) compileForIn(st *ast.ForInStatement, label string) {
	obj := cg.compileExpression(st.Object)
	iter := cg.newTemporary()
	cg.emit(vm.OpGetPnames, iter.Index, obj.Index)
	obj.Deref()

	startLabel := cg.newLabel()
	endLabel := cg.newLabel()

	ctx := &loopContext{label: label, breakLabel: endLabel, continueLabel: startLabel, scopeDepthAtEntry: cg.scopeDepth}
	cg.loopStack = append(cg.loopStack, ctx)

	startLabel.Bind()
	name := cg.newTemporary()
	cg.emit(vm.OpNextPname, name.Index, iter.Index)
	endLabel.emitOffset()

	cg.assignToIdentifier(st.Variable.Value, name)
	name.Deref()

	cg.compileStatement(st.Body)
	cg.emit(vm.OpJmp)
	startLabel.emitOffset()
	endLabel.Bind()

	iter.Deref()
	cg.loopStack = cg.loopStack[:len(cg.loopStack)-1]
}

func (cg *CodeGenerator) compileReturn(st *ast.ReturnStatement) {
	var r *RegisterID
	if st.ReturnValue != nil {
		r = cg.compileExpression(st.ReturnValue)
	} else {
		r = cg.emitLoad(vm.Undefined(), nil)
	}
	cg.emit(vm.OpRet, r.Index)
	r.Deref()
}

func (cg *CodeGenerator) findLoopContext(label string) *loopContext {
	if label == "" {
		if len(cg.loopStack) == 0 {
			return nil
		}
		return cg.loopStack[len(cg.loopStack)-1]
	}
	for i := len(cg.loopStack) - 1; i >= 0; i-- {
		if cg.loopStack[i].label == label {
			return cg.loopStack[i]
		}
	}
	return nil
}

// emitScopedJump picks between op_jmp and op_jmp_scopes:
// a break/continue that doesn't cross any `with` scope is a plain jmp; one
// that does pops the difference first, in the same instruction.
func (cg *CodeGenerator) emitScopedJump(targetDepth int, l *LabelID) {
	if delta := cg.scopeDepth - targetDepth; delta > 0 {
		cg.emit(vm.OpJmpScopes, int32(delta))
	} else {
		cg.emit(vm.OpJmp)
	}
	l.emitOffset()
}

func (cg *CodeGenerator) compileBreak(st *ast.BreakStatement) {
	ctx := cg.findLoopContext(st.Label)
	if ctx == nil {
		return
	}
	cg.emitScopedJump(ctx.scopeDepthAtEntry, ctx.breakLabel)
}

func (cg *CodeGenerator) compileContinue(st *ast.ContinueStatement) {
	ctx := cg.findLoopContext(st.Label)
	if ctx == nil || ctx.continueLabel == nil {
		return
	}
	cg.emitScopedJump(ctx.scopeDepthAtEntry, ctx.continueLabel)
}

func (cg *CodeGenerator) compileWith(st *ast.WithStatement) {
	obj := cg.compileExpression(st.Object)
	// push_scope forces this frame's names onto the scope chain: a with
	// block's dynamic resolves must be able to find them.
	cg.usesWith = true
	cg.emit(vm.OpPushScope, obj.Index)
	obj.Deref()
	cg.scopeDepth++

	cg.compileStatement(st.Body)

	cg.emit(vm.OpPopScope)
	cg.scopeDepth--
}

// compileLabeled dispatches a labelled loop to the loop compiler that knows
// about the label directly (so continue can target it), or — for a
// labelled non-loop statement — pushes a break-only loopContext around it.
func (cg *CodeGenerator) compileLabeled(st *ast.LabeledStatement) {
	switch body := st.Body.(type) {
	case *ast.ForStatement:
		cg.compileFor(body, st.Label)
	case *ast.WhileStatement:
		cg.compileWhile(body, st.Label)
	case *ast.ForInStatement:
		cg.compileForIn(body, st.Label)
	default:
		breakLabel := cg.newLabel()
		ctx := &loopContext{label: st.Label, breakLabel: breakLabel, scopeDepthAtEntry: cg.scopeDepth}
		cg.loopStack = append(cg.loopStack, ctx)
		cg.compileStatement(st.Body)
		cg.loopStack = cg.loopStack[:len(cg.loopStack)-1]
		breakLabel.Bind()
	}
}

// ---- expressions ----

func (cg *CodeGenerator) compileExpression(e ast.Expression) *RegisterID {
	switch ex := e.(type) {
	case *ast.Identifier:
		return cg.compileIdentifier(ex)
	case *ast.NumberLiteral:
		return cg.emitLoad(vm.Number(ex.Value), ex)
	case *ast.StringLiteral:
		return cg.emitLoad(vm.String(ex.Value), ex)
	case *ast.BooleanLiteral:
		return cg.emitLoad(vm.Bool(ex.Value), ex)
	case *ast.NullLiteral:
		return cg.emitLoad(vm.Null(), ex)
	case *ast.UndefinedLiteral:
		return cg.emitLoad(vm.Undefined(), ex)
	case *ast.ThisExpression:
		dst := cg.newTemporary()
		cg.emit(vm.OpLoadThis, dst.Index)
		return dst
	case *ast.ArrayLiteral:
		return cg.compileArrayLiteral(ex)
	case *ast.ObjectLiteral:
		return cg.compileObjectLiteral(ex)
	case *ast.FunctionLiteral:
		return cg.compileFunctionLiteral(ex)
	case *ast.PrefixExpression:
		return cg.compilePrefix(ex)
	case *ast.UpdateExpression:
		return cg.compileUpdate(ex)
	case *ast.InfixExpression:
		return cg.compileInfix(ex)
	case *ast.AssignmentExpression:
		return cg.compileAssignment(ex)
	case *ast.CallExpression:
		return cg.compileCall(ex)
	case *ast.NewExpression:
		return cg.compileNew(ex)
	case *ast.MemberExpression:
		return cg.compileMember(ex)
	default:
		return cg.emitLoad(vm.Undefined(), nil)
	}
}

func (cg *CodeGenerator) compileIdentifier(id *ast.Identifier) *RegisterID {
	if r := cg.registerForLocal(id.Value); r != nil {
		return r
	}
	return cg.emitResolve(id.Value)
}

func (cg *CodeGenerator) compileArrayLiteral(a *ast.ArrayLiteral) *RegisterID {
	dst := cg.newTemporary()
	cg.emit(vm.OpNewArray, dst.Index)
	for i, el := range a.Elements {
		v := cg.compileExpression(el)
		cg.emit(vm.OpPutPropIndex, dst.Index, int32(i), v.Index)
		v.Deref()
	}
	return dst
}

func (cg *CodeGenerator) compileObjectLiteral(o *ast.ObjectLiteral) *RegisterID {
	dst := cg.newTemporary()
	cg.emit(vm.OpNewObject, dst.Index)
	for i := range o.Keys {
		var name string
		switch k := o.Keys[i].(type) {
		case *ast.Identifier:
			name = k.Value
		case *ast.StringLiteral:
			name = k.Value
		}
		v := cg.compileExpression(o.Values[i])
		cg.emitObjectPut(dst, name, v)
		v.Deref()
	}
	return dst
}

func (cg *CodeGenerator) compileFunctionLiteral(lit *ast.FunctionLiteral) *RegisterID {
	idx := cg.addFunctionBody(lit)
	dst := cg.newTemporary()
	cg.emit(vm.OpNewFunc, dst.Index, idx)
	return dst
}

func (cg *CodeGenerator) compileUnary(op vm.Opcode, operand ast.Expression) *RegisterID {
	v := cg.compileExpression(operand)
	v.Deref()
	dst := cg.newTemporary()
	cg.emit(op, dst.Index, v.Index)
	return dst
}

func (cg *CodeGenerator) compilePrefix(p *ast.PrefixExpression) *RegisterID {
	switch p.Operator {
	case "-":
		return cg.compileUnary(vm.OpNegate, p.Right)
	case "!":
		return cg.compileUnary(vm.OpNot, p.Right)
	case "~":
		return cg.compileUnary(vm.OpBitNot, p.Right)
	case "+":
		return cg.compileUnary(vm.OpToJSNumber, p.Right)
	case "typeof":
		return cg.compileTypeof(p.Right)
	case "delete":
		return cg.compileDelete(p.Right)
	default:
		return cg.emitLoad(vm.Undefined(), nil)
	}
}

// compileTypeof lowers the one place an undeclared name is not an error:
// `typeof x` on a bare identifier goes through resolve_base + object_get,
// whose miss path yields undefined, rather than resolve, whose miss path
// signals a ReferenceError.
func (cg *CodeGenerator) compileTypeof(operand ast.Expression) *RegisterID {
	if id, ok := operand.(*ast.Identifier); ok {
		if reg := cg.registerForLocal(id.Value); reg != nil {
			reg.Deref()
			dst := cg.newTemporary()
			cg.emit(vm.OpTypeof, dst.Index, reg.Index)
			return dst
		}
		base := cg.emitResolveBase(id.Value)
		v := cg.emitObjectGet(base, id.Value)
		base.Deref()
		v.Deref()
		dst := cg.newTemporary()
		cg.emit(vm.OpTypeof, dst.Index, v.Index)
		return dst
	}
	return cg.compileUnary(vm.OpTypeof, operand)
}

func (cg *CodeGenerator) compileDelete(e ast.Expression) *RegisterID {
	switch t := e.(type) {
	case *ast.MemberExpression:
		base := cg.compileExpression(t.Object)
		key := cg.memberKey(t)
		dst := cg.newTemporary()
		cg.emit(vm.OpDelete, dst.Index, base.Index, key.Index)
		base.Deref()
		key.Deref()
		return dst
	case *ast.Identifier:
		base := cg.emitResolveBase(t.Value)
		key := cg.emitLoad(vm.String(t.Value), nil)
		dst := cg.newTemporary()
		cg.emit(vm.OpDelete, dst.Index, base.Index, key.Index)
		base.Deref()
		key.Deref()
		return dst
	default:
		return cg.emitLoad(vm.Bool(true), nil)
	}
}

// memberKey evaluates a MemberExpression's property into a register holding
// its string key, whether written `.name` or `[expr]`.
func (cg *CodeGenerator) memberKey(m *ast.MemberExpression) *RegisterID {
	if m.Computed {
		return cg.compileExpression(m.Property)
	}
	name := m.Property.(*ast.Identifier).Value
	return cg.emitLoad(vm.String(name), nil)
}

func updateDelta(op string) float64 {
	if op == "++" {
		return 1
	}
	return -1
}

func (cg *CodeGenerator) compileUpdate(u *ast.UpdateExpression) *RegisterID {
	switch t := u.Argument.(type) {
	case *ast.Identifier:
		if reg := cg.registerForLocal(t.Value); reg != nil {
			if u.Prefix {
				if u.Operator == "++" {
					cg.emit(vm.OpPreInc, reg.Index)
				} else {
					cg.emit(vm.OpPreDec, reg.Index)
				}
				return reg
			}
			dst := cg.newTemporary()
			if u.Operator == "++" {
				cg.emit(vm.OpPostInc, dst.Index, reg.Index)
			} else {
				cg.emit(vm.OpPostDec, dst.Index, reg.Index)
			}
			return dst
		}
		old := cg.emitResolve(t.Value)
		delta := cg.emitLoad(vm.Number(updateDelta(u.Operator)), nil)
		sum := cg.newTemporary()
		cg.emit(vm.OpAdd, sum.Index, old.Index, delta.Index)
		cg.assignToIdentifier(t.Value, sum)
		delta.Deref()
		if u.Prefix {
			old.Deref()
			return sum
		}
		sum.Deref()
		return old
	case *ast.MemberExpression:
		base := cg.compileExpression(t.Object)
		key := cg.memberKey(t)
		old := cg.newTemporary()
		cg.emit(vm.OpGetPropVal, old.Index, base.Index, key.Index)
		delta := cg.emitLoad(vm.Number(updateDelta(u.Operator)), nil)
		sum := cg.newTemporary()
		cg.emit(vm.OpAdd, sum.Index, old.Index, delta.Index)
		cg.emit(vm.OpPutPropVal, base.Index, key.Index, sum.Index)
		base.Deref()
		key.Deref()
		delta.Deref()
		if u.Prefix {
			old.Deref()
			return sum
		}
		sum.Deref()
		return old
	default:
		return cg.compileExpression(u.Argument)
	}
}

var infixOpcodes = map[string]vm.Opcode{
	"+":          vm.OpAdd,
	"-":          vm.OpSub,
	"*":          vm.OpMult,
	"/":          vm.OpDiv,
	"%":          vm.OpMod,
	"<<":         vm.OpLshift,
	">>":         vm.OpRshift,
	">>>":        vm.OpUrshift,
	"&":          vm.OpBitAnd,
	"|":          vm.OpBitOr,
	"^":          vm.OpBitXor,
	"<":          vm.OpLess,
	"<=":         vm.OpLesseq,
	"==":         vm.OpEqual,
	"!=":         vm.OpNequal,
	"===":        vm.OpStrictEqual,
	"!==":        vm.OpNstrictEqual,
	"instanceof": vm.OpInstanceOf,
}

func (cg *CodeGenerator) compileBinary(op vm.Opcode, leftExpr, rightExpr ast.Expression) *RegisterID {
	l := cg.compileExpression(leftExpr)
	r := cg.compileExpression(rightExpr)
	// Releasing the operands before allocating dst lets dst reuse one of
	// their indices; the machine reads both sources before writing the
	// destination, so the aliasing is safe.
	l.Deref()
	r.Deref()
	dst := cg.newTemporary()
	cg.emit(op, dst.Index, l.Index, r.Index)
	return dst
}

// compileBinarySwapped evaluates leftExpr then rightExpr, in source order,
// but emits op with the operands swapped — for `>`/`>=`, which this VM has
// no dedicated opcode for. Evaluating in
// source order matters whenever an operand has a side effect; only the
// comparison itself is flipped (a>b <=> b<a).
func (cg *CodeGenerator) compileBinarySwapped(op vm.Opcode, leftExpr, rightExpr ast.Expression) *RegisterID {
	l := cg.compileExpression(leftExpr)
	r := cg.compileExpression(rightExpr)
	l.Deref()
	r.Deref()
	dst := cg.newTemporary()
	cg.emit(op, dst.Index, r.Index, l.Index)
	return dst
}

// compileLogicalAnd/Or implement short-circuit evaluation:
// the right operand is compiled only when the left didn't already decide
// the result.
func (cg *CodeGenerator) compileLogicalAnd(left, right ast.Expression) *RegisterID {
	dst := cg.newTemporary()
	lv := cg.compileExpression(left)
	cg.emit(vm.OpMov, dst.Index, lv.Index)
	lv.Deref()
	skip := cg.newLabel()
	cg.emit(vm.OpJfalse, dst.Index)
	skip.emitOffset()
	rv := cg.compileExpression(right)
	cg.emit(vm.OpMov, dst.Index, rv.Index)
	rv.Deref()
	skip.Bind()
	return dst
}

func (cg *CodeGenerator) compileLogicalOr(left, right ast.Expression) *RegisterID {
	dst := cg.newTemporary()
	lv := cg.compileExpression(left)
	cg.emit(vm.OpMov, dst.Index, lv.Index)
	lv.Deref()
	skip := cg.newLabel()
	cg.emit(vm.OpJtrue, dst.Index)
	skip.emitOffset()
	rv := cg.compileExpression(right)
	cg.emit(vm.OpMov, dst.Index, rv.Index)
	rv.Deref()
	skip.Bind()
	return dst
}

func (cg *CodeGenerator) compileIn(left, right ast.Expression) *RegisterID {
	key := cg.compileExpression(left)
	obj := cg.compileExpression(right)
	dst := cg.newTemporary()
	cg.emit(vm.OpHasProperty, dst.Index, obj.Index, key.Index)
	key.Deref()
	obj.Deref()
	return dst
}

func (cg *CodeGenerator) compileInfix(ie *ast.InfixExpression) *RegisterID {
	switch ie.Operator {
	case "&&":
		return cg.compileLogicalAnd(ie.Left, ie.Right)
	case "||":
		return cg.compileLogicalOr(ie.Left, ie.Right)
	case "in":
		return cg.compileIn(ie.Left, ie.Right)
	case ">":
		return cg.compileBinarySwapped(vm.OpLess, ie.Left, ie.Right)
	case ">=":
		return cg.compileBinarySwapped(vm.OpLesseq, ie.Left, ie.Right)
	}
	op, ok := infixOpcodes[ie.Operator]
	if !ok {
		return cg.emitLoad(vm.Undefined(), nil)
	}
	return cg.compileBinary(op, ie.Left, ie.Right)
}

func (cg *CodeGenerator) compileAssignment(a *ast.AssignmentExpression) *RegisterID {
	switch t := a.Target.(type) {
	case *ast.Identifier:
		v := cg.compileExpression(a.Value)
		cg.assignToIdentifier(t.Value, v)
		return v
	case *ast.MemberExpression:
		base := cg.compileExpression(t.Object)
		v := cg.compileExpression(a.Value)
		if !t.Computed {
			cg.emitObjectPut(base, t.Property.(*ast.Identifier).Value, v)
		} else if lit, ok := t.Property.(*ast.NumberLiteral); ok && lit.Value >= 0 && lit.Value == math.Trunc(lit.Value) {
			cg.emit(vm.OpPutPropIndex, base.Index, int32(lit.Value), v.Index)
		} else {
			key := cg.compileExpression(t.Property)
			cg.emit(vm.OpPutPropVal, base.Index, key.Index, v.Index)
			key.Deref()
		}
		base.Deref()
		return v
	default:
		return cg.emitLoad(vm.Undefined(), nil)
	}
}

func (cg *CodeGenerator) compileMember(m *ast.MemberExpression) *RegisterID {
	base := cg.compileExpression(m.Object)
	var dst *RegisterID
	if !m.Computed {
		dst = cg.emitObjectGet(base, m.Property.(*ast.Identifier).Value)
	} else {
		key := cg.compileExpression(m.Property)
		dst = cg.newTemporary()
		cg.emit(vm.OpGetPropVal, dst.Index, base.Index, key.Index)
		key.Deref()
	}
	base.Deref()
	return dst
}

// compileCall lowers f(args): the this-slot and the argument slots are
// allocated as one contiguous batch at the top of the temporaries band, held
// across argument emission, so the callee's parameter band can alias them at
// dispatch time — the zero-copy frame overlap.
func (cg *CodeGenerator) compileCall(c *ast.CallExpression) *RegisterID {
	dst := cg.newTemporary()

	var funcReg, thisReg *RegisterID
	thisRel := int32(vm.MissingThisMarker)

	if me, ok := c.Function.(*ast.MemberExpression); ok {
		base := cg.compileExpression(me.Object)
		thisReg = base
		thisRel = base.Index
		if !me.Computed {
			funcReg = cg.emitObjectGet(base, me.Property.(*ast.Identifier).Value)
		} else {
			key := cg.compileExpression(me.Property)
			funcReg = cg.newTemporary()
			cg.emit(vm.OpGetPropVal, funcReg.Index, base.Index, key.Index)
			key.Deref()
		}
	} else {
		funcReg = cg.compileExpression(c.Function)
	}

	batch := cg.newTemporaryBatch(1 + len(c.Arguments))
	argv := batch[0]
	argRegs := batch[1:]
	for i, a := range c.Arguments {
		v := cg.compileExpression(a)
		cg.emit(vm.OpMov, argRegs[i].Index, v.Index)
		v.Deref()
	}

	cg.emit(vm.OpCall, dst.Index, funcReg.Index, thisRel, argv.Index, int32(len(c.Arguments)))

	funcReg.Deref()
	if thisReg != nil {
		thisReg.Deref()
	}
	argv.Deref()
	for _, r := range argRegs {
		r.Deref()
	}
	return dst
}

func (cg *CodeGenerator) compileNew(n *ast.NewExpression) *RegisterID {
	dst := cg.newTemporary()
	funcReg := cg.compileExpression(n.Callee)

	argRegs := cg.newTemporaryBatch(len(n.Arguments))
	for i, a := range n.Arguments {
		v := cg.compileExpression(a)
		cg.emit(vm.OpMov, argRegs[i].Index, v.Index)
		v.Deref()
	}

	argv := dst.Index
	if len(argRegs) > 0 {
		argv = argRegs[0].Index
	}
	cg.emit(vm.OpConstruct, dst.Index, funcReg.Index, argv, int32(len(n.Arguments)))

	funcReg.Deref()
	for _, r := range argRegs {
		r.Deref()
	}
	return dst
}
