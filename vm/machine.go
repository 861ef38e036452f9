package vm

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"regvm/config"
)

// Debugger is the optional instrumentation hook: given one, the Machine
// reports every instruction before executing it. internal/disasm implements
// this.
type Debugger interface {
	OnInstruction(m *Machine, line DisasmLine)
}

// frameInfo is the return-info block for one suspended caller: everything a
// `ret` needs to resume it. Kept as a Go struct on its own stack rather than
// packed into reserved register slots; the GC already manages ScopeChain and
// Activation lifetime, so placement-constructing them into registers would
// buy nothing.
type frameInfo struct {
	codeBlock  *CodeBlock
	pc         int
	scopeChain *ScopeChain
	thisVal    Value
	r          int
	dstAbs     int
	callerEnd  int         // register-file length to restore on return (caller frame's full extent)
	activation *Activation // non-nil if this frame's CodeBlock needsActivation

	// exitOnReturn marks a frame pushed by CallFunction: the caller state it
	// restores belongs to code suspended outside the dispatch loop, so `ret`
	// must surface the result instead of resuming dispatch.
	exitOnReturn bool
}

// Machine is the execution engine: a single contiguous register file
// shared by every frame on the call stack, one scope chain, and a threaded
// dispatch loop over one CodeBlock's instruction stream at a time.
type Machine struct {
	cfg   *config.Config
	log   zerolog.Logger
	cache *CodeBlockCache

	global   *Object
	debugger Debugger

	// evalCompiler, when set, backs the `eval` builtin; without it eval
	// reports a TypeError, since lexing/parsing lives outside this package.
	evalCompiler func(source string) (*CodeBlock, error)

	regs   []Value
	frames []frameInfo

	// Current frame state, mutated in place across dispatch iterations:
	// the executing block, its instruction pointer, the register base
	// pointer, the scope chain, and the receiver.
	cb      *CodeBlock
	pc      int
	r       int
	scope   *ScopeChain
	thisVal Value
}

// NewMachine builds a Machine against cfg, with a fresh global object as the
// outermost scope.
func NewMachine(cfg *config.Config) *Machine {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	m := &Machine{
		cfg:    cfg,
		log:    log.With().Str("component", "vm").Logger(),
		cache:  NewCodeBlockCache(cfg.CodeBlockCacheSize),
		global: NewObject(nil),
		regs:   make([]Value, 0, cfg.InitialRegisterCapacity),
	}
	m.global.Put("eval", NewNativeFunctionValue("eval", func(vm *Machine, this Value, args []Value) (Value, error) {
		if len(args) == 0 {
			return Undefined(), nil
		}
		if args[0].Type != TypeString {
			return args[0], nil
		}
		return vm.runEval(args[0].ToString())
	}))
	return m
}

// Global returns the outermost scope object — the one resolve_base falls
// back to on a full miss.
func (m *Machine) Global() *Object { return m.global }

// SetDebugger installs or clears the instrumentation hook.
func (m *Machine) SetDebugger(d Debugger) { m.debugger = d }

// SetEvalCompiler wires the external lexer/parser/codegen pipeline so the
// `eval` builtin can compile and run a string at runtime.
func (m *Machine) SetEvalCompiler(f func(source string) (*CodeBlock, error)) {
	m.evalCompiler = f
}

func (m *Machine) Cache() *CodeBlockCache { return m.cache }

// Mark is the collector entry point: a collector would walk, as roots, the
// live register file, the current scope chain, detached activations, and the
// global object. Go's own garbage collector already covers every one of
// those through ordinary reachability the moment a Value's heap payload is
// pinned into heapPool (see value.go), so there is no separate collector
// here for Mark to drive. It is kept as an exported no-op so an embedder
// wiring in an external collector has the documented call site to hook.
func (m *Machine) Mark() {}

// Execute is the top-level embedding entry point. It runs cb synchronously to
// completion (its `end` instruction) or until an unhandled ScriptError
// propagates out.
func (m *Machine) Execute(cb *CodeBlock, scope *ScopeChain) (result Value, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &InternalError{Message: fmt.Sprintf("%v", rec)}
		}
	}()

	base := len(m.regs)
	m.regs = append(m.regs, make([]Value, cb.NumRegisters())...)
	m.cb, m.pc, m.scope, m.thisVal = cb, 0, scope, Undefined()
	m.r = base + cb.NumLocals

	m.log.Debug().Str("block", cb.Name).Msg("executing code block")
	result, err = m.loop(len(m.frames))
	m.regs = m.regs[:base]
	return result, err
}

// CallFunction invokes a declared function from outside the instruction
// stream — the call path native bridges use. It re-enters the same dispatch
// loop the running program uses: single-threaded reentry, growing the same
// register file linearly.
func (m *Machine) CallFunction(fn *FunctionObject, this Value, args []Value) (Value, error) {
	savedCB, savedPC, savedR, savedScope, savedThis := m.cb, m.pc, m.r, m.scope, m.thisVal
	targetDepth := len(m.frames)

	dstAbs := len(m.regs)
	m.regs = append(m.regs, Undefined())
	argvAbs := len(m.regs)
	m.regs = append(m.regs, this)
	m.regs = append(m.regs, args...)

	if err := m.enterFunctionFrame(fn, argvAbs, len(args), dstAbs,
		savedCB, savedPC, savedR, savedScope, savedThis, argvAbs); err != nil {
		m.regs = m.regs[:dstAbs]
		return Undefined(), err
	}
	m.frames[len(m.frames)-1].exitOnReturn = true

	result, err := m.loop(targetDepth)
	m.regs = m.regs[:dstAbs]
	return result, err
}

// runEval backs the `eval` builtin: compile source through the wired
// front-end, then run the resulting block in the CALLER's scope chain —
// eval's names resolve dynamically through whatever scopes are live at the
// call site. The eval block gets its own
// register window at the top of the file but no frameInfo: its op_end
// terminator returns straight out of the nested loop.
func (m *Machine) runEval(source string) (Value, error) {
	if m.evalCompiler == nil {
		return Undefined(), newTypeError("eval is not supported by this embedding", 0)
	}
	cb, err := m.evalCompiler(source)
	if err != nil {
		return Undefined(), err
	}

	savedCB, savedPC, savedR, savedScope, savedThis := m.cb, m.pc, m.r, m.scope, m.thisVal
	base := len(m.regs)
	m.regs = append(m.regs, make([]Value, cb.NumRegisters())...)
	m.cb, m.pc = cb, 0
	m.r = base + cb.NumLocals

	result, err := m.loop(len(m.frames))

	m.cb, m.pc, m.r, m.scope, m.thisVal = savedCB, savedPC, savedR, savedScope, savedThis
	m.regs = m.regs[:base]
	return result, err
}

// loop runs the dispatch core and, on an error propagating out of it,
// unwinds the call stack back to targetDepth frame-by-frame, restoring the
// register base, scope chain, instruction pointer, and code block from each
// return-info block in turn, detaching activations as their frames die.
func (m *Machine) loop(targetDepth int) (Value, error) {
	v, err := m.dispatch()
	if err != nil {
		m.unwind(targetDepth)
	}
	return v, err
}

func (m *Machine) unwind(targetDepth int) {
	for len(m.frames) > targetDepth {
		fi := m.frames[len(m.frames)-1]
		m.frames = m.frames[:len(m.frames)-1]
		if fi.activation != nil {
			fi.activation.Detach()
		}
		m.regs = m.regs[:fi.callerEnd]
		m.cb, m.pc, m.scope, m.r, m.thisVal = fi.codeBlock, fi.pc, fi.scopeChain, fi.r, fi.thisVal
	}
}

// dispatch is the threaded dispatch core. It runs until `end` fires (the
// terminator of program-level code) or until a `ret` pops a frame marked
// exitOnReturn, handing control back to the CallFunction that pushed it.
func (m *Machine) dispatch() (Value, error) {
	for {
		if m.debugger != nil {
			m.debugger.OnInstruction(m, m.cb.Instructions.DecodeAt(m.pc))
		}

		op := Opcode(m.cb.Instructions[m.pc])
		m.pc++

		switch op {
		case OpLoad:
			dst, k := m.op2()
			m.setReg(dst, m.cb.Values[k])
		case OpMov:
			dst, src := m.op2()
			m.setReg(dst, m.reg(src))
		case OpEqual:
			dst, l, r := m.op3()
			m.setReg(dst, Bool(m.reg(l).AbstractEquals(m.reg(r))))
		case OpNequal:
			dst, l, r := m.op3()
			m.setReg(dst, Bool(!m.reg(l).AbstractEquals(m.reg(r))))
		case OpStrictEqual:
			dst, l, r := m.op3()
			m.setReg(dst, Bool(m.reg(l).StrictEquals(m.reg(r))))
		case OpNstrictEqual:
			dst, l, r := m.op3()
			m.setReg(dst, Bool(!m.reg(l).StrictEquals(m.reg(r))))
		case OpLess:
			dst, l, r := m.op3()
			v, err := m.relational(l, r)
			if err != nil {
				return Undefined(), err
			}
			m.setReg(dst, Bool(v < 0))
		case OpLesseq:
			dst, l, r := m.op3()
			v, err := m.relational(l, r)
			if err != nil {
				return Undefined(), err
			}
			m.setReg(dst, Bool(v <= 0))
		case OpAdd:
			dst, l, r := m.op3()
			m.setReg(dst, m.add(m.reg(l), m.reg(r)))
		case OpSub:
			dst, l, r := m.op3()
			m.setReg(dst, Number(m.reg(l).ToNumber()-m.reg(r).ToNumber()))
		case OpMult:
			dst, l, r := m.op3()
			m.setReg(dst, Number(m.reg(l).ToNumber()*m.reg(r).ToNumber()))
		case OpDiv:
			dst, l, r := m.op3()
			m.setReg(dst, Number(m.reg(l).ToNumber()/m.reg(r).ToNumber())) // IEEE rules: div by 0 -> Inf/NaN
		case OpMod:
			dst, l, r := m.op3()
			m.setReg(dst, Number(math.Mod(m.reg(l).ToNumber(), m.reg(r).ToNumber())))
		case OpLshift:
			dst, l, r := m.op3()
			m.setReg(dst, Number(float64(m.reg(l).ToInt32()<<(uint32(m.reg(r).ToInt32())&31))))
		case OpRshift:
			dst, l, r := m.op3()
			m.setReg(dst, Number(float64(m.reg(l).ToInt32()>>(uint32(m.reg(r).ToInt32())&31))))
		case OpUrshift:
			dst, l, r := m.op3()
			m.setReg(dst, Number(float64(m.reg(l).ToUint32()>>(uint32(m.reg(r).ToInt32())&31))))
		case OpBitAnd:
			dst, l, r := m.op3()
			m.setReg(dst, Number(float64(m.reg(l).ToInt32()&m.reg(r).ToInt32())))
		case OpBitOr:
			dst, l, r := m.op3()
			m.setReg(dst, Number(float64(m.reg(l).ToInt32()|m.reg(r).ToInt32())))
		case OpBitXor:
			dst, l, r := m.op3()
			m.setReg(dst, Number(float64(m.reg(l).ToInt32()^m.reg(r).ToInt32())))
		case OpBitNot:
			dst, src := m.op2()
			m.setReg(dst, Number(float64(^m.reg(src).ToInt32())))
		case OpNot:
			dst, src := m.op2()
			m.setReg(dst, Bool(!m.reg(src).ToBoolean()))
		case OpNegate:
			dst, src := m.op2()
			m.setReg(dst, Number(-m.reg(src).ToNumber()))
		case OpPreInc:
			src := m.operand()
			v := Number(m.reg(src).ToNumber() + 1)
			m.setReg(src, v)
		case OpPreDec:
			src := m.operand()
			v := Number(m.reg(src).ToNumber() - 1)
			m.setReg(src, v)
		case OpPostInc:
			dst, src := m.op2()
			old := Number(m.reg(src).ToNumber())
			m.setReg(dst, old)
			m.setReg(src, Number(old.ToNumber()+1))
		case OpPostDec:
			dst, src := m.op2()
			old := Number(m.reg(src).ToNumber())
			m.setReg(dst, old)
			m.setReg(src, Number(old.ToNumber()-1))
		case OpToJSNumber:
			dst, src := m.op2()
			m.setReg(dst, Number(m.reg(src).ToNumber()))
		case OpInstanceOf:
			dst, l, r := m.op3()
			rv := m.reg(r)
			if !rv.IsObject() || !rv.AsObject().IsCallable() {
				return Undefined(), newTypeError("right-hand side of instanceof is not callable", 0)
			}
			m.setReg(dst, Bool(rv.AsObject().HasInstance(m.reg(l))))
		case OpResolve:
			dst, k := m.op2()
			name := m.cb.Identifiers[k]
			v, found := m.scope.Resolve(name)
			if !found {
				return Undefined(), newReferenceError(name+" is not defined", 0)
			}
			m.setReg(dst, v)
		case OpResolveBase:
			dst, k := m.op2()
			name := m.cb.Identifiers[k]
			m.setReg(dst, Obj(m.scope.ResolveBase(name)))
		case OpObjectGet:
			dst, base, k := m.op3()
			name := m.cb.Identifiers[k]
			bv := m.reg(base)
			m.setReg(dst, bv.ToObject().Get(name))
		case OpObjectPut:
			base, k, src := m.op3()
			name := m.cb.Identifiers[k]
			m.reg(base).ToObject().Put(name, m.reg(src))
		case OpGetPropVal:
			dst, base, key := m.op3()
			m.setReg(dst, m.reg(base).ToObject().Get(m.reg(key).ToString()))
		case OpPutPropVal:
			base, key, src := m.op3()
			m.reg(base).ToObject().Put(m.reg(key).ToString(), m.reg(src))
		case OpPutPropIndex:
			base, idx, src := m.op3()
			m.reg(base).ToObject().Put(fmt.Sprintf("%d", idx), m.reg(src))
		case OpNewFunc:
			dst, k := m.op2()
			body := m.cb.Functions[k]
			m.setReg(dst, NewFunctionObjectValue(body.Name, body, m.scope))
		case OpNewObject:
			dst := m.operand()
			m.setReg(dst, Obj(NewObject(nil)))
		case OpNewArray:
			dst := m.operand()
			m.setReg(dst, Obj(NewArray(nil)))
		case OpCall:
			dst, funcReg, thisReg, argv, argc := m.op5()
			if err := m.performCall(dst, funcReg, thisReg, argv, argc); err != nil {
				return Undefined(), err
			}
		case OpConstruct:
			dst, funcReg, argv, argc := m.op4()
			fv := m.reg(funcReg)
			if !fv.IsObject() {
				return Undefined(), newTypeError("value is not a constructor", 0)
			}
			args := append([]Value{}, m.regSlice(argv, argc)...)
			result, err := fv.AsObject().Construct(m, args)
			if err != nil {
				return Undefined(), err
			}
			m.setReg(dst, result)
		case OpRet:
			src := m.operand()
			value := m.reg(src)
			done, result, err := m.doReturn(value)
			if err != nil {
				return Undefined(), err
			}
			if done {
				return result, nil
			}
		case OpJmp:
			off := m.signedOperand()
			m.pc += int(off)
		case OpJtrue:
			cond, off := m.opSignedTail()
			if m.reg(cond).ToBoolean() {
				m.pc += int(off)
			}
		case OpJfalse:
			cond, off := m.opSignedTail()
			if !m.reg(cond).ToBoolean() {
				m.pc += int(off)
			}
		case OpJmpScopes:
			delta := m.operand()
			off := m.signedOperand()
			m.scope = m.scope.PopN(int(delta))
			m.pc += int(off)
		case OpPushScope:
			obj := m.operand()
			m.scope = m.scope.Push(m.reg(obj).ToObject())
		case OpPopScope:
			m.scope = m.scope.Pop()
		case OpGetPnames:
			iter, obj := m.op2()
			names := m.reg(obj).ToObject().PropertyNames()
			enumObj := NewArray(nil)
			for _, n := range names {
				enumObj.Array = append(enumObj.Array, String(n))
			}
			enumObj.props["__cursor"] = Number(0)
			m.setReg(iter, Obj(enumObj))
		case OpNextPname:
			dst, iter, off := m.op3()
			iterObj := m.reg(iter).AsObject()
			cursor := int(iterObj.props["__cursor"].ToNumber())
			if cursor >= len(iterObj.Array) {
				m.pc += int(off)
				continue
			}
			iterObj.props["__cursor"] = Number(float64(cursor + 1))
			m.setReg(dst, iterObj.Array[cursor])
		case OpLoadThis:
			dst := m.operand()
			m.setReg(dst, m.thisVal)
		case OpTypeof:
			dst, src := m.op2()
			m.setReg(dst, String(m.reg(src).TypeOf()))
		case OpDelete:
			dst, base, key := m.op3()
			baseVal := m.reg(base)
			if !baseVal.IsObject() {
				m.setReg(dst, Bool(true))
				continue
			}
			ok := baseVal.AsObject().DeleteProperty(m.reg(key).ToString())
			m.setReg(dst, Bool(ok))
		case OpHasProperty:
			dst, base, key := m.op3()
			baseVal := m.reg(base)
			has := baseVal.IsObject() && baseVal.AsObject().HasProperty(m.reg(key).ToString())
			m.setReg(dst, Bool(has))
		case OpEnd:
			src := m.operand()
			return m.reg(src), nil
		default:
			return Undefined(), &InternalError{Message: fmt.Sprintf("unknown opcode %d at pc %d", op, m.pc-1)}
		}
	}
}

// doReturn implements `ret`: pop the return-info block, detach the
// frame's activation if it has one, restore the caller's dispatch state,
// and write the result into the caller's destination register. Returns
// done=true when the popped frame was pushed by CallFunction — the restored
// state then belongs to a caller suspended OUTSIDE the dispatch loop, so the
// loop must hand the result back rather than resume dispatching on it.
func (m *Machine) doReturn(value Value) (done bool, result Value, err error) {
	if len(m.frames) == 0 {
		return false, Undefined(), &InternalError{Message: "ret with empty call stack"}
	}
	fi := m.frames[len(m.frames)-1]
	m.frames = m.frames[:len(m.frames)-1]

	if fi.activation != nil {
		fi.activation.Detach()
	}

	m.regs = m.regs[:fi.callerEnd]
	m.cb, m.pc, m.scope, m.r, m.thisVal = fi.codeBlock, fi.pc, fi.scopeChain, fi.r, fi.thisVal

	if fi.dstAbs < len(m.regs) {
		m.regs[fi.dstAbs] = value
	}

	if fi.exitOnReturn {
		return true, value, nil
	}
	return false, Undefined(), nil
}

// performCall implements op_call, dispatching to the
// register-overlap machinery for declared functions and straight through to
// the black-box call path for native bridges.
func (m *Machine) performCall(dstRel, funcRel, thisRel, argvRel, argc int32) error {
	fv := m.reg(funcRel)
	if !fv.IsObject() || !fv.AsObject().IsCallable() {
		return newTypeError("value is not a function", 0)
	}
	fnObj := fv.AsObject()

	var thisVal Value
	if thisRel == MissingThisMarker {
		thisVal = Null()
	} else {
		thisVal = m.reg(thisRel)
	}
	argvAbs := m.r + int(argvRel)
	m.regs[argvAbs] = thisVal

	if fnObj.Function == nil {
		args := append([]Value{}, m.regs[argvAbs+1:argvAbs+1+int(argc)]...)
		result, err := fnObj.Native(m, thisVal, args)
		if err != nil {
			return err
		}
		m.setReg(dstRel, result)
		return nil
	}

	dstAbs := m.r + int(dstRel)
	callerEnd := m.r + m.cb.NumTemporaries
	return m.enterFunctionFrame(fnObj.Function, argvAbs, int(argc), dstAbs,
		m.cb, m.pc, m.r, m.scope, m.thisVal, callerEnd)
}

// resolveCodeBlock obtains the callee's CodeBlock, compiling on demand: one
// CodeBlock per source function, compiled on first entry and memoized in the
// Machine's bounded cache keyed by the body's identity. An evicted block is
// recompiled transparently on its next call.
func (m *Machine) resolveCodeBlock(body *FunctionBody) (*CodeBlock, error) {
	if cb, ok := m.cache.Get(body.Key); ok {
		return cb, nil
	}
	cb, err := body.Compile()
	if err != nil {
		return nil, err
	}
	m.cache.Put(body.Key, cb)
	m.log.Debug().Str("function", body.Name).Msg("compiled code block on first entry")
	return cb, nil
}

// enterFunctionFrame does the frame-setup half of a call: resolve the callee's
// CodeBlock layout, compute the overlapping (or copied, on overflow)
// register window, and set up the callee's scope chain / activation.
// argvAbs is the absolute index of the reserved "this" slot; the argc
// actual arguments begin at argvAbs+1.
func (m *Machine) enterFunctionFrame(fn *FunctionObject, argvAbs, argc, dstAbs int,
	returnCB *CodeBlock, returnPC, returnR int, returnScope *ScopeChain, returnThis Value,
	callerEnd int) error {

	if len(m.frames) >= m.cfg.MaxCallDepth {
		return newRangeError("maximum call stack size exceeded", 0)
	}

	cb, err := m.resolveCodeBlock(fn.Body)
	if err != nil {
		return err
	}
	p, l, t := cb.NumParameters, cb.NumLocals, cb.NumTemporaries

	var newR, paramsBase int
	switch {
	case argc == p:
		// exact: the caller's argument slots become the parameter slots by
		// aliasing, no copy.
		paramsBase = argvAbs + 1
	case argc < p:
		paramsBase = argvAbs + 1
		for len(m.regs) < paramsBase+p {
			m.regs = append(m.regs, Undefined())
		}
		// The register file may already extend past the missing-parameter
		// slots (they alias reclaimed caller temporaries); stale contents
		// must still read as undefined.
		for i := paramsBase + argc; i < paramsBase+p; i++ {
			m.regs[i] = Undefined()
		}
	default: // argc > p: copy-up path, original arguments left in place
		paramsBase = len(m.regs)
		m.regs = append(m.regs, make([]Value, p)...)
		copy(m.regs[paramsBase:paramsBase+p], m.regs[argvAbs+1:argvAbs+1+p])
	}
	newR = paramsBase + p + l
	if need := newR + t - len(m.regs); need > 0 {
		m.regs = append(m.regs, make([]Value, need)...)
	}
	// Named locals start undefined regardless of what a torn-down frame left
	// in these slots.
	for i := newR - l; i < newR; i++ {
		m.regs[i] = Undefined()
	}

	m.frames = append(m.frames, frameInfo{
		codeBlock:  returnCB,
		pc:         returnPC,
		scopeChain: returnScope,
		thisVal:    returnThis,
		r:          returnR,
		dstAbs:     dstAbs,
		callerEnd:  callerEnd,
	})

	var newScope *ScopeChain
	if cb.NeedsActivation {
		act := newActivation(cb, m, newR)
		newScope = fn.Scope.Push(act.AsObject())
		m.frames[len(m.frames)-1].activation = act
	} else {
		newScope = fn.Scope
	}

	m.cb, m.pc, m.r, m.scope, m.thisVal = cb, 0, newR, newScope, m.regs[argvAbs]
	m.log.Debug().Str("function", fn.Name).Int("depth", len(m.frames)).Msg("entering call frame")
	return nil
}

// ---- operand / register helpers ----

func (m *Machine) operand() int32 {
	v := int32(m.cb.Instructions[m.pc])
	m.pc++
	return v
}

func (m *Machine) signedOperand() int32 { return m.operand() }

func (m *Machine) op2() (int32, int32) { return m.operand(), m.operand() }
func (m *Machine) op3() (int32, int32, int32) {
	return m.operand(), m.operand(), m.operand()
}
func (m *Machine) op4() (int32, int32, int32, int32) {
	return m.operand(), m.operand(), m.operand(), m.operand()
}
func (m *Machine) op5() (int32, int32, int32, int32, int32) {
	return m.operand(), m.operand(), m.operand(), m.operand(), m.operand()
}
func (m *Machine) opSignedTail() (int32, int32) { return m.operand(), m.operand() }

func (m *Machine) reg(rel int32) Value       { return m.regs[m.r+int(rel)] }
func (m *Machine) setReg(rel int32, v Value) { m.regs[m.r+int(rel)] = v }
func (m *Machine) regSlice(startRel, count int32) []Value {
	start := m.r + int(startRel)
	return m.regs[start : start+int(count)]
}

// add implements `add`'s string/number special-casing: evaluate left
// before right, then string-concat if either's primitive form is a string.
func (m *Machine) add(l, r Value) Value {
	lp, rp := l.ToPrimitive(), r.ToPrimitive()
	if lp.Type == TypeString || rp.Type == TypeString {
		return String(lp.ToString() + rp.ToString())
	}
	return Number(lp.ToNumber() + rp.ToNumber())
}

// relational implements `less`/`lesseq`: numeric comparison unless
// both primitive forms are strings, in which case compare lexically by
// underlying sequence order. Returns <0, 0, >0 comparison result; a NaN
// operand yields 1, so both `less` and `lesseq` read false.
func (m *Machine) relational(lRel, rRel int32) (int, error) {
	lp, rp := m.reg(lRel).ToPrimitive(), m.reg(rRel).ToPrimitive()
	if lp.Type == TypeString && rp.Type == TypeString {
		ls, rs := lp.ToString(), rp.ToString()
		switch {
		case ls < rs:
			return -1, nil
		case ls > rs:
			return 1, nil
		default:
			return 0, nil
		}
	}
	lf, rf := lp.ToNumber(), rp.ToNumber()
	if math.IsNaN(lf) || math.IsNaN(rf) {
		return 1, nil // forces both `less` and `lesseq` to read false
	}
	switch {
	case lf < rf:
		return -1, nil
	case lf > rf:
		return 1, nil
	default:
		return 0, nil
	}
}
