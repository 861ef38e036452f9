package vm

import "fmt"

// Object is a deliberately minimal object model: property slots with
// insertion order, a prototype chain, array and function payloads. The VM
// core treats it as a black box — it calls Get/Put/Call/Construct/
// HasInstance plus the HasProperty/DeleteProperty/PropertyNames capabilities
// behind `in`, `delete` and for-in — so a real embedding can swap in its own
// model without touching the dispatch loop.
type Object struct {
	Class     string
	props     map[string]Value
	order     []string // insertion order, walked by for-in / property enumerators
	Prototype *Object

	Primitive *Value // set by ToObject() when boxing a primitive

	// Callable/constructible payloads. At most one is set.
	Function *FunctionObject
	Native   NativeFunction
	Array    []Value

	// activation, when set, makes this Object a live view over a function
	// frame's named slots (see Activation.AsObject) rather than an
	// independent property bag: Get/Put indirect through it instead of props.
	activation *Activation
}

// NativeFunction is a host function bridged into the VM's call protocol —
// the call path op_call falls through to for non-declared callables (print,
// eval, the global object's intrinsics).
type NativeFunction func(vm *Machine, this Value, args []Value) (Value, error)

// FunctionObject is a declared (source-level) function: its body plus the
// scope chain captured at the `new_func` site. The body stays uncompiled
// until the first call enters it.
type FunctionObject struct {
	Name  string
	Body  *FunctionBody
	Scope *ScopeChain
}

func NewObject(prototype *Object) *Object {
	return &Object{Class: "Object", props: make(map[string]Value), Prototype: prototype}
}

func NewArray(elements []Value) *Object {
	if elements == nil {
		elements = []Value{}
	}
	return &Object{Class: "Array", props: make(map[string]Value), Array: elements}
}

func NewFunctionObjectValue(name string, body *FunctionBody, scope *ScopeChain) Value {
	return Obj(&Object{
		Class:    "Function",
		props:    make(map[string]Value),
		Function: &FunctionObject{Name: name, Body: body, Scope: scope},
	})
}

func NewNativeFunctionValue(name string, fn NativeFunction) Value {
	return Obj(&Object{Class: "Function", props: make(map[string]Value), Native: fn})
}

// Get looks a property up, consulting the array
// backing store, then own properties, then the prototype chain.
func (o *Object) Get(name string) Value {
	if o.activation != nil {
		if v, ok := o.activation.Get(name); ok {
			return v
		}
	}
	if o.Array != nil {
		if name == "length" {
			return Number(float64(len(o.Array)))
		}
		if idx, ok := arrayIndex(name); ok && idx < len(o.Array) {
			return o.Array[idx]
		}
	}
	for cur := o; cur != nil; cur = cur.Prototype {
		if v, ok := cur.props[name]; ok {
			return v
		}
		if cur.Array != nil && cur != o {
			if idx, ok := arrayIndex(name); ok && idx < len(cur.Array) {
				return cur.Array[idx]
			}
		}
	}
	return Undefined()
}

// getOwnPropertySlot reports whether name is a property of o specifically
// (not its prototype chain), for name resolution's scope-chain walk.
func (o *Object) getOwnPropertySlot(name string) (Value, bool) {
	if o.activation != nil {
		return o.activation.Get(name)
	}
	if o.Array != nil {
		if name == "length" {
			return Number(float64(len(o.Array))), true
		}
		if idx, ok := arrayIndex(name); ok && idx < len(o.Array) {
			return o.Array[idx], true
		}
	}
	v, ok := o.props[name]
	return v, ok
}

// Put sets a property, routing array indices to the backing store.
func (o *Object) Put(name string, v Value) {
	if o.activation != nil {
		o.activation.Put(name, v)
		return
	}
	if o.Array != nil {
		if idx, ok := arrayIndex(name); ok {
			for idx >= len(o.Array) {
				o.Array = append(o.Array, Undefined())
			}
			o.Array[idx] = v
			return
		}
	}
	if _, exists := o.props[name]; !exists {
		o.order = append(o.order, name)
	}
	o.props[name] = v
}

// HasProperty implements the `in` operator: true for an own property, an
// array index in range, or anything found walking the prototype chain.
func (o *Object) HasProperty(name string) bool {
	if _, ok := o.getOwnPropertySlot(name); ok {
		return true
	}
	for cur := o.Prototype; cur != nil; cur = cur.Prototype {
		if _, ok := cur.getOwnPropertySlot(name); ok {
			return true
		}
	}
	return false
}

// DeleteProperty removes a named property, returning whether it existed.
func (o *Object) DeleteProperty(name string) bool {
	if _, ok := o.props[name]; !ok {
		return false
	}
	delete(o.props, name)
	for i, n := range o.order {
		if n == name {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	return true
}

// PropertyNames returns own enumerable property names in insertion order,
// array indices first — the order `get_pnames`/`next_pname` enumerators walk.
func (o *Object) PropertyNames() []string {
	names := make([]string, 0, len(o.Array)+len(o.order))
	for i := range o.Array {
		names = append(names, fmt.Sprintf("%d", i))
	}
	names = append(names, o.order...)
	return names
}

func arrayIndex(name string) (int, bool) {
	if name == "" {
		return 0, false
	}
	n := 0
	for _, c := range name {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// IsCallable reports whether Call can be invoked on o; consulted by op_call
// and `typeof`.
func (o *Object) IsCallable() bool { return o.Function != nil || o.Native != nil }

// Call invokes o as a function, dispatching declared functions back into
// the Machine and native bridges straight through.
func (o *Object) Call(m *Machine, this Value, args []Value) (Value, error) {
	if o.Native != nil {
		return o.Native(m, this, args)
	}
	if o.Function != nil {
		return m.CallFunction(o.Function, this, args)
	}
	return Undefined(), newTypeError("value is not callable", 0)
}

// Construct backs op_construct: a fresh object is created with Prototype
// from the callee's "prototype" property and passed as `this` to Call; if
// the call returns an object, that object is the result instead.
func (o *Object) Construct(m *Machine, args []Value) (Value, error) {
	if !o.IsCallable() {
		return Undefined(), newTypeError("value is not a constructor", 0)
	}
	var proto *Object
	if p := o.Get("prototype"); p.IsObject() {
		proto = p.AsObject()
	}
	instance := NewObject(proto)
	result, err := o.Call(m, Obj(instance), args)
	if err != nil {
		return Undefined(), err
	}
	if result.IsObject() {
		return result, nil
	}
	return Obj(instance), nil
}

// HasInstance implements `instance_of`: true when target's prototype
// chain contains o's own "prototype" property.
func (o *Object) HasInstance(target Value) bool {
	if !target.IsObject() {
		return false
	}
	proto := o.Get("prototype")
	if !proto.IsObject() {
		return false
	}
	protoObj := proto.AsObject()
	for cur := target.AsObject().Prototype; cur != nil; cur = cur.Prototype {
		if cur == protoObj {
			return true
		}
	}
	return false
}

// ToPrimitive is the object half of primitive coercion: a boxed
// primitive unwraps to its payload; otherwise a best-effort string.
func (o *Object) ToPrimitive() Value {
	if o.Primitive != nil {
		return *o.Primitive
	}
	if o.Array != nil {
		s := ""
		for i, v := range o.Array {
			if i > 0 {
				s += ","
			}
			s += v.ToString()
		}
		return String(s)
	}
	return String(fmt.Sprintf("[object %s]", o.Class))
}
