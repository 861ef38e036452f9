// Package codegen walks a parsed program and emits the register-addressed
// instruction streams the vm package executes. It is the only
// package besides vm that understands CodeBlock shape; vm never imports it.
package codegen

// RegisterID is a reference-counted compile-time register handle: a
// temporary's underlying register index is only reclaimed once every copy
// of its handle has been released, enforcing the same stack discipline a
// manual arena would, but via Go values instead of C++ RAII.
//
// Locals and parameters (Index < 0; named slots sit below the frame base) are
// never reclaimed — they live for the whole function body.
type RegisterID struct {
	cg    *CodeGenerator
	Index int32
	rc    *int
}

// Ref increments the handle's reference count and returns it, for callers
// that hold onto a temporary across multiple emit sites (e.g. an
// expression's result reused as both an operand and a later store target).
func (r *RegisterID) Ref() *RegisterID {
	if r == nil {
		return nil
	}
	*r.rc++
	return r
}

// Deref releases one reference. A temporary whose count reaches zero joins
// the dead set; its index is not reusable immediately — reclamation happens
// lazily at the next allocation, and only as a suffix shrink from the top of
// the temporaries band, so the band never develops live-over-dead holes.
func (r *RegisterID) Deref() {
	if r == nil {
		return
	}
	*r.rc--
	if *r.rc == 0 && r.Index >= 0 {
		r.cg.deadTemporaries[r.Index] = true
	}
}

// reclaimTemporaries shrinks the temporaries band from its top: every
// trailing index whose handle count has reached zero is popped. Dead indices
// below a still-live one stay allocated until that one dies too — the
// stack-discipline invariant.
func (cg *CodeGenerator) reclaimTemporaries() {
	for cg.nextTemp > 0 && cg.deadTemporaries[cg.nextTemp-1] {
		cg.nextTemp--
		delete(cg.deadTemporaries, cg.nextTemp)
	}
}

// newTemporary first reclaims any dead suffix of the temporaries band, then
// hands out the next index, raising the high-water mark maxTemp — which
// becomes CodeBlock.NumTemporaries at the end of compilation.
func (cg *CodeGenerator) newTemporary() *RegisterID {
	cg.reclaimTemporaries()
	idx := cg.nextTemp
	cg.nextTemp++
	if cg.nextTemp > cg.maxTemp {
		cg.maxTemp = cg.nextTemp
	}
	rc := 1
	return &RegisterID{cg: cg, Index: idx, rc: &rc}
}

// newTemporaryBatch allocates n consecutive temporaries in one uninterrupted
// run. op_call's this-slot and argument slots must be contiguous so the
// callee's parameter band can alias them; allocating
// them at the reclaimed top of the band guarantees that.
func (cg *CodeGenerator) newTemporaryBatch(n int) []*RegisterID {
	cg.reclaimTemporaries()
	out := make([]*RegisterID, n)
	for i := range out {
		idx := cg.nextTemp
		cg.nextTemp++
		rc := 1
		out[i] = &RegisterID{cg: cg, Index: idx, rc: &rc}
	}
	if cg.nextTemp > cg.maxTemp {
		cg.maxTemp = cg.nextTemp
	}
	return out
}

// persistentRegister wraps a precomputed negative local/parameter index
// in a RegisterID. Unlike temporaries these indices are assigned
// once up front — by a hoisting pass over the function body that fixes P
// and L before any code is emitted — not by incremental allocation, so
// there is no bump counter here; Deref is a no-op for Index < 0.
func (cg *CodeGenerator) persistentRegister(idx int32) *RegisterID {
	rc := 1
	return &RegisterID{cg: cg, Index: idx, rc: &rc}
}
