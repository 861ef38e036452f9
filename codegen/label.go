package codegen

import "regvm/vm"

// LabelID is a patch-list-based jump target: a jump emitted
// before its destination is known records the offset of its pending operand
// word; Bind fills in every pending operand once the destination address is
// reached. Backward jumps (loop heads) bind before any jump referencing them
// is emitted, so they never go through the patch list at all.
type LabelID struct {
	cg      *CodeGenerator
	bound   bool
	target  int
	patches []int
}

func (cg *CodeGenerator) newLabel() *LabelID {
	return &LabelID{cg: cg}
}

// emitOffset appends the jump-offset operand word for a branch to l: a
// resolved relative offset if l is already bound (backward jump), or a
// placeholder that Bind patches later (forward jump).
func (l *LabelID) emitOffset() {
	if l.bound {
		l.cg.code = append(l.cg.code, vm.Instruction(l.target-(len(l.cg.code)+1)))
		return
	}
	l.patches = append(l.patches, len(l.cg.code))
	l.cg.code = append(l.cg.code, vm.Instruction(0))
}

// Bind fixes l's target at the current end of the instruction stream and
// backpatches every forward jump recorded against it.
func (l *LabelID) Bind() {
	l.target = len(l.cg.code)
	l.bound = true
	for _, patchOffset := range l.patches {
		l.cg.code[patchOffset] = vm.Instruction(l.target - (patchOffset + 1))
	}
	l.patches = nil
}
