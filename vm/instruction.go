package vm

// Instruction is one word in a CodeBlock's flat instruction stream: either
// an Opcode or one of its operands (a register index, a constant-pool
// index, or a signed jump offset). Using one word type for all of these,
// rather than a packed fixed-width encoding, is what lets a single opcode
// like op_call carry five operands while op_pop_scope carries none, without
// wasting space on the common case — the same tradeoff CodeGenerator.cpp's
// emit* functions make against Machine.cpp's vPC walk.
type Instruction int32

// InstructionStream is the word sequence a CodeBlock executes. Reading it is
// always driven by operandCount, never by scanning for opcode-looking
// values, since operand words and opcode words share one representation.
type InstructionStream []Instruction

// Disassemble walks the stream once, yielding one DisasmLine per opcode
// encountered. Shared by the internal/disasm package and by tests that want
// to assert on emitted shape without hand-decoding offsets.
type DisasmLine struct {
	Offset   int
	Op       Opcode
	Operands []int32
}

// DecodeAt decodes the single instruction whose opcode word sits at pc. The
// dispatch loop's debugger hook uses this to report the instruction it is
// about to execute without rescanning the rest of the stream.
func (s InstructionStream) DecodeAt(pc int) DisasmLine {
	op := Opcode(s[pc])
	n := operandCount[op]
	operands := make([]int32, n)
	for i := 0; i < n; i++ {
		operands[i] = int32(s[pc+1+i])
	}
	return DisasmLine{Offset: pc, Op: op, Operands: operands}
}

func (s InstructionStream) Disassemble() []DisasmLine {
	var lines []DisasmLine
	pc := 0
	for pc < len(s) {
		op := Opcode(s[pc])
		n := operandCount[op]
		operands := make([]int32, n)
		for i := 0; i < n; i++ {
			operands[i] = int32(s[pc+1+i])
		}
		lines = append(lines, DisasmLine{Offset: pc, Op: op, Operands: operands})
		pc += 1 + n
	}
	return lines
}
