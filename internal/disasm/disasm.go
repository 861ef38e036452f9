// Package disasm implements the tablewriter/color-backed vm.Debugger hook,
// and a standalone dump of a whole CodeBlock tree for the `disasm` CLI
// subcommand.
package disasm

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"regvm/vm"
)

// opcodeColor buckets an opcode into a display class: control flow, calls,
// scope/property access, or everything else (arithmetic and the rest),
// which shares the default color. Purely cosmetic, grounded on nothing but readability.
func opcodeColor(op vm.Opcode) *color.Color {
	switch op {
	case vm.OpJmp, vm.OpJtrue, vm.OpJfalse, vm.OpJmpScopes, vm.OpRet, vm.OpEnd:
		return color.New(color.FgYellow)
	case vm.OpCall, vm.OpConstruct, vm.OpNewFunc:
		return color.New(color.FgCyan)
	case vm.OpResolve, vm.OpResolveBase, vm.OpObjectGet, vm.OpObjectPut,
		vm.OpGetPropVal, vm.OpPutPropVal, vm.OpPutPropIndex, vm.OpPushScope, vm.OpPopScope:
		return color.New(color.FgMagenta)
	default:
		return color.New(color.FgGreen)
	}
}

// Tracer is a vm.Debugger that writes one line per dispatched
// instruction as it happens — a running trace rather than a static dump,
// for attaching to a live Execute/CallFunction call. It deliberately avoids
// buffering: a trace cut short by a VM error still shows everything that
// ran.
type Tracer struct {
	out     io.Writer
	noColor bool
}

// NewTracer builds a Tracer writing to out. Pass noColor=true for
// non-terminal output (redirected to a file, or under test).
func NewTracer(out io.Writer, noColor bool) *Tracer {
	return &Tracer{out: out, noColor: noColor}
}

// OnInstruction implements vm.Debugger.
func (t *Tracer) OnInstruction(m *vm.Machine, line vm.DisasmLine) {
	operandStrs := make([]string, len(line.Operands))
	for i, v := range line.Operands {
		operandStrs[i] = fmt.Sprintf("%d", v)
	}
	opStr := line.Op.String()
	if !t.noColor {
		opStr = opcodeColor(line.Op).Sprint(opStr)
	}
	fmt.Fprintf(t.out, "%04d  %-14s %s\n", line.Offset, opStr, strings.Join(operandStrs, ", "))
}

// Dump renders a static disassembly of cb and every CodeBlock reachable
// through its Functions constant pool, depth-first, the way a `disasm`
// subcommand wants to show a whole compiled program in one pass.
func Dump(out io.Writer, cb *vm.CodeBlock, noColor bool) {
	dump(out, cb, noColor, map[*vm.CodeBlock]bool{})
}

func dump(out io.Writer, cb *vm.CodeBlock, noColor bool, seen map[*vm.CodeBlock]bool) {
	if seen[cb] {
		return
	}
	seen[cb] = true

	fmt.Fprintf(out, "\n=== %s (params=%d locals=%d temporaries=%d) ===\n",
		blockLabel(cb), cb.NumParameters, cb.NumLocals, cb.NumTemporaries)

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"pc", "op", "operands"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	for _, line := range cb.Instructions.Disassemble() {
		operandStrs := make([]string, len(line.Operands))
		for i, v := range line.Operands {
			operandStrs[i] = fmt.Sprintf("%d", v)
		}
		opStr := line.Op.String()
		if !noColor {
			opStr = opcodeColor(line.Op).Sprint(opStr)
		}
		table.Append([]string{fmt.Sprintf("%04d", line.Offset), opStr, strings.Join(operandStrs, ", ")})
	}
	table.Render()

	// Nested bodies are uncompiled until first call; a static dump wants to
	// show them anyway, so compile each directly (outside any VM cache).
	for _, fn := range cb.Functions {
		child, err := fn.Compile()
		if err != nil {
			fmt.Fprintf(out, "\n=== %s: %v ===\n", fn.Name, err)
			continue
		}
		dump(out, child, noColor, seen)
	}
}

func blockLabel(cb *vm.CodeBlock) string {
	if cb.Name == "" {
		return "<program>"
	}
	return cb.Name
}
