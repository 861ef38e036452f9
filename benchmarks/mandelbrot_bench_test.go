// Package benchmarks times the compile-and-execute pipeline end to end,
// adapted from the teacher's native-Go Mandelbrot microbenchmarks into a
// script the VM itself runs — the thing worth timing here is op dispatch
// and call overhead, not Go's own float math.
package benchmarks

import (
	"testing"

	"regvm/codegen"
	"regvm/config"
	"regvm/lexer"
	"regvm/parser"
	"regvm/vm"
)

const mandelbrotSource = `
function mandelbrot(cx, cy) {
	var x = 0;
	var y = 0;
	var iter = 0;
	while (iter < 100) {
		var x2 = x * x;
		var y2 = y * y;
		if (x2 + y2 > 4) {
			return iter;
		}
		var xtemp = x2 - y2 + cx;
		y = 2 * x * y + cy;
		x = xtemp;
		iter = iter + 1;
	}
	return 100;
}

var total = 0;
var row = 0;
while (row < 40) {
	var col = 0;
	while (col < 80) {
		var cx = -2.5 + 3.5 * col / 80;
		var cy = -1.25 + 2.5 * row / 40;
		total = total + mandelbrot(cx, cy);
		col = col + 1;
	}
	row = row + 1;
}
total;
`

func compileMandelbrot(b *testing.B) *vm.CodeBlock {
	l := lexer.New(mandelbrotSource)
	p := parser.New(l)
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		b.Fatalf("parse errors: %v", errs)
	}
	cb, err := codegen.Generate(program)
	if err != nil {
		b.Fatalf("codegen: %v", err)
	}
	return cb
}

func BenchmarkMandelbrot(b *testing.B) {
	cb := compileMandelbrot(b)
	cfg := config.DefaultConfig()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m := vm.NewMachine(cfg)
		if _, err := m.Execute(cb, &vm.ScopeChain{Object: m.Global()}); err != nil {
			b.Fatalf("execute: %v", err)
		}
	}
}
