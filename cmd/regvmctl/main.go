// Command regvmctl runs a script, disassembles it without executing, or
// drives a REPL against the same compile/execute pipeline the library
// exposes. None of this is part of the embedding surface — it's a driver
// around it.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/peterh/liner"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"regvm/codegen"
	"regvm/config"
	"regvm/internal/disasm"
	"regvm/lexer"
	"regvm/parser"
	"regvm/vm"
)

var (
	configPath string
	traceFlag  bool
	noColor    bool
)

func main() {
	zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	root := &cobra.Command{
		Use:   "regvmctl",
		Short: "Compile and run scripts against the register VM",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "TOML config file (default built-in)")
	root.PersistentFlags().BoolVar(&traceFlag, "trace", false, "attach an instruction tracer")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colorized disassembly")

	root.AddCommand(runCmd(), disasmCmd(), replCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	if configPath == "" {
		return config.DefaultConfig()
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "regvmctl: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// installBuiltins adds the driver-level host functions scripts run from this
// CLI expect. These ride the native call path; they are not part of the VM
// core.
func installBuiltins(m *vm.Machine) {
	m.Global().Put("print", vm.NewNativeFunctionValue("print", func(_ *vm.Machine, _ vm.Value, args []vm.Value) (vm.Value, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = a.ToString()
		}
		fmt.Println(strings.Join(parts, " "))
		return vm.Undefined(), nil
	}))
}

func compile(source string) (*vm.CodeBlock, error) {
	l := lexer.New(source)
	p := parser.New(l)
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		return nil, fmt.Errorf("parse errors: %v", errs)
	}
	return codegen.Generate(program)
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <file>",
		Short: "Compile and execute a script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			cb, err := compile(string(source))
			if err != nil {
				return err
			}
			m := vm.NewMachine(loadConfig())
			m.SetEvalCompiler(codegen.NewEvalCompiler(m.Cache()))
			installBuiltins(m)
			if traceFlag {
				m.SetDebugger(disasm.NewTracer(os.Stdout, noColor))
			}
			result, err := m.Execute(cb, &vm.ScopeChain{Object: m.Global()})
			if err != nil {
				return err
			}
			fmt.Println(result.ToString())
			return nil
		},
	}
}

func disasmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disasm <file>",
		Short: "Compile a script and print its instruction streams without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			cb, err := compile(string(source))
			if err != nil {
				return err
			}
			disasm.Dump(os.Stdout, cb, noColor)
			return nil
		},
	}
}

func replCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Line-at-a-time eval loop sharing one Machine/global scope",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := vm.NewMachine(loadConfig())
			m.SetEvalCompiler(codegen.NewEvalCompiler(m.Cache()))
			installBuiltins(m)
			if traceFlag {
				m.SetDebugger(disasm.NewTracer(os.Stdout, noColor))
			}
			scope := &vm.ScopeChain{Object: m.Global()}

			line := liner.NewLiner()
			defer line.Close()
			line.SetCtrlCAborts(true)

			for {
				input, err := line.Prompt("regvm> ")
				if err != nil {
					return nil // EOF or Ctrl-C: clean exit
				}
				line.AppendHistory(input)
				if input == "" {
					continue
				}
				cb, err := compile(input)
				if err != nil {
					fmt.Fprintln(os.Stderr, err)
					continue
				}
				result, err := m.Execute(cb, scope)
				if err != nil {
					fmt.Fprintln(os.Stderr, err)
					continue
				}
				fmt.Println(result.ToString())
			}
		},
	}
}
