// Package cli is the entry point shared by cmd/rigz and embedders: it
// parses arguments, loads configuration, and drives the runtime.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/funvibe/rigz/internal/config"
	"github.com/funvibe/rigz/internal/runtime"
)

const usage = `rigz - a small scripting language

Usage:
  rigz run FILE       compile and execute a script
  rigz test FILE      run every @test scope and report results
  rigz disasm FILE    print the compiled instruction listing
  rigz repl           interactive session

Flags:
  -config PATH        YAML config file (default rigz.yaml if present)
`

// Run executes the CLI and returns the process exit code.
func Run(args []string) int {
	return run(args, os.Stdin, os.Stdout, os.Stderr)
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rigz", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "rigz.yaml", "YAML config file")
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	colors := colorizer(cfg, stdout)

	rt, err := runtime.New(cfg, runtime.WithOutput(stdout), runtime.WithErrOutput(stderr))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	defer rt.Close()

	switch rest[0] {
	case "run":
		return cmdRun(rt, rest[1:], stdout, stderr)
	case "test":
		return cmdTest(rt, rest[1:], stdout, stderr, colors)
	case "disasm":
		return cmdDisasm(rt, rest[1:], stdout, stderr)
	case "repl":
		return cmdRepl(rt, stdin, stdout, stderr, colors)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", rest[0], usage)
		return 2
	}
}

func cmdRun(rt *runtime.Runtime, args []string, stdout, stderr io.Writer) int {
	source, ok := readSource(args, stderr)
	if !ok {
		return 2
	}
	out, err := rt.Run(context.Background(), source)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if out.IsError() {
		fmt.Fprintln(stderr, out.AsError().Error())
		return 1
	}
	return 0
}

func cmdTest(rt *runtime.Runtime, args []string, stdout, stderr io.Writer, c colors) int {
	source, ok := readSource(args, stderr)
	if !ok {
		return 2
	}
	report, err := rt.Test(context.Background(), source)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	for _, res := range report.Results {
		if res.Passed {
			fmt.Fprintf(stdout, "%s %s (%s)\n", c.green("PASS"), res.Name, res.Duration)
		} else {
			fmt.Fprintf(stdout, "%s %s: %s\n", c.red("FAIL"), res.Name, res.Message)
		}
	}
	fmt.Fprintf(stdout, "\n%d passed, %d failed (%s)\n", report.Passed, report.Failed, report.Duration)
	if report.Failed > 0 {
		return 1
	}
	return 0
}

func cmdDisasm(rt *runtime.Runtime, args []string, stdout, stderr io.Writer) int {
	source, ok := readSource(args, stderr)
	if !ok {
		return 2
	}
	listing, err := rt.Disassemble(source)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fmt.Fprint(stdout, listing)
	return 0
}

func readSource(args []string, stderr io.Writer) (string, bool) {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "expected exactly one source file")
		return "", false
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintln(stderr, err)
		return "", false
	}
	return string(data), true
}

// colors renders terminal escapes only when wanted.
type colors struct {
	enabled bool
}

func colorizer(cfg config.Config, stdout io.Writer) colors {
	if cfg.Colors != nil {
		return colors{enabled: *cfg.Colors}
	}
	f, ok := stdout.(*os.File)
	if !ok {
		return colors{}
	}
	return colors{enabled: isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())}
}

func (c colors) green(s string) string { return c.wrap("32", s) }
func (c colors) red(s string) string   { return c.wrap("31", s) }
func (c colors) dim(s string) string   { return c.wrap("2", s) }

func (c colors) wrap(code, s string) string {
	if !c.enabled {
		return s
	}
	return "\x1b[" + code + "m" + s + "\x1b[0m"
}
