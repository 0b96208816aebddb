// Package runtime wires the parser, module registry, and VM into one
// host-facing surface: compile with caching, run, test, and publish
// events to tagged scopes.
package runtime

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/funvibe/rigz/internal/config"
	"github.com/funvibe/rigz/internal/modules"
	"github.com/funvibe/rigz/internal/parser"
	"github.com/funvibe/rigz/internal/vm"
)

// Runtime runs scripts against a shared registry, program cache, and
// arena. One Runtime may drive several VM instances concurrently; each
// VM itself stays single-threaded.
type Runtime struct {
	cfg      config.Config
	registry *modules.Registry
	cache    *ProgramCache
	logger   *zap.Logger
	arena    *vm.Arena
	out      io.Writer
	errOut   io.Writer
}

type Option func(*Runtime)

func WithOutput(w io.Writer) Option             { return func(r *Runtime) { r.out = w } }
func WithErrOutput(w io.Writer) Option          { return func(r *Runtime) { r.errOut = w } }
func WithLogger(l *zap.Logger) Option           { return func(r *Runtime) { r.logger = l } }
func WithRegistry(reg *modules.Registry) Option { return func(r *Runtime) { r.registry = reg } }

func New(cfg config.Config, opts ...Option) (*Runtime, error) {
	cache, err := NewProgramCache(cfg.CacheSize, cfg.CachePath)
	if err != nil {
		return nil, err
	}
	r := &Runtime{
		cfg:    cfg,
		cache:  cache,
		out:    os.Stdout,
		errOut: os.Stderr,
		arena:  vm.NewArena(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = modules.Default()
	}
	r.registry.SetOutput(r.out)
	if r.logger == nil {
		r.logger = buildLogger(cfg.LogLevel, r.errOut)
	}
	return r, nil
}

func (r *Runtime) Close() error {
	return r.cache.Close()
}

// Compile parses source into a program, going through the cache. Trait
// and impl declarations are validated on a fresh parse; cache hits were
// validated when first compiled.
func (r *Runtime) Compile(source string) (*vm.Program, error) {
	if p, ok := r.cache.Get(source); ok {
		return p, nil
	}
	result, err := parser.Parse(source)
	if err != nil {
		return nil, err
	}
	for _, t := range result.Traits {
		r.registry.DeclareTrait(t)
	}
	for _, im := range result.Impls {
		if err := r.registry.CheckImpl(im); err != nil {
			return nil, vm.Errorf(vm.ParseError, "%s", err)
		}
	}
	r.cache.Put(source, result.Program, time.Now().Unix())
	return result.Program, nil
}

// Run compiles and executes a script, returning the program result. A
// language-level Error result comes back as a value, not a Go error;
// faults come back as *vm.VMError.
func (r *Runtime) Run(ctx context.Context, source string) (vm.Value, error) {
	program, err := r.Compile(source)
	if err != nil {
		return vm.None(), err
	}
	return r.newVM(program).Run(ctx)
}

// Disassemble compiles a script and renders its instruction listing.
func (r *Runtime) Disassemble(source string) (string, error) {
	program, err := r.Compile(source)
	if err != nil {
		return "", err
	}
	return program.Listing(), nil
}

// TestResult is the outcome of one @test scope.
type TestResult struct {
	Name     string
	Passed   bool
	Message  string
	Duration time.Duration
}

// TestReport aggregates a test run.
type TestReport struct {
	Results  []TestResult
	Passed   int
	Failed   int
	Duration time.Duration
}

// Test runs every @test scope in its own VM, up to cfg.Threads at a
// time. A test fails when its scope faults or evaluates to an Error
// value; any other result is a pass.
func (r *Runtime) Test(ctx context.Context, source string) (TestReport, error) {
	program, err := r.Compile(source)
	if err != nil {
		return TestReport{}, err
	}
	scopes := program.Lifecycles(vm.LifecycleTest)

	start := time.Now()
	results := make([]TestResult, len(scopes))
	var wg sync.WaitGroup
	sem := make(chan struct{}, r.cfg.Threads)
	for i, scope := range scopes {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, scope *vm.Scope) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = r.runTest(ctx, program, scope)
		}(i, scope)
	}
	wg.Wait()

	report := TestReport{Results: results, Duration: time.Since(start)}
	for _, res := range results {
		if res.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
	}
	return report, nil
}

func (r *Runtime) runTest(ctx context.Context, program *vm.Program, scope *vm.Scope) TestResult {
	name := scope.Named
	if name == "" {
		name = fmt.Sprintf("scope %d", scope.ID)
	}
	start := time.Now()
	out, err := r.newVM(program).RunScope(ctx, scope.ID, nil)
	res := TestResult{Name: name, Passed: true, Duration: time.Since(start)}
	switch {
	case err != nil:
		res.Passed = false
		res.Message = err.Error()
	case out.IsError():
		res.Passed = false
		res.Message = out.AsError().Error()
	}
	return res
}

// Publish runs every @on scope registered for the event, sharing the
// runtime arena so handlers see the same mutable cells. Handler errors
// are collected, not short-circuited.
func (r *Runtime) Publish(ctx context.Context, source, event string) error {
	program, err := r.Compile(source)
	if err != nil {
		return err
	}
	var handlers []*vm.Scope
	for _, scope := range program.Lifecycles(vm.LifecycleOn) {
		if scope.Lifecycle.Event == event {
			handlers = append(handlers, scope)
		}
	}

	errs := make([]error, len(handlers))
	var wg sync.WaitGroup
	sem := make(chan struct{}, r.cfg.Threads)
	for i, scope := range handlers {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, scope *vm.Scope) {
			defer wg.Done()
			defer func() { <-sem }()
			args := []vm.Value{vm.StringValue(event)}
			if len(scope.Args) == 0 {
				args = nil
			}
			_, errs[i] = r.newVM(program).RunScope(ctx, scope.ID, args)
		}(i, scope)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return fmt.Errorf("event %q: %w", event, err)
		}
	}
	return nil
}

func (r *Runtime) newVM(program *vm.Program) *vm.VM {
	return vm.New(program,
		vm.WithModules(r.registry),
		vm.WithLogger(r.logger),
		vm.WithOutput(r.out),
		vm.WithErrOutput(r.errOut),
		vm.WithMaxDepth(r.cfg.MaxDepth),
		vm.WithSharedArena(r.arena),
	)
}

func buildLogger(level string, w io.Writer) *zap.Logger {
	zl, ok := parseZapLevel(level)
	if !ok {
		return zap.NewNop()
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), zl)
	return zap.New(core)
}

func parseZapLevel(level string) (zapcore.Level, bool) {
	switch level {
	case "error":
		return zapcore.ErrorLevel, true
	case "warn":
		return zapcore.WarnLevel, true
	case "info":
		return zapcore.InfoLevel, true
	case "debug":
		return zapcore.DebugLevel, true
	case "trace":
		return zapcore.DebugLevel, true
	default:
		return zapcore.InvalidLevel, false
	}
}
