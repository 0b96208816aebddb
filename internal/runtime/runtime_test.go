package runtime

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/funvibe/rigz/internal/config"
	"github.com/funvibe/rigz/internal/vm"
)

func newTestRuntime(t *testing.T, opts ...Option) *Runtime {
	t.Helper()
	r, err := New(config.Defaults(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRunLeftToRight(t *testing.T) {
	r := newTestRuntime(t)
	out, err := r.Run(context.Background(), "1 + 2 * 3")
	if err != nil {
		t.Fatal(err)
	}
	if !out.Equal(vm.IntValue(9)) {
		t.Fatalf("1 + 2 * 3 = %s, want 9", out)
	}
}

func TestRunParseError(t *testing.T) {
	r := newTestRuntime(t)
	_, err := r.Run(context.Background(), "let x = 1\nx = 2\n")
	if err == nil {
		t.Fatal("rebinding an immutable should fail at compile time")
	}
	vmErr, ok := err.(*vm.VMError)
	if !ok || vmErr.Kind != vm.ParseError {
		t.Fatalf("got %v, want a ParseError", err)
	}
}

func TestCompileCaches(t *testing.T) {
	r := newTestRuntime(t)
	first, err := r.Compile("40 + 2")
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Compile("40 + 2")
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatal("second compile should come from the cache")
	}
	if r.cache.Len() != 1 {
		t.Fatalf("cache holds %d entries, want 1", r.cache.Len())
	}
}

func TestPersistentCacheSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "programs.db")
	cfg := config.Defaults()
	cfg.CachePath = path

	first, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := first.Compile("6 * 7"); err != nil {
		t.Fatal(err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()
	if _, ok := second.cache.Get("6 * 7"); !ok {
		t.Fatal("program did not survive in the sqlite layer")
	}
	out, err := second.Run(context.Background(), "6 * 7")
	if err != nil {
		t.Fatal(err)
	}
	if !out.Equal(vm.IntValue(42)) {
		t.Fatalf("cached program ran to %s, want 42", out)
	}
}

func TestTestRunner(t *testing.T) {
	source := `
@test
fn arithmetic_holds()
  1 + 1 == 2
end

@test
fn always_blows_up()
  raise 'broken'
end
`
	r := newTestRuntime(t)
	report, err := r.Test(context.Background(), source)
	if err != nil {
		t.Fatal(err)
	}
	if report.Passed != 1 || report.Failed != 1 {
		t.Fatalf("passed=%d failed=%d, want 1/1", report.Passed, report.Failed)
	}
	byName := map[string]TestResult{}
	for _, res := range report.Results {
		byName[res.Name] = res
	}
	if !byName["arithmetic_holds"].Passed {
		t.Fatalf("arithmetic_holds failed: %s", byName["arithmetic_holds"].Message)
	}
	if byName["always_blows_up"].Passed {
		t.Fatal("always_blows_up passed")
	}
	if !strings.Contains(byName["always_blows_up"].Message, "broken") {
		t.Fatalf("message %q should carry the raised payload", byName["always_blows_up"].Message)
	}
}

func TestTestRunnerErrorResultFails(t *testing.T) {
	source := `
@test
fn returns_error()
  try raise 'caught'
end
`
	r := newTestRuntime(t)
	report, err := r.Test(context.Background(), source)
	if err != nil {
		t.Fatal(err)
	}
	// The try catches the raise, but the scope still evaluates to an
	// Error value, which counts as a failure.
	if report.Failed != 1 {
		t.Fatalf("failed=%d, want 1", report.Failed)
	}
}

func TestTestRunnerCaughtRaisePasses(t *testing.T) {
	source := `
@test
fn recovers()
  try do
    raise 'expected'
  catch |e|
    true
  end
end
`
	r := newTestRuntime(t)
	report, err := r.Test(context.Background(), source)
	if err != nil {
		t.Fatal(err)
	}
	// The catch swallows the raise and yields true, so the scope result
	// is not an Error value and the test passes.
	if report.Passed != 1 || report.Failed != 0 {
		t.Fatalf("passed=%d failed=%d, want 1/0", report.Passed, report.Failed)
	}
}

func TestExpressionPutsHonorsConfiguredOutput(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRuntime(t, WithOutput(&buf))
	// In expression position puts goes through the module registry, not
	// the print instruction; both must land on the configured writer.
	if _, err := r.Run(context.Background(), "let x = puts('routed')\n0"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "routed") {
		t.Fatalf("output %q missing module-level print", buf.String())
	}
}

func TestPublish(t *testing.T) {
	source := `
@on('boot')
do
  puts 'booted'
end
`
	var buf bytes.Buffer
	r := newTestRuntime(t, WithOutput(&buf))
	if err := r.Publish(context.Background(), source, "boot"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "booted") {
		t.Fatalf("output %q missing handler effect", buf.String())
	}

	buf.Reset()
	if err := r.Publish(context.Background(), source, "shutdown"); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Fatalf("unexpected output for unmatched event: %q", buf.String())
	}
}

func TestConcurrentTests(t *testing.T) {
	source := `
@test
fn one()
  1
end

@test
fn two()
  2
end

@test
fn three()
  3
end
`
	cfg := config.Defaults()
	cfg.Threads = 3
	r, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	report, err := r.Test(context.Background(), source)
	if err != nil {
		t.Fatal(err)
	}
	if report.Passed != 3 || report.Failed != 0 {
		t.Fatalf("passed=%d failed=%d, want 3/0", report.Passed, report.Failed)
	}
}

func TestDisassemble(t *testing.T) {
	r := newTestRuntime(t)
	listing, err := r.Disassemble("1 + 2")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"scope 0", "Binary", "Halt"} {
		if !strings.Contains(listing, want) {
			t.Fatalf("listing missing %q:\n%s", want, listing)
		}
	}
}
