package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/funvibe/rigz/internal/runtime"
)

// cmdRepl reads statements line by line. The session keeps the full
// input so bindings and functions from earlier lines stay visible; each
// submission re-runs the accumulated program.
func cmdRepl(rt *runtime.Runtime, stdin io.Reader, stdout, stderr io.Writer, c colors) int {
	fmt.Fprintln(stdout, "rigz repl, ctrl-d to exit")
	scanner := bufio.NewScanner(stdin)
	var session []string

	prompt := c.dim(">> ")
	fmt.Fprint(stdout, prompt)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			fmt.Fprint(stdout, prompt)
			continue
		}

		candidate := append(append([]string{}, session...), line)
		out, err := rt.Run(context.Background(), strings.Join(candidate, "\n"))
		switch {
		case err != nil:
			fmt.Fprintln(stderr, c.red(err.Error()))
		case out.IsError():
			fmt.Fprintln(stderr, c.red(out.AsError().Error()))
			session = candidate
		default:
			fmt.Fprintf(stdout, "=> %s\n", out)
			session = candidate
		}
		fmt.Fprint(stdout, prompt)
	}
	fmt.Fprintln(stdout)
	return 0
}
