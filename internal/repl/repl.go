// Package repl implements the interactive session: one persistent global
// environment, one form per line, errors printed and the session resumed.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"braid/internal/evaluator"
	"braid/internal/object"
	"braid/internal/parser"
	"braid/internal/util"
)

const prompt = "braid> "

// Start reads forms from in until EOF or `(quit)`. Runtime errors and
// uncaught exceptions are reported and the loop continues; only an exit
// signal or cancellation ends the session. Returns the exit code.
func Start(in io.Reader, out io.Writer, rt *evaluator.Runtime, env *object.Environment) int {
	e := evaluator.New(rt, env)
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return 0
		}
		if rt.Ctx.Err() != nil {
			return 130
		}

		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		forms, err := parser.ParseString(line)
		if err != nil {
			fmt.Fprintf(out, "parse error: %v\n", err)
			if ctx := util.SourceContext(line, util.ErrorLine(err.Error())); ctx != "" {
				fmt.Fprint(out, ctx)
			}
			continue
		}

		switch result := e.EvalProgram(forms).(type) {
		case *object.ExitSignal:
			return result.Code
		case *object.RuntimeError:
			fmt.Fprintln(out, result.Render())
		case *object.UserException:
			fmt.Fprintf(out, "uncaught exception: %s\n", object.Inspect(result.Payload))
		default:
			fmt.Fprintln(out, result.Inspect())
		}
	}
}
