package foreign

import (
	"os/exec"
	"strings"

	"braid/internal/number"
	"braid/internal/object"
)

// shell runs a command line through the system shell and returns a map
// with :out (stdout lines), :err and :code. A non-zero exit is data, not
// a runtime error; only failure to start the process errors.
func fnShell() *object.Foreign {
	return &object.Foreign{
		Name: "shell",
		Fn: func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
			if len(args) != 1 {
				return ctx.NewError("shell wants a command string")
			}
			cmdLine, ok := unpackString(args[0])
			if !ok {
				return ctx.NewError("shell command must be a string, got %s", args[0].Type())
			}

			cmd := exec.Command("sh", "-c", cmdLine)
			var stdout, stderr strings.Builder
			cmd.Stdout = &stdout
			cmd.Stderr = &stderr

			code := 0
			if err := cmd.Run(); err != nil {
				if exitErr, isExit := err.(*exec.ExitError); isExit {
					code = exitErr.ExitCode()
				} else {
					return ctx.NewError("shell: %v", err)
				}
			}

			var outLines []object.Object
			if text := strings.TrimSuffix(stdout.String(), "\n"); text != "" {
				for _, line := range strings.Split(text, "\n") {
					outLines = append(outLines, &object.String{Value: line})
				}
			}

			result := object.NewMap()
			result.Set(object.Intern(":out"), &object.Vector{Elements: outLines})
			result.Set(object.Intern(":err"), &object.String{Value: stderr.String()})
			result.Set(object.Intern(":code"), &object.Number{Value: number.FromInt(code)})
			return result
		},
	}
}
