package foreign

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"braid/internal/object"
)

// Console output goes through a swappable writer so a host (or a test)
// can capture it.
var (
	consoleMu sync.Mutex
	console   io.Writer = os.Stdout
)

// SetConsole redirects print/println/printat and returns the previous
// writer.
func SetConsole(w io.Writer) io.Writer {
	consoleMu.Lock()
	defer consoleMu.Unlock()
	prev := console
	console = w
	return prev
}

func consoleWrite(s string) {
	consoleMu.Lock()
	defer consoleMu.Unlock()
	fmt.Fprint(console, s)
}

func renderArgs(args []object.Object) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		if s, ok := arg.(*object.String); ok {
			parts[i] = s.Value
		} else {
			parts[i] = arg.Inspect()
		}
	}
	return strings.Join(parts, " ")
}

func fnPrint() *object.Foreign {
	return &object.Foreign{
		Name: "print",
		Fn: func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
			consoleWrite(renderArgs(args))
			return object.NIL
		},
	}
}

func fnPrintln() *object.Foreign {
	return &object.Foreign{
		Name: "println",
		Fn: func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
			consoleWrite(renderArgs(args) + "\n")
			return object.NIL
		},
	}
}

// printat positions the cursor (1-based row/column) before writing, using
// ANSI escapes. Works on any terminal the host gives us; a plain writer
// just sees the escapes.
func fnPrintat() *object.Foreign {
	return &object.Foreign{
		Name: "printat",
		Fn: func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
			if len(args) < 3 {
				return ctx.NewError("printat wants row, column and text")
			}
			row, ok := unpackNumber(args[0])
			if !ok {
				return ctx.NewError("printat row must be a number, got %s", args[0].Type())
			}
			col, ok := unpackNumber(args[1])
			if !ok {
				return ctx.NewError("printat column must be a number, got %s", args[1].Type())
			}
			consoleWrite(fmt.Sprintf("\x1b[%d;%dH%s", row, col, renderArgs(args[2:])))
			return object.NIL
		},
	}
}
