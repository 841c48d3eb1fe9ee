package foreign

import (
	"os"
	"path/filepath"
	"strings"

	"braid/internal/object"
	"braid/internal/parser"
)

var rootPath = "."

// SetRootPath fixes the directory relative paths resolve against.
func SetRootPath(path string) {
	if path != "" {
		rootPath = path
	}
}

func resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(rootPath, path)
}

func fnReadFile() *object.Foreign {
	return &object.Foreign{
		Name: "io.read-file",
		Fn: func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
			if len(args) != 1 {
				return ctx.NewError("io.read-file wants a path")
			}
			path, ok := unpackString(args[0])
			if !ok {
				return ctx.NewError("io.read-file path must be a string, got %s", args[0].Type())
			}
			data, err := os.ReadFile(resolve(path))
			if err != nil {
				return ctx.NewError("cannot read %s: %v", path, err)
			}
			return &object.String{Value: string(data)}
		},
	}
}

func fnReadLines() *object.Foreign {
	return &object.Foreign{
		Name: "io.read-lines",
		Fn: func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
			if len(args) != 1 {
				return ctx.NewError("io.read-lines wants a path")
			}
			path, ok := unpackString(args[0])
			if !ok {
				return ctx.NewError("io.read-lines path must be a string, got %s", args[0].Type())
			}
			data, err := os.ReadFile(resolve(path))
			if err != nil {
				return ctx.NewError("cannot read %s: %v", path, err)
			}
			text := strings.TrimSuffix(string(data), "\n")
			var lines []object.Object
			if text != "" {
				for _, line := range strings.Split(text, "\n") {
					lines = append(lines, &object.String{Value: line})
				}
			}
			return &object.Vector{Elements: lines}
		},
	}
}

func fnWriteFile() *object.Foreign {
	return writeForeign("io.write-file", false)
}

func fnAppendFile() *object.Foreign {
	return writeForeign("io.append-file", true)
}

func writeForeign(name string, appendMode bool) *object.Foreign {
	return &object.Foreign{
		Name: name,
		Fn: func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
			if len(args) != 2 {
				return ctx.NewError("%s wants a path and content", name)
			}
			path, ok := unpackString(args[0])
			if !ok {
				return ctx.NewError("%s path must be a string, got %s", name, args[0].Type())
			}
			content, ok := unpackString(args[1])
			if !ok {
				content = args[1].Inspect()
			}
			flags := os.O_CREATE | os.O_WRONLY
			if appendMode {
				flags |= os.O_APPEND
			} else {
				flags |= os.O_TRUNC
			}
			f, err := os.OpenFile(resolve(path), flags, 0o644)
			if err != nil {
				return ctx.NewError("cannot open %s: %v", path, err)
			}
			defer f.Close()
			if _, err := f.WriteString(content); err != nil {
				return ctx.NewError("cannot write %s: %v", path, err)
			}
			return object.NIL
		},
	}
}

func fnExists() *object.Foreign {
	return &object.Foreign{
		Name: "io.exists?",
		Fn: func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
			if len(args) != 1 {
				return ctx.NewError("io.exists? wants a path")
			}
			path, ok := unpackString(args[0])
			if !ok {
				return ctx.NewError("io.exists? path must be a string, got %s", args[0].Type())
			}
			_, err := os.Stat(resolve(path))
			return object.NativeBoolToBooleanObject(err == nil)
		},
	}
}

// load reads, parses and evaluates a script file in the caller's
// environment; the result of the last top-level form is returned.
func fnLoad() *object.Foreign {
	return &object.Foreign{
		Name: "load",
		Fn: func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
			if len(args) != 1 {
				return ctx.NewError("load wants a path")
			}
			path, ok := unpackString(args[0])
			if !ok {
				return ctx.NewError("load path must be a string, got %s", args[0].Type())
			}
			data, err := os.ReadFile(resolve(path))
			if err != nil {
				return ctx.NewError("cannot load %s: %v", path, err)
			}
			forms, err := parser.ParseString(string(data))
			if err != nil {
				return ctx.NewError("cannot parse %s: %v", path, err)
			}
			var result object.Object = object.NIL
			for _, form := range forms {
				result = ctx.Eval(form)
				if object.IsAbrupt(result) {
					return result
				}
			}
			return result
		},
	}
}
