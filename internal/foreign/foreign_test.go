package foreign

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"braid/internal/evaluator"
	"braid/internal/object"
	"braid/internal/parser"
)

func run(t *testing.T, src string) object.Object {
	t.Helper()
	forms, err := parser.ParseString(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	env := evaluator.NewGlobalEnv()
	Install(env)
	e := evaluator.New(evaluator.NewRuntime(context.Background()), env)
	return e.EvalProgram(forms)
}

func TestConsoleCapture(t *testing.T) {
	var buf strings.Builder
	prev := SetConsole(&buf)
	defer SetConsole(prev)

	run(t, `(println "hello" 42 :ok) (print "x")`)
	if got := buf.String(); got != "hello 42 :ok\nx" {
		t.Fatalf("console output = %q", got)
	}
}

func TestPrintatEmitsPositioning(t *testing.T) {
	var buf strings.Builder
	prev := SetConsole(&buf)
	defer SetConsole(prev)

	run(t, `(printat 2 5 "here")`)
	if got := buf.String(); got != "\x1b[2;5Hhere" {
		t.Fatalf("printat output = %q", got)
	}
}

func TestFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")

	result := run(t, `(io.write-file "`+path+`" "one\ntwo\n") (io.read-lines "`+path+`")`)
	if result.Inspect() != `["one" "two"]` {
		t.Fatalf("read-lines = %s", result.Inspect())
	}

	run(t, `(io.append-file "`+path+`" "three\n")`)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "one\ntwo\nthree\n" {
		t.Fatalf("file content = %q", data)
	}

	exists := run(t, `(io.exists? "`+path+`")`)
	if exists != object.TRUE {
		t.Fatalf("exists? = %s", exists.Inspect())
	}
}

func TestReadMissingFileFailsFast(t *testing.T) {
	result := run(t, `(io.read-file "/no/such/file")`)
	if _, ok := result.(*object.RuntimeError); !ok {
		t.Fatalf("got %s, want runtime error", result.Inspect())
	}
}

func TestLoadEvaluatesScript(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lib.br")
	script := "(defn twice [x] (* x 2))\n(twice 21)"
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}

	result := run(t, `(load "`+path+`")`)
	if result.Inspect() != "42" {
		t.Fatalf("load result = %s", result.Inspect())
	}
}

func TestShell(t *testing.T) {
	result := run(t, `(shell "echo hi; echo there")`)
	m, ok := result.(*object.Map)
	if !ok {
		t.Fatalf("shell returned %s (%s)", result.Inspect(), result.Type())
	}
	out, _ := m.Get(object.Intern(":out"))
	if out.Inspect() != `["hi" "there"]` {
		t.Fatalf("shell :out = %s", out.Inspect())
	}
	code, _ := m.Get(object.Intern(":code"))
	if code.Inspect() != "0" {
		t.Fatalf("shell :code = %s", code.Inspect())
	}
}

func TestShellNonZeroExitIsData(t *testing.T) {
	result := run(t, `(get (shell "exit 3") :code)`)
	if result.Inspect() != "3" {
		t.Fatalf("exit code = %s", result.Inspect())
	}
}

func TestJSON(t *testing.T) {
	result := run(t, `(get (json.parse "{\"name\": \"ada\", \"tags\": [1, 2]}") :tags)`)
	if result.Inspect() != "[1 2]" {
		t.Fatalf("json tags = %s", result.Inspect())
	}

	rendered := run(t, `(json.render {:a 1})`)
	if rendered.Inspect() != `{"a":1}` {
		t.Fatalf("json render = %s", rendered.Inspect())
	}
}

func TestYAML(t *testing.T) {
	result := run(t, `(get (yaml.parse "name: ada\nage: 36\n") :name)`)
	if result.Inspect() != "ada" {
		t.Fatalf("yaml name = %s", result.Inspect())
	}
}

func TestInvalidJSONFailsFast(t *testing.T) {
	result := run(t, `(json.parse "{nope")`)
	if _, ok := result.(*object.RuntimeError); !ok {
		t.Fatalf("got %s, want runtime error", result.Inspect())
	}
}
