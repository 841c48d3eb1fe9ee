// Package foreign provides the host-facing builtins: console output, file
// and shell access, database connections and structured-data codecs. The
// evaluator core never depends on this package; hosts install what they
// want into the global frame.
package foreign

import (
	"fmt"
	"sort"

	"braid/internal/number"
	"braid/internal/object"
)

// Install binds every foreign function into env. Names are dotted by
// capability (io.*, db.*, json.*, yaml.*) except the console trio, which
// user code calls constantly.
func Install(env *object.Environment) {
	for name, fn := range registry() {
		env.Declare(&object.Variable{Sym: object.Intern(name), Value: fn, Const: true})
	}
}

func registry() map[string]*object.Foreign {
	return map[string]*object.Foreign{
		"print":   fnPrint(),
		"println": fnPrintln(),
		"printat": fnPrintat(),

		"io.read-file":   fnReadFile(),
		"io.read-lines":  fnReadLines(),
		"io.write-file":  fnWriteFile(),
		"io.append-file": fnAppendFile(),
		"io.exists?":     fnExists(),
		"load":           fnLoad(),

		"shell": fnShell(),

		"db.connect":  fnDbConnect(),
		"db.query":    fnDbQuery(),
		"db.exec":     fnDbExec(),
		"db.begin":    fnDbBegin(),
		"db.commit":   fnDbCommit(),
		"db.rollback": fnDbRollback(),
		"db.close":    fnDbClose(),

		"json.parse":  fnJSONParse(),
		"json.render": fnJSONRender(),
		"yaml.parse":  fnYAMLParse(),
		"yaml.render": fnYAMLRender(),

		"time.now-ms": fnNowMs(),
	}
}

func unpackString(arg object.Object) (string, bool) {
	s, ok := arg.(*object.String)
	if !ok {
		return "", false
	}
	return s.Value, true
}

func unpackNumber(arg object.Object) (int64, bool) {
	n, ok := arg.(*object.Number)
	if !ok {
		return 0, false
	}
	return n.Value.Int64(), true
}

// goToObject maps decoded host data (JSON/YAML/SQL shapes) onto language
// values. Map keys become keyword symbols so results destructure with the
// usual shape patterns.
func goToObject(v interface{}) object.Object {
	switch v := v.(type) {
	case nil:
		return object.NIL
	case bool:
		return object.NativeBoolToBooleanObject(v)
	case string:
		return &object.String{Value: v}
	case int:
		return &object.Number{Value: number.FromInt(v)}
	case int64:
		return &object.Number{Value: number.FromInt64(v)}
	case float64:
		return &object.Number{Value: number.FromFloat(v)}
	case []byte:
		return &object.String{Value: string(v)}
	case []interface{}:
		elems := make([]object.Object, len(v))
		for i, item := range v {
			elems[i] = goToObject(item)
		}
		return &object.Vector{Elements: elems}
	case map[string]interface{}:
		m := object.NewMap()
		for _, key := range sortedKeys(v) {
			m.Set(object.Intern(":"+key), goToObject(v[key]))
		}
		return m
	default:
		return &object.String{Value: stringify(v)}
	}
}

// objectToGo is the inverse direction, used when rendering to JSON/YAML.
// Keyword keys lose their leading colon.
func objectToGo(o object.Object) interface{} {
	switch o := o.(type) {
	case *object.Nil:
		return nil
	case *object.Boolean:
		return o.Value
	case *object.String:
		return o.Value
	case *object.Number:
		if o.Value.IsInt() {
			return o.Value.Int64()
		}
		return o.Value.Float64()
	case *object.Symbol:
		return trimKeyword(o.Name)
	case *object.Pair:
		items := o.Slice()
		out := make([]interface{}, len(items))
		for i, item := range items {
			out[i] = objectToGo(item)
		}
		return out
	case *object.Vector:
		out := make([]interface{}, len(o.Elements))
		for i, item := range o.Elements {
			out[i] = objectToGo(item)
		}
		return out
	case *object.Map:
		out := make(map[string]interface{}, o.Len())
		for _, pair := range o.Pairs() {
			out[mapKeyString(pair.Key)] = objectToGo(pair.Value)
		}
		return out
	default:
		return o.Inspect()
	}
}

func mapKeyString(key object.Object) string {
	switch k := key.(type) {
	case *object.String:
		return k.Value
	case *object.Symbol:
		return trimKeyword(k.Name)
	default:
		return k.Inspect()
	}
}

func trimKeyword(name string) string {
	if len(name) > 1 && name[0] == ':' {
		return name[1:]
	}
	return name
}

// Decoded maps are unordered; stable key order keeps results printable
// and testable.
func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func stringify(v interface{}) string {
	return fmt.Sprintf("%v", v)
}
