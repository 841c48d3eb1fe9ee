package foreign

import (
	"encoding/json"
	"time"

	"gopkg.in/yaml.v3"

	"braid/internal/number"
	"braid/internal/object"
)

func fnJSONParse() *object.Foreign {
	return &object.Foreign{
		Name: "json.parse",
		Fn: func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
			if len(args) != 1 {
				return ctx.NewError("json.parse wants a string")
			}
			src, ok := unpackString(args[0])
			if !ok {
				return ctx.NewError("json.parse wants a string, got %s", args[0].Type())
			}
			var decoded interface{}
			if err := json.Unmarshal([]byte(src), &decoded); err != nil {
				return ctx.NewError("invalid json: %v", err)
			}
			return goToObject(decoded)
		},
	}
}

func fnJSONRender() *object.Foreign {
	return &object.Foreign{
		Name: "json.render",
		Fn: func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
			if len(args) != 1 {
				return ctx.NewError("json.render wants a value")
			}
			data, err := json.Marshal(objectToGo(args[0]))
			if err != nil {
				return ctx.NewError("cannot render json: %v", err)
			}
			return &object.String{Value: string(data)}
		},
	}
}

func fnYAMLParse() *object.Foreign {
	return &object.Foreign{
		Name: "yaml.parse",
		Fn: func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
			if len(args) != 1 {
				return ctx.NewError("yaml.parse wants a string")
			}
			src, ok := unpackString(args[0])
			if !ok {
				return ctx.NewError("yaml.parse wants a string, got %s", args[0].Type())
			}
			var decoded interface{}
			if err := yaml.Unmarshal([]byte(src), &decoded); err != nil {
				return ctx.NewError("invalid yaml: %v", err)
			}
			return goToObject(normalizeYAML(decoded))
		},
	}
}

func fnYAMLRender() *object.Foreign {
	return &object.Foreign{
		Name: "yaml.render",
		Fn: func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
			if len(args) != 1 {
				return ctx.NewError("yaml.render wants a value")
			}
			data, err := yaml.Marshal(objectToGo(args[0]))
			if err != nil {
				return ctx.NewError("cannot render yaml: %v", err)
			}
			return &object.String{Value: string(data)}
		},
	}
}

// yaml.v3 decodes mappings as map[string]interface{} already, but nested
// collections may carry map[interface{}]interface{} from older documents;
// normalize so goToObject sees one shape.
func normalizeYAML(v interface{}) interface{} {
	switch v := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, val := range v {
			out[stringify(key)] = normalizeYAML(val)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, val := range v {
			out[key] = normalizeYAML(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = normalizeYAML(item)
		}
		return out
	default:
		return v
	}
}

func fnNowMs() *object.Foreign {
	return &object.Foreign{
		Name: "time.now-ms",
		Fn: func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
			return &object.Number{Value: number.FromInt64(time.Now().UnixMilli())}
		},
	}
}
