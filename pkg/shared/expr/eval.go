package expr

import (
	"fmt"
	"strconv"

	"github.com/Masterminds/sprig/v3"
	"github.com/antonmedv/expr"
	"github.com/goccy/go-json"
)

var sprigFuncMap = sprig.GenericFuncMap()

const root = "payload"

// EvalBool evaluates an expression against the raw message payload and
// expects a boolean result. The payload is reachable as `payload` in the
// expression, e.g. `json(payload).lang == "en"`.
func EvalBool(expression string, msg []byte) (bool, error) {
	result, err := evalExpr(expression, msg)
	if err != nil {
		return false, err
	}
	resultBool, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("unable to cast expression result '%v' to bool", result)
	}
	return resultBool, nil
}

// EvalStr evaluates an expression against the raw message payload and
// returns the result rendered as a string.
func EvalStr(expression string, msg []byte) (string, error) {
	result, err := evalExpr(expression, msg)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%v", result), nil
}

func evalExpr(expression string, msg []byte) (interface{}, error) {
	env := getFuncMap(map[string]interface{}{
		root: string(msg),
	})
	result, err := expr.Eval(expression, env)
	if err != nil {
		return nil, fmt.Errorf("unable to evaluate expression '%s': %s", expression, err)
	}
	return result, nil
}

func getFuncMap(m map[string]interface{}) map[string]interface{} {
	env := Expand(m)
	env["sprig"] = sprigFuncMap
	env["json"] = _json
	env["int"] = _int
	env["string"] = _string
	return env
}

func _int(v interface{}) int {
	switch w := v.(type) {
	case int:
		return w
	case float64:
		return int(w)
	case string:
		if i, err := strconv.Atoi(w); err == nil {
			return i
		}
	case []byte:
		if i, err := strconv.Atoi(string(w)); err == nil {
			return i
		}
	}
	panic(fmt.Errorf("cannot convert %q to int", v))
}

func _string(v interface{}) string {
	switch w := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(w)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func _json(v interface{}) map[string]interface{} {
	var raw []byte
	switch w := v.(type) {
	case nil:
		return nil
	case []byte:
		raw = w
	case string:
		raw = []byte(w)
	default:
		panic(fmt.Errorf("cannot convert %T to an object", v))
	}
	x := make(map[string]interface{})
	if err := json.Unmarshal(raw, &x); err != nil {
		panic(fmt.Errorf("cannot convert %q to an object: %v", v, err))
	}
	return x
}
