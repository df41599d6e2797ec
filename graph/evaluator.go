package graph

import (
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"
)

// ConditionEvaluator evaluates an edge or condition-node expression
// against the instance variable scope.
type ConditionEvaluator interface {
	Evaluate(expression string, variables map[string]any) (bool, error)
}

// JsEvaluator runs expressions as javascript. Variables are exposed both
// as globals and through `$`, so `v > 0` and `$.v > 0` are equivalent.
type JsEvaluator struct{}

var _ ConditionEvaluator = new(JsEvaluator)

func NewJsEvaluator() *JsEvaluator {
	return &JsEvaluator{}
}

func (e *JsEvaluator) Evaluate(expression string, variables map[string]any) (bool, error) {
	if len(expression) == 0 {
		return false, fmt.Errorf("empty condition expression")
	}
	vm := goja.New()
	data, err := json.Marshal(variables)
	if err != nil {
		return false, err
	}
	if _, err := vm.RunString(fmt.Sprintf("var $ = %s;", data)); err != nil {
		return false, fmt.Errorf("error binding variables: %w", err)
	}
	for k, v := range variables {
		if err := vm.Set(k, v); err != nil {
			return false, err
		}
	}
	val, err := vm.RunString(expression)
	if err != nil {
		return false, fmt.Errorf("error evaluating expression %q: %w", expression, err)
	}
	return val.ToBoolean(), nil
}
