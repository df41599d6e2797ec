package util

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/oliveagle/jsonpath"
)

var tokenRe = regexp.MustCompile("{(.*?)}")

// ResolveParams substitutes {$.path} jsonpath tokens in a node's
// parameter map against the instance variable scope. Maps and lists are
// resolved recursively; non-string leaves pass through untouched.
func ResolveParams(variables map[string]any, params map[string]any) map[string]any {
	output := make(map[string]any, len(params))
	for k, v := range params {
		output[k] = resolveValue(variables, v)
	}
	return output
}

func resolveValue(variables map[string]any, v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = resolveValue(variables, inner)
		}
		return out
	case []any:
		out := make([]any, 0, len(val))
		for _, inner := range val {
			out = append(out, resolveValue(variables, inner))
		}
		return out
	case string:
		return resolveString(variables, val)
	default:
		return v
	}
}

func resolveString(variables map[string]any, s string) any {
	tokens := tokenRe.FindAllString(s, -1)
	if len(tokens) == 0 {
		return s
	}
	// a string that is exactly one token keeps the looked-up value's type
	if len(tokens) == 1 && tokens[0] == s {
		expr := strings.TrimSuffix(strings.TrimPrefix(s, "{"), "}")
		if strings.HasPrefix(expr, "$") {
			value, err := jsonpath.JsonPathLookup(variables, expr)
			if err == nil {
				return value
			}
		}
		return s
	}
	result := s
	for _, token := range tokens {
		expr := strings.TrimSuffix(strings.TrimPrefix(token, "{"), "}")
		if !strings.HasPrefix(expr, "$") {
			continue
		}
		value, err := jsonpath.JsonPathLookup(variables, expr)
		if err != nil {
			continue
		}
		result = strings.ReplaceAll(result, token, fmt.Sprintf("%v", value))
	}
	return result
}
