package executor

import (
	"github.com/procflow/procflow/model"
)

// property helpers tolerate both missing keys and the loose typing of a
// decoded json document.

func propString(node *model.FlowNode, key string) string {
	if v, ok := node.Properties[key].(string); ok {
		return v
	}
	return ""
}

func propInt(node *model.FlowNode, key string) int {
	switch v := node.Properties[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func propMap(node *model.FlowNode, key string) map[string]any {
	if v, ok := node.Properties[key].(map[string]any); ok {
		return v
	}
	return nil
}
