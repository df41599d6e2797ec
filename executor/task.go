package executor

import (
	"github.com/procflow/procflow/engine"
	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/util"
)

var _ engine.NodeExecutor = new(TaskExecutor)

// TaskExecutor resolves the node's declared parameters against the
// variable scope and publishes them as the node's output. Parameter
// values may reference scope values with {$.path} jsonpath tokens.
type TaskExecutor struct{}

func NewTaskExecutor() *TaskExecutor {
	return &TaskExecutor{}
}

func (t *TaskExecutor) Execute(instance *model.FlowInstance, node *model.FlowNode, input map[string]any) (map[string]any, error) {
	params := propMap(node, "parameters")
	if params == nil {
		return nil, nil
	}
	resolved := util.ResolveParams(input, params)
	if out := propString(node, "outputVariable"); out != "" {
		return map[string]any{out: resolved}, nil
	}
	return resolved, nil
}
