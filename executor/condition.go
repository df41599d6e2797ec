package executor

import (
	"fmt"

	"github.com/procflow/procflow/engine"
	"github.com/procflow/procflow/graph"
	"github.com/procflow/procflow/model"
)

var _ engine.NodeExecutor = new(ConditionExecutor)

// ConditionExecutor evaluates the node's expression against the scope
// and writes the boolean result back, so the outgoing edges can branch
// on it.
type ConditionExecutor struct {
	evaluator graph.ConditionEvaluator
}

func NewConditionExecutor(evaluator graph.ConditionEvaluator) *ConditionExecutor {
	return &ConditionExecutor{evaluator: evaluator}
}

func (c *ConditionExecutor) Execute(instance *model.FlowInstance, node *model.FlowNode, input map[string]any) (map[string]any, error) {
	expression := propString(node, "expression")
	if expression == "" {
		return nil, fmt.Errorf("condition node %s has no expression", node.Id)
	}
	result, err := c.evaluator.Evaluate(expression, input)
	if err != nil {
		return nil, err
	}
	out := propString(node, "outputVariable")
	if out == "" {
		out = "conditionResult"
	}
	return map[string]any{out: result}, nil
}
