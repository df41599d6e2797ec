package executor

import (
	"fmt"

	"github.com/procflow/procflow/engine"
	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/util"
)

// SubProcessRunner creates and starts child instances. The instance
// service implements it; the indirection keeps this package from
// depending on instance creation wiring.
type SubProcessRunner interface {
	CreateChild(parentInstanceId string, definitionId string, variables map[string]any) (*model.FlowInstance, error)
	Start(instanceId string) (*model.FlowInstance, error)
}

var _ engine.NodeExecutor = new(SubProcessExecutor)

// SubProcessExecutor spawns a child instance of the referenced
// definition. Child locks are independent of the parent's, so starting
// the child while the parent's lock is held cannot deadlock.
type SubProcessExecutor struct {
	runner SubProcessRunner
}

func NewSubProcessExecutor(runner SubProcessRunner) *SubProcessExecutor {
	return &SubProcessExecutor{runner: runner}
}

func (s *SubProcessExecutor) Execute(instance *model.FlowInstance, node *model.FlowNode, input map[string]any) (map[string]any, error) {
	definitionId := propString(node, "definitionId")
	if definitionId == "" {
		return nil, fmt.Errorf("sub process node %s has no definitionId", node.Id)
	}
	childVars := util.ResolveParams(input, propMap(node, "parameters"))
	child, err := s.runner.CreateChild(instance.Id, definitionId, childVars)
	if err != nil {
		return nil, err
	}
	child, err = s.runner.Start(child.Id)
	if err != nil {
		return nil, err
	}
	return map[string]any{"subProcessInstanceId": child.Id}, nil
}
