package executor

import (
	"github.com/procflow/procflow/engine"
	"github.com/procflow/procflow/model"
)

// Structural nodes carry no work of their own. START and END mark the
// graph boundary, the gateways only route, and the routing itself is
// decided from the outgoing edges after the node completes.

var _ engine.NodeExecutor = new(StartExecutor)
var _ engine.NodeExecutor = new(EndExecutor)
var _ engine.NodeExecutor = new(ParallelGatewayExecutor)
var _ engine.NodeExecutor = new(ExclusiveGatewayExecutor)
var _ engine.NodeExecutor = new(WaitExecutor)
var _ engine.NodeExecutor = new(EventNodeExecutor)

type StartExecutor struct{}

func (StartExecutor) Execute(instance *model.FlowInstance, node *model.FlowNode, input map[string]any) (map[string]any, error) {
	return nil, nil
}

type EndExecutor struct{}

func (EndExecutor) Execute(instance *model.FlowInstance, node *model.FlowNode, input map[string]any) (map[string]any, error) {
	return nil, nil
}

type ParallelGatewayExecutor struct{}

func (ParallelGatewayExecutor) Execute(instance *model.FlowInstance, node *model.FlowNode, input map[string]any) (map[string]any, error) {
	return nil, nil
}

type ExclusiveGatewayExecutor struct{}

func (ExclusiveGatewayExecutor) Execute(instance *model.FlowInstance, node *model.FlowNode, input map[string]any) (map[string]any, error) {
	return nil, nil
}

// WaitExecutor completes a WAIT node once something dispatches it. The
// node stays active until a timer or an external signal executes it;
// the dispatch input flows through as the node's output.
type WaitExecutor struct{}

func (WaitExecutor) Execute(instance *model.FlowInstance, node *model.FlowNode, input map[string]any) (map[string]any, error) {
	if out := propString(node, "outputVariable"); out != "" {
		return map[string]any{out: input}, nil
	}
	return nil, nil
}

// EventNodeExecutor completes an EVENT node when its awaited event is
// routed to it. The event payload arrives as input and is published
// into the scope under the node's outputVariable, if declared.
type EventNodeExecutor struct{}

func (EventNodeExecutor) Execute(instance *model.FlowInstance, node *model.FlowNode, input map[string]any) (map[string]any, error) {
	if out := propString(node, "outputVariable"); out != "" {
		payload := input["eventPayload"]
		if payload == nil {
			payload = input
		}
		return map[string]any{out: payload}, nil
	}
	return nil, nil
}
