package graph

import (
	"github.com/procflow/procflow/model"
)

// EvaluateEdge reports whether an edge may be followed. Unconditional
// edges always evaluate true.
func EvaluateEdge(edge model.FlowEdge, variables map[string]any, eval ConditionEvaluator) (bool, error) {
	if !edge.IsConditional {
		return true, nil
	}
	return eval.Evaluate(edge.ConditionExpression, variables)
}

// Successors computes the nodes to activate after node completes.
//
// EXCLUSIVE_GATEWAY follows the first conditional edge that evaluates
// true, in declaration order, falling back to the first edge marked
// non-conditional; no match is an execution error. PARALLEL_GATEWAY
// follows every edge. Any other node follows each edge whose condition
// holds, which allows conditional fan-out outside explicit gateways.
func Successors(g *model.FlowGraph, node *model.FlowNode, variables map[string]any, eval ConditionEvaluator) ([]*model.FlowNode, error) {
	edges := OutgoingEdges(g, node.Id)
	if len(edges) == 0 {
		return nil, nil
	}

	switch node.Type {
	case model.NODE_TYPE_EXCLUSIVE_GATEWAY:
		for _, e := range edges {
			if !e.IsConditional {
				continue
			}
			ok, err := eval.Evaluate(e.ConditionExpression, variables)
			if err != nil {
				return nil, model.ExecutionError{Code: model.EXECUTION_NO_MATCHING_BRANCH, NodeId: node.Id, Message: "branch condition failed", Cause: err}
			}
			if ok {
				return targets(g, e)
			}
		}
		for _, e := range edges {
			if !e.IsConditional {
				return targets(g, e)
			}
		}
		return nil, model.ExecutionError{Code: model.EXECUTION_NO_MATCHING_BRANCH, NodeId: node.Id, Message: "no outgoing edge matched and no default edge declared"}

	case model.NODE_TYPE_PARALLEL_GATEWAY:
		var out []*model.FlowNode
		for _, e := range edges {
			t, err := targets(g, e)
			if err != nil {
				return nil, err
			}
			out = append(out, t...)
		}
		return out, nil

	default:
		var out []*model.FlowNode
		for _, e := range edges {
			ok, err := EvaluateEdge(e, variables, eval)
			if err != nil {
				return nil, model.ExecutionError{Code: model.EXECUTION_NO_MATCHING_BRANCH, NodeId: node.Id, Message: "edge condition failed", Cause: err}
			}
			if !ok {
				continue
			}
			t, err := targets(g, e)
			if err != nil {
				return nil, err
			}
			out = append(out, t...)
		}
		return out, nil
	}
}

func targets(g *model.FlowGraph, e model.FlowEdge) ([]*model.FlowNode, error) {
	n, err := FindNode(g, e.Target)
	if err != nil {
		return nil, err
	}
	return []*model.FlowNode{n}, nil
}
