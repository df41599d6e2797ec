package graph

import (
	"encoding/json"

	"github.com/procflow/procflow/model"
)

// Parse decodes a stored flow document into a FlowGraph and validates it.
func Parse(flowData []byte) (*model.FlowGraph, error) {
	var g model.FlowGraph
	if err := json.Unmarshal(flowData, &g); err != nil {
		return nil, model.NewValidationError(model.VALIDATION_BAD_GRAPH, "malformed flow document: %v", err)
	}
	if err := Validate(&g); err != nil {
		return nil, err
	}
	return &g, nil
}

// Validate checks the structural invariants: every edge references known
// nodes, exactly one START node exists and at least one END node is
// reachable from it.
func Validate(g *model.FlowGraph) error {
	if len(g.Nodes) == 0 {
		return model.NewValidationError(model.VALIDATION_BAD_GRAPH, "graph has no nodes")
	}
	nodeIds := make(map[string]model.NodeType, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.Id == "" {
			return model.NewValidationError(model.VALIDATION_BAD_GRAPH, "node with empty id")
		}
		if _, ok := nodeIds[n.Id]; ok {
			return model.NewValidationError(model.VALIDATION_BAD_GRAPH, "duplicate node id %s", n.Id)
		}
		nodeIds[n.Id] = n.Type
	}
	for _, e := range g.Edges {
		if _, ok := nodeIds[e.Source]; !ok {
			return model.NewValidationError(model.VALIDATION_BAD_EDGE, "edge %s references unknown source node %s", e.Id, e.Source)
		}
		if _, ok := nodeIds[e.Target]; !ok {
			return model.NewValidationError(model.VALIDATION_BAD_EDGE, "edge %s references unknown target node %s", e.Id, e.Target)
		}
	}
	start, err := FindStartNode(g)
	if err != nil {
		return err
	}
	if !endReachable(g, start.Id, nodeIds) {
		return model.NewValidationError(model.VALIDATION_NO_END_NODE, "no END node reachable from start node %s", start.Id)
	}
	return nil
}

func endReachable(g *model.FlowGraph, startId string, nodeIds map[string]model.NodeType) bool {
	visited := map[string]bool{startId: true}
	queue := []string{startId}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if nodeIds[current] == model.NODE_TYPE_END {
			return true
		}
		for _, e := range g.Edges {
			if e.Source == current && !visited[e.Target] {
				visited[e.Target] = true
				queue = append(queue, e.Target)
			}
		}
	}
	return false
}

// FindStartNode returns the unique START node.
func FindStartNode(g *model.FlowGraph) (*model.FlowNode, error) {
	var start *model.FlowNode
	for i := range g.Nodes {
		if g.Nodes[i].Type == model.NODE_TYPE_START {
			if start != nil {
				return nil, model.NewValidationError(model.VALIDATION_MULTIPLE_START_NODES, "graph has more than one START node")
			}
			start = &g.Nodes[i]
		}
	}
	if start == nil {
		return nil, model.NewValidationError(model.VALIDATION_NO_START_NODE, "graph has no START node")
	}
	return start, nil
}

func FindNode(g *model.FlowGraph, nodeId string) (*model.FlowNode, error) {
	for i := range g.Nodes {
		if g.Nodes[i].Id == nodeId {
			return &g.Nodes[i], nil
		}
	}
	return nil, model.NewValidationError(model.VALIDATION_NODE_NOT_FOUND, "node %s not found in graph", nodeId)
}

// OutgoingEdges returns edges leaving nodeId in declaration order. The
// order is the tie-break for exclusive gateway branch selection.
func OutgoingEdges(g *model.FlowGraph, nodeId string) []model.FlowEdge {
	var out []model.FlowEdge
	for _, e := range g.Edges {
		if e.Source == nodeId {
			out = append(out, e)
		}
	}
	return out
}
