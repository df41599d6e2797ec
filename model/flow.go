package model

type NodeType string

const NODE_TYPE_START NodeType = "START"
const NODE_TYPE_END NodeType = "END"
const NODE_TYPE_TASK NodeType = "TASK"
const NODE_TYPE_CONDITION NodeType = "CONDITION"
const NODE_TYPE_DEVICE_ACTION NodeType = "DEVICE_ACTION"
const NODE_TYPE_SUB_PROCESS NodeType = "SUB_PROCESS"
const NODE_TYPE_WAIT NodeType = "WAIT"
const NODE_TYPE_PARALLEL_GATEWAY NodeType = "PARALLEL_GATEWAY"
const NODE_TYPE_EXCLUSIVE_GATEWAY NodeType = "EXCLUSIVE_GATEWAY"
const NODE_TYPE_EVENT NodeType = "EVENT"

type FlowGraph struct {
	Id        string         `json:"id"`
	Name      string         `json:"name"`
	Nodes     []FlowNode     `json:"nodes"`
	Edges     []FlowEdge     `json:"edges"`
	Variables map[string]any `json:"variables"`
	Metadata  map[string]any `json:"metadata"`
}

type FlowNode struct {
	Id         string         `json:"id"`
	Type       NodeType       `json:"type"`
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties"`
}

type FlowEdge struct {
	Id                  string `json:"id"`
	Source              string `json:"source"`
	Target              string `json:"target"`
	IsConditional       bool   `json:"isConditional"`
	ConditionExpression string `json:"conditionExpression"`
}
