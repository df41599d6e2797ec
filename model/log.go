package model

import "time"

type ExecutionType string

const EXECUTION_TYPE_FLOW_START ExecutionType = "flow_start"
const EXECUTION_TYPE_FLOW_END ExecutionType = "flow_end"
const EXECUTION_TYPE_FLOW_SUSPEND ExecutionType = "flow_suspend"
const EXECUTION_TYPE_FLOW_RESUME ExecutionType = "flow_resume"
const EXECUTION_TYPE_FLOW_CANCEL ExecutionType = "flow_cancel"
const EXECUTION_TYPE_NODE_EXECUTION ExecutionType = "node_execution"
const EXECUTION_TYPE_NODE_SKIP ExecutionType = "node_skip"
const EXECUTION_TYPE_CONDITION_EVALUATION ExecutionType = "condition_evaluation"
const EXECUTION_TYPE_DEVICE_ACTION ExecutionType = "device_action"
const EXECUTION_TYPE_EVENT_TRIGGER ExecutionType = "event_trigger"
const EXECUTION_TYPE_VARIABLE_UPDATE ExecutionType = "variable_update"
const EXECUTION_TYPE_ERROR_HANDLING ExecutionType = "error_handling"

type ExecutionStatus string

const EXECUTION_STATUS_SUCCESS ExecutionStatus = "SUCCESS"
const EXECUTION_STATUS_FAILED ExecutionStatus = "FAILED"
const EXECUTION_STATUS_SKIPPED ExecutionStatus = "SKIPPED"
const EXECUTION_STATUS_WAITING ExecutionStatus = "WAITING"

// ExecutionLog is an append-only record of one engine step. Entries are
// never mutated after creation.
type ExecutionLog struct {
	Id             string          `json:"id"`
	FlowInstanceId string          `json:"flowInstanceId"`
	NodeId         string          `json:"nodeId,omitempty"`
	NodeType       NodeType        `json:"nodeType,omitempty"`
	NodeName       string          `json:"nodeName,omitempty"`
	ExecutionType  ExecutionType   `json:"executionType"`
	Status         ExecutionStatus `json:"status"`
	ExecutionTime  time.Time       `json:"executionTime"`
	DurationMillis int64           `json:"durationMillis"`
	Input          map[string]any  `json:"input,omitempty"`
	Output         map[string]any  `json:"output,omitempty"`
	ErrorMessage   string          `json:"errorMessage,omitempty"`
}
