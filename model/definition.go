package model

import "time"

type FlowStatus string

const FLOW_STATUS_DRAFT FlowStatus = "DRAFT"
const FLOW_STATUS_PUBLISHED FlowStatus = "PUBLISHED"
const FLOW_STATUS_DISABLED FlowStatus = "DISABLED"
const FLOW_STATUS_ARCHIVED FlowStatus = "ARCHIVED"

type FlowDefinition struct {
	Id             string     `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Type           string     `json:"type"`
	Tags           []string   `json:"tags,omitempty"`
	CurrentVersion int        `json:"currentVersion"`
	Status         FlowStatus `json:"status"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// FlowVersion holds one immutable snapshot of a definition's graph.
// FlowData is the raw graph document; it is parsed into a FlowGraph
// only by the metadata service.
type FlowVersion struct {
	Id           string     `json:"id"`
	DefinitionId string     `json:"definitionId"`
	Version      int        `json:"version"`
	Description  string     `json:"description"`
	FlowData     string     `json:"flowData"`
	Status       FlowStatus `json:"status"`
	IsCurrent    bool       `json:"isCurrent"`
	PublishTime  *time.Time `json:"publishTime,omitempty"`
	PublishedBy  string     `json:"publishedBy,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}
