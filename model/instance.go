package model

import "time"

type InstanceStatus string

const INSTANCE_STATUS_CREATED InstanceStatus = "CREATED"
const INSTANCE_STATUS_RUNNING InstanceStatus = "RUNNING"
const INSTANCE_STATUS_SUSPENDED InstanceStatus = "SUSPENDED"
const INSTANCE_STATUS_COMPLETED InstanceStatus = "COMPLETED"
const INSTANCE_STATUS_CANCELLED InstanceStatus = "CANCELLED"
const INSTANCE_STATUS_FAILED InstanceStatus = "FAILED"

func (s InstanceStatus) IsTerminal() bool {
	return s == INSTANCE_STATUS_COMPLETED || s == INSTANCE_STATUS_CANCELLED || s == INSTANCE_STATUS_FAILED
}

// FlowInstance is one execution of a flow version. The engine owns
// Status, ActiveNodeIds and Variables while the instance is live;
// serialization of those fields happens only at the persistence boundary.
type FlowInstance struct {
	Id               string         `json:"id"`
	DefinitionId     string         `json:"definitionId"`
	VersionId        string         `json:"versionId"`
	Version          int            `json:"version"`
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	Status           InstanceStatus `json:"status"`
	ActiveNodeIds    []string       `json:"activeNodeIds"`
	Variables        map[string]any `json:"variables"`
	StartTime        *time.Time     `json:"startTime,omitempty"`
	EndTime          *time.Time     `json:"endTime,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
	ParentInstanceId string         `json:"parentInstanceId,omitempty"`
	Priority         string         `json:"priority,omitempty"`
	Tags             []string       `json:"tags,omitempty"`
}
