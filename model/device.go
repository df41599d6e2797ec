package model

import "time"

type DeviceActionStatus string

const DEVICE_ACTION_PENDING DeviceActionStatus = "PENDING"
const DEVICE_ACTION_RUNNING DeviceActionStatus = "RUNNING"
const DEVICE_ACTION_COMPLETED DeviceActionStatus = "COMPLETED"
const DEVICE_ACTION_RETRY_SCHEDULED DeviceActionStatus = "RETRY_SCHEDULED"
const DEVICE_ACTION_FAILED DeviceActionStatus = "FAILED"

type DeviceAction struct {
	Id             string             `json:"id"`
	FlowInstanceId string             `json:"flowInstanceId"`
	NodeId         string             `json:"nodeId"`
	DeviceId       string             `json:"deviceId"`
	DeviceType     string             `json:"deviceType,omitempty"`
	ActionType     string             `json:"actionType"`
	Parameters     map[string]any     `json:"parameters,omitempty"`
	Status         DeviceActionStatus `json:"status"`
	ScheduledTime  *time.Time         `json:"scheduledTime,omitempty"`
	StartTime      *time.Time         `json:"startTime,omitempty"`
	CompletionTime *time.Time         `json:"completionTime,omitempty"`
	Result         map[string]any     `json:"result,omitempty"`
	ErrorMessage   string             `json:"errorMessage,omitempty"`
	RetryCount     int                `json:"retryCount"`
	MaxRetries     int                `json:"maxRetries"`
}
