package model

import "time"

type EventStatus string

const EVENT_STATUS_UNPROCESSED EventStatus = "UNPROCESSED"
const EVENT_STATUS_PROCESSED EventStatus = "PROCESSED"
const EVENT_STATUS_IGNORED EventStatus = "IGNORED"

const EVENT_TYPE_DEVICE_STATUS_CHANGE string = "device_status_change"
const EVENT_TYPE_DEVICE_DATA_REPORT string = "device_data_report"
const EVENT_TYPE_DEVICE_ALARM string = "device_alarm"
const EVENT_TYPE_TIMER_TRIGGER string = "timer_trigger"
const EVENT_TYPE_USER_OPERATION string = "user_operation"
const EVENT_TYPE_CUSTOM string = "custom_event"

type FlowEvent struct {
	Id             string         `json:"id"`
	EventType      string         `json:"eventType"`
	EventName      string         `json:"eventName,omitempty"`
	SourceId       string         `json:"sourceId,omitempty"`
	SourceType     string         `json:"sourceType,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
	OccurrenceTime time.Time      `json:"occurrenceTime"`
	ProcessingTime *time.Time     `json:"processingTime,omitempty"`
	Status         EventStatus    `json:"status"`
	FlowInstanceId string         `json:"flowInstanceId,omitempty"`
	NodeId         string         `json:"nodeId,omitempty"`
	Priority       string         `json:"priority,omitempty"`
}
