package persistence

import (
	"fmt"
	"time"

	"github.com/procflow/procflow/model"
)

type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return fmt.Sprintf("storage layer error %s", e.Message)
}

type InstanceDao interface {
	Save(instance *model.FlowInstance) error
	Get(id string) (*model.FlowInstance, error)
	Delete(id string) error
	List() ([]*model.FlowInstance, error)
}

type DefinitionDao interface {
	Save(def *model.FlowDefinition) error
	Get(id string) (*model.FlowDefinition, error)
	Delete(id string) error
	List() ([]*model.FlowDefinition, error)
}

type VersionDao interface {
	Save(version *model.FlowVersion) error
	Get(id string) (*model.FlowVersion, error)
	ListByDefinition(definitionId string) ([]*model.FlowVersion, error)
}

type EventDao interface {
	Save(event *model.FlowEvent) error
	Get(id string) (*model.FlowEvent, error)
	ListByInstance(instanceId string) ([]*model.FlowEvent, error)
	ListUnprocessedByInstance(instanceId string) ([]*model.FlowEvent, error)
}

// ExecutionLogDao is append-only; entries are never updated or removed.
type ExecutionLogDao interface {
	Append(entry *model.ExecutionLog) error
	ListByInstance(instanceId string) ([]*model.ExecutionLog, error)
}

type DeviceActionDao interface {
	Save(action *model.DeviceAction) error
	Get(id string) (*model.DeviceAction, error)
	ListByInstance(instanceId string) ([]*model.DeviceAction, error)
	ListDueForRetry(now time.Time) ([]*model.DeviceAction, error)
}

// Storage bundles the daos a composition root wires together.
type Storage struct {
	Instances     InstanceDao
	Definitions   DefinitionDao
	Versions      VersionDao
	Events        EventDao
	ExecutionLogs ExecutionLogDao
	DeviceActions DeviceActionDao
}
