package redis

import (
	"github.com/procflow/procflow/config"
	"github.com/procflow/procflow/persistence"
)

// NewStorage builds the redis-backed storage bundle sharing one client.
func NewStorage(conf config.RedisStorageConfig) *persistence.Storage {
	base := newBaseDao(conf)
	return &persistence.Storage{
		Instances:     NewInstanceDao(base),
		Definitions:   NewDefinitionDao(base),
		Versions:      NewVersionDao(base),
		Events:        NewEventDao(base),
		ExecutionLogs: NewExecutionLogDao(base),
		DeviceActions: NewDeviceActionDao(base),
	}
}
