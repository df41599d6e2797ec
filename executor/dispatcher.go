package executor

import (
	"github.com/procflow/procflow/logger"
	"github.com/procflow/procflow/model"
	"go.uber.org/zap"
)

var _ DeviceDispatcher = new(LogDispatcher)

// LogDispatcher acknowledges every command without talking to a real
// device. It is the default wiring; deployments register their own
// DeviceDispatcher against their device transport.
type LogDispatcher struct{}

func (LogDispatcher) Dispatch(action *model.DeviceAction) (map[string]any, error) {
	logger.Info("dispatching device action",
		zap.String("actionId", action.Id),
		zap.String("deviceId", action.DeviceId),
		zap.String("actionType", action.ActionType))
	return map[string]any{"acknowledged": true}, nil
}
