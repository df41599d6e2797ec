package executor

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/procflow/procflow/engine"
	"github.com/procflow/procflow/logger"
	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/persistence"
	"github.com/procflow/procflow/util"
	"go.uber.org/zap"
)

// DeviceDispatcher sends one command to a device and returns the device
// response. Implementations talk to whatever device transport the
// deployment uses.
type DeviceDispatcher interface {
	Dispatch(action *model.DeviceAction) (map[string]any, error)
}

const maxRetryDelay = 10 * time.Minute

// RetryDelay is the backoff before attempt retryCount+1, doubling from
// 30s and capped at maxRetryDelay.
func RetryDelay(retryCount int) time.Duration {
	delay := 30 * time.Second
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return delay
}

var _ engine.NodeExecutor = new(DeviceActionExecutor)

// DeviceActionExecutor issues one device command per node execution.
// A failed dispatch with retries remaining schedules the action for the
// retry sweeper and lets the flow continue; a failed dispatch with no
// retries configured fails the node.
type DeviceActionExecutor struct {
	actions    persistence.DeviceActionDao
	dispatcher DeviceDispatcher
}

func NewDeviceActionExecutor(actions persistence.DeviceActionDao, dispatcher DeviceDispatcher) *DeviceActionExecutor {
	return &DeviceActionExecutor{actions: actions, dispatcher: dispatcher}
}

func (d *DeviceActionExecutor) Execute(instance *model.FlowInstance, node *model.FlowNode, input map[string]any) (map[string]any, error) {
	deviceId := propString(node, "deviceId")
	actionType := propString(node, "actionType")
	if deviceId == "" || actionType == "" {
		return nil, fmt.Errorf("device action node %s missing deviceId or actionType", node.Id)
	}
	now := time.Now()
	action := &model.DeviceAction{
		Id:             uuid.New().String(),
		FlowInstanceId: instance.Id,
		NodeId:         node.Id,
		DeviceId:       deviceId,
		DeviceType:     propString(node, "deviceType"),
		ActionType:     actionType,
		Parameters:     util.ResolveParams(input, propMap(node, "parameters")),
		Status:         model.DEVICE_ACTION_RUNNING,
		StartTime:      &now,
		MaxRetries:     propInt(node, "maxRetries"),
	}
	if err := d.actions.Save(action); err != nil {
		return nil, err
	}

	result, err := d.dispatcher.Dispatch(action)
	if err != nil {
		return d.handleFailure(action, err)
	}

	completed := time.Now()
	action.Status = model.DEVICE_ACTION_COMPLETED
	action.CompletionTime = &completed
	action.Result = result
	if err := d.actions.Save(action); err != nil {
		return nil, err
	}
	output := map[string]any{"deviceActionId": action.Id}
	if out := propString(node, "outputVariable"); out != "" {
		output[out] = result
	}
	return output, nil
}

func (d *DeviceActionExecutor) handleFailure(action *model.DeviceAction, cause error) (map[string]any, error) {
	action.ErrorMessage = cause.Error()
	if action.MaxRetries <= 0 {
		failed := time.Now()
		action.Status = model.DEVICE_ACTION_FAILED
		action.CompletionTime = &failed
		if err := d.actions.Save(action); err != nil {
			logger.Error("error persisting failed device action",
				zap.String("actionId", action.Id), zap.Error(err))
		}
		return nil, fmt.Errorf("device action %s failed: %w", action.Id, cause)
	}
	due := time.Now().Add(RetryDelay(action.RetryCount))
	action.Status = model.DEVICE_ACTION_RETRY_SCHEDULED
	action.ScheduledTime = &due
	if err := d.actions.Save(action); err != nil {
		return nil, err
	}
	logger.Warn("device action dispatch failed, retry scheduled",
		zap.String("actionId", action.Id),
		zap.String("deviceId", action.DeviceId),
		zap.Time("scheduledTime", due),
		zap.Error(cause))
	return map[string]any{
		"deviceActionId":     action.Id,
		"deviceActionStatus": string(model.DEVICE_ACTION_RETRY_SCHEDULED),
	}, nil
}
