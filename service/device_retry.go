package service

import (
	"sync"
	"time"

	"github.com/procflow/procflow/executor"
	"github.com/procflow/procflow/logger"
	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/persistence"
	"github.com/procflow/procflow/util"
	"go.uber.org/zap"
)

// DeviceRetrySweeper periodically re-dispatches device actions whose
// retry is due. Each sweep handles every due action once; an action
// that fails again is pushed out by the backoff schedule until its
// retries are exhausted.
type DeviceRetrySweeper struct {
	actions    persistence.DeviceActionDao
	dispatcher executor.DeviceDispatcher
	ticker     *util.TickWorker
}

func NewDeviceRetrySweeper(actions persistence.DeviceActionDao, dispatcher executor.DeviceDispatcher, interval time.Duration, wg *sync.WaitGroup) *DeviceRetrySweeper {
	s := &DeviceRetrySweeper{actions: actions, dispatcher: dispatcher}
	s.ticker = util.NewTickWorker("device-retry-sweeper", interval, s.sweep, wg)
	return s
}

func (s *DeviceRetrySweeper) Start() {
	s.ticker.Start()
}

func (s *DeviceRetrySweeper) Stop() {
	s.ticker.Stop()
}

func (s *DeviceRetrySweeper) sweep() {
	due, err := s.actions.ListDueForRetry(time.Now())
	if err != nil {
		logger.Error("error listing device actions due for retry", zap.Error(err))
		return
	}
	for _, action := range due {
		s.retry(action)
	}
}

func (s *DeviceRetrySweeper) retry(action *model.DeviceAction) {
	action.RetryCount++
	action.Status = model.DEVICE_ACTION_RUNNING
	action.ScheduledTime = nil
	if err := s.actions.Save(action); err != nil {
		logger.Error("error claiming device action for retry",
			zap.String("actionId", action.Id), zap.Error(err))
		return
	}

	result, err := s.dispatcher.Dispatch(action)
	now := time.Now()
	if err == nil {
		action.Status = model.DEVICE_ACTION_COMPLETED
		action.CompletionTime = &now
		action.Result = result
		action.ErrorMessage = ""
		if err := s.actions.Save(action); err != nil {
			logger.Error("error persisting retried device action",
				zap.String("actionId", action.Id), zap.Error(err))
		}
		logger.Info("device action retry succeeded",
			zap.String("actionId", action.Id),
			zap.Int("retryCount", action.RetryCount))
		return
	}

	action.ErrorMessage = err.Error()
	if action.RetryCount >= action.MaxRetries {
		action.Status = model.DEVICE_ACTION_FAILED
		action.CompletionTime = &now
		logger.Error("device action exhausted retries",
			zap.String("actionId", action.Id),
			zap.Int("retryCount", action.RetryCount),
			zap.Error(err))
	} else {
		next := now.Add(executor.RetryDelay(action.RetryCount))
		action.Status = model.DEVICE_ACTION_RETRY_SCHEDULED
		action.ScheduledTime = &next
		logger.Warn("device action retry failed, rescheduled",
			zap.String("actionId", action.Id),
			zap.Int("retryCount", action.RetryCount),
			zap.Time("scheduledTime", next))
	}
	if err := s.actions.Save(action); err != nil {
		logger.Error("error persisting device action after retry",
			zap.String("actionId", action.Id), zap.Error(err))
	}
}
