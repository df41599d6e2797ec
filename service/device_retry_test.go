package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/persistence"
	"github.com/procflow/procflow/persistence/inmem"
	"github.com/stretchr/testify/require"
)

type scriptedDispatcher struct {
	err      error
	attempts int
}

func (s *scriptedDispatcher) Dispatch(action *model.DeviceAction) (map[string]any, error) {
	s.attempts++
	if s.err != nil {
		return nil, s.err
	}
	return map[string]any{"ack": true}, nil
}

func scheduleAction(t *testing.T, dao persistence.DeviceActionDao, maxRetries int) *model.DeviceAction {
	t.Helper()
	past := time.Now().Add(-time.Minute)
	action := &model.DeviceAction{
		Id:             uuid.New().String(),
		FlowInstanceId: "i1",
		NodeId:         "d1",
		DeviceId:       "dev-1",
		ActionType:     "switch_on",
		Status:         model.DEVICE_ACTION_RETRY_SCHEDULED,
		ScheduledTime:  &past,
		MaxRetries:     maxRetries,
	}
	require.NoError(t, dao.Save(action))
	return action
}

func TestRetrySweep(t *testing.T) {
	var wg sync.WaitGroup

	t.Run("due action retried successfully", func(t *testing.T) {
		storage := inmem.NewStorage()
		dispatcher := &scriptedDispatcher{}
		sweeper := NewDeviceRetrySweeper(storage.DeviceActions, dispatcher, time.Minute, &wg)
		action := scheduleAction(t, storage.DeviceActions, 3)

		sweeper.sweep()

		require.Equal(t, 1, dispatcher.attempts)
		stored, err := storage.DeviceActions.Get(action.Id)
		require.NoError(t, err)
		require.Equal(t, model.DEVICE_ACTION_COMPLETED, stored.Status)
		require.Equal(t, 1, stored.RetryCount)
		require.NotNil(t, stored.CompletionTime)
	})

	t.Run("retries exhausted", func(t *testing.T) {
		storage := inmem.NewStorage()
		dispatcher := &scriptedDispatcher{err: fmt.Errorf("still offline")}
		sweeper := NewDeviceRetrySweeper(storage.DeviceActions, dispatcher, time.Minute, &wg)
		action := scheduleAction(t, storage.DeviceActions, 2)

		sweeper.sweep()
		stored, err := storage.DeviceActions.Get(action.Id)
		require.NoError(t, err)
		require.Equal(t, model.DEVICE_ACTION_RETRY_SCHEDULED, stored.Status)
		require.Equal(t, 1, stored.RetryCount)

		// pull the schedule back so the next sweep picks it up
		past := time.Now().Add(-time.Second)
		stored.ScheduledTime = &past
		require.NoError(t, storage.DeviceActions.Save(stored))

		sweeper.sweep()
		stored, err = storage.DeviceActions.Get(action.Id)
		require.NoError(t, err)
		require.Equal(t, model.DEVICE_ACTION_FAILED, stored.Status)
		require.Equal(t, 2, stored.RetryCount)
		require.Equal(t, "still offline", stored.ErrorMessage)
	})

	t.Run("nothing due", func(t *testing.T) {
		storage := inmem.NewStorage()
		dispatcher := &scriptedDispatcher{}
		sweeper := NewDeviceRetrySweeper(storage.DeviceActions, dispatcher, time.Minute, &wg)

		future := time.Now().Add(time.Hour)
		action := scheduleAction(t, storage.DeviceActions, 3)
		action.ScheduledTime = &future
		require.NoError(t, storage.DeviceActions.Save(action))

		sweeper.sweep()
		require.Equal(t, 0, dispatcher.attempts)
	})
}
