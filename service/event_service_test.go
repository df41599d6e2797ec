package service

import (
	"sync"
	"testing"
	"time"

	"github.com/procflow/procflow/model"
	"github.com/stretchr/testify/require"
)

func newEventStack(t *testing.T) (*stack, *EventService, *model.FlowInstance) {
	t.Helper()
	s := newStack()
	def := s.publish(t, "waiting flow", waitDoc)
	instance, err := s.instances.CreateInstance(&model.CreateInstanceRequest{DefinitionId: def.Id, Name: "waiter"})
	require.NoError(t, err)
	_, err = s.instances.StartInstance(instance.Id)
	require.NoError(t, err)

	var wg sync.WaitGroup
	events := NewEventService(s.storage.Events, s.engine, &wg, 16)
	return s, events, instance
}

func TestTriggerResumesWaitNode(t *testing.T) {
	s, events, instance := newEventStack(t)

	active, err := s.instances.GetActiveNodes(instance.Id)
	require.NoError(t, err)
	require.Equal(t, []string{"w"}, active)

	handled, err := events.Trigger(&model.FlowEvent{
		EventType:      model.EVENT_TYPE_TIMER_TRIGGER,
		FlowInstanceId: instance.Id,
		Payload:        map[string]any{"firedAt": "07:00"},
	})
	require.NoError(t, err)
	require.True(t, handled)

	final, err := s.instances.GetInstance(instance.Id)
	require.NoError(t, err)
	require.Equal(t, model.INSTANCE_STATUS_COMPLETED, final.Status)

	rows, err := events.ListByInstance(instance.Id)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, model.EVENT_STATUS_PROCESSED, rows[0].Status)
	require.NotNil(t, rows[0].ProcessingTime)
}

func TestTriggerWithoutListener(t *testing.T) {
	s, events, instance := newEventStack(t)

	// a device alarm only resumes EVENT nodes, not WAIT nodes
	handled, err := events.Trigger(&model.FlowEvent{
		EventType:      model.EVENT_TYPE_DEVICE_ALARM,
		FlowInstanceId: instance.Id,
	})
	require.NoError(t, err)
	require.False(t, handled)

	unchanged, err := s.instances.GetInstance(instance.Id)
	require.NoError(t, err)
	require.Equal(t, model.INSTANCE_STATUS_RUNNING, unchanged.Status)
	require.Equal(t, []string{"w"}, unchanged.ActiveNodeIds)

	rows, err := events.ListByInstance(instance.Id)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, model.EVENT_STATUS_IGNORED, rows[0].Status)
}

func TestTriggerUnknownEventType(t *testing.T) {
	_, events, instance := newEventStack(t)

	handled, err := events.Trigger(&model.FlowEvent{
		EventType:      "nobody_registered_this",
		FlowInstanceId: instance.Id,
	})
	require.NoError(t, err)
	require.False(t, handled)

	_, err = events.Trigger(&model.FlowEvent{})
	require.Error(t, err)
}

func TestPublishConsumesAsync(t *testing.T) {
	s, events, instance := newEventStack(t)
	events.Start()
	defer events.Stop()

	event := &model.FlowEvent{
		EventType:      model.EVENT_TYPE_TIMER_TRIGGER,
		FlowInstanceId: instance.Id,
	}
	require.NoError(t, events.Publish(event))

	require.Eventually(t, func() bool {
		stored, err := events.GetEvent(event.Id)
		return err == nil && stored.Status == model.EVENT_STATUS_PROCESSED
	}, 2*time.Second, 20*time.Millisecond)

	final, err := s.instances.GetInstance(instance.Id)
	require.NoError(t, err)
	require.Equal(t, model.INSTANCE_STATUS_COMPLETED, final.Status)
}
