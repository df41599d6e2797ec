package executor

import (
	"fmt"
	"testing"
	"time"

	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/persistence/inmem"
	"github.com/stretchr/testify/require"
)

func TestTaskExecutor(t *testing.T) {
	task := NewTaskExecutor()
	instance := &model.FlowInstance{Id: "i1"}
	node := &model.FlowNode{
		Id:   "n1",
		Type: model.NODE_TYPE_TASK,
		Properties: map[string]any{
			"parameters": map[string]any{
				"target": "{$.deviceId}",
				"label":  "plain",
			},
		},
	}
	output, err := task.Execute(instance, node, map[string]any{"deviceId": "dev-9"})
	require.NoError(t, err)
	require.Equal(t, "dev-9", output["target"])
	require.Equal(t, "plain", output["label"])

	node.Properties["outputVariable"] = "taskResult"
	output, err = task.Execute(instance, node, map[string]any{"deviceId": "dev-9"})
	require.NoError(t, err)
	require.Equal(t, "dev-9", output["taskResult"].(map[string]any)["target"])

	bare := &model.FlowNode{Id: "n2", Type: model.NODE_TYPE_TASK}
	output, err = task.Execute(instance, bare, nil)
	require.NoError(t, err)
	require.Nil(t, output)
}

type staticEvaluator struct {
	result bool
	err    error
}

func (s staticEvaluator) Evaluate(expression string, variables map[string]any) (bool, error) {
	return s.result, s.err
}

func TestConditionExecutor(t *testing.T) {
	instance := &model.FlowInstance{Id: "i1"}
	node := &model.FlowNode{
		Id:         "c1",
		Type:       model.NODE_TYPE_CONDITION,
		Properties: map[string]any{"expression": "v > 1"},
	}

	cond := NewConditionExecutor(staticEvaluator{result: true})
	output, err := cond.Execute(instance, node, map[string]any{"v": 2})
	require.NoError(t, err)
	require.Equal(t, true, output["conditionResult"])

	node.Properties["outputVariable"] = "checked"
	output, err = cond.Execute(instance, node, nil)
	require.NoError(t, err)
	require.Equal(t, true, output["checked"])

	_, err = cond.Execute(instance, &model.FlowNode{Id: "c2", Properties: map[string]any{}}, nil)
	require.Error(t, err)

	cond = NewConditionExecutor(staticEvaluator{err: fmt.Errorf("bad expression")})
	_, err = cond.Execute(instance, node, nil)
	require.Error(t, err)
}

type stubDispatcher struct {
	result   map[string]any
	err      error
	attempts int
}

func (s *stubDispatcher) Dispatch(action *model.DeviceAction) (map[string]any, error) {
	s.attempts++
	return s.result, s.err
}

func deviceNode(maxRetries int) *model.FlowNode {
	return &model.FlowNode{
		Id:   "d1",
		Type: model.NODE_TYPE_DEVICE_ACTION,
		Properties: map[string]any{
			"deviceId":   "dev-1",
			"actionType": "switch_on",
			"maxRetries": maxRetries,
			"parameters": map[string]any{"level": "{$.level}"},
		},
	}
}

func TestDeviceActionExecutor(t *testing.T) {
	instance := &model.FlowInstance{Id: "i1"}

	t.Run("successful dispatch completes the action", func(t *testing.T) {
		storage := inmem.NewStorage()
		dispatcher := &stubDispatcher{result: map[string]any{"ack": true}}
		d := NewDeviceActionExecutor(storage.DeviceActions, dispatcher)

		output, err := d.Execute(instance, deviceNode(0), map[string]any{"level": 3})
		require.NoError(t, err)
		require.Equal(t, 1, dispatcher.attempts)

		actionId := output["deviceActionId"].(string)
		action, err := storage.DeviceActions.Get(actionId)
		require.NoError(t, err)
		require.Equal(t, model.DEVICE_ACTION_COMPLETED, action.Status)
		require.EqualValues(t, 3, action.Parameters["level"])
		require.NotNil(t, action.CompletionTime)
	})

	t.Run("failure with retries schedules a retry", func(t *testing.T) {
		storage := inmem.NewStorage()
		dispatcher := &stubDispatcher{err: fmt.Errorf("device offline")}
		d := NewDeviceActionExecutor(storage.DeviceActions, dispatcher)

		output, err := d.Execute(instance, deviceNode(3), nil)
		require.NoError(t, err)
		require.Equal(t, string(model.DEVICE_ACTION_RETRY_SCHEDULED), output["deviceActionStatus"])

		action, err := storage.DeviceActions.Get(output["deviceActionId"].(string))
		require.NoError(t, err)
		require.Equal(t, model.DEVICE_ACTION_RETRY_SCHEDULED, action.Status)
		require.NotNil(t, action.ScheduledTime)
		require.Equal(t, "device offline", action.ErrorMessage)

		due, err := storage.DeviceActions.ListDueForRetry(time.Now().Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, due, 1)
	})

	t.Run("failure without retries fails the node", func(t *testing.T) {
		storage := inmem.NewStorage()
		d := NewDeviceActionExecutor(storage.DeviceActions, &stubDispatcher{err: fmt.Errorf("device offline")})

		_, err := d.Execute(instance, deviceNode(0), nil)
		require.Error(t, err)

		actions, err := storage.DeviceActions.ListByInstance("i1")
		require.NoError(t, err)
		require.Len(t, actions, 1)
		require.Equal(t, model.DEVICE_ACTION_FAILED, actions[0].Status)
	})
}

func TestRetryDelay(t *testing.T) {
	require.Equal(t, 30*time.Second, RetryDelay(0))
	require.Equal(t, 60*time.Second, RetryDelay(1))
	require.Equal(t, 120*time.Second, RetryDelay(2))
	require.Equal(t, maxRetryDelay, RetryDelay(20))
}

type stubRunner struct {
	created *model.FlowInstance
	started bool
}

func (s *stubRunner) CreateChild(parentInstanceId string, definitionId string, variables map[string]any) (*model.FlowInstance, error) {
	s.created = &model.FlowInstance{
		Id:               "child-1",
		DefinitionId:     definitionId,
		ParentInstanceId: parentInstanceId,
		Variables:        variables,
		Status:           model.INSTANCE_STATUS_CREATED,
	}
	return s.created, nil
}

func (s *stubRunner) Start(instanceId string) (*model.FlowInstance, error) {
	s.started = true
	s.created.Status = model.INSTANCE_STATUS_RUNNING
	return s.created, nil
}

func TestSubProcessExecutor(t *testing.T) {
	runner := &stubRunner{}
	sub := NewSubProcessExecutor(runner)
	instance := &model.FlowInstance{Id: "parent-1"}
	node := &model.FlowNode{
		Id:   "sp1",
		Type: model.NODE_TYPE_SUB_PROCESS,
		Properties: map[string]any{
			"definitionId": "def-2",
			"parameters":   map[string]any{"inherited": "{$.mode}"},
		},
	}

	output, err := sub.Execute(instance, node, map[string]any{"mode": "auto"})
	require.NoError(t, err)
	require.Equal(t, "child-1", output["subProcessInstanceId"])
	require.True(t, runner.started)
	require.Equal(t, "parent-1", runner.created.ParentInstanceId)
	require.Equal(t, "auto", runner.created.Variables["inherited"])

	_, err = sub.Execute(instance, &model.FlowNode{Id: "sp2", Properties: map[string]any{}}, nil)
	require.Error(t, err)
}
