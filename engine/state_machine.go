package engine

import (
	"time"

	"github.com/procflow/procflow/model"
	"golang.org/x/exp/slices"
)

type Operation string

const OP_START Operation = "start"
const OP_SUSPEND Operation = "suspend"
const OP_RESUME Operation = "resume"
const OP_CANCEL Operation = "cancel"
const OP_COMPLETE Operation = "complete"
const OP_FAIL Operation = "fail"
const OP_EXECUTE Operation = "execute node on"
const OP_JUMP Operation = "jump node on"
const OP_UPDATE_VARIABLES Operation = "update variables on"
const OP_DELETE Operation = "delete"

var allowedStates = map[Operation][]model.InstanceStatus{
	OP_START:            {model.INSTANCE_STATUS_CREATED},
	OP_SUSPEND:          {model.INSTANCE_STATUS_RUNNING},
	OP_RESUME:           {model.INSTANCE_STATUS_SUSPENDED},
	OP_CANCEL:           {model.INSTANCE_STATUS_CREATED, model.INSTANCE_STATUS_RUNNING, model.INSTANCE_STATUS_SUSPENDED},
	OP_COMPLETE:         {model.INSTANCE_STATUS_RUNNING},
	OP_FAIL:             {model.INSTANCE_STATUS_RUNNING},
	OP_EXECUTE:          {model.INSTANCE_STATUS_RUNNING},
	OP_JUMP:             {model.INSTANCE_STATUS_RUNNING},
	OP_UPDATE_VARIABLES: {model.INSTANCE_STATUS_CREATED, model.INSTANCE_STATUS_RUNNING, model.INSTANCE_STATUS_SUSPENDED},
	OP_DELETE:           {model.INSTANCE_STATUS_COMPLETED, model.INSTANCE_STATUS_CANCELLED, model.INSTANCE_STATUS_FAILED},
}

// StateMachine owns instance status and the active-node set. Every
// mutation goes through a guard; an operation attempted from a state
// that does not allow it returns StateError and changes nothing.
type StateMachine struct{}

func (StateMachine) Ensure(instance *model.FlowInstance, op Operation) error {
	if slices.Contains(allowedStates[op], instance.Status) {
		return nil
	}
	return model.StateError{InstanceId: instance.Id, Status: instance.Status, Operation: string(op)}
}

func (sm StateMachine) Start(instance *model.FlowInstance, startNodeId string) error {
	if err := sm.Ensure(instance, OP_START); err != nil {
		return err
	}
	now := time.Now()
	instance.Status = model.INSTANCE_STATUS_RUNNING
	instance.StartTime = &now
	instance.ActiveNodeIds = []string{startNodeId}
	return nil
}

func (sm StateMachine) Suspend(instance *model.FlowInstance) error {
	if err := sm.Ensure(instance, OP_SUSPEND); err != nil {
		return err
	}
	instance.Status = model.INSTANCE_STATUS_SUSPENDED
	return nil
}

func (sm StateMachine) Resume(instance *model.FlowInstance) error {
	if err := sm.Ensure(instance, OP_RESUME); err != nil {
		return err
	}
	instance.Status = model.INSTANCE_STATUS_RUNNING
	return nil
}

func (sm StateMachine) Cancel(instance *model.FlowInstance) error {
	if err := sm.Ensure(instance, OP_CANCEL); err != nil {
		return err
	}
	now := time.Now()
	instance.Status = model.INSTANCE_STATUS_CANCELLED
	instance.EndTime = &now
	return nil
}

func (sm StateMachine) Complete(instance *model.FlowInstance) error {
	if err := sm.Ensure(instance, OP_COMPLETE); err != nil {
		return err
	}
	now := time.Now()
	instance.Status = model.INSTANCE_STATUS_COMPLETED
	instance.EndTime = &now
	return nil
}

// Fail clears the active set: sibling parallel branches do not outlive
// a node failure (fail-fast policy).
func (sm StateMachine) Fail(instance *model.FlowInstance) error {
	if err := sm.Ensure(instance, OP_FAIL); err != nil {
		return err
	}
	now := time.Now()
	instance.Status = model.INSTANCE_STATUS_FAILED
	instance.EndTime = &now
	instance.ActiveNodeIds = nil
	return nil
}

// Activate adds nodeId to the active set unless already present, so a
// node can never be concurrently activated twice.
func (StateMachine) Activate(instance *model.FlowInstance, nodeId string) bool {
	if slices.Contains(instance.ActiveNodeIds, nodeId) {
		return false
	}
	instance.ActiveNodeIds = append(instance.ActiveNodeIds, nodeId)
	return true
}

func (StateMachine) Deactivate(instance *model.FlowInstance, nodeId string) {
	idx := slices.Index(instance.ActiveNodeIds, nodeId)
	if idx >= 0 {
		instance.ActiveNodeIds = append(instance.ActiveNodeIds[:idx], instance.ActiveNodeIds[idx+1:]...)
	}
}

func (StateMachine) IsActive(instance *model.FlowInstance, nodeId string) bool {
	return slices.Contains(instance.ActiveNodeIds, nodeId)
}
