package engine

import (
	"time"

	"github.com/procflow/procflow/audit"
	"github.com/procflow/procflow/graph"
	"github.com/procflow/procflow/logger"
	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/persistence"
	"go.uber.org/zap"
)

// GraphProvider resolves a version id to its parsed, validated graph.
type GraphProvider interface {
	GetGraph(versionId string) (*model.FlowGraph, error)
}

// FlowEngine drives instance lifecycles over their flow graphs. All
// state mutation for one instance happens under that instance's lock;
// operations on different instances proceed concurrently.
type FlowEngine struct {
	instances persistence.InstanceDao
	events    persistence.EventDao
	graphs    GraphProvider
	executors *ExecutorRegistry
	handlers  *HandlerRegistry
	evaluator graph.ConditionEvaluator
	variables VariableStore
	states    StateMachine
	locks     *lockTable
	recorder  audit.Recorder
}

func NewFlowEngine(instances persistence.InstanceDao, events persistence.EventDao, graphs GraphProvider, evaluator graph.ConditionEvaluator, recorder audit.Recorder) *FlowEngine {
	return &FlowEngine{
		instances: instances,
		events:    events,
		graphs:    graphs,
		executors: NewExecutorRegistry(),
		handlers:  NewHandlerRegistry(),
		evaluator: evaluator,
		locks:     newLockTable(),
		recorder:  recorder,
	}
}

func (e *FlowEngine) RegisterNodeExecutor(nodeType model.NodeType, executor NodeExecutor) {
	e.executors.Register(nodeType, executor)
	logger.Info("registered node executor", zap.String("nodeType", string(nodeType)))
}

func (e *FlowEngine) RegisterEventHandler(eventType string, handler EventHandler) {
	e.handlers.Register(eventType, handler)
	logger.Info("registered event handler", zap.String("eventType", eventType))
}

// StartInstance moves a CREATED instance to RUNNING, seeds defaults
// from the graph's variable declarations under existing instance
// values, then executes the START node.
func (e *FlowEngine) StartInstance(instanceId string) (*model.FlowInstance, error) {
	unlock := e.locks.Lock(instanceId)
	defer unlock()

	instance, err := e.instances.Get(instanceId)
	if err != nil {
		return nil, err
	}
	if err := e.states.Ensure(instance, OP_START); err != nil {
		return nil, err
	}
	g, err := e.graphs.GetGraph(instance.VersionId)
	if err != nil {
		return nil, err
	}
	startNode, err := graph.FindStartNode(g)
	if err != nil {
		return nil, err
	}
	if len(g.Variables) > 0 {
		seeded := e.variables.Snapshot(g.Variables)
		instance.Variables = e.variables.Merge(seeded, instance.Variables)
	}
	if err := e.states.Start(instance, startNode.Id); err != nil {
		return nil, err
	}
	if err := e.instances.Save(instance); err != nil {
		return nil, err
	}
	e.recorder.Record(&model.ExecutionLog{
		FlowInstanceId: instance.Id,
		ExecutionType:  model.EXECUTION_TYPE_FLOW_START,
		Status:         model.EXECUTION_STATUS_SUCCESS,
	})
	logger.Info("flow instance started",
		zap.String("instanceId", instance.Id),
		zap.String("versionId", instance.VersionId))

	if _, err := e.executeNodeLocked(instance, g, startNode.Id, nil); err != nil {
		return nil, err
	}
	return instance, nil
}

// ExecuteNode runs one active node by id, applying input on top of the
// instance scope for the duration of the call.
func (e *FlowEngine) ExecuteNode(instanceId string, nodeId string, input map[string]any) (map[string]any, error) {
	unlock := e.locks.Lock(instanceId)
	defer unlock()

	instance, err := e.instances.Get(instanceId)
	if err != nil {
		return nil, err
	}
	if err := e.states.Ensure(instance, OP_EXECUTE); err != nil {
		return nil, err
	}
	g, err := e.graphs.GetGraph(instance.VersionId)
	if err != nil {
		return nil, err
	}
	return e.executeNodeLocked(instance, g, nodeId, input)
}

// executeNodeLocked is the single node execution path; callers hold the
// instance lock. It dispatches to the registered executor, merges the
// output into the scope, records the step and advances the graph.
func (e *FlowEngine) executeNodeLocked(instance *model.FlowInstance, g *model.FlowGraph, nodeId string, input map[string]any) (map[string]any, error) {
	node, err := graph.FindNode(g, nodeId)
	if err != nil {
		return nil, err
	}
	executor, ok := e.executors.Lookup(node.Type)
	if !ok {
		return nil, model.ExecutorNotFoundError{NodeType: node.Type}
	}

	scope := e.variables.Snapshot(instance.Variables)
	scope = e.variables.Merge(scope, input)

	started := time.Now()
	output, err := executor.Execute(instance, node, scope)
	if err != nil {
		e.failLocked(instance, node, err)
		return nil, model.ExecutionError{Code: model.EXECUTION_NODE_FAILED, NodeId: node.Id, Message: "node execution failed", Cause: err}
	}
	if len(output) > 0 {
		instance.Variables = e.variables.Merge(instance.Variables, output)
	}
	e.recorder.Record(&model.ExecutionLog{
		FlowInstanceId: instance.Id,
		NodeId:         node.Id,
		NodeType:       node.Type,
		NodeName:       node.Name,
		ExecutionType:  model.EXECUTION_TYPE_NODE_EXECUTION,
		Status:         model.EXECUTION_STATUS_SUCCESS,
		DurationMillis: time.Since(started).Milliseconds(),
		Input:          scope,
		Output:         output,
	})
	logger.Debug("node executed",
		zap.String("instanceId", instance.Id),
		zap.String("nodeId", node.Id),
		zap.String("nodeType", string(node.Type)))

	if err := e.advanceLocked(instance, g, node); err != nil {
		return nil, err
	}
	return output, nil
}

// passThrough node types advance without an external dispatch; work
// node types stay active until something executes them explicitly.
func passThrough(t model.NodeType) bool {
	switch t {
	case model.NODE_TYPE_END, model.NODE_TYPE_CONDITION,
		model.NODE_TYPE_EXCLUSIVE_GATEWAY, model.NODE_TYPE_PARALLEL_GATEWAY:
		return true
	}
	return false
}

// advanceLocked deactivates the completed node, activates its
// successors and auto-executes any pass-through successors. When an
// END node completes with nothing else active, the instance completes.
func (e *FlowEngine) advanceLocked(instance *model.FlowInstance, g *model.FlowGraph, node *model.FlowNode) error {
	e.states.Deactivate(instance, node.Id)

	if node.Type == model.NODE_TYPE_END {
		if len(instance.ActiveNodeIds) == 0 && instance.Status == model.INSTANCE_STATUS_RUNNING {
			if err := e.states.Complete(instance); err != nil {
				return err
			}
			e.recorder.Record(&model.ExecutionLog{
				FlowInstanceId: instance.Id,
				NodeId:         node.Id,
				NodeType:       node.Type,
				ExecutionType:  model.EXECUTION_TYPE_FLOW_END,
				Status:         model.EXECUTION_STATUS_SUCCESS,
			})
			logger.Info("flow instance completed", zap.String("instanceId", instance.Id))
		}
		return e.instances.Save(instance)
	}

	successors, err := graph.Successors(g, node, instance.Variables, e.evaluator)
	if err != nil {
		e.failLocked(instance, node, err)
		return err
	}
	if node.Type == model.NODE_TYPE_EXCLUSIVE_GATEWAY || node.Type == model.NODE_TYPE_CONDITION {
		activated := make([]any, 0, len(successors))
		for _, s := range successors {
			activated = append(activated, s.Id)
		}
		e.recorder.Record(&model.ExecutionLog{
			FlowInstanceId: instance.Id,
			NodeId:         node.Id,
			NodeType:       node.Type,
			ExecutionType:  model.EXECUTION_TYPE_CONDITION_EVALUATION,
			Status:         model.EXECUTION_STATUS_SUCCESS,
			Output:         map[string]any{"activated": activated},
		})
	}

	var autoRun []*model.FlowNode
	for _, s := range successors {
		if e.states.Activate(instance, s.Id) && passThrough(s.Type) {
			autoRun = append(autoRun, s)
		}
	}
	if err := e.instances.Save(instance); err != nil {
		return err
	}
	for _, s := range autoRun {
		if instance.Status != model.INSTANCE_STATUS_RUNNING {
			break
		}
		if _, err := e.executeNodeLocked(instance, g, s.Id, nil); err != nil {
			return err
		}
	}
	return nil
}

// failLocked applies the fail-fast policy: the first failure under the
// instance lock moves the instance to FAILED and discards whatever
// sibling branches were still active.
func (e *FlowEngine) failLocked(instance *model.FlowInstance, node *model.FlowNode, cause error) {
	if instance.Status == model.INSTANCE_STATUS_RUNNING {
		if err := e.states.Fail(instance); err == nil {
			if err := e.instances.Save(instance); err != nil {
				logger.Error("error persisting failed instance",
					zap.String("instanceId", instance.Id), zap.Error(err))
			}
		}
	}
	e.recorder.Record(&model.ExecutionLog{
		FlowInstanceId: instance.Id,
		NodeId:         node.Id,
		NodeType:       node.Type,
		NodeName:       node.Name,
		ExecutionType:  model.EXECUTION_TYPE_ERROR_HANDLING,
		Status:         model.EXECUTION_STATUS_FAILED,
		ErrorMessage:   cause.Error(),
	})
	logger.Error("node execution failed",
		zap.String("instanceId", instance.Id),
		zap.String("nodeId", node.Id),
		zap.Error(cause))
}

// JumpToNode force-moves a RUNNING instance to the given node,
// replacing the whole active set. The target must exist in the graph;
// an unknown node leaves the active set untouched.
func (e *FlowEngine) JumpToNode(instanceId string, nodeId string) error {
	unlock := e.locks.Lock(instanceId)
	defer unlock()

	instance, err := e.instances.Get(instanceId)
	if err != nil {
		return err
	}
	if err := e.states.Ensure(instance, OP_JUMP); err != nil {
		return err
	}
	g, err := e.graphs.GetGraph(instance.VersionId)
	if err != nil {
		return err
	}
	node, err := graph.FindNode(g, nodeId)
	if err != nil {
		return err
	}
	instance.ActiveNodeIds = []string{node.Id}
	if err := e.instances.Save(instance); err != nil {
		return err
	}
	e.recorder.Record(&model.ExecutionLog{
		FlowInstanceId: instance.Id,
		NodeId:         node.Id,
		NodeType:       node.Type,
		NodeName:       node.Name,
		ExecutionType:  model.EXECUTION_TYPE_NODE_SKIP,
		Status:         model.EXECUTION_STATUS_SUCCESS,
	})
	logger.Info("flow instance jumped",
		zap.String("instanceId", instance.Id), zap.String("nodeId", node.Id))
	return nil
}

// TriggerEvent routes an event to the handler registered for its type.
// Returns whether a handler accepted the event; an unregistered type or
// a handler error yields false, never an error, so event sources can
// fire without caring whether any flow listens.
func (e *FlowEngine) TriggerEvent(event *model.FlowEvent) bool {
	handler, ok := e.handlers.Lookup(event.EventType)
	if !ok {
		logger.Warn("no handler registered for event type",
			zap.String("eventType", event.EventType), zap.String("eventId", event.Id))
		return false
	}
	handled, err := handler.Handle(event)
	if err != nil {
		logger.Error("event handler failed",
			zap.String("eventType", event.EventType),
			zap.String("eventId", event.Id),
			zap.Error(err))
		e.recorder.Record(&model.ExecutionLog{
			FlowInstanceId: event.FlowInstanceId,
			NodeId:         event.NodeId,
			ExecutionType:  model.EXECUTION_TYPE_EVENT_TRIGGER,
			Status:         model.EXECUTION_STATUS_FAILED,
			ErrorMessage:   err.Error(),
		})
		return false
	}
	if handled && event.FlowInstanceId != "" {
		e.recorder.Record(&model.ExecutionLog{
			FlowInstanceId: event.FlowInstanceId,
			NodeId:         event.NodeId,
			ExecutionType:  model.EXECUTION_TYPE_EVENT_TRIGGER,
			Status:         model.EXECUTION_STATUS_SUCCESS,
			Input:          event.Payload,
		})
	}
	return handled
}

func (e *FlowEngine) SuspendInstance(instanceId string) (*model.FlowInstance, error) {
	unlock := e.locks.Lock(instanceId)
	defer unlock()

	instance, err := e.instances.Get(instanceId)
	if err != nil {
		return nil, err
	}
	if err := e.states.Suspend(instance); err != nil {
		return nil, err
	}
	if err := e.instances.Save(instance); err != nil {
		return nil, err
	}
	e.recorder.Record(&model.ExecutionLog{
		FlowInstanceId: instance.Id,
		ExecutionType:  model.EXECUTION_TYPE_FLOW_SUSPEND,
		Status:         model.EXECUTION_STATUS_SUCCESS,
	})
	logger.Info("flow instance suspended", zap.String("instanceId", instance.Id))
	return instance, nil
}

// ResumeInstance returns the instance to RUNNING with the active set
// and variables exactly as they were at suspension.
func (e *FlowEngine) ResumeInstance(instanceId string) (*model.FlowInstance, error) {
	unlock := e.locks.Lock(instanceId)
	defer unlock()

	instance, err := e.instances.Get(instanceId)
	if err != nil {
		return nil, err
	}
	if err := e.states.Resume(instance); err != nil {
		return nil, err
	}
	if err := e.instances.Save(instance); err != nil {
		return nil, err
	}
	e.recorder.Record(&model.ExecutionLog{
		FlowInstanceId: instance.Id,
		ExecutionType:  model.EXECUTION_TYPE_FLOW_RESUME,
		Status:         model.EXECUTION_STATUS_SUCCESS,
	})
	logger.Info("flow instance resumed", zap.String("instanceId", instance.Id))
	return instance, nil
}

// CancelInstance terminates the instance and marks its still-unprocessed
// events IGNORED so late arrivals cannot revive it.
func (e *FlowEngine) CancelInstance(instanceId string) (*model.FlowInstance, error) {
	unlock := e.locks.Lock(instanceId)
	defer unlock()

	instance, err := e.instances.Get(instanceId)
	if err != nil {
		return nil, err
	}
	if err := e.states.Cancel(instance); err != nil {
		return nil, err
	}
	if err := e.instances.Save(instance); err != nil {
		return nil, err
	}
	pending, err := e.events.ListUnprocessedByInstance(instance.Id)
	if err != nil {
		logger.Error("error listing pending events on cancel",
			zap.String("instanceId", instance.Id), zap.Error(err))
	}
	for _, ev := range pending {
		now := time.Now()
		ev.Status = model.EVENT_STATUS_IGNORED
		ev.ProcessingTime = &now
		if err := e.events.Save(ev); err != nil {
			logger.Error("error ignoring pending event",
				zap.String("eventId", ev.Id), zap.Error(err))
		}
	}
	e.recorder.Record(&model.ExecutionLog{
		FlowInstanceId: instance.Id,
		ExecutionType:  model.EXECUTION_TYPE_FLOW_CANCEL,
		Status:         model.EXECUTION_STATUS_SUCCESS,
	})
	logger.Info("flow instance cancelled", zap.String("instanceId", instance.Id))
	return instance, nil
}

// UpdateVariables merges a patch into the instance scope. Allowed in
// any non-terminal state, including SUSPENDED.
func (e *FlowEngine) UpdateVariables(instanceId string, patch map[string]any) (*model.FlowInstance, error) {
	unlock := e.locks.Lock(instanceId)
	defer unlock()

	instance, err := e.instances.Get(instanceId)
	if err != nil {
		return nil, err
	}
	if err := e.states.Ensure(instance, OP_UPDATE_VARIABLES); err != nil {
		return nil, err
	}
	instance.Variables = e.variables.Merge(instance.Variables, patch)
	if err := e.instances.Save(instance); err != nil {
		return nil, err
	}
	e.recorder.Record(&model.ExecutionLog{
		FlowInstanceId: instance.Id,
		ExecutionType:  model.EXECUTION_TYPE_VARIABLE_UPDATE,
		Status:         model.EXECUTION_STATUS_SUCCESS,
		Input:          patch,
	})
	return instance, nil
}

func (e *FlowEngine) GetInstance(instanceId string) (*model.FlowInstance, error) {
	return e.instances.Get(instanceId)
}

func (e *FlowEngine) GetInstanceVariables(instanceId string) (map[string]any, error) {
	instance, err := e.instances.Get(instanceId)
	if err != nil {
		return nil, err
	}
	return e.variables.Snapshot(instance.Variables), nil
}

func (e *FlowEngine) GetActiveNodes(instanceId string) ([]string, error) {
	instance, err := e.instances.Get(instanceId)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(instance.ActiveNodeIds))
	copy(out, instance.ActiveNodeIds)
	return out, nil
}
