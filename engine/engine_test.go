package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/procflow/procflow/audit"
	"github.com/procflow/procflow/graph"
	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/persistence"
	"github.com/procflow/procflow/persistence/inmem"
	"github.com/stretchr/testify/require"
)

type stubGraphs map[string]*model.FlowGraph

func (s stubGraphs) GetGraph(versionId string) (*model.FlowGraph, error) {
	g, ok := s[versionId]
	if !ok {
		return nil, model.NotFoundError{Kind: "version", Id: versionId}
	}
	return g, nil
}

type stubExecutor struct {
	output map[string]any
	failOn map[string]bool
}

func (s stubExecutor) Execute(instance *model.FlowInstance, node *model.FlowNode, input map[string]any) (map[string]any, error) {
	if s.failOn[node.Id] {
		return nil, fmt.Errorf("node %s blew up", node.Id)
	}
	return s.output, nil
}

type stubHandler struct {
	handled bool
	err     error
	seen    *model.FlowEvent
}

func (s *stubHandler) Handle(event *model.FlowEvent) (bool, error) {
	s.seen = event
	return s.handled, s.err
}

func linearGraph() *model.FlowGraph {
	return &model.FlowGraph{
		Id:        "linear",
		Variables: map[string]any{"mode": "auto"},
		Nodes: []model.FlowNode{
			{Id: "start", Type: model.NODE_TYPE_START},
			{Id: "a", Type: model.NODE_TYPE_TASK},
			{Id: "end", Type: model.NODE_TYPE_END},
		},
		Edges: []model.FlowEdge{
			{Id: "e1", Source: "start", Target: "a"},
			{Id: "e2", Source: "a", Target: "end"},
		},
	}
}

func parallelGraph() *model.FlowGraph {
	return &model.FlowGraph{
		Id: "parallel",
		Nodes: []model.FlowNode{
			{Id: "start", Type: model.NODE_TYPE_START},
			{Id: "pg", Type: model.NODE_TYPE_PARALLEL_GATEWAY},
			{Id: "t1", Type: model.NODE_TYPE_TASK},
			{Id: "t2", Type: model.NODE_TYPE_TASK},
			{Id: "end", Type: model.NODE_TYPE_END},
		},
		Edges: []model.FlowEdge{
			{Id: "e1", Source: "start", Target: "pg"},
			{Id: "e2", Source: "pg", Target: "t1"},
			{Id: "e3", Source: "pg", Target: "t2"},
			{Id: "e4", Source: "t1", Target: "end"},
			{Id: "e5", Source: "t2", Target: "end"},
		},
	}
}

type fixture struct {
	engine  *FlowEngine
	storage *persistence.Storage
}

func newFixture(graphs stubGraphs) *fixture {
	storage := inmem.NewStorage()
	eng := NewFlowEngine(storage.Instances, storage.Events, graphs, graph.NewJsEvaluator(), audit.NewRecorder(storage.ExecutionLogs))
	eng.RegisterNodeExecutor(model.NODE_TYPE_START, stubExecutor{})
	eng.RegisterNodeExecutor(model.NODE_TYPE_END, stubExecutor{})
	eng.RegisterNodeExecutor(model.NODE_TYPE_PARALLEL_GATEWAY, stubExecutor{})
	eng.RegisterNodeExecutor(model.NODE_TYPE_EXCLUSIVE_GATEWAY, stubExecutor{})
	return &fixture{engine: eng, storage: storage}
}

func (f *fixture) createInstance(t *testing.T, versionId string, variables map[string]any) *model.FlowInstance {
	t.Helper()
	instance := &model.FlowInstance{
		Id:        uuid.New().String(),
		VersionId: versionId,
		Status:    model.INSTANCE_STATUS_CREATED,
		Variables: variables,
		CreatedAt: time.Now(),
	}
	require.NoError(t, f.storage.Instances.Save(instance))
	return instance
}

func TestStartToCompletion(t *testing.T) {
	f := newFixture(stubGraphs{"v1": linearGraph()})
	f.engine.RegisterNodeExecutor(model.NODE_TYPE_TASK, stubExecutor{output: map[string]any{"taskDone": true}})
	instance := f.createInstance(t, "v1", map[string]any{"mode": "manual"})

	started, err := f.engine.StartInstance(instance.Id)
	require.NoError(t, err)
	require.Equal(t, model.INSTANCE_STATUS_RUNNING, started.Status)
	require.NotNil(t, started.StartTime)
	// instance variables win over graph defaults
	require.Equal(t, "manual", started.Variables["mode"])
	// the START node auto-advances to the first work node
	require.Equal(t, []string{"a"}, started.ActiveNodeIds)

	output, err := f.engine.ExecuteNode(instance.Id, "a", map[string]any{"extra": 1})
	require.NoError(t, err)
	require.Equal(t, true, output["taskDone"])

	final, err := f.engine.GetInstance(instance.Id)
	require.NoError(t, err)
	require.Equal(t, model.INSTANCE_STATUS_COMPLETED, final.Status)
	require.Empty(t, final.ActiveNodeIds)
	require.NotNil(t, final.EndTime)
	require.Equal(t, true, final.Variables["taskDone"])
	// transient execute input does not leak into the stored scope
	require.NotContains(t, final.Variables, "extra")

	logs, err := f.storage.ExecutionLogs.ListByInstance(instance.Id)
	require.NoError(t, err)
	types := make([]model.ExecutionType, 0, len(logs))
	for _, entry := range logs {
		types = append(types, entry.ExecutionType)
	}
	require.Contains(t, types, model.EXECUTION_TYPE_FLOW_START)
	require.Contains(t, types, model.EXECUTION_TYPE_NODE_EXECUTION)
	require.Contains(t, types, model.EXECUTION_TYPE_FLOW_END)
}

func TestStartValidation(t *testing.T) {
	bad := linearGraph()
	bad.Nodes = append(bad.Nodes, model.FlowNode{Id: "start2", Type: model.NODE_TYPE_START})
	f := newFixture(stubGraphs{"v1": bad})
	instance := f.createInstance(t, "v1", nil)

	_, err := f.engine.StartInstance(instance.Id)
	var verr model.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, model.VALIDATION_MULTIPLE_START_NODES, verr.Code)

	unchanged, err := f.engine.GetInstance(instance.Id)
	require.NoError(t, err)
	require.Equal(t, model.INSTANCE_STATUS_CREATED, unchanged.Status)
}

func TestDoubleStart(t *testing.T) {
	f := newFixture(stubGraphs{"v1": linearGraph()})
	f.engine.RegisterNodeExecutor(model.NODE_TYPE_TASK, stubExecutor{})
	instance := f.createInstance(t, "v1", nil)

	_, err := f.engine.StartInstance(instance.Id)
	require.NoError(t, err)
	_, err = f.engine.StartInstance(instance.Id)
	var serr model.StateError
	require.ErrorAs(t, err, &serr)
}

func TestSuspendResume(t *testing.T) {
	f := newFixture(stubGraphs{"v1": linearGraph()})
	f.engine.RegisterNodeExecutor(model.NODE_TYPE_TASK, stubExecutor{})
	instance := f.createInstance(t, "v1", map[string]any{"k": "v"})

	_, err := f.engine.StartInstance(instance.Id)
	require.NoError(t, err)

	suspended, err := f.engine.SuspendInstance(instance.Id)
	require.NoError(t, err)
	require.Equal(t, model.INSTANCE_STATUS_SUSPENDED, suspended.Status)

	_, err = f.engine.ExecuteNode(instance.Id, "a", nil)
	var serr model.StateError
	require.ErrorAs(t, err, &serr)

	resumed, err := f.engine.ResumeInstance(instance.Id)
	require.NoError(t, err)
	require.Equal(t, model.INSTANCE_STATUS_RUNNING, resumed.Status)
	require.Equal(t, []string{"a"}, resumed.ActiveNodeIds)
	require.Equal(t, "v", resumed.Variables["k"])

	_, err = f.engine.ExecuteNode(instance.Id, "a", nil)
	require.NoError(t, err)
	final, err := f.engine.GetInstance(instance.Id)
	require.NoError(t, err)
	require.Equal(t, model.INSTANCE_STATUS_COMPLETED, final.Status)
}

func TestCancel(t *testing.T) {
	f := newFixture(stubGraphs{"v1": linearGraph()})
	f.engine.RegisterNodeExecutor(model.NODE_TYPE_TASK, stubExecutor{})

	t.Run("cancel from created", func(t *testing.T) {
		instance := f.createInstance(t, "v1", nil)
		cancelled, err := f.engine.CancelInstance(instance.Id)
		require.NoError(t, err)
		require.Equal(t, model.INSTANCE_STATUS_CANCELLED, cancelled.Status)
		require.NotNil(t, cancelled.EndTime)
	})

	t.Run("cancel from running ignores pending events", func(t *testing.T) {
		instance := f.createInstance(t, "v1", nil)
		_, err := f.engine.StartInstance(instance.Id)
		require.NoError(t, err)
		pending := &model.FlowEvent{
			Id:             uuid.New().String(),
			EventType:      model.EVENT_TYPE_CUSTOM,
			Status:         model.EVENT_STATUS_UNPROCESSED,
			FlowInstanceId: instance.Id,
			OccurrenceTime: time.Now(),
		}
		require.NoError(t, f.storage.Events.Save(pending))

		_, err = f.engine.CancelInstance(instance.Id)
		require.NoError(t, err)
		stored, err := f.storage.Events.Get(pending.Id)
		require.NoError(t, err)
		require.Equal(t, model.EVENT_STATUS_IGNORED, stored.Status)
		require.NotNil(t, stored.ProcessingTime)
	})

	t.Run("terminal instance rejects everything", func(t *testing.T) {
		instance := f.createInstance(t, "v1", nil)
		_, err := f.engine.CancelInstance(instance.Id)
		require.NoError(t, err)

		var serr model.StateError
		_, err = f.engine.CancelInstance(instance.Id)
		require.ErrorAs(t, err, &serr)
		_, err = f.engine.StartInstance(instance.Id)
		require.ErrorAs(t, err, &serr)
		_, err = f.engine.SuspendInstance(instance.Id)
		require.ErrorAs(t, err, &serr)
		_, err = f.engine.UpdateVariables(instance.Id, map[string]any{"x": 1})
		require.ErrorAs(t, err, &serr)
	})
}

func TestFailFast(t *testing.T) {
	f := newFixture(stubGraphs{"v1": parallelGraph()})
	f.engine.RegisterNodeExecutor(model.NODE_TYPE_TASK, stubExecutor{failOn: map[string]bool{"t1": true}})
	instance := f.createInstance(t, "v1", nil)

	started, err := f.engine.StartInstance(instance.Id)
	require.NoError(t, err)
	// the parallel gateway activated both branches
	require.ElementsMatch(t, []string{"t1", "t2"}, started.ActiveNodeIds)

	_, err = f.engine.ExecuteNode(instance.Id, "t1", nil)
	var eerr model.ExecutionError
	require.ErrorAs(t, err, &eerr)
	require.Equal(t, model.EXECUTION_NODE_FAILED, eerr.Code)

	failed, err := f.engine.GetInstance(instance.Id)
	require.NoError(t, err)
	require.Equal(t, model.INSTANCE_STATUS_FAILED, failed.Status)
	require.Empty(t, failed.ActiveNodeIds)

	// the surviving branch can not run anymore
	var serr model.StateError
	_, err = f.engine.ExecuteNode(instance.Id, "t2", nil)
	require.ErrorAs(t, err, &serr)
}

func TestExecutorNotFound(t *testing.T) {
	f := newFixture(stubGraphs{"v1": linearGraph()})
	f.engine.RegisterNodeExecutor(model.NODE_TYPE_TASK, stubExecutor{})
	instance := f.createInstance(t, "v1", nil)
	_, err := f.engine.StartInstance(instance.Id)
	require.NoError(t, err)

	g := linearGraph()
	g.Nodes[1].Type = model.NodeType("EXOTIC")
	f.engine.graphs = stubGraphs{"v1": g}

	_, err = f.engine.ExecuteNode(instance.Id, "a", nil)
	var nferr model.ExecutorNotFoundError
	require.ErrorAs(t, err, &nferr)

	// a missing executor is not a node failure
	running, err := f.engine.GetInstance(instance.Id)
	require.NoError(t, err)
	require.Equal(t, model.INSTANCE_STATUS_RUNNING, running.Status)
	require.Equal(t, []string{"a"}, running.ActiveNodeIds)
}

func TestJumpToNode(t *testing.T) {
	f := newFixture(stubGraphs{"v1": linearGraph()})
	f.engine.RegisterNodeExecutor(model.NODE_TYPE_TASK, stubExecutor{})
	instance := f.createInstance(t, "v1", nil)
	_, err := f.engine.StartInstance(instance.Id)
	require.NoError(t, err)

	err = f.engine.JumpToNode(instance.Id, "ghost")
	var verr model.ValidationError
	require.ErrorAs(t, err, &verr)
	unchanged, err := f.engine.GetInstance(instance.Id)
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, unchanged.ActiveNodeIds)

	require.NoError(t, f.engine.JumpToNode(instance.Id, "end"))
	jumped, err := f.engine.GetInstance(instance.Id)
	require.NoError(t, err)
	require.Equal(t, []string{"end"}, jumped.ActiveNodeIds)

	_, err = f.engine.ExecuteNode(instance.Id, "end", nil)
	require.NoError(t, err)
	final, err := f.engine.GetInstance(instance.Id)
	require.NoError(t, err)
	require.Equal(t, model.INSTANCE_STATUS_COMPLETED, final.Status)
}

func TestUpdateVariables(t *testing.T) {
	f := newFixture(stubGraphs{"v1": linearGraph()})
	instance := f.createInstance(t, "v1", map[string]any{"a": 1, "b": "keep"})

	patch := map[string]any{"a": 2, "c": true}
	updated, err := f.engine.UpdateVariables(instance.Id, patch)
	require.NoError(t, err)
	require.Equal(t, 2, updated.Variables["a"])
	require.Equal(t, "keep", updated.Variables["b"])
	require.Equal(t, true, updated.Variables["c"])

	// applying the same patch twice changes nothing
	again, err := f.engine.UpdateVariables(instance.Id, patch)
	require.NoError(t, err)
	require.EqualValues(t, 2, again.Variables["a"])

	snapshot, err := f.engine.GetInstanceVariables(instance.Id)
	require.NoError(t, err)
	snapshot["a"] = 99
	fresh, err := f.engine.GetInstanceVariables(instance.Id)
	require.NoError(t, err)
	require.NotEqual(t, 99, fresh["a"])
}

func TestTriggerEvent(t *testing.T) {
	f := newFixture(stubGraphs{"v1": linearGraph()})

	t.Run("unregistered event type", func(t *testing.T) {
		handled := f.engine.TriggerEvent(&model.FlowEvent{Id: "e1", EventType: "nobody_listens"})
		require.False(t, handled)
	})

	t.Run("handler accepts", func(t *testing.T) {
		h := &stubHandler{handled: true}
		f.engine.RegisterEventHandler("custom_thing", h)
		handled := f.engine.TriggerEvent(&model.FlowEvent{Id: "e2", EventType: "custom_thing"})
		require.True(t, handled)
		require.Equal(t, "e2", h.seen.Id)
	})

	t.Run("handler error yields false", func(t *testing.T) {
		f.engine.RegisterEventHandler("broken_thing", &stubHandler{err: fmt.Errorf("boom")})
		handled := f.engine.TriggerEvent(&model.FlowEvent{Id: "e3", EventType: "broken_thing"})
		require.False(t, handled)
	})
}
