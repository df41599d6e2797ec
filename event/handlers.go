package event

import (
	"github.com/procflow/procflow/engine"
	"github.com/procflow/procflow/graph"
	"github.com/procflow/procflow/logger"
	"github.com/procflow/procflow/model"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

// NodeDispatcher is the slice of the flow engine the handlers need to
// resume a waiting node.
type NodeDispatcher interface {
	GetInstance(instanceId string) (*model.FlowInstance, error)
	ExecuteNode(instanceId string, nodeId string, input map[string]any) (map[string]any, error)
}

// resumer correlates an event to a waiting node on its target instance
// and dispatches that node with the event payload. All built-in
// handlers share this logic and differ only in which node types an
// event of their kind may resume.
type resumer struct {
	dispatcher NodeDispatcher
	graphs     engine.GraphProvider
	nodeTypes  []model.NodeType
}

func (r *resumer) Handle(event *model.FlowEvent) (bool, error) {
	if event.FlowInstanceId == "" {
		return false, nil
	}
	instance, err := r.dispatcher.GetInstance(event.FlowInstanceId)
	if err != nil {
		return false, err
	}
	if instance.Status != model.INSTANCE_STATUS_RUNNING {
		logger.Debug("event ignored, instance not running",
			zap.String("eventId", event.Id),
			zap.String("instanceId", instance.Id),
			zap.String("status", string(instance.Status)))
		return false, nil
	}
	g, err := r.graphs.GetGraph(instance.VersionId)
	if err != nil {
		return false, err
	}
	nodeId, ok := r.targetNode(instance, g, event)
	if !ok {
		return false, nil
	}
	input := map[string]any{
		"eventId":      event.Id,
		"eventType":    event.EventType,
		"eventPayload": event.Payload,
	}
	if event.SourceId != "" {
		input["eventSourceId"] = event.SourceId
	}
	if _, err := r.dispatcher.ExecuteNode(instance.Id, nodeId, input); err != nil {
		return false, err
	}
	return true, nil
}

// targetNode picks the event's declared node when it is active and of
// an accepted type, otherwise the first active node of an accepted
// type.
func (r *resumer) targetNode(instance *model.FlowInstance, g *model.FlowGraph, event *model.FlowEvent) (string, bool) {
	candidates := instance.ActiveNodeIds
	if event.NodeId != "" {
		if !slices.Contains(instance.ActiveNodeIds, event.NodeId) {
			return "", false
		}
		candidates = []string{event.NodeId}
	}
	for _, id := range candidates {
		node, err := graph.FindNode(g, id)
		if err != nil {
			continue
		}
		if slices.Contains(r.nodeTypes, node.Type) {
			return id, true
		}
	}
	return "", false
}

var _ engine.EventHandler = new(resumer)

// NewDeviceStatusChangeHandler resumes EVENT nodes awaiting a device
// status transition.
func NewDeviceStatusChangeHandler(dispatcher NodeDispatcher, graphs engine.GraphProvider) engine.EventHandler {
	return &resumer{dispatcher: dispatcher, graphs: graphs, nodeTypes: []model.NodeType{model.NODE_TYPE_EVENT, model.NODE_TYPE_WAIT}}
}

// NewDeviceAlarmHandler resumes EVENT nodes awaiting a device alarm.
func NewDeviceAlarmHandler(dispatcher NodeDispatcher, graphs engine.GraphProvider) engine.EventHandler {
	return &resumer{dispatcher: dispatcher, graphs: graphs, nodeTypes: []model.NodeType{model.NODE_TYPE_EVENT}}
}

// NewDeviceDataReportHandler resumes EVENT nodes awaiting reported
// device data.
func NewDeviceDataReportHandler(dispatcher NodeDispatcher, graphs engine.GraphProvider) engine.EventHandler {
	return &resumer{dispatcher: dispatcher, graphs: graphs, nodeTypes: []model.NodeType{model.NODE_TYPE_EVENT}}
}

// NewTimerTriggerHandler resumes WAIT nodes whose timer fired.
func NewTimerTriggerHandler(dispatcher NodeDispatcher, graphs engine.GraphProvider) engine.EventHandler {
	return &resumer{dispatcher: dispatcher, graphs: graphs, nodeTypes: []model.NodeType{model.NODE_TYPE_WAIT}}
}

// NewUserOperationHandler resumes WAIT nodes awaiting a manual step.
func NewUserOperationHandler(dispatcher NodeDispatcher, graphs engine.GraphProvider) engine.EventHandler {
	return &resumer{dispatcher: dispatcher, graphs: graphs, nodeTypes: []model.NodeType{model.NODE_TYPE_WAIT}}
}

// NewCustomEventHandler resumes either kind of waiting node.
func NewCustomEventHandler(dispatcher NodeDispatcher, graphs engine.GraphProvider) engine.EventHandler {
	return &resumer{dispatcher: dispatcher, graphs: graphs, nodeTypes: []model.NodeType{model.NODE_TYPE_EVENT, model.NODE_TYPE_WAIT}}
}

// RegisterBuiltinHandlers wires every built-in event type on the
// engine.
func RegisterBuiltinHandlers(e *engine.FlowEngine, graphs engine.GraphProvider) {
	e.RegisterEventHandler(model.EVENT_TYPE_DEVICE_STATUS_CHANGE, NewDeviceStatusChangeHandler(e, graphs))
	e.RegisterEventHandler(model.EVENT_TYPE_DEVICE_ALARM, NewDeviceAlarmHandler(e, graphs))
	e.RegisterEventHandler(model.EVENT_TYPE_DEVICE_DATA_REPORT, NewDeviceDataReportHandler(e, graphs))
	e.RegisterEventHandler(model.EVENT_TYPE_TIMER_TRIGGER, NewTimerTriggerHandler(e, graphs))
	e.RegisterEventHandler(model.EVENT_TYPE_USER_OPERATION, NewUserOperationHandler(e, graphs))
	e.RegisterEventHandler(model.EVENT_TYPE_CUSTOM, NewCustomEventHandler(e, graphs))
}
