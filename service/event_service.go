package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/procflow/procflow/engine"
	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/persistence"
	"github.com/procflow/procflow/util"
)

// EventService persists incoming events and routes them through the
// engine, either synchronously or through a single consumer worker.
type EventService struct {
	events persistence.EventDao
	engine *engine.FlowEngine
	worker *util.Worker[*model.FlowEvent]
}

func NewEventService(events persistence.EventDao, eng *engine.FlowEngine, wg *sync.WaitGroup, capacity int) *EventService {
	s := &EventService{events: events, engine: eng}
	s.worker = util.NewWorker[*model.FlowEvent]("event-consumer", wg, s.process, capacity)
	return s
}

func (s *EventService) Start() {
	s.worker.Start()
}

func (s *EventService) Stop() {
	s.worker.Stop()
}

// Trigger stores the event and routes it synchronously. The returned
// flag reports whether any handler accepted it.
func (s *EventService) Trigger(event *model.FlowEvent) (bool, error) {
	if err := s.prepare(event); err != nil {
		return false, err
	}
	return s.route(event)
}

// Publish stores the event and hands it to the consumer worker. A full
// queue rejects the event rather than blocking the producer.
func (s *EventService) Publish(event *model.FlowEvent) error {
	if err := s.prepare(event); err != nil {
		return err
	}
	select {
	case s.worker.Sender() <- event:
		return nil
	default:
		return fmt.Errorf("event queue full, event %s rejected", event.Id)
	}
}

func (s *EventService) GetEvent(id string) (*model.FlowEvent, error) {
	return s.events.Get(id)
}

func (s *EventService) ListByInstance(instanceId string) ([]*model.FlowEvent, error) {
	return s.events.ListByInstance(instanceId)
}

func (s *EventService) prepare(event *model.FlowEvent) error {
	if event.EventType == "" {
		return fmt.Errorf("event type is required")
	}
	if event.Id == "" {
		event.Id = uuid.New().String()
	}
	if event.OccurrenceTime.IsZero() {
		event.OccurrenceTime = time.Now()
	}
	event.Status = model.EVENT_STATUS_UNPROCESSED
	return s.events.Save(event)
}

// route dispatches through the engine and settles the stored row. An
// event no handler accepted is marked IGNORED, not failed.
func (s *EventService) route(event *model.FlowEvent) (bool, error) {
	handled := s.engine.TriggerEvent(event)
	now := time.Now()
	event.ProcessingTime = &now
	if handled {
		event.Status = model.EVENT_STATUS_PROCESSED
	} else {
		event.Status = model.EVENT_STATUS_IGNORED
	}
	if err := s.events.Save(event); err != nil {
		return handled, err
	}
	return handled, nil
}

func (s *EventService) process(event *model.FlowEvent) error {
	_, err := s.route(event)
	return err
}
