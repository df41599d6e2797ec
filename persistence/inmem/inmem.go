package inmem

import (
	"sort"
	"sync"
	"time"

	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/persistence"
	"github.com/procflow/procflow/util"
)

// NewStorage returns a fully in-memory storage bundle, used for tests
// and single-binary runs. Values are copied through the json codec on
// the way in and out so callers never share references with the store,
// matching the behavior of the redis implementation.
func NewStorage() *persistence.Storage {
	return &persistence.Storage{
		Instances:     NewInstanceDao(),
		Definitions:   NewDefinitionDao(),
		Versions:      NewVersionDao(),
		Events:        NewEventDao(),
		ExecutionLogs: NewExecutionLogDao(),
		DeviceActions: NewDeviceActionDao(),
	}
}

type table[T any] struct {
	mu     sync.RWMutex
	rows   map[string][]byte
	encdec util.EncoderDecoder[T]
}

func newTable[T any]() *table[T] {
	return &table[T]{
		rows:   make(map[string][]byte),
		encdec: util.NewJsonEncoderDecoder[T](),
	}
}

func (t *table[T]) put(id string, value *T) error {
	data, err := t.encdec.Encode(*value)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows[id] = data
	return nil
}

func (t *table[T]) get(id string) (*T, bool, error) {
	t.mu.RLock()
	data, ok := t.rows[id]
	t.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	v, err := t.encdec.Decode(data)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (t *table[T]) delete(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rows, id)
}

func (t *table[T]) all() ([]*T, error) {
	t.mu.RLock()
	ids := make([]string, 0, len(t.rows))
	for id := range t.rows {
		ids = append(ids, id)
	}
	blobs := make([][]byte, 0, len(ids))
	sort.Strings(ids)
	for _, id := range ids {
		blobs = append(blobs, t.rows[id])
	}
	t.mu.RUnlock()
	out := make([]*T, 0, len(blobs))
	for _, data := range blobs {
		v, err := t.encdec.Decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

type instanceDao struct {
	*table[model.FlowInstance]
}

var _ persistence.InstanceDao = new(instanceDao)

func NewInstanceDao() *instanceDao {
	return &instanceDao{table: newTable[model.FlowInstance]()}
}

func (d *instanceDao) Save(instance *model.FlowInstance) error {
	return d.put(instance.Id, instance)
}

func (d *instanceDao) Get(id string) (*model.FlowInstance, error) {
	inst, ok, err := d.get(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.NotFoundError{Kind: "flow instance", Id: id}
	}
	return inst, nil
}

func (d *instanceDao) Delete(id string) error {
	d.delete(id)
	return nil
}

func (d *instanceDao) List() ([]*model.FlowInstance, error) {
	return d.all()
}

type definitionDao struct {
	*table[model.FlowDefinition]
}

var _ persistence.DefinitionDao = new(definitionDao)

func NewDefinitionDao() *definitionDao {
	return &definitionDao{table: newTable[model.FlowDefinition]()}
}

func (d *definitionDao) Save(def *model.FlowDefinition) error {
	return d.put(def.Id, def)
}

func (d *definitionDao) Get(id string) (*model.FlowDefinition, error) {
	def, ok, err := d.get(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.NotFoundError{Kind: "flow definition", Id: id}
	}
	return def, nil
}

func (d *definitionDao) Delete(id string) error {
	d.delete(id)
	return nil
}

func (d *definitionDao) List() ([]*model.FlowDefinition, error) {
	return d.all()
}

type versionDao struct {
	*table[model.FlowVersion]
}

var _ persistence.VersionDao = new(versionDao)

func NewVersionDao() *versionDao {
	return &versionDao{table: newTable[model.FlowVersion]()}
}

func (d *versionDao) Save(version *model.FlowVersion) error {
	return d.put(version.Id, version)
}

func (d *versionDao) Get(id string) (*model.FlowVersion, error) {
	v, ok, err := d.get(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.NotFoundError{Kind: "flow version", Id: id}
	}
	return v, nil
}

func (d *versionDao) ListByDefinition(definitionId string) ([]*model.FlowVersion, error) {
	versions, err := d.all()
	if err != nil {
		return nil, err
	}
	var out []*model.FlowVersion
	for _, v := range versions {
		if v.DefinitionId == definitionId {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

type eventDao struct {
	*table[model.FlowEvent]
}

var _ persistence.EventDao = new(eventDao)

func NewEventDao() *eventDao {
	return &eventDao{table: newTable[model.FlowEvent]()}
}

func (d *eventDao) Save(event *model.FlowEvent) error {
	return d.put(event.Id, event)
}

func (d *eventDao) Get(id string) (*model.FlowEvent, error) {
	ev, ok, err := d.get(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.NotFoundError{Kind: "flow event", Id: id}
	}
	return ev, nil
}

func (d *eventDao) ListByInstance(instanceId string) ([]*model.FlowEvent, error) {
	events, err := d.all()
	if err != nil {
		return nil, err
	}
	var out []*model.FlowEvent
	for _, ev := range events {
		if ev.FlowInstanceId == instanceId {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (d *eventDao) ListUnprocessedByInstance(instanceId string) ([]*model.FlowEvent, error) {
	events, err := d.ListByInstance(instanceId)
	if err != nil {
		return nil, err
	}
	var out []*model.FlowEvent
	for _, ev := range events {
		if ev.Status == model.EVENT_STATUS_UNPROCESSED {
			out = append(out, ev)
		}
	}
	return out, nil
}

type executionLogDao struct {
	mu      sync.RWMutex
	entries map[string][][]byte
	encdec  util.EncoderDecoder[model.ExecutionLog]
}

var _ persistence.ExecutionLogDao = new(executionLogDao)

func NewExecutionLogDao() *executionLogDao {
	return &executionLogDao{
		entries: make(map[string][][]byte),
		encdec:  util.NewJsonEncoderDecoder[model.ExecutionLog](),
	}
}

func (d *executionLogDao) Append(entry *model.ExecutionLog) error {
	data, err := d.encdec.Encode(*entry)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[entry.FlowInstanceId] = append(d.entries[entry.FlowInstanceId], data)
	return nil
}

func (d *executionLogDao) ListByInstance(instanceId string) ([]*model.ExecutionLog, error) {
	d.mu.RLock()
	blobs := d.entries[instanceId]
	copied := make([][]byte, len(blobs))
	copy(copied, blobs)
	d.mu.RUnlock()
	out := make([]*model.ExecutionLog, 0, len(copied))
	for _, data := range copied {
		entry, err := d.encdec.Decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

type deviceActionDao struct {
	*table[model.DeviceAction]
}

var _ persistence.DeviceActionDao = new(deviceActionDao)

func NewDeviceActionDao() *deviceActionDao {
	return &deviceActionDao{table: newTable[model.DeviceAction]()}
}

func (d *deviceActionDao) Save(action *model.DeviceAction) error {
	return d.put(action.Id, action)
}

func (d *deviceActionDao) Get(id string) (*model.DeviceAction, error) {
	a, ok, err := d.get(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.NotFoundError{Kind: "device action", Id: id}
	}
	return a, nil
}

func (d *deviceActionDao) ListByInstance(instanceId string) ([]*model.DeviceAction, error) {
	actions, err := d.all()
	if err != nil {
		return nil, err
	}
	var out []*model.DeviceAction
	for _, a := range actions {
		if a.FlowInstanceId == instanceId {
			out = append(out, a)
		}
	}
	return out, nil
}

func (d *deviceActionDao) ListDueForRetry(now time.Time) ([]*model.DeviceAction, error) {
	actions, err := d.all()
	if err != nil {
		return nil, err
	}
	var out []*model.DeviceAction
	for _, a := range actions {
		if a.Status == model.DEVICE_ACTION_RETRY_SCHEDULED && a.ScheduledTime != nil && !a.ScheduledTime.After(now) {
			out = append(out, a)
		}
	}
	return out, nil
}
