package redis

import (
	"context"
	"errors"

	rd "github.com/go-redis/redis/v9"
	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/persistence"
	"github.com/procflow/procflow/util"
)

const EVENT_KEY string = "EVENT"
const EVENT_BY_INSTANCE_KEY string = "EVENT_BY_INSTANCE"

var _ persistence.EventDao = new(redisEventDao)

type redisEventDao struct {
	*baseDao
	encoderDecoder util.EncoderDecoder[model.FlowEvent]
}

func NewEventDao(base *baseDao) *redisEventDao {
	return &redisEventDao{
		baseDao:        base,
		encoderDecoder: util.NewJsonEncoderDecoder[model.FlowEvent](),
	}
}

func (r *redisEventDao) Save(event *model.FlowEvent) error {
	key := r.getNamespaceKey(EVENT_KEY)
	ctx := context.Background()
	data, err := r.encoderDecoder.Encode(*event)
	if err != nil {
		return err
	}
	_, err = r.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		if err := pipe.HSet(ctx, key, []string{event.Id, string(data)}).Err(); err != nil {
			return err
		}
		if event.FlowInstanceId != "" {
			indexKey := r.getNamespaceKey(EVENT_BY_INSTANCE_KEY, event.FlowInstanceId)
			return pipe.SAdd(ctx, indexKey, event.Id).Err()
		}
		return nil
	})
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisEventDao) Get(id string) (*model.FlowEvent, error) {
	key := r.getNamespaceKey(EVENT_KEY)
	ctx := context.Background()
	data, err := r.redisClient.HGet(ctx, key, id).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, model.NotFoundError{Kind: "flow event", Id: id}
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return r.encoderDecoder.Decode([]byte(data))
}

func (r *redisEventDao) ListByInstance(instanceId string) ([]*model.FlowEvent, error) {
	indexKey := r.getNamespaceKey(EVENT_BY_INSTANCE_KEY, instanceId)
	ctx := context.Background()
	ids, err := r.redisClient.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	out := make([]*model.FlowEvent, 0, len(ids))
	for _, id := range ids {
		ev, err := r.Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func (r *redisEventDao) ListUnprocessedByInstance(instanceId string) ([]*model.FlowEvent, error) {
	events, err := r.ListByInstance(instanceId)
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
