package redis

import (
	"context"
	"errors"

	rd "github.com/go-redis/redis/v9"
	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/persistence"
	"github.com/procflow/procflow/util"
)

const INSTANCE_KEY string = "INSTANCE"

var _ persistence.InstanceDao = new(redisInstanceDao)

type redisInstanceDao struct {
	*baseDao
	encoderDecoder util.EncoderDecoder[model.FlowInstance]
}

func NewInstanceDao(base *baseDao) *redisInstanceDao {
	return &redisInstanceDao{
		baseDao:        base,
		encoderDecoder: util.NewJsonEncoderDecoder[model.FlowInstance](),
	}
}

func (r *redisInstanceDao) Save(instance *model.FlowInstance) error {
	key := r.getNamespaceKey(INSTANCE_KEY)
	ctx := context.Background()
	data, err := r.encoderDecoder.Encode(*instance)
	if err != nil {
		return err
	}
	if err := r.redisClient.HSet(ctx, key, []string{instance.Id, string(data)}).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisInstanceDao) Get(id string) (*model.FlowInstance, error) {
	key := r.getNamespaceKey(INSTANCE_KEY)
	ctx := context.Background()
	data, err := r.redisClient.HGet(ctx, key, id).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, model.NotFoundError{Kind: "flow instance", Id: id}
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return r.encoderDecoder.Decode([]byte(data))
}

func (r *redisInstanceDao) Delete(id string) error {
	key := r.getNamespaceKey(INSTANCE_KEY)
	ctx := context.Background()
	if err := r.redisClient.HDel(ctx, key, id).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisInstanceDao) List() ([]*model.FlowInstance, error) {
	key := r.getNamespaceKey(INSTANCE_KEY)
	ctx := context.Background()
	rows, err := r.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	out := make([]*model.FlowInstance, 0, len(rows))
	for _, data := range rows {
		inst, err := r.encoderDecoder.Decode([]byte(data))
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}
