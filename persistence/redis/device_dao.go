package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	rd "github.com/go-redis/redis/v9"
	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/persistence"
	"github.com/procflow/procflow/util"
)

const DEVICE_ACTION_KEY string = "DEVICE_ACTION"
const DEVICE_ACTION_BY_INSTANCE_KEY string = "DEVICE_ACTION_BY_INSTANCE"
const DEVICE_RETRY_KEY string = "DEVICE_RETRY"

var _ persistence.DeviceActionDao = new(redisDeviceActionDao)

type redisDeviceActionDao struct {
	*baseDao
	encoderDecoder util.EncoderDecoder[model.DeviceAction]
}

func NewDeviceActionDao(base *baseDao) *redisDeviceActionDao {
	return &redisDeviceActionDao{
		baseDao:        base,
		encoderDecoder: util.NewJsonEncoderDecoder[model.DeviceAction](),
	}
}

// Save keeps a sorted set of retry-scheduled actions keyed by their
// scheduled time, so the retry sweeper can poll due members cheaply.
func (r *redisDeviceActionDao) Save(action *model.DeviceAction) error {
	key := r.getNamespaceKey(DEVICE_ACTION_KEY)
	indexKey := r.getNamespaceKey(DEVICE_ACTION_BY_INSTANCE_KEY, action.FlowInstanceId)
	retryKey := r.getNamespaceKey(DEVICE_RETRY_KEY)
	ctx := context.Background()
	data, err := r.encoderDecoder.Encode(*action)
	if err != nil {
		return err
	}
	_, err = r.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		if err := pipe.HSet(ctx, key, []string{action.Id, string(data)}).Err(); err != nil {
			return err
		}
		if err := pipe.SAdd(ctx, indexKey, action.Id).Err(); err != nil {
			return err
		}
		if action.Status == model.DEVICE_ACTION_RETRY_SCHEDULED && action.ScheduledTime != nil {
			member := rd.Z{
				Score:  float64(action.ScheduledTime.UnixMilli()),
				Member: action.Id,
			}
			return pipe.ZAdd(ctx, retryKey, member).Err()
		}
		return pipe.ZRem(ctx, retryKey, action.Id).Err()
	})
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisDeviceActionDao) Get(id string) (*model.DeviceAction, error) {
	key := r.getNamespaceKey(DEVICE_ACTION_KEY)
	ctx := context.Background()
	data, err := r.redisClient.HGet(ctx, key, id).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, model.NotFoundError{Kind: "device action", Id: id}
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return r.encoderDecoder.Decode([]byte(data))
}

func (r *redisDeviceActionDao) ListByInstance(instanceId string) ([]*model.DeviceAction, error) {
	indexKey := r.getNamespaceKey(DEVICE_ACTION_BY_INSTANCE_KEY, instanceId)
	ctx := context.Background()
	ids, err := r.redisClient.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	out := make([]*model.DeviceAction, 0, len(ids))
	for _, id := range ids {
		a, err := r.Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *redisDeviceActionDao) ListDueForRetry(now time.Time) ([]*model.DeviceAction, error) {
	retryKey := r.getNamespaceKey(DEVICE_RETRY_KEY)
	ctx := context.Background()
	opt := &rd.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}
	ids, err := r.redisClient.ZRangeByScore(ctx, retryKey, opt).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	out := make([]*model.DeviceAction, 0, len(ids))
	for _, id := range ids {
		a, err := r.Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
