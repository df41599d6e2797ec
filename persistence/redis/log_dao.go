package redis

import (
	"context"

	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/persistence"
	"github.com/procflow/procflow/util"
)

const EXECUTION_LOG_KEY string = "EXECUTION_LOG"

var _ persistence.ExecutionLogDao = new(redisExecutionLogDao)

type redisExecutionLogDao struct {
	*baseDao
	encoderDecoder util.EncoderDecoder[model.ExecutionLog]
}

func NewExecutionLogDao(base *baseDao) *redisExecutionLogDao {
	return &redisExecutionLogDao{
		baseDao:        base,
		encoderDecoder: util.NewJsonEncoderDecoder[model.ExecutionLog](),
	}
}

func (r *redisExecutionLogDao) Append(entry *model.ExecutionLog) error {
	key := r.getNamespaceKey(EXECUTION_LOG_KEY, entry.FlowInstanceId)
	ctx := context.Background()
	data, err := r.encoderDecoder.Encode(*entry)
	if err != nil {
		return err
	}
	if err := r.redisClient.RPush(ctx, key, string(data)).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisExecutionLogDao) ListByInstance(instanceId string) ([]*model.ExecutionLog, error) {
	key := r.getNamespaceKey(EXECUTION_LOG_KEY, instanceId)
	ctx := context.Background()
	rows, err := r.redisClient.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	out := make([]*model.ExecutionLog, 0, len(rows))
	for _, data := range rows {
		entry, err := r.encoderDecoder.Decode([]byte(data))
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}
