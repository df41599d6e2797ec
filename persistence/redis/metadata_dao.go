package redis

import (
	"context"
	"errors"
	"sort"

	rd "github.com/go-redis/redis/v9"
	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/persistence"
	"github.com/procflow/procflow/util"
)

const DEFINITION_KEY string = "DEFINITION"
const VERSION_KEY string = "VERSION"
const VERSION_BY_DEF_KEY string = "VERSION_BY_DEF"

var _ persistence.DefinitionDao = new(redisDefinitionDao)

type redisDefinitionDao struct {
	*baseDao
	encoderDecoder util.EncoderDecoder[model.FlowDefinition]
}

func NewDefinitionDao(base *baseDao) *redisDefinitionDao {
	return &redisDefinitionDao{
		baseDao:        base,
		encoderDecoder: util.NewJsonEncoderDecoder[model.FlowDefinition](),
	}
}

func (r *redisDefinitionDao) Save(def *model.FlowDefinition) error {
	key := r.getNamespaceKey(DEFINITION_KEY)
	ctx := context.Background()
	data, err := r.encoderDecoder.Encode(*def)
	if err != nil {
		return err
	}
	if err := r.redisClient.HSet(ctx, key, []string{def.Id, string(data)}).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisDefinitionDao) Get(id string) (*model.FlowDefinition, error) {
	key := r.getNamespaceKey(DEFINITION_KEY)
	ctx := context.Background()
	data, err := r.redisClient.HGet(ctx, key, id).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, model.NotFoundError{Kind: "flow definition", Id: id}
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return r.encoderDecoder.Decode([]byte(data))
}

func (r *redisDefinitionDao) Delete(id string) error {
	key := r.getNamespaceKey(DEFINITION_KEY)
	ctx := context.Background()
	if err := r.redisClient.HDel(ctx, key, id).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisDefinitionDao) List() ([]*model.FlowDefinition, error) {
	key := r.getNamespaceKey(DEFINITION_KEY)
	ctx := context.Background()
	rows, err := r.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	out := make([]*model.FlowDefinition, 0, len(rows))
	for _, data := range rows {
		def, err := r.encoderDecoder.Decode([]byte(data))
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, nil
}

var _ persistence.VersionDao = new(redisVersionDao)

type redisVersionDao struct {
	*baseDao
	encoderDecoder util.EncoderDecoder[model.FlowVersion]
}

func NewVersionDao(base *baseDao) *redisVersionDao {
	return &redisVersionDao{
		baseDao:        base,
		encoderDecoder: util.NewJsonEncoderDecoder[model.FlowVersion](),
	}
}

func (r *redisVersionDao) Save(version *model.FlowVersion) error {
	key := r.getNamespaceKey(VERSION_KEY)
	indexKey := r.getNamespaceKey(VERSION_BY_DEF_KEY, version.DefinitionId)
	ctx := context.Background()
	data, err := r.encoderDecoder.Encode(*version)
	if err != nil {
		return err
	}
	_, err = r.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		if err := pipe.HSet(ctx, key, []string{version.Id, string(data)}).Err(); err != nil {
			return err
		}
		return pipe.SAdd(ctx, indexKey, version.Id).Err()
	})
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisVersionDao) Get(id string) (*model.FlowVersion, error) {
	key := r.getNamespaceKey(VERSION_KEY)
	ctx := context.Background()
	data, err := r.redisClient.HGet(ctx, key, id).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, model.NotFoundError{Kind: "flow version", Id: id}
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return r.encoderDecoder.Decode([]byte(data))
}

func (r *redisVersionDao) ListByDefinition(definitionId string) ([]*model.FlowVersion, error) {
	indexKey := r.getNamespaceKey(VERSION_BY_DEF_KEY, definitionId)
	ctx := context.Background()
	ids, err := r.redisClient.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	out := make([]*model.FlowVersion, 0, len(ids))
	for _, id := range ids {
		v, err := r.Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}
