package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jimlawless/whereami"
	"github.com/psms-tech/go-backend/internal/cfg"
	"github.com/psms-tech/go-backend/internal/repository/redis/converter"
	"github.com/psms-tech/go-backend/internal/usecase"
	"github.com/psms-tech/go-backend/pkg/clients"
	"github.com/psms-tech/go-backend/pkg/e"
	"github.com/psms-tech/go-backend/pkg/logger"
)

type CacheRepo struct {
	client *clients.RedisClient
	conv   converter.ItemInfoConverter
	cfg    *cfg.RedisCfg
	logger logger.Logger
}

func NewCacheRepo(client *clients.RedisClient, conv converter.ItemInfoConverter,
	cfg *cfg.RedisCfg, logger logger.Logger) *CacheRepo {
	return &CacheRepo{
		client: client,
		conv:   conv,
		cfg:    cfg,
		logger: logger,
	}
}

// GetItems возвращает закэшированные предметы по ID, игнорируя промахи и логируя их
func (r *CacheRepo) GetItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]usecase.ItemInfo, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]usecase.ItemInfo{}, nil
	}

	keys := r.buildItemCacheKeys(ids)

	values, err := r.client.Client.MGet(ctx, keys...).Result()
	if err != nil {
		r.logger.Warnf("Redis MGET failed: %v", e.Wrap(whereami.WhereAmI(), err))
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	result := make(map[uuid.UUID]usecase.ItemInfo, len(values))
	for i, val := range values {
		data, err := redisValueToBytes(val, keys[i])
		if err != nil {
			r.logger.Warnf("%v", e.Wrap(whereami.WhereAmI(), err))
		}

		if data == nil {
			continue // cache miss
		}

		model, err := r.unmarshalItemFromCache(data)
		if err != nil {
			r.logger.Warnf("Redis unmarshal failed: %v", e.Wrap(whereami.WhereAmI(), err))
			continue
		}

		info, err := r.conv.ToUseCase(model)
		if err != nil || info.ID != ids[i] {
			r.logger.Warnf("Cache entry mismatch: key_id: %s, model_id: %s", ids[i], model.ID)
			if err := r.client.Client.Del(context.WithoutCancel(ctx), keys[i]).Err(); err != nil {
				r.logger.Warnf("Redis del failed: %v", e.Wrap(whereami.WhereAmI(), err))
			}
			continue // cache miss
		}
		result[ids[i]] = *info
	}

	return result, nil
}

// SetItems кэширует несколько предметов одним pipeline с заданным TTL.
// Игнорирует ошибки сериализации/записи, логируя их.
func (r *CacheRepo) SetItems(ctx context.Context, items []usecase.ItemInfo) error {
	if len(items) == 0 {
		return nil
	}

	models := r.conv.ToArrRedisModel(items)

	pipeline := r.client.Client.Pipeline()
	for _, model := range models {
		data, err := r.marshalItemForCache(model)
		if err != nil {
			r.logger.Warnf("Failed to marshal item for caching (Item ID: %s): %v", model.ID, e.Wrap(whereami.WhereAmI(), err))
			continue
		}

		pipeline.Set(ctx, r.itemKey(model.ID), data, r.cfg.ItemTTL)
	}

	if _, err := pipeline.Exec(ctx); err != nil {
		r.logger.Warnf("Cache pipeline failed: %v", e.Wrap(whereami.WhereAmI(), err))
	}

	return nil
}

// DeleteItems удаляет предметы из кэша по ID
func (r *CacheRepo) DeleteItems(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	if err := r.client.Client.Del(ctx, r.buildItemCacheKeys(ids)...).Err(); err != nil {
		r.logger.Warnf("Redis DEL failed: %v", e.Wrap(whereami.WhereAmI(), err))
	}

	return nil
}

// marshalItemForCache сериализует предмет в JSON для кэша
func (r *CacheRepo) marshalItemForCache(model converter.ItemInfoRedisModel) ([]byte, error) {
	return json.Marshal(model)
}

// unmarshalItemFromCache десериализует JSON из кэша в модель предмета
func (r *CacheRepo) unmarshalItemFromCache(data []byte) (*converter.ItemInfoRedisModel, error) {
	var model converter.ItemInfoRedisModel
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, err
	}

	return &model, nil
}

// buildItemCacheKeys формирует Redis-ключи из ID предметов
func (r *CacheRepo) buildItemCacheKeys(ids []uuid.UUID) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.itemKey(id.String())
	}

	return keys
}

// itemKey возвращает Redis-ключ для одного предмета
func (r *CacheRepo) itemKey(id string) string {
	return "item:" + id
}

// redisValueToBytes конвертирует значение из Redis в []byte.
// Поддерживает string и []byte, возвращает ошибку для неизвестных типов.
func redisValueToBytes(val any, key string) ([]byte, error) {
	switch v := val.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	case nil:
		return nil, nil // cache miss
	default:
		return nil, fmt.Errorf("unexpected Redis value type for key %s: %T", key, val)
	}
}

var _ usecase.CacheRepository = (*CacheRepo)(nil)
