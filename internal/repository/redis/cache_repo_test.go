package redis

import (
	"testing"

	"github.com/google/uuid"
	"github.com/psms-tech/go-backend/internal/repository/redis/converter"
	"github.com/psms-tech/go-backend/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheRepo_Keys(t *testing.T) {
	r := &CacheRepo{}
	id := uuid.MustParse("0b5f4f52-58f4-4f4e-9a53-2b7d1f7c6a10")

	assert.Equal(t, []string{"item:0b5f4f52-58f4-4f4e-9a53-2b7d1f7c6a10"}, r.buildItemCacheKeys([]uuid.UUID{id}))
}

func TestCacheRepo_MarshalRoundTrip(t *testing.T) {
	r := &CacheRepo{}
	loc := uuid.New()
	info := usecase.ItemInfo{ID: uuid.New(), Name: "Drill", LocationID: &loc, LocationName: "Garage", Tags: []string{"tool"}}

	data, err := r.marshalItemForCache(*converter.ItemInfoConverter{}.ToRedisModel(&info))
	require.NoError(t, err)

	model, err := r.unmarshalItemFromCache(data)
	require.NoError(t, err)

	back, err := converter.ItemInfoConverter{}.ToUseCase(model)
	require.NoError(t, err)
	assert.Equal(t, info, *back)
}

func TestRedisValueToBytes(t *testing.T) {
	b, err := redisValueToBytes("x", "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), b)

	b, err = redisValueToBytes(nil, "k")
	require.NoError(t, err)
	assert.Nil(t, b)

	_, err = redisValueToBytes(42, "k")
	assert.Error(t, err)
}
