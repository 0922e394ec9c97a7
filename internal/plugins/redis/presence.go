package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/changhyu/cargoro-sub000/internal/core/contracts"
)

// RedisPresenceStore mirrors online clients per gateway node into a ZSet
// scored by last check-in time. Stale members age out on read.
type RedisPresenceStore struct {
	rdb *redis.Client
}

func NewRedisPresenceStore(rdb *redis.Client) *RedisPresenceStore {
	return &RedisPresenceStore{rdb: rdb}
}

var _ contracts.PresenceStore = (*RedisPresenceStore)(nil)

func (p *RedisPresenceStore) key(gatewayID string) string {
	return "presence:" + gatewayID
}

func (p *RedisPresenceStore) UpdateOnlineStatus(
	ctx context.Context,
	gatewayID string,
	clientID string,
	ttl time.Duration,
) error {
	key := p.key(gatewayID)
	now := time.Now().Unix()

	err := p.rdb.ZAdd(ctx, key, redis.Z{
		Score:  float64(now),
		Member: clientID,
	}).Err()
	if err != nil {
		return err
	}

	// Expire the whole ZSet so an idle node does not leak memory.
	return p.rdb.Expire(ctx, key, ttl*2).Err()
}

func (p *RedisPresenceStore) OnlineClients(
	ctx context.Context,
	gatewayID string,
) ([]string, error) {
	key := p.key(gatewayID)

	// Anyone who has not checked in for a minute is considered gone.
	threshold := time.Now().Add(-time.Minute).Unix()

	// Self-cleaning: drop stale members first.
	p.rdb.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(threshold, 10))

	return p.rdb.ZRange(ctx, key, 0, -1).Result()
}

func (p *RedisPresenceStore) RemoveClient(ctx context.Context, gatewayID, clientID string) error {
	return p.rdb.ZRem(ctx, p.key(gatewayID), clientID).Err()
}
