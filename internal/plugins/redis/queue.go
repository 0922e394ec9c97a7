package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/changhyu/cargoro-sub000/internal/core/contracts"
)

// RedisPushQueue is the out-of-band push channel: external services XADD
// delivery requests to one stream; the push worker consumes them through a
// consumer group.
type RedisPushQueue struct {
	rdb    *redis.Client
	stream string
}

func NewRedisPushQueue(rdb *redis.Client, stream string) *RedisPushQueue {
	return &RedisPushQueue{rdb: rdb, stream: stream}
}

var _ contracts.PushQueue = (*RedisPushQueue)(nil)

func (q *RedisPushQueue) Publish(ctx context.Context, payload []byte) error {
	return q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: 1000,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{"data": payload},
	}).Err()
}

func (q *RedisPushQueue) Subscribe(
	ctx context.Context,
	group string,
	handler func(ctx context.Context, messageID string, data []byte) error,
) error {
	// Create group if not exists
	err := q.rdb.XGroupCreateMkStream(ctx, q.stream, group, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	consumerName := uuid.NewString()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			res, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
				Group:    group,
				Consumer: consumerName,
				Streams:  []string{q.stream, ">"},
				Count:    1,
				Block:    2 * time.Second,
			}).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					log.Printf("Stream read error: %v", err)
					// Back off so a dead Redis does not turn this loop
					// into a hot spin.
					time.Sleep(time.Second)
				}
				continue
			}
			for _, stream := range res {
				for _, msg := range stream.Messages {
					raw, ok := msg.Values["data"].(string)
					if !ok {
						continue
					}
					if err := handler(ctx, msg.ID, []byte(raw)); err != nil {
						log.Printf("Handler error for message %s: %v", msg.ID, err)
					}
				}
			}
		}
	}
}

func (q *RedisPushQueue) Acknowledge(ctx context.Context, group, messageID string) error {
	return q.rdb.XAck(ctx, q.stream, group, messageID).Err()
}

func (q *RedisPushQueue) DeleteMessage(ctx context.Context, messageID string) error {
	return q.rdb.XDel(ctx, q.stream, messageID).Err()
}
