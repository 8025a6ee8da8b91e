package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"

	"raffle-service/model"
	"raffle-service/utils"
)

const (
	drawLockPrefix      = "raffle:draw_lock:"
	TicketReservedTopic = "raffle:ticket_reserved"
)

// releaseScript deletes the lock only when it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

// Acquire takes the draw lock of a lottery. ok is false when another caller holds it.
func (l *RedisLocker) Acquire(ctx context.Context, lotteryId string, ttl time.Duration) (release func(), ok bool, err error) {
	key := drawLockPrefix + lotteryId
	token := utils.RandString(16)
	ok, err = l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return func() {}, ok, err
	}
	return func() {
		if err := releaseScript.Run(context.Background(), l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			utils.LogMessage(utils.WARNING, "RedisLocker: unable to release "+key+", err: "+err.Error(), "cache")
		}
	}, true, nil
}

type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) TicketReserved(ctx context.Context, event model.TicketReservedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, TicketReservedTopic, payload).Err()
}
