package rowstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores each partition as a value hash plus a zero-score sorted set.
// With all scores equal, ZREVRANGEBYLEX walks members in descending
// byte-wise order, which is exactly the scan contract.
type Redis struct {
	client *redis.Client
	prefix string
}

// OpenRedis creates a Redis-backed store from a redis:// URL.
func OpenRedis(redisURL string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Redis{client: client, prefix: "libindex:"}, nil
}

// NewRedisWithClient wraps an existing Redis client.
func NewRedisWithClient(client *redis.Client) *Redis {
	return &Redis{client: client, prefix: "libindex:"}
}

func (s *Redis) hashKey(partition string) string {
	return s.prefix + "v:" + partition
}

func (s *Redis) orderKey(partition string) string {
	return s.prefix + "z:" + partition
}

func (s *Redis) Scan(ctx context.Context, partition, start string, limit int) ([]Row, error) {
	if limit <= 0 {
		return nil, nil
	}

	max := "+"
	if start != "" {
		max = "(" + start
	}
	keys, err := s.client.ZRevRangeByLex(ctx, s.orderKey(partition), &redis.ZRangeBy{
		Min:   "-",
		Max:   max,
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("scan partition order: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := s.client.HMGet(ctx, s.hashKey(partition), keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("scan partition values: %w", err)
	}

	rows := make([]Row, 0, len(keys))
	for i, key := range keys {
		row := Row{Key: key}
		if value, ok := values[i].(string); ok {
			row.Value = []byte(value)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *Redis) Apply(ctx context.Context, ops []Op) error {
	if len(ops) == 0 {
		return nil
	}
	pipe := s.client.TxPipeline()
	for _, op := range ops {
		if op.Put {
			pipe.HSet(ctx, s.hashKey(op.Partition), op.Key, op.Value)
			pipe.ZAdd(ctx, s.orderKey(op.Partition), redis.Z{Score: 0, Member: op.Key})
		} else {
			pipe.HDel(ctx, s.hashKey(op.Partition), op.Key)
			pipe.ZRem(ctx, s.orderKey(op.Partition), op.Key)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("apply batch: %w", err)
	}
	return nil
}

func (s *Redis) DropPartition(ctx context.Context, partition string) error {
	if err := s.client.Del(ctx, s.hashKey(partition), s.orderKey(partition)).Err(); err != nil {
		return fmt.Errorf("drop partition: %w", err)
	}
	return nil
}

func (s *Redis) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *Redis) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
