package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/CRM/internal/core"
	"github.com/redis/go-redis/v9"
)

// Redis stores each summary as JSON under its own key and keeps a capped
// list of import IDs per entity.
type Redis struct {
	client *redis.Client
	limit  int
	ttl    time.Duration
	prefix string
}

// RedisOptions configures a Redis store.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Limit    int
	// TTL expires summaries; zero keeps them until they fall off the list.
	TTL time.Duration
}

// NewRedisClient connects and pings.
func NewRedisClient(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return client, nil
}

// NewRedis wraps a connected client.
func NewRedis(client *redis.Client, opts RedisOptions) *Redis {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Redis{client: client, limit: limit, ttl: opts.TTL, prefix: "crm:"}
}

func (r *Redis) listKey(entity string) string {
	return r.prefix + "history:" + strings.ToLower(entity)
}

func (r *Redis) summaryKey(importID string) string {
	return r.prefix + "import:" + importID
}

func (r *Redis) Record(ctx context.Context, sum core.ImportSummary) error {
	data, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	listKey := r.listKey(sum.Entity)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.summaryKey(sum.ImportID), data, r.ttl)
		pipe.LPush(ctx, listKey, sum.ImportID)
		pipe.LTrim(ctx, listKey, 0, int64(r.limit-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("record import %s: %w", sum.ImportID, err)
	}
	return nil
}

func (r *Redis) List(ctx context.Context, entity string, limit int) ([]core.ImportSummary, error) {
	if limit <= 0 || limit > r.limit {
		limit = r.limit
	}
	ids, err := r.client.LRange(ctx, r.listKey(entity), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list history %s: %w", entity, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.summaryKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load history %s: %w", entity, err)
	}

	out := make([]core.ImportSummary, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue // expired
		}
		var sum core.ImportSummary
		if err := json.Unmarshal([]byte(s), &sum); err != nil {
			return nil, fmt.Errorf("decode summary: %w", err)
		}
		out = append(out, sum)
	}
	return out, nil
}

func (r *Redis) Get(ctx context.Context, entity, importID string) (core.ImportSummary, error) {
	data, err := r.client.Get(ctx, r.summaryKey(importID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return core.ImportSummary{}, fmt.Errorf("import %s: %w", importID, core.ErrNotFound)
	}
	if err != nil {
		return core.ImportSummary{}, fmt.Errorf("get import %s: %w", importID, err)
	}

	var sum core.ImportSummary
	if err := json.Unmarshal(data, &sum); err != nil {
		return core.ImportSummary{}, fmt.Errorf("decode summary: %w", err)
	}
	if !strings.EqualFold(sum.Entity, entity) {
		return core.ImportSummary{}, fmt.Errorf("import %s: %w", importID, core.ErrNotFound)
	}
	return sum, nil
}
