package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultTTL = 30 * 24 * time.Hour

// RedisStore archives finished games in Redis with a retention TTL. Games are
// stored as JSON under archive:game:<id> and indexed by end time in a sorted
// set for recency listing.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore connects to redisURL (redis:// or rediss://) and pings it.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("redis url required")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStoreFromClient(rdb), nil
}

// NewRedisStoreFromClient wraps an existing client, e.g. a miniredis-backed
// one in tests.
func NewRedisStoreFromClient(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: defaultTTL}
}

// SetTTL overrides the retention period.
func (s *RedisStore) SetTTL(ttl time.Duration) {
	if ttl > 0 {
		s.ttl = ttl
	}
}

func (s *RedisStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func (s *RedisStore) SaveGame(ctx context.Context, g GameSummary) error {
	raw, err := json.Marshal(&g)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, gameKey(g.ID), raw, s.ttl)
	pipe.ZAdd(ctx, indexKey, redis.Z{Score: float64(g.EndedAt.UnixMilli()), Member: g.ID})
	pipe.Expire(ctx, indexKey, s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) LoadGame(ctx context.Context, id string) (GameSummary, error) {
	raw, err := s.rdb.Get(ctx, gameKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return GameSummary{}, ErrNotFound
	}
	if err != nil {
		return GameSummary{}, err
	}
	var g GameSummary
	if err := json.Unmarshal(raw, &g); err != nil {
		return GameSummary{}, err
	}
	return g, nil
}

func (s *RedisStore) ListGames(ctx context.Context, limit int) ([]GameSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	ids, err := s.rdb.ZRevRange(ctx, indexKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	games := make([]GameSummary, 0, len(ids))
	for _, id := range ids {
		g, gerr := s.LoadGame(ctx, id)
		if errors.Is(gerr, ErrNotFound) {
			// Expired payload still indexed; skip.
			continue
		}
		if gerr != nil {
			return nil, gerr
		}
		games = append(games, g)
	}
	return games, nil
}

const indexKey = "archive:index"

func gameKey(id string) string { return "archive:game:" + strings.TrimSpace(id) }

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
