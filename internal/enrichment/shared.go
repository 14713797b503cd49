package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tbourn/go-timezones-backend/internal/domain"
)

// SharedStore lets several instances reuse each other's readings. It is
// consulted only inside a refresh, never on the Get path.
type SharedStore interface {
	Get(ctx context.Context, zoneID string) (domain.EnrichmentEntry, bool, error)
	Set(ctx context.Context, e domain.EnrichmentEntry) error
}

const defaultKeyPrefix = "tz:weather:"

// RedisStore keeps entries as JSON strings that expire with the entry.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisStore wraps client. An empty prefix selects "tz:weather:".
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// NewRedisClient builds a client for addr. It does not dial.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (s *RedisStore) key(zoneID string) string { return s.prefix + zoneID }

// Get implements SharedStore. A missing key is (zero, false, nil).
func (s *RedisStore) Get(ctx context.Context, zoneID string) (domain.EnrichmentEntry, bool, error) {
	raw, err := s.client.Get(ctx, s.key(zoneID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.EnrichmentEntry{}, false, nil
	}
	if err != nil {
		return domain.EnrichmentEntry{}, false, fmt.Errorf("redis get %s: %w", zoneID, err)
	}
	var e domain.EnrichmentEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return domain.EnrichmentEntry{}, false, fmt.Errorf("redis decode %s: %w", zoneID, err)
	}
	if e.ZoneID != zoneID {
		return domain.EnrichmentEntry{}, false, nil
	}
	return e, true, nil
}

// Set implements SharedStore.
func (s *RedisStore) Set(ctx context.Context, e domain.EnrichmentEntry) error {
	ttl := time.Duration(e.TTLSeconds) * time.Second
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(e.ZoneID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", e.ZoneID, err)
	}
	return nil
}
