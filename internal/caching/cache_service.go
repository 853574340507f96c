package caching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"resourcehive/internal/models"
	"resourcehive/pkg/logger"
)

const keyPrefix = "resourcehive:"

// CacheService holds read-side copies only. The ledger never reads from it.
type CacheService interface {
	// Availability snapshots shown by the catalog
	GetSnapshots(ctx context.Context, itemIDs []uuid.UUID) (map[uuid.UUID]models.Snapshot, error)
	SetSnapshots(ctx context.Context, snapshots []models.Snapshot, ttl time.Duration) error
	InvalidateSnapshots(ctx context.Context, itemIDs []uuid.UUID) error

	// Template overrides for notification texts
	Template(ctx context.Context, name string) (string, bool, error)
	SetTemplate(ctx context.Context, name, text string) error
	DeleteTemplate(ctx context.Context, name string) error

	// TryAcquire sets key for ttl if it is unset and reports whether it did
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	Ping(ctx context.Context) error
}

type redisCacheService struct {
	client redis.UniversalClient
}

// NewRedisClient accepts host:port or a redis:// URL
func NewRedisClient(addr, password string, db int) *redis.Client {
	parsedAddr := addr
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		if hostPort := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://"); hostPort != addr {
			parsedAddr = strings.TrimSuffix(hostPort, "/")
		}
	}

	logger.Debug(context.Background()).Str("addr", parsedAddr).Msg("creating redis client")

	return redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})
}

func NewRedisCacheService(client redis.UniversalClient) CacheService {
	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		logger.Warn(context.Background()).Err(pingErr).Msg("redis ping failed on initialization")
	}
	return &redisCacheService{client: client}
}

func snapshotKey(itemID uuid.UUID) string {
	return fmt.Sprintf("%ssnapshot:%s", keyPrefix, itemID.String())
}

func templateKey(name string) string {
	return fmt.Sprintf("%stemplate:%s", keyPrefix, name)
}

// GetSnapshots returns the cached entries only. Missing ids are cache misses.
func (r *redisCacheService) GetSnapshots(ctx context.Context, itemIDs []uuid.UUID) (map[uuid.UUID]models.Snapshot, error) {
	result := make(map[uuid.UUID]models.Snapshot, len(itemIDs))
	if len(itemIDs) == 0 {
		return result, nil
	}
	keys := make([]string, len(itemIDs))
	for i, id := range itemIDs {
		keys[i] = snapshotKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var snap models.Snapshot
		if err := json.Unmarshal([]byte(raw), &snap); err != nil {
			logger.Warn(ctx).Err(err).Str("item_id", itemIDs[i].String()).Msg("dropping unreadable snapshot")
			continue
		}
		result[itemIDs[i]] = snap
	}
	return result, nil
}

func (r *redisCacheService) SetSnapshots(ctx context.Context, snapshots []models.Snapshot, ttl time.Duration) error {
	if len(snapshots) == 0 {
		return nil
	}
	pipe := r.client.Pipeline()
	for _, snap := range snapshots {
		data, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		pipe.Set(ctx, snapshotKey(snap.ItemID), data, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *redisCacheService) InvalidateSnapshots(ctx context.Context, itemIDs []uuid.UUID) error {
	if len(itemIDs) == 0 {
		return nil
	}
	keys := make([]string, len(itemIDs))
	for i, id := range itemIDs {
		keys[i] = snapshotKey(id)
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *redisCacheService) Template(ctx context.Context, name string) (string, bool, error) {
	val, err := r.client.Get(ctx, templateKey(name)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return val, true, nil
}

func (r *redisCacheService) SetTemplate(ctx context.Context, name, text string) error {
	return r.client.Set(ctx, templateKey(name), text, 0).Err()
}

func (r *redisCacheService) DeleteTemplate(ctx context.Context, name string) error {
	return r.client.Del(ctx, templateKey(name)).Err()
}

func (r *redisCacheService) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, keyPrefix+"lock:"+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
