package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nemonet1337/yakuzaiGoFramework/pkg/pharmacy"
)

// RedisCache is a Redis-backed report cache shared across API instances
// APIインスタンス間で共有するRedisレポートキャッシュ
type RedisCache struct {
	client *redis.Client
	logger *zap.Logger
}

// RedisCacheはReportCacheインターフェースを満たすことを明示
var _ pharmacy.ReportCache = (*RedisCache)(nil)

// RedisConfig holds Redis connection settings
// Redis接続設定を保持
type RedisConfig struct {
	Addr     string // ホスト:ポート
	Password string // パスワード（空で認証なし）
	DB       int    // データベース番号
}

// NewRedisCache connects to Redis and returns a report cache
// Redisに接続してレポートキャッシュを返す
func NewRedisCache(ctx context.Context, config RedisConfig, logger *zap.Logger) (*RedisCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	// 接続確認
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, pharmacy.NewStorageError("redis_connect", "Redisへの接続に失敗しました", err)
	}

	logger.Info("Redisレポートキャッシュに接続しました",
		zap.String("addr", config.Addr),
		zap.Int("db", config.DB),
	)

	return &RedisCache{client: client, logger: logger}, nil
}

// Get returns a cached report when present; cache errors degrade to a miss
// キャッシュ済みレポートを返す（キャッシュ障害はミス扱い）
func (c *RedisCache) Get(ctx context.Context, key string) (*pharmacy.AvailabilityReport, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("キャッシュ取得に失敗しました", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var report pharmacy.AvailabilityReport
	if err := json.Unmarshal(data, &report); err != nil {
		c.logger.Warn("キャッシュエントリの復元に失敗しました", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &report, true
}

// Set stores a report under the key for the given TTL
// 指定TTLでレポートをキャッシュに格納
func (c *RedisCache) Set(ctx context.Context, key string, report *pharmacy.AvailabilityReport, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	data, err := json.Marshal(report)
	if err != nil {
		c.logger.Warn("キャッシュエントリの作成に失敗しました", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.logger.Warn("キャッシュ保存に失敗しました", zap.String("key", key), zap.Error(err))
	}
}

// InvalidateMedicine removes every cached report for the medicine
// 対象医薬品のキャッシュ済みレポートをすべて無効化
func (c *RedisCache) InvalidateMedicine(ctx context.Context, medicineID string) {
	pattern := "availability:" + medicineID + ":*"

	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.logger.Warn("キャッシュ無効化のスキャンに失敗しました",
				zap.String("pattern", pattern), zap.Error(err))
			return
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.logger.Warn("キャッシュ無効化に失敗しました",
					zap.String("pattern", pattern), zap.Error(err))
				return
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}

// Close releases the Redis connection
// Redis接続を解放
func (c *RedisCache) Close() error {
	return c.client.Close()
}
