// Package cache provides report cache backends for the pharmacy package
// 在庫状況レポートのキャッシュバックエンドを提供
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/nemonet1337/yakuzaiGoFramework/pkg/pharmacy"
)

type memoryEntry struct {
	report    *pharmacy.AvailabilityReport
	expiresAt time.Time
}

// MemoryCache is a process-local TTL cache for availability reports
// プロセスローカルのTTL付きレポートキャッシュ
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// MemoryCacheはReportCacheインターフェースを満たすことを明示
var _ pharmacy.ReportCache = (*MemoryCache)(nil)

// NewMemoryCache creates an empty in-memory report cache
// 空のインメモリレポートキャッシュを作成
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get returns a cached report when present and not expired
// 有効期限内のキャッシュ済みレポートを返す
func (c *MemoryCache) Get(ctx context.Context, key string) (*pharmacy.AvailabilityReport, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		// 期限切れエントリは削除
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return entry.report, true
}

// Set stores a report under the key for the given TTL
// 指定TTLでレポートをキャッシュに格納
func (c *MemoryCache) Set(ctx context.Context, key string, report *pharmacy.AvailabilityReport, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = memoryEntry{
		report:    report,
		expiresAt: c.now().Add(ttl),
	}
	c.mu.Unlock()
}

// InvalidateMedicine removes every cached report for the medicine
// 対象医薬品のキャッシュ済みレポートをすべて無効化
func (c *MemoryCache) InvalidateMedicine(ctx context.Context, medicineID string) {
	prefix := "availability:" + medicineID + ":"
	c.mu.Lock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

// Len returns the number of entries including expired ones
// 期限切れを含むエントリ数を返す
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
