package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/proposaldesk/internal/goroutine"
)

// URLCache кэширует подписанные ссылки на файлы, чтобы не подписывать
// ссылку на каждый запрос. Запись живёт половину срока ссылки.
type URLCache struct {
	mu    sync.RWMutex
	cache map[string]*cacheEntry
}

type cacheEntry struct {
	url       string
	expiresAt time.Time
}

// NewURLCache создаёт кэш и запускает очистку до отмены ctx.
func NewURLCache(ctx context.Context) *URLCache {
	c := &URLCache{cache: make(map[string]*cacheEntry)}
	goroutine.SafeGoWithContext(ctx, "url-cache-cleanup", c.cleanup)
	return c
}

// Get возвращает ссылку и оставшийся срок её жизни.
func (c *URLCache) Get(key string) (string, time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.cache[key]
	if !ok {
		return "", 0, false
	}
	left := time.Until(entry.expiresAt)
	if left <= 0 {
		return "", 0, false
	}
	return entry.url, left, true
}

func (c *URLCache) Set(key, url string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = &cacheEntry{url: url, expiresAt: time.Now().Add(ttl)}
}

// InvalidateByPrefix удаляет все ключи с префиксом.
func (c *URLCache) InvalidateByPrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.cache {
		if strings.HasPrefix(key, prefix) {
			delete(c.cache, key)
		}
	}
}

func (c *URLCache) cleanup(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, entry := range c.cache {
				if now.After(entry.expiresAt) {
					delete(c.cache, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// FileURLCachePrefix префикс всех ссылок на файлы предложения.
func FileURLCachePrefix(proposalID uuid.UUID) string {
	return "file_url:" + proposalID.String() + ":"
}

// FileURLCacheKey ключ ссылки на файл предложения.
func FileURLCacheKey(proposalID uuid.UUID, filePath string) string {
	return FileURLCachePrefix(proposalID) + filePath
}
