package translator

import (
	"sync"

	"office-translator/internal/types"
)

type cacheKey struct {
	text string
	lang types.Language
}

// translationCache 以 (文本, 目标语言) 为键的内存缓存。同一次运行中重复出现
// 的文本只调用一次 API
type translationCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]string
}

func newTranslationCache() *translationCache {
	return &translationCache{
		entries: make(map[cacheKey]string),
	}
}

func (c *translationCache) get(text string, lang types.Language) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tr, ok := c.entries[cacheKey{text: text, lang: lang}]
	return tr, ok
}

func (c *translationCache) set(text string, lang types.Language, translation string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{text: text, lang: lang}] = translation
}

func (c *translationCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
