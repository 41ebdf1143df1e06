package cache

import (
	"context"
	"sync"
	"time"

	"github.com/timmy/promptmart/internal/domain"
)

type memoryItem struct {
	prompts    []domain.Prompt
	expiration time.Time
}

// MemoryCache is an in-process ResultCache with per-entry expiry. Expired
// entries are dropped on read and by a background sweep.
type MemoryCache struct {
	data   sync.Map
	ttl    time.Duration
	now    func() time.Time
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	c := &MemoryCache{
		ttl:    ttl,
		now:    time.Now,
		ticker: time.NewTicker(time.Minute),
		done:   make(chan struct{}),
	}
	go c.sweep()
	return c
}

func (c *MemoryCache) sweep() {
	for {
		select {
		case <-c.ticker.C:
			now := c.now()
			c.data.Range(func(key, value interface{}) bool {
				if now.After(value.(*memoryItem).expiration) {
					c.data.Delete(key)
				}
				return true
			})
		case <-c.done:
			return
		}
	}
}

// Stop ends the background sweep.
func (c *MemoryCache) Stop() {
	c.once.Do(func() {
		c.ticker.Stop()
		close(c.done)
	})
}

// Get returns a copy of the cached entry; callers may modify it freely.
func (c *MemoryCache) Get(_ context.Context, key string) ([]domain.Prompt, bool) {
	value, ok := c.data.Load(key)
	if !ok {
		return nil, false
	}
	item := value.(*memoryItem)
	if c.now().After(item.expiration) {
		c.data.Delete(key)
		return nil, false
	}
	return clonePrompts(item.prompts), true
}

func (c *MemoryCache) Set(_ context.Context, key string, prompts []domain.Prompt) {
	c.data.Store(key, &memoryItem{
		prompts:    clonePrompts(prompts),
		expiration: c.now().Add(c.ttl),
	})
}

// clonePrompts copies prompts including their tag and image slices.
func clonePrompts(prompts []domain.Prompt) []domain.Prompt {
	if prompts == nil {
		return nil
	}
	out := make([]domain.Prompt, len(prompts))
	for i, p := range prompts {
		if p.Tags != nil {
			p.Tags = append(domain.StringArray{}, p.Tags...)
		}
		if p.Images != nil {
			p.Images = append(domain.StringArray{}, p.Images...)
		}
		out[i] = p
	}
	return out
}
