package knowledge

import (
	"context"
	"sync"
)

// Cache loads the knowledge base from its source on first use and hands out
// the same read-only value afterwards. A failed load is sticky.
type Cache struct {
	source Source

	once sync.Once
	kb   *KnowledgeBase
	err  error
}

func NewCache(source Source) *Cache {
	return &Cache{source: source}
}

func (c *Cache) Get(ctx context.Context) (*KnowledgeBase, error) {
	c.once.Do(func() {
		c.kb, c.err = c.source.Load(ctx)
	})
	return c.kb, c.err
}

// Load makes Cache usable wherever a Source is expected.
func (c *Cache) Load(ctx context.Context) (*KnowledgeBase, error) {
	return c.Get(ctx)
}
