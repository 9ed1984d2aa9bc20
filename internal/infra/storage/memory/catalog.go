package memory

import (
	"context"
	"sync"

	"tripdesk/internal/domain/inventory"
)

// Catalog is a read-mostly inventory snapshot source.
type Catalog struct {
	mu    sync.RWMutex
	items map[inventory.ItemRef]inventory.Snapshot
}

func NewCatalog(items ...inventory.Snapshot) (*Catalog, error) {
	c := &Catalog{items: make(map[inventory.ItemRef]inventory.Snapshot, len(items))}
	for _, item := range items {
		if err := c.Put(item); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Put adds or replaces an item.
func (c *Catalog) Put(item inventory.Snapshot) error {
	if err := item.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[item.Ref] = item
	return nil
}

func (c *Catalog) Snapshot(ctx context.Context, ref inventory.ItemRef) (inventory.Snapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[ref]
	if !ok {
		return inventory.Snapshot{}, inventory.ErrItemNotFound
	}
	return item, nil
}

var _ inventory.Reader = (*Catalog)(nil)
