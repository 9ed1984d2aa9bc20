package memory

import (
	"context"
	"sync"
)

// Inbox remembers processed dedup keys for the lifetime of the process.
type Inbox struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewInbox() *Inbox {
	return &Inbox{seen: make(map[string]struct{})}
}

// Seen records key and reports whether it had been recorded before.
func (i *Inbox) Seen(ctx context.Context, key string) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.seen[key]; ok {
		return true, nil
	}
	i.seen[key] = struct{}{}
	return false, nil
}

// Forget drops key so a failed delivery can be attempted again.
func (i *Inbox) Forget(ctx context.Context, key string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.seen, key)
	return nil
}
