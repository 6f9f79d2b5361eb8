package bus

import (
	"context"
	"errors"
	"sync"

	"veriscan/internal/errs"
	"veriscan/internal/ports"
)

// MemoryBus fans change events out to in-process subscribers. Delivery is
// synchronous and unordered across subscribers; subscribers must tolerate
// duplicates like any other channel backend.
type MemoryBus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]ports.Handler
}

var _ ports.EventBus = (*MemoryBus)(nil)

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{handlers: make(map[int]ports.Handler)}
}

func (b *MemoryBus) Publish(ctx context.Context, event ports.ChangeEvent) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	b.mu.RLock()
	snapshot := make([]ports.Handler, 0, len(b.handlers))
	for _, handler := range b.handlers {
		snapshot = append(snapshot, handler)
	}
	b.mu.RUnlock()

	for _, handler := range snapshot {
		handler(event)
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, handler ports.Handler) (func(), error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if handler == nil {
		return nil, errors.New("handler is required")
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = handler
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}, nil
}
