// Package events is the in-process bus the catalog publishes lifecycle
// events on. Subscriptions are wired once at startup and dropped at shutdown;
// there is no ambient global registry.
package events

import (
	"sync"

	"variantsync/internal/reqctx"
)

const (
	TypeCreated = "created"
	TypeUpdated = "updated"
	TypeDeleted = "deleted"
)

// ProductEvent signals a product lifecycle change.
type ProductEvent struct {
	Type      string
	ProductID string
	Ctx       reqctx.Snapshot
}

// VariantEvent signals a variant lifecycle change. A single event may carry
// several variants (bulk creation).
type VariantEvent struct {
	Type       string
	VariantIDs []string
	Ctx        reqctx.Snapshot
}

type Bus struct {
	mu          sync.RWMutex
	closed      bool
	productSubs []func(ProductEvent)
	variantSubs []func(VariantEvent)
}

func NewBus() *Bus { return &Bus{} }

func (b *Bus) SubscribeProduct(fn func(ProductEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.productSubs = append(b.productSubs, fn)
}

func (b *Bus) SubscribeVariant(fn func(VariantEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.variantSubs = append(b.variantSubs, fn)
}

// PublishProduct dispatches synchronously, in publication order, within the
// publisher's goroutine. Handlers that must not block the publisher (e.g.
// deletion reconciliation) enqueue their work instead of doing it inline.
func (b *Bus) PublishProduct(ev ProductEvent) {
	b.mu.RLock()
	subs := b.productSubs
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func (b *Bus) PublishVariant(ev VariantEvent) {
	b.mu.RLock()
	subs := b.variantSubs
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// Close tears down all subscriptions; later publishes are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.productSubs = nil
	b.variantSubs = nil
}
