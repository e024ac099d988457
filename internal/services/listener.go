package services

import (
	"variantsync/internal/events"
	applog "variantsync/internal/log"
)

// Listener routes catalog lifecycle events to the workflow. Pure dispatch,
// no state of its own: variant creation syncs inline within the publishing
// request; product deletion is deferred to the work queue.
type Listener struct {
	Bus        *events.Bus
	Sync       *VariantSyncService
	Reconciler *ReconcileService
}

func NewListener(bus *events.Bus, sync *VariantSyncService, reconciler *ReconcileService) *Listener {
	return &Listener{Bus: bus, Sync: sync, Reconciler: reconciler}
}

// Start establishes the subscriptions. Called once at process startup; the
// bus owner tears them down at shutdown via Bus.Close.
func (l *Listener) Start() {
	l.Bus.SubscribeVariant(func(ev events.VariantEvent) {
		if ev.Type != events.TypeCreated {
			return
		}
		applog.Info(nil, "listener.variant_created", map[string]any{
			"variants": ev.VariantIDs, "request_id": ev.Ctx.RequestID,
		})
		if err := l.Sync.Sync(ev.Ctx, ev.VariantIDs); err != nil {
			applog.Error(nil, "listener.variant_sync", err, map[string]any{"variants": ev.VariantIDs})
		}
	})

	l.Bus.SubscribeProduct(func(ev events.ProductEvent) {
		switch ev.Type {
		case events.TypeUpdated:
			applog.Info(nil, "listener.product_updated", map[string]any{
				"product": ev.ProductID, "request_id": ev.Ctx.RequestID,
			})
			if err := l.Sync.AutoUpdateVariant(ev.Ctx, ev.ProductID); err != nil {
				applog.Error(nil, "listener.auto_update", err, map[string]any{"product": ev.ProductID})
			}
		case events.TypeDeleted:
			applog.Info(nil, "listener.product_deleted", map[string]any{
				"product": ev.ProductID, "request_id": ev.Ctx.RequestID,
			})
			if err := l.Reconciler.EnqueueProductDeletion(ev.Ctx, ev.ProductID); err != nil {
				applog.Error(nil, "listener.enqueue", err, map[string]any{"product": ev.ProductID})
			}
		}
	})
}
