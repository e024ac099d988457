package events_test

import (
	"testing"

	"variantsync/internal/events"
	"variantsync/internal/reqctx"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	bus := events.NewBus()
	var got []string
	bus.SubscribeProduct(func(ev events.ProductEvent) { got = append(got, "a:"+ev.ProductID) })
	bus.SubscribeProduct(func(ev events.ProductEvent) { got = append(got, "b:"+ev.ProductID) })

	bus.PublishProduct(events.ProductEvent{Type: events.TypeDeleted, ProductID: "p1"})

	if len(got) != 2 || got[0] != "a:p1" || got[1] != "b:p1" {
		t.Fatalf("unexpected dispatch: %v", got)
	}
}

func TestVariantEventCarriesBatch(t *testing.T) {
	bus := events.NewBus()
	var ids []string
	bus.SubscribeVariant(func(ev events.VariantEvent) { ids = ev.VariantIDs })

	snap := reqctx.Capture("default-channel", "en", "")
	bus.PublishVariant(events.VariantEvent{Type: events.TypeCreated, VariantIDs: []string{"v1", "v2"}, Ctx: snap})

	if len(ids) != 2 {
		t.Fatalf("want 2 variant ids, got %v", ids)
	}
}

func TestCloseTearsDownSubscriptions(t *testing.T) {
	bus := events.NewBus()
	calls := 0
	bus.SubscribeProduct(func(events.ProductEvent) { calls++ })

	bus.Close()
	bus.PublishProduct(events.ProductEvent{Type: events.TypeDeleted, ProductID: "p1"})
	bus.SubscribeProduct(func(events.ProductEvent) { calls++ })
	bus.PublishProduct(events.ProductEvent{Type: events.TypeDeleted, ProductID: "p1"})

	if calls != 0 {
		t.Fatalf("closed bus still dispatched %d times", calls)
	}
}
