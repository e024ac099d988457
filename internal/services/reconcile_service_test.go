package services_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"variantsync/internal/domain"
	"variantsync/internal/events"
	"variantsync/internal/queue"
	"variantsync/internal/repos"
	"variantsync/internal/reqctx"
	"variantsync/internal/services"
)

type reconcileEnv struct {
	db         *sqlx.DB
	products   *repos.ProductRepo
	variants   *repos.VariantRepo
	orders     *repos.OrderRepo
	refunds    *repos.RefundRepo
	queueRepo  *repos.QueueRepo
	orderSvc   *services.OrderService
	reconciler *services.ReconcileService
	snap       reqctx.Snapshot
}

func newReconcileEnv(t *testing.T) *reconcileEnv {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)

	e := &reconcileEnv{
		db:        db,
		products:  repos.NewProductRepo(db),
		variants:  repos.NewVariantRepo(db),
		orders:    repos.NewOrderRepo(db),
		refunds:   repos.NewRefundRepo(db),
		queueRepo: repos.NewQueueRepo(db),
		snap:      reqctx.Capture("test-channel", "en", "req-test"),
	}
	e.orderSvc = services.NewOrderService(e.orders, e.refunds)
	e.reconciler = services.NewReconcileService(e.products, e.orders, e.refunds, e.orderSvc, true)

	// the doomed product and a bystander product
	require.NoError(t, e.products.Create(domain.Product{
		ID: "p-doomed", Enabled: true,
		Translations: []domain.Translation{{Locale: "en", Name: "Acme Rocket"}},
	}))
	require.NoError(t, e.variants.Create(domain.Variant{
		ID: "v-doomed", ProductID: "p-doomed", SKU: "acme-rocket", Enabled: true,
		Translations: []domain.Translation{{Locale: "en", Name: "Acme Rocket"}},
	}))
	require.NoError(t, e.products.Create(domain.Product{
		ID: "p-other", Enabled: true,
		Translations: []domain.Translation{{Locale: "en", Name: "Plain Hammer"}},
	}))
	require.NoError(t, e.variants.Create(domain.Variant{
		ID: "v-other", ProductID: "p-other", SKU: "plain-hammer", Enabled: true,
		Translations: []domain.Translation{{Locale: "en", Name: "Plain Hammer"}},
	}))
	return e
}

func (e *reconcileEnv) createOrder(t *testing.T, o domain.Order) {
	t.Helper()
	if o.ChannelID == "" {
		o.ChannelID = "test-channel"
	}
	require.NoError(t, e.orders.Create(o))
}

func TestReconcileNoopWhileProductLive(t *testing.T) {
	e := newReconcileEnv(t)
	e.createOrder(t, domain.Order{
		ID: "o1", State: domain.OrderStatePaymentSettled, ShippingWithTax: 500,
		Lines:    []domain.OrderLine{{ID: "l1", VariantID: "v-doomed", Quantity: 1, UnitPrice: 1999}},
		Payments: []domain.Payment{{ID: "pay1", Amount: 2499, Method: "card", State: "Settled"}},
	})

	// no soft delete happened
	require.NoError(t, e.reconciler.Reconcile(e.snap, "p-doomed"))

	o, err := e.orders.Get("o1")
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatePaymentSettled, o.State)
	require.Len(t, o.Lines, 1)
	refs, err := e.refunds.ListByOrder("o1")
	require.NoError(t, err)
	require.Empty(t, refs)
}

func TestReconcileSettledOrderCancelsRefundsAndRefundsShipping(t *testing.T) {
	e := newReconcileEnv(t)
	e.createOrder(t, domain.Order{
		ID: "o1", State: domain.OrderStatePaymentSettled, ShippingWithTax: 500,
		Lines:    []domain.OrderLine{{ID: "l1", VariantID: "v-doomed", Quantity: 1, UnitPrice: 1999}},
		Payments: []domain.Payment{{ID: "pay1", Amount: 2499, Method: "card", State: "Settled"}},
	})

	require.NoError(t, e.products.SoftDelete("p-doomed"))
	require.NoError(t, e.reconciler.Reconcile(e.snap, "p-doomed"))

	o, err := e.orders.Get("o1")
	require.NoError(t, err)
	require.Equal(t, domain.OrderStateCancelled, o.State)
	require.Equal(t, 0, o.Lines[0].ActiveQuantity(), "line must be fully cancelled")

	refs, err := e.refunds.ListByOrder("o1")
	require.NoError(t, err)
	require.Len(t, refs, 2, "item refund plus shipping refund")

	var itemRefund, shippingRefund *domain.Refund
	for i := range refs {
		if strings.Contains(refs[i].Reason, "Shipping cost refund") {
			shippingRefund = &refs[i]
		} else {
			itemRefund = &refs[i]
		}
	}
	require.NotNil(t, itemRefund)
	require.NotNil(t, shippingRefund)

	require.Equal(t, int64(1999), itemRefund.Total)
	require.Equal(t, domain.RefundStateSettled, itemRefund.State)
	require.Equal(t, "pay1", itemRefund.TransactionID, "settled with the payment identity")
	require.Contains(t, itemRefund.Reason, "Acme Rocket")

	require.Equal(t, int64(500), shippingRefund.Total)
	require.Equal(t, int64(500), shippingRefund.Shipping)
	require.Equal(t, int64(0), shippingRefund.Adjustment)
	require.Equal(t, domain.RefundStateSettled, shippingRefund.State)
	require.Equal(t, "o1", shippingRefund.TransactionID, "keyed by order identity")
	require.Equal(t, "manual", shippingRefund.Method)

	notes, err := e.orders.Notes("o1")
	require.NoError(t, err)
	var shippingNote *domain.OrderNote
	for i := range notes {
		if strings.Contains(notes[i].Note, "shipping cost") {
			shippingNote = &notes[i]
		}
	}
	require.NotNil(t, shippingNote)
	require.False(t, shippingNote.IsPublic, "shipping note is private")
	require.Contains(t, shippingNote.Note, "5", "amount shown in major units (500/100)")
}

func TestReconcileArrangingPaymentRemovesOnlyAffectedLine(t *testing.T) {
	e := newReconcileEnv(t)
	e.createOrder(t, domain.Order{
		ID: "o1", State: domain.OrderStateArrangingPayment, ShippingWithTax: 300,
		Lines: []domain.OrderLine{
			{ID: "l1", VariantID: "v-doomed", Quantity: 1, UnitPrice: 1000},
			{ID: "l2", VariantID: "v-other", Quantity: 2, UnitPrice: 700},
		},
	})

	require.NoError(t, e.products.SoftDelete("p-doomed"))
	require.NoError(t, e.reconciler.Reconcile(e.snap, "p-doomed"))

	o, err := e.orders.Get("o1")
	require.NoError(t, err)
	require.Equal(t, domain.OrderStateArrangingPayment, o.State, "state restored after the detour")
	require.Len(t, o.Lines, 1)
	require.Equal(t, "l2", o.Lines[0].ID, "unrelated line intact")

	refs, err := e.refunds.ListByOrder("o1")
	require.NoError(t, err)
	require.Empty(t, refs, "no money moved, no refunds")
}

func TestReconcileSkipsOtherChannelsAndTerminalOrders(t *testing.T) {
	e := newReconcileEnv(t)
	e.createOrder(t, domain.Order{
		ID: "o-foreign", ChannelID: "other-channel", State: domain.OrderStateAddingItems,
		Lines: []domain.OrderLine{{ID: "f1", VariantID: "v-doomed", Quantity: 1, UnitPrice: 100}},
	})
	e.createOrder(t, domain.Order{
		ID: "o-done", State: domain.OrderStateDelivered,
		Lines: []domain.OrderLine{{ID: "d1", VariantID: "v-doomed", Quantity: 1, UnitPrice: 100}},
	})

	require.NoError(t, e.products.SoftDelete("p-doomed"))
	require.NoError(t, e.reconciler.Reconcile(e.snap, "p-doomed"))

	foreign, err := e.orders.Get("o-foreign")
	require.NoError(t, err)
	require.Len(t, foreign.Lines, 1, "other channel untouched")
	done, err := e.orders.Get("o-done")
	require.NoError(t, err)
	require.Len(t, done.Lines, 1, "terminal order untouched")
}

func TestReconcileIsIdempotent(t *testing.T) {
	e := newReconcileEnv(t)
	e.createOrder(t, domain.Order{
		ID: "o1", State: domain.OrderStatePaymentSettled, ShippingWithTax: 500,
		Lines:    []domain.OrderLine{{ID: "l1", VariantID: "v-doomed", Quantity: 1, UnitPrice: 1999}},
		Payments: []domain.Payment{{ID: "pay1", Amount: 2499, Method: "card", State: "Settled"}},
	})

	require.NoError(t, e.products.SoftDelete("p-doomed"))
	require.NoError(t, e.reconciler.Reconcile(e.snap, "p-doomed"))
	require.NoError(t, e.reconciler.Reconcile(e.snap, "p-doomed"))

	refs, err := e.refunds.ListByOrder("o1")
	require.NoError(t, err)
	require.Len(t, refs, 2, "second run must not add refunds")
}

func TestReconcileOneShippingRefundForMultiLineOrder(t *testing.T) {
	e := newReconcileEnv(t)
	// two lines of the same doomed product on one order
	e.createOrder(t, domain.Order{
		ID: "o1", State: domain.OrderStatePaymentSettled, ShippingWithTax: 400,
		Lines: []domain.OrderLine{
			{ID: "l1", VariantID: "v-doomed", Quantity: 1, UnitPrice: 1000},
			{ID: "l2", VariantID: "v-doomed", Quantity: 3, UnitPrice: 250},
		},
		Payments: []domain.Payment{{ID: "pay1", Amount: 2150, Method: "card", State: "Settled"}},
	})

	require.NoError(t, e.products.SoftDelete("p-doomed"))
	require.NoError(t, e.reconciler.Reconcile(e.snap, "p-doomed"))

	refs, err := e.refunds.ListByOrder("o1")
	require.NoError(t, err)
	shipping := 0
	for _, r := range refs {
		if r.TransactionID == "o1" {
			shipping++
			require.Equal(t, int64(400), r.Total)
		}
	}
	require.Equal(t, 1, shipping, "exactly one shipping refund per order identity")
}

// Duplicate WorkItem delivery through the real queue: the second run finds
// nothing left to do and issues no additional refunds.
func TestDuplicateWorkItemDelivery(t *testing.T) {
	e := newReconcileEnv(t)
	e.createOrder(t, domain.Order{
		ID: "o1", State: domain.OrderStatePaymentSettled, ShippingWithTax: 500,
		Lines:    []domain.OrderLine{{ID: "l1", VariantID: "v-doomed", Quantity: 1, UnitPrice: 1999}},
		Payments: []domain.Payment{{ID: "pay1", Amount: 2499, Method: "card", State: "Settled"}},
	})

	q := queue.New(services.DeletedProductQueue, e.queueRepo, 20*time.Millisecond, e.reconciler.ProcessWorkItem)
	e.reconciler.AttachQueue(q)

	bus := events.NewBus()
	sync := services.NewVariantSyncService(services.NewCatalogService(e.products, e.variants))
	services.NewListener(bus, sync, e.reconciler).Start()

	require.NoError(t, e.products.SoftDelete("p-doomed"))
	ev := events.ProductEvent{Type: events.TypeDeleted, ProductID: "p-doomed", Ctx: e.snap}
	bus.PublishProduct(ev)
	bus.PublishProduct(ev) // duplicate delivery

	n, err := e.queueRepo.PendingCount(services.DeletedProductQueue)
	require.NoError(t, err)
	require.Equal(t, 2, n, "enqueue only; nothing processed inline")

	q.Start(context.Background())
	defer q.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.True(t, q.Drain(ctx))
	bus.Close()

	refs, err := e.refunds.ListByOrder("o1")
	require.NoError(t, err)
	require.Len(t, refs, 2, "duplicate delivery adds no refunds")

	o, err := e.orders.Get("o1")
	require.NoError(t, err)
	require.Equal(t, domain.OrderStateCancelled, o.State)
}
