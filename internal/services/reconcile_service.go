package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"variantsync/internal/domain"
	applog "variantsync/internal/log"
	"variantsync/internal/queue"
	"variantsync/internal/reqctx"
	"variantsync/internal/repos"
)

// DeletedProductQueue is the name of the deferred work queue that carries
// product-deletion reconciliation jobs.
const DeletedProductQueue = "deleted-product-order-queue"

// workItem is the queue payload: the serialized request context plus the id
// of the soft-deleted product.
type workItem struct {
	Ctx       string `json:"ctx"`
	ProductID string `json:"product_id"`
}

// ReconcileService keeps order state consistent after a product is soft
// deleted: it strips the product's lines from every open order in the
// channel, cancels and refunds paid orders, and issues at most one manual
// shipping refund per order that ended up cancelled.
type ReconcileService struct {
	Products  *repos.ProductRepo
	OrderRepo *repos.OrderRepo
	Refunds   *repos.RefundRepo
	Orders    *OrderService

	// RestoreArrangingPayment replicates the forced transition back to
	// ArrangingPayment after line removal, even when the order emptied.
	RestoreArrangingPayment bool

	q *queue.Queue
}

func NewReconcileService(products *repos.ProductRepo, orderRepo *repos.OrderRepo,
	refunds *repos.RefundRepo, orders *OrderService, restoreArrangingPayment bool) *ReconcileService {
	return &ReconcileService{
		Products:                products,
		OrderRepo:               orderRepo,
		Refunds:                 refunds,
		Orders:                  orders,
		RestoreArrangingPayment: restoreArrangingPayment,
	}
}

// AttachQueue binds the service to its deferred work queue. Must be called
// before EnqueueProductDeletion.
func (s *ReconcileService) AttachQueue(q *queue.Queue) { s.q = q }

// ProcessWorkItem is the queue's process function.
func (s *ReconcileService) ProcessWorkItem(payload []byte) error {
	var item workItem
	if err := json.Unmarshal(payload, &item); err != nil {
		return fmt.Errorf("decode work item: %w", err)
	}
	snap, err := reqctx.Restore(item.Ctx)
	if err != nil {
		return fmt.Errorf("restore request context: %w", err)
	}
	return s.Reconcile(snap, item.ProductID)
}

// EnqueueProductDeletion snapshots the request context and defers the
// reconciliation. Deletion cascades can be slow; the deleting request only
// pays for one queue insert.
func (s *ReconcileService) EnqueueProductDeletion(snap reqctx.Snapshot, productID string) error {
	ctx, err := snap.Serialize()
	if err != nil {
		return err
	}
	return s.q.Add(workItem{Ctx: ctx, ProductID: productID})
}

// Reconcile runs the deletion workflow for one product. Safe under
// re-delivery: already-processed orders no longer match the affected-order
// query, and the shipping refund is keyed by order identity.
func (s *ReconcileService) Reconcile(snap reqctx.Snapshot, productID string) error {
	product, err := s.Products.GetDeleted(productID)
	if errors.Is(err, sql.ErrNoRows) {
		// Not committed as deleted (or deletion was reversed); nothing to do.
		applog.Error(nil, "reconcile.product_not_deleted", nil, map[string]any{
			"product": productID, "request_id": snap.RequestID,
		})
		return nil
	}
	if err != nil {
		return err
	}
	productName := product.Name()

	orders, err := s.OrderRepo.FindAffected(snap.ChannelID, productID, domain.ReconcilableStates)
	if err != nil {
		return err
	}
	applog.Info(nil, "reconcile.start", map[string]any{
		"product": productID, "orders": len(orders), "request_id": snap.RequestID,
	})

	var candidates []domain.Order
	for _, order := range orders {
		candidate, err := s.reconcileOrder(order, productID, productName)
		if err != nil {
			// One broken order must not starve the rest of the batch.
			applog.Error(nil, "reconcile.order", err, map[string]any{
				"product": productID, "order": order.ID,
			})
			continue
		}
		if candidate != nil {
			candidates = append(candidates, *candidate)
		}
	}

	s.refundShipping(dedupOrders(candidates), productName)
	return nil
}

// reconcileOrder handles one affected order. order.Lines holds only the
// deleted product's still-active lines. Returns the reloaded order when it
// ended up Cancelled, making it a shipping-refund candidate.
func (s *ReconcileService) reconcileOrder(order domain.Order, productID, productName string) (*domain.Order, error) {
	if len(order.Lines) == 0 {
		return nil, nil
	}

	// Removing lines is only valid while adding items; detour and restore.
	transitioned := false
	if order.State == domain.OrderStateArrangingPayment {
		res, err := s.Orders.TransitionToState(order.ID, domain.OrderStateAddingItems)
		if err != nil {
			return nil, err
		}
		if res.Rejected != nil {
			applog.Warn(nil, "reconcile.transition_rejected", map[string]any{
				"order": order.ID, "rejection": res.Rejected.String(),
			})
		} else {
			transitioned = true
		}
	}

	for _, line := range order.Lines {
		applog.Info(nil, "reconcile.remove_line", map[string]any{
			"product": productID, "order": order.ID, "line": line.ID,
		})
		res, err := s.Orders.RemoveItemFromOrder(order.ID, line.ID)
		if err != nil {
			return nil, err
		}
		if res.Rejected != nil {
			// Expected for paid orders; cancellation picks those lines up below.
			applog.Warn(nil, "reconcile.remove_rejected", map[string]any{
				"order": order.ID, "line": line.ID, "rejection": res.Rejected.String(),
			})
		}
	}

	if transitioned && s.RestoreArrangingPayment {
		res, err := s.Orders.TransitionToState(order.ID, domain.OrderStateArrangingPayment)
		if err != nil {
			return nil, err
		}
		if res.Rejected != nil {
			applog.Warn(nil, "reconcile.restore_rejected", map[string]any{
				"order": order.ID, "rejection": res.Rejected.String(),
			})
		}
	}

	if order.State == domain.OrderStatePaymentAuthorized || order.State == domain.OrderStatePaymentSettled {
		if done, err := s.cancelAndRefund(order, productName); err != nil || !done {
			return nil, err
		}
	}

	current, err := s.Orders.FindOrder(order.ID)
	if err != nil {
		return nil, err
	}
	if current.State == domain.OrderStateCancelled {
		return &current, nil
	}
	return nil, nil
}

// cancelAndRefund cancels the removed lines of a paid order and refunds them
// against its primary payment. Returns false when a domain rejection stopped
// the order from being processed further (logged, not an error).
func (s *ReconcileService) cancelAndRefund(order domain.Order, productName string) (bool, error) {
	applog.Info(nil, "reconcile.refund_order", map[string]any{"order": order.ID})

	lines := make([]LineInput, 0, len(order.Lines))
	for _, l := range order.Lines {
		lines = append(lines, LineInput{OrderLineID: l.ID, Quantity: l.Quantity})
	}

	cancelled, err := s.Orders.CancelOrder(CancelOrderInput{
		OrderID: order.ID,
		Lines:   lines,
		Reason:  fmt.Sprintf("Product %s deleted", productName),
	})
	if err != nil {
		return false, err
	}
	if cancelled.Rejected != nil {
		applog.Warn(nil, "reconcile.cancel_rejected", map[string]any{
			"order": order.ID, "rejection": cancelled.Rejected.String(),
		})
		return false, nil
	}

	if len(order.Payments) == 0 {
		applog.Warn(nil, "reconcile.no_payment", map[string]any{"order": order.ID})
		return false, nil
	}
	primary := order.Payments[0]

	refunded, err := s.Orders.RefundOrder(RefundOrderInput{
		Lines:      lines,
		Reason:     fmt.Sprintf("Product %s deleted", productName),
		PaymentID:  primary.ID,
		Shipping:   0,
		Adjustment: 0,
	})
	if err != nil {
		return false, err
	}
	if refunded.Rejected != nil {
		applog.Warn(nil, "reconcile.refund_rejected", map[string]any{
			"order": order.ID, "rejection": refunded.Rejected.String(),
		})
		return true, nil
	}
	if refunded.Refund.State != domain.RefundStateSettled {
		settled, err := s.Orders.SettleRefund(refunded.Refund.ID, primary.ID)
		if err != nil {
			return false, err
		}
		if settled.Rejected != nil {
			applog.Warn(nil, "reconcile.settle_rejected", map[string]any{
				"order": order.ID, "refund": refunded.Refund.ID, "rejection": settled.Rejected.String(),
			})
		}
	}
	return true, nil
}

// refundShipping issues the manual shipping refund for each uniquely
// cancelled order, at most once per order identity. The refund is recorded
// against the local ledger only; no gateway call is made.
func (s *ReconcileService) refundShipping(orders []domain.Order, productName string) {
	for _, order := range orders {
		_, exists, err := s.Refunds.FindByTransactionID(order.ID)
		if err != nil {
			applog.Error(nil, "reconcile.shipping_refund.lookup", err, map[string]any{"order": order.ID})
			continue
		}
		if exists {
			continue // already issued on a previous delivery
		}
		if len(order.Payments) == 0 {
			applog.Warn(nil, "reconcile.shipping_refund.no_payment", map[string]any{"order": order.ID})
			continue
		}

		amount := order.ShippingWithTax
		refund := domain.Refund{
			ID:            uuid.NewString(),
			PaymentID:     order.Payments[0].ID,
			Total:         amount,
			Items:         0,
			Shipping:      amount,
			Adjustment:    0,
			Reason:        fmt.Sprintf("Final product %s deleted - Shipping cost refund", productName),
			State:         domain.RefundStateSettled,
			TransactionID: order.ID,
			Method:        "manual",
		}
		if err := s.Refunds.Insert(refund, nil); err != nil {
			applog.Error(nil, "reconcile.shipping_refund.insert", err, map[string]any{"order": order.ID})
			continue
		}

		display := decimal.NewFromInt(amount).Div(decimal.NewFromInt(100))
		note := fmt.Sprintf("Refunding shipping cost %s due to product deletion", display)
		if res, err := s.Orders.AddNoteToOrder(order.ID, note, false); err != nil {
			applog.Error(nil, "reconcile.shipping_refund.note", err, map[string]any{"order": order.ID})
		} else if res.Rejected != nil {
			applog.Warn(nil, "reconcile.shipping_refund.note_rejected", map[string]any{
				"order": order.ID, "rejection": res.Rejected.String(),
			})
		}
		applog.Info(nil, "reconcile.shipping_refund.issued", map[string]any{
			"order": order.ID, "amount": amount,
		})
	}
}

// dedupOrders keeps the first occurrence of each order identity. The same
// order reaches the candidate list once per processed batch entry.
func dedupOrders(orders []domain.Order) []domain.Order {
	seen := make(map[string]bool, len(orders))
	out := orders[:0]
	for _, o := range orders {
		if seen[o.ID] {
			continue
		}
		seen[o.ID] = true
		out = append(out, o)
	}
	return out
}
