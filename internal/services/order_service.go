package services

import (
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"variantsync/internal/domain"
	"variantsync/internal/repos"
)

// OrderService drives the order state machine. Every operation returns a
// discriminated result: Rejected non-nil means the domain refused the
// operation (wrong state, missing record); that is an answer, not an error.
// The error return is reserved for storage failures.
type OrderService struct {
	Orders  *repos.OrderRepo
	Refunds *repos.RefundRepo
}

func NewOrderService(orders *repos.OrderRepo, refunds *repos.RefundRepo) *OrderService {
	return &OrderService{Orders: orders, Refunds: refunds}
}

type OrderResult struct {
	Order    domain.Order
	Rejected *domain.Rejection
}

type RefundResult struct {
	Refund   domain.Refund
	Rejected *domain.Rejection
}

// LineInput names a line and a quantity for cancellation or refund.
type LineInput struct {
	OrderLineID string
	Quantity    int
}

type CancelOrderInput struct {
	OrderID string
	Lines   []LineInput
	Reason  string
}

type RefundOrderInput struct {
	Lines      []LineInput
	Reason     string
	PaymentID  string
	Shipping   int64
	Adjustment int64
}

func (s *OrderService) FindOrder(id string) (domain.Order, error) {
	return s.Orders.Get(id)
}

// TransitionToState moves the order along one edge of the state machine.
func (s *OrderService) TransitionToState(orderID, to string) (OrderResult, error) {
	o, err := s.Orders.Get(orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return OrderResult{Rejected: domain.Rejectf(domain.RejectOrderNotFound, "order %s not found", orderID)}, nil
	}
	if err != nil {
		return OrderResult{}, err
	}
	if !domain.CanTransition(o.State, to) {
		return OrderResult{Rejected: domain.Rejectf(domain.RejectInvalidTransition,
			"cannot transition order %s from %s to %s", orderID, o.State, to)}, nil
	}
	if err := s.Orders.UpdateState(orderID, to); err != nil {
		return OrderResult{}, err
	}
	o.State = to
	return OrderResult{Order: o}, nil
}

// RemoveItemFromOrder deletes one line. Only legal while the order contents
// are still editable; paid orders must go through cancellation instead.
func (s *OrderService) RemoveItemFromOrder(orderID, lineID string) (OrderResult, error) {
	o, err := s.Orders.Get(orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return OrderResult{Rejected: domain.Rejectf(domain.RejectOrderNotFound, "order %s not found", orderID)}, nil
	}
	if err != nil {
		return OrderResult{}, err
	}
	if !domain.CanRemoveLines(o.State) {
		return OrderResult{Rejected: domain.Rejectf(domain.RejectModificationError,
			"order %s is in state %s; lines cannot be removed", orderID, o.State)}, nil
	}
	line, err := s.Orders.Line(lineID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && line.OrderID != orderID) {
		return OrderResult{Rejected: domain.Rejectf(domain.RejectLineNotFound,
			"order %s has no line %s", orderID, lineID)}, nil
	}
	if err != nil {
		return OrderResult{}, err
	}
	if err := s.Orders.DeleteLine(lineID); err != nil {
		return OrderResult{}, err
	}
	return s.reload(orderID)
}

// CancelOrder cancels the named line quantities. Line ids that no longer
// exist are tolerated: the caller may already have removed them. When no
// active quantity remains afterwards the whole order becomes Cancelled.
func (s *OrderService) CancelOrder(in CancelOrderInput) (OrderResult, error) {
	o, err := s.Orders.Get(in.OrderID)
	if errors.Is(err, sql.ErrNoRows) {
		return OrderResult{Rejected: domain.Rejectf(domain.RejectOrderNotFound, "order %s not found", in.OrderID)}, nil
	}
	if err != nil {
		return OrderResult{}, err
	}
	if o.State == domain.OrderStateCancelled {
		return OrderResult{Rejected: domain.Rejectf(domain.RejectCancelError,
			"order %s is already cancelled", in.OrderID)}, nil
	}
	if !domain.CanTransition(o.State, domain.OrderStateCancelled) {
		return OrderResult{Rejected: domain.Rejectf(domain.RejectCancelError,
			"order %s in state %s cannot be cancelled", in.OrderID, o.State)}, nil
	}

	for _, li := range in.Lines {
		line, err := s.Orders.Line(li.OrderLineID)
		if errors.Is(err, sql.ErrNoRows) {
			continue // already removed
		}
		if err != nil {
			return OrderResult{}, err
		}
		if line.OrderID != in.OrderID {
			return OrderResult{Rejected: domain.Rejectf(domain.RejectLineNotFound,
				"order %s has no line %s", in.OrderID, li.OrderLineID)}, nil
		}
		if err := s.Orders.CancelLineQuantity(li.OrderLineID, li.Quantity); err != nil {
			return OrderResult{}, err
		}
	}

	active, err := s.Orders.ActiveQuantity(in.OrderID)
	if err != nil {
		return OrderResult{}, err
	}
	if active == 0 {
		if err := s.Orders.UpdateState(in.OrderID, domain.OrderStateCancelled); err != nil {
			return OrderResult{}, err
		}
		if in.Reason != "" {
			note := domain.OrderNote{ID: uuid.NewString(), OrderID: in.OrderID, Note: in.Reason}
			if err := s.Orders.AddNote(note); err != nil {
				return OrderResult{}, err
			}
		}
	}
	return s.reload(in.OrderID)
}

// RefundOrder creates a Pending refund against the given payment for the
// named lines. Amounts are taken from the line records as stored; line ids
// that no longer exist contribute nothing.
func (s *OrderService) RefundOrder(in RefundOrderInput) (RefundResult, error) {
	payment, err := s.Orders.Payment(in.PaymentID)
	if errors.Is(err, sql.ErrNoRows) {
		return RefundResult{Rejected: domain.Rejectf(domain.RejectPaymentNotFound,
			"payment %s not found", in.PaymentID)}, nil
	}
	if err != nil {
		return RefundResult{}, err
	}

	ids := make([]string, 0, len(in.Lines))
	qty := make(map[string]int, len(in.Lines))
	for _, li := range in.Lines {
		ids = append(ids, li.OrderLineID)
		qty[li.OrderLineID] = li.Quantity
	}
	lines, err := s.Orders.LinesByID(ids)
	if err != nil {
		return RefundResult{}, err
	}

	var items int64
	refundLines := make([]domain.RefundLine, 0, len(lines))
	for _, l := range lines {
		q := qty[l.ID]
		if q > l.Quantity {
			q = l.Quantity
		}
		items += l.UnitPrice * int64(q)
		refundLines = append(refundLines, domain.RefundLine{OrderLineID: l.ID, Quantity: q})
	}

	refund := domain.Refund{
		ID:         uuid.NewString(),
		PaymentID:  payment.ID,
		Total:      items + in.Shipping + in.Adjustment,
		Items:      items,
		Shipping:   in.Shipping,
		Adjustment: in.Adjustment,
		Reason:     in.Reason,
		State:      domain.RefundStatePending,
		Method:     payment.Method,
	}
	for i := range refundLines {
		refundLines[i].RefundID = refund.ID
	}
	if err := s.Refunds.Insert(refund, refundLines); err != nil {
		return RefundResult{}, err
	}
	return RefundResult{Refund: refund}, nil
}

// SettleRefund marks the refund settled under the given correlation id.
func (s *OrderService) SettleRefund(refundID, transactionID string) (RefundResult, error) {
	ref, err := s.Refunds.Get(refundID)
	if errors.Is(err, sql.ErrNoRows) {
		return RefundResult{Rejected: domain.Rejectf(domain.RejectRefundNotFound,
			"refund %s not found", refundID)}, nil
	}
	if err != nil {
		return RefundResult{}, err
	}
	if err := s.Refunds.Settle(refundID, transactionID); err != nil {
		return RefundResult{}, err
	}
	ref.State = domain.RefundStateSettled
	ref.TransactionID = transactionID
	return RefundResult{Refund: ref}, nil
}

// AddNoteToOrder appends a note; private notes never reach the customer.
func (s *OrderService) AddNoteToOrder(orderID, text string, isPublic bool) (OrderResult, error) {
	o, err := s.Orders.Get(orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return OrderResult{Rejected: domain.Rejectf(domain.RejectOrderNotFound, "order %s not found", orderID)}, nil
	}
	if err != nil {
		return OrderResult{}, err
	}
	note := domain.OrderNote{ID: uuid.NewString(), OrderID: orderID, Note: text, IsPublic: isPublic}
	if err := s.Orders.AddNote(note); err != nil {
		return OrderResult{}, err
	}
	return OrderResult{Order: o}, nil
}

func (s *OrderService) reload(orderID string) (OrderResult, error) {
	o, err := s.Orders.Get(orderID)
	if err != nil {
		return OrderResult{}, err
	}
	return OrderResult{Order: o}, nil
}
