package repos

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"variantsync/internal/domain"
)

type RefundRepo struct{ db *sqlx.DB }

func NewRefundRepo(db *sqlx.DB) *RefundRepo { return &RefundRepo{db: db} }

const refundCols = `id, payment_id, total, items, shipping, adjustment,
  COALESCE(reason,'') AS reason, state,
  COALESCE(transaction_id,'') AS transaction_id, method,
  COALESCE(created_at,'') AS created_at`

func (r *RefundRepo) Get(id string) (domain.Refund, error) {
	var ref domain.Refund
	err := r.db.Get(&ref, `SELECT `+refundCols+` FROM refunds WHERE id = ?`, id)
	return ref, err
}

// FindByTransactionID looks a refund up by its correlation id. The boolean
// reports whether one exists; no error for a clean miss.
func (r *RefundRepo) FindByTransactionID(txID string) (domain.Refund, bool, error) {
	var ref domain.Refund
	err := r.db.Get(&ref, `
		SELECT `+refundCols+` FROM refunds WHERE transaction_id = ? LIMIT 1
	`, txID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Refund{}, false, nil
	}
	if err != nil {
		return domain.Refund{}, false, err
	}
	return ref, true, nil
}

// Insert persists the refund with its optional line breakdown.
func (r *RefundRepo) Insert(ref domain.Refund, lines []domain.RefundLine) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		INSERT INTO refunds(id, payment_id, total, items, shipping, adjustment,
		  reason, state, transaction_id, method)
		VALUES(?,?,?,?,?,?,?,?,?,?)
	`, ref.ID, ref.PaymentID, ref.Total, ref.Items, ref.Shipping, ref.Adjustment,
		ref.Reason, ref.State, ref.TransactionID, ref.Method); err != nil {
		return err
	}
	for _, l := range lines {
		if _, err := tx.Exec(`
			INSERT INTO refund_lines(refund_id, order_line_id, quantity) VALUES(?,?,?)
		`, ref.ID, l.OrderLineID, l.Quantity); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Settle marks the refund settled under the given correlation id.
func (r *RefundRepo) Settle(id, transactionID string) error {
	_, err := r.db.Exec(`
		UPDATE refunds SET state = ?, transaction_id = ? WHERE id = ?
	`, domain.RefundStateSettled, transactionID, id)
	return err
}

// ListByOrder returns every refund issued against the order's payments.
func (r *RefundRepo) ListByOrder(orderID string) ([]domain.Refund, error) {
	var refs []domain.Refund
	err := r.db.Select(&refs, `
		SELECT r.id, r.payment_id, r.total, r.items, r.shipping, r.adjustment,
		  COALESCE(r.reason,'') AS reason, r.state,
		  COALESCE(r.transaction_id,'') AS transaction_id, r.method,
		  COALESCE(r.created_at,'') AS created_at
		FROM refunds r
		JOIN payments p ON p.id = r.payment_id
		WHERE p.order_id = ?
		ORDER BY r.created_at, r.id
	`, orderID)
	return refs, err
}
