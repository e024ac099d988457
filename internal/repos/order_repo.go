package repos

import (
	"github.com/jmoiron/sqlx"

	"variantsync/internal/domain"
)

type OrderRepo struct{ db *sqlx.DB }

func NewOrderRepo(db *sqlx.DB) *OrderRepo { return &OrderRepo{db: db} }

const orderCols = `id, channel_id, state, shipping_with_tax,
  COALESCE(created_at,'') AS created_at,
  COALESCE(updated_at,'') AS updated_at`

const lineCols = `id, order_id, variant_id, quantity, cancelled_qty, unit_price,
  COALESCE(created_at,'') AS created_at`

// Get returns the order with all of its lines and payments.
// Payments keep insertion order; the first one is the primary payment.
func (r *OrderRepo) Get(id string) (domain.Order, error) {
	var o domain.Order
	if err := r.db.Get(&o, `SELECT `+orderCols+` FROM orders WHERE id = ?`, id); err != nil {
		return domain.Order{}, err
	}
	if err := r.db.Select(&o.Lines, `
		SELECT `+lineCols+` FROM order_lines WHERE order_id = ? ORDER BY created_at, id
	`, id); err != nil {
		return domain.Order{}, err
	}
	if err := r.loadPayments(&o); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *OrderRepo) loadPayments(o *domain.Order) error {
	return r.db.Select(&o.Payments, `
		SELECT id, order_id, method, amount, state, COALESCE(created_at,'') AS created_at
		FROM payments WHERE order_id = ? ORDER BY created_at, id
	`, o.ID)
}

// FindAffected returns the channel's orders, in the given states, that hold
// at least one active line referencing a variant of the product. Each
// returned order carries only those affected lines, plus its payments.
func (r *OrderRepo) FindAffected(channelID, productID string, states []string) ([]domain.Order, error) {
	query, args, err := sqlx.In(`
		SELECT DISTINCT o.id, o.channel_id, o.state, o.shipping_with_tax,
		  COALESCE(o.created_at,'') AS created_at,
		  COALESCE(o.updated_at,'') AS updated_at
		FROM orders o
		JOIN order_lines l ON l.order_id = o.id
		JOIN variants v    ON v.id = l.variant_id
		WHERE o.channel_id = ?
		  AND v.product_id = ?
		  AND o.state IN (?)
		  AND l.quantity > l.cancelled_qty
		ORDER BY o.created_at, o.id
	`, channelID, productID, states)
	if err != nil {
		return nil, err
	}

	var orders []domain.Order
	if err := r.db.Select(&orders, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for i := range orders {
		if err := r.db.Select(&orders[i].Lines, `
			SELECT `+lineCols+` FROM order_lines
			WHERE order_id = ?
			  AND quantity > cancelled_qty
			  AND variant_id IN (SELECT id FROM variants WHERE product_id = ?)
			ORDER BY created_at, id
		`, orders[i].ID, productID); err != nil {
			return nil, err
		}
		if err := r.loadPayments(&orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *OrderRepo) UpdateState(id, state string) error {
	_, err := r.db.Exec(`
		UPDATE orders SET state = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, state, id)
	return err
}

// Line returns a single order line. sql.ErrNoRows when it does not exist.
func (r *OrderRepo) Line(lineID string) (domain.OrderLine, error) {
	var l domain.OrderLine
	err := r.db.Get(&l, `SELECT `+lineCols+` FROM order_lines WHERE id = ?`, lineID)
	return l, err
}

// LinesByID returns the surviving rows among the given line ids. Missing ids
// are simply absent from the result.
func (r *OrderRepo) LinesByID(ids []string) ([]domain.OrderLine, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT `+lineCols+` FROM order_lines WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var lines []domain.OrderLine
	err = r.db.Select(&lines, r.db.Rebind(query), args...)
	return lines, err
}

func (r *OrderRepo) DeleteLine(lineID string) error {
	_, err := r.db.Exec(`DELETE FROM order_lines WHERE id = ?`, lineID)
	return err
}

// CancelLineQuantity marks up to qty units of the line as cancelled.
func (r *OrderRepo) CancelLineQuantity(lineID string, qty int) error {
	_, err := r.db.Exec(`
		UPDATE order_lines
		SET cancelled_qty = MIN(quantity, cancelled_qty + ?)
		WHERE id = ?
	`, qty, lineID)
	return err
}

// ActiveQuantity sums the not-yet-cancelled units across the order's lines.
func (r *OrderRepo) ActiveQuantity(orderID string) (int, error) {
	var n int
	err := r.db.Get(&n, `
		SELECT COALESCE(SUM(quantity - cancelled_qty), 0)
		FROM order_lines WHERE order_id = ?
	`, orderID)
	return n, err
}

func (r *OrderRepo) AddNote(n domain.OrderNote) error {
	_, err := r.db.Exec(`
		INSERT INTO order_notes(id, order_id, note, is_public) VALUES(?,?,?,?)
	`, n.ID, n.OrderID, n.Note, n.IsPublic)
	return err
}

func (r *OrderRepo) Notes(orderID string) ([]domain.OrderNote, error) {
	var notes []domain.OrderNote
	err := r.db.Select(&notes, `
		SELECT id, order_id, note, is_public, COALESCE(created_at,'') AS created_at
		FROM order_notes WHERE order_id = ? ORDER BY created_at, id
	`, orderID)
	return notes, err
}

// Create inserts an order with its lines and payments (fixtures, host API).
func (r *OrderRepo) Create(o domain.Order) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		INSERT INTO orders(id, channel_id, state, shipping_with_tax) VALUES(?,?,?,?)
	`, o.ID, o.ChannelID, o.State, o.ShippingWithTax); err != nil {
		return err
	}
	for _, l := range o.Lines {
		if _, err := tx.Exec(`
			INSERT INTO order_lines(id, order_id, variant_id, quantity, cancelled_qty, unit_price)
			VALUES(?,?,?,?,?,?)
		`, l.ID, o.ID, l.VariantID, l.Quantity, l.CancelledQty, l.UnitPrice); err != nil {
			return err
		}
	}
	for _, p := range o.Payments {
		if _, err := tx.Exec(`
			INSERT INTO payments(id, order_id, method, amount, state) VALUES(?,?,?,?,?)
		`, p.ID, o.ID, p.Method, p.Amount, p.State); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Payment returns a payment row. sql.ErrNoRows when missing.
func (r *OrderRepo) Payment(id string) (domain.Payment, error) {
	var p domain.Payment
	err := r.db.Get(&p, `
		SELECT id, order_id, method, amount, state, COALESCE(created_at,'') AS created_at
		FROM payments WHERE id = ?
	`, id)
	return p, err
}
