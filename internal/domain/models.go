package domain

// Translation is one localized name of a product or variant. Position keeps
// the original ordering; position 0 is the record's primary locale.
type Translation struct {
	Locale   string `db:"locale"`
	Name     string `db:"name"`
	Position int    `db:"position"`
}

type Asset struct {
	ID     string `db:"id"`
	Source string `db:"source"`
}

type Product struct {
	ID              string  `db:"id"`
	Enabled         bool    `db:"enabled"`
	WeightKg        float64 `db:"weight_kg"`
	FeaturedAssetID string  `db:"featured_asset_id"`
	DeletedAt       string  `db:"deleted_at"` // empty while live (soft delete)
	CreatedAt       string  `db:"created_at"`
	UpdatedAt       string  `db:"updated_at"`

	Translations []Translation
	Variants     []Variant
	Assets       []Asset
}

// Name returns the product name in its first locale.
func (p Product) Name() string {
	if len(p.Translations) == 0 {
		return ""
	}
	return p.Translations[0].Name
}

type Variant struct {
	ID              string `db:"id"`
	ProductID       string `db:"product_id"`
	SKU             string `db:"sku"`
	Enabled         bool   `db:"enabled"`
	FeaturedAssetID string `db:"featured_asset_id"`
	CreatedAt       string `db:"created_at"`
	UpdatedAt       string `db:"updated_at"`

	Translations []Translation
	Assets       []Asset
}

// VariantUpdate is the write shape accepted by the catalog's variant update
// operation. The asset list replaces the variant's current one.
type VariantUpdate struct {
	ID              string
	Locale          string
	Name            string
	Enabled         bool
	SKU             string
	AssetIDs        []string
	FeaturedAssetID string
}

type Order struct {
	ID              string `db:"id"`
	ChannelID       string `db:"channel_id"`
	State           string `db:"state"`
	ShippingWithTax int64  `db:"shipping_with_tax"` // minor units
	CreatedAt       string `db:"created_at"`
	UpdatedAt       string `db:"updated_at"`

	Lines    []OrderLine
	Payments []Payment // ordered; first is the primary payment
}

type OrderLine struct {
	ID           string `db:"id"`
	OrderID      string `db:"order_id"`
	VariantID    string `db:"variant_id"`
	Quantity     int    `db:"quantity"`
	CancelledQty int    `db:"cancelled_qty"`
	UnitPrice    int64  `db:"unit_price"` // minor units
	CreatedAt    string `db:"created_at"`
}

// ActiveQuantity is the not-yet-cancelled part of the line.
func (l OrderLine) ActiveQuantity() int { return l.Quantity - l.CancelledQty }

type Payment struct {
	ID        string `db:"id"`
	OrderID   string `db:"order_id"`
	Method    string `db:"method"`
	Amount    int64  `db:"amount"`
	State     string `db:"state"`
	CreatedAt string `db:"created_at"`
}

type Refund struct {
	ID            string `db:"id"`
	PaymentID     string `db:"payment_id"`
	Total         int64  `db:"total"`
	Items         int64  `db:"items"`
	Shipping      int64  `db:"shipping"`
	Adjustment    int64  `db:"adjustment"`
	Reason        string `db:"reason"`
	State         string `db:"state"` // Pending | Settled
	TransactionID string `db:"transaction_id"`
	Method        string `db:"method"`
	CreatedAt     string `db:"created_at"`
}

const (
	RefundStatePending = "Pending"
	RefundStateSettled = "Settled"
)

// RefundLine records which order line (and how many units) a refund covers.
type RefundLine struct {
	RefundID    string `db:"refund_id"`
	OrderLineID string `db:"order_line_id"`
	Quantity    int    `db:"quantity"`
}

type OrderNote struct {
	ID        string `db:"id"`
	OrderID   string `db:"order_id"`
	Note      string `db:"note"`
	IsPublic  bool   `db:"is_public"`
	CreatedAt string `db:"created_at"`
}
