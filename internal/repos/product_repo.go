package repos

import (
	"time"

	"github.com/jmoiron/sqlx"

	"variantsync/internal/domain"
)

type ProductRepo struct{ db *sqlx.DB }

func NewProductRepo(db *sqlx.DB) *ProductRepo { return &ProductRepo{db: db} }

const productCols = `id, enabled, weight_kg,
  COALESCE(featured_asset_id,'') AS featured_asset_id,
  COALESCE(deleted_at,'') AS deleted_at,
  COALESCE(created_at,'') AS created_at,
  COALESCE(updated_at,'') AS updated_at`

// Get returns a live (not soft-deleted) product with its translations,
// assets and variants. sql.ErrNoRows when missing or deleted.
func (r *ProductRepo) Get(id string) (domain.Product, error) {
	var p domain.Product
	if err := r.db.Get(&p, `
		SELECT `+productCols+` FROM products
		WHERE id = ? AND deleted_at IS NULL
	`, id); err != nil {
		return domain.Product{}, err
	}
	if err := r.loadRelations(&p); err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

// GetDeleted returns the product only if it is confirmed soft-deleted.
// sql.ErrNoRows otherwise, including when the product is still live.
func (r *ProductRepo) GetDeleted(id string) (domain.Product, error) {
	var p domain.Product
	if err := r.db.Get(&p, `
		SELECT `+productCols+` FROM products
		WHERE id = ? AND deleted_at IS NOT NULL
	`, id); err != nil {
		return domain.Product{}, err
	}
	if err := r.loadRelations(&p); err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

func (r *ProductRepo) loadRelations(p *domain.Product) error {
	if err := r.db.Select(&p.Translations, `
		SELECT locale, name, position FROM product_translations
		WHERE product_id = ? ORDER BY position
	`, p.ID); err != nil {
		return err
	}
	if err := r.db.Select(&p.Assets, `
		SELECT a.id, a.source
		FROM product_assets pa JOIN assets a ON a.id = pa.asset_id
		WHERE pa.product_id = ? ORDER BY pa.position
	`, p.ID); err != nil {
		return err
	}
	var variants []domain.Variant
	if err := r.db.Select(&variants, `
		SELECT id, product_id, sku, enabled,
		  COALESCE(featured_asset_id,'') AS featured_asset_id,
		  COALESCE(created_at,'') AS created_at,
		  COALESCE(updated_at,'') AS updated_at
		FROM variants WHERE product_id = ? ORDER BY created_at, id
	`, p.ID); err != nil {
		return err
	}
	p.Variants = variants
	return nil
}

// SoftDelete stamps the product as deleted. The row stays readable so the
// reconciler can still resolve its name afterwards.
func (r *ProductRepo) SoftDelete(id string) error {
	_, err := r.db.Exec(`
		UPDATE products SET deleted_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL
	`, time.Now().UTC().Format(time.RFC3339), id)
	return err
}

// Undelete reverses a soft delete (compensating action).
func (r *ProductRepo) Undelete(id string) error {
	_, err := r.db.Exec(`
		UPDATE products SET deleted_at = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, id)
	return err
}

// Rename upserts the product's name in the given locale. A new locale is
// appended after the existing translations.
func (r *ProductRepo) Rename(id, locale, name string) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		INSERT INTO product_translations(product_id, locale, name, position)
		VALUES(?,?,?, COALESCE((SELECT MAX(position)+1 FROM product_translations WHERE product_id = ?), 0))
		ON CONFLICT(product_id, locale) DO UPDATE SET name = excluded.name
	`, id, locale, name, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		UPDATE products SET updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// Create inserts a product with its translations and asset links.
func (r *ProductRepo) Create(p domain.Product) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	featured := any(nil)
	if p.FeaturedAssetID != "" {
		featured = p.FeaturedAssetID
	}
	if _, err := tx.Exec(`
		INSERT INTO products(id, enabled, weight_kg, featured_asset_id)
		VALUES(?,?,?,?)
	`, p.ID, p.Enabled, p.WeightKg, featured); err != nil {
		return err
	}
	for i, t := range p.Translations {
		if _, err := tx.Exec(`
			INSERT INTO product_translations(product_id, locale, name, position)
			VALUES(?,?,?,?)
		`, p.ID, t.Locale, t.Name, i); err != nil {
			return err
		}
	}
	for i, a := range p.Assets {
		if _, err := tx.Exec(`
			INSERT INTO product_assets(product_id, asset_id, position) VALUES(?,?,?)
		`, p.ID, a.ID, i); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CreateAsset inserts an asset record.
func (r *ProductRepo) CreateAsset(a domain.Asset) error {
	_, err := r.db.Exec(`INSERT INTO assets(id, source) VALUES(?,?)`, a.ID, a.Source)
	return err
}
