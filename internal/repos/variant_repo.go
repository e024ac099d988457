package repos

import (
	"github.com/jmoiron/sqlx"

	"variantsync/internal/domain"
)

type VariantRepo struct{ db *sqlx.DB }

func NewVariantRepo(db *sqlx.DB) *VariantRepo { return &VariantRepo{db: db} }

const variantCols = `id, product_id, sku, enabled,
  COALESCE(featured_asset_id,'') AS featured_asset_id,
  COALESCE(created_at,'') AS created_at,
  COALESCE(updated_at,'') AS updated_at`

// Get returns the variant with its translations and assets.
func (r *VariantRepo) Get(id string) (domain.Variant, error) {
	var v domain.Variant
	if err := r.db.Get(&v, `SELECT `+variantCols+` FROM variants WHERE id = ?`, id); err != nil {
		return domain.Variant{}, err
	}
	if err := r.db.Select(&v.Translations, `
		SELECT locale, name, position FROM variant_translations
		WHERE variant_id = ? ORDER BY position
	`, v.ID); err != nil {
		return domain.Variant{}, err
	}
	if err := r.db.Select(&v.Assets, `
		SELECT a.id, a.source
		FROM variant_assets va JOIN assets a ON a.id = va.asset_id
		WHERE va.variant_id = ? ORDER BY va.position
	`, v.ID); err != nil {
		return domain.Variant{}, err
	}
	return v, nil
}

// Update applies a VariantUpdate: scalar fields, the named locale's
// translation, and a full replacement of the asset links. One transaction, so
// a half-applied sync is never visible.
func (r *VariantRepo) Update(u domain.VariantUpdate) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	featured := any(nil)
	if u.FeaturedAssetID != "" {
		featured = u.FeaturedAssetID
	}
	if _, err := tx.Exec(`
		UPDATE variants
		SET sku = ?, enabled = ?, featured_asset_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, u.SKU, u.Enabled, featured, u.ID); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		INSERT INTO variant_translations(variant_id, locale, name, position)
		VALUES(?,?,?,0)
		ON CONFLICT(variant_id, locale) DO UPDATE SET name = excluded.name, position = 0
	`, u.ID, u.Locale, u.Name); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM variant_assets WHERE variant_id = ?`, u.ID); err != nil {
		return err
	}
	for i, assetID := range u.AssetIDs {
		if _, err := tx.Exec(`
			INSERT INTO variant_assets(variant_id, asset_id, position) VALUES(?,?,?)
		`, u.ID, assetID, i); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Create inserts a variant with its translations.
func (r *VariantRepo) Create(v domain.Variant) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	featured := any(nil)
	if v.FeaturedAssetID != "" {
		featured = v.FeaturedAssetID
	}
	if _, err := tx.Exec(`
		INSERT INTO variants(id, product_id, sku, enabled, featured_asset_id)
		VALUES(?,?,?,?,?)
	`, v.ID, v.ProductID, v.SKU, v.Enabled, featured); err != nil {
		return err
	}
	for i, t := range v.Translations {
		if _, err := tx.Exec(`
			INSERT INTO variant_translations(variant_id, locale, name, position)
			VALUES(?,?,?,?)
		`, v.ID, t.Locale, t.Name, i); err != nil {
			return err
		}
	}
	return tx.Commit()
}
