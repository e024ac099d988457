package services

import (
	"database/sql"
	"errors"
	"regexp"
	"strings"

	"variantsync/internal/domain"
	applog "variantsync/internal/log"
	"variantsync/internal/reqctx"
)

// VariantSyncService copies canonical product metadata (name, SKU,
// enablement, assets) onto variants so they mirror their parent product.
type VariantSyncService struct {
	Catalog *CatalogService
}

func NewVariantSyncService(catalog *CatalogService) *VariantSyncService {
	return &VariantSyncService{Catalog: catalog}
}

var whitespace = regexp.MustCompile(`\s`)

// skuFromName derives a deterministic SKU: lowercase, each whitespace
// character replaced with a hyphen.
func skuFromName(name string) string {
	return strings.ToLower(whitespace.ReplaceAllString(name, "-"))
}

// Sync mirrors each variant from its parent product. Missing variants and
// variants without a resolvable parent are reported and skipped; the batch
// keeps going. Re-running with unchanged inputs writes the same state.
func (s *VariantSyncService) Sync(snap reqctx.Snapshot, variantIDs []string) error {
	for _, id := range variantIDs {
		variant, err := s.Catalog.FindVariant(id)
		if errors.Is(err, sql.ErrNoRows) {
			applog.Error(nil, "variant.sync.variant_missing", nil, map[string]any{
				"variant": id, "request_id": snap.RequestID,
			})
			continue
		}
		if err != nil {
			return err
		}
		product, err := s.Catalog.FindProduct(variant.ProductID)
		if errors.Is(err, sql.ErrNoRows) {
			applog.Error(nil, "variant.sync.product_missing", nil, map[string]any{
				"variant": id, "product": variant.ProductID, "request_id": snap.RequestID,
			})
			continue
		}
		if err != nil {
			return err
		}
		if err := s.apply(product, variant.ID); err != nil {
			return err
		}
	}
	return nil
}

// AutoUpdateVariant performs the same sync driven from the product side,
// defaulting to the product's first variant. Used when the product itself
// changed rather than a specific variant.
func (s *VariantSyncService) AutoUpdateVariant(snap reqctx.Snapshot, productID string) error {
	product, err := s.Catalog.FindProduct(productID)
	if errors.Is(err, sql.ErrNoRows) {
		applog.Error(nil, "variant.autoupdate.product_missing", nil, map[string]any{
			"product": productID, "request_id": snap.RequestID,
		})
		return nil
	}
	if err != nil {
		return err
	}
	if len(product.Variants) == 0 {
		applog.Error(nil, "variant.autoupdate.no_variants", nil, map[string]any{
			"product": productID, "request_id": snap.RequestID,
		})
		return nil
	}
	return s.apply(product, product.Variants[0].ID)
}

func (s *VariantSyncService) apply(product domain.Product, variantID string) error {
	if len(product.Translations) == 0 {
		applog.Error(nil, "variant.sync.no_translations", nil, map[string]any{"product": product.ID})
		return nil
	}
	first := product.Translations[0]

	assetIDs := make([]string, 0, len(product.Assets))
	for _, a := range product.Assets {
		assetIDs = append(assetIDs, a.ID)
	}

	applog.Info(nil, "variant.sync.update", map[string]any{
		"variant": variantID, "product": product.ID, "name": first.Name,
	})
	return s.Catalog.UpdateVariant(domain.VariantUpdate{
		ID:              variantID,
		Locale:          first.Locale,
		Name:            first.Name,
		Enabled:         product.Enabled,
		SKU:             skuFromName(first.Name),
		AssetIDs:        assetIDs,
		FeaturedAssetID: product.FeaturedAssetID,
	})
}
