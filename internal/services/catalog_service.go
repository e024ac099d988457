package services

import (
	"variantsync/internal/domain"
	"variantsync/internal/repos"
)

// CatalogService is the product/variant side of the order-management API.
type CatalogService struct {
	Products *repos.ProductRepo
	Variants *repos.VariantRepo
}

func NewCatalogService(products *repos.ProductRepo, variants *repos.VariantRepo) *CatalogService {
	return &CatalogService{Products: products, Variants: variants}
}

func (s *CatalogService) FindProduct(id string) (domain.Product, error) {
	return s.Products.Get(id)
}

// FindDeletedProduct resolves the product only when it is soft-deleted.
func (s *CatalogService) FindDeletedProduct(id string) (domain.Product, error) {
	return s.Products.GetDeleted(id)
}

func (s *CatalogService) FindVariant(id string) (domain.Variant, error) {
	return s.Variants.Get(id)
}

func (s *CatalogService) UpdateVariant(u domain.VariantUpdate) error {
	return s.Variants.Update(u)
}

func (s *CatalogService) SoftDeleteProduct(id string) error {
	return s.Products.SoftDelete(id)
}

// UndeleteProduct reverses a soft delete before (or after) the deferred
// reconciliation has run.
func (s *CatalogService) UndeleteProduct(id string) error {
	return s.Products.Undelete(id)
}

// RenameProduct updates the product's name in one locale.
func (s *CatalogService) RenameProduct(id, locale, name string) error {
	return s.Products.Rename(id, locale, name)
}

func (s *CatalogService) CreateVariant(v domain.Variant) error {
	return s.Variants.Create(v)
}
