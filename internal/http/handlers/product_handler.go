package handlers

import (
	"database/sql"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"variantsync/internal/domain"
	"variantsync/internal/events"
	"variantsync/internal/log"
	"variantsync/internal/reqctx"
	"variantsync/internal/services"
	"variantsync/internal/validate"
)

// ProductHandler is the host-side admin surface for catalog mutations. Each
// mutation publishes the matching lifecycle event so the workflow reacts the
// same way it would inside the full platform.
type ProductHandler struct {
	Catalog       *services.CatalogService
	Bus           *events.Bus
	ChannelID     string
	DefaultLocale string
}

func (h *ProductHandler) snapshot(c *fiber.Ctx) reqctx.Snapshot {
	rid, _ := c.Locals("requestid").(string)
	return reqctx.Capture(h.ChannelID, h.DefaultLocale, rid)
}

// Delete soft-deletes a product and publishes the product-deleted event.
// Reconciliation happens asynchronously; the response only acknowledges the
// deletion itself.
func (h *ProductHandler) Delete(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "product"})
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}
	if _, err := h.Catalog.FindProduct(id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product not found"})
		}
		return err
	}
	if err := h.Catalog.SoftDeleteProduct(id); err != nil {
		return err
	}
	snap := h.snapshot(c)
	h.Bus.PublishProduct(events.ProductEvent{Type: events.TypeDeleted, ProductID: id, Ctx: snap})
	log.Info(c, "product.deleted", map[string]any{"product": id})
	return c.JSON(fiber.Map{"deleted": id})
}

// Undelete reverses a soft delete. A work item enqueued for the deletion may
// still be pending; the reconciler treats a live product as nothing to do.
func (h *ProductHandler) Undelete(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "product"})
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}
	if _, err := h.Catalog.FindDeletedProduct(id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no deleted product with that id"})
		}
		return err
	}
	if err := h.Catalog.UndeleteProduct(id); err != nil {
		return err
	}
	log.Info(c, "product.undeleted", map[string]any{"product": id})
	return c.JSON(fiber.Map{"restored": id})
}

type renameProductReq struct {
	Name   string `json:"name"`
	Locale string `json:"locale"`
}

// Rename changes the product's localized name and publishes product-updated,
// which re-syncs the product's first variant.
func (h *ProductHandler) Rename(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "product"})
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}
	if _, err := h.Catalog.FindProduct(id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product not found"})
		}
		return err
	}

	var req renameProductReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	name, ok := validate.Name(req.Name)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid name"})
	}
	locale := req.Locale
	if locale == "" {
		locale = h.DefaultLocale
	}
	if _, ok := validate.Locale(locale); !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid locale"})
	}

	if err := h.Catalog.RenameProduct(id, locale, name); err != nil {
		return err
	}
	snap := h.snapshot(c)
	h.Bus.PublishProduct(events.ProductEvent{Type: events.TypeUpdated, ProductID: id, Ctx: snap})
	log.Info(c, "product.renamed", map[string]any{"product": id, "locale": locale})

	updated, err := h.Catalog.FindProduct(id)
	if err != nil {
		return err
	}
	return c.JSON(updated)
}

type createVariantReq struct {
	Name   string `json:"name"`
	SKU    string `json:"sku"`
	Locale string `json:"locale"`
}

// CreateVariant adds a variant to a product and publishes variant-created,
// which triggers the inline sync back to the product's canonical fields.
func (h *ProductHandler) CreateVariant(c *fiber.Ctx) error {
	productID, ok := validate.ID(c.Params("id"))
	if !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "product"})
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}
	if _, err := h.Catalog.FindProduct(productID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product not found"})
		}
		return err
	}

	var req createVariantReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	locale := req.Locale
	if locale == "" {
		locale = h.DefaultLocale
	}
	if _, ok := validate.Locale(locale); !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid locale"})
	}
	name, _ := validate.Name(req.Name)

	v := domain.Variant{
		ID:        uuid.NewString(),
		ProductID: productID,
		SKU:       req.SKU,
		Enabled:   true,
	}
	if name != "" {
		v.Translations = []domain.Translation{{Locale: locale, Name: name}}
	}
	if err := h.Catalog.CreateVariant(v); err != nil {
		return err
	}

	snap := h.snapshot(c)
	h.Bus.PublishVariant(events.VariantEvent{Type: events.TypeCreated, VariantIDs: []string{v.ID}, Ctx: snap})
	log.Info(c, "variant.created", map[string]any{"variant": v.ID, "product": productID})

	// The sync ran inline on the publish above; return the mirrored variant.
	synced, err := h.Catalog.FindVariant(v.ID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(synced)
}
