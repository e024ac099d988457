package handlers

import (
	"database/sql"
	"errors"

	"github.com/gofiber/fiber/v2"

	"variantsync/internal/repos"
	"variantsync/internal/services"
	"variantsync/internal/validate"
)

type OrderHandler struct {
	Orders  *services.OrderService
	Refunds *repos.RefundRepo
}

func (h *OrderHandler) Get(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid order id"})
	}
	o, err := h.Orders.FindOrder(id)
	if errors.Is(err, sql.ErrNoRows) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order not found"})
	}
	if err != nil {
		return err
	}
	return c.JSON(o)
}

func (h *OrderHandler) ListRefunds(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid order id"})
	}
	refs, err := h.Refunds.ListByOrder(id)
	if err != nil {
		return err
	}
	return c.JSON(refs)
}
