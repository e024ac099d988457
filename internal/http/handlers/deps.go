package handlers

import (
	"variantsync/internal/config"
	"variantsync/internal/events"
	"variantsync/internal/repos"
	"variantsync/internal/services"
)

type Deps struct {
	ProductHandler *ProductHandler
	OrderHandler   *OrderHandler
}

func NewDeps(cfg config.Config, bus *events.Bus, catalog *services.CatalogService,
	orders *services.OrderService, refunds *repos.RefundRepo) *Deps {
	return &Deps{
		ProductHandler: &ProductHandler{
			Catalog:       catalog,
			Bus:           bus,
			ChannelID:     cfg.ChannelID,
			DefaultLocale: cfg.DefaultLocale,
		},
		OrderHandler: &OrderHandler{Orders: orders, Refunds: refunds},
	}
}
