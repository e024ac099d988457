package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"variantsync/internal/config"
	"variantsync/internal/events"
	"variantsync/internal/http/handlers"
	applog "variantsync/internal/log"
	"variantsync/internal/queue"
	"variantsync/internal/repos"
	"variantsync/internal/services"
)

func main() {
	cfg := config.Load()

	// Optional file logging
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
		} else {
			log.SetOutput(io.MultiWriter(os.Stdout, f))
		}
	}

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}

	// Repos
	productRepo := repos.NewProductRepo(db)
	variantRepo := repos.NewVariantRepo(db)
	orderRepo := repos.NewOrderRepo(db)
	refundRepo := repos.NewRefundRepo(db)
	queueRepo := repos.NewQueueRepo(db)

	// Services
	catalogSvc := services.NewCatalogService(productRepo, variantRepo)
	orderSvc := services.NewOrderService(orderRepo, refundRepo)
	syncSvc := services.NewVariantSyncService(catalogSvc)
	reconciler := services.NewReconcileService(productRepo, orderRepo, refundRepo, orderSvc, cfg.RestoreArrangingPayment)

	// Deferred work queue: single consumer, durable across restarts
	q := queue.New(services.DeletedProductQueue, queueRepo, cfg.QueuePollInterval, reconciler.ProcessWorkItem)
	reconciler.AttachQueue(q)
	qctx, qcancel := context.WithCancel(context.Background())
	q.Start(qctx)

	// Event wiring: established once here, torn down on shutdown
	bus := events.NewBus()
	services.NewListener(bus, syncSvc, reconciler).Start()

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Error(c, "server.error", err, nil)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
		},
	})
	app.Use(requestid.New())
	app.Use(logger.New())

	deps := handlers.NewDeps(cfg, bus, catalogSvc, orderSvc, refundRepo)

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })

	admin := app.Group("/admin", handlers.RequireAdminKey(cfg.AdminKeyHash))
	admin.Post("/products/:id/delete", deps.ProductHandler.Delete)
	admin.Post("/products/:id/undelete", deps.ProductHandler.Undelete)
	admin.Post("/products/:id/rename", deps.ProductHandler.Rename)
	admin.Post("/products/:id/variants", deps.ProductHandler.CreateVariant)
	admin.Get("/orders/:id", deps.OrderHandler.Get)
	admin.Get("/orders/:id/refunds", deps.OrderHandler.ListRefunds)

	// Graceful shutdown: stop accepting events, let the in-flight work item
	// finish, leave the rest of the backlog for the next start.
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Println("[shutdown] signal received")
		bus.Close()
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Printf("[shutdown] listener: %v", err)
	}
	qcancel()
	q.Stop()
}
