package handlers_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"golang.org/x/crypto/bcrypt"

	"variantsync/internal/config"
	"variantsync/internal/domain"
	"variantsync/internal/events"
	"variantsync/internal/http/handlers"
	"variantsync/internal/queue"
	"variantsync/internal/repos"
	"variantsync/internal/services"
)

const adminKey = "test-admin-key"

// Minimal app with the full workflow wired but the queue consumer stopped,
// so tests can observe what the handlers enqueue.
func newTestApp(t *testing.T) (*fiber.App, *repos.QueueRepo, *repos.OrderRepo, *services.CatalogService) {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(adminKey), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Config{
		ChannelID:     "default-channel",
		DefaultLocale: "en",
		AdminKeyHash:  string(hash),
	}

	productRepo := repos.NewProductRepo(db)
	variantRepo := repos.NewVariantRepo(db)
	orderRepo := repos.NewOrderRepo(db)
	refundRepo := repos.NewRefundRepo(db)
	queueRepo := repos.NewQueueRepo(db)

	catalog := services.NewCatalogService(productRepo, variantRepo)
	orders := services.NewOrderService(orderRepo, refundRepo)
	reconciler := services.NewReconcileService(productRepo, orderRepo, refundRepo, orders, true)
	q := queue.New(services.DeletedProductQueue, queueRepo, 0, reconciler.ProcessWorkItem)
	reconciler.AttachQueue(q)

	bus := events.NewBus()
	sync := services.NewVariantSyncService(catalog)
	services.NewListener(bus, sync, reconciler).Start()

	deps := handlers.NewDeps(cfg, bus, catalog, orders, refundRepo)

	app := fiber.New()
	app.Use(requestid.New())
	admin := app.Group("/admin", handlers.RequireAdminKey(cfg.AdminKeyHash))
	admin.Post("/products/:id/delete", deps.ProductHandler.Delete)
	admin.Post("/products/:id/undelete", deps.ProductHandler.Undelete)
	admin.Post("/products/:id/rename", deps.ProductHandler.Rename)
	admin.Post("/products/:id/variants", deps.ProductHandler.CreateVariant)
	admin.Get("/orders/:id", deps.OrderHandler.Get)
	admin.Get("/orders/:id/refunds", deps.OrderHandler.ListRefunds)
	return app, queueRepo, orderRepo, catalog
}

func adminReq(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("X-Admin-Key", adminKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func TestAdminKeyRequired(t *testing.T) {
	app, _, _, _ := newTestApp(t)

	// no key
	resp, err := app.Test(httptest.NewRequest("POST", "/admin/products/prod-anvil/delete", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing key expected 401, got %d", resp.StatusCode)
	}

	// wrong key
	req := httptest.NewRequest("POST", "/admin/products/prod-anvil/delete", nil)
	req.Header.Set("X-Admin-Key", "nope")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong key expected 401, got %d", resp.StatusCode)
	}
}

func TestAdminDisabledWithoutHash(t *testing.T) {
	app := fiber.New()
	app.Post("/admin/ping", handlers.RequireAdminKey(""), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})

	resp, err := app.Test(adminReq("POST", "/admin/ping", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("unconfigured admin key expected 403, got %d", resp.StatusCode)
	}
}

func TestDeleteProductEnqueuesReconciliation(t *testing.T) {
	app, queueRepo, _, _ := newTestApp(t)

	resp, err := app.Test(adminReq("POST", "/admin/products/prod-anvil/delete", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d body=%s", resp.StatusCode, body)
	}

	// the response only acknowledges the soft delete
	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out["deleted"] != "prod-anvil" {
		t.Fatalf("unexpected body: %v", out)
	}

	// reconciliation was deferred, not run inline
	n, err := queueRepo.PendingCount(services.DeletedProductQueue)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("want 1 pending work item, got %d", n)
	}
	item, ok, err := queueRepo.NextPending(services.DeletedProductQueue)
	if err != nil || !ok {
		t.Fatalf("work item missing: ok=%v err=%v", ok, err)
	}
	if !strings.Contains(item.Payload, "prod-anvil") {
		t.Fatalf("payload does not carry the product id: %s", item.Payload)
	}

	// deleted product is no longer addressable
	resp, err = app.Test(adminReq("POST", "/admin/products/prod-anvil/delete", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete expected 404, got %d", resp.StatusCode)
	}
}

func TestDeleteProductValidation(t *testing.T) {
	app, _, _, _ := newTestApp(t)

	resp, err := app.Test(adminReq("POST", "/admin/products/no-such-product/delete", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown product expected 404, got %d", resp.StatusCode)
	}

	resp, err = app.Test(adminReq("POST", "/admin/products/bad%20id/delete", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed id expected 400, got %d", resp.StatusCode)
	}
}

func TestUndeleteRestoresProduct(t *testing.T) {
	app, _, _, _ := newTestApp(t)

	// only deleted products can be restored
	resp, err := app.Test(adminReq("POST", "/admin/products/prod-anvil/undelete", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("undelete of a live product expected 404, got %d", resp.StatusCode)
	}

	if resp, err = app.Test(adminReq("POST", "/admin/products/prod-anvil/delete", nil)); err != nil {
		t.Fatal(err)
	} else if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete expected 200, got %d", resp.StatusCode)
	}
	if resp, err = app.Test(adminReq("POST", "/admin/products/prod-anvil/undelete", nil)); err != nil {
		t.Fatal(err)
	} else if resp.StatusCode != http.StatusOK {
		t.Fatalf("undelete expected 200, got %d", resp.StatusCode)
	}

	// restored product is addressable again
	if resp, err = app.Test(adminReq("POST", "/admin/products/prod-anvil/delete", nil)); err != nil {
		t.Fatal(err)
	} else if resp.StatusCode != http.StatusOK {
		t.Fatalf("restored product should be deletable again, got %d", resp.StatusCode)
	}
}

func TestCreateVariantSyncsInline(t *testing.T) {
	app, queueRepo, _, _ := newTestApp(t)

	body := strings.NewReader(`{"name":"Temp Name","sku":"temp-sku"}`)
	resp, err := app.Test(adminReq("POST", "/admin/products/prod-rocket-skates/variants", body))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 201, got %d body=%s", resp.StatusCode, b)
	}

	var v domain.Variant
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	// the inline sync overwrote the submitted name and sku with the parent's
	if v.SKU != "rocket-skates" {
		t.Fatalf("want synced SKU rocket-skates, got %s", v.SKU)
	}
	if len(v.Translations) == 0 || v.Translations[0].Name != "Rocket Skates" {
		t.Fatalf("variant name not mirrored: %+v", v.Translations)
	}
	if v.FeaturedAssetID != "asset-rocket-main" {
		t.Fatalf("featured asset not mirrored: %s", v.FeaturedAssetID)
	}

	// the sync runs inside the request; nothing hits the work queue
	if n, _ := queueRepo.PendingCount(services.DeletedProductQueue); n != 0 {
		t.Fatalf("variant creation must not enqueue work, got %d pending", n)
	}
}

func TestRenameProductResyncsVariant(t *testing.T) {
	app, _, _, catalog := newTestApp(t)

	body := strings.NewReader(`{"name":"Rocket Skates Mk II"}`)
	resp, err := app.Test(adminReq("POST", "/admin/products/prod-rocket-skates/rename", body))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d body=%s", resp.StatusCode, b)
	}
	var p domain.Product
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.Name() != "Rocket Skates Mk II" {
		t.Fatalf("rename not applied: %+v", p.Translations)
	}

	// product-updated re-synced the first variant
	v, err := catalog.FindVariant("var-rocket-skates")
	if err != nil {
		t.Fatal(err)
	}
	if v.SKU != "rocket-skates-mk-ii" {
		t.Fatalf("variant SKU not re-derived from new name, got %s", v.SKU)
	}
	if len(v.Translations) == 0 || v.Translations[0].Name != "Rocket Skates Mk II" {
		t.Fatalf("variant name not re-synced: %+v", v.Translations)
	}

	// bad name rejected
	resp, err = app.Test(adminReq("POST", "/admin/products/prod-rocket-skates/rename", strings.NewReader(`{"name":""}`)))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty name expected 400, got %d", resp.StatusCode)
	}
}

func TestOrderEndpoints(t *testing.T) {
	app, _, orderRepo, _ := newTestApp(t)
	if err := orderRepo.Create(domain.Order{
		ID: "o1", ChannelID: "default-channel", State: domain.OrderStateAddingItems,
		Lines: []domain.OrderLine{{ID: "o1-l1", VariantID: "var-anvil", Quantity: 1, UnitPrice: 999}},
	}); err != nil {
		t.Fatal(err)
	}

	resp, err := app.Test(adminReq("GET", "/admin/orders/o1", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var o domain.Order
	if err := json.NewDecoder(resp.Body).Decode(&o); err != nil {
		t.Fatal(err)
	}
	if o.ID != "o1" || len(o.Lines) != 1 {
		t.Fatalf("unexpected order payload: %+v", o)
	}

	resp, err = app.Test(adminReq("GET", "/admin/orders/missing", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown order expected 404, got %d", resp.StatusCode)
	}

	resp, err = app.Test(adminReq("GET", "/admin/orders/o1/refunds", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refund list expected 200, got %d", resp.StatusCode)
	}
}
