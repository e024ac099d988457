package repos

import (
	"log"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

func OpenDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}

	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	// Seed a demo catalog if the DB is empty (idempotent; safe on every start)
	if err := seedIfEmpty(db); err != nil {
		return nil, err
	}

	return db, nil
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
PRAGMA foreign_keys = ON;

-- Catalog
CREATE TABLE IF NOT EXISTS assets(
  id TEXT PRIMARY KEY,
  source TEXT NOT NULL,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS products(
  id TEXT PRIMARY KEY,
  enabled INTEGER NOT NULL DEFAULT 1,
  weight_kg REAL NOT NULL DEFAULT 0,
  featured_asset_id TEXT REFERENCES assets(id),
  deleted_at TEXT,                 -- soft delete; NULL while live
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_products_deleted ON products(deleted_at);

CREATE TABLE IF NOT EXISTS product_translations(
  product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
  locale TEXT NOT NULL,
  name TEXT NOT NULL,
  position INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY(product_id, locale)
);

CREATE TABLE IF NOT EXISTS product_assets(
  product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
  asset_id TEXT NOT NULL REFERENCES assets(id) ON DELETE CASCADE,
  position INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY(product_id, asset_id)
);

CREATE TABLE IF NOT EXISTS variants(
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
  sku TEXT NOT NULL DEFAULT '',
  enabled INTEGER NOT NULL DEFAULT 1,
  featured_asset_id TEXT REFERENCES assets(id),
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_variants_product ON variants(product_id);

CREATE TABLE IF NOT EXISTS variant_translations(
  variant_id TEXT NOT NULL REFERENCES variants(id) ON DELETE CASCADE,
  locale TEXT NOT NULL,
  name TEXT NOT NULL,
  position INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY(variant_id, locale)
);

CREATE TABLE IF NOT EXISTS variant_assets(
  variant_id TEXT NOT NULL REFERENCES variants(id) ON DELETE CASCADE,
  asset_id TEXT NOT NULL REFERENCES assets(id) ON DELETE CASCADE,
  position INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY(variant_id, asset_id)
);

-- Orders
CREATE TABLE IF NOT EXISTS orders(
  id TEXT PRIMARY KEY,
  channel_id TEXT NOT NULL,
  state TEXT NOT NULL DEFAULT 'AddingItems',
  shipping_with_tax INTEGER NOT NULL DEFAULT 0,  -- minor units
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_orders_channel_state ON orders(channel_id, state);

CREATE TABLE IF NOT EXISTS order_lines(
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  variant_id TEXT NOT NULL REFERENCES variants(id),
  quantity INTEGER NOT NULL CHECK (quantity >= 1),
  cancelled_qty INTEGER NOT NULL DEFAULT 0,
  unit_price INTEGER NOT NULL DEFAULT 0,         -- minor units
  created_at TEXT DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_order_lines_order   ON order_lines(order_id);
CREATE INDEX IF NOT EXISTS idx_order_lines_variant ON order_lines(variant_id);

CREATE TABLE IF NOT EXISTS payments(
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  method TEXT NOT NULL DEFAULT 'card',
  amount INTEGER NOT NULL DEFAULT 0,
  state TEXT NOT NULL DEFAULT 'Settled',
  created_at TEXT DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_payments_order ON payments(order_id);

CREATE TABLE IF NOT EXISTS refunds(
  id TEXT PRIMARY KEY,
  payment_id TEXT NOT NULL REFERENCES payments(id),
  total INTEGER NOT NULL,
  items INTEGER NOT NULL DEFAULT 0,
  shipping INTEGER NOT NULL DEFAULT 0,
  adjustment INTEGER NOT NULL DEFAULT 0,
  reason TEXT,
  state TEXT NOT NULL DEFAULT 'Pending',
  transaction_id TEXT,
  method TEXT NOT NULL DEFAULT 'manual',
  created_at TEXT DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_refunds_transaction ON refunds(transaction_id);

CREATE TABLE IF NOT EXISTS refund_lines(
  refund_id TEXT NOT NULL REFERENCES refunds(id) ON DELETE CASCADE,
  order_line_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  PRIMARY KEY(refund_id, order_line_id)
);

CREATE TABLE IF NOT EXISTS order_notes(
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  note TEXT NOT NULL,
  is_public INTEGER NOT NULL DEFAULT 0,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP
);

-- Deferred work
CREATE TABLE IF NOT EXISTS work_items(
  id TEXT PRIMARY KEY,
  queue TEXT NOT NULL,
  payload TEXT NOT NULL,
  state TEXT NOT NULL DEFAULT 'pending',         -- pending | done
  attempts INTEGER NOT NULL DEFAULT 0,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  processed_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_work_items_queue ON work_items(queue, state);
`
	_, err := db.Exec(schema)
	return err
}

func seedIfEmpty(db *sqlx.DB) error {
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM products`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	log.Println("[seed] inserting demo catalog")

	tx := db.MustBegin()
	tx.MustExec(`INSERT INTO assets(id,source) VALUES
	  ('asset-anvil-main','products/anvil/main.jpg'),
	  ('asset-anvil-side','products/anvil/side.jpg'),
	  ('asset-rocket-main','products/rocket-skates/main.jpg')`)

	tx.MustExec(`INSERT INTO products(id,enabled,weight_kg,featured_asset_id) VALUES
	  ('prod-anvil',1,45.0,'asset-anvil-main'),
	  ('prod-rocket-skates',1,3.2,'asset-rocket-main')`)

	tx.MustExec(`INSERT INTO product_translations(product_id,locale,name,position) VALUES
	  ('prod-anvil','en','Cast Iron Anvil',0),
	  ('prod-anvil','de','Gusseiserner Amboss',1),
	  ('prod-rocket-skates','en','Rocket Skates',0)`)

	tx.MustExec(`INSERT INTO product_assets(product_id,asset_id,position) VALUES
	  ('prod-anvil','asset-anvil-main',0),
	  ('prod-anvil','asset-anvil-side',1),
	  ('prod-rocket-skates','asset-rocket-main',0)`)

	tx.MustExec(`INSERT INTO variants(id,product_id,sku,enabled,featured_asset_id) VALUES
	  ('var-anvil','prod-anvil','cast-iron-anvil',1,'asset-anvil-main'),
	  ('var-rocket-skates','prod-rocket-skates','rocket-skates',1,'asset-rocket-main')`)

	tx.MustExec(`INSERT INTO variant_translations(variant_id,locale,name,position) VALUES
	  ('var-anvil','en','Cast Iron Anvil',0),
	  ('var-rocket-skates','en','Rocket Skates',0)`)

	return tx.Commit()
}
