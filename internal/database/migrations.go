package database

import (
	"context"
	"database/sql"
	"fmt"
)

// mysqlSchema creates the tables on MySQL (InnoDB).  Every child table
// cascades from table_sessions so purging a session is a single delete.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS venues (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		currency CHAR(3) NOT NULL DEFAULT 'EUR',
		menu_version BIGINT NOT NULL DEFAULT 1
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS menu_items (
		id VARCHAR(64) PRIMARY KEY,
		venue_id VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL,
		price_cents BIGINT NOT NULL,
		active TINYINT(1) NOT NULL DEFAULT 1,
		KEY idx_menu_items_venue (venue_id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS modifier_options (
		id VARCHAR(64) PRIMARY KEY,
		menu_item_id VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL,
		price_delta_cents BIGINT NOT NULL DEFAULT 0,
		KEY idx_modifier_options_item (menu_item_id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS table_sessions (
		id VARCHAR(64) PRIMARY KEY,
		venue_id VARCHAR(64) NOT NULL,
		table_id VARCHAR(64) NOT NULL,
		status VARCHAR(16) NOT NULL,
		people_count INT NOT NULL DEFAULT 1,
		opened_at BIGINT NOT NULL,
		closed_at BIGINT NULL,
		last_active_at BIGINT NOT NULL,
		state_version BIGINT NOT NULL DEFAULT 1,
		KEY idx_table_sessions_table (venue_id, table_id, status),
		KEY idx_table_sessions_active (status, last_active_at)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS cart_items (
		id VARCHAR(64) PRIMARY KEY,
		session_id VARCHAR(64) NOT NULL,
		menu_item_id VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL,
		unit_price_cents BIGINT NOT NULL,
		qty INT NOT NULL,
		modifiers TEXT NOT NULL,
		note VARCHAR(500) NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL,
		KEY idx_cart_items_session (session_id),
		FOREIGN KEY (session_id) REFERENCES table_sessions(id) ON DELETE CASCADE
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS orders (
		id VARCHAR(64) PRIMARY KEY,
		session_id VARCHAR(64) NOT NULL,
		seq INT NOT NULL,
		status VARCHAR(16) NOT NULL,
		created_at BIGINT NOT NULL,
		UNIQUE KEY ux_orders_session_seq (session_id, seq),
		FOREIGN KEY (session_id) REFERENCES table_sessions(id) ON DELETE CASCADE
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id VARCHAR(64) PRIMARY KEY,
		order_id VARCHAR(64) NOT NULL,
		session_id VARCHAR(64) NOT NULL,
		position INT NOT NULL,
		menu_item_id VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL,
		unit_price_cents BIGINT NOT NULL,
		qty INT NOT NULL,
		modifiers TEXT NOT NULL,
		KEY idx_order_items_session (session_id),
		FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS split_plans (
		id VARCHAR(64) PRIMARY KEY,
		session_id VARCHAR(64) NOT NULL,
		total_shares INT NOT NULL,
		base_version BIGINT NOT NULL,
		locked TINYINT(1) NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		KEY idx_split_plans_session (session_id, created_at),
		FOREIGN KEY (session_id) REFERENCES table_sessions(id) ON DELETE CASCADE
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS payment_intents (
		id VARCHAR(64) PRIMARY KEY,
		session_id VARCHAR(64) NOT NULL,
		mode VARCHAR(16) NOT NULL,
		status VARCHAR(16) NOT NULL,
		amount_cents BIGINT NOT NULL,
		base_cents BIGINT NOT NULL,
		tip_cents BIGINT NOT NULL,
		split_plan_id VARCHAR(64) NULL,
		shares_paid INT NULL,
		provider_ref VARCHAR(255) NOT NULL DEFAULT '',
		payload TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		paid_at BIGINT NULL,
		KEY idx_payment_intents_session (session_id, status),
		KEY idx_payment_intents_plan (split_plan_id, status),
		FOREIGN KEY (session_id) REFERENCES table_sessions(id) ON DELETE CASCADE
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS payment_allocations (
		payment_id VARCHAR(64) NOT NULL,
		order_item_id VARCHAR(64) NOT NULL,
		amount_cents BIGINT NOT NULL,
		PRIMARY KEY (payment_id, order_item_id),
		KEY idx_payment_allocations_item (order_item_id),
		FOREIGN KEY (payment_id) REFERENCES payment_intents(id) ON DELETE CASCADE
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS payment_quotes (
		id VARCHAR(64) PRIMARY KEY,
		session_id VARCHAR(64) NOT NULL,
		mode VARCHAR(16) NOT NULL,
		amount_cents BIGINT NOT NULL,
		base_cents BIGINT NOT NULL,
		tip_cents BIGINT NOT NULL,
		tip_percent DOUBLE NULL,
		state_version BIGINT NOT NULL,
		split_plan_id VARCHAR(64) NULL,
		shares_to_pay INT NULL,
		breakdown TEXT NOT NULL,
		expires_at BIGINT NOT NULL,
		created_at BIGINT NOT NULL,
		KEY idx_payment_quotes_expiry (expires_at),
		FOREIGN KEY (session_id) REFERENCES table_sessions(id) ON DELETE CASCADE
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS idempotency_keys (
		scope VARCHAR(191) NOT NULL,
		idem_key VARCHAR(191) NOT NULL,
		request_hash CHAR(64) NOT NULL,
		status_code INT NULL,
		response_body LONGBLOB NULL,
		expires_at BIGINT NOT NULL,
		created_at BIGINT NOT NULL,
		PRIMARY KEY (scope, idem_key),
		KEY idx_idempotency_expiry (expires_at)
	) ENGINE=InnoDB`,
}

// sqliteSchema mirrors mysqlSchema for SQLite.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS venues (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'EUR',
		menu_version INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS menu_items (
		id TEXT PRIMARY KEY,
		venue_id TEXT NOT NULL,
		name TEXT NOT NULL,
		price_cents INTEGER NOT NULL,
		active INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS modifier_options (
		id TEXT PRIMARY KEY,
		menu_item_id TEXT NOT NULL,
		name TEXT NOT NULL,
		price_delta_cents INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS table_sessions (
		id TEXT PRIMARY KEY,
		venue_id TEXT NOT NULL,
		table_id TEXT NOT NULL,
		status TEXT NOT NULL,
		people_count INTEGER NOT NULL DEFAULT 1,
		opened_at INTEGER NOT NULL,
		closed_at INTEGER NULL,
		last_active_at INTEGER NOT NULL,
		state_version INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS cart_items (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES table_sessions(id) ON DELETE CASCADE,
		menu_item_id TEXT NOT NULL,
		name TEXT NOT NULL,
		unit_price_cents INTEGER NOT NULL,
		qty INTEGER NOT NULL,
		modifiers TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES table_sessions(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE (session_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		session_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		menu_item_id TEXT NOT NULL,
		name TEXT NOT NULL,
		unit_price_cents INTEGER NOT NULL,
		qty INTEGER NOT NULL,
		modifiers TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS split_plans (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES table_sessions(id) ON DELETE CASCADE,
		total_shares INTEGER NOT NULL,
		base_version INTEGER NOT NULL,
		locked INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS payment_intents (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES table_sessions(id) ON DELETE CASCADE,
		mode TEXT NOT NULL,
		status TEXT NOT NULL,
		amount_cents INTEGER NOT NULL,
		base_cents INTEGER NOT NULL,
		tip_cents INTEGER NOT NULL,
		split_plan_id TEXT NULL,
		shares_paid INTEGER NULL,
		provider_ref TEXT NOT NULL DEFAULT '',
		payload TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		paid_at INTEGER NULL
	)`,
	`CREATE TABLE IF NOT EXISTS payment_allocations (
		payment_id TEXT NOT NULL REFERENCES payment_intents(id) ON DELETE CASCADE,
		order_item_id TEXT NOT NULL,
		amount_cents INTEGER NOT NULL,
		PRIMARY KEY (payment_id, order_item_id)
	)`,
	`CREATE TABLE IF NOT EXISTS payment_quotes (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES table_sessions(id) ON DELETE CASCADE,
		mode TEXT NOT NULL,
		amount_cents INTEGER NOT NULL,
		base_cents INTEGER NOT NULL,
		tip_cents INTEGER NOT NULL,
		tip_percent REAL NULL,
		state_version INTEGER NOT NULL,
		split_plan_id TEXT NULL,
		shares_to_pay INTEGER NULL,
		breakdown TEXT NOT NULL,
		expires_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS idempotency_keys (
		scope TEXT NOT NULL,
		idem_key TEXT NOT NULL,
		request_hash TEXT NOT NULL,
		status_code INTEGER NULL,
		response_body BLOB NULL,
		expires_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (scope, idem_key)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_menu_items_venue ON menu_items(venue_id)`,
	`CREATE INDEX IF NOT EXISTS idx_modifier_options_item ON modifier_options(menu_item_id)`,
	`CREATE INDEX IF NOT EXISTS idx_table_sessions_table ON table_sessions(venue_id, table_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_table_sessions_active ON table_sessions(status, last_active_at)`,
	`CREATE INDEX IF NOT EXISTS idx_cart_items_session ON cart_items(session_id)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_session ON order_items(session_id)`,
	`CREATE INDEX IF NOT EXISTS idx_split_plans_session ON split_plans(session_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_payment_intents_session ON payment_intents(session_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_payment_intents_plan ON payment_intents(split_plan_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_payment_allocations_item ON payment_allocations(order_item_id)`,
	`CREATE INDEX IF NOT EXISTS idx_payment_quotes_expiry ON payment_quotes(expires_at)`,
	`CREATE INDEX IF NOT EXISTS idx_idempotency_expiry ON idempotency_keys(expires_at)`,
}

// Migrate creates the schema for the given driver ("mysql" or "sqlite").
// Statements are idempotent and run one at a time because the MySQL driver
// rejects multi-statement strings by default.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	var stmts []string
	switch driver {
	case "mysql":
		stmts = mysqlSchema
	case "sqlite":
		stmts = sqliteSchema
	default:
		return fmt.Errorf("unsupported driver %q", driver)
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
