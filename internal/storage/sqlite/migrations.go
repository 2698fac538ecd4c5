package sqlite

const schema = `
-- Subscription sources (remote node lists)
CREATE TABLE IF NOT EXISTS subscriptions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    url TEXT NOT NULL,
    auto_update BOOLEAN DEFAULT 1,
    update_interval INTEGER DEFAULT 86400,
    last_updated TIMESTAMP,
    next_update TIMESTAMP,

    -- Decoded node URIs, cached opaquely (JSON array)
    node_uris TEXT,

    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Delay test history
CREATE TABLE IF NOT EXISTS delay_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    node_name TEXT NOT NULL,
    delay_ms INTEGER NOT NULL,
    success BOOLEAN NOT NULL,
    tested_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_delay_history_node ON delay_history(node_name, tested_at DESC);

-- Application settings
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// runMigrations applies the schema. Statements are idempotent.
func runMigrations(d *DB) error {
	_, err := d.db.Exec(schema)
	return err
}
