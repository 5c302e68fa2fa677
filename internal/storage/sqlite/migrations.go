package sqlite

const schema = `
-- Application settings
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TRIGGER IF NOT EXISTS update_settings_timestamp AFTER UPDATE ON settings
BEGIN
    UPDATE settings SET updated_at = CURRENT_TIMESTAMP WHERE key = NEW.key;
END;
`

const defaultData = `
-- Insert default settings
INSERT OR IGNORE INTO settings (key, value) VALUES
    ('enable_system_proxy', 'false'),
    ('enable_tun_mode', 'false'),
    ('mixed_port', '7890'),
    ('controller_addr', '127.0.0.1:9090'),
    ('controller_secret', ''),
    ('proxy_bypass', 'localhost,127.0.0.1,::1,*.local'),
    ('tun_bypass', ''),
    ('latency_test_url', 'https://www.gstatic.com/generate_204'),
    ('latency_test_timeout', '5000'),
    ('latency_test_workers', '10'),
    ('tray_refresh_interval', '30'),
    ('api_addr', '127.0.0.1:9097'),
    ('api_secret', ''),
    ('api_allowed_origins', ''),
    ('log_level', 'info');
`

// runMigrations executes the database schema and default data
func runMigrations(db *DB) error {
	if _, err := db.db.Exec(schema); err != nil {
		return err
	}

	if _, err := db.db.Exec(defaultData); err != nil {
		return err
	}

	return nil
}
