package db

// PostgreSQL-specific migrations

var postgresMigrations = []Migration{
	{
		Version: 1,
		Name:    "create_scholarships_table",
		Up: `
			CREATE TABLE IF NOT EXISTS scholarships (
				id BIGSERIAL PRIMARY KEY,
				title TEXT NOT NULL,
				source_url TEXT NOT NULL UNIQUE,
				description TEXT,
				amount TEXT,
				deadline TEXT,
				platform TEXT NOT NULL DEFAULT 'general',
				raw_text TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ
			);
			CREATE INDEX IF NOT EXISTS idx_scholarships_created_at ON scholarships(created_at);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_scholarships_created_at;
			DROP TABLE IF EXISTS scholarships;
		`,
	},
	{
		Version: 2,
		Name:    "index_scholarships_missing_amount",
		Up: `
			CREATE INDEX IF NOT EXISTS idx_scholarships_amount_null ON scholarships(id) WHERE amount IS NULL;
			CREATE INDEX IF NOT EXISTS idx_scholarships_platform ON scholarships(platform);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_scholarships_platform;
			DROP INDEX IF EXISTS idx_scholarships_amount_null;
		`,
	},
}
