package postgres

import "context"

// schemaStatements holds the DDL for the two tables the pipeline owns. Kept
// as individual statements because the extended query protocol executes one
// command per Exec.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS auctions (
		id UUID PRIMARY KEY,
		source TEXT NOT NULL,
		source_id TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL,
		identity_hash TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		postal_code TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		department TEXT NOT NULL DEFAULT '',
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		geohash TEXT NOT NULL DEFAULT '',
		property_type TEXT NOT NULL DEFAULT '',
		surface DOUBLE PRECISION,
		rooms INTEGER,
		description TEXT NOT NULL DEFAULT '',
		description_detailed TEXT NOT NULL DEFAULT '',
		starting_price DOUBLE PRECISION,
		final_price DOUBLE PRECISION,
		market_price_per_sqm DOUBLE PRECISION,
		sale_date TEXT NOT NULL DEFAULT '',
		sale_time TEXT NOT NULL DEFAULT '',
		court TEXT NOT NULL DEFAULT '',
		case_number TEXT NOT NULL DEFAULT '',
		visit_dates JSONB NOT NULL DEFAULT '[]',
		lawyer_name TEXT NOT NULL DEFAULT '',
		lawyer_email TEXT NOT NULL DEFAULT '',
		lawyer_phone TEXT NOT NULL DEFAULT '',
		photos JSONB NOT NULL DEFAULT '[]',
		documents JSONB NOT NULL DEFAULT '[]',
		minutes_url TEXT NOT NULL DEFAULT '',
		contributing_sources JSONB NOT NULL DEFAULT '[]',
		scraped_at TIMESTAMPTZ NOT NULL,
		first_seen_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS auctions_identity_hash_idx ON auctions (identity_hash)`,
	`CREATE INDEX IF NOT EXISTS auctions_url_idx ON auctions (url)`,
	`CREATE INDEX IF NOT EXISTS auctions_missing_coords_idx ON auctions (first_seen_at)
		WHERE latitude IS NULL OR longitude IS NULL`,
	`CREATE TABLE IF NOT EXISTS scrape_history (
		run_id TEXT NOT NULL,
		source TEXT NOT NULL,
		status TEXT NOT NULL,
		found INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		errors INTEGER NOT NULL DEFAULT 0,
		pages_scraped INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (run_id, source)
	)`,
	`CREATE INDEX IF NOT EXISTS scrape_history_started_idx ON scrape_history (started_at DESC)`,
}

// Migrate applies the schema. Statements are idempotent, so running it on
// every startup is safe.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
