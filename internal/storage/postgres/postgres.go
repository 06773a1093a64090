// Package postgres implements the storage contract on PostgreSQL using pgx.
// Matching and update semantics are shared with the in-memory store through
// storage.ApplyUpdate: a row is located inside a transaction, folded in Go,
// then written back, which keeps the allow-list policy in one place.
package postgres

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/agentstation/utc"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adjudex/adjudex/internal/storage"
	"github.com/adjudex/adjudex/pkg/auctions"
	"github.com/adjudex/adjudex/pkg/errors"
)

// Store is a PostgreSQL-backed storage.Store.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL and verifies the connection.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close implements storage.Store.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

const auctionColumns = `id, source, source_id, url, identity_hash,
	address, postal_code, city, department, latitude, longitude, geohash,
	property_type, surface, rooms, description, description_detailed,
	starting_price, final_price, market_price_per_sqm,
	sale_date, sale_time, court, case_number, visit_dates,
	lawyer_name, lawyer_email, lawyer_phone,
	photos, documents, minutes_url, contributing_sources,
	scraped_at, first_seen_at, updated_at`

// Upsert implements storage.Store. The candidate row is locked for the
// duration of the transaction; identity hash match takes precedence over a
// URL match when both exist.
func (s *Store) Upsert(ctx context.Context, rec *auctions.Record) (storage.UpsertOutcome, error) {
	rec.Normalize()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storage.Inserted, errors.WrapPersist(rec.IdentityHash, rec.URL, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	stored, err := lockExisting(ctx, tx, rec.IdentityHash, rec.URL)
	if err != nil && !stderrors.Is(err, pgx.ErrNoRows) {
		return storage.Inserted, errors.WrapPersist(rec.IdentityHash, rec.URL, err)
	}

	now := utc.Now()
	outcome := storage.Inserted
	if stored != nil {
		storage.ApplyUpdate(stored, rec, now)
		err = updateAuction(ctx, tx, stored)
		outcome = storage.Updated
	} else {
		a := &storage.Auction{
			ID:          uuid.NewString(),
			Record:      *rec,
			Geohash:     rec.Geohash(),
			FirstSeenAt: now,
			UpdatedAt:   now,
		}
		err = insertAuction(ctx, tx, a)
	}
	if err != nil {
		return outcome, errors.WrapPersist(rec.IdentityHash, rec.URL, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return outcome, errors.WrapPersist(rec.IdentityHash, rec.URL, err)
	}
	return outcome, nil
}

func lockExisting(ctx context.Context, tx pgx.Tx, hash, url string) (*storage.Auction, error) {
	row := tx.QueryRow(ctx, `SELECT `+auctionColumns+` FROM auctions
		WHERE identity_hash = $1 OR (url = $2 AND $2 <> '')
		ORDER BY (identity_hash = $1) DESC
		LIMIT 1
		FOR UPDATE`, hash, url)
	return scanAuction(row)
}

func scanAuction(row pgx.Row) (*storage.Auction, error) {
	var (
		a                               storage.Auction
		scrapedAt, firstSeen, updatedAt time.Time
	)
	err := row.Scan(
		&a.ID, &a.Source, &a.SourceID, &a.URL, &a.IdentityHash,
		&a.Address, &a.PostalCode, &a.City, &a.Department, &a.Latitude, &a.Longitude, &a.Geohash,
		&a.PropertyType, &a.Surface, &a.Rooms, &a.Description, &a.DescriptionDetailed,
		&a.StartingPrice, &a.FinalPrice, &a.MarketPricePerSqm,
		&a.SaleDate, &a.SaleTime, &a.Court, &a.CaseNumber, &a.VisitDates,
		&a.LawyerName, &a.LawyerEmail, &a.LawyerPhone,
		&a.Photos, &a.Documents, &a.MinutesURL, &a.ContributingSources,
		&scrapedAt, &firstSeen, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.ScrapedAt = utc.New(scrapedAt)
	a.FirstSeenAt = utc.New(firstSeen)
	a.UpdatedAt = utc.New(updatedAt)
	return &a, nil
}

func auctionArgs(a *storage.Auction) []any {
	return []any{
		a.ID, a.Source, a.SourceID, a.URL, a.IdentityHash,
		a.Address, a.PostalCode, a.City, a.Department, a.Latitude, a.Longitude, a.Geohash,
		a.PropertyType, a.Surface, a.Rooms, a.Description, a.DescriptionDetailed,
		a.StartingPrice, a.FinalPrice, a.MarketPricePerSqm,
		a.SaleDate, a.SaleTime, a.Court, a.CaseNumber, jsonSlice(a.VisitDates),
		a.LawyerName, a.LawyerEmail, a.LawyerPhone,
		jsonSlice(a.Photos), jsonDocs(a.Documents), a.MinutesURL, jsonSlice(a.ContributingSources),
		a.ScrapedAt.Time, a.FirstSeenAt.Time, a.UpdatedAt.Time,
	}
}

// jsonSlice keeps JSONB columns at '[]' instead of 'null' for empty slices.
func jsonSlice(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func jsonDocs(in []auctions.Document) []auctions.Document {
	if in == nil {
		return []auctions.Document{}
	}
	return in
}

func insertAuction(ctx context.Context, tx pgx.Tx, a *storage.Auction) error {
	_, err := tx.Exec(ctx, `INSERT INTO auctions (`+auctionColumns+`) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
		$18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32,
		$33, $34, $35)`, auctionArgs(a)...)
	return err
}

func updateAuction(ctx context.Context, tx pgx.Tx, a *storage.Auction) error {
	_, err := tx.Exec(ctx, `UPDATE auctions SET
		identity_hash = $2,
		latitude = $3, longitude = $4, geohash = $5,
		description_detailed = $6, minutes_url = $7,
		lawyer_name = $8, lawyer_email = $9, lawyer_phone = $10,
		visit_dates = $11, photos = $12, documents = $13, contributing_sources = $14,
		scraped_at = $15, updated_at = $16
		WHERE id = $1`,
		a.ID, a.IdentityHash,
		a.Latitude, a.Longitude, a.Geohash,
		a.DescriptionDetailed, a.MinutesURL,
		a.LawyerName, a.LawyerEmail, a.LawyerPhone,
		jsonSlice(a.VisitDates), jsonSlice(a.Photos), jsonDocs(a.Documents), jsonSlice(a.ContributingSources),
		a.ScrapedAt.Time, a.UpdatedAt.Time)
	return err
}

// MissingCoordinates implements storage.Store.
func (s *Store) MissingCoordinates(ctx context.Context, limit int) ([]storage.Auction, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+auctionColumns+` FROM auctions
		WHERE latitude IS NULL OR longitude IS NULL
		ORDER BY first_seen_at, id
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// SetCoordinates implements storage.Store.
func (s *Store) SetCoordinates(ctx context.Context, id string, lat, lon float64) error {
	gh := (&auctions.Record{Latitude: &lat, Longitude: &lon}).Geohash()
	tag, err := s.pool.Exec(ctx, `UPDATE auctions
		SET latitude = $2, longitude = $3, geohash = $4, updated_at = $5
		WHERE id = $1`, id, lat, lon, gh, utc.Now().Time)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("auction %s: %w", id, errors.ErrNotFound)
	}
	return nil
}

// SaveRun implements storage.Store.
func (s *Store) SaveRun(ctx context.Context, rec auctions.RunRecord) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO scrape_history
		(run_id, source, status, found, skipped, errors, pages_scraped, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (run_id, source) DO UPDATE SET
			status = EXCLUDED.status,
			found = EXCLUDED.found,
			skipped = EXCLUDED.skipped,
			errors = EXCLUDED.errors,
			pages_scraped = EXCLUDED.pages_scraped,
			error = EXCLUDED.error,
			finished_at = EXCLUDED.finished_at`,
		rec.RunID, rec.Source, string(rec.Status), rec.Found, rec.Skipped, rec.Errors,
		rec.PagesScraped, rec.Error, rec.StartedAt.Time, rec.FinishedAt.Time)
	return err
}

// RecentRuns implements storage.Store.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]auctions.RunRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT run_id, source, status, found, skipped,
		errors, pages_scraped, error, started_at, finished_at
		FROM scrape_history
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []auctions.RunRecord
	for rows.Next() {
		var (
			rec               auctions.RunRecord
			status            string
			started, finished time.Time
		)
		if err := rows.Scan(&rec.RunID, &rec.Source, &status, &rec.Found, &rec.Skipped,
			&rec.Errors, &rec.PagesScraped, &rec.Error, &started, &finished); err != nil {
			return nil, err
		}
		rec.Status = auctions.RunStatus(status)
		rec.StartedAt = utc.New(started)
		rec.FinishedAt = utc.New(finished)
		out = append(out, rec)
	}
	return out, rows.Err()
}
