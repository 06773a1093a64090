// Package storage defines the persistence boundary of the pipeline and the
// stored form of an auction. Implementations live in subpackages: memory
// backs tests and dry runs, postgres backs production.
package storage

import (
	"context"

	"github.com/agentstation/utc"

	"github.com/adjudex/adjudex/pkg/auctions"
)

// UpsertOutcome reports what an upsert did to storage.
type UpsertOutcome int

// Upsert outcomes.
const (
	Inserted UpsertOutcome = iota // no stored auction matched, new row created
	Updated                       // an existing row matched by identity hash or URL
)

// String implements fmt.Stringer.
func (o UpsertOutcome) String() string {
	if o == Inserted {
		return "inserted"
	}
	return "updated"
}

// Auction is the stored counterpart of a scraped record. It carries the
// storage id, the geohash derived from coordinates, and bookkeeping
// timestamps. Rows are only ever inserted or updated here; expiry belongs
// to an external scheduler.
type Auction struct {
	ID string `json:"id"`
	auctions.Record
	Geohash     string   `json:"geohash,omitempty"`
	FirstSeenAt utc.Time `json:"first_seen_at"`
	UpdatedAt   utc.Time `json:"updated_at"`
}

// Store is the persistence contract consumed by the run pipeline. A store
// is not safe for concurrent runs against the same backing storage; callers
// serialize runs.
type Store interface {
	// Upsert writes one merged record, matching existing rows by identity
	// hash first, then by URL. A match updates only the allow-listed fields
	// (see ApplyUpdate); no match inserts a full new row.
	Upsert(ctx context.Context, rec *auctions.Record) (UpsertOutcome, error)

	// MissingCoordinates returns up to limit stored auctions that still
	// have no coordinates, oldest first. Consumed by the geocoding pass.
	MissingCoordinates(ctx context.Context, limit int) ([]Auction, error)

	// SetCoordinates fills the coordinates and derived geohash of one
	// stored auction.
	SetCoordinates(ctx context.Context, id string, lat, lon float64) error

	// SaveRun inserts or finalizes the per-source record of a run. Records
	// are keyed by (run id, source); saving twice replaces the first write.
	SaveRun(ctx context.Context, rec auctions.RunRecord) error

	// RecentRuns returns per-source run records, most recently started first.
	RecentRuns(ctx context.Context, limit int) ([]auctions.RunRecord, error)

	// Close releases the backing resources.
	Close() error
}

// ApplyUpdate folds an incoming scrape into a stored auction under the
// update allow-list: collections grow by union, media and contact fields
// overwrite only when the incoming value is present, and every other field
// keeps its stored value so a thin later scrape never blanks previously
// captured data.
func ApplyUpdate(stored *Auction, in *auctions.Record, now utc.Time) {
	if in.DescriptionDetailed != "" {
		stored.DescriptionDetailed = in.DescriptionDetailed
	}
	if in.MinutesURL != "" {
		stored.MinutesURL = in.MinutesURL
	}
	if in.LawyerName != "" {
		stored.LawyerName = in.LawyerName
	}
	if in.LawyerEmail != "" {
		stored.LawyerEmail = in.LawyerEmail
	}
	if in.LawyerPhone != "" {
		stored.LawyerPhone = in.LawyerPhone
	}
	if in.Latitude != nil && in.Longitude != nil {
		stored.Latitude = in.Latitude
		stored.Longitude = in.Longitude
	}

	stored.VisitDates = append(stored.VisitDates, in.VisitDates...)
	stored.Photos = append(stored.Photos, in.Photos...)
	stored.Documents = append(stored.Documents, in.Documents...)
	stored.ContributingSources = append(stored.ContributingSources, in.Source)
	stored.ContributingSources = append(stored.ContributingSources, in.ContributingSources...)

	stored.ScrapedAt = in.ScrapedAt
	stored.Record.Normalize()

	if stored.HasCoordinates() {
		stored.Geohash = stored.Record.Geohash()
	}
	stored.UpdatedAt = now
}
