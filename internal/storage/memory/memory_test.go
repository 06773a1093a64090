package memory

import (
	"context"
	"testing"
	"time"

	"github.com/agentstation/utc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adjudex/adjudex/internal/storage"
	"github.com/adjudex/adjudex/pkg/auctions"
	"github.com/adjudex/adjudex/pkg/errors"
)

func f64(v float64) *float64 { return &v }

func newRecord(source, url string) *auctions.Record {
	r := &auctions.Record{
		Source:        source,
		URL:           url,
		Address:       "12 Rue X",
		PostalCode:    "13001",
		City:          "Marseille",
		StartingPrice: f64(50000),
		SaleDate:      "2025-03-01",
		ScrapedAt:     utc.Now(),
	}
	r.Normalize()
	return r
}

func TestUpsertInsertThenUpdateByHash(t *testing.T) {
	s := New()
	ctx := context.Background()

	rec := newRecord("siteA", "https://a.fr/lot/1")
	rec.LawyerEmail = "a@x.fr"

	out, err := s.Upsert(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, storage.Inserted, out)
	assert.Equal(t, 1, s.Len())

	again := newRecord("siteA", "https://a.fr/lot/1")
	again.VisitDates = []string{"2025-02-10"}
	again.Normalize()

	out, err = s.Upsert(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, storage.Updated, out)
	assert.Equal(t, 1, s.Len())

	stored, ok := s.GetByURL("https://a.fr/lot/1")
	require.True(t, ok)
	assert.Equal(t, []string{"2025-02-10"}, stored.VisitDates)
	assert.Equal(t, "a@x.fr", stored.LawyerEmail)
}

func TestUpsertMatchesByURLWhenHashDiffers(t *testing.T) {
	s := New()
	ctx := context.Background()

	first := newRecord("siteA", "https://a.fr/lot/1")
	_, err := s.Upsert(ctx, first)
	require.NoError(t, err)

	// price corrected on the site: hash changes, URL does not
	second := newRecord("siteA", "https://a.fr/lot/1")
	second.StartingPrice = f64(60000)
	second.Normalize()
	require.NotEqual(t, first.IdentityHash, second.IdentityHash)

	out, err := s.Upsert(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, storage.Updated, out)
	assert.Equal(t, 1, s.Len())

	// starting price is not on the update allow-list
	stored, ok := s.GetByURL("https://a.fr/lot/1")
	require.True(t, ok)
	assert.InDelta(t, 50000, *stored.StartingPrice, 0.01)
}

func TestUpsertThinScrapeNeverBlanks(t *testing.T) {
	s := New()
	ctx := context.Background()

	full := newRecord("siteA", "https://a.fr/lot/1")
	full.LawyerEmail = "a@x.fr"
	full.Photos = []string{"https://a.fr/1.jpg"}
	full.Normalize()
	_, err := s.Upsert(ctx, full)
	require.NoError(t, err)

	thin := newRecord("siteA", "https://a.fr/lot/1")
	_, err = s.Upsert(ctx, thin)
	require.NoError(t, err)

	stored, ok := s.GetByURL("https://a.fr/lot/1")
	require.True(t, ok)
	assert.Equal(t, "a@x.fr", stored.LawyerEmail)
	assert.Equal(t, []string{"https://a.fr/1.jpg"}, stored.Photos)
}

func TestUpsertCoordinatesSetGeohash(t *testing.T) {
	s := New()
	ctx := context.Background()

	rec := newRecord("siteA", "https://a.fr/lot/1")
	rec.Latitude = f64(48.8566)
	rec.Longitude = f64(2.3522)
	_, err := s.Upsert(ctx, rec)
	require.NoError(t, err)

	stored, ok := s.GetByURL("https://a.fr/lot/1")
	require.True(t, ok)
	assert.Equal(t, "u09tvw0f6", stored.Geohash)
}

func TestMissingCoordinatesAndSetCoordinates(t *testing.T) {
	s := New()
	ctx := context.Background()

	located := newRecord("siteA", "https://a.fr/lot/1")
	located.Latitude = f64(43.3)
	located.Longitude = f64(5.4)
	_, err := s.Upsert(ctx, located)
	require.NoError(t, err)

	missing := newRecord("siteA", "https://a.fr/lot/2")
	missing.Address = "7 Rue Y"
	missing.Normalize()
	_, err = s.Upsert(ctx, missing)
	require.NoError(t, err)

	pending, err := s.MissingCoordinates(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "https://a.fr/lot/2", pending[0].URL)

	require.NoError(t, s.SetCoordinates(ctx, pending[0].ID, 43.29, 5.37))

	pending, err = s.MissingCoordinates(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	stored, ok := s.Get(pending2ID(t, s, "https://a.fr/lot/2"))
	require.True(t, ok)
	require.True(t, stored.HasCoordinates())
	assert.NotEmpty(t, stored.Geohash)
}

func pending2ID(t *testing.T, s *Store, url string) string {
	t.Helper()
	a, ok := s.GetByURL(url)
	require.True(t, ok)
	return a.ID
}

func TestSetCoordinatesUnknownID(t *testing.T) {
	s := New()
	err := s.SetCoordinates(context.Background(), "nope", 1, 2)
	assert.True(t, errors.IsNotFound(err))
}

func TestRunHistory(t *testing.T) {
	s := New()
	ctx := context.Background()

	early := utc.Now()
	late := early.Add(time.Minute)

	require.NoError(t, s.SaveRun(ctx, auctions.RunRecord{
		RunID: "r1", Source: "siteA", Status: auctions.RunRunning, StartedAt: early,
	}))
	require.NoError(t, s.SaveRun(ctx, auctions.RunRecord{
		RunID: "r2", Source: "siteA", Status: auctions.RunCompleted, StartedAt: late,
	}))

	// finalizing replaces the running row, it does not append
	require.NoError(t, s.SaveRun(ctx, auctions.RunRecord{
		RunID: "r1", Source: "siteA", Status: auctions.RunCompleted, Found: 4, PagesScraped: 2, StartedAt: early,
	}))

	runs, err := s.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r2", runs[0].RunID)
	assert.Equal(t, "r1", runs[1].RunID)
	assert.Equal(t, auctions.RunCompleted, runs[1].Status)
	assert.Equal(t, 4, runs[1].Found)
	assert.Equal(t, 2, runs[1].PagesScraped)

	runs, err = s.RecentRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "r2", runs[0].RunID)
}
