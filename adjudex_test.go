package adjudex

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/agentstation/utc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adjudex/adjudex/internal/geocode"
	"github.com/adjudex/adjudex/internal/storage/memory"
	"github.com/adjudex/adjudex/pkg/auctions"
	"github.com/adjudex/adjudex/pkg/errors"
)

func f64(v float64) *float64 { return &v }

// stubAdapter serves one listing page of scripted records.
type stubAdapter struct {
	name      string
	records   map[string]*auctions.Record
	listErr   error
	block     chan struct{} // when set, Detail waits until closed
	started   chan struct{} // when set, closed on the first ListingPage call
	startOnce sync.Once
}

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) ListingPage(_ context.Context, page int) ([]string, error) {
	if s.started != nil {
		s.startOnce.Do(func() { close(s.started) })
	}
	if s.listErr != nil {
		return nil, s.listErr
	}
	if page > 1 {
		return nil, nil
	}
	urls := make([]string, 0, len(s.records))
	for u := range s.records {
		urls = append(urls, u)
	}
	return urls, nil
}

func (s *stubAdapter) Detail(ctx context.Context, url string) (*auctions.Record, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.records[url], nil
}

func sameAuction(source, url string, visits ...string) *auctions.Record {
	r := &auctions.Record{
		Source:        source,
		URL:           url,
		Address:       "12 Rue X",
		PostalCode:    "13001",
		City:          "Marseille",
		StartingPrice: f64(50000),
		SaleDate:      "2025-03-01",
		VisitDates:    visits,
		ScrapedAt:     utc.Now(),
	}
	r.Normalize()
	return r
}

type stubGeocoder struct{ calls int }

func (g *stubGeocoder) Geocode(context.Context, string) (*geocode.Coordinates, error) {
	g.calls++
	return &geocode.Coordinates{Lat: 43.2965, Lon: 5.3698}, nil
}

func TestRunEndToEnd(t *testing.T) {
	siteA := &stubAdapter{name: "siteA", records: map[string]*auctions.Record{
		"https://a.fr/lot/1": sameAuction("siteA", "https://a.fr/lot/1"),
	}}
	siteB := &stubAdapter{name: "siteB", records: map[string]*auctions.Record{
		"https://b.fr/lot/9": sameAuction("siteB", "https://b.fr/lot/9", "2025-02-10"),
	}}

	store := memory.New()
	runner, err := New(store,
		WithAdapters(siteA, siteB),
		WithGeocoder(&stubGeocoder{}),
	)
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, auctions.RunCompleted, summary.Status)
	assert.Equal(t, 2, summary.TotalFound)
	assert.Equal(t, 1, summary.AfterDedup)
	assert.Equal(t, 1, summary.Persisted)
	assert.Equal(t, 1, summary.Geocoded)
	assert.Len(t, summary.PerSource, 2)
	assert.GreaterOrEqual(t, summary.DurationSeconds, 0.0)

	for _, rec := range summary.PerSource {
		assert.Equal(t, 1, rec.PagesScraped, rec.Source)
	}

	// one stored record, primary source is the first contributor
	assert.Equal(t, 1, store.Len())
	stored, ok := store.GetByURL("https://a.fr/lot/1")
	require.True(t, ok)
	assert.Equal(t, "siteA", stored.Source)
	assert.Equal(t, []string{"2025-02-10"}, stored.VisitDates)
	assert.Equal(t, []string{"siteA", "siteB"}, stored.ContributingSources)
	require.True(t, stored.HasCoordinates())
	assert.NotEmpty(t, stored.Geohash)

	// scraping the same listings again updates in place, never duplicates
	again, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, again.Persisted)
	assert.Equal(t, 1, store.Len())
}

func TestRunSourceFilter(t *testing.T) {
	siteA := &stubAdapter{name: "siteA", records: map[string]*auctions.Record{
		"https://a.fr/lot/1": sameAuction("siteA", "https://a.fr/lot/1"),
	}}
	siteB := &stubAdapter{name: "siteB", records: map[string]*auctions.Record{
		"https://b.fr/lot/9": sameAuction("siteB", "https://b.fr/lot/9"),
	}}

	store := memory.New()
	runner, err := New(store,
		WithAdapters(siteA, siteB),
		WithGeocoder(&stubGeocoder{}),
	)
	require.NoError(t, err)

	summary, err := runner.Run(context.Background(), RunWithSources("siteB"))
	require.NoError(t, err)

	require.Len(t, summary.PerSource, 1)
	assert.Equal(t, "siteB", summary.PerSource[0].Source)

	_, ok := store.GetByURL("https://b.fr/lot/9")
	assert.True(t, ok)
	_, ok = store.GetByURL("https://a.fr/lot/1")
	assert.False(t, ok, "filtered-out source must not be scraped")
}

func TestRunRejectsUnknownSource(t *testing.T) {
	siteA := &stubAdapter{name: "siteA", records: map[string]*auctions.Record{}}

	runner, err := New(memory.New(),
		WithAdapters(siteA),
		WithGeocoder(&stubGeocoder{}),
	)
	require.NoError(t, err)

	_, err = runner.Run(context.Background(), RunWithSources("ebay"))
	var verr *errors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "ebay")

	// the run never started, so no history was written
	runs, err := runner.History(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRunPartialFailure(t *testing.T) {
	broken := &stubAdapter{name: "siteA", listErr: fmt.Errorf("markup changed")}
	healthy := &stubAdapter{name: "siteB", records: map[string]*auctions.Record{
		"https://b.fr/lot/9": sameAuction("siteB", "https://b.fr/lot/9"),
	}}

	store := memory.New()
	runner, err := New(store,
		WithAdapters(broken, healthy),
		WithGeocoder(&stubGeocoder{}),
	)
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, auctions.RunPartiallyFailed, summary.Status)
	assert.Equal(t, 1, summary.Persisted)

	// history carries the finalized per-source outcomes
	runs, err := runner.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	statuses := map[string]auctions.RunStatus{}
	for _, r := range runs {
		statuses[r.Source] = r.Status
	}
	assert.Equal(t, auctions.RunFailed, statuses["siteA"])
	assert.Equal(t, auctions.RunCompleted, statuses["siteB"])
}

func TestRunRejectsConcurrentRuns(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	slow := &stubAdapter{
		name:    "siteA",
		block:   release,
		started: started,
		records: map[string]*auctions.Record{
			"https://a.fr/lot/1": sameAuction("siteA", "https://a.fr/lot/1"),
		},
	}

	runner, err := New(memory.New(),
		WithAdapters(slow),
		WithGeocoder(&stubGeocoder{}),
	)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = runner.Run(context.Background())
	}()

	// wait until the first run is scraping, so it holds the lock
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("run never started")
	}

	_, err = runner.Run(context.Background())
	assert.ErrorIs(t, err, errors.ErrRunInProgress)

	close(release)
	<-done

	// after the run finishes the runner accepts new work
	_, err = runner.Run(context.Background())
	assert.NoError(t, err)
}
