// Package adjudex wires the scraping pipeline end to end: it coordinates
// the source adapters, deduplicates and merges their records, persists the
// result, backfills missing coordinates, and records run history. One
// Runner executes one run at a time; a second trigger while a run is in
// flight fails with errors.ErrRunInProgress.
package adjudex

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/agentstation/utc"
	"github.com/google/uuid"

	"github.com/adjudex/adjudex/internal/coordinator"
	"github.com/adjudex/adjudex/internal/dedup"
	"github.com/adjudex/adjudex/internal/geocode"
	"github.com/adjudex/adjudex/internal/sources"

	// register the built-in source adapters
	_ "github.com/adjudex/adjudex/internal/sources/agorastore"
	_ "github.com/adjudex/adjudex/internal/sources/encherespubliques"
	_ "github.com/adjudex/adjudex/internal/sources/licitor"

	"github.com/adjudex/adjudex/internal/storage"
	"github.com/adjudex/adjudex/pkg/auctions"
	"github.com/adjudex/adjudex/pkg/errors"
	"github.com/adjudex/adjudex/pkg/logging"
)

// Runner executes coordinated scraping runs against one store.
type Runner struct {
	store        storage.Store
	adapters     []sources.Adapter
	geocoder     geocode.Provider
	geocodeBatch int
	coordOpts    []coordinator.Option

	runMu sync.Mutex // serializes runs; the store is single-writer
}

// New builds a Runner. Without WithAdapters every registered source is
// enabled with its default configuration; without WithGeocoder the public
// BAN endpoint is used.
func New(store storage.Store, opts ...Option) (*Runner, error) {
	if store == nil {
		return nil, errors.New("adjudex: nil store")
	}
	r := &Runner{
		store:        store,
		geocodeBatch: geocode.DefaultBatch,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	if len(r.adapters) == 0 {
		for _, name := range sources.Names() {
			a, err := sources.New(name, sources.Config{})
			if err != nil {
				return nil, err
			}
			r.adapters = append(r.adapters, a)
		}
	}
	if r.geocoder == nil {
		r.geocoder = geocode.NewBAN("")
	}
	return r, nil
}

// Sources returns the names of the adapters this runner scrapes.
func (r *Runner) Sources() []string {
	names := make([]string, 0, len(r.adapters))
	for _, a := range r.adapters {
		names = append(names, a.Name())
	}
	return names
}

// Run executes one coordinated run: scrape all sources, deduplicate across
// them, upsert the merged records, geocode what still lacks coordinates,
// and persist per-source history. Per-run options can narrow the source
// set and override the page budget or deadline. Source failures never fail
// the run; they surface in the summary. Returns ErrRunInProgress when a
// run is already in flight.
func (r *Runner) Run(ctx context.Context, opts ...RunOption) (*auctions.RunSummary, error) {
	var settings RunOptions
	for _, opt := range opts {
		opt(&settings)
	}
	adapters, coordOpts, err := r.applyRunOptions(settings)
	if err != nil {
		return nil, err
	}

	if !r.runMu.TryLock() {
		return nil, errors.ErrRunInProgress
	}
	defer r.runMu.Unlock()

	runID := uuid.NewString()
	ctx = logging.WithRun(ctx, runID)
	log := logging.Ctx(ctx)
	started := utc.Now()

	names := make([]string, 0, len(adapters))
	for _, a := range adapters {
		names = append(names, a.Name())
	}
	log.Info().Strs("sources", names).Msg("run started")

	// mark every source running up front so history reflects in-flight runs
	for _, a := range adapters {
		rec := auctions.RunRecord{
			RunID:     runID,
			Source:    a.Name(),
			Status:    auctions.RunRunning,
			StartedAt: started,
		}
		if err := r.store.SaveRun(ctx, rec); err != nil {
			log.Warn().Err(err).Str("source", a.Name()).Msg("recording run start failed")
		}
	}

	result := coordinator.New(adapters, coordOpts...).Run(ctx, runID)

	merged := dedup.Deduplicate(ctx, result.Records)

	persisted := 0
	for _, rec := range merged {
		if _, err := r.store.Upsert(ctx, rec); err != nil {
			log.Error().Err(err).Str("url", rec.URL).Msg("persist failed")
			continue
		}
		persisted++
	}

	geocoded, err := geocode.Backfill(ctx, r.store, r.geocoder, r.geocodeBatch)
	if err != nil {
		// best effort: a failed geocoding pass does not fail the run
		log.Warn().Err(err).Msg("geocoding pass aborted")
	}

	for _, rec := range result.PerSource {
		if err := r.store.SaveRun(ctx, rec); err != nil {
			log.Warn().Err(err).Str("source", rec.Source).Msg("recording run outcome failed")
		}
	}

	summary := &auctions.RunSummary{
		RunID:      runID,
		PerSource:  result.PerSource,
		AfterDedup: len(merged),
		Persisted:  persisted,
		Geocoded:   geocoded,
		StartedAt:  started,
		FinishedAt: utc.Now(),
	}
	summary.Aggregate()
	summary.DurationSeconds = summary.FinishedAt.Sub(started).Seconds()

	log.Info().
		Str("status", string(summary.Status)).
		Int("found", summary.TotalFound).
		Int("after_dedup", summary.AfterDedup).
		Int("persisted", summary.Persisted).
		Int("geocoded", summary.Geocoded).
		Msg("run finished")
	return summary, nil
}

// applyRunOptions resolves the adapter set and coordinator options for one
// run. The requested source order becomes merge primacy for that run.
func (r *Runner) applyRunOptions(settings RunOptions) ([]sources.Adapter, []coordinator.Option, error) {
	adapters := r.adapters
	if len(settings.Sources) > 0 {
		byName := make(map[string]sources.Adapter, len(r.adapters))
		for _, a := range r.adapters {
			byName[a.Name()] = a
		}
		adapters = make([]sources.Adapter, 0, len(settings.Sources))
		for _, name := range settings.Sources {
			a, ok := byName[name]
			if !ok {
				return nil, nil, &errors.ValidationError{
					Field:   "sources",
					Message: fmt.Sprintf("unknown source %q (configured: %s)", name, strings.Join(r.Sources(), ", ")),
				}
			}
			adapters = append(adapters, a)
		}
	}

	coordOpts := slices.Clone(r.coordOpts)
	if settings.MaxPages > 0 {
		coordOpts = append(coordOpts, coordinator.WithMaxPages(settings.MaxPages))
	}
	if settings.Timeout > 0 {
		coordOpts = append(coordOpts, coordinator.WithTimeout(settings.Timeout))
	}
	return adapters, coordOpts, nil
}

// History returns the most recent per-source run records.
func (r *Runner) History(ctx context.Context, limit int) ([]auctions.RunRecord, error) {
	return r.store.RecentRuns(ctx, limit)
}
