// Package coordinator runs the configured source adapters as one bounded
// parallel scrape. Each source gets an isolated worker: a source failing,
// panicking or timing out is recorded in its run record and never disturbs
// its siblings. The coordinator only collects raw records; grouping,
// merging and persistence happen strictly after all workers join.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/agentstation/utc"
	"golang.org/x/sync/errgroup"

	"github.com/adjudex/adjudex/internal/sources"
	"github.com/adjudex/adjudex/pkg/auctions"
	"github.com/adjudex/adjudex/pkg/errors"
	"github.com/adjudex/adjudex/pkg/logging"
)

// Defaults for a coordinated run.
const (
	DefaultWorkers  = 3
	DefaultMaxPages = 20
	DefaultTimeout  = 10 * time.Minute
)

// Coordinator owns one run across all configured adapters.
type Coordinator struct {
	adapters []sources.Adapter
	workers  int
	maxPages int
	timeout  time.Duration
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithWorkers bounds how many sources scrape at once. Sources beyond the
// budget queue.
func WithWorkers(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithMaxPages bounds the listing pages walked per source.
func WithMaxPages(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

// WithTimeout bounds the whole run. Workers past the deadline are abandoned
// but their partial records are kept.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New builds a Coordinator over the given adapters.
func New(adapters []sources.Adapter, opts ...Option) *Coordinator {
	c := &Coordinator{
		adapters: adapters,
		workers:  DefaultWorkers,
		maxPages: DefaultMaxPages,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result is everything one run produced before dedup: the raw records of
// all sources and one run record per source.
type Result struct {
	Records   []*auctions.Record
	PerSource []auctions.RunRecord
}

// Run executes one coordinated scrape. It never returns an error for source
// failures; those live in the per-source run records.
func (c *Coordinator) Run(ctx context.Context, runID string) *Result {
	ctx, cancel := context.WithTimeout(logging.WithRun(ctx, runID), c.timeout)
	defer cancel()

	// one slot per adapter, so configured source order decides merge
	// primacy downstream regardless of which worker finishes first
	perSource := make([]auctions.RunRecord, len(c.adapters))
	records := make([][]*auctions.Record, len(c.adapters))

	var g errgroup.Group
	g.SetLimit(c.workers)
	for i, adapter := range c.adapters {
		g.Go(func() error {
			rec, recs := c.scrapeSource(ctx, runID, adapter)
			perSource[i] = *rec
			records[i] = recs
			return nil
		})
	}
	// workers never return errors; failures live in the run records
	_ = g.Wait()

	var result Result
	result.PerSource = perSource
	for _, recs := range records {
		result.Records = append(result.Records, recs...)
	}
	return &result
}

// scrapeSource walks one source's listing pages and detail pages,
// accounting for skips and per-listing failures. Panics and fatal listing
// errors mark the source failed without touching other workers.
func (c *Coordinator) scrapeSource(ctx context.Context, runID string, adapter sources.Adapter) (rec *auctions.RunRecord, records []*auctions.Record) {
	name := adapter.Name()
	ctx = logging.WithSource(ctx, name)
	log := logging.Ctx(ctx)

	rec = &auctions.RunRecord{
		RunID:     runID,
		Source:    name,
		Status:    auctions.RunRunning,
		StartedAt: utc.Now(),
	}
	defer func() {
		if r := recover(); r != nil {
			rec.Status = auctions.RunFailed
			rec.Error = fmt.Sprintf("panic: %v", r)
			log.Error().Str("reason", rec.Error).Msg("source worker panicked")
		}
		if rec.Status == auctions.RunRunning {
			rec.Status = auctions.RunCompleted
		}
		rec.Found = len(records)
		rec.FinishedAt = utc.Now()
		log.Info().
			Str("status", string(rec.Status)).
			Int("found", rec.Found).
			Int("skipped", rec.Skipped).
			Int("errors", rec.Errors).
			Int("pages", rec.PagesScraped).
			Msg("source scrape finished")
	}()

	seen := make(map[string]struct{})
	for page := 1; page <= c.maxPages; page++ {
		if err := ctx.Err(); err != nil {
			rec.Status = auctions.RunFailed
			rec.Error = fmt.Sprintf("run deadline: %v", err)
			return rec, records
		}

		urls, err := adapter.ListingPage(ctx, page)
		if err != nil {
			rec.Status = auctions.RunFailed
			rec.Error = errors.WrapSource(name, err).Error()
			return rec, records
		}
		if len(urls) == 0 {
			break
		}
		rec.PagesScraped++
		log.Debug().Int("page", page).Int("urls", len(urls)).Msg("listing page scraped")

		for _, url := range urls {
			if _, dup := seen[url]; dup {
				continue
			}
			seen[url] = struct{}{}

			if err := ctx.Err(); err != nil {
				rec.Status = auctions.RunFailed
				rec.Error = fmt.Sprintf("run deadline: %v", err)
				return rec, records
			}

			record, err := adapter.Detail(ctx, url)
			switch {
			case err == nil && record != nil:
				records = append(records, record)
			case errors.IsSkip(err):
				rec.Skipped++
			case err == nil:
				// adapter yielded nothing for this listing
			default:
				rec.Errors++
				log.Debug().Err(err).Str("url", url).Msg("detail scrape failed")
			}
		}
	}
	return rec, records
}
