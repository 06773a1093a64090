package adjudex

import (
	"time"

	"github.com/adjudex/adjudex/internal/coordinator"
	"github.com/adjudex/adjudex/internal/geocode"
	"github.com/adjudex/adjudex/internal/sources"
	"github.com/adjudex/adjudex/pkg/errors"
)

// Option configures a Runner.
type Option func(*Runner) error

// WithAdapters sets the source adapters to scrape, replacing the default
// set of all registered sources.
func WithAdapters(adapters ...sources.Adapter) Option {
	return func(r *Runner) error {
		if len(adapters) == 0 {
			return errors.New("adjudex: no adapters given")
		}
		r.adapters = adapters
		return nil
	}
}

// WithGeocoder replaces the BAN geocoder, mainly for tests.
func WithGeocoder(p geocode.Provider) Option {
	return func(r *Runner) error {
		r.geocoder = p
		return nil
	}
}

// WithGeocodeBatch bounds how many auctions one run geocodes.
func WithGeocodeBatch(n int) Option {
	return func(r *Runner) error {
		if n > 0 {
			r.geocodeBatch = n
		}
		return nil
	}
}

// WithWorkers bounds how many sources scrape concurrently.
func WithWorkers(n int) Option {
	return func(r *Runner) error {
		r.coordOpts = append(r.coordOpts, coordinator.WithWorkers(n))
		return nil
	}
}

// WithMaxPages bounds listing pages per source.
func WithMaxPages(n int) Option {
	return func(r *Runner) error {
		r.coordOpts = append(r.coordOpts, coordinator.WithMaxPages(n))
		return nil
	}
}

// WithTimeout bounds the whole run.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) error {
		r.coordOpts = append(r.coordOpts, coordinator.WithTimeout(d))
		return nil
	}
}

// RunOptions narrows a single run without rebuilding the Runner. The zero
// value scrapes every configured adapter with the constructor settings.
type RunOptions struct {
	Sources  []string      // subset of configured sources, in merge-primacy order
	MaxPages int           // listing-page budget override for this run
	Timeout  time.Duration // run deadline override
}

// RunOption adjusts one run.
type RunOption func(*RunOptions)

// RunWithSources restricts the run to the named sources. Names must match
// configured adapters; unknown names fail the run before it starts.
func RunWithSources(names ...string) RunOption {
	return func(o *RunOptions) {
		o.Sources = names
	}
}

// RunWithMaxPages overrides the listing-page budget for this run only.
func RunWithMaxPages(n int) RunOption {
	return func(o *RunOptions) {
		o.MaxPages = n
	}
}

// RunWithTimeout overrides the run deadline for this run only.
func RunWithTimeout(d time.Duration) RunOption {
	return func(o *RunOptions) {
		o.Timeout = d
	}
}
