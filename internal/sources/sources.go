// Package sources defines the contract every auction source adapter
// implements and the registry the coordinator builds adapters from.
//
// An adapter walks its source's listing pages to collect detail URLs, then
// scrapes each detail page into an auctions.Record. Adapters report an
// intentionally excluded listing (a notarial sale on a judicial source, for
// example) by returning an error wrapping errors.ErrSkip; the coordinator
// counts those separately from failures.
package sources

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/adjudex/adjudex/internal/fetch"
	"github.com/adjudex/adjudex/pkg/auctions"
)

// Adapter scrapes one auction source.
type Adapter interface {
	// Name returns the source name used in records and run history.
	Name() string

	// ListingPage returns the detail-page URLs found on listing page n
	// (1-based). An empty slice means pagination is exhausted.
	ListingPage(ctx context.Context, page int) ([]string, error)

	// Detail scrapes one auction detail page into a Record. A listing the
	// adapter excludes on purpose yields an error wrapping errors.ErrSkip.
	Detail(ctx context.Context, url string) (*auctions.Record, error)
}

// Config carries the per-source settings an adapter is built from.
type Config struct {
	// BaseURL overrides the adapter's production base URL. Tests point it
	// at an httptest server.
	BaseURL string

	// MinInterval is the politeness delay between requests to this source.
	MinInterval time.Duration

	// Departments restricts scraping to these department codes. Empty
	// means no filter.
	Departments []string

	// MaxPages bounds listing pagination.
	MaxPages int
}

// Factory builds an adapter from its configuration.
type Factory func(cfg Config) Adapter

var registry = map[string]Factory{}

// Register adds a source factory under name. Called from adapter package
// init functions; duplicate names panic at startup.
func Register(name string, f Factory) {
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("sources: duplicate registration for %q", name))
	}
	registry[name] = f
}

// New builds the named adapter, or an error when the name is unknown.
func New(name string, cfg Config) (Adapter, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("sources: unknown source %q", name)
	}
	return f(cfg), nil
}

// Names returns the registered source names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewClient builds the fetch client for a source from its configuration.
func NewClient(cfg Config) *fetch.Client {
	opts := []fetch.Option{}
	if cfg.MinInterval > 0 {
		opts = append(opts, fetch.WithMinInterval(cfg.MinInterval))
	}
	return fetch.New(opts...)
}
