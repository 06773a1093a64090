// Package geocode fills missing coordinates on stored auctions. The
// production provider is the BAN (Base Adresse Nationale) public geocoder;
// the backfill pass is best effort and never fails a run.
package geocode

import (
	"context"
	"strings"
	"time"

	"github.com/adjudex/adjudex/internal/fetch"
	"github.com/adjudex/adjudex/internal/storage"
	"github.com/adjudex/adjudex/pkg/auctions"
	"github.com/adjudex/adjudex/pkg/errors"
	"github.com/adjudex/adjudex/pkg/logging"
)

// DefaultBatch bounds how many auctions one backfill pass geocodes.
const DefaultBatch = 50

// Coordinates is a WGS84 position.
type Coordinates struct {
	Lat float64
	Lon float64
}

// Provider resolves a free-text address to coordinates. A nil result with a
// nil error means the address could not be resolved; that is not a failure.
type Provider interface {
	Geocode(ctx context.Context, address string) (*Coordinates, error)
}

const defaultBaseURL = "https://api-adresse.data.gouv.fr"

// BAN queries the French national address base search endpoint.
type BAN struct {
	base   string
	client *fetch.Client
}

// NewBAN builds the BAN provider. An empty baseURL selects the public
// endpoint.
func NewBAN(baseURL string) *BAN {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &BAN{
		base:   strings.TrimRight(baseURL, "/"),
		client: fetch.New(fetch.WithMinInterval(100 * time.Millisecond)),
	}
}

type banResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"` // [lon, lat]
		} `json:"geometry"`
	} `json:"features"`
}

// Geocode implements Provider.
func (b *BAN) Geocode(ctx context.Context, address string) (*Coordinates, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, nil
	}

	var resp banResponse
	err := b.client.JSON(ctx, b.base+"/search/", map[string]string{
		"q":     address,
		"limit": "1",
	}, &resp)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	if len(resp.Features) == 0 || len(resp.Features[0].Geometry.Coordinates) < 2 {
		return nil, nil
	}
	c := resp.Features[0].Geometry.Coordinates
	return &Coordinates{Lat: c[1], Lon: c[0]}, nil
}

// Backfill geocodes up to limit stored auctions that still lack
// coordinates and writes the results back. Per-auction failures are logged
// and skipped; only storage listing errors or context cancellation abort
// the pass. Returns the number of auctions geocoded.
func Backfill(ctx context.Context, store storage.Store, provider Provider, limit int) (int, error) {
	if limit <= 0 {
		limit = DefaultBatch
	}
	pending, err := store.MissingCoordinates(ctx, limit)
	if err != nil {
		return 0, err
	}

	log := logging.Ctx(ctx)
	geocoded := 0
	for i := range pending {
		if err := ctx.Err(); err != nil {
			return geocoded, err
		}
		a := &pending[i]

		query := searchQuery(&a.Record)
		if query == "" {
			continue
		}
		coords, err := provider.Geocode(ctx, query)
		if err != nil {
			log.Warn().Err(err).Str("auction", a.ID).Msg("geocoding failed")
			continue
		}
		if coords == nil {
			log.Debug().Str("auction", a.ID).Str("query", query).Msg("address not resolved")
			continue
		}
		if err := store.SetCoordinates(ctx, a.ID, coords.Lat, coords.Lon); err != nil {
			log.Warn().Err(err).Str("auction", a.ID).Msg("saving coordinates failed")
			continue
		}
		geocoded++
	}

	log.Info().Int("pending", len(pending)).Int("geocoded", geocoded).Msg("geocoding pass done")
	return geocoded, nil
}

// searchQuery builds the free-text query from the fields BAN scores best on.
func searchQuery(r *auctions.Record) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{r.Address, r.PostalCode, r.City} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
