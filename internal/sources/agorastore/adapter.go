// Package agorastore scrapes agorastore.fr, the marketplace for public
// sector property sales. The site exposes a JSON API for listings and lot
// details; HTML scraping is the fallback when the API misbehaves.
package agorastore

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/adjudex/adjudex/internal/fetch"
	"github.com/adjudex/adjudex/internal/parse"
	"github.com/adjudex/adjudex/internal/sources"
	"github.com/adjudex/adjudex/pkg/auctions"
	"github.com/adjudex/adjudex/pkg/errors"
	"github.com/adjudex/adjudex/pkg/logging"
)

// SourceName identifies this source in records and run history.
const SourceName = "agorastore"

const (
	defaultBaseURL = "https://www.agorastore.fr"
	listingLimit   = 50
)

func init() {
	sources.Register(SourceName, func(cfg sources.Config) sources.Adapter {
		return New(cfg)
	})
}

var (
	lotIDRe     = regexp.MustCompile(`_(\d+)$|/lot/(\d+)`)
	visitDateRe = regexp.MustCompile(`(\d{1,2}[/\-\.]\d{1,2}[/\-\.]\d{2,4})`)
)

// Adapter scrapes agorastore.fr.
type Adapter struct {
	base        string
	client      *fetch.Client
	departments []string
	maxPages    int
}

// New builds the adapter from its configuration.
func New(cfg sources.Config) *Adapter {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &Adapter{
		base:        strings.TrimRight(base, "/"),
		client:      sources.NewClient(cfg),
		departments: cfg.Departments,
		maxPages:    cfg.MaxPages,
	}
}

// Name implements sources.Adapter.
func (a *Adapter) Name() string { return SourceName }

// listingResponse tolerates the API's shifting envelope field names.
type listingResponse struct {
	Lots  []listingLot `json:"lots"`
	Data  []listingLot `json:"data"`
	Items []listingLot `json:"items"`
}

func (r *listingResponse) lots() []listingLot {
	switch {
	case len(r.Lots) > 0:
		return r.Lots
	case len(r.Data) > 0:
		return r.Data
	default:
		return r.Items
	}
}

type listingLot struct {
	ID    any    `json:"id"`
	LotID any    `json:"lot_id"`
	Slug  string `json:"slug"`
}

// ListingPage queries the lots API; on API failure it falls back to the
// HTML listing.
func (a *Adapter) ListingPage(ctx context.Context, page int) ([]string, error) {
	if a.maxPages > 0 && page > a.maxPages {
		return nil, nil
	}
	params := map[string]string{
		"category": "immobilier",
		"page":     strconv.Itoa(page),
		"limit":    strconv.Itoa(listingLimit),
		"sort":     "date_fin",
		"order":    "asc",
	}
	if len(a.departments) > 0 {
		params["departements"] = strings.Join(a.departments, ",")
	}

	var resp listingResponse
	err := a.client.JSON(ctx, a.base+"/api/lots", params, &resp)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("lots api failed, falling back to html listing")
		return a.listingFromHTML(ctx, page)
	}

	var urls []string
	for _, lot := range resp.lots() {
		id := anyID(lot.ID)
		if id == "" {
			id = anyID(lot.LotID)
		}
		if id == "" {
			continue
		}
		if lot.Slug != "" {
			urls = append(urls, fmt.Sprintf("%s/lot/%s_%s", a.base, lot.Slug, id))
		} else {
			urls = append(urls, fmt.Sprintf("%s/lot/%s", a.base, id))
		}
	}
	return urls, nil
}

// listingFromHTML scrapes the paginated HTML listing.
func (a *Adapter) listingFromHTML(ctx context.Context, page int) ([]string, error) {
	doc, err := a.client.Page(ctx, fmt.Sprintf("%s/immobilier?page=%d", a.base, page))
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var urls []string
	seen := map[string]struct{}{}
	doc.Find("a.lot-card, a[href*='/lot/'], .lot-item a").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !strings.Contains(href, "/lot/") {
			return
		}
		full := parse.NormalizeURL(href, a.base)
		if _, dup := seen[full]; dup {
			return
		}
		seen[full] = struct{}{}
		urls = append(urls, full)
	})
	return urls, nil
}

// Detail fetches lot data from the API when a lot id is present in the URL,
// with HTML as fallback.
func (a *Adapter) Detail(ctx context.Context, url string) (*auctions.Record, error) {
	if id := extractLotID(url); id != "" {
		var lot lotDetail
		if err := a.client.JSON(ctx, a.base+"/api/lots/"+id, nil, &lot); err == nil {
			return a.fromAPI(&lot, url), nil
		}
		logging.Ctx(ctx).Debug().Str("lot", id).Msg("lot api failed, scraping html")
	}
	return a.detailFromHTML(ctx, url)
}

func extractLotID(url string) string {
	m := lotIDRe.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return m[1]
	}
	return m[2]
}

// anyID renders the API's id field, which arrives as number or string.
func anyID(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatInt(int64(t), 10)
	default:
		return ""
	}
}
