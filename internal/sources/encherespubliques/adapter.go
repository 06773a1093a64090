// Package encherespubliques scrapes encheres-publiques.com, a Next.js site
// whose listing and detail data live in the embedded Apollo GraphQL cache.
// Pages mix judicial and notarial sales; notarial listings are skipped.
package encherespubliques

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/agentstation/utc"

	"github.com/adjudex/adjudex/internal/fetch"
	"github.com/adjudex/adjudex/internal/parse"
	"github.com/adjudex/adjudex/internal/sources"
	"github.com/adjudex/adjudex/pkg/auctions"
	"github.com/adjudex/adjudex/pkg/errors"
	"github.com/adjudex/adjudex/pkg/logging"
)

// SourceName identifies this source in records and run history.
const SourceName = "encheres-publiques"

const defaultBaseURL = "https://www.encheres-publiques.com"

func init() {
	sources.Register(SourceName, func(cfg sources.Config) sources.Adapter {
		return New(cfg)
	})
}

var (
	lotURLRe     = regexp.MustCompile(`_\d+$`)
	lotScriptRe  = regexp.MustCompile(`"url"\s*:\s*"(/encheres/immobilier/[^"]+_\d+)"`)
	sourceIDRe   = regexp.MustCompile(`_(\d+)$`)
	urlDeptRe    = regexp.MustCompile(`-(\d{2})/`)
	urlPostalRe  = regexp.MustCompile(`/(\d{5})/`)
	urlCityRe    = regexp.MustCompile(`/([a-z\-]+)-(\d{2})/`)
	roomsRe      = regexp.MustCompile(`(?i)(\d+)\s*(?:pièces?|p\.)`)
	misePrixRe   = regexp.MustCompile(`(?i)mise\s+[àa]\s+prix\s*:?\s*([\d\s,\.]+)\s*€?`)
	tribunalRe   = regexp.MustCompile(`(?i)tribunal\s+judiciaire\s+(?:de\s+)?([A-ZÀ-Ü][a-zà-ü\-]+(?:\s+[A-ZÀ-Ü][a-zà-ü\-]+)?)`)
	lawyerNameRe = regexp.MustCompile(`(?:Maître|Maitre|Me\.?)\s+([A-ZÀ-Ü][a-zà-ü\-]+(?:\s+[A-ZÀ-Ü][a-zà-ü\-]+)?)`)
)

var notarialKeywords = []string{
	"vente volontaire", "notaire", "notaires", "étude notariale",
	"office notarial", "vente amiable",
}

var judicialKeywords = []string{
	"tribunal judiciaire", "tribunal de grande instance", "vente judiciaire",
	"avocat poursuivant", "saisie immobilière", "vente sur licitation",
	"vente forcée", "adjudication judiciaire",
}

// Adapter scrapes encheres-publiques.com.
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

// ListingPage collects detail URLs from one paginated listing page. URLs are
// found both in anchors and in the Apollo cache scripts, since the rendered
// page only carries the visible part of the result set.
func (a *Adapter) ListingPage(ctx context.Context, page int) ([]string, error) {
	if a.maxPages > 0 && page > a.maxPages {
		return nil, nil
	}
	url := fmt.Sprintf("%s/encheres/immobilier?page=%d", a.base, page)

	doc, err := a.client.Page(ctx, url)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var urls []string
	seen := map[string]struct{}{}
	add := func(href string) {
		full := parse.NormalizeURL(href, a.base)
		if _, dup := seen[full]; dup {
			return
		}
		if !a.isTargetDepartment(full) {
			return
		}
		seen[full] = struct{}{}
		urls = append(urls, full)
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if strings.Contains(href, "/encheres/immobilier/") && lotURLRe.MatchString(href) {
			add(href)
		}
	})

	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		text := s.Text()
		if !strings.Contains(text, "apolloState") && !strings.Contains(text, `"Lot:`) {
			return
		}
		for _, m := range lotScriptRe.FindAllStringSubmatch(text, -1) {
			add(m[1])
		}
	})

	logging.Ctx(ctx).Debug().Int("page", page).Int("urls", len(urls)).Msg("listing page scraped")
	return urls, nil
}

// isTargetDepartment filters listing URLs by department when a filter is
// configured. URLs without a visible department pass; the detail page
// settles it.
func (a *Adapter) isTargetDepartment(url string) bool {
	if len(a.departments) == 0 {
		return true
	}

	if m := urlDeptRe.FindStringSubmatch(url); m != nil {
		return contains(a.departments, m[1])
	}
	if m := urlPostalRe.FindStringSubmatch(url); m != nil {
		return contains(a.departments, m[1][:2])
	}
	return true
}

// Detail scrapes one auction detail page. Notarial sales yield ErrSkip.
func (a *Adapter) Detail(ctx context.Context, url string) (*auctions.Record, error) {
	doc, err := a.client.Page(ctx, url)
	if err != nil {
		return nil, err
	}

	if !isJudicial(doc) {
		return nil, fmt.Errorf("notarial sale at %s: %w", url, errors.ErrSkip)
	}

	rec := &auctions.Record{
		Source:    SourceName,
		URL:       url,
		SourceID:  extractSourceID(url),
		ScrapedAt: utc.Now(),
	}

	cache := extractApolloCache(doc)
	if cache != nil {
		cache.fill(rec, a.base)
	}

	a.fillFromHTML(doc, rec)
	collectPhotos(doc, cache, rec, a.base)
	collectVisitDates(doc, rec)
	collectDocuments(doc, cache, rec, a.base)
	collectLawyer(doc, cache, rec)

	rec.Normalize()
	return rec, nil
}

// isJudicial decides whether the page describes a judicial sale. Judicial
// wording wins over notarial wording; an unclear page passes.
func isJudicial(doc *goquery.Document) bool {
	text := strings.ToLower(doc.Text())

	for _, kw := range judicialKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	for _, kw := range notarialKeywords {
		if strings.Contains(text, kw) {
			return false
		}
	}
	return true
}

func extractSourceID(url string) string {
	if m := sourceIDRe.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	return ""
}

// fillFromHTML complements the Apollo data with values parsed from the
// rendered page. Only empty fields are filled.
func (a *Adapter) fillFromHTML(doc *goquery.Document, rec *auctions.Record) {
	text := doc.Text()

	if rec.Description == "" {
		rec.Description = strings.TrimSpace(doc.Find("h1, .titre-vente, .page-title").First().Text())
	}

	if rec.Address == "" {
		addr := strings.TrimSpace(doc.Find(".adresse, .localisation, [itemprop='address']").First().Text())
		if addr == "" {
			addr = rec.Description
		}
		rec.Address = addr
	}

	if rec.PostalCode == "" {
		rec.PostalCode = parse.PostalCode(text)
	}
	if rec.Department == "" {
		rec.Department = parse.Department(rec.PostalCode)
	}

	if rec.City == "" {
		if m := urlCityRe.FindStringSubmatch(rec.URL); m != nil {
			rec.City = titleCase(strings.ReplaceAll(m[1], "-", " "))
			if rec.Department == "" {
				rec.Department = m[2]
			}
		}
	}

	if rec.PropertyType == "" {
		rec.PropertyType = parse.PropertyType(text)
	}
	if rec.Surface == nil {
		rec.Surface = parse.Surface(text)
	}
	if rec.Rooms == nil {
		if m := roomsRe.FindStringSubmatch(text); m != nil {
			if n := atoi(m[1]); n > 0 {
				rec.Rooms = &n
			}
		}
	}

	if rec.StartingPrice == nil {
		if m := misePrixRe.FindStringSubmatch(text); m != nil {
			rec.StartingPrice = parse.Price(m[1])
		}
	}

	if rec.SaleDate == "" {
		rec.SaleDate = parse.FrenchDate(text)
	}
	if rec.SaleTime == "" {
		rec.SaleTime = parse.Time(text)
	}

	if rec.Court == "" {
		if m := tribunalRe.FindStringSubmatch(text); m != nil {
			rec.Court = "Tribunal Judiciaire de " + m[1]
		}
	}

	if rec.DescriptionDetailed == "" {
		for _, sel := range []string{
			".description-bien", ".detail-bien", ".composition",
			".content-description", ".bloc-description", ".lot-description",
		} {
			if elem := doc.Find(sel).First(); elem.Length() > 0 {
				rec.DescriptionDetailed = strings.TrimSpace(elem.Text())
				break
			}
		}
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
