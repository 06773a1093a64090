// Package licitor scrapes licitor.com, the judicial auction aggregator.
// Licitor organizes listings by tribunal rather than by paginated search
// results: the home page links one page per tribunal, each carrying that
// tribunal's full upcoming calendar. The adapter therefore yields all
// detail URLs on logical page 1 and reports later pages empty.
package licitor

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/agentstation/utc"

	"github.com/adjudex/adjudex/internal/fetch"
	"github.com/adjudex/adjudex/internal/parse"
	"github.com/adjudex/adjudex/internal/sources"
	"github.com/adjudex/adjudex/pkg/auctions"
	"github.com/adjudex/adjudex/pkg/logging"
)

// SourceName identifies this source in records and run history.
const SourceName = "licitor"

const (
	defaultBaseURL = "https://www.licitor.com"

	// Licitor throttles aggressively; stay slower than the other sources.
	defaultMinInterval = time.Second
)

func init() {
	sources.Register(SourceName, func(cfg sources.Config) sources.Adapter {
		return New(cfg)
	})
}

// tribunalDepartments maps tribunal URL slugs to the department they sit in,
// used to honor the department filter without fetching every tribunal page.
var tribunalDepartments = map[string]string{
	"tj-paris":            "75",
	"tj-meaux":            "77",
	"tj-versailles":       "78",
	"tj-evry":             "91",
	"tj-nanterre":         "92",
	"tj-bobigny":          "93",
	"tj-creteil":          "94",
	"tj-pontoise":         "95",
	"tj-marseille":        "13",
	"tj-aix-en-provence":  "13",
	"tj-toulon":           "83",
	"tj-draguignan":       "83",
	"tj-nice":             "06",
	"tj-grasse":           "06",
	"tj-avignon":          "84",
	"tj-lyon":             "69",
	"tj-lille":            "59",
	"tj-bordeaux":         "33",
	"tj-toulouse":         "31",
	"tj-nantes":           "44",
	"tj-rennes":           "35",
	"tj-strasbourg":       "67",
	"tj-montpellier":      "34",
}

var (
	tribunalHrefRe = regexp.MustCompile(`/ventes-judiciaires-immobilieres/(tj-[a-z\-]+)/`)
	sourceIDRe     = regexp.MustCompile(`/(\d+)(?:\?|$|\.html)`)
	roomsRe        = regexp.MustCompile(`(?i)(\d+)\s*(?:pièces?|p\.|chambres?)`)
	cityTitleRe    = regexp.MustCompile(`à\s+([A-ZÀ-Ü][A-ZÀ-Ü\s\-]+)`)
	misePrixRe     = regexp.MustCompile(`(?i)mise\s+[àa]\s+prix\s*:?\s*([\d\s,\.]+)\s*€?`)
	marketValueRe  = regexp.MustCompile(`(?i)valeur\s+(?:v[ée]nale|march[ée]|estimée?)\s*:?\s*([\d\s,\.]+)\s*€?`)
	saleDateRe     = regexp.MustCompile(`(?i)(?:vente|adjudication|audience)\s+(?:le\s+)?(\d{1,2}[/\-\.]\d{1,2}[/\-\.]\d{2,4})`)
	saleTimeRe     = regexp.MustCompile(`à\s+(\d{1,2})[hH:](\d{0,2})`)
	tribunalRe     = regexp.MustCompile(`(?i)tribunal\s+judiciaire\s+(?:de\s+)?([A-ZÀ-Ü][a-zà-ü\-]+(?:\s+[A-ZÀ-Ü][a-zà-ü\-]+)?)`)
	caseNumberRe   = regexp.MustCompile(`(?i)(?:RG|N°|numéro)\s*:?\s*(\d{2}[/\-]\d+)`)
	lawyerNameRe   = regexp.MustCompile(`(?:Maître|Maitre|Me\.?)\s+([A-ZÀ-Ü][a-zà-ü\-]+(?:\s+[A-ZÀ-Ü][a-zà-ü\-]+)?)`)
	lawFirmRe      = regexp.MustCompile(`(?:AARPI|SCP|SELARL)\s+([A-Za-zÀ-ü\s\-]+?)(?:,|\s+Avocat)`)
	bgImageRe      = regexp.MustCompile(`url\(['"]?([^'"\)]+)['"]?\)`)
	visitDateRe    = regexp.MustCompile(`(\d{1,2}[/\-\.]\d{1,2}[/\-\.]\d{2,4})`)
	visitLabelRe   = regexp.MustCompile(`(?i)visites?\s*(?:sur\s+place\s+)?(?:le|du|:)?\s*(\d{1,2}[/\-\.]\d{1,2}[/\-\.]\d{2,4})`)
)

// Adapter scrapes licitor.com tribunal calendars.
type Adapter struct {
	base        string
	client      *fetch.Client
	departments []string
}

// New builds the adapter from its configuration.
func New(cfg sources.Config) *Adapter {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	if cfg.MinInterval == 0 {
		cfg.MinInterval = defaultMinInterval
	}
	return &Adapter{
		base:        strings.TrimRight(base, "/"),
		client:      sources.NewClient(cfg),
		departments: cfg.Departments,
	}
}

// Name implements sources.Adapter.
func (a *Adapter) Name() string { return SourceName }

// ListingPage walks the home page's tribunal links, fetches each matching
// tribunal calendar, and returns every announcement URL found. All results
// come back on page 1.
func (a *Adapter) ListingPage(ctx context.Context, page int) ([]string, error) {
	if page > 1 {
		return nil, nil
	}

	home, err := a.client.Page(ctx, a.base+"/")
	if err != nil {
		return nil, err
	}

	var tribunals []string
	seenTribunal := map[string]struct{}{}
	home.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		m := tribunalHrefRe.FindStringSubmatch(href)
		if m == nil {
			return
		}
		if !a.wantTribunal(m[1]) {
			return
		}
		full := parse.NormalizeURL(href, a.base)
		if _, dup := seenTribunal[full]; dup {
			return
		}
		seenTribunal[full] = struct{}{}
		tribunals = append(tribunals, full)
	})

	logging.Ctx(ctx).Debug().Int("tribunals", len(tribunals)).Msg("tribunal pages found")

	var urls []string
	seen := map[string]struct{}{}
	for _, tribunalURL := range tribunals {
		doc, err := a.client.Page(ctx, tribunalURL)
		if err != nil {
			// one broken tribunal page must not sink the whole source
			logging.Ctx(ctx).Warn().Err(err).Str("tribunal", tribunalURL).Msg("tribunal page failed")
			continue
		}

		doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			href, _ := s.Attr("href")
			if !strings.Contains(href, "/annonce/") || !strings.HasSuffix(href, ".html") {
				return
			}
			full := parse.NormalizeURL(href, a.base)
			if _, dup := seen[full]; dup {
				return
			}
			seen[full] = struct{}{}
			urls = append(urls, full)
		})
	}

	return urls, nil
}

// wantTribunal applies the department filter to a tribunal slug. Unknown
// tribunals pass only when no filter is set.
func (a *Adapter) wantTribunal(slug string) bool {
	if len(a.departments) == 0 {
		return true
	}
	dept, known := tribunalDepartments[slug]
	if !known {
		return false
	}
	for _, d := range a.departments {
		if d == dept {
			return true
		}
	}
	return false
}

// Detail scrapes one announcement page.
func (a *Adapter) Detail(ctx context.Context, url string) (*auctions.Record, error) {
	doc, err := a.client.Page(ctx, url)
	if err != nil {
		return nil, err
	}

	rec := &auctions.Record{
		Source:    SourceName,
		URL:       url,
		SourceID:  extractSourceID(url),
		ScrapedAt: utc.Now(),
	}

	text := doc.Text()

	rec.Description = strings.TrimSpace(doc.Find("h1, .titre-annonce, .lot-title").First().Text())

	a.parseLocation(doc, text, rec)
	a.parseProperty(doc, text, rec)
	a.parsePricing(text, rec)
	a.parseDates(doc, text, rec)
	a.parseLegal(doc, text, rec)
	a.parsePhotos(doc, rec)
	a.parseDocuments(doc, rec)
	a.parseVisitDates(doc, text, rec)

	rec.Normalize()
	return rec, nil
}

func extractSourceID(url string) string {
	if m := sourceIDRe.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	return ""
}

func (a *Adapter) parseLocation(doc *goquery.Document, text string, rec *auctions.Record) {
	rec.Address = strings.TrimSpace(doc.Find(".adresse, .localisation, .address, [itemprop='address']").First().Text())

	rec.PostalCode = parse.PostalCode(text)
	rec.Department = parse.Department(rec.PostalCode)

	rec.City = strings.TrimSpace(doc.Find(".ville, .city, [itemprop='addressLocality']").First().Text())
	if rec.City == "" && rec.Description != "" {
		// title pattern: "Appartement à MARSEILLE (13)"
		if m := cityTitleRe.FindStringSubmatch(rec.Description); m != nil {
			rec.City = titleCase(strings.TrimSpace(m[1]))
		}
	}
}

func (a *Adapter) parseProperty(doc *goquery.Document, text string, rec *auctions.Record) {
	rec.PropertyType = parse.PropertyType(text)
	rec.Surface = parse.Surface(text)

	if m := roomsRe.FindStringSubmatch(text); m != nil {
		if n := atoi(m[1]); n > 0 {
			rec.Rooms = &n
		}
	}

	desc := doc.Find(".description, .detail, .lot-description, [itemprop='description']").First()
	if desc.Length() > 0 {
		rec.DescriptionDetailed = strings.TrimSpace(desc.Text())
	}
}

func (a *Adapter) parsePricing(text string, rec *auctions.Record) {
	if m := misePrixRe.FindStringSubmatch(text); m != nil {
		rec.StartingPrice = parse.Price(m[1])
	}
	// the page states a whole-property estimate; derive the per-sqm value
	if m := marketValueRe.FindStringSubmatch(text); m != nil {
		if p := parse.Price(m[1]); p != nil && rec.Surface != nil && *rec.Surface > 0 {
			perSqm := *p / *rec.Surface
			rec.MarketPricePerSqm = &perSqm
		}
	}
}

func (a *Adapter) parseDates(doc *goquery.Document, text string, rec *auctions.Record) {
	if m := saleDateRe.FindStringSubmatch(text); m != nil {
		rec.SaleDate = parse.FrenchDate(m[1])
	}
	if rec.SaleDate == "" {
		if elem := doc.Find(".date-vente, .date-adjudication, [itemprop='startDate']").First(); elem.Length() > 0 {
			rec.SaleDate = parse.FrenchDate(elem.Text())
		}
	}

	if m := saleTimeRe.FindStringSubmatch(text); m != nil {
		minute := m[2]
		if minute == "" {
			minute = "00"
		} else if len(minute) == 1 {
			minute = "0" + minute
		}
		rec.SaleTime = m[1] + ":" + minute
	}
}

func (a *Adapter) parseLegal(doc *goquery.Document, text string, rec *auctions.Record) {
	if m := tribunalRe.FindStringSubmatch(text); m != nil {
		rec.Court = "Tribunal Judiciaire de " + m[1]
	}
	if m := caseNumberRe.FindStringSubmatch(text); m != nil {
		rec.CaseNumber = m[1]
	}

	scope := text
	if section := doc.Find(".avocat, .lawyer, .contact-avocat, .coordonnees-avocat, [class*='avocat']").First(); section.Length() > 0 {
		scope = section.Text()
	}

	if m := lawyerNameRe.FindStringSubmatch(scope); m != nil {
		rec.LawyerName = m[1]
	} else if m := lawFirmRe.FindStringSubmatch(scope); m != nil {
		rec.LawyerName = strings.TrimSpace(m[1])
	}

	rec.LawyerEmail = parse.Email(scope)
	if rec.LawyerEmail == "" {
		rec.LawyerEmail = parse.Email(text)
	}
	rec.LawyerPhone = parse.Phone(scope)
	if rec.LawyerPhone == "" {
		rec.LawyerPhone = parse.Phone(text)
	}
}

func (a *Adapter) parsePhotos(doc *goquery.Document, rec *auctions.Record) {
	add := func(src string) {
		u := parse.NormalizeURL(src, a.base)
		if u == "" || strings.Contains(strings.ToLower(u), "placeholder") {
			return
		}
		rec.Photos = append(rec.Photos, u)
	}

	doc.Find(".gallery img, .photos img, .carousel img, .slider img, .lot-photos img, [class*='photo'] img").
		Each(func(_ int, img *goquery.Selection) {
			src, ok := img.Attr("src")
			if !ok || src == "" {
				src, _ = img.Attr("data-src")
			}
			if src != "" {
				add(src)
			}
		})

	doc.Find("[style*='background-image']").Each(func(_ int, s *goquery.Selection) {
		style, _ := s.Attr("style")
		if m := bgImageRe.FindStringSubmatch(style); m != nil {
			add(m[1])
		}
	})
}

func (a *Adapter) parseDocuments(doc *goquery.Document, rec *auctions.Record) {
	doc.Find("a[href$='.pdf'], a[href*='document'], a[href*='fichier']").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" {
			return
		}
		u := parse.NormalizeURL(href, a.base)
		name := strings.TrimSpace(s.Text())
		if name == "" {
			name = "Document"
		}
		rec.Documents = append(rec.Documents, auctions.Document{Type: name, Name: name, URL: u})

		lower := strings.ToLower(name)
		if rec.MinutesURL == "" &&
			(strings.Contains(lower, "procès") || strings.Contains(lower, "pv") || strings.Contains(lower, "cahier")) {
			rec.MinutesURL = u
		}
	})
}

func (a *Adapter) parseVisitDates(doc *goquery.Document, text string, rec *auctions.Record) {
	if section := doc.Find(".visites, .dates-visite, [class*='visite'], .visit").First(); section.Length() > 0 {
		for _, m := range visitDateRe.FindAllStringSubmatch(section.Text(), -1) {
			if d := parse.FrenchDate(m[1]); d != "" {
				rec.VisitDates = append(rec.VisitDates, d)
			}
		}
	}

	for _, m := range visitLabelRe.FindAllStringSubmatch(text, -1) {
		if d := parse.FrenchDate(m[1]); d != "" {
			rec.VisitDates = append(rec.VisitDates, d)
		}
	}
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
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
