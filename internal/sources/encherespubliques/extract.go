package encherespubliques

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/adjudex/adjudex/internal/parse"
	"github.com/adjudex/adjudex/pkg/auctions"
)

var (
	photoPathRe  = regexp.MustCompile(`(?i)/static/lot/photo/([A-Za-z0-9]+\.(?:jpg|jpeg|png|webp))`)
	photoFileRe  = regexp.MustCompile(`(?i)"file"\s*:\s*"([A-Za-z0-9]+\.(?:jpg|jpeg|png|webp))"`)
	photoFullRe  = regexp.MustCompile(`(?i)"(https?://[^"]+/(?:photo|image|img)/[^"]+\.(?:jpg|jpeg|png|webp))"`)
	nextImageRe  = regexp.MustCompile(`url=([^&]+)`)
	docInlineRe  = regexp.MustCompile(`"file"\s*:\s*"([^"]+\.pdf)"\s*,\s*"nom"\s*:\s*"([^"]+)"`)
	visitDateRe  = regexp.MustCompile(`(\d{1,2}[/\-\.]\d{1,2}[/\-\.]\d{2,4})`)
	visitLabelRe = regexp.MustCompile(`(?i)visites?\s*(?:le|du|:)?\s*(\d{1,2}[/\-\.]\d{1,2}[/\-\.]\d{2,4})`)
)

// photoBlocklist filters icons and placeholders out of image collection.
var photoBlocklist = []string{"placeholder", "icon", "logo", "avatar", "pixel"}

// minutesKeywords mark the document that holds the procès-verbal or cahier
// des conditions de vente.
var minutesKeywords = []string{"procès", "pv", "proces-verbal", "cahier"}

// collectPhotos gathers photo URLs from the Apollo cache, inline scripts and
// the rendered gallery markup. Record.Normalize applies the cap afterwards.
func collectPhotos(doc *goquery.Document, cache apolloCache, rec *auctions.Record, base string) {
	add := func(u string) {
		u = parse.NormalizeURL(u, base)
		if u == "" {
			return
		}
		lower := strings.ToLower(u)
		for _, blocked := range photoBlocklist {
			if strings.Contains(lower, blocked) {
				return
			}
		}
		rec.Photos = append(rec.Photos, u)
	}

	// LotPhoto cache entries reference files under /static/lot/photo/
	for key, value := range cache {
		if !strings.HasPrefix(key, "LotPhoto:") {
			continue
		}
		file := str(value, "file")
		if file == "" {
			file = str(value, "url")
		}
		if file != "" {
			add("/static/lot/photo/" + file)
		}
	}

	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		text := s.Text()
		for _, m := range photoPathRe.FindAllStringSubmatch(text, -1) {
			add("/static/lot/photo/" + m[1])
		}
		for _, m := range photoFileRe.FindAllStringSubmatch(text, -1) {
			add("/static/lot/photo/" + m[1])
		}
		for _, m := range photoFullRe.FindAllStringSubmatch(text, -1) {
			add(m[1])
		}
	})

	doc.Find(".gallery img, .photos img, .carousel img, .swiper-slide img, .lot-photos img, [class*='photo'] img").
		Each(func(_ int, img *goquery.Selection) {
			src, ok := img.Attr("src")
			if !ok || src == "" {
				src, _ = img.Attr("data-src")
			}
			if src == "" {
				return
			}
			add(unwrapNextImage(src))
		})
}

// unwrapNextImage resolves Next.js image-optimizer URLs to the origin image.
func unwrapNextImage(src string) string {
	if !strings.Contains(src, "/_next/image") {
		return src
	}
	m := nextImageRe.FindStringSubmatch(src)
	if m == nil {
		return src
	}
	if decoded, err := url.QueryUnescape(m[1]); err == nil {
		return decoded
	}
	return src
}

// collectVisitDates complements the Apollo visit dates with dates written in
// the page text and dedicated visit sections.
func collectVisitDates(doc *goquery.Document, rec *auctions.Record) {
	for _, m := range visitLabelRe.FindAllStringSubmatch(doc.Text(), -1) {
		if d := parse.FrenchDate(m[1]); d != "" {
			rec.VisitDates = append(rec.VisitDates, d)
		}
	}

	doc.Find(".visite, .dates-visite, [class*='visite']").Each(func(_ int, s *goquery.Selection) {
		for _, m := range visitDateRe.FindAllStringSubmatch(s.Text(), -1) {
			if d := parse.FrenchDate(m[1]); d != "" {
				rec.VisitDates = append(rec.VisitDates, d)
			}
		}
	})
}

// collectDocuments gathers documents from the Apollo cache, inline scripts
// and PDF anchors. The minutes URL is set from the first matching document.
func collectDocuments(doc *goquery.Document, cache apolloCache, rec *auctions.Record, base string) {
	add := func(docType, name, u string) {
		u = parse.NormalizeURL(u, base)
		if u == "" {
			return
		}
		if name == "" {
			name = "Document"
		}
		if docType == "" {
			docType = name
		}
		rec.Documents = append(rec.Documents, auctions.Document{Type: docType, Name: name, URL: u})
		if rec.MinutesURL == "" && isMinutes(name) {
			rec.MinutesURL = u
		}
	}

	for key, value := range cache {
		if !strings.HasPrefix(key, "LotDocument:") {
			continue
		}
		file := str(value, "file")
		if file == "" {
			continue
		}
		name := str(value, "nom")
		add(name, name, "/static/lot/document/"+file)
	}

	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		for _, m := range docInlineRe.FindAllStringSubmatch(s.Text(), -1) {
			add(m[2], m[2], "/static/lot/document/"+m[1])
		}
	})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !strings.Contains(strings.ToLower(href), ".pdf") {
			return
		}
		name := strings.TrimSpace(s.Text())
		add(name, name, href)
	})
}

func isMinutes(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range minutesKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// collectLawyer extracts the pursuing lawyer's contact details from the
// Apollo cache, then the page text.
func collectLawyer(doc *goquery.Document, cache apolloCache, rec *auctions.Record) {
	for key, value := range cache {
		lowerKey := strings.ToLower(key)
		if strings.Contains(lowerKey, "avocat") || strings.Contains(lowerKey, "organisateur") {
			if rec.LawyerName == "" {
				rec.LawyerName = firstOf(value, "nom", "name")
			}
			if rec.LawyerEmail == "" {
				rec.LawyerEmail = str(value, "email")
			}
			if rec.LawyerPhone == "" {
				rec.LawyerPhone = firstOf(value, "telephone", "phone")
			}
		}
	}

	text := doc.Text()
	if rec.LawyerName == "" {
		if m := lawyerNameRe.FindStringSubmatch(text); m != nil {
			rec.LawyerName = m[1]
		}
	}
	if rec.LawyerEmail == "" {
		rec.LawyerEmail = parse.Email(text)
	}
	if rec.LawyerPhone == "" {
		rec.LawyerPhone = parse.Phone(text)
	}
}

func firstOf(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if v := str(m, key); v != "" {
			return v
		}
	}
	return ""
}
