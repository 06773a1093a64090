package agorastore

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/agentstation/utc"

	"github.com/adjudex/adjudex/internal/parse"
	"github.com/adjudex/adjudex/pkg/auctions"
)

// detailFromHTML scrapes a lot page when the API is unavailable.
func (a *Adapter) detailFromHTML(ctx context.Context, url string) (*auctions.Record, error) {
	doc, err := a.client.Page(ctx, url)
	if err != nil {
		return nil, err
	}

	rec := &auctions.Record{
		Source:    SourceName,
		URL:       url,
		SourceID:  extractLotID(url),
		ScrapedAt: utc.Now(),
	}

	text := doc.Text()

	rec.Description = strings.TrimSpace(doc.Find("h1, .lot-title, .titre").First().Text())
	rec.Address = strings.TrimSpace(doc.Find(".adresse, .address, .location").First().Text())

	rec.PostalCode = parse.PostalCode(text)
	rec.Department = parse.Department(rec.PostalCode)

	rec.PropertyType = parse.PropertyType(text)
	rec.Surface = parse.Surface(text)

	if price := doc.Find(".prix, .price, .mise-a-prix").First(); price.Length() > 0 {
		rec.StartingPrice = parse.Price(price.Text())
	}

	if desc := doc.Find(".description, .lot-description").First(); desc.Length() > 0 {
		rec.DescriptionDetailed = strings.TrimSpace(desc.Text())
	}

	doc.Find(".gallery img, .photos img, .lot-images img").Each(func(_ int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if !ok || src == "" {
			src, _ = img.Attr("data-src")
		}
		if src != "" {
			rec.Photos = append(rec.Photos, parse.NormalizeURL(src, a.base))
		}
	})

	if section := doc.Find(".visites, .visit-dates, [class*='visite']").First(); section.Length() > 0 {
		for _, m := range visitDateRe.FindAllStringSubmatch(section.Text(), -1) {
			if d := parse.FrenchDate(m[1]); d != "" {
				rec.VisitDates = append(rec.VisitDates, d)
			}
		}
	}

	rec.Normalize()
	return rec, nil
}
