package encherespubliques

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/adjudex/adjudex/internal/parse"
	"github.com/adjudex/adjudex/pkg/auctions"
)

// apolloCache is the flattened GraphQL cache embedded by the site's Next.js
// build under __NEXT_DATA__.props.pageProps.apolloState.data. Entries are
// keyed "Lot:123", "Adresse:xyz", "LotVisite:xyz", "LotDocument:xyz" and
// cross-reference each other through {"__ref": "key"} objects.
type apolloCache map[string]map[string]any

type nextData struct {
	Props struct {
		PageProps struct {
			ApolloState struct {
				Data apolloCache `json:"data"`
			} `json:"apolloState"`
		} `json:"pageProps"`
	} `json:"props"`
}

// extractApolloCache pulls the Apollo cache out of the __NEXT_DATA__ script,
// or returns nil when the page has none.
func extractApolloCache(doc *goquery.Document) apolloCache {
	script := doc.Find("script#__NEXT_DATA__").First()
	if script.Length() == 0 {
		return nil
	}

	var nd nextData
	if err := json.Unmarshal([]byte(script.Text()), &nd); err != nil {
		return nil
	}
	if len(nd.Props.PageProps.ApolloState.Data) == 0 {
		return nil
	}
	return nd.Props.PageProps.ApolloState.Data
}

// fill populates the record from the cache's Lot entry and the address it
// references.
func (c apolloCache) fill(rec *auctions.Record, base string) {
	lot := c.lot(rec.SourceID)
	if lot == nil {
		return
	}

	if nom := str(lot, "nom"); nom != "" {
		// strip prefixes like "EN LIGNE∙"
		if i := strings.Index(nom, "∙"); i >= 0 {
			nom = strings.TrimSpace(nom[i+len("∙"):])
		}
		rec.Description = nom
	}

	rec.DescriptionDetailed = str(lot, "description")

	if v, ok := num(lot, "mise_a_prix"); ok {
		rec.StartingPrice = &v
	} else if v, ok := num(lot, "prix_plancher"); ok {
		rec.StartingPrice = &v
	}

	rec.PropertyType = str(lot, "sous_categorie")

	// fermeture_date is a Unix timestamp for online sales
	if ts, ok := num(lot, "fermeture_date"); ok {
		end := time.Unix(int64(ts), 0).UTC()
		rec.SaleDate = end.Format("2006-01-02")
		rec.SaleTime = end.Format("15:04")
	}

	if v, ok := num(lot, "critere_surface_habitable"); ok {
		rec.Surface = &v
	}
	if v, ok := num(lot, "critere_nombre_de_pieces"); ok {
		n := int(v)
		rec.Rooms = &n
	}

	c.fillAddress(lot, rec)

	// photos listed directly on the lot
	if photos, ok := lot["photos"].([]any); ok {
		for _, p := range photos {
			if pm, ok := p.(map[string]any); ok {
				if src := str(pm, "src"); src != "" {
					rec.Photos = append(rec.Photos, parse.NormalizeURL(src, base))
				}
			}
		}
	}

	c.fillVisits(lot, rec)
}

// lot returns the Lot entry matching id, or any Lot entry when the id is
// unknown.
func (c apolloCache) lot(id string) map[string]any {
	if id != "" {
		if lot, ok := c["Lot:"+id]; ok {
			return lot
		}
	}
	for key, value := range c {
		if strings.HasPrefix(key, "Lot:") {
			return value
		}
	}
	return nil
}

// fillAddress resolves the lot's address reference. Coordinates come as
// [longitude, latitude].
func (c apolloCache) fillAddress(lot map[string]any, rec *auctions.Record) {
	ref := refOf(lot, "adresse_physique")
	if ref == "" {
		ref = refOf(lot, "adresse_defaut")
	}
	addr, ok := c[ref]
	if !ok {
		return
	}

	rec.City = str(addr, "ville")
	rec.Address = str(addr, "text")
	rec.Department = str(addr, "departement")

	if rec.Address != "" {
		if cp := parse.PostalCode(rec.Address); cp != "" {
			rec.PostalCode = cp
			if rec.Department == "" {
				rec.Department = parse.Department(cp)
			}
		}
	}

	if coords, ok := addr["coords"].([]any); ok && len(coords) == 2 {
		lon, lonOK := coords[0].(float64)
		lat, latOK := coords[1].(float64)
		if lonOK && latOK {
			rec.Longitude = &lon
			rec.Latitude = &lat
		}
	}
}

// fillVisits resolves the lot's LotVisite references; each carries a Unix
// start timestamp.
func (c apolloCache) fillVisits(lot map[string]any, rec *auctions.Record) {
	visites, ok := lot["visites"].([]any)
	if !ok {
		return
	}

	for _, v := range visites {
		var ref string
		switch t := v.(type) {
		case map[string]any:
			ref = str(t, "__ref")
		case string:
			if strings.HasPrefix(t, "LotVisite:") {
				ref = t
			}
		}

		visite, ok := c[ref]
		if !ok {
			continue
		}
		if start, ok := num(visite, "start"); ok {
			rec.VisitDates = append(rec.VisitDates,
				time.Unix(int64(start), 0).UTC().Format("2006-01-02"))
		}
	}
}

// refOf returns the __ref target of a nested reference field.
func refOf(m map[string]any, key string) string {
	nested, ok := m[key].(map[string]any)
	if !ok {
		return ""
	}
	return str(nested, "__ref")
}

// str reads a string field, tolerating absence.
func str(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

// num reads a numeric field; JSON numbers decode as float64 but some fields
// arrive as numeric strings.
func num(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case string:
		if p := parse.Price(v); p != nil {
			return *p, true
		}
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f, true
		}
	}
	return 0, false
}
