package agorastore

import (
	"strconv"

	"github.com/agentstation/utc"

	"github.com/adjudex/adjudex/internal/parse"
	"github.com/adjudex/adjudex/pkg/auctions"
)

// lotDetail is the API's lot payload. The API mixes French and English field
// names depending on the endpoint version, and renders numbers sometimes as
// strings, so loosely-typed fields are coerced after decoding.
type lotDetail struct {
	ID         any    `json:"id"`
	Adresse    string `json:"adresse"`
	Address    string `json:"address"`
	CodePostal string `json:"code_postal"`
	Zipcode    string `json:"zipcode"`
	Ville      string `json:"ville"`
	City       string `json:"city"`

	Latitude  any `json:"latitude"`
	Longitude any `json:"longitude"`

	Titre       string `json:"titre"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Category    string `json:"category"`
	Surface     any    `json:"surface"`
	NbPieces    any    `json:"nb_pieces"`
	Rooms       any    `json:"rooms"`

	PrixDepart    any `json:"prix_depart"`
	StartingPrice any `json:"starting_price"`
	PrixActuel    any `json:"prix_actuel"`
	CurrentPrice  any `json:"current_price"`

	DateFin  string `json:"date_fin"`
	HeureFin string `json:"heure_fin"`

	Visites    []any `json:"visites"`
	VisitDates []any `json:"visit_dates"`
	Photos     []any `json:"photos"`
	Images     []any `json:"images"`

	Documents []lotDocument `json:"documents"`
	Vendeur   *lotSeller    `json:"vendeur"`
	Seller    *lotSeller    `json:"seller"`
}

type lotDocument struct {
	Type string `json:"type"`
	Nom  string `json:"nom"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

type lotSeller struct {
	Nom  string `json:"nom"`
	Name string `json:"name"`
}

// fromAPI maps a lot payload onto a Record.
func (a *Adapter) fromAPI(lot *lotDetail, url string) *auctions.Record {
	rec := &auctions.Record{
		Source:    SourceName,
		URL:       url,
		SourceID:  anyID(lot.ID),
		ScrapedAt: utc.Now(),
	}

	rec.Address = first(lot.Adresse, lot.Address)
	rec.PostalCode = first(lot.CodePostal, lot.Zipcode)
	rec.City = first(lot.Ville, lot.City)
	rec.Department = parse.Department(rec.PostalCode)

	rec.Latitude = asFloat(lot.Latitude)
	rec.Longitude = asFloat(lot.Longitude)

	rec.Description = first(lot.Titre, lot.Title)
	rec.DescriptionDetailed = lot.Description
	rec.PropertyType = first(lot.Type, lot.Category)
	rec.Surface = asFloat(lot.Surface)
	if n := asInt(lot.NbPieces); n == nil {
		rec.Rooms = asInt(lot.Rooms)
	} else {
		rec.Rooms = n
	}

	rec.StartingPrice = asFloat(lot.PrixDepart)
	if rec.StartingPrice == nil {
		rec.StartingPrice = asFloat(lot.StartingPrice)
	}
	rec.FinalPrice = asFloat(lot.PrixActuel)
	if rec.FinalPrice == nil {
		rec.FinalPrice = asFloat(lot.CurrentPrice)
	}

	if lot.DateFin != "" {
		rec.SaleDate = parse.FrenchDate(lot.DateFin)
	}
	if lot.HeureFin != "" {
		rec.SaleTime = parse.Time(lot.HeureFin)
	}

	visites := lot.Visites
	if len(visites) == 0 {
		visites = lot.VisitDates
	}
	for _, v := range visites {
		switch t := v.(type) {
		case string:
			if d := parse.FrenchDate(t); d != "" {
				rec.VisitDates = append(rec.VisitDates, d)
			}
		case map[string]any:
			if date, ok := t["date"].(string); ok {
				if d := parse.FrenchDate(date); d != "" {
					rec.VisitDates = append(rec.VisitDates, d)
				}
			}
		}
	}

	photos := lot.Photos
	if len(photos) == 0 {
		photos = lot.Images
	}
	for _, p := range photos {
		switch t := p.(type) {
		case string:
			rec.Photos = append(rec.Photos, parse.NormalizeURL(t, a.base))
		case map[string]any:
			if u, ok := t["url"].(string); ok && u != "" {
				rec.Photos = append(rec.Photos, parse.NormalizeURL(u, a.base))
			}
		}
	}

	for _, doc := range lot.Documents {
		name := first(doc.Nom, doc.Name, "Document")
		docType := first(doc.Type, name)
		rec.Documents = append(rec.Documents, auctions.Document{
			Type: docType,
			Name: name,
			URL:  parse.NormalizeURL(doc.URL, a.base),
		})
	}

	// public-sector sales carry the selling entity where judicial listings
	// carry the tribunal
	seller := lot.Vendeur
	if seller == nil {
		seller = lot.Seller
	}
	if seller != nil {
		rec.Court = first(seller.Nom, seller.Name)
	}

	rec.Normalize()
	return rec
}

// first returns the first non-empty string.
func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// asFloat coerces a JSON number-or-string field.
func asFloat(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return &f
		}
	}
	return nil
}

// asInt coerces a JSON number-or-string field to int.
func asInt(v any) *int {
	f := asFloat(v)
	if f == nil {
		return nil
	}
	n := int(*f)
	return &n
}
