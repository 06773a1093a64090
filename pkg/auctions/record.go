// Package auctions defines the domain types of the adjudex pipeline: the
// judicial auction Record assembled by source adapters, the attached
// Document, and the RunRecord bookkeeping produced by coordinated runs.
// Optional numeric fields are pointers so that an absent price or surface is
// distinguishable from zero; optional strings are simply empty.
package auctions

import (
	"slices"
	"strings"

	"github.com/agentstation/utc"
)

// MaxPhotos caps the number of photo URLs kept per record, including after
// merging duplicate records from several sources.
const MaxPhotos = 30

// Document is a file attached to an auction listing (cahier des conditions
// de vente, diagnostics, plans...).
type Document struct {
	Type string `json:"type,omitempty"` // document category as labelled by the source
	Name string `json:"name,omitempty"` // display name
	URL  string `json:"url"`            // download URL, identity of the document
}

// Record is a single judicial real-estate auction listing, normalized across
// sources. It is the unit the deduplicator groups and merges and the
// persistence layer upserts.
type Record struct {
	// Identity
	Source       string `json:"source"`                 // origin source name (first contributor after a merge)
	SourceID     string `json:"source_id,omitempty"`    // listing identifier within the source, when one exists
	URL          string `json:"url"`                    // canonical listing URL
	IdentityHash string `json:"identity_hash,omitempty"`

	// Location
	Address    string   `json:"address,omitempty"`
	PostalCode string   `json:"postal_code,omitempty"`
	City       string   `json:"city,omitempty"`
	Department string   `json:"department,omitempty"` // two or three digit code, derived from postal code when absent
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`

	// Property
	PropertyType        string   `json:"property_type,omitempty"` // appartement, maison, terrain...
	Surface             *float64 `json:"surface,omitempty"`       // square meters
	Rooms               *int     `json:"rooms,omitempty"`
	Description         string   `json:"description,omitempty"`
	DescriptionDetailed string   `json:"description_detailed,omitempty"`

	// Sale
	StartingPrice     *float64 `json:"starting_price,omitempty"` // mise a prix, euros
	FinalPrice        *float64 `json:"final_price,omitempty"`    // adjudication price when the sale is past
	MarketPricePerSqm *float64 `json:"market_price_per_sqm,omitempty"`
	SaleDate          string   `json:"sale_date,omitempty"` // YYYY-MM-DD
	SaleTime          string   `json:"sale_time,omitempty"` // HH:MM
	Court             string   `json:"court,omitempty"`     // tribunal judiciaire handling the sale
	CaseNumber        string   `json:"case_number,omitempty"`
	VisitDates        []string `json:"visit_dates,omitempty"`

	// Lawyer handling the sale
	LawyerName  string `json:"lawyer_name,omitempty"`
	LawyerEmail string `json:"lawyer_email,omitempty"`
	LawyerPhone string `json:"lawyer_phone,omitempty"`

	// Attachments
	Photos     []string   `json:"photos,omitempty"`
	Documents  []Document `json:"documents,omitempty"`
	MinutesURL string     `json:"minutes_url,omitempty"` // proces-verbal / cahier des conditions URL

	// Provenance
	ContributingSources []string `json:"contributing_sources,omitempty"` // every source that fed this record, in first-seen order
	ScrapedAt           utc.Time `json:"scraped_at"`
}

// Normalize enforces the record invariants in place: visit dates become a
// sorted set, photos are deduplicated and capped at MaxPhotos, documents are
// unique by URL, contributing sources are unique in first-seen order and
// always include Source, and the identity hash is recomputed.
func (r *Record) Normalize() {
	r.VisitDates = sortedSet(r.VisitDates)
	r.Photos = uniquePhotos(r.Photos)
	r.Documents = uniqueDocuments(r.Documents)

	if r.Source != "" && !slices.Contains(r.ContributingSources, r.Source) {
		r.ContributingSources = append([]string{r.Source}, r.ContributingSources...)
	}
	r.ContributingSources = firstSeenSet(r.ContributingSources)

	r.IdentityHash = r.ComputeIdentityHash()
}

// HasCoordinates reports whether both latitude and longitude are set.
func (r *Record) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// sortedSet returns the unique non-empty values sorted ascending.
func sortedSet(in []string) []string {
	if len(in) == 0 {
		return in
	}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

// firstSeenSet returns the unique non-empty values preserving first-seen order.
func firstSeenSet(in []string) []string {
	if len(in) == 0 {
		return in
	}
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// uniquePhotos deduplicates preserving order and applies the MaxPhotos cap.
func uniquePhotos(in []string) []string {
	out := firstSeenSet(in)
	if len(out) > MaxPhotos {
		out = out[:MaxPhotos]
	}
	return out
}

// uniqueDocuments deduplicates by URL preserving order. The first document
// seen for a URL wins, matching the scalar merge rule.
func uniqueDocuments(in []Document) []Document {
	if len(in) == 0 {
		return in
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]Document, 0, len(in))
	for _, d := range in {
		if d.URL == "" {
			continue
		}
		if _, ok := seen[d.URL]; ok {
			continue
		}
		seen[d.URL] = struct{}{}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
