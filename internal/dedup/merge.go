package dedup

import (
	"slices"

	"github.com/agentstation/utc"

	"github.com/adjudex/adjudex/pkg/auctions"
)

// The merge policy is a table of field accessors rather than a run of
// ad-hoc assignments, so each rule is auditable on its own:
//   - scalar fields: first non-empty value wins
//   - descriptionDetailed: longer value wins, ties keep the first
//   - visitDates: set union, sorted ascending
//   - photos: union in first-seen order, capped at auctions.MaxPhotos
//   - documents: union by URL, first document per URL wins
//   - source: the first record's source; every contributor is kept in
//     contributingSources

// stringFields are the scalar strings merged under first-non-empty-wins.
var stringFields = []func(*auctions.Record) *string{
	func(r *auctions.Record) *string { return &r.SourceID },
	func(r *auctions.Record) *string { return &r.URL },
	func(r *auctions.Record) *string { return &r.Address },
	func(r *auctions.Record) *string { return &r.PostalCode },
	func(r *auctions.Record) *string { return &r.City },
	func(r *auctions.Record) *string { return &r.Department },
	func(r *auctions.Record) *string { return &r.PropertyType },
	func(r *auctions.Record) *string { return &r.Description },
	func(r *auctions.Record) *string { return &r.SaleDate },
	func(r *auctions.Record) *string { return &r.SaleTime },
	func(r *auctions.Record) *string { return &r.Court },
	func(r *auctions.Record) *string { return &r.CaseNumber },
	func(r *auctions.Record) *string { return &r.LawyerName },
	func(r *auctions.Record) *string { return &r.LawyerEmail },
	func(r *auctions.Record) *string { return &r.LawyerPhone },
	func(r *auctions.Record) *string { return &r.MinutesURL },
}

// floatFields are the optional numerics merged under first-non-nil-wins.
var floatFields = []func(*auctions.Record) **float64{
	func(r *auctions.Record) **float64 { return &r.Latitude },
	func(r *auctions.Record) **float64 { return &r.Longitude },
	func(r *auctions.Record) **float64 { return &r.Surface },
	func(r *auctions.Record) **float64 { return &r.StartingPrice },
	func(r *auctions.Record) **float64 { return &r.FinalPrice },
	func(r *auctions.Record) **float64 { return &r.MarketPricePerSqm },
}

// Merge folds a group of records describing the same auction into one. The
// first record is primary: its source labels the result and breaks scalar
// ties. Inputs are never mutated; scrapedAt is set to merge time.
func Merge(group []*auctions.Record) *auctions.Record {
	merged := cloneRecord(group[0])
	for _, r := range group[1:] {
		mergeInto(merged, r)
	}
	merged.ScrapedAt = utc.Now()
	merged.Normalize()
	return merged
}

// mergeInto applies the policy table to fold src into dst.
func mergeInto(dst, src *auctions.Record) {
	for _, field := range stringFields {
		d, s := field(dst), field(src)
		if *d == "" && *s != "" {
			*d = *s
		}
	}
	for _, field := range floatFields {
		d, s := field(dst), field(src)
		if *d == nil && *s != nil {
			v := **s
			*d = &v
		}
	}
	if dst.Rooms == nil && src.Rooms != nil {
		v := *src.Rooms
		dst.Rooms = &v
	}

	if len(src.DescriptionDetailed) > len(dst.DescriptionDetailed) {
		dst.DescriptionDetailed = src.DescriptionDetailed
	}

	dst.VisitDates = append(dst.VisitDates, src.VisitDates...)
	dst.Photos = append(dst.Photos, src.Photos...)
	dst.Documents = append(dst.Documents, src.Documents...)

	dst.ContributingSources = append(dst.ContributingSources, src.Source)
	dst.ContributingSources = append(dst.ContributingSources, src.ContributingSources...)
}

// cloneRecord copies a record so merging never mutates a source adapter's
// output. Pointer fields are treated as immutable and shared.
func cloneRecord(r *auctions.Record) *auctions.Record {
	c := *r
	c.VisitDates = slices.Clone(r.VisitDates)
	c.Photos = slices.Clone(r.Photos)
	c.Documents = slices.Clone(r.Documents)
	c.ContributingSources = slices.Clone(r.ContributingSources)
	return &c
}
