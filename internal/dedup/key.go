// Package dedup collapses auction records that describe the same real-world
// sale. Grouping derives an identity key per record with progressively
// weaker fallbacks as fields go missing; merging folds each group into one
// record under a declarative per-field policy.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/adjudex/adjudex/pkg/auctions"
	"github.com/adjudex/adjudex/pkg/logging"
)

// GroupKey derives the key under which records of one run are grouped.
// Unlike Record.ComputeIdentityHash the content key leaves the source out,
// so the same auction scraped by two sources lands in the same group.
// Fallbacks, in order: listing URL, then description plus starting price.
func GroupKey(r *auctions.Record) string {
	if k := contentKey(r); k != "" {
		return k
	}
	if r.URL != "" {
		return "url:" + r.URL
	}
	return "desc:" + strings.ToLower(strings.TrimSpace(r.Description)) + ":" + priceKey(r.StartingPrice)
}

// contentKey hashes the address, postal code, starting price and sale date.
// It requires an address: without one the weaker fields are too ambiguous
// to identify a sale on their own.
func contentKey(r *auctions.Record) string {
	addr := auctions.NormalizeAddress(r.Address)
	if addr == "" {
		return ""
	}
	payload := strings.Join([]string{
		addr,
		strings.TrimSpace(r.PostalCode),
		priceKey(r.StartingPrice),
		strings.TrimSpace(r.SaleDate),
	}, "|")
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

func priceKey(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', 2, 64)
}

// Deduplicate groups the records of one run across all sources and merges
// every group of two or more. Singleton groups pass through untouched.
// Output order follows the first appearance of each group.
func Deduplicate(ctx context.Context, records []*auctions.Record) []*auctions.Record {
	if len(records) == 0 {
		return nil
	}

	groups := make(map[string][]*auctions.Record)
	order := make([]string, 0, len(records))
	for _, r := range records {
		key := GroupKey(r)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], r)
	}

	out := make([]*auctions.Record, 0, len(order))
	for _, key := range order {
		group := groups[key]
		if len(group) == 1 {
			out = append(out, group[0])
			continue
		}
		out = append(out, Merge(group))
	}

	logging.Ctx(ctx).Debug().
		Int("records", len(records)).
		Int("after_dedup", len(out)).
		Msg("deduplicated run records")
	return out
}
