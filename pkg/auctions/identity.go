package auctions

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// hashPartEmpty stands in for an absent identity component so that field
// boundaries stay unambiguous.
const hashPartEmpty = "-"

// ComputeIdentityHash derives the stable identity of a listing from its
// source, normalized address, postal code, starting price and sale date.
// Two scrapes of the same listing produce the same hash even when casing,
// accents or whitespace differ in the address.
func (r *Record) ComputeIdentityHash() string {
	parts := []string{
		hashPart(r.Source),
		hashPart(NormalizeAddress(r.Address)),
		hashPart(r.PostalCode),
		hashPrice(r.StartingPrice),
		hashPart(r.SaleDate),
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// NormalizeAddress lowercases, strips accents, and collapses whitespace runs
// to single spaces. Used for identity hashing and dedup address keys.
func NormalizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if addr == "" {
		return ""
	}
	addr = stripAccents(addr)
	return strings.Join(strings.Fields(addr), " ")
}

// stripAccents removes combining marks after NFD decomposition, so that
// "Châteauroux" and "Chateauroux" hash the same.
func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// hashPart renders a component of the identity payload.
func hashPart(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return hashPartEmpty
	}
	return s
}

// hashPrice renders a price with exactly two decimals, or the empty marker.
func hashPrice(p *float64) string {
	if p == nil {
		return hashPartEmpty
	}
	return strconv.FormatFloat(*p, 'f', 2, 64)
}
