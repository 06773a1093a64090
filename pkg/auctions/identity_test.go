package auctions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func f64(v float64) *float64 { return &v }

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "12 Rue de la Paix", "12 rue de la paix"},
		{"strips accents", "3 Allée des Érables, Châteauroux", "3 allee des erables, chateauroux"},
		{"collapses whitespace", "  5   avenue \t Foch ", "5 avenue foch"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeAddress(tt.in))
		})
	}
}

func TestComputeIdentityHashStable(t *testing.T) {
	a := &Record{
		Source:        "licitor",
		Address:       "12 Rue de la Paix",
		PostalCode:    "75002",
		StartingPrice: f64(150000),
		SaleDate:      "2026-03-12",
	}
	b := &Record{
		Source:        "licitor",
		Address:       " 12  rue de la PAIX ",
		PostalCode:    "75002",
		StartingPrice: f64(150000),
		SaleDate:      "2026-03-12",
	}

	assert.Equal(t, a.ComputeIdentityHash(), b.ComputeIdentityHash(),
		"address casing and whitespace must not change identity")
	assert.Len(t, a.ComputeIdentityHash(), 64)
}

func TestComputeIdentityHashDiscriminates(t *testing.T) {
	base := Record{
		Source:        "licitor",
		Address:       "12 rue de la paix",
		PostalCode:    "75002",
		StartingPrice: f64(150000),
		SaleDate:      "2026-03-12",
	}

	otherPrice := base
	otherPrice.StartingPrice = f64(155000)
	assert.NotEqual(t, base.ComputeIdentityHash(), otherPrice.ComputeIdentityHash())

	otherSource := base
	otherSource.Source = "agorastore"
	assert.NotEqual(t, base.ComputeIdentityHash(), otherSource.ComputeIdentityHash())

	otherDate := base
	otherDate.SaleDate = "2026-03-19"
	assert.NotEqual(t, base.ComputeIdentityHash(), otherDate.ComputeIdentityHash())
}

func TestComputeIdentityHashEmptyParts(t *testing.T) {
	a := &Record{Source: "licitor"}
	b := &Record{Source: "licitor", Address: ""}

	assert.Equal(t, a.ComputeIdentityHash(), b.ComputeIdentityHash())

	// nil price and zero price are different listings
	c := &Record{Source: "licitor", StartingPrice: f64(0)}
	assert.NotEqual(t, a.ComputeIdentityHash(), c.ComputeIdentityHash())
}
