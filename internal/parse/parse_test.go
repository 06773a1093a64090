package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrice(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want float64
	}{
		{"plain", "150000", 150000},
		{"space separators", "150 000 €", 150000},
		{"nbsp separators", "150 000 €", 150000},
		{"label prefix", "Mise à prix : 85 000 euros", 85000},
		{"decimal comma", "1234,56", 1234.56},
		{"dot thousands comma decimal", "1.234,56", 1234.56},
		{"comma thousands", "1,234,567", 1234567},
		{"dot thousands", "150.000", 150000},
		{"decimal dot", "1234.5", 1234.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Price(tt.in)
			require.NotNil(t, got)
			assert.InDelta(t, tt.want, *got, 0.001)
		})
	}

	assert.Nil(t, Price(""))
	assert.Nil(t, Price("mise à prix non communiquée"))
}

func TestSurface(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"appartement de 85 m²", 85},
		{"85,5 m2 habitables", 85.5},
		{"Surface : 120.75 m²", 120.75},
	}

	for _, tt := range tests {
		got := Surface(tt.in)
		require.NotNil(t, got, tt.in)
		assert.InDelta(t, tt.want, *got, 0.001)
	}

	assert.Nil(t, Surface("pas de surface indiquée"))
}

func TestPostalCodeAndDepartment(t *testing.T) {
	assert.Equal(t, "75011", PostalCode("11 rue Oberkampf, 75011 Paris"))
	assert.Equal(t, "", PostalCode("Paris"))

	assert.Equal(t, "75", Department("75011"))
	assert.Equal(t, "972", Department("97200"))
	assert.Equal(t, "", Department("750"))
}

func TestFrenchDate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"slash", "15/01/2025", "2025-01-15"},
		{"dash short year", "15-01-25", "2025-01-15"},
		{"dots", "Vente le 03.06.2026 à 14h", "2026-06-03"},
		{"month name", "15 janvier 2025", "2025-01-15"},
		{"weekday prefix", "mer. 15 janvier 2025", "2025-01-15"},
		{"juillet not juin", "4 juillet 2026", "2026-07-04"},
		{"august accent", "1 août 2026", "2026-08-01"},
		{"invalid day", "32/01/2025", ""},
		{"no date", "vente à venir", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FrenchDate(tt.in))
		})
	}
}

func TestTime(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"14h30", "14:30"},
		{"14:30", "14:30"},
		{"14h", "14:00"},
		{"14 h 30", "14:30"},
		{"9h5", "9:05"},
		{"sans heure", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Time(tt.in), tt.in)
	}
}

func TestEmail(t *testing.T) {
	assert.Equal(t, "cabinet@avocats-dupont.fr",
		Email("Contact : cabinet@avocats-dupont.fr ou au greffe"))
	assert.Equal(t, "", Email("pas de contact"))
}

func TestPhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Tél : 01 42 36 78 90", "0142367890"},
		{"01.42.36.78.90", "0142367890"},
		{"+33 1 42 36 78 90", "0142367890"},
		{"appeler le cabinet", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Phone(tt.in), tt.in)
	}
}

func TestPropertyType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Appartement T3 avec balcon", "appartement"},
		{"Studio au 4e étage", "appartement"},
		{"Maison de ville avec jardin", "maison"},
		{"Local commercial en rez-de-chaussée", "local commercial"},
		{"Terrain constructible de 800 m²", "terrain"},
		{"Place de parking en sous-sol", "parking"},
		{"Immeuble de rapport", "immeuble"},
		{"Lot divers", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, PropertyType(tt.in), tt.in)
	}
}

func TestNormalizeURL(t *testing.T) {
	base := "https://www.licitor.com"

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"absolute passthrough", "https://other.fr/a", "https://other.fr/a"},
		{"protocol relative", "//cdn.licitor.com/p/1.jpg", "https://cdn.licitor.com/p/1.jpg"},
		{"root relative", "/ventes/paris", "https://www.licitor.com/ventes/paris"},
		{"bare relative", "ventes/paris", "https://www.licitor.com/ventes/paris"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeURL(tt.in, base))
		})
	}
}
