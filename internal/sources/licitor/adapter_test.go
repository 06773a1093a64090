package licitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adjudex/adjudex/internal/sources"
)

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func TestListingPageWalksTribunals(t *testing.T) {
	home := fixture(t, "home.html")
	tribunal := fixture(t, "tribunal.html")

	var tribunalHits []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/":
			_, _ = w.Write(home)
		case strings.HasPrefix(r.URL.Path, "/ventes-judiciaires-immobilieres/"):
			tribunalHits = append(tribunalHits, r.URL.Path)
			_, _ = w.Write(tribunal)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	a := New(sources.Config{
		BaseURL:     srv.URL,
		Departments: []string{"13"},
		MinInterval: 1, // effectively no politeness delay in tests
	})

	urls, err := a.ListingPage(context.Background(), 1)
	require.NoError(t, err)

	// marseille and aix are department 13; paris is filtered, the duplicate
	// marseille link is fetched once
	require.Len(t, tribunalHits, 2)
	assert.Contains(t, tribunalHits[0], "tj-marseille")
	assert.Contains(t, tribunalHits[1], "tj-aix-en-provence")

	// both tribunal fixtures list the same two announcements
	require.Len(t, urls, 2)
	assert.Contains(t, urls[0], "/annonce/13/06/2026/appartement-marseille/88412.html")
	assert.Contains(t, urls[1], "/annonce/13/01/2026/maison-allauch/88413.html")
}

func TestListingPageSingleLogicalPage(t *testing.T) {
	a := New(sources.Config{BaseURL: "http://127.0.0.1:0", MinInterval: 1})

	urls, err := a.ListingPage(context.Background(), 2)
	require.NoError(t, err)
	assert.Empty(t, urls, "everything is returned on page 1")
}

func TestDetail(t *testing.T) {
	annonce := fixture(t, "annonce.html")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(annonce)
	}))
	defer srv.Close()

	a := New(sources.Config{BaseURL: srv.URL, MinInterval: 1})

	rec, err := a.Detail(context.Background(), srv.URL+"/annonce/13/06/2026/appartement-marseille/88412.html")
	require.NoError(t, err)

	assert.Equal(t, SourceName, rec.Source)
	assert.Equal(t, "88412", rec.SourceID)
	assert.Equal(t, "Appartement à MARSEILLE (13006)", rec.Description)

	assert.Equal(t, "18 rue Paradis, 13006 Marseille", rec.Address)
	assert.Equal(t, "13006", rec.PostalCode)
	assert.Equal(t, "13", rec.Department)

	assert.Equal(t, "appartement", rec.PropertyType)
	require.NotNil(t, rec.Surface)
	assert.InDelta(t, 72.5, *rec.Surface, 0.01)
	require.NotNil(t, rec.Rooms)
	assert.Equal(t, 3, *rec.Rooms)

	require.NotNil(t, rec.StartingPrice)
	assert.InDelta(t, 120000, *rec.StartingPrice, 0.01)
	require.NotNil(t, rec.MarketPricePerSqm)
	assert.InDelta(t, 4000, *rec.MarketPricePerSqm, 0.5)

	assert.Equal(t, "2026-02-12", rec.SaleDate)
	assert.Equal(t, "14:30", rec.SaleTime)
	assert.Equal(t, "Tribunal Judiciaire de Marseille", rec.Court)
	assert.Equal(t, "25/00142", rec.CaseNumber)

	assert.Equal(t, "Fabre", rec.LawyerName)
	assert.Equal(t, "avocat.fabre@barreau-marseille.fr", rec.LawyerEmail)
	assert.Equal(t, "0491554433", rec.LawyerPhone)

	assert.Equal(t, []string{"2026-02-02", "2026-02-05"}, rec.VisitDates)

	// placeholder image filtered out
	require.Len(t, rec.Photos, 2)
	assert.Contains(t, rec.Photos[0], "88412-1.jpg")

	require.Len(t, rec.Documents, 1)
	assert.Equal(t, "Cahier des conditions de vente", rec.Documents[0].Name)
	assert.Equal(t, rec.Documents[0].URL, rec.MinutesURL)

	assert.NotEmpty(t, rec.IdentityHash)
}

func TestRegistered(t *testing.T) {
	a, err := sources.New(SourceName, sources.Config{})
	require.NoError(t, err)
	assert.Equal(t, SourceName, a.Name())
}
