package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adjudex/adjudex/pkg/errors"
)

func newTestClient(opts ...Option) *Client {
	base := []Option{
		WithMinInterval(0),
		WithTimeout(2 * time.Second),
	}
	return New(append(base, opts...)...)
}

func TestPageParsesHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><h1 class="title">Vente aux enchères</h1></body></html>`))
	}))
	defer srv.Close()

	doc, err := newTestClient().Page(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Vente aux enchères", doc.Find("h1.title").Text())
}

func TestPageNotFoundIsTerminal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient().Page(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.EqualValues(t, 1, calls.Load(), "404 must not be retried")
}

func TestPageRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`<html><body>ok</body></html>`))
	}))
	defer srv.Close()

	// short backoff to keep the test fast
	c := newTestClient()
	c.http.SetRetryWaitTime(10 * time.Millisecond).SetRetryMaxWaitTime(50 * time.Millisecond)

	_, err := c.Page(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestPageExhaustedRetriesIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(WithRetries(1))
	c.http.SetRetryWaitTime(10 * time.Millisecond).SetRetryMaxWaitTime(20 * time.Millisecond)

	_, err := c.Page(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}

func TestJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"total": 2, "items": [{"id": "a"}, {"id": "b"}]}`))
	}))
	defer srv.Close()

	var out struct {
		Total int `json:"total"`
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}

	err := newTestClient().JSON(context.Background(), srv.URL, map[string]string{"page": "1"}, &out)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Total)
	require.Len(t, out.Items, 2)
	assert.Equal(t, "b", out.Items[1].ID)
}

func TestMinIntervalSpacing(t *testing.T) {
	var stamps []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stamps = append(stamps, time.Now())
		_, _ = w.Write([]byte(`<html></html>`))
	}))
	defer srv.Close()

	c := New(WithMinInterval(60 * time.Millisecond))
	for i := 0; i < 3; i++ {
		_, err := c.Page(context.Background(), srv.URL)
		require.NoError(t, err)
	}

	require.Len(t, stamps, 3)
	for i := 1; i < len(stamps); i++ {
		assert.GreaterOrEqual(t, stamps[i].Sub(stamps[i-1]), 50*time.Millisecond)
	}
}

func TestContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestClient().Page(ctx, srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
