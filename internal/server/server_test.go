package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agentstation/utc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adjudex/adjudex"
	"github.com/adjudex/adjudex/pkg/auctions"
	"github.com/adjudex/adjudex/pkg/errors"
)

// fakeRunner scripts the pipeline behind the HTTP surface.
type fakeRunner struct {
	summary    *auctions.RunSummary
	runErr     error
	history    []auctions.RunRecord
	historyErr error

	runCalls     atomic.Int32
	historyLimit atomic.Int32

	mu  sync.Mutex
	got adjudex.RunOptions
}

func (f *fakeRunner) Run(_ context.Context, opts ...adjudex.RunOption) (*auctions.RunSummary, error) {
	var settings adjudex.RunOptions
	for _, opt := range opts {
		opt(&settings)
	}
	f.mu.Lock()
	f.got = settings
	f.mu.Unlock()
	f.runCalls.Add(1)
	return f.summary, f.runErr
}

func (f *fakeRunner) options() adjudex.RunOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.got
}

func (f *fakeRunner) History(_ context.Context, limit int) ([]auctions.RunRecord, error) {
	f.historyLimit.Store(int32(limit))
	return f.history, f.historyErr
}

func (f *fakeRunner) Sources() []string {
	return []string{"encheres-publiques", "licitor"}
}

func serve(t *testing.T, runner Runner, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	srv := New(runner, Config{})
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := serve(t, &fakeRunner{}, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRunSync(t *testing.T) {
	runner := &fakeRunner{summary: &auctions.RunSummary{
		RunID:      "run-1",
		Status:     auctions.RunCompleted,
		TotalFound: 7,
		AfterDedup: 5,
		Persisted:  5,
	}}

	rec := serve(t, runner, http.MethodPost, "/api/v1/scraping/run", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary auctions.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, 5, summary.Persisted)

	// no body means no per-run overrides
	assert.Empty(t, runner.options().Sources)
	assert.Zero(t, runner.options().MaxPages)
}

func TestRunSyncWithRequestBody(t *testing.T) {
	runner := &fakeRunner{summary: &auctions.RunSummary{Status: auctions.RunCompleted}}

	body := `{"sources": ["licitor"], "max_pages": 3, "timeout": "90s"}`
	rec := serve(t, runner, http.MethodPost, "/api/v1/scraping/run", body)
	require.Equal(t, http.StatusOK, rec.Code)

	got := runner.options()
	assert.Equal(t, []string{"licitor"}, got.Sources)
	assert.Equal(t, 3, got.MaxPages)
	assert.Equal(t, 90*time.Second, got.Timeout)
}

func TestRunSyncRejectsMalformedBody(t *testing.T) {
	runner := &fakeRunner{}

	rec := serve(t, runner, http.MethodPost, "/api/v1/scraping/run", `{"sources": [`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, int32(0), runner.runCalls.Load())

	rec = serve(t, runner, http.MethodPost, "/api/v1/scraping/run", `{"timeout": "fast"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "timeout")
}

func TestRunSyncUnknownSourceIs400(t *testing.T) {
	runner := &fakeRunner{runErr: &errors.ValidationError{
		Field:   "sources",
		Message: `unknown source "ebay"`,
	}}

	rec := serve(t, runner, http.MethodPost, "/api/v1/scraping/run", `{"sources": ["ebay"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown source")
}

func TestRunSyncConflictWhileRunning(t *testing.T) {
	runner := &fakeRunner{runErr: errors.ErrRunInProgress}

	rec := serve(t, runner, http.MethodPost, "/api/v1/scraping/run", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "in progress")
}

func TestTriggerRunsInBackground(t *testing.T) {
	runner := &fakeRunner{summary: &auctions.RunSummary{Status: auctions.RunCompleted}}

	rec := serve(t, runner, http.MethodPost, "/api/v1/scraping/trigger", `{"sources": ["licitor"], "max_pages": 2}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		return runner.runCalls.Load() == 1
	}, time.Second, 5*time.Millisecond)

	got := runner.options()
	assert.Equal(t, []string{"licitor"}, got.Sources)
	assert.Equal(t, 2, got.MaxPages)
}

func TestTriggerRejectsMalformedBody(t *testing.T) {
	runner := &fakeRunner{}

	rec := serve(t, runner, http.MethodPost, "/api/v1/scraping/trigger", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, int32(0), runner.runCalls.Load())
}

func TestHistory(t *testing.T) {
	runner := &fakeRunner{history: []auctions.RunRecord{
		{RunID: "run-2", Source: "licitor", Status: auctions.RunCompleted, PagesScraped: 3, StartedAt: utc.Now()},
		{RunID: "run-1", Source: "licitor", Status: auctions.RunFailed, StartedAt: utc.Now()},
	}}

	rec := serve(t, runner, http.MethodGet, "/api/v1/scraping/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(defaultHistoryLimit), runner.historyLimit.Load())

	var runs []auctions.RunRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].RunID)
	assert.Equal(t, 3, runs[0].PagesScraped)
}

func TestHistoryLimitValidation(t *testing.T) {
	runner := &fakeRunner{}

	rec := serve(t, runner, http.MethodGet, "/api/v1/scraping/history?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, runner, http.MethodGet, "/api/v1/scraping/history?limit=500", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(maxHistoryLimit), runner.historyLimit.Load())
}

func TestSources(t *testing.T) {
	rec := serve(t, &fakeRunner{}, http.MethodGet, "/api/v1/scraping/sources", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"sources":["encheres-publiques","licitor"]}`, rec.Body.String())
}

func TestUnknownRouteIs404(t *testing.T) {
	rec := serve(t, &fakeRunner{}, http.MethodGet, "/api/v1/scraping/stats", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
