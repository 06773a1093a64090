package auctions

import (
	"github.com/agentstation/utc"
)

// RunStatus describes the outcome of a source scrape or a coordinated run.
type RunStatus string

// Run statuses.
const (
	RunRunning         RunStatus = "running"
	RunCompleted       RunStatus = "completed"
	RunFailed          RunStatus = "error"
	RunPartiallyFailed RunStatus = "partially_failed" // at least one source failed, others completed
)

// RunRecord is the per-source accounting of a coordinated run. One is
// produced for every enabled source, including sources that failed.
type RunRecord struct {
	RunID        string    `json:"run_id"`
	Source       string    `json:"source"`
	Status       RunStatus `json:"status"`
	Found        int       `json:"found"`           // records the adapter yielded
	Skipped      int       `json:"skipped"`         // listings intentionally excluded
	Errors       int       `json:"errors"`          // per-listing failures that did not abort the source
	PagesScraped int       `json:"pages_scraped"`   // non-empty listing pages walked
	Error        string    `json:"error,omitempty"` // fatal source error, when Status is error
	StartedAt    utc.Time  `json:"started_at"`
	FinishedAt   utc.Time  `json:"finished_at"`
}

// Duration returns the wall-clock duration of the source scrape in seconds.
func (r *RunRecord) Duration() float64 {
	return r.FinishedAt.Sub(r.StartedAt).Seconds()
}

// RunSummary is the aggregate result of a coordinated run across all
// sources, as stored in history and returned by the trigger API.
type RunSummary struct {
	RunID           string      `json:"run_id"`
	Status          RunStatus   `json:"status"`
	PerSource       []RunRecord `json:"per_source"`
	TotalFound      int         `json:"total_found"`
	AfterDedup      int         `json:"after_dedup"`
	Persisted       int         `json:"persisted"`
	Geocoded        int         `json:"geocoded"`
	DurationSeconds float64     `json:"duration_seconds"`
	StartedAt       utc.Time    `json:"started_at"`
	FinishedAt      utc.Time    `json:"finished_at"`
}

// Aggregate fills Status and TotalFound from the per-source records.
// The run is completed only when every source completed.
func (s *RunSummary) Aggregate() {
	s.TotalFound = 0
	failed := 0
	for _, rec := range s.PerSource {
		s.TotalFound += rec.Found
		if rec.Status == RunFailed {
			failed++
		}
	}

	switch {
	case len(s.PerSource) == 0:
		s.Status = RunCompleted
	case failed == 0:
		s.Status = RunCompleted
	case failed == len(s.PerSource):
		s.Status = RunFailed
	default:
		s.Status = RunPartiallyFailed
	}
}
