package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/adjudex/adjudex"
	"github.com/adjudex/adjudex/pkg/errors"
	"github.com/adjudex/adjudex/pkg/logging"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type handlers struct {
	runner Runner
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// runRequest is the optional body of the run and trigger endpoints.
type runRequest struct {
	Sources  []string `json:"sources"`
	MaxPages int      `json:"max_pages"`
	Timeout  string   `json:"timeout"` // duration string, e.g. "5m"
}

// parseRunOptions translates an optional JSON body into per-run options.
// An empty body means the configured defaults.
func parseRunOptions(r *http.Request) ([]adjudex.RunOption, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	var req runRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}

	var opts []adjudex.RunOption
	if len(req.Sources) > 0 {
		opts = append(opts, adjudex.RunWithSources(req.Sources...))
	}
	if req.MaxPages > 0 {
		opts = append(opts, adjudex.RunWithMaxPages(req.MaxPages))
	}
	if req.Timeout != "" {
		d, err := time.ParseDuration(req.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q", req.Timeout)
		}
		opts = append(opts, adjudex.RunWithTimeout(d))
	}
	return opts, nil
}

// runSync executes a run and blocks until the summary is ready.
func (h *handlers) runSync(w http.ResponseWriter, r *http.Request) {
	opts, err := parseRunOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.runner.Run(r.Context(), opts...)
	if err != nil {
		var verr *errors.ValidationError
		switch {
		case errors.Is(err, errors.ErrRunInProgress):
			writeError(w, http.StatusConflict, "a run is already in progress")
		case errors.As(err, &verr):
			writeError(w, http.StatusBadRequest, verr.Error())
		default:
			logging.Ctx(r.Context()).Error().Err(err).Msg("run failed")
			writeError(w, http.StatusInternalServerError, "run failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// trigger starts a run in the background and returns immediately. The
// outcome lands in run history. Bad request parameters are still rejected
// synchronously.
func (h *handlers) trigger(w http.ResponseWriter, r *http.Request) {
	opts, err := parseRunOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := context.WithoutCancel(r.Context())
	go func() {
		if _, err := h.runner.Run(ctx, opts...); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("background run not started")
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *handlers) history(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	runs, err := h.runner.History(r.Context(), limit)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("loading run history failed")
		writeError(w, http.StatusInternalServerError, "loading history failed")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *handlers) sources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"sources": h.runner.Sources()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("encoding response failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
