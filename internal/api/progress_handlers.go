package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/studysync/internal/notify"
	"github.com/JakeFAU/studysync/internal/progress"
	"github.com/JakeFAU/studysync/internal/store"
)

const (
	progressTimeout = 12 * time.Second
	maxToggleBody   = 4 << 10
)

// ProgressHandler exposes the progress projections and the mutations the
// view may request.
type ProgressHandler struct {
	core    Core
	timeout time.Duration
	logger  *zap.Logger
}

// NewProgressHandler wires the sync core and logger.
func NewProgressHandler(core Core, logger *zap.Logger) *ProgressHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressHandler{
		core:    core,
		timeout: progressTimeout,
		logger:  logger,
	}
}

type itemResponse struct {
	Identifier string                     `json:"identifier"`
	Completed  int                        `json:"completed"`
	Total      int                        `json:"total"`
	Percentage int                        `json:"percentage"`
	Color      string                     `json:"color"`
	Badge      string                     `json:"badge,omitempty"`
	Levels     []progress.LevelPercentage `json:"levels"`
}

type overviewResponse struct {
	State         string         `json:"state"`
	Tree          progress.Tree  `json:"tree"`
	Pending       []store.Update `json:"pending"`
	TimerArmed    bool           `json:"timer_armed"`
	FlushInFlight bool           `json:"flush_in_flight"`
}

type toggleRequest struct {
	Identifier string `json:"identifier"`
	Level      string `json:"level"`
	GoalIndex  *int   `json:"goal_index"`
	Completed  bool   `json:"completed"`
}

type statsResponse struct {
	progress.Statistics
	Encouragement notify.Encouragement `json:"encouragement"`
}

// Overview handles GET /v1/progress. It hydrates (cache first) and returns
// the tree with the sync status, or the mapped store error.
func (h *ProgressHandler) Overview(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	tree, err := h.core.Hydrate(ctx, false)
	if err != nil {
		h.writeCoreError(w, "hydrate", err)
		return
	}
	writeJSON(w, http.StatusOK, overviewResponse{
		State:         h.core.State().String(),
		Tree:          tree,
		Pending:       h.core.Pending(),
		TimerArmed:    h.core.TimerArmed(),
		FlushInFlight: h.core.FlushInFlight(),
	})
}

// Item handles GET /v1/progress/{identifier}.
func (h *ProgressHandler) Item(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	identifier := strings.TrimSpace(chi.URLParam(r, "identifier"))
	if identifier == "" {
		writeError(w, http.StatusBadRequest, "identifier required")
		return
	}
	writeJSON(w, http.StatusOK, h.item(identifier))
}

func (h *ProgressHandler) item(identifier string) itemResponse {
	pct := h.core.PercentageFor(identifier)
	return itemResponse{
		Identifier: identifier,
		Completed:  pct.Completed,
		Total:      pct.Total,
		Percentage: pct.Percentage,
		Color:      notify.Color(pct.Percentage),
		Badge:      notify.Badge(pct.Percentage),
		Levels:     h.core.LevelPercentages(identifier),
	}
}

// Toggle handles POST /v1/progress/toggle. It returns 202 with the updated
// item projection; persistence happens on the debounced flush.
func (h *ProgressHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	var req toggleRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxToggleBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.GoalIndex == nil {
		writeError(w, http.StatusBadRequest, "goal_index required")
		return
	}
	level, err := store.ParseLevel(req.Level)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.core.Toggle(req.Identifier, level, *req.GoalIndex, req.Completed); err != nil {
		switch {
		case errors.Is(err, progress.ErrInvalidGoal):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, progress.ErrClosed):
			writeError(w, http.StatusServiceUnavailable, "shutting down")
		default:
			h.logger.Error("toggle failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "toggle failed")
		}
		return
	}
	writeJSON(w, http.StatusAccepted, h.item(strings.TrimSpace(req.Identifier)))
}

// Refresh handles POST /v1/progress/refresh, a forced hydrate.
func (h *ProgressHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	tree, err := h.core.Hydrate(ctx, true)
	if err != nil {
		h.writeCoreError(w, "refresh", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tree": tree})
}

// Flush handles POST /v1/progress/flush. 409 means a flush is already running.
func (h *ProgressHandler) Flush(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	pending := len(h.core.Pending())
	if err := h.core.Flush(r.Context()); err != nil {
		if errors.Is(err, progress.ErrFlushInProgress) {
			writeError(w, http.StatusConflict, "flush already in flight")
			return
		}
		h.writeCoreError(w, "flush", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"submitted": pending,
		"remaining": len(h.core.Pending()),
	})
}

// Stats handles GET /v1/stats. Store failures degrade to stale or zero
// totals rather than an error status.
func (h *ProgressHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	stats := h.core.Statistics(ctx)
	writeJSON(w, http.StatusOK, statsResponse{
		Statistics:    stats,
		Encouragement: notify.Encourage(stats.OverallPercentage),
	})
}

func (h *ProgressHandler) available(w http.ResponseWriter) bool {
	if h.core == nil {
		writeError(w, http.StatusServiceUnavailable, "sync core unavailable")
		return false
	}
	return true
}

func (h *ProgressHandler) writeCoreError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Warn(op+" failed", zap.Error(err))
	}
	writeError(w, status, err.Error())
}

// statusFor maps the store taxonomy onto the status returned to the view.
func statusFor(err error) int {
	switch {
	case errors.Is(err, progress.ErrNoUser), errors.Is(err, store.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, store.ErrOffline):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, store.ErrServer), errors.Is(err, store.ErrNetwork):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func parseLimit(r *http.Request, def, maxLimit int) (int, error) {
	limStr := r.URL.Query().Get("limit")
	if limStr == "" {
		return def, nil
	}
	val, err := strconv.Atoi(limStr)
	if err != nil || val <= 0 {
		return 0, errors.New("invalid limit")
	}
	if val > maxLimit {
		val = maxLimit
	}
	return val, nil
}
