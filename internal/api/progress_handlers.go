package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-archiver/internal/records"
)

const (
	defaultArchiveLimit = 50
	maxArchiveLimit     = 500
	storeTimeout        = 3 * time.Second
)

// ProgressHandler exposes read-only run state plus the stop switch.
type ProgressHandler struct {
	snapshots SnapshotSource
	store     records.Store
	stopper   Stopper
	timeout   time.Duration
	logger    *zap.Logger
}

// NewProgressHandler wires the data sources and logger.
func NewProgressHandler(snapshots SnapshotSource, store records.Store, stopper Stopper, logger *zap.Logger) *ProgressHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressHandler{
		snapshots: snapshots,
		store:     store,
		stopper:   stopper,
		timeout:   storeTimeout,
		logger:    logger,
	}
}

// GetProgress handles GET /v1/progress. It returns {"progress": Snapshot} or
// 503 when no snapshot source is configured.
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, _ *http.Request) {
	if h.snapshots == nil {
		writeError(w, http.StatusServiceUnavailable, "progress unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"progress": h.snapshots.Latest()})
}

// ListArchives handles GET /v1/archives?limit=&offset=. It returns
// {"archives": [...], "total": n}, 400 for invalid paging, 503 without a store
// and 500 when the store fails.
func (h *ProgressHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "archive store unavailable")
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultArchiveLimit, maxArchiveLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	all, err := h.store.List(ctx)
	if err != nil {
		h.logger.Error("list archives failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list archives")
		return
	}
	page := []records.ArchiveRecord{}
	if offset < len(all) {
		end := min(offset+limit, len(all))
		page = all[offset:end]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"archives": page,
		"total":    len(all),
	})
}

// Stop handles POST /v1/stop.
func (h *ProgressHandler) Stop(w http.ResponseWriter, _ *http.Request) {
	if h.stopper == nil {
		writeError(w, http.StatusServiceUnavailable, "no run to stop")
		return
	}
	h.stopper.Stop()
	h.logger.Info("stop requested via status api")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "stopping"})
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}
