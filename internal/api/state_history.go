package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/blue-hydra/internal/device"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// handleGetDeviceHistory returns recent status transitions for a device.
//
// Query parameters:
//   - limit: maximum entries (default 50, max 200)
//   - since: RFC3339 timestamp; only later transitions are returned
func (s *Server) handleGetDeviceHistory(w http.ResponseWriter, r *http.Request) {
	address, ok := addressParam(w, r)
	if !ok {
		return
	}

	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	since, err := parseSinceParam(r.URL.Query().Get("since"))
	if err != nil {
		writeBadRequest(w, "invalid since timestamp")
		return
	}

	if _, err := s.catalog.Get(address); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "status history unavailable")
		return
	}

	entries, err := s.history.GetHistory(r.Context(), address, limit)
	if err != nil {
		s.logger.Warn("loading status history failed", "address", address, "error", err)
		writeInternalError(w, "failed to load device history")
		return
	}

	if !since.IsZero() {
		filtered := entries[:0]
		for _, entry := range entries {
			if entry.CreatedAt.After(since) {
				filtered = append(filtered, entry)
			}
		}
		entries = filtered
	}
	if entries == nil {
		entries = []device.StatusHistoryEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"address": address,
		"history": entries,
		"count":   len(entries),
	})
}

// parseHistoryLimit parses and bounds the limit parameter.
func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if limit > maxHistoryLimit {
		return 0, fmt.Errorf("limit exceeds maximum")
	}

	return limit, nil
}

// parseSinceParam parses the since parameter as RFC3339/RFC3339Nano.
func parseSinceParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}

	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC(), nil
}
