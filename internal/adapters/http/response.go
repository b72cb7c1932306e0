package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/OliveiraNt/kviz/internal/application"
	"github.com/OliveiraNt/kviz/internal/utils"
)

const maxLongPollWait = time.Minute

var errInvalidWait = errors.New("invalid wait duration")

func mapErrorToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, application.ErrInvalidVersion),
		errors.Is(err, application.ErrInvalidMessage),
		errors.Is(err, errInvalidWait):
		return http.StatusBadRequest
	case errors.Is(err, application.ErrTopicNotFound):
		return http.StatusNotFound
	case errors.Is(err, application.ErrSamplerDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		utils.Logger.Error("encode response failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func notModified(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNotModified)
}

// pollParams reads the version and wait query parameters.
func pollParams(r *http.Request) (uint64, time.Duration, error) {
	q := r.URL.Query()
	since, err := application.ParseVersion(q.Get("version"))
	if err != nil {
		return 0, 0, err
	}
	raw := q.Get("wait")
	if raw == "" {
		return since, 0, nil
	}
	wait, err := time.ParseDuration(raw)
	if err != nil || wait < 0 {
		return 0, 0, errInvalidWait
	}
	return since, min(wait, maxLongPollWait), nil
}

// longPoll calls read until it reports a change, the wait elapses or the
// client goes away. changed must be fetched before each read so no update
// slips between the two.
func longPoll[T any](r *http.Request, wait time.Duration, changed func() <-chan struct{}, read func() (T, bool)) (T, bool) {
	ch := changed()
	v, ok := read()
	if ok || wait <= 0 || ch == nil {
		return v, ok
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		select {
		case <-ch:
			ch = changed()
			if v, ok = read(); ok {
				return v, true
			}
		case <-timer.C:
			return v, false
		case <-r.Context().Done():
			return v, false
		}
	}
}
