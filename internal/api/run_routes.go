package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/kjannette/smartprice/internal/scheduler"
)

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	prop, ok := s.property(w, r)
	if !ok {
		return
	}

	// in-memory report first; it is fresher than the table on a live server
	if s.deps.Scheduler != nil {
		if rep := s.deps.Scheduler.LastReport(prop); rep != nil {
			writeJSON(w, http.StatusOK, rep)
			return
		}
	}
	if s.deps.Runs == nil {
		writeError(w, http.StatusNotFound, "no runs recorded")
		return
	}

	rep, err := s.deps.Runs.GetLatest(r.Context(), prop)
	if err != nil {
		fmt.Printf("Error fetching latest run: %v\n", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch latest run")
		return
	}
	if rep == nil {
		writeError(w, http.StatusNotFound, "no runs recorded")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// handleTriggerRun starts a pass over every property in the background.
func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	if s.deps.Scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not configured")
		return
	}

	switch err := s.deps.Scheduler.Trigger(); {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
	case errors.Is(err, scheduler.ErrRunInProgress):
		writeError(w, http.StatusConflict, "pricing run already in progress")
	case errors.Is(err, scheduler.ErrSchedulerStopped):
		writeError(w, http.StatusServiceUnavailable, "scheduler is shutting down")
	default:
		fmt.Printf("[API] Trigger failed: %v\n", err)
		writeError(w, http.StatusInternalServerError, "failed to start pricing run")
	}
}
