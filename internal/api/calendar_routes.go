package api

import (
	"errors"
	"net/http"

	"github.com/kjannette/smartprice/internal/calendar"
)

func (s *Server) handleCalendarDay(w http.ResponseWriter, r *http.Request) {
	date, ok := pathDate(w, r)
	if !ok {
		return
	}
	prop, ok := s.property(w, r)
	if !ok {
		return
	}

	cal, ok := s.deps.Calendars[prop]
	if !ok {
		writeError(w, http.StatusNotFound, "no calendar loaded for "+prop)
		return
	}

	entry, err := cal.Lookup(date)
	if errors.Is(err, calendar.ErrNotFound) {
		writeError(w, http.StatusNotFound, "date not in calendar")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read calendar")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
