package api

import (
	"fmt"
	"net/http"

	"github.com/kjannette/smartprice/internal/models"
)

func (s *Server) handleQuotesByDay(w http.ResponseWriter, r *http.Request) {
	if s.deps.Quotes == nil {
		storeUnavailable(w)
		return
	}
	date, ok := pathDate(w, r)
	if !ok {
		return
	}
	prop, ok := s.property(w, r)
	if !ok {
		return
	}

	quotes, err := s.deps.Quotes.GetByDate(r.Context(), prop, date)
	if err != nil {
		fmt.Printf("Error fetching quotes for %s: %v\n", models.FormatDate(date), err)
		writeError(w, http.StatusInternalServerError, "failed to fetch quotes")
		return
	}
	if quotes == nil {
		quotes = []models.PriceQuote{}
	}
	writeJSON(w, http.StatusOK, quotes)
}

func (s *Server) handleLatestQuotes(w http.ResponseWriter, r *http.Request) {
	if s.deps.Quotes == nil {
		storeUnavailable(w)
		return
	}
	prop, ok := s.property(w, r)
	if !ok {
		return
	}

	quotes, err := s.deps.Quotes.GetLatestRun(r.Context(), prop)
	if err != nil {
		fmt.Printf("Error fetching latest quotes: %v\n", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch latest quotes")
		return
	}
	if len(quotes) == 0 {
		writeError(w, http.StatusNotFound, "no quotes available")
		return
	}
	writeJSON(w, http.StatusOK, quotes)
}
