package api

import (
	"fmt"
	"net/http"

	"github.com/kjannette/smartprice/internal/models"
)

type submissionsResponse struct {
	Submissions []models.Submission    `json:"submissions"`
	Stats       models.SubmissionStats `json:"stats"`
}

func (s *Server) handleSubmissionsByDay(w http.ResponseWriter, r *http.Request) {
	if s.deps.Submissions == nil {
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

	subs, err := s.deps.Submissions.GetByDate(r.Context(), prop, date)
	if err != nil {
		fmt.Printf("Error fetching submissions for %s: %v\n", models.FormatDate(date), err)
		writeError(w, http.StatusInternalServerError, "failed to fetch submissions")
		return
	}

	out := submissionsResponse{Submissions: subs}
	if out.Submissions == nil {
		out.Submissions = []models.Submission{}
	}
	for _, sub := range subs {
		out.Stats.Total++
		switch sub.Status {
		case models.SubmissionSent:
			out.Stats.Sent++
		case models.SubmissionDryRun:
			out.Stats.DryRun++
		case models.SubmissionFailed:
			out.Stats.Failed++
		case models.SubmissionBlocked:
			out.Stats.Blocked++
		}
	}
	writeJSON(w, http.StatusOK, out)
}
