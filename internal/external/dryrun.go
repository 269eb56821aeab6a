package external

import (
	"context"
	"fmt"
	"sync"

	"github.com/kjannette/smartprice/internal/models"
)

// DryRunSubmitter prints rates instead of sending them and keeps what it
// saw, so a run can be inspected afterwards.
type DryRunSubmitter struct {
	mu   sync.Mutex
	sent []models.ListingPrice
}

func NewDryRunSubmitter() *DryRunSubmitter {
	return &DryRunSubmitter{}
}

func (d *DryRunSubmitter) SubmitRate(_ context.Context, lp models.ListingPrice) (int, error) {
	fmt.Printf("[DRY-RUN] Listing %d, Date %s, Price %.1f\n", lp.ListingID, models.FormatDate(lp.Date), lp.Price)
	d.mu.Lock()
	d.sent = append(d.sent, lp)
	d.mu.Unlock()
	return 1, nil
}

func (d *DryRunSubmitter) Mode() models.SubmissionStatus {
	return models.SubmissionDryRun
}

// Sent returns a copy of every rate seen so far.
func (d *DryRunSubmitter) Sent() []models.ListingPrice {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]models.ListingPrice, len(d.sent))
	copy(out, d.sent)
	return out
}
