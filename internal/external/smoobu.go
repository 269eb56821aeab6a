package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kjannette/smartprice/internal/httputil"
	"github.com/kjannette/smartprice/internal/models"
)

const (
	availabilityPath = "/booking/checkApartmentAvailability"
	ratesPath        = "/api/rates"
)

// SmoobuClient talks to the booking backend: availability lookups in, rate
// updates out. Both calls run under the retry wrapper.
type SmoobuClient struct {
	apiKey     string
	customerID int
	baseURL    string
	httpClient *http.Client

	availRetry httputil.RetryConfig
	rateRetry  httputil.RetryConfig
}

type SmoobuOptions struct {
	APIKey     string
	CustomerID int
	BaseURL    string
	// Retry is copied for both operations; Operation labels are set here.
	Retry httputil.RetryConfig
}

func NewSmoobuClient(opts SmoobuOptions) *SmoobuClient {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://login.smoobu.com"
	}
	retry := opts.Retry
	if retry.MaxAttempts <= 0 {
		retry = httputil.DefaultRetry
	}

	avail := retry
	avail.Operation = "availability"
	rates := retry
	rates.Operation = "rates"

	return &SmoobuClient{
		apiKey:     opts.APIKey,
		customerID: opts.CustomerID,
		baseURL:    base,
		// per-attempt deadlines come from the retry config
		httpClient: &http.Client{Timeout: 60 * time.Second},
		availRetry: avail,
		rateRetry:  rates,
	}
}

type availabilityRequest struct {
	ArrivalDate   string  `json:"arrivalDate"`
	DepartureDate string  `json:"departureDate"`
	Apartments    []int64 `json:"apartments"`
	CustomerID    int     `json:"customerId"`
}

type availabilityResponse struct {
	AvailableApartments []int64 `json:"availableApartments"`
}

// CheckAvailability asks which of listings are free for a one-night stay
// arriving on date and derives the occupancy ratio from the answer.
func (c *SmoobuClient) CheckAvailability(ctx context.Context, date time.Time, listings []int64) (models.OccupancySample, error) {
	body, err := json.Marshal(availabilityRequest{
		ArrivalDate:   models.FormatDate(date),
		DepartureDate: models.FormatDate(models.Day(date).AddDate(0, 0, 1)),
		Apartments:    listings,
		CustomerID:    c.customerID,
	})
	if err != nil {
		return models.OccupancySample{}, fmt.Errorf("marshal availability: %w", err)
	}

	var data availabilityResponse
	if _, err := c.post(ctx, c.availRetry, availabilityPath, body, &data); err != nil {
		return models.OccupancySample{}, fmt.Errorf("smoobu availability %s: %w", models.FormatDate(date), err)
	}

	return models.NewOccupancySample(date, listings, data.AvailableApartments), nil
}

type rateOperation struct {
	Dates           []string `json:"dates"`
	DailyPrice      float64  `json:"daily_price"`
	MinLengthOfStay int      `json:"min_length_of_stay"`
}

type rateRequest struct {
	Apartments []int64         `json:"apartments"`
	Operations []rateOperation `json:"operations"`
}

// SubmitRate pushes one nightly price for one listing. It returns the
// number of attempts made, including on failure.
func (c *SmoobuClient) SubmitRate(ctx context.Context, lp models.ListingPrice) (int, error) {
	body, err := json.Marshal(rateRequest{
		Apartments: []int64{lp.ListingID},
		Operations: []rateOperation{{
			Dates:           []string{models.FormatDate(lp.Date)},
			DailyPrice:      lp.Price,
			MinLengthOfStay: 1,
		}},
	})
	if err != nil {
		return 0, fmt.Errorf("marshal rate: %w", err)
	}

	attempts, err := c.post(ctx, c.rateRetry, ratesPath, body, nil)
	if err != nil {
		return attempts, fmt.Errorf("smoobu rate %d/%s: %w", lp.ListingID, models.FormatDate(lp.Date), err)
	}
	fmt.Printf("[SMOOBU] Sent %.2f for listing %d on %s\n", lp.Price, lp.ListingID, models.FormatDate(lp.Date))
	return attempts, nil
}

func (c *SmoobuClient) Mode() models.SubmissionStatus {
	return models.SubmissionSent
}

func (c *SmoobuClient) post(ctx context.Context, retry httputil.RetryConfig, path string, body []byte, out any) (int, error) {
	resp, attempts, err := httputil.Do(ctx, c.httpClient, retry, func(actx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(actx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Api-Key", c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return attempts, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, rerr := io.ReadAll(resp.Body)
		if rerr != nil {
			return attempts, fmt.Errorf("smoobu returned status %d (reading body: %v)", resp.StatusCode, rerr)
		}
		return attempts, fmt.Errorf("smoobu returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return attempts, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return attempts, fmt.Errorf("decode: %w", err)
	}
	return attempts, nil
}
