package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/kjannette/smartprice/internal/httputil"
	"github.com/kjannette/smartprice/internal/models"
)

type Sender struct {
	webhookURL string
	botName    string
	httpClient *http.Client
	retry      httputil.RetryConfig
}

func NewSender(webhookURL, botName string) *Sender {
	if botName == "" {
		botName = "SmartPrice"
	}
	return &Sender{
		webhookURL: webhookURL,
		botName:    botName,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts:    3,
			Backoff:        1 * time.Second,
			AttemptTimeout: 10 * time.Second,
			Operation:      "webhook",
		},
	}
}

func (s *Sender) Send(msg string) {
	formatted := fmt.Sprintf("[%s] %s", s.botName, msg)
	fmt.Printf("[%s] %s\n", time.Now().UTC().Format(time.RFC3339), formatted)

	if s.webhookURL == "" {
		return
	}

	payload := s.formatPayload(formatted)
	body, err := json.Marshal(payload)
	if err != nil {
		fmt.Printf("[CHAT ERROR] marshal: %v\n", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, _, err := httputil.Do(ctx, s.httpClient, s.retry, func(actx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(actx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		fmt.Printf("[CHAT ERROR] Failed to send notification after retries: %v\n", err)
		return
	}
	resp.Body.Close()
}

// RunSummary posts the outcome of a pricing run. Runs that ended with an
// error are reported even when no report was produced.
func (s *Sender) RunSummary(rep *models.RunReport, runErr error) {
	if rep == nil {
		s.Send(fmt.Sprintf("Pricing run failed: %v", runErr))
		return
	}
	s.Send(FormatRunSummary(rep, runErr))
}

func FormatRunSummary(rep *models.RunReport, runErr error) string {
	var b strings.Builder
	mode := "LIVE"
	if rep.DryRun {
		mode = "DRY RUN"
	}
	fmt.Fprintf(&b, "%s pricing run (%s): %d/%d dates priced, %d sent, %d failed, %d blocked",
		rep.Property, mode, rep.Priced, rep.Days, rep.Sent, rep.Failed, rep.Blocked)

	if len(rep.Skipped) > 0 {
		reasons := make([]string, 0, len(rep.Skipped))
		for reason := range rep.Skipped {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		parts := make([]string, 0, len(reasons))
		for _, r := range reasons {
			parts = append(parts, fmt.Sprintf("%s=%d", r, rep.Skipped[r]))
		}
		fmt.Fprintf(&b, " | skipped: %s", strings.Join(parts, ", "))
	}
	if !rep.FinishedAt.IsZero() {
		fmt.Fprintf(&b, " | took %s", rep.FinishedAt.Sub(rep.StartedAt).Round(time.Second))
	}
	if runErr != nil {
		fmt.Fprintf(&b, " | error: %v", runErr)
	}
	return b.String()
}

func (s *Sender) formatPayload(msg string) map[string]string {
	if strings.Contains(s.webhookURL, "discord") {
		return map[string]string{
			"content":  msg,
			"username": s.botName,
		}
	}
	return map[string]string{
		"text":     fmt.Sprintf("`%s`", msg),
		"username": s.botName,
	}
}

func (s *Sender) Enabled() bool {
	return s.webhookURL != ""
}
