package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjannette/smartprice/internal/models"
)

var dateRegexp = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Paths served without authentication.
var publicPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type QuoteStore interface {
	GetByDate(ctx context.Context, property string, date time.Time) ([]models.PriceQuote, error)
	GetLatestRun(ctx context.Context, property string) ([]models.PriceQuote, error)
}

type SubmissionStore interface {
	GetByDate(ctx context.Context, property string, date time.Time) ([]models.Submission, error)
}

type RunStore interface {
	GetLatest(ctx context.Context, property string) (*models.RunReport, error)
}

type CalendarLookup interface {
	Lookup(date time.Time) (*models.CalendarEntry, error)
}

// RunTrigger is the scheduler surface the API drives. Trigger must claim
// the run slot before returning so concurrent callers see ErrRunInProgress.
type RunTrigger interface {
	Trigger() error
	LastReport(property string) *models.RunReport
	Busy() bool
	Running() bool
}

// Deps wires the server to storage and the scheduler. Any store may be nil,
// in which case its routes answer 503.
type Deps struct {
	DB          Pinger
	Quotes      QuoteStore
	Submissions SubmissionStore
	Runs        RunStore
	Calendars   map[string]CalendarLookup
	Scheduler   RunTrigger
	Properties  []string // first is the default for ?property=
}

type Server struct {
	deps       Deps
	handler    http.Handler
	httpServer *http.Server
	apiKey     string
}

func NewServer(deps Deps, port int, apiKey, corsOrigin string) *Server {
	s := &Server{
		deps:   deps,
		apiKey: apiKey,
	}

	mux := http.NewServeMux()

	// Quote routes
	mux.HandleFunc("GET /v1/quotes/day/{date}", s.handleQuotesByDay)
	mux.HandleFunc("GET /v1/quotes/latest", s.handleLatestQuotes)

	// Submission routes
	mux.HandleFunc("GET /v1/submissions/day/{date}", s.handleSubmissionsByDay)

	// Calendar routes
	mux.HandleFunc("GET /v1/calendar/{date}", s.handleCalendarDay)

	// Run routes
	mux.HandleFunc("GET /v1/runs/latest", s.handleLatestRun)
	mux.HandleFunc("POST /v1/runs", s.handleTriggerRun)

	// No auth required
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	// CORS wraps auth so preflights and 401s still carry the CORS headers.
	s.handler = corsMiddleware(s.authMiddleware(mux), corsOrigin)
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// Handler exposes the routed, middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Start() error {
	fmt.Printf("[API] REST API server started on http://localhost%s\n", s.httpServer.Addr)
	fmt.Printf("[API] Health check: http://localhost%s/health\n", s.httpServer.Addr)
	if s.apiKey != "" {
		fmt.Println("[API] Authentication: enabled (Bearer token)")
	} else {
		fmt.Println("[API] Authentication: disabled (no API_KEY configured)")
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// --- middleware ---

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" || publicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if auth == "" {
			writeError(w, http.StatusUnauthorized, "missing Authorization header")
			return
		}

		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth || token != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler, allowOrigin string) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- validation helpers ---

func validateDate(date string) bool {
	if !dateRegexp.MatchString(date) {
		return false
	}
	_, err := time.Parse("2006-01-02", date)
	return err == nil
}

// pathDate parses {date}, writing a 400 when it is malformed.
func pathDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.PathValue("date")
	if !validateDate(raw) {
		writeError(w, http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
		return time.Time{}, false
	}
	d, _ := models.ParseDate(raw)
	return d, true
}

// property resolves ?property=, falling back to the first configured one.
func (s *Server) property(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := r.URL.Query().Get("property")
	if name == "" {
		if len(s.deps.Properties) == 0 {
			writeError(w, http.StatusNotFound, "no properties configured")
			return "", false
		}
		return s.deps.Properties[0], true
	}
	for _, p := range s.deps.Properties {
		if p == name {
			return name, true
		}
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("unknown property %q", name))
	return "", false
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func storeUnavailable(w http.ResponseWriter) {
	writeError(w, http.StatusServiceUnavailable, "storage not configured")
}
