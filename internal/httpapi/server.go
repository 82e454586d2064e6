package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"livehouse/internal/app/ingest"
	"livehouse/internal/auth"
	"livehouse/internal/logging"
	"livehouse/internal/models"
	"livehouse/internal/store"
)

// VenueService describes venue read workflows.
type VenueService interface {
	List(ctx context.Context) ([]models.Venue, error)
	Get(ctx context.Context, id uuid.UUID) (models.Venue, error)
}

// EventService describes event listings.
type EventService interface {
	ListByVenue(ctx context.Context, venueID uuid.UUID, from *time.Time) ([]models.Event, error)
	Upcoming(ctx context.Context, venueID uuid.UUID, today time.Time) ([]models.Event, error)
}

// Ingester writes venue batches.
type Ingester interface {
	IngestAll(ctx context.Context, batches []ingest.Batch) ([]ingest.Report, error)
}

// TokenVerifier checks ingestion bearer tokens.
type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// Server wires HTTP handlers to the underlying services.
type Server struct {
	venues   VenueService
	events   EventService
	ingester Ingester
	tokens   TokenVerifier
	metrics  http.Handler
	now      func() time.Time

	ingestTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithIngestTimeout bounds each ingest request. Zero leaves it to the client.
func WithIngestTimeout(d time.Duration) Option {
	return func(s *Server) { s.ingestTimeout = d }
}

// New configures a Server. metrics may be nil to leave /metrics unrouted.
func New(venues VenueService, events EventService, ingester Ingester, tokens TokenVerifier, metrics http.Handler, opts ...Option) *Server {
	s := &Server{
		venues:   venues,
		events:   events,
		ingester: ingester,
		tokens:   tokens,
		metrics:  metrics,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes exposes the HTTP handlers.
func (s *Server) Routes() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet)
	if s.metrics != nil {
		router.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/venues", s.listVenues).Methods(http.MethodGet)
	api.HandleFunc("/venues/{id}", s.getVenue).Methods(http.MethodGet)
	api.HandleFunc("/venues/{id}/events", s.listEvents).Methods(http.MethodGet)
	api.HandleFunc("/ingest", s.ingest).Methods(http.MethodPost)

	return router
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func parseBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func parseVenueID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid venue id"})
		return uuid.Nil, false
	}
	return id, true
}

func writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	logging.WithContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func writeVenueError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrVenueNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "venue not found"})
		return
	}
	writeInternalError(w, r, err)
}
