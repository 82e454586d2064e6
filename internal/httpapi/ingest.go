package httpapi

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"livehouse/internal/app/ingest"
	"livehouse/internal/auth"
	"livehouse/internal/catalog"
	"livehouse/internal/logging"
)

const maxIngestBody = 4 << 20

type ingestResponse struct {
	Reports []ingest.Report `json:"reports"`
	Error   string          `json:"error,omitempty"`
	Kind    string          `json:"kind,omitempty"`
}

func (s *Server) ingest(w http.ResponseWriter, r *http.Request) {
	token := parseBearerToken(r.Header.Get("Authorization"))
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
		return
	}
	if _, err := s.tokens.Verify(token); err != nil {
		switch {
		case errors.Is(err, auth.ErrNoSecret):
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "ingestion is disabled"})
		case errors.Is(err, auth.ErrInsufficientScope):
			writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
		default:
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid token"})
		}
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIngestBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "read request body"})
		return
	}
	batches, err := catalog.Parse(bytes.NewReader(body))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	ctx := r.Context()
	if s.ingestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.ingestTimeout)
		defer cancel()
	}
	ctx, runID := logging.WithRunID(ctx)
	logger := logging.WithContext(ctx)
	logger.Info().Int("venues", len(batches)).Msg("ingest request accepted")

	reports, err := s.ingester.IngestAll(ctx, batches)
	if reports == nil {
		reports = []ingest.Report{}
	}
	if err != nil {
		status := ingestStatus(err)
		if status == http.StatusInternalServerError {
			logger.Error().Err(err).Str("run_id", runID).Msg("ingest failed")
		} else {
			logger.Warn().Err(err).Str("kind", ingest.KindName(err)).Msg("ingest rejected")
		}
		writeJSON(w, status, ingestResponse{Reports: reports, Error: err.Error(), Kind: ingest.KindName(err)})
		return
	}
	writeJSON(w, http.StatusOK, ingestResponse{Reports: reports})
}

func ingestStatus(err error) int {
	switch ingest.Kind(err) {
	case ingest.ErrInvalidCandidate, ingest.ErrParseFailure:
		return http.StatusBadRequest
	case ingest.ErrNotUnique, ingest.ErrConstraintConflict:
		return http.StatusConflict
	case ingest.ErrStoreUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
