package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"livehouse/internal/models"
)

type eventResponse struct {
	models.Event
	Date string `json:"date"`
}

func toEventResponses(events []models.Event) []eventResponse {
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, eventResponse{Event: e, Date: e.Date.Format(models.DateLayout)})
	}
	return out
}

func (s *Server) listVenues(w http.ResponseWriter, r *http.Request) {
	venues, err := s.venues.List(r.Context())
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	if venues == nil {
		venues = []models.Venue{}
	}
	writeJSON(w, http.StatusOK, venues)
}

func (s *Server) getVenue(w http.ResponseWriter, r *http.Request) {
	id, ok := parseVenueID(w, r)
	if !ok {
		return
	}
	venue, err := s.venues.Get(r.Context(), id)
	if err != nil {
		writeVenueError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, venue)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := parseVenueID(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()

	upcoming := false
	if raw := query.Get("upcoming"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "upcoming must be a boolean"})
			return
		}
		upcoming = v
	}

	var from *time.Time
	if raw := query.Get("from"); raw != "" {
		d, err := models.ParseDate(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "from must be YYYY-MM-DD"})
			return
		}
		from = &d
	}

	if _, err := s.venues.Get(r.Context(), id); err != nil {
		writeVenueError(w, r, err)
		return
	}

	var (
		events []models.Event
		err    error
	)
	if upcoming {
		events, err = s.events.Upcoming(r.Context(), id, s.now())
	} else {
		events, err = s.events.ListByVenue(r.Context(), id, from)
	}
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponses(events))
}
