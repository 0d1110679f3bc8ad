package api

import (
	"net/http"

	"itembook/internal/daterange"

	"github.com/gorilla/mux"
)

// GET /api/items
func (s *HTTPServer) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.Items.List(r.Context(), false)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// GET /api/items/featured
func (s *HTTPServer) handleFeaturedItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.Items.List(r.Context(), true)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// GET /api/items/{id}
func (s *HTTPServer) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.svc.Items.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// POST /api/items
func (s *HTTPServer) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	item, err := s.svc.Items.Create(r.Context(), actorOf(r), req.toItem())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// PUT /api/items/{id}
func (s *HTTPServer) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	item, err := s.svc.Items.Update(r.Context(), actorOf(r), mux.Vars(r)["id"], req.toItem())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// DELETE /api/items/{id}
func (s *HTTPServer) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Items.Delete(r.Context(), actorOf(r), mux.Vars(r)["id"]); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "item deleted"})
}

// handleItemBlocked lists an item's approved ranges and, with ?date=, whether that day is blocked.
// GET /api/items/{id}/blocked?date=YYYY-MM-DD
func (s *HTTPServer) handleItemBlocked(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.svc.Items.Get(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := blockedResponse{ItemID: id}
	if raw := r.URL.Query().Get("date"); raw != "" {
		date, err := daterange.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		blocked, err := s.svc.Bookings.IsItemBlockedOn(r.Context(), id, date)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		resp.Date = daterange.Format(date)
		resp.Blocked = &blocked
	}

	ranges, err := s.svc.Bookings.BlockedRanges(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	resp.Ranges = ranges
	if resp.Ranges == nil {
		resp.Ranges = []daterange.Range{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAvailability returns a per-day calendar for the requested items.
// POST /api/availability
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	var req availabilityRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	start, _ := daterange.Parse(req.StartDate)
	end, _ := daterange.Parse(req.EndDate)

	calendars, err := s.svc.Bookings.Calendar(r.Context(), req.ItemIDs, start, end)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := availabilityResponse{Items: calendars}
	resp.Period.Start = req.StartDate
	resp.Period.End = req.EndDate
	writeJSON(w, http.StatusOK, resp)
}
