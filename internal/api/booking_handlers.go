package api

import (
	"net/http"

	"itembook/internal/models"

	"github.com/gorilla/mux"
)

// POST /api/booking-requests
func (s *HTTPServer) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var req entriesRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := req.toEntries()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.svc.Bookings.CreateBookingRequest(r.Context(), actorOf(r), entries)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleListRequests lists every request, newest first, optionally by status.
// GET /api/booking-requests?status=approved
func (s *HTTPServer) handleListRequests(w http.ResponseWriter, r *http.Request) {
	var filter models.RequestFilter
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, err := models.ParseStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Status = st
	}

	reqs, err := s.svc.Bookings.ListBookingRequests(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if reqs == nil {
		reqs = []models.BookingRequest{}
	}
	writeJSON(w, http.StatusOK, reqs)
}

// GET /api/booking-requests/my-requests
func (s *HTTPServer) handleMyRequests(w http.ResponseWriter, r *http.Request) {
	active, past, err := s.svc.Bookings.MyRequests(r.Context(), actorOf(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, myRequestsResponse{Active: active, Past: past})
}

// PATCH /api/booking-requests/{id}/status
func (s *HTTPServer) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := s.svc.Bookings.UpdateStatus(r.Context(), actorOf(r), mux.Vars(r)["id"], req.Status)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DELETE /api/booking-requests/{id}/cancel
func (s *HTTPServer) handleCancelRequest(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Bookings.CancelRequest(r.Context(), actorOf(r), mux.Vars(r)["id"]); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "booking request cancelled"})
}

// handleEditRequest replaces the line entries of a pending request.
// PATCH /api/booking-requests/{id}
func (s *HTTPServer) handleEditRequest(w http.ResponseWriter, r *http.Request) {
	var req entriesRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := req.toEntries()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := s.svc.Bookings.UpdateLineEntries(r.Context(), actorOf(r), mux.Vars(r)["id"], entries)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
