package api

import (
	"net/http"

	"itembook/internal/models"

	"github.com/gorilla/mux"
)

// GET /api/cart
func (s *HTTPServer) handleGetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := s.svc.Carts.Get(r.Context(), actorOf(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// handleAddToCart merges into an identical selection or appends.
// POST /api/cart/items
func (s *HTTPServer) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entry, err := req.toEntry()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cart, err := s.svc.Carts.Add(r.Context(), actorOf(r), models.CartItem{
		ItemID:    entry.ItemID,
		Quantity:  entry.Quantity,
		StartDate: entry.StartDate,
		EndDate:   entry.EndDate,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// PATCH /api/cart/items/{itemId}
func (s *HTTPServer) handleSetCartQuantity(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cart, err := s.svc.Carts.SetQuantity(r.Context(), actorOf(r), mux.Vars(r)["itemId"], req.Quantity)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// DELETE /api/cart/items/{itemId}
func (s *HTTPServer) handleRemoveFromCart(w http.ResponseWriter, r *http.Request) {
	cart, err := s.svc.Carts.Remove(r.Context(), actorOf(r), mux.Vars(r)["itemId"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// DELETE /api/cart
func (s *HTTPServer) handleClearCart(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Carts.Clear(r.Context(), actorOf(r)); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSubmitCart turns the cart into a pending booking request.
// POST /api/cart/submit
func (s *HTTPServer) handleSubmitCart(w http.ResponseWriter, r *http.Request) {
	req, err := s.svc.Carts.Submit(r.Context(), actorOf(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}
