package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"itembook/internal/daterange"
	"itembook/internal/models"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// GET /api/admin/dashboard
func (s *HTTPServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Bookings.Dashboard(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleExport streams an Excel workbook of booking requests.
// Optional filters: status, and from/to (inclusive creation dates, given together).
// GET /api/admin/export.xlsx?status=approved&from=2024-06-01&to=2024-06-30
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var filter models.RequestFilter
	if raw := q.Get("status"); raw != "" {
		st, err := models.ParseStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Status = st
	}

	var from, to time.Time
	if q.Get("from") != "" || q.Get("to") != "" {
		var err error
		if from, err = daterange.Parse(q.Get("from")); err != nil {
			writeError(w, http.StatusBadRequest, "from and to must both be YYYY-MM-DD dates")
			return
		}
		if to, err = daterange.Parse(q.Get("to")); err != nil {
			writeError(w, http.StatusBadRequest, "from and to must both be YYYY-MM-DD dates")
			return
		}
		if to.Before(from) {
			writeError(w, http.StatusBadRequest, "from must not be after to")
			return
		}
		to = to.AddDate(0, 0, 1)
	}

	var buf bytes.Buffer
	if err := s.svc.Exporter.Write(r.Context(), &buf, filter, from, to); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	name := fmt.Sprintf("booking_requests_%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
