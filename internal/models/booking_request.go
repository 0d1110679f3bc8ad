package models

import (
	"time"

	"itembook/internal/daterange"

	"github.com/google/uuid"
)

// Status of a booking request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ParseStatus validates a raw status value.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusApproved, StatusRejected:
		return st, nil
	}
	return "", NewValidationError("invalid status %q", s)
}

// IsTerminal is true for approved and rejected.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// LineEntry is one item, quantity and date range inside a request.
type LineEntry struct {
	ItemID    string    `json:"item_id" db:"item_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	StartDate time.Time `json:"start_date" db:"start_date"`
	EndDate   time.Time `json:"end_date" db:"end_date"`
}

// Range returns the entry's booked days.
func (e LineEntry) Range() daterange.Range {
	return daterange.New(e.StartDate, e.EndDate)
}

// BookingRequest is the aggregate root of the booking lifecycle.
type BookingRequest struct {
	ID        string      `json:"id" db:"id"`
	UserID    string      `json:"user_id" db:"user_id"`
	Status    Status      `json:"status" db:"status"`
	Entries   []LineEntry `json:"items" db:"-"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
	Version   int64       `json:"version" db:"version"`
}

// NewBookingRequest validates entries and returns a pending request owned by userID.
func NewBookingRequest(userID string, entries []LineEntry, now time.Time) (*BookingRequest, error) {
	if userID == "" {
		return nil, NewValidationError("user id is required")
	}
	normalized, err := NormalizeLineEntries(entries)
	if err != nil {
		return nil, err
	}
	return &BookingRequest{
		ID:        uuid.NewString(),
		UserID:    userID,
		Status:    StatusPending,
		Entries:   normalized,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}, nil
}

// NormalizeLineEntries validates entries and strips time of day from their dates.
// The input slice is not modified.
func NormalizeLineEntries(entries []LineEntry) ([]LineEntry, error) {
	if len(entries) == 0 {
		return nil, NewValidationError("booking request must contain at least one item")
	}
	out := make([]LineEntry, len(entries))
	for i, e := range entries {
		n := i + 1
		if e.ItemID == "" {
			return nil, NewValidationError("item %d: item id is required", n)
		}
		if e.Quantity < 1 {
			return nil, NewValidationError("item %d: quantity must be at least 1", n)
		}
		if !e.Range().Valid() {
			return nil, NewValidationError("item %d: start date must be before end date", n)
		}
		out[i] = LineEntry{
			ItemID:    e.ItemID,
			Quantity:  e.Quantity,
			StartDate: daterange.DateOnly(e.StartDate),
			EndDate:   daterange.DateOnly(e.EndDate),
		}
	}
	return out, nil
}

// IsPending reports whether the request can still change.
func (r *BookingRequest) IsPending() bool {
	return r.Status == StatusPending
}

// LastEndDate is the latest end date across entries.
func (r *BookingRequest) LastEndDate() time.Time {
	var last time.Time
	for _, e := range r.Entries {
		if e.EndDate.After(last) {
			last = e.EndDate
		}
	}
	return last
}

// IsActive reports whether the request still matters to its owner on the given day:
// not rejected and at least one entry ends today or later.
func (r *BookingRequest) IsActive(today time.Time) bool {
	if r.Status == StatusRejected {
		return false
	}
	return !daterange.DateOnly(r.LastEndDate()).Before(daterange.DateOnly(today))
}

// HasItem reports whether any entry references itemID.
func (r *BookingRequest) HasItem(itemID string) bool {
	for _, e := range r.Entries {
		if e.ItemID == itemID {
			return true
		}
	}
	return false
}

// RequestFilter narrows ListBookingRequests. Zero values mean "any".
type RequestFilter struct {
	OwnerID string
	Status  Status
	ItemID  string
	Limit   int
}

// DashboardStats summarises booking requests for admins.
type DashboardStats struct {
	Total  int              `json:"total"`
	Counts map[Status]int   `json:"counts"`
	Recent []BookingRequest `json:"recent"`
}

// BookingEvent is the payload published on lifecycle transitions.
type BookingEvent struct {
	Request    BookingRequest `json:"request"`
	ActorID    string         `json:"actor_id"`
	OwnerEmail string         `json:"owner_email,omitempty"`
	At         time.Time      `json:"at"`
}

// ApprovalNotice carries everything needed to tell an owner that a request was approved.
type ApprovalNotice struct {
	Recipient     string          `json:"recipient"`
	RecipientName string          `json:"recipient_name"`
	Request       BookingRequest  `json:"request"`
	Items         map[string]Item `json:"items"`
}

// ItemDescription resolves an entry's item for display.
func (n *ApprovalNotice) ItemDescription(itemID string) string {
	if item, ok := n.Items[itemID]; ok && item.Description != "" {
		return item.Description
	}
	return itemID
}
