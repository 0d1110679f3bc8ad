// Package availability computes which days an item is blocked by approved bookings.
//
// Only approved requests block. Pending and rejected requests are ignored. The
// functions are pure and safe to call concurrently with anything else.
package availability

import (
	"time"

	"itembook/internal/daterange"
	"itembook/internal/models"
)

// BlockedRanges returns the date ranges of every approved entry referencing itemID.
// Ranges are not merged; callers test membership.
func BlockedRanges(itemID string, requests []models.BookingRequest) []daterange.Range {
	var ranges []daterange.Range
	for i := range requests {
		req := &requests[i]
		if req.Status != models.StatusApproved {
			continue
		}
		for _, e := range req.Entries {
			if e.ItemID == itemID {
				ranges = append(ranges, e.Range())
			}
		}
	}
	return ranges
}

// IsBlockedOn reports whether date falls inside any approved range for itemID.
func IsBlockedOn(itemID string, date time.Time, requests []models.BookingRequest) bool {
	return anyContains(BlockedRanges(itemID, requests), date)
}

func anyContains(ranges []daterange.Range, date time.Time) bool {
	for _, r := range ranges {
		if r.Contains(date) {
			return true
		}
	}
	return false
}

// Index holds blocked ranges per item, built once from a request set.
type Index struct {
	byItem map[string][]daterange.Range
}

// NewIndex builds an index from approved requests.
func NewIndex(requests []models.BookingRequest) *Index {
	ix := &Index{byItem: make(map[string][]daterange.Range)}
	for i := range requests {
		req := &requests[i]
		if req.Status != models.StatusApproved {
			continue
		}
		for _, e := range req.Entries {
			ix.byItem[e.ItemID] = append(ix.byItem[e.ItemID], e.Range())
		}
	}
	return ix
}

// Blocked returns the ranges recorded for itemID.
func (ix *Index) Blocked(itemID string) []daterange.Range {
	return ix.byItem[itemID]
}

// IsBlockedOn answers the same question as the package-level function.
func (ix *Index) IsBlockedOn(itemID string, date time.Time) bool {
	return anyContains(ix.byItem[itemID], date)
}

// ConflictsWith reports whether r overlaps any blocked range of itemID.
func (ix *Index) ConflictsWith(itemID string, r daterange.Range) bool {
	for _, b := range ix.byItem[itemID] {
		if b.Overlaps(r) {
			return true
		}
	}
	return false
}
