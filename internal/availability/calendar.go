package availability

import (
	"time"

	"itembook/internal/daterange"
	"itembook/internal/models"
)

// MaxCalendarDays is the widest window Calendar accepts.
const MaxCalendarDays = 90

const (
	ReasonBooked      = "booked"
	ReasonUnavailable = "unavailable"
)

// DayStatus is the availability of one item on one day.
type DayStatus struct {
	Date      string `json:"date"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// ItemCalendar lists per-day availability for an item.
type ItemCalendar struct {
	ItemID       string      `json:"id"`
	Description  string      `json:"description"`
	Availability []DayStatus `json:"availability"`
}

// ValidateWindow checks a calendar window.
func ValidateWindow(start, end time.Time) error {
	r := daterange.New(start, end)
	if r.Start.After(r.End) {
		return models.NewValidationError("start_date must be before or equal to end_date")
	}
	if r.Len()-1 > MaxCalendarDays {
		return models.NewValidationError("date range exceeds maximum of %d days", MaxCalendarDays)
	}
	return nil
}

// Calendar builds per-day availability for items over [start, end].
// Items switched off by an admin are unavailable on every day.
func Calendar(items []models.Item, start, end time.Time, ix *Index) []ItemCalendar {
	days := daterange.New(start, end).Days()
	out := make([]ItemCalendar, 0, len(items))
	for _, item := range items {
		cal := ItemCalendar{
			ItemID:       item.ID,
			Description:  item.Description,
			Availability: make([]DayStatus, 0, len(days)),
		}
		for _, d := range days {
			st := DayStatus{Date: daterange.Format(d), Available: true}
			switch {
			case !item.IsAvailable:
				st.Available, st.Reason = false, ReasonUnavailable
			case ix.IsBlockedOn(item.ID, d):
				st.Available, st.Reason = false, ReasonBooked
			}
			cal.Availability = append(cal.Availability, st)
		}
		out = append(out, cal)
	}
	return out
}
