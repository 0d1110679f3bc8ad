package models

import (
	"encoding/json"
	"fmt"
	"time"

	"itembook/internal/daterange"
)

// datedSelection is the wire form shared by line entries and cart items.
// Dates travel as YYYY-MM-DD.
type datedSelection struct {
	ItemID    string `json:"item_id"`
	Quantity  int    `json:"quantity"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func newDatedSelection(itemID string, qty int, start, end time.Time) datedSelection {
	return datedSelection{
		ItemID:    itemID,
		Quantity:  qty,
		StartDate: daterange.Format(start),
		EndDate:   daterange.Format(end),
	}
}

func (d datedSelection) dates() (time.Time, time.Time, error) {
	start, err := parseWireDate(d.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date: %w", err)
	}
	end, err := parseWireDate(d.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end_date: %w", err)
	}
	return start, end, nil
}

// parseWireDate accepts YYYY-MM-DD and, for values stored by older builds, RFC 3339.
func parseWireDate(s string) (time.Time, error) {
	if t, err := daterange.Parse(s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return daterange.DateOnly(t), nil
}

func (e LineEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(newDatedSelection(e.ItemID, e.Quantity, e.StartDate, e.EndDate))
}

func (e *LineEntry) UnmarshalJSON(data []byte) error {
	var w datedSelection
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	start, end, err := w.dates()
	if err != nil {
		return err
	}
	*e = LineEntry{ItemID: w.ItemID, Quantity: w.Quantity, StartDate: start, EndDate: end}
	return nil
}

func (c CartItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(newDatedSelection(c.ItemID, c.Quantity, c.StartDate, c.EndDate))
}

func (c *CartItem) UnmarshalJSON(data []byte) error {
	var w datedSelection
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	start, end, err := w.dates()
	if err != nil {
		return err
	}
	*c = CartItem{ItemID: w.ItemID, Quantity: w.Quantity, StartDate: start, EndDate: end}
	return nil
}
