package models

import (
	"time"

	"itembook/internal/daterange"
)

// CartItem is an item selection waiting to be submitted.
type CartItem struct {
	ItemID    string    `json:"item_id"`
	Quantity  int       `json:"quantity"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

func (c CartItem) sameSelection(other CartItem) bool {
	return c.ItemID == other.ItemID &&
		daterange.DateOnly(c.StartDate).Equal(daterange.DateOnly(other.StartDate)) &&
		daterange.DateOnly(c.EndDate).Equal(daterange.DateOnly(other.EndDate))
}

// Cart is a user's ordered selection list.
type Cart struct {
	UserID    string     `json:"user_id"`
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Add appends item, or merges quantities when the same item and dates are already present.
func (c *Cart) Add(item CartItem) {
	for i := range c.Items {
		if c.Items[i].sameSelection(item) {
			c.Items[i].Quantity += item.Quantity
			return
		}
	}
	c.Items = append(c.Items, item)
}

// SetQuantity changes the quantity of every selection of itemID. Returns false if absent.
func (c *Cart) SetQuantity(itemID string, qty int) bool {
	found := false
	for i := range c.Items {
		if c.Items[i].ItemID == itemID {
			c.Items[i].Quantity = qty
			found = true
		}
	}
	return found
}

// Remove drops every selection of itemID. Returns false if absent.
func (c *Cart) Remove(itemID string) bool {
	kept := c.Items[:0]
	for _, it := range c.Items {
		if it.ItemID != itemID {
			kept = append(kept, it)
		}
	}
	removed := len(kept) != len(c.Items)
	c.Items = kept
	return removed
}

// IsEmpty reports whether nothing is selected.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// LineEntries converts the cart into request entries, one per cart item in cart order.
func (c *Cart) LineEntries() []LineEntry {
	entries := make([]LineEntry, 0, len(c.Items))
	for _, it := range c.Items {
		entries = append(entries, LineEntry{
			ItemID:    it.ItemID,
			Quantity:  it.Quantity,
			StartDate: it.StartDate,
			EndDate:   it.EndDate,
		})
	}
	return entries
}
