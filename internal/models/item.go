package models

import "time"

// Item is a rentable storage unit.
type Item struct {
	ID              string    `json:"id" db:"id"`
	Description     string    `json:"description" db:"description"`
	ContentSummary  string    `json:"content_summary" db:"content_summary"`
	StorageDetails  string    `json:"storage_details" db:"storage_details"`
	StorageLocation *string   `json:"storage_location,omitempty" db:"storage_location"`
	IsAvailable     bool      `json:"is_available" db:"is_available"`
	Featured        bool      `json:"featured" db:"featured"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// Validate checks fields required on create and update.
func (i *Item) Validate() error {
	if i.Description == "" {
		return NewValidationError("description is required")
	}
	if i.ContentSummary == "" {
		return NewValidationError("content summary is required")
	}
	if i.StorageDetails == "" {
		return NewValidationError("storage details are required")
	}
	return nil
}
