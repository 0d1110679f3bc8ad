package api

import (
	"itembook/internal/availability"
	"itembook/internal/daterange"
	"itembook/internal/models"
)

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin super-admin"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type updateRoleRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=user admin super-admin"`
}

type itemRequest struct {
	Description     string  `json:"description" validate:"required"`
	ContentSummary  string  `json:"content_summary" validate:"required"`
	StorageDetails  string  `json:"storage_details" validate:"required"`
	StorageLocation *string `json:"storage_location"`
	IsAvailable     *bool   `json:"is_available"`
	Featured        bool    `json:"featured"`
}

func (r itemRequest) toItem() models.Item {
	available := true
	if r.IsAvailable != nil {
		available = *r.IsAvailable
	}
	return models.Item{
		Description:     r.Description,
		ContentSummary:  r.ContentSummary,
		StorageDetails:  r.StorageDetails,
		StorageLocation: r.StorageLocation,
		IsAvailable:     available,
		Featured:        r.Featured,
	}
}

// entryRequest carries dates as YYYY-MM-DD strings.
type entryRequest struct {
	ItemID    string `json:"item_id" validate:"required"`
	Quantity  int    `json:"quantity"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

func (e entryRequest) toEntry() (models.LineEntry, error) {
	start, err := daterange.Parse(e.StartDate)
	if err != nil {
		return models.LineEntry{}, err
	}
	end, err := daterange.Parse(e.EndDate)
	if err != nil {
		return models.LineEntry{}, err
	}
	return models.LineEntry{ItemID: e.ItemID, Quantity: e.Quantity, StartDate: start, EndDate: end}, nil
}

type entriesRequest struct {
	Items []entryRequest `json:"items" validate:"dive"`
}

func (r entriesRequest) toEntries() ([]models.LineEntry, error) {
	entries := make([]models.LineEntry, 0, len(r.Items))
	for _, it := range r.Items {
		e, err := it.toEntry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

// statusRequest is checked by the booking service after existence and role.
type statusRequest struct {
	Status string `json:"status"`
}

type availabilityRequest struct {
	StartDate string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string   `json:"end_date" validate:"required,datetime=2006-01-02"`
	ItemIDs   []string `json:"item_ids"`
}

type availabilityResponse struct {
	Items  []availability.ItemCalendar `json:"items"`
	Period struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"period"`
}

type blockedResponse struct {
	ItemID  string            `json:"item_id"`
	Date    string            `json:"date,omitempty"`
	Blocked *bool             `json:"blocked,omitempty"`
	Ranges  []daterange.Range `json:"ranges"`
}

type myRequestsResponse struct {
	Active []models.BookingRequest `json:"active"`
	Past   []models.BookingRequest `json:"past"`
}

type messageResponse struct {
	Message string `json:"message"`
}
