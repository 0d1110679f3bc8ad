package service

import (
	"context"
	"time"

	"itembook/internal/models"
)

type BookingRepository interface {
	CreateBookingRequest(ctx context.Context, req *models.BookingRequest) error
	GetBookingRequest(ctx context.Context, id string) (*models.BookingRequest, error)
	ListBookingRequests(ctx context.Context, filter models.RequestFilter) ([]models.BookingRequest, error)
	UpdateStatusIfPending(ctx context.Context, id string, status models.Status, now time.Time) (*models.BookingRequest, error)
	DeleteIfPending(ctx context.Context, id string) error
	ReplaceEntriesIfPending(ctx context.Context, id string, entries []models.LineEntry, now time.Time) (*models.BookingRequest, error)
	CountByStatus(ctx context.Context) (map[models.Status]int, error)
}

type ItemRepository interface {
	CreateItem(ctx context.Context, item *models.Item) error
	GetItem(ctx context.Context, id string) (*models.Item, error)
	ListItems(ctx context.Context, featuredOnly bool) ([]models.Item, error)
	GetItemsByIDs(ctx context.Context, ids []string) (map[string]models.Item, error)
	UpdateItem(ctx context.Context, item *models.Item) error
	DeleteItem(ctx context.Context, id string) error
}

type UserRepository interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUserRole(ctx context.Context, email string, role models.Role) error
	DeleteUserByEmail(ctx context.Context, email string) error
}

// CartStore persists carts; Get returns an empty cart when none is stored.
type CartStore interface {
	Get(ctx context.Context, userID string) (*models.Cart, error)
	Save(ctx context.Context, cart *models.Cart) error
	Delete(ctx context.Context, userID string) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload any) error
}

// ApprovalNotifier hands an approval notice to a best-effort delivery channel.
type ApprovalNotifier interface {
	Dispatch(ctx context.Context, notice models.ApprovalNotice) error
}
