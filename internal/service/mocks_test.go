package service

import (
	"context"
	"time"

	"itembook/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockBookings struct {
	mock.Mock
}

func (m *mockBookings) CreateBookingRequest(ctx context.Context, req *models.BookingRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockBookings) GetBookingRequest(ctx context.Context, id string) (*models.BookingRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BookingRequest), args.Error(1)
}

func (m *mockBookings) ListBookingRequests(ctx context.Context, f models.RequestFilter) ([]models.BookingRequest, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]models.BookingRequest), args.Error(1)
}

func (m *mockBookings) UpdateStatusIfPending(ctx context.Context, id string, s models.Status, now time.Time) (*models.BookingRequest, error) {
	args := m.Called(ctx, id, s, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BookingRequest), args.Error(1)
}

func (m *mockBookings) DeleteIfPending(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockBookings) ReplaceEntriesIfPending(ctx context.Context, id string, e []models.LineEntry, now time.Time) (*models.BookingRequest, error) {
	args := m.Called(ctx, id, e, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BookingRequest), args.Error(1)
}

func (m *mockBookings) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[models.Status]int), args.Error(1)
}

type mockItems struct {
	mock.Mock
}

func (m *mockItems) CreateItem(ctx context.Context, i *models.Item) error { return m.Called(ctx, i).Error(0) }
func (m *mockItems) UpdateItem(ctx context.Context, i *models.Item) error { return m.Called(ctx, i).Error(0) }
func (m *mockItems) DeleteItem(ctx context.Context, id string) error    { return m.Called(ctx, id).Error(0) }

func (m *mockItems) GetItem(ctx context.Context, id string) (*models.Item, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Item), args.Error(1)
}

func (m *mockItems) ListItems(ctx context.Context, featured bool) ([]models.Item, error) {
	args := m.Called(ctx, featured)
	return args.Get(0).([]models.Item), args.Error(1)
}

func (m *mockItems) GetItemsByIDs(ctx context.Context, ids []string) (map[string]models.Item, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]models.Item), args.Error(1)
}

type mockUsers struct {
	mock.Mock
}

func (m *mockUsers) CreateUser(ctx context.Context, u *models.User) error { return m.Called(ctx, u).Error(0) }

func (m *mockUsers) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUsers) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUsers) ListUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *mockUsers) UpdateUserRole(ctx context.Context, email string, r models.Role) error {
	return m.Called(ctx, email, r).Error(0)
}

func (m *mockUsers) DeleteUserByEmail(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) PublishJSON(et string, p any) error { return m.Called(et, p).Error(0) }

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Dispatch(ctx context.Context, n models.ApprovalNotice) error {
	return m.Called(ctx, n).Error(0)
}
