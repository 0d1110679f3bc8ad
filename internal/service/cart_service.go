package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"itembook/internal/daterange"
	"itembook/internal/database"
	"itembook/internal/models"

	"github.com/rs/zerolog"
)

// CartService keeps per-user carts and compiles them into booking requests.
type CartService struct {
	store    CartStore
	items    ItemRepository
	bookings *BookingService
	logger   zerolog.Logger
	now      func() time.Time
}

func NewCartService(store CartStore, items ItemRepository, bookings *BookingService, logger *zerolog.Logger) *CartService {
	return &CartService{
		store:    store,
		items:    items,
		bookings: bookings,
		logger:   logger.With().Str("component", "cart_service").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *CartService) Get(ctx context.Context, actor models.Actor) (*models.Cart, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	c, err := s.store.Get(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return c, nil
}

// Add puts an item selection in the cart, merging quantities for an identical selection.
func (s *CartService) Add(ctx context.Context, actor models.Actor, item models.CartItem) (*models.Cart, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if item.ItemID == "" {
		return nil, models.NewValidationError("item id is required")
	}
	if item.Quantity < 1 {
		return nil, models.NewValidationError("quantity must be at least 1")
	}
	if !daterange.New(item.StartDate, item.EndDate).Valid() {
		return nil, models.NewValidationError("start date must be before end date")
	}
	if _, err := s.items.GetItem(ctx, item.ItemID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &models.NotFoundError{Resource: "item", ID: item.ItemID}
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	item.StartDate = daterange.DateOnly(item.StartDate)
	item.EndDate = daterange.DateOnly(item.EndDate)

	return s.mutate(ctx, actor, func(c *models.Cart) error {
		c.Add(item)
		return nil
	})
}

func (s *CartService) SetQuantity(ctx context.Context, actor models.Actor, itemID string, qty int) (*models.Cart, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if qty < 1 {
		return nil, models.NewValidationError("quantity must be at least 1")
	}
	return s.mutate(ctx, actor, func(c *models.Cart) error {
		if !c.SetQuantity(itemID, qty) {
			return &models.NotFoundError{Resource: "cart item", ID: itemID}
		}
		return nil
	})
}

func (s *CartService) Remove(ctx context.Context, actor models.Actor, itemID string) (*models.Cart, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	return s.mutate(ctx, actor, func(c *models.Cart) error {
		if !c.Remove(itemID) {
			return &models.NotFoundError{Resource: "cart item", ID: itemID}
		}
		return nil
	})
}

func (s *CartService) Clear(ctx context.Context, actor models.Actor) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, actor.UserID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (s *CartService) mutate(ctx context.Context, actor models.Actor, fn func(c *models.Cart) error) (*models.Cart, error) {
	c, err := s.store.Get(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	c.UserID = actor.UserID
	c.UpdatedAt = s.now()
	if err := s.store.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	return c, nil
}

// Submit compiles the cart into one booking request, one entry per cart item in order,
// and clears the cart on success.
func (s *CartService) Submit(ctx context.Context, actor models.Actor) (*models.BookingRequest, error) {
	c, err := s.Get(ctx, actor)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, models.NewValidationError("cart is empty")
	}

	req, err := s.bookings.CreateBookingRequest(ctx, actor, c.LineEntries())
	if err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, actor.UserID); err != nil {
		s.logger.Error().Err(err).Str("user_id", actor.UserID).Msg("cart not cleared after submit")
	}
	return req, nil
}
