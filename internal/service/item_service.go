package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"itembook/internal/database"
	"itembook/internal/models"

	"github.com/google/uuid"
)

// ItemService manages the item catalogue.
type ItemService struct {
	items ItemRepository
	now   func() time.Time
}

func NewItemService(items ItemRepository) *ItemService {
	return &ItemService{items: items, now: func() time.Time { return time.Now().UTC() }}
}

func itemNotFound(id string) error {
	return &models.NotFoundError{Resource: "item", ID: id}
}

func (s *ItemService) List(ctx context.Context, featuredOnly bool) ([]models.Item, error) {
	return s.items.ListItems(ctx, featuredOnly)
}

func (s *ItemService) Get(ctx context.Context, id string) (*models.Item, error) {
	item, err := s.items.GetItem(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, itemNotFound(id)
	}
	return item, err
}

func (s *ItemService) Create(ctx context.Context, actor models.Actor, item models.Item) (*models.Item, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}
	now := s.now()
	item.ID = uuid.NewString()
	item.CreatedAt, item.UpdatedAt = now, now
	if err := s.items.CreateItem(ctx, &item); err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	return &item, nil
}

func (s *ItemService) Update(ctx context.Context, actor models.Actor, id string, changes models.Item) (*models.Item, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := changes.Validate(); err != nil {
		return nil, err
	}
	changes.ID = existing.ID
	changes.CreatedAt = existing.CreatedAt
	changes.UpdatedAt = s.now()
	if err := s.items.UpdateItem(ctx, &changes); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, itemNotFound(id)
		}
		return nil, fmt.Errorf("update item: %w", err)
	}
	return &changes, nil
}

// Delete removes an item that no booking request references.
func (s *ItemService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	err := s.items.DeleteItem(ctx, id)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return itemNotFound(id)
	case errors.Is(err, database.ErrItemReferenced):
		return &models.InvalidTransitionError{Message: "item is referenced by booking requests and cannot be deleted"}
	case err != nil:
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}
