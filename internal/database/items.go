package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"itembook/internal/models"

	"github.com/jmoiron/sqlx"
)

const itemColumns = `id, description, content_summary, storage_details, storage_location,
	is_available, featured, created_at, updated_at`

// CreateItem inserts an item.
func (db *DB) CreateItem(ctx context.Context, item *models.Item) error {
	_, err := db.NamedExecContext(ctx, `
		INSERT INTO items (`+itemColumns+`)
		VALUES (:id, :description, :content_summary, :storage_details, :storage_location,
			:is_available, :featured, :created_at, :updated_at)`, item)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// GetItem returns an item or ErrNotFound.
func (db *DB) GetItem(ctx context.Context, id string) (*models.Item, error) {
	var item models.Item
	err := db.GetContext(ctx, &item, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &item, nil
}

// ListItems returns items, newest first. featuredOnly narrows to the featured listing.
func (db *DB) ListItems(ctx context.Context, featuredOnly bool) ([]models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items`
	if featuredOnly {
		query += ` WHERE featured = 1`
	}
	query += ` ORDER BY created_at DESC`

	items := []models.Item{}
	if err := db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// GetItemsByIDs returns the items that exist among ids, keyed by id.
func (db *DB) GetItemsByIDs(ctx context.Context, ids []string) (map[string]models.Item, error) {
	out := make(map[string]models.Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT `+itemColumns+` FROM items WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var items []models.Item
	if err := db.SelectContext(ctx, &items, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}
	for _, it := range items {
		out[it.ID] = it
	}
	return out, nil
}

// UpdateItem overwrites the editable fields of an item.
func (db *DB) UpdateItem(ctx context.Context, item *models.Item) error {
	res, err := db.NamedExecContext(ctx, `
		UPDATE items SET
			description = :description,
			content_summary = :content_summary,
			storage_details = :storage_details,
			storage_location = :storage_location,
			is_available = :is_available,
			featured = :featured,
			updated_at = :updated_at
		WHERE id = :id`, item)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return expectOneRow(res)
}

// DeleteItem removes an item unless a booking request still references it.
func (db *DB) DeleteItem(ctx context.Context, id string) error {
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		var refs int
		if err := tx.GetContext(ctx, &refs,
			`SELECT COUNT(*) FROM booking_line_entries WHERE item_id = ?`, id); err != nil {
			return fmt.Errorf("count references: %w", err)
		}
		if refs > 0 {
			return ErrItemReferenced
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete item: %w", err)
		}
		return expectOneRow(res)
	})
}
