package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"itembook/internal/models"

	"github.com/jmoiron/sqlx"
)

const requestColumns = `id, user_id, status, created_at, updated_at, version`

type entryRow struct {
	RequestID string `db:"request_id"`
	Position  int    `db:"position"`
	models.LineEntry
}

// CreateBookingRequest stores a request and its entries atomically.
func (db *DB) CreateBookingRequest(ctx context.Context, req *models.BookingRequest) error {
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO booking_requests (`+requestColumns+`)
			VALUES (:id, :user_id, :status, :created_at, :updated_at, :version)`, req); err != nil {
			return fmt.Errorf("insert booking request: %w", err)
		}
		return insertEntries(ctx, tx, req.ID, req.Entries)
	})
}

func insertEntries(ctx context.Context, tx *sqlx.Tx, requestID string, entries []models.LineEntry) error {
	for i, e := range entries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO booking_line_entries (request_id, position, item_id, quantity, start_date, end_date)
			VALUES (?, ?, ?, ?, ?, ?)`,
			requestID, i, e.ItemID, e.Quantity, e.StartDate, e.EndDate,
		); err != nil {
			return fmt.Errorf("insert line entry %d: %w", i, err)
		}
	}
	return nil
}

// GetBookingRequest returns a request with its entries or ErrNotFound.
func (db *DB) GetBookingRequest(ctx context.Context, id string) (*models.BookingRequest, error) {
	return getRequest(ctx, db.DB, id)
}

func getRequest(ctx context.Context, q sqlx.QueryerContext, id string) (*models.BookingRequest, error) {
	var req models.BookingRequest
	err := sqlx.GetContext(ctx, q, &req, `SELECT `+requestColumns+` FROM booking_requests WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking request: %w", err)
	}
	list := []models.BookingRequest{req}
	if err := loadEntries(ctx, q, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// ListBookingRequests returns requests matching filter, newest first.
func (db *DB) ListBookingRequests(ctx context.Context, filter models.RequestFilter) ([]models.BookingRequest, error) {
	var (
		where []string
		args  []any
	)
	if filter.OwnerID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.ItemID != "" {
		where = append(where, "id IN (SELECT request_id FROM booking_line_entries WHERE item_id = ?)")
		args = append(args, filter.ItemID)
	}

	query := `SELECT ` + requestColumns + ` FROM booking_requests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	requests := []models.BookingRequest{}
	if err := db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("list booking requests: %w", err)
	}
	if err := loadEntries(ctx, db.DB, requests); err != nil {
		return nil, err
	}
	return requests, nil
}

func loadEntries(ctx context.Context, q sqlx.QueryerContext, requests []models.BookingRequest) error {
	if len(requests) == 0 {
		return nil
	}
	ids := make([]string, len(requests))
	pos := make(map[string]int, len(requests))
	for i, r := range requests {
		ids[i] = r.ID
		pos[r.ID] = i
	}

	query, args, err := sqlx.In(`
		SELECT request_id, position, item_id, quantity, start_date, end_date
		FROM booking_line_entries
		WHERE request_id IN (?)
		ORDER BY request_id, position`, ids)
	if err != nil {
		return err
	}

	var rows []entryRow
	if err := sqlx.SelectContext(ctx, q, &rows, sqlx.Rebind(sqlx.QUESTION, query), args...); err != nil {
		return fmt.Errorf("load line entries: %w", err)
	}
	for _, row := range rows {
		i := pos[row.RequestID]
		requests[i].Entries = append(requests[i].Entries, row.LineEntry)
	}
	return nil
}

// UpdateStatusIfPending sets status only while the request is still pending.
// Returns ErrNotPending when another writer got there first.
func (db *DB) UpdateStatusIfPending(ctx context.Context, id string, status models.Status, now time.Time) (*models.BookingRequest, error) {
	var updated *models.BookingRequest
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE booking_requests
			SET status = ?, updated_at = ?, version = version + 1
			WHERE id = ? AND status = ?`,
			status, now, id, models.StatusPending)
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if err := pendingGuard(ctx, tx, res, id); err != nil {
			return err
		}
		updated, err = getRequest(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteIfPending removes a request only while it is pending.
func (db *DB) DeleteIfPending(ctx context.Context, id string) error {
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM booking_requests WHERE id = ? AND status = ?`, id, models.StatusPending)
		if err != nil {
			return fmt.Errorf("delete booking request: %w", err)
		}
		return pendingGuard(ctx, tx, res, id)
	})
}

// ReplaceEntriesIfPending swaps the entries of a pending request.
func (db *DB) ReplaceEntriesIfPending(ctx context.Context, id string, entries []models.LineEntry, now time.Time) (*models.BookingRequest, error) {
	var updated *models.BookingRequest
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE booking_requests
			SET updated_at = ?, version = version + 1
			WHERE id = ? AND status = ?`,
			now, id, models.StatusPending)
		if err != nil {
			return fmt.Errorf("touch booking request: %w", err)
		}
		if err := pendingGuard(ctx, tx, res, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM booking_line_entries WHERE request_id = ?`, id); err != nil {
			return fmt.Errorf("clear line entries: %w", err)
		}
		if err := insertEntries(ctx, tx, id, entries); err != nil {
			return err
		}
		updated, err = getRequest(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// pendingGuard turns a zero-row conditional write into ErrNotFound or ErrNotPending.
func pendingGuard(ctx context.Context, tx *sqlx.Tx, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var exists int
	if err := tx.GetContext(ctx, &exists, `SELECT COUNT(*) FROM booking_requests WHERE id = ?`, id); err != nil {
		return fmt.Errorf("check booking request: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}
	return ErrNotPending
}

// CountByStatus returns the number of requests per status.
func (db *DB) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	var rows []struct {
		Status models.Status `db:"status"`
		Count  int           `db:"n"`
	}
	if err := db.SelectContext(ctx, &rows,
		`SELECT status, COUNT(*) AS n FROM booking_requests GROUP BY status`); err != nil {
		return nil, fmt.Errorf("count booking requests: %w", err)
	}
	counts := map[models.Status]int{
		models.StatusPending:  0,
		models.StatusApproved: 0,
		models.StatusRejected: 0,
	}
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
