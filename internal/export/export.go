package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"itembook/internal/daterange"
	"itembook/internal/models"

	"github.com/rs/zerolog"
)

const (
	requestsSheet = "Requests"
	entriesSheet  = "Line entries"
	filePrefix    = "export_"
)

var (
	requestColumns = []string{"Request ID", "Owner", "Owner email", "Status", "Created", "Updated", "Entries"}
	entryColumns   = []string{"Request ID", "Status", "Item ID", "Item", "Quantity", "Start date", "End date"}
)

// Source is the read side the exporter needs.
type Source interface {
	ListBookingRequests(ctx context.Context, filter models.RequestFilter) ([]models.BookingRequest, error)
	ListItems(ctx context.Context, featuredOnly bool) ([]models.Item, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

// Exporter renders booking requests as an Excel workbook.
type Exporter struct {
	source Source
	dir    string
	logger zerolog.Logger
	now    func() time.Time
}

func NewExporter(source Source, dir string, logger *zerolog.Logger) *Exporter {
	return &Exporter{
		source: source,
		dir:    dir,
		logger: logger.With().Str("component", "export").Logger(),
		now:    time.Now,
	}
}

// Write streams a workbook with every request matching filter.
// Only requests created in [from, to) are included when from is non-zero.
func (e *Exporter) Write(ctx context.Context, out io.Writer, filter models.RequestFilter, from, to time.Time) error {
	w, err := e.build(ctx, filter, from, to)
	if err != nil {
		return err
	}
	defer w.close()
	return w.save(out)
}

func (e *Exporter) build(ctx context.Context, filter models.RequestFilter, from, to time.Time) (*sheetWriter, error) {
	requests, err := e.source.ListBookingRequests(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list booking requests: %w", err)
	}
	items, err := e.source.ListItems(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	users, err := e.source.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	itemByID := make(map[string]models.Item, len(items))
	for _, it := range items {
		itemByID[it.ID] = it
	}
	userByID := make(map[string]models.User, len(users))
	for _, u := range users {
		userByID[u.ID] = u
	}

	w := newSheetWriter()
	if err := e.writeSheets(w, requests, itemByID, userByID, from, to); err != nil {
		_ = w.close()
		return nil, err
	}
	return w, nil
}

func (e *Exporter) writeSheets(w *sheetWriter, requests []models.BookingRequest, items map[string]models.Item,
	users map[string]models.User, from, to time.Time) error {
	if err := w.addSheet(requestsSheet); err != nil {
		return err
	}
	if err := w.writeHeader(requestColumns); err != nil {
		return err
	}

	var included []models.BookingRequest
	for _, r := range requests {
		if !from.IsZero() && (r.CreatedAt.Before(from) || !r.CreatedAt.Before(to)) {
			continue
		}
		included = append(included, r)
		owner := users[r.UserID]
		if err := w.writeRow([]any{
			r.ID, owner.Name, owner.Email, string(r.Status),
			r.CreatedAt.UTC().Format(time.RFC3339), r.UpdatedAt.UTC().Format(time.RFC3339), len(r.Entries),
		}); err != nil {
			return err
		}
	}

	if err := w.addSheet(entriesSheet); err != nil {
		return err
	}
	if err := w.writeHeader(entryColumns); err != nil {
		return err
	}
	for _, r := range included {
		for _, en := range r.Entries {
			desc := en.ItemID
			if it, ok := items[en.ItemID]; ok {
				desc = it.Description
			}
			if err := w.writeRow([]any{
				r.ID, string(r.Status), en.ItemID, desc, en.Quantity,
				daterange.Format(en.StartDate), daterange.Format(en.EndDate),
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// ExportPreviousMonth writes last month's requests to the export directory and returns the file path.
func (e *Exporter) ExportPreviousMonth(ctx context.Context) (string, error) {
	now := e.now().UTC()
	to := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	from := to.AddDate(0, -1, 0)

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	path := filepath.Join(e.dir, fmt.Sprintf("%s%s.xlsx", filePrefix, from.Format("2006-01")))

	w, err := e.build(ctx, models.RequestFilter{}, from, to)
	if err != nil {
		return "", err
	}
	defer w.close()
	if err := w.saveToFile(path); err != nil {
		return "", fmt.Errorf("save %s: %w", path, err)
	}
	e.logger.Info().Str("path", path).Str("month", from.Format("2006-01")).Msg("monthly export written")
	return path, nil
}

// Run is the scheduled job body.
func (e *Exporter) Run(ctx context.Context) {
	if _, err := e.ExportPreviousMonth(ctx); err != nil {
		e.logger.Error().Err(err).Msg("monthly export failed")
	}
}
