package google

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"itembook/internal/daterange"
	"itembook/internal/events"
	"itembook/internal/models"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const mirrorQueueSize = 100

var headerRow = []any{"Request ID", "Owner", "Status", "Items", "Created", "Updated"}

// valuesAPI is the slice of the Sheets values API the mirror uses.
type valuesAPI interface {
	Append(ctx context.Context, spreadsheetID, rng string, vr *sheets.ValueRange) (*sheets.AppendValuesResponse, error)
	Update(ctx context.Context, spreadsheetID, rng string, vr *sheets.ValueRange) error
}

type googleValues struct {
	srv *sheets.Service
}

func (g googleValues) Append(ctx context.Context, id, rng string, vr *sheets.ValueRange) (*sheets.AppendValuesResponse, error) {
	return g.srv.Spreadsheets.Values.Append(id, rng, vr).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
}

func (g googleValues) Update(ctx context.Context, id, rng string, vr *sheets.ValueRange) error {
	_, err := g.srv.Spreadsheets.Values.Update(id, rng, vr).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// SheetsService mirrors approved booking requests into a spreadsheet, one row per request.
type SheetsService struct {
	values        valuesAPI
	spreadsheetID string
	sheetName     string
	logger        zerolog.Logger

	mu       sync.RWMutex
	rowCache map[string]int

	queue chan models.BookingEvent
}

// NewSheetsService authenticates with a service-account credentials file.
func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID, sheetName string, logger *zerolog.Logger) (*SheetsService, error) {
	srv, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return newSheetsService(googleValues{srv: srv}, spreadsheetID, sheetName, logger), nil
}

func newSheetsService(values valuesAPI, spreadsheetID, sheetName string, logger *zerolog.Logger) *SheetsService {
	return &SheetsService{
		values:        values,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger.With().Str("component", "sheets").Logger(),
		rowCache:      make(map[string]int),
		queue:         make(chan models.BookingEvent, mirrorQueueSize),
	}
}

// EnsureHeader writes the header row.
func (s *SheetsService) EnsureHeader(ctx context.Context) error {
	rng := fmt.Sprintf("%s!A1:F1", s.sheetName)
	if err := s.values.Update(ctx, s.spreadsheetID, rng, &sheets.ValueRange{Values: [][]any{headerRow}}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// UpsertRequest writes req to its cached row, or appends a new row.
func (s *SheetsService) UpsertRequest(ctx context.Context, req *models.BookingRequest, ownerEmail string) error {
	vr := &sheets.ValueRange{Values: [][]any{requestRowValues(req, ownerEmail)}}

	if row, ok := s.getCachedRow(req.ID); ok {
		rng := fmt.Sprintf("%s!A%d:F%d", s.sheetName, row, row)
		if err := s.values.Update(ctx, s.spreadsheetID, rng, vr); err != nil {
			return fmt.Errorf("update row %d: %w", row, err)
		}
		return nil
	}

	resp, err := s.values.Append(ctx, s.spreadsheetID, s.sheetName+"!A:F", vr)
	if err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	if resp != nil && resp.Updates != nil {
		if row, ok := parseUpdatedRow(resp.Updates.UpdatedRange); ok {
			s.setCachedRow(req.ID, row)
		}
	}
	return nil
}

// Subscribe mirrors every approval published on bus. Publishing only queues the
// write; a single worker applies them in order until ctx is cancelled.
func (s *SheetsService) Subscribe(ctx context.Context, bus *events.EventBus) {
	bus.Subscribe(events.BookingApproved, func(e events.Event) error {
		var payload models.BookingEvent
		if err := e.Decode(&payload); err != nil {
			return err
		}
		select {
		case s.queue <- payload:
			return nil
		default:
			return fmt.Errorf("mirror request %s: queue full", payload.Request.ID)
		}
	})
	go s.mirror(ctx)
}

func (s *SheetsService) mirror(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-s.queue:
			if err := s.UpsertRequest(ctx, &payload.Request, payload.OwnerEmail); err != nil {
				s.logger.Error().Err(err).Str("request_id", payload.Request.ID).Msg("mirror request failed")
				continue
			}
			s.logger.Debug().Str("request_id", payload.Request.ID).Msg("request mirrored")
		}
	}
}

func requestRowValues(req *models.BookingRequest, ownerEmail string) []any {
	parts := make([]string, 0, len(req.Entries))
	for _, e := range req.Entries {
		parts = append(parts, fmt.Sprintf("%s x%d (%s - %s)",
			e.ItemID, e.Quantity, daterange.Format(e.StartDate), daterange.Format(e.EndDate)))
	}
	return []any{
		req.ID,
		ownerEmail,
		string(req.Status),
		strings.Join(parts, "; "),
		req.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		req.UpdatedAt.UTC().Format("2006-01-02 15:04:05"),
	}
}

// parseUpdatedRow extracts the first row number from a range like "Approved!A5:F5".
func parseUpdatedRow(rng string) (int, bool) {
	if i := strings.LastIndex(rng, "!"); i >= 0 {
		rng = rng[i+1:]
	}
	if i := strings.Index(rng, ":"); i >= 0 {
		rng = rng[:i]
	}
	digits := strings.TrimLeft(rng, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	row, err := strconv.Atoi(digits)
	if err != nil || row <= 0 {
		return 0, false
	}
	return row, true
}

func (s *SheetsService) getCachedRow(id string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *SheetsService) setCachedRow(id string, row int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rowCache[id] = row
}

func (s *SheetsService) deleteCacheRow(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rowCache, id)
}

// ClearCache forgets every known row; the next upsert of each request appends.
func (s *SheetsService) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rowCache = make(map[string]int)
}
