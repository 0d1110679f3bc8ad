package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"itembook/internal/availability"
	"itembook/internal/daterange"
	"itembook/internal/database"
	"itembook/internal/events"
	"itembook/internal/metrics"
	"itembook/internal/models"

	"github.com/rs/zerolog"
)

const dashboardRecent = 5

// BookingService runs the booking request lifecycle.
type BookingService struct {
	bookings BookingRepository
	items    ItemRepository
	users    UserRepository
	events   EventPublisher
	notifier ApprovalNotifier
	logger   zerolog.Logger
	now      func() time.Time
}

func NewBookingService(
	bookings BookingRepository,
	items ItemRepository,
	users UserRepository,
	events EventPublisher,
	notifier ApprovalNotifier,
	logger *zerolog.Logger,
) *BookingService {
	return &BookingService{
		bookings: bookings,
		items:    items,
		users:    users,
		events:   events,
		notifier: notifier,
		logger:   logger.With().Str("component", "booking_service").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateBookingRequest validates entries and stores a pending request owned by actor.
func (s *BookingService) CreateBookingRequest(ctx context.Context, actor models.Actor, entries []models.LineEntry) (*models.BookingRequest, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	req, err := models.NewBookingRequest(actor.UserID, entries, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.ensureItemsExist(ctx, req.Entries); err != nil {
		return nil, err
	}
	if err := s.bookings.CreateBookingRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("create booking request: %w", err)
	}

	metrics.IncRequestCreated()
	s.publish(ctx, events.BookingCreated, req, actor.UserID)
	s.logger.Info().Str("request_id", req.ID).Str("user_id", actor.UserID).Int("entries", len(req.Entries)).
		Msg("booking request created")
	return req, nil
}

func (s *BookingService) ensureItemsExist(ctx context.Context, entries []models.LineEntry) error {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ItemID)
	}
	found, err := s.items.GetItemsByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load items: %w", err)
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return &models.NotFoundError{Resource: "item", ID: id}
		}
	}
	return nil
}

// ListBookingRequests returns requests matching filter, newest first.
func (s *BookingService) ListBookingRequests(ctx context.Context, filter models.RequestFilter) ([]models.BookingRequest, error) {
	return s.bookings.ListBookingRequests(ctx, filter)
}

func (s *BookingService) load(ctx context.Context, id string) (*models.BookingRequest, error) {
	req, err := s.bookings.GetBookingRequest(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, requestNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get booking request: %w", err)
	}
	return req, nil
}

// UpdateStatus approves or rejects a pending request. Only admins may decide.
func (s *BookingService) UpdateStatus(ctx context.Context, actor models.Actor, id, status string) (*models.BookingRequest, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, models.NewAuthorizationError("only admins can approve or reject booking requests")
	}
	if !current.IsPending() {
		return nil, &models.InvalidTransitionError{From: current.Status, To: status}
	}
	target, err := models.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	if !target.IsTerminal() {
		return nil, &models.InvalidTransitionError{From: current.Status, To: status}
	}

	updated, err := s.bookings.UpdateStatusIfPending(ctx, id, target, s.now())
	if err != nil {
		return nil, translateWrite(err, id, status)
	}

	metrics.IncDecision(string(target))
	s.logger.Info().Str("request_id", id).Str("status", string(target)).Str("admin_id", actor.UserID).
		Msg("booking request decided")

	if target == models.StatusApproved {
		s.publish(ctx, events.BookingApproved, updated, actor.UserID)
		s.notifyApproval(ctx, updated)
	} else {
		s.publish(ctx, events.BookingRejected, updated, actor.UserID)
	}
	return updated, nil
}

// notifyApproval never fails the caller; every problem is logged.
func (s *BookingService) notifyApproval(ctx context.Context, req *models.BookingRequest) {
	if s.notifier == nil {
		return
	}
	log := s.logger.With().Str("request_id", req.ID).Logger()

	owner, err := s.users.GetUserByID(ctx, req.UserID)
	if err != nil {
		log.Error().Err(err).Msg("approval notice skipped: owner lookup failed")
		return
	}
	ids := make([]string, 0, len(req.Entries))
	for _, e := range req.Entries {
		ids = append(ids, e.ItemID)
	}
	items, err := s.items.GetItemsByIDs(ctx, ids)
	if err != nil {
		log.Warn().Err(err).Msg("approval notice without item details")
		items = map[string]models.Item{}
	}

	notice := models.ApprovalNotice{
		Recipient:     owner.Email,
		RecipientName: owner.Name,
		Request:       *req,
		Items:         items,
	}
	if err := s.notifier.Dispatch(ctx, notice); err != nil {
		log.Error().Err(err).Str("recipient", owner.Email).Msg("approval notification failed")
	}
}

// CancelRequest removes a pending request. Only its owner may cancel.
func (s *BookingService) CancelRequest(ctx context.Context, actor models.Actor, id string) error {
	current, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !actor.Owns(current.UserID) {
		return models.NewAuthorizationError("only the owner can cancel a booking request")
	}
	if !current.IsPending() {
		return &models.InvalidTransitionError{From: current.Status, To: "cancelled"}
	}
	if err := s.bookings.DeleteIfPending(ctx, id); err != nil {
		return translateWrite(err, id, "cancelled")
	}

	metrics.IncCancelled()
	s.publish(ctx, events.BookingCancelled, current, actor.UserID)
	s.logger.Info().Str("request_id", id).Str("user_id", actor.UserID).Msg("booking request cancelled")
	return nil
}

// UpdateLineEntries replaces the entries of a pending request owned by actor.
func (s *BookingService) UpdateLineEntries(ctx context.Context, actor models.Actor, id string, entries []models.LineEntry) (*models.BookingRequest, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(current.UserID) {
		return nil, models.NewAuthorizationError("only the owner can edit a booking request")
	}
	if !current.IsPending() {
		return nil, &models.InvalidTransitionError{From: current.Status, To: "edited"}
	}
	normalized, err := models.NormalizeLineEntries(entries)
	if err != nil {
		return nil, err
	}
	if err := s.ensureItemsExist(ctx, normalized); err != nil {
		return nil, err
	}

	updated, err := s.bookings.ReplaceEntriesIfPending(ctx, id, normalized, s.now())
	if err != nil {
		return nil, translateWrite(err, id, "edited")
	}
	s.publish(ctx, events.BookingUpdated, updated, actor.UserID)
	return updated, nil
}

func (s *BookingService) approved(ctx context.Context, itemID string) ([]models.BookingRequest, error) {
	reqs, err := s.bookings.ListBookingRequests(ctx, models.RequestFilter{Status: models.StatusApproved, ItemID: itemID})
	if err != nil {
		return nil, fmt.Errorf("list approved requests: %w", err)
	}
	return reqs, nil
}

// IsItemBlockedOn reports whether an approved request covers itemID on date.
func (s *BookingService) IsItemBlockedOn(ctx context.Context, itemID string, date time.Time) (bool, error) {
	reqs, err := s.approved(ctx, itemID)
	if err != nil {
		return false, err
	}
	return availability.IsBlockedOn(itemID, date, reqs), nil
}

// BlockedRanges lists the approved ranges of itemID.
func (s *BookingService) BlockedRanges(ctx context.Context, itemID string) ([]daterange.Range, error) {
	reqs, err := s.approved(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return availability.BlockedRanges(itemID, reqs), nil
}

// Calendar builds per-day availability for the given items, or every item when itemIDs is empty.
func (s *BookingService) Calendar(ctx context.Context, itemIDs []string, start, end time.Time) ([]availability.ItemCalendar, error) {
	start, end = daterange.DateOnly(start), daterange.DateOnly(end)
	if err := availability.ValidateWindow(start, end); err != nil {
		return nil, err
	}

	var items []models.Item
	if len(itemIDs) == 0 {
		all, err := s.items.ListItems(ctx, false)
		if err != nil {
			return nil, fmt.Errorf("list items: %w", err)
		}
		items = all
	} else {
		found, err := s.items.GetItemsByIDs(ctx, itemIDs)
		if err != nil {
			return nil, fmt.Errorf("load items: %w", err)
		}
		for _, id := range itemIDs {
			item, ok := found[id]
			if !ok {
				return nil, &models.NotFoundError{Resource: "item", ID: id}
			}
			items = append(items, item)
		}
	}

	reqs, err := s.approved(ctx, "")
	if err != nil {
		return nil, err
	}
	return availability.Calendar(items, start, end, availability.NewIndex(reqs)), nil
}

// MyRequests splits actor's requests into active and past relative to today.
func (s *BookingService) MyRequests(ctx context.Context, actor models.Actor) (active, past []models.BookingRequest, err error) {
	if err := requireActor(actor); err != nil {
		return nil, nil, err
	}
	reqs, err := s.bookings.ListBookingRequests(ctx, models.RequestFilter{OwnerID: actor.UserID})
	if err != nil {
		return nil, nil, fmt.Errorf("list own requests: %w", err)
	}
	today := s.now()
	active, past = []models.BookingRequest{}, []models.BookingRequest{}
	for _, r := range reqs {
		if r.IsActive(today) {
			active = append(active, r)
		} else {
			past = append(past, r)
		}
	}
	return active, past, nil
}

// Dashboard returns counts per status and the most recent requests.
func (s *BookingService) Dashboard(ctx context.Context) (*models.DashboardStats, error) {
	counts, err := s.bookings.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := s.bookings.ListBookingRequests(ctx, models.RequestFilter{Limit: dashboardRecent})
	if err != nil {
		return nil, fmt.Errorf("list recent requests: %w", err)
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return &models.DashboardStats{Total: total, Counts: counts, Recent: recent}, nil
}

func (s *BookingService) publish(ctx context.Context, eventType string, req *models.BookingRequest, actorID string) {
	if s.events == nil {
		return
	}
	payload := models.BookingEvent{Request: *req, ActorID: actorID, At: s.now()}
	if owner, err := s.users.GetUserByID(ctx, req.UserID); err == nil {
		payload.OwnerEmail = owner.Email
	}
	if err := s.events.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Str("request_id", req.ID).Msg("publish event failed")
	}
}
