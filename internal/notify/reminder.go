package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"itembook/internal/daterange"
	"itembook/internal/models"

	"github.com/rs/zerolog"
)

// ReminderSource is what the reminder job reads.
type ReminderSource interface {
	ListBookingRequests(ctx context.Context, filter models.RequestFilter) ([]models.BookingRequest, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetItemsByIDs(ctx context.Context, ids []string) (map[string]models.Item, error)
}

// Reminder emails owners the day before an approved booking starts.
type Reminder struct {
	source     ReminderSource
	dispatcher *Dispatcher
	logger     zerolog.Logger
	now        func() time.Time
}

func NewReminder(source ReminderSource, d *Dispatcher, logger *zerolog.Logger) *Reminder {
	return &Reminder{
		source:     source,
		dispatcher: d,
		logger:     logger.With().Str("component", "reminder").Logger(),
		now:        time.Now,
	}
}

// SendTomorrowReminders queues one email per approved request that has an entry starting tomorrow.
// It returns how many were queued.
func (r *Reminder) SendTomorrowReminders(ctx context.Context) (int, error) {
	tomorrow := daterange.DateOnly(r.now()).AddDate(0, 0, 1)

	reqs, err := r.source.ListBookingRequests(ctx, models.RequestFilter{Status: models.StatusApproved})
	if err != nil {
		return 0, fmt.Errorf("list approved requests: %w", err)
	}

	queued := 0
	for i := range reqs {
		req := &reqs[i]
		starting := entriesStartingOn(req, tomorrow)
		if len(starting) == 0 {
			continue
		}

		owner, err := r.source.GetUserByID(ctx, req.UserID)
		if err != nil {
			r.logger.Warn().Err(err).Str("request_id", req.ID).Msg("reminder skipped: owner lookup failed")
			continue
		}
		items, err := r.source.GetItemsByIDs(ctx, itemIDs(starting))
		if err != nil {
			items = map[string]models.Item{}
		}

		err = r.dispatcher.Enqueue(ChannelEmail, Message{
			To:      []string{owner.Email},
			Subject: fmt.Sprintf("Reminder: booking %s starts tomorrow", req.ID),
			Body:    formatReminder(owner.Name, starting, items, tomorrow),
		})
		if err != nil {
			r.logger.Error().Err(err).Str("request_id", req.ID).Msg("reminder not queued")
			continue
		}
		queued++
	}
	return queued, nil
}

// Run is the scheduled job body.
func (r *Reminder) Run(ctx context.Context) {
	n, err := r.SendTomorrowReminders(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("reminder run failed")
		return
	}
	r.logger.Info().Int("queued", n).Msg("reminders queued")
}

func entriesStartingOn(req *models.BookingRequest, day time.Time) []models.LineEntry {
	var out []models.LineEntry
	for _, e := range req.Entries {
		if daterange.DateOnly(e.StartDate).Equal(day) {
			out = append(out, e)
		}
	}
	return out
}

func itemIDs(entries []models.LineEntry) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ItemID)
	}
	return ids
}

func formatReminder(name string, entries []models.LineEntry, items map[string]models.Item, day time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\nYour booking starts tomorrow, %s:\n", name, daterange.Format(day))
	for _, e := range entries {
		desc := e.ItemID
		if it, ok := items[e.ItemID]; ok && it.Description != "" {
			desc = it.Description
		}
		fmt.Fprintf(&b, "- %s x%d until %s\n", desc, e.Quantity, daterange.Format(e.EndDate))
	}
	return b.String()
}
