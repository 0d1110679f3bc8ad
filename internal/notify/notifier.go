package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"itembook/internal/daterange"
	"itembook/internal/events"
	"itembook/internal/models"

	"github.com/rs/zerolog"
)

var approvalTemplate = template.Must(template.New("approval").Funcs(template.FuncMap{
	"date": daterange.Format,
	"stamp": func(n *models.ApprovalNotice) string {
		return n.Request.CreatedAt.UTC().Format("2006-01-02 15:04")
	},
}).Parse(`<html><body>
<h2>Your booking request has been approved</h2>
<p>Hello{{if .RecipientName}} {{.RecipientName}}{{end}},</p>
<p>Request <strong>{{.Request.ID}}</strong> submitted on {{stamp .}} has been approved.</p>
<table border="1" cellpadding="6" cellspacing="0">
<tr><th>Item</th><th>Quantity</th><th>Start date</th><th>End date</th></tr>
{{range .Request.Entries}}<tr><td>{{$.ItemDescription .ItemID}}</td><td>{{.Quantity}}</td><td>{{date .StartDate}}</td><td>{{date .EndDate}}</td></tr>
{{end}}</table>
</body></html>`))

// RenderApproval renders the HTML approval email body.
func RenderApproval(notice *models.ApprovalNotice) (string, error) {
	var buf bytes.Buffer
	if err := approvalTemplate.Execute(&buf, notice); err != nil {
		return "", fmt.Errorf("render approval email: %w", err)
	}
	return buf.String(), nil
}

// Notifier turns domain notices into queued messages.
type Notifier struct {
	dispatcher *Dispatcher
	logger     zerolog.Logger
}

func NewNotifier(d *Dispatcher, logger *zerolog.Logger) *Notifier {
	return &Notifier{dispatcher: d, logger: logger.With().Str("component", "notifier").Logger()}
}

// Dispatch queues the approval email for the request owner.
func (n *Notifier) Dispatch(_ context.Context, notice models.ApprovalNotice) error {
	if notice.Recipient == "" {
		return errors.New("approval notice has no recipient")
	}
	body, err := RenderApproval(&notice)
	if err != nil {
		return err
	}
	return n.dispatcher.Enqueue(ChannelEmail, Message{
		To:      []string{notice.Recipient},
		Subject: fmt.Sprintf("Booking request %s approved", notice.Request.ID),
		Body:    body,
		HTML:    true,
	})
}

// SubscribeAdminAlerts posts new and cancelled requests to the admin Telegram chat.
func (n *Notifier) SubscribeAdminAlerts(bus *events.EventBus) {
	if !n.dispatcher.Has(ChannelTelegram) {
		return
	}
	alert := func(title string) events.EventHandler {
		return func(e events.Event) error {
			var payload models.BookingEvent
			if err := e.Decode(&payload); err != nil {
				return err
			}
			return n.dispatcher.Enqueue(ChannelTelegram, Message{
				Subject: title,
				Body:    adminSummary(payload),
			})
		}
	}
	bus.Subscribe(events.BookingCreated, alert("New booking request"))
	bus.Subscribe(events.BookingCancelled, alert("Booking request cancelled"))
}

func adminSummary(e models.BookingEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Request %s", e.Request.ID)
	if e.OwnerEmail != "" {
		fmt.Fprintf(&b, " by %s", e.OwnerEmail)
	}
	b.WriteString("\n")
	for _, entry := range e.Request.Entries {
		fmt.Fprintf(&b, "- %s x%d, %s\n", entry.ItemID, entry.Quantity, entry.Range())
	}
	return strings.TrimRight(b.String(), "\n")
}
