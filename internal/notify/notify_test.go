package notify

import (
	"context"
	"errors"
	"io"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	"itembook/internal/config"
	"itembook/internal/events"
	"itembook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	channel string
	fails   int
	err     error

	mu    sync.Mutex
	calls int
	sent  []Message
	done  chan struct{}
}

func newFakeSender(channel string, fails int, err error) *fakeSender {
	return &fakeSender{channel: channel, fails: fails, err: err, done: make(chan struct{}, 10)}
}

func (f *fakeSender) Channel() string { return f.channel }

func (f *fakeSender) Send(_ context.Context, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.fails {
		if f.calls == f.fails {
			defer func() { f.done <- struct{}{} }()
		}
		return f.err
	}
	f.sent = append(f.sent, msg)
	f.done <- struct{}{}
	return nil
}

func (f *fakeSender) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testDispatcher(senders ...Sender) *Dispatcher {
	logger := zerolog.New(io.Discard)
	return NewDispatcher(DispatcherConfig{
		Workers:       1,
		QueueSize:     2,
		RatePerSecond: 1000,
		Burst:         10,
		Retry:         RetryConfig{MaxRetries: 2, RetryDelays: []time.Duration{time.Millisecond}},
	}, &logger, senders...)
}

func waitDone(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestDispatcher_RetriesUntilSent(t *testing.T) {
	sender := newFakeSender(ChannelEmail, 2, errors.New("connection reset"))
	d := testDispatcher(sender)
	d.Start(context.Background())
	defer d.Stop()

	require.NoError(t, d.Enqueue(ChannelEmail, Message{To: []string{"a@example.com"}, Subject: "hi"}))

	waitDone(t, sender.done) // last failure
	waitDone(t, sender.done) // success
	assert.Equal(t, 3, sender.Calls())
	assert.Len(t, sender.sent, 1)
}

func TestDispatcher_GivesUpAfterMaxRetries(t *testing.T) {
	sender := newFakeSender(ChannelEmail, 10, errors.New("relay down"))
	d := testDispatcher(sender)
	d.Start(context.Background())

	require.NoError(t, d.Enqueue(ChannelEmail, Message{Subject: "hi"}))
	d.Stop()

	assert.Equal(t, 3, sender.Calls())
}

func TestDispatcher_PermanentErrorIsNotRetried(t *testing.T) {
	sender := newFakeSender(ChannelTelegram, 10, permanent(errors.New("forbidden")))
	d := testDispatcher(sender)
	d.Start(context.Background())

	require.NoError(t, d.Enqueue(ChannelTelegram, Message{Subject: "hi"}))
	d.Stop()

	assert.Equal(t, 1, sender.Calls())
}

func TestDispatcher_StopDrainsQueueAfterCancel(t *testing.T) {
	sender := newFakeSender(ChannelEmail, 0, nil)
	logger := zerolog.New(io.Discard)
	d := NewDispatcher(DispatcherConfig{
		Workers:       2,
		QueueSize:     10,
		RatePerSecond: 1000,
		Burst:         10,
		DrainTimeout:  2 * time.Second,
	}, &logger, sender)

	for i := 0; i < 5; i++ {
		require.NoError(t, d.Enqueue(ChannelEmail, Message{To: []string{"ann@example.com"}, Subject: "queued"}))
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d.Start(ctx)
	d.Stop()

	assert.Equal(t, 5, sender.Calls())
}

type blockingSender struct {
	abandoned chan struct{}
}

func (b *blockingSender) Channel() string { return ChannelEmail }

func (b *blockingSender) Send(ctx context.Context, _ Message) error {
	<-ctx.Done()
	close(b.abandoned)
	return permanent(ctx.Err())
}

func TestDispatcher_StopAbandonsAfterDrainTimeout(t *testing.T) {
	sender := &blockingSender{abandoned: make(chan struct{})}
	logger := zerolog.New(io.Discard)
	d := NewDispatcher(DispatcherConfig{
		Workers:       1,
		QueueSize:     1,
		RatePerSecond: 1000,
		Burst:         1,
		DrainTimeout:  20 * time.Millisecond,
	}, &logger, sender)
	d.Start(context.Background())
	require.NoError(t, d.Enqueue(ChannelEmail, Message{Subject: "stuck"}))

	stopped := make(chan struct{})
	go func() {
		d.Stop()
		close(stopped)
	}()
	waitDone(t, stopped)
	waitDone(t, sender.abandoned)
}

func TestDispatcher_Enqueue(t *testing.T) {
	sender := newFakeSender(ChannelEmail, 0, nil)
	d := testDispatcher(sender)

	t.Run("unknown channel", func(t *testing.T) {
		assert.ErrorIs(t, d.Enqueue(ChannelTelegram, Message{}), ErrChannelUnavailable)
	})

	t.Run("queue full", func(t *testing.T) {
		require.NoError(t, d.Enqueue(ChannelEmail, Message{}))
		require.NoError(t, d.Enqueue(ChannelEmail, Message{}))
		assert.ErrorIs(t, d.Enqueue(ChannelEmail, Message{}), ErrQueueFull)
	})

	t.Run("stopped", func(t *testing.T) {
		d.Start(context.Background())
		d.Stop()
		assert.ErrorIs(t, d.Enqueue(ChannelEmail, Message{}), ErrDispatcherStopped)
		assert.Equal(t, 2, sender.Calls(), "queued messages drain on stop")
	})
}

func approvalNotice() models.ApprovalNotice {
	return models.ApprovalNotice{
		Recipient:     "owner@example.com",
		RecipientName: "Ann",
		Request: models.BookingRequest{
			ID:        "req-1",
			CreatedAt: time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC),
			Entries: []models.LineEntry{
				{ItemID: "x", Quantity: 2, StartDate: time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)},
				{ItemID: "gone", Quantity: 1, StartDate: time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)},
			},
		},
		Items: map[string]models.Item{"x": {ID: "x", Description: "Garden <tools>"}},
	}
}

func TestRenderApproval(t *testing.T) {
	n := approvalNotice()
	body, err := RenderApproval(&n)
	require.NoError(t, err)

	assert.Contains(t, body, "req-1")
	assert.Contains(t, body, "2024-06-01 09:30")
	assert.Contains(t, body, "Garden &lt;tools&gt;")
	assert.Contains(t, body, "<td>2</td><td>2024-06-10</td><td>2024-06-15</td>")
	assert.Contains(t, body, "<td>gone</td>", "unknown items fall back to their id")
	assert.Contains(t, body, "Hello Ann")
}

func TestNotifier_Dispatch(t *testing.T) {
	sender := newFakeSender(ChannelEmail, 0, nil)
	d := testDispatcher(sender)
	logger := zerolog.New(io.Discard)
	n := NewNotifier(d, &logger)
	d.Start(context.Background())
	defer d.Stop()

	require.NoError(t, n.Dispatch(context.Background(), approvalNotice()))
	waitDone(t, sender.done)

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, []string{"owner@example.com"}, msg.To)
	assert.Equal(t, "Booking request req-1 approved", msg.Subject)
	assert.True(t, msg.HTML)

	assert.Error(t, n.Dispatch(context.Background(), models.ApprovalNotice{}))
}

func TestNotifier_AdminAlerts(t *testing.T) {
	tg := newFakeSender(ChannelTelegram, 0, nil)
	d := testDispatcher(tg)
	logger := zerolog.New(io.Discard)
	n := NewNotifier(d, &logger)
	bus := events.NewEventBus(&logger)
	n.SubscribeAdminAlerts(bus)
	d.Start(context.Background())
	defer d.Stop()

	req := approvalNotice().Request
	require.NoError(t, bus.PublishJSON(events.BookingCreated, models.BookingEvent{Request: req, OwnerEmail: "owner@example.com"}))
	waitDone(t, tg.done)

	require.Len(t, tg.sent, 1)
	assert.Equal(t, "New booking request", tg.sent[0].Subject)
	assert.Equal(t, "Request req-1 by owner@example.com\n- x x2, 2024-06-10..2024-06-15\n- gone x1, 2024-06-11..2024-06-12", tg.sent[0].Body)
}

func TestEmailSender_Compose(t *testing.T) {
	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	s := NewEmailSender(config.SMTPConfig{Host: "smtp.example.com", Port: 587, From: "noreply@example.com", FromName: "Itembook", Username: "u", Password: "p"})
	s.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		assert.Equal(t, "noreply@example.com", from)
		return nil
	}

	require.NoError(t, s.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "Hi", Body: "<p>x</p>", HTML: true}))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"a@example.com"}, gotTo)
	assert.True(t, strings.HasPrefix(gotMsg, "From: Itembook <noreply@example.com>\r\n"))
	assert.Contains(t, gotMsg, "Content-Type: text/html; charset=UTF-8\r\n\r\n<p>x</p>")

	err := s.Send(context.Background(), Message{})
	assert.True(t, IsPermanent(err))
}

type fakeBot struct {
	err  error
	sent []tgbotapi.Chattable
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func TestTelegramSender(t *testing.T) {
	bot := &fakeBot{}
	s := NewTelegramSender(bot, 42)

	require.NoError(t, s.Send(context.Background(), Message{Subject: "New", Body: "details"}))
	require.Len(t, bot.sent, 1)
	msg := bot.sent[0].(tgbotapi.MessageConfig)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, "New\n\ndetails", msg.Text)

	bot.err = &tgbotapi.Error{Code: 403, Message: "bot was kicked"}
	assert.True(t, IsPermanent(s.Send(context.Background(), Message{Body: "x"})))

	bot.err = &tgbotapi.Error{Code: 502, Message: "bad gateway"}
	err := s.Send(context.Background(), Message{Body: "x"})
	assert.Error(t, err)
	assert.False(t, IsPermanent(err))
}
