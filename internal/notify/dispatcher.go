package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"itembook/internal/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var (
	ErrQueueFull          = errors.New("notification queue is full")
	ErrDispatcherStopped  = errors.New("notification dispatcher stopped")
	ErrChannelUnavailable = errors.New("notification channel not configured")
)

// RetryConfig holds configuration for retry logic.
type RetryConfig struct {
	MaxRetries  int
	RetryDelays []time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		RetryDelays: []time.Duration{
			1 * time.Second,
			5 * time.Second,
			30 * time.Second,
		},
	}
}

func (c RetryConfig) delay(attempt int) time.Duration {
	if len(c.RetryDelays) == 0 {
		return time.Second
	}
	if attempt >= len(c.RetryDelays) {
		return c.RetryDelays[len(c.RetryDelays)-1]
	}
	return c.RetryDelays[attempt]
}

type DispatcherConfig struct {
	Workers       int
	QueueSize     int
	RatePerSecond float64
	Burst         int
	Retry         RetryConfig
	// DrainTimeout bounds how long Stop waits for queued messages.
	DrainTimeout  time.Duration
}

type job struct {
	sender Sender
	msg    Message
}

// Dispatcher delivers messages on a bounded worker pool with rate limiting and retries.
// Delivery is best effort: failures are logged and counted, never returned to the producer.
type Dispatcher struct {
	senders map[string]Sender
	jobs    chan job
	limiter *rate.Limiter
	cfg     DispatcherConfig
	logger  zerolog.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

func NewDispatcher(cfg DispatcherConfig, logger *zerolog.Logger, senders ...Sender) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 30 * time.Second
	}
	d := &Dispatcher{
		senders: make(map[string]Sender, len(senders)),
		jobs:    make(chan job, cfg.QueueSize),
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		cfg:     cfg,
		logger:  logger.With().Str("component", "notify").Logger(),
		cancel:  func() {},
	}
	for _, s := range senders {
		if s != nil {
			d.senders[s.Channel()] = s
		}
	}
	return d
}

// Has reports whether a sender is configured for channel.
func (d *Dispatcher) Has(channel string) bool {
	_, ok := d.senders[channel]
	return ok
}

// Start launches the workers. They keep delivering after ctx is cancelled
// until Stop has drained the queue or its drain timeout expires.
func (d *Dispatcher) Start(ctx context.Context) {
	deliverCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(deliverCtx)
	}
	d.logger.Info().Int("workers", d.cfg.Workers).Msg("notification dispatcher started")
}

// Stop refuses new messages and waits for queued ones to drain.
// Deliveries still running after DrainTimeout are abandoned.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.jobs)
	}
	cancel := d.cancel
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(d.cfg.DrainTimeout):
		d.logger.Warn().Int("queued", len(d.jobs)).Msg("notification drain timed out")
		cancel()
		<-done
	}
	cancel()
}

// Enqueue schedules msg on channel without blocking.
func (d *Dispatcher) Enqueue(channel string, msg Message) error {
	sender, ok := d.senders[channel]
	if !ok {
		return ErrChannelUnavailable
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrDispatcherStopped
	}
	select {
	case d.jobs <- job{sender: sender, msg: msg}:
		metrics.SetNotificationQueue(len(d.jobs))
		return nil
	default:
		metrics.IncNotification(channel, "dropped")
		return ErrQueueFull
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for j := range d.jobs {
		metrics.SetNotificationQueue(len(d.jobs))
		d.deliver(ctx, j)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, j job) {
	channel := j.sender.Channel()
	log := d.logger.With().Str("channel", channel).Str("subject", j.msg.Subject).Logger()

	var lastErr error
	for attempt := 0; attempt <= d.cfg.Retry.MaxRetries; attempt++ {
		if err := d.limiter.Wait(ctx); err != nil {
			log.Warn().Err(err).Msg("notification abandoned")
			metrics.IncNotification(channel, "failed")
			return
		}

		err := j.sender.Send(ctx, j.msg)
		if err == nil {
			metrics.IncNotification(channel, "sent")
			log.Debug().Int("attempt", attempt+1).Msg("notification sent")
			return
		}
		lastErr = err

		if IsPermanent(err) || attempt == d.cfg.Retry.MaxRetries {
			break
		}

		delay := d.cfg.Retry.delay(attempt)
		log.Info().Err(err).Int("attempt", attempt+1).Dur("delay", delay).Msg("retrying notification")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			log.Warn().Err(ctx.Err()).Msg("notification abandoned")
			metrics.IncNotification(channel, "failed")
			return
		}
	}

	metrics.IncNotification(channel, "failed")
	log.Error().Err(lastErr).Msg("notification delivery failed")
}
