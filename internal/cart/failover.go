package cart

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"itembook/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverStore serves carts from primary and switches to fallback while primary is failing.
// Primary is retried once per recoveryInterval. Deletes that primary missed are
// replayed before that user's cart is read from or written to primary again.
type FailoverStore struct {
	primary  Store
	fallback Store
	logger   *zerolog.Logger

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
	pending   map[string]struct{}
}

func NewFailoverStore(primary, fallback Store, logger *zerolog.Logger) *FailoverStore {
	return &FailoverStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		pending:  make(map[string]struct{}),
	}
}

func (s *FailoverStore) usePrimary() bool {
	if !s.isDown.Load() {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastCheck) >= recoveryInterval
}

func (s *FailoverStore) markDown(err error) {
	s.mu.Lock()
	s.lastCheck = time.Now()
	s.mu.Unlock()
	if !s.isDown.Swap(true) {
		s.logger.Warn().Err(err).Msg("cart store primary failed, switching to fallback")
	}
}

func (s *FailoverStore) markUp() {
	if s.isDown.Swap(false) {
		s.logger.Info().Msg("cart store primary recovered")
	}
}

func (s *FailoverStore) isPending(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[userID]
	return ok
}

func (s *FailoverStore) setPending(userID string, pending bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pending {
		s.pending[userID] = struct{}{}
	} else {
		delete(s.pending, userID)
	}
}

// replayDelete removes a cart that primary still holds from before an outage.
func (s *FailoverStore) replayDelete(ctx context.Context, userID string) error {
	if !s.isPending(userID) {
		return nil
	}
	if err := s.primary.Delete(ctx, userID); err != nil {
		return err
	}
	s.setPending(userID, false)
	s.logger.Info().Str("user_id", userID).Msg("replayed cart delete on primary")
	return nil
}

func (s *FailoverStore) Get(ctx context.Context, userID string) (*models.Cart, error) {
	if s.usePrimary() {
		if err := s.replayDelete(ctx, userID); err != nil {
			s.markDown(err)
			return s.fallback.Get(ctx, userID)
		}
		c, err := s.primary.Get(ctx, userID)
		if err == nil {
			s.markUp()
			return c, nil
		}
		s.markDown(err)
	}
	return s.fallback.Get(ctx, userID)
}

func (s *FailoverStore) Save(ctx context.Context, c *models.Cart) error {
	if s.usePrimary() {
		err := s.primary.Save(ctx, c)
		if err == nil {
			s.setPending(c.UserID, false)
			s.markUp()
			return nil
		}
		s.markDown(err)
	}
	return s.fallback.Save(ctx, c)
}

func (s *FailoverStore) Delete(ctx context.Context, userID string) error {
	// Clear both so a stale fallback copy does not resurface.
	_ = s.fallback.Delete(ctx, userID)
	if s.usePrimary() {
		err := s.primary.Delete(ctx, userID)
		if err == nil {
			s.setPending(userID, false)
			s.markUp()
			return nil
		}
		s.markDown(err)
	}
	s.setPending(userID, true)
	return nil
}
