package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/bnema/growscratch-cli/internal/domain"
	"github.com/bnema/growscratch-cli/internal/ports"
)

// Store keeps the session slot in process memory.
type Store struct {
	mu      sync.Mutex
	session *domain.Session
}

var _ ports.SessionStore = (*Store)(nil)

func New() *Store {
	return &Store{}
}

func (s *Store) Load(ctx context.Context) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return domain.Session{}, domain.ErrNoSession
	}
	return clone(*s.session), nil
}

func (s *Store) Save(ctx context.Context, session domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil && s.session.ID != session.ID {
		return fmt.Errorf("%w: stored %s, writing %s", ports.ErrSlotTaken, s.session.ID, session.ID)
	}
	stored := clone(session)
	s.session = &stored
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = nil
	return nil
}

func clone(session domain.Session) domain.Session {
	if session.Outcome != nil {
		outcome := *session.Outcome
		if outcome.PrizeID != nil {
			id := *outcome.PrizeID
			outcome.PrizeID = &id
		}
		session.Outcome = &outcome
	}
	return session
}
