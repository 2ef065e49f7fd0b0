package ports

import (
	"context"
	"errors"

	"github.com/bnema/growscratch-cli/internal/domain"
)

var (
	// ErrSlotLocked is returned by SlotLocker.Lock while another process
	// holds the slot.
	ErrSlotLocked = errors.New("session slot is locked by another process")
	// ErrSlotTaken is returned by Save when the slot holds a different
	// session.
	ErrSlotTaken = errors.New("session slot holds a different session")
)

// SessionStore holds at most one session. Load returns domain.ErrNoSession
// when the slot is empty. Save refuses with ErrSlotTaken to replace a record
// whose session id differs from the one written.
type SessionStore interface {
	Load(ctx context.Context) (domain.Session, error)
	Save(ctx context.Context, session domain.Session) error
	Clear(ctx context.Context) error
}

// SlotLocker is implemented by stores that several processes can share.
// Lock takes an exclusive lease on the slot or fails with ErrSlotLocked;
// release gives it back.
type SlotLocker interface {
	Lock(ctx context.Context) (release func(), err error)
}
