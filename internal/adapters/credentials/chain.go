package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/growscratch-cli/internal/ports"
)

// Backend names accepted by Open.
const (
	BackendAuto = "auto"
	BackendPass = "pass"
	BackendFile = "file"
)

// Chain reads from primary first and falls back to secondary when primary
// fails or has no entry. Delete clears both.
type Chain struct {
	primary   ports.CredentialStore
	secondary ports.CredentialStore
}

var _ ports.CredentialStore = (*Chain)(nil)

func NewChain(primary, secondary ports.CredentialStore) (*Chain, error) {
	if primary == nil || secondary == nil {
		return nil, errors.New("credential chain needs two stores")
	}
	return &Chain{primary: primary, secondary: secondary}, nil
}

// Open builds the store for a configured backend name.
func Open(backend string, dir string) (ports.CredentialStore, error) {
	switch backend {
	case BackendPass:
		return NewPassStore(), nil
	case BackendFile:
		return NewFileStore(dir), nil
	case BackendAuto, "":
		return NewChain(NewPassStore(), NewFileStore(dir))
	default:
		return nil, fmt.Errorf("unknown credential backend %q", backend)
	}
}

func (c *Chain) Put(ctx context.Context, key string, value string) error {
	err := c.primary.Put(ctx, key, value)
	if err == nil || interrupted(err) {
		return err
	}
	if fallbackErr := c.secondary.Put(ctx, key, value); fallbackErr != nil {
		return fmt.Errorf("primary put: %w; fallback put: %w", err, fallbackErr)
	}
	return nil
}

func (c *Chain) Get(ctx context.Context, key string) (string, error) {
	value, err := c.primary.Get(ctx, key)
	if err == nil || interrupted(err) {
		return value, err
	}
	value, fallbackErr := c.secondary.Get(ctx, key)
	if fallbackErr == nil {
		return value, nil
	}
	if errors.Is(err, ports.ErrCredentialNotFound) || errors.Is(err, ErrPassUnavailable) {
		return "", fallbackErr
	}
	return "", fmt.Errorf("primary get: %w; fallback get: %w", err, fallbackErr)
}

func (c *Chain) Delete(ctx context.Context, key string) error {
	err := c.primary.Delete(ctx, key)
	if interrupted(err) {
		return err
	}
	if errors.Is(err, ErrPassUnavailable) {
		err = nil
	}
	fallbackErr := c.secondary.Delete(ctx, key)
	return errors.Join(err, fallbackErr)
}

func interrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
