package ports

import (
	"context"
	"errors"
)

// TelegramInitDataKey names the stored Telegram WebApp init data.
const TelegramInitDataKey = "growscratch/telegram-init-data"

var ErrCredentialNotFound = errors.New("credential not found")

// CredentialStore keeps the secrets gs authenticates with outside the config
// file. Get returns ErrCredentialNotFound for an unknown key.
type CredentialStore interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}
