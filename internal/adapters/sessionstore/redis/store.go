package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/growscratch-cli/internal/adapters/sessionstore"
	"github.com/bnema/growscratch-cli/internal/domain"
	"github.com/bnema/growscratch-cli/internal/ports"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	DefaultKey     = "growscratch:session"
	DefaultLockTTL = 15 * time.Minute

	lockSuffix = ":lock"
)

// saveScript writes the record unless the key holds a different session.
const saveScript = `
local current = redis.call('GET', KEYS[1])
if current then
  local ok, rec = pcall(cjson.decode, current)
  if ok and type(rec) == 'table' and rec.session_id ~= ARGV[2] then
    return 0
  end
end
redis.call('SET', KEYS[1], ARGV[1])
return 1
`

// releaseScript drops the lease only while it still carries our token.
const releaseScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`

// Store keeps the session record under one redis key. Writes run as one
// script, so the slot is never partially written. The lease lives under
// "<key>:lock" and expires after its TTL if the holder dies.
type Store struct {
	client   redis.Cmdable
	key      string
	lockTTL  time.Duration
	newToken func() string
}

var (
	_ ports.SessionStore   = (*Store)(nil)
	_ ports.SlotLocker     = (*Store)(nil)
	_ sessionstore.Pinger = (*Store)(nil)
)

type Option func(*Store)

// WithLockTTL bounds how long a lease survives a process that never released
// it. It should exceed the longest run.
func WithLockTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

func New(client redis.Cmdable, key string, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if key == "" {
		key = DefaultKey
	}
	s := &Store{client: client, key: key, lockTTL: DefaultLockTTL, newToken: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewClient builds a client for addr. The caller owns closing it.
func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

func (s *Store) Load(ctx context.Context) (domain.Session, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Session{}, domain.ErrNoSession
		}
		return domain.Session{}, fmt.Errorf("redis get %s: %w", s.key, err)
	}

	session, err := sessionstore.Decode(data)
	if err != nil {
		return domain.Session{}, fmt.Errorf("load session from redis key %s: %w", s.key, err)
	}
	return session, nil
}

func (s *Store) Save(ctx context.Context, session domain.Session) error {
	data, err := sessionstore.Encode(session)
	if err != nil {
		return err
	}
	written, err := s.client.Eval(ctx, saveScript, []string{s.key}, string(data), string(session.ID)).Int64()
	if err != nil {
		return fmt.Errorf("redis save %s: %w", s.key, err)
	}
	if written == 0 {
		return fmt.Errorf("%w: key %s, writing %s", ports.ErrSlotTaken, s.key, session.ID)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", s.key, err)
	}
	return nil
}

// Lock takes the lease with SETNX. It does not wait for a lease held
// elsewhere.
func (s *Store) Lock(ctx context.Context) (func(), error) {
	lockKey := s.key + lockSuffix
	token := s.newToken()

	acquired, err := s.client.SetNX(ctx, lockKey, token, s.lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lock %s: %w", lockKey, err)
	}
	if !acquired {
		return nil, fmt.Errorf("%w: %s", ports.ErrSlotLocked, lockKey)
	}
	return func() {
		_ = s.client.Eval(context.Background(), releaseScript, []string{lockKey}, token).Err()
	}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
