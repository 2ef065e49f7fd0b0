package sessionstore

import (
	"context"

	"github.com/bnema/growscratch-cli/internal/domain"
	"github.com/bnema/growscratch-cli/internal/logging"
	"github.com/bnema/growscratch-cli/internal/ports"
	"github.com/sirupsen/logrus"
)

// Pinger is implemented by stores that can check their backing storage
// without touching the stored session.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Select returns durable when it is reachable and fallback otherwise. The
// second return value reports that the fallback was chosen.
func Select(ctx context.Context, durable ports.SessionStore, fallback ports.SessionStore, logger *logrus.Logger) (ports.SessionStore, bool) {
	log := logging.Component(logger, "sessionstore")
	if durable == nil {
		log.WithField("kind", domain.KindPersistenceDegraded).Warn("no durable session store configured; sessions will not survive a restart")
		return fallback, true
	}

	pinger, ok := durable.(Pinger)
	if !ok {
		return durable, false
	}
	if err := pinger.Ping(ctx); err != nil {
		log.WithError(err).
			WithField("kind", domain.KindPersistenceDegraded).
			Warn("durable session store unavailable; falling back to memory")
		return fallback, true
	}
	return durable, false
}
