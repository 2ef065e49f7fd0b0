package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	httpbackend "github.com/bnema/growscratch-cli/internal/adapters/backend/http"
	"github.com/bnema/growscratch-cli/internal/adapters/credentials"
	sessionrender "github.com/bnema/growscratch-cli/internal/adapters/render/session"
	"github.com/bnema/growscratch-cli/internal/adapters/sessionstore"
	filestore "github.com/bnema/growscratch-cli/internal/adapters/sessionstore/file"
	memorystore "github.com/bnema/growscratch-cli/internal/adapters/sessionstore/memory"
	redisstore "github.com/bnema/growscratch-cli/internal/adapters/sessionstore/redis"
	"github.com/bnema/growscratch-cli/internal/application"
	"github.com/bnema/growscratch-cli/internal/backoff"
	"github.com/bnema/growscratch-cli/internal/config"
	"github.com/bnema/growscratch-cli/internal/domain"
	"github.com/bnema/growscratch-cli/internal/logging"
	"github.com/bnema/growscratch-cli/internal/ports"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const storePingTimeout = 2 * time.Second

type app struct {
	cfg      config.Config
	homeDir  string
	log      *logrus.Logger
	renderer func(*domain.Session, sessionrender.RenderOptions) (string, error)
	now      func() time.Time
}

// session bundles the pieces one play command needs. close releases the
// store connection.
type session struct {
	workflow *application.Workflow
	degraded bool
	close    func()
}

func wireApp() (*app, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	if err := config.LoadDotEnv(""); err != nil {
		return nil, err
	}
	cfg, err := config.Load(viper.New(), homeDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("wire logger: %w", err)
	}

	return &app{
		cfg:      cfg,
		homeDir:  homeDir,
		log:      logger,
		renderer: sessionrender.Render,
		now:      time.Now,
	}, nil
}

// openSession wires the store and backend on demand so commands that never
// touch the backend do not pay for a store round trip.
func (a *app) openSession(ctx context.Context) (*session, error) {
	initData, err := a.initData(ctx)
	if err != nil {
		return nil, err
	}

	durable, closer, err := a.durableStore()
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, storePingTimeout)
	store, degraded := sessionstore.Select(pingCtx, durable, memorystore.New(), a.log)
	cancel()

	backend, err := httpbackend.New(httpbackend.Options{
		BaseURL:        a.cfg.API.BaseURL,
		InitData:       initData,
		RequestTimeout: a.cfg.API.RequestTimeout,
		Logger:         a.log,
	})
	if err != nil {
		closer()
		return nil, fmt.Errorf("wire backend client: %w", err)
	}

	workflow, err := application.NewWorkflow(backend, store, ports.SystemClock{}, a.workflowConfig(),
		application.WithLogger(a.log),
		application.WithDegradedStore(degraded),
	)
	if err != nil {
		closer()
		return nil, fmt.Errorf("wire workflow: %w", err)
	}

	return &session{workflow: workflow, degraded: degraded, close: closer}, nil
}

func (a *app) credentialStore() (ports.CredentialStore, error) {
	store, err := credentials.Open(a.cfg.Credentials.Backend, a.cfg.Credentials.Dir)
	if err != nil {
		return nil, fmt.Errorf("wire credential store: %w", err)
	}
	return store, nil
}

// initData prefers the configured value over the one stored by gs login.
func (a *app) initData(ctx context.Context) (string, error) {
	if a.cfg.Telegram.InitData != "" {
		return a.cfg.Telegram.InitData, nil
	}

	store, err := a.credentialStore()
	if err != nil {
		return "", err
	}
	value, err := store.Get(ctx, ports.TelegramInitDataKey)
	if errors.Is(err, ports.ErrCredentialNotFound) {
		a.log.WithField("component", "wire").Debug("no stored telegram init data")
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load telegram init data: %w", err)
	}
	return value, nil
}

func (a *app) durableStore() (ports.SessionStore, func(), error) {
	noop := func() {}

	switch a.cfg.Store.Backend {
	case config.StoreBackendMemory:
		return nil, noop, nil
	case config.StoreBackendRedis:
		client := redisstore.NewClient(a.cfg.Store.RedisAddr)
		store, err := redisstore.New(client, a.cfg.Store.Key, redisstore.WithLockTTL(a.leaseTTL()))
		if err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("wire redis session store: %w", err)
		}
		return store, func() { _ = client.Close() }, nil
	default:
		store, err := filestore.New(a.cfg.Store.Path)
		if err != nil {
			return nil, noop, fmt.Errorf("wire file session store: %w", err)
		}
		return store, noop, nil
	}
}

// leaseTTL outlives the longest run: every phase timeout plus slack for
// retries and persistence.
func (a *app) leaseTTL() time.Duration {
	w := a.cfg.Workflow
	return w.InvoiceTimeout + w.PaymentTimeout + w.ResultTimeout + w.MintTimeout + time.Minute
}

func (a *app) workflowConfig() application.WorkflowConfig {
	return application.WorkflowConfig{
		Game:           a.cfg.Game,
		Mint: domain.MintTarget{
			Network:           a.cfg.TON.Network,
			CollectionAddress: a.cfg.TON.CollectionAddress,
		},
		PollInterval:   a.cfg.Workflow.PollInterval,
		InvoiceTimeout: a.cfg.Workflow.InvoiceTimeout,
		PaymentTimeout: a.cfg.Workflow.PaymentTimeout,
		ResultTimeout:  a.cfg.Workflow.ResultTimeout,
		MintTimeout:    a.cfg.Workflow.MintTimeout,
		SessionMaxAge:  a.cfg.Workflow.SessionMaxAge,
		Retry: backoff.Policy{
			MaxAttempts: a.cfg.Retry.MaxAttempts,
			BaseDelay:   a.cfg.Retry.BaseDelay,
		},
	}
}

func (a *app) renderOptions(degraded bool) sessionrender.RenderOptions {
	return sessionrender.RenderOptions{
		Now:         a.now(),
		MaxAge:      a.cfg.Workflow.SessionMaxAge,
		Catalog:     a.cfg.Game.Prizes,
		ExplorerURL: a.cfg.TON.ExplorerURL,
		Network:     a.cfg.TON.Network,
		Degraded:    degraded,
	}
}

// logTo redirects log output for the lifetime of one command.
func (a *app) logTo(out io.Writer) {
	a.log.SetOutput(out)
}
