package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bnema/growscratch-cli/internal/backoff"
	"github.com/bnema/growscratch-cli/internal/domain"
	"github.com/bnema/growscratch-cli/internal/logging"
	"github.com/bnema/growscratch-cli/internal/ports"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrBusy           = errors.New("workflow is already running")
	ErrWalletConflict = errors.New("session is bound to a different wallet")
)

type WorkflowConfig struct {
	Game domain.GameConfig
	Mint domain.MintTarget

	PollInterval   time.Duration
	InvoiceTimeout time.Duration
	PaymentTimeout time.Duration
	ResultTimeout  time.Duration
	MintTimeout    time.Duration
	SessionMaxAge  time.Duration

	Retry backoff.Policy
}

func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		Game:           domain.DefaultGameConfig(),
		Mint:           domain.MintTarget{Network: domain.NetworkMainnet},
		PollInterval:   2 * time.Second,
		InvoiceTimeout: 30 * time.Second,
		PaymentTimeout: 5 * time.Minute,
		ResultTimeout:  30 * time.Second,
		MintTimeout:    2 * time.Minute,
		SessionMaxAge:  24 * time.Hour,
		Retry:          backoff.Policy{MaxAttempts: 3, BaseDelay: time.Second},
	}
}

func (c WorkflowConfig) Validate() error {
	var errs []error
	if err := c.Game.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Retry.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Mint.Validate(); err != nil {
		errs = append(errs, err)
	}
	for name, value := range map[string]time.Duration{
		"poll interval":   c.PollInterval,
		"invoice timeout": c.InvoiceTimeout,
		"payment timeout": c.PaymentTimeout,
		"result timeout":  c.ResultTimeout,
		"mint timeout":    c.MintTimeout,
		"session max age": c.SessionMaxAge,
	} {
		if value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, value))
		}
	}
	return errors.Join(errs...)
}

// PhaseChange is published after every status transition, when a payment
// poll ends without an answer (Pending), and when a failure leaves the
// session in place for a later retry.
type PhaseChange struct {
	SessionID domain.SessionID
	InvoiceID string
	Status    domain.Status
	Outcome   *domain.Outcome
	Err       error
	Pending   bool
	Degraded  bool
}

type Option func(*Workflow)

func WithLogger(logger *logrus.Logger) Option {
	return func(w *Workflow) {
		w.log = logging.Component(logger, "workflow")
	}
}

func WithIDGenerator(next func() domain.SessionID) Option {
	return func(w *Workflow) {
		if next != nil {
			w.newID = next
		}
	}
}

// WithDegradedStore marks the store as a non-durable fallback. Every phase
// change then reports Degraded.
func WithDegradedStore(degraded bool) Option {
	return func(w *Workflow) {
		w.degraded = degraded
	}
}

// Workflow drives one play at a time from invoice creation to mint. It is the
// only writer of session status.
type Workflow struct {
	backend ports.Backend
	store   ports.SessionStore
	clock   ports.Clock
	cfg     WorkflowConfig
	log     *logrus.Entry
	newID   func() domain.SessionID

	mu         sync.Mutex
	session    *domain.Session
	running    bool
	cancel     context.CancelFunc
	degraded   bool
	saveFailed bool
	observers  []func(PhaseChange)
}

func NewWorkflow(backend ports.Backend, store ports.SessionStore, clock ports.Clock, cfg WorkflowConfig, opts ...Option) (*Workflow, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workflow config: %w", err)
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}

	w := &Workflow{
		backend: backend,
		store:   store,
		clock:   clock,
		cfg:     cfg,
		log:     logging.Component(nil, "workflow"),
		newID: func() domain.SessionID {
			return domain.SessionID(uuid.NewString())
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// OnPhaseChange registers fn. Observers run synchronously on the workflow's
// goroutine and must not call back into the workflow.
func (w *Workflow) OnPhaseChange(fn func(PhaseChange)) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.observers = append(w.observers, fn)
}

func (w *Workflow) CurrentSession() (domain.Session, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.session == nil {
		return domain.Session{}, false
	}
	return copySession(*w.session), true
}

// Restore loads the persisted session into memory. It returns
// domain.ErrNoSession when nothing is stored.
func (w *Workflow) Restore(ctx context.Context) (domain.Session, error) {
	if err := w.begin(nil); err != nil {
		return domain.Session{}, err
	}
	defer w.end()

	session, err := w.store.Load(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNoSession) {
			w.setSession(nil)
			return domain.Session{}, err
		}
		return domain.Session{}, fmt.Errorf("restore session: %w", err)
	}

	w.setSession(&session)
	w.sessionLog(session).Debug("session restored")
	return copySession(session), nil
}

// StartPlay creates a new session and drives it as far as it can go. It is
// refused without side effects while another session holds the slot.
func (w *Workflow) StartPlay(ctx context.Context, req PlayRequest) (domain.Session, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := w.begin(cancel); err != nil {
		return domain.Session{}, err
	}
	defer w.end()

	release, err := w.lease(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	defer release()

	method := req.Method
	if method == "" {
		method = domain.PaymentMethodStars
	}
	if !method.Valid() {
		return domain.Session{}, fmt.Errorf("unsupported payment method %q", req.Method)
	}
	wallet := strings.TrimSpace(req.WalletAddress)
	if method == domain.PaymentMethodTON && wallet == "" {
		return domain.Session{}, fmt.Errorf("ton payment: %w", domain.ErrWalletRequired)
	}

	current, found, err := w.loadCurrent(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	if found {
		switch {
		case current.Active():
			return current, fmt.Errorf("%w: session %s is %s", domain.ErrSessionActive, current.ID, current.Status)
		case current.Status == domain.StatusFailed:
			return current, fmt.Errorf("%w: session %s failed with %s", domain.ErrUnacknowledgedFailure, current.ID, current.FailureReason)
		}
	}

	session := domain.NewSession(w.newID(), w.cfg.Game.PlayCost(method), method, wallet, w.clock.Now())
	w.persist(ctx, &session)
	w.sessionLog(session).WithField("amount", domain.FormatAmount(session.Amount, method)).Info("play started")
	w.publish(session, nil, false)

	return w.run(runCtx, session)
}

// Resume continues the stored session from its current status: a pending
// payment is polled again, a paid session asks for its result, and a session
// stuck in MINTING retries the mint.
func (w *Workflow) Resume(ctx context.Context, req ResumeRequest) (domain.Session, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := w.begin(cancel); err != nil {
		return domain.Session{}, err
	}
	defer w.end()

	release, err := w.lease(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	defer release()

	session, found, err := w.loadCurrent(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	if !found {
		return domain.Session{}, domain.ErrNoSession
	}
	if !session.Active() {
		return session, nil
	}

	if wallet := strings.TrimSpace(req.WalletAddress); wallet != "" {
		switch session.WalletAddress {
		case "":
			session.WalletAddress = wallet
			session.UpdatedAt = w.clock.Now()
			w.persist(ctx, &session)
		case wallet:
		default:
			return session, fmt.Errorf("%w: %s", ErrWalletConflict, domain.ShortenAddress(session.WalletAddress))
		}
	}

	w.sessionLog(session).Info("resuming session")
	return w.run(runCtx, session)
}

// Cancel stops the running phase at its next suspension point. A call already
// sent to the backend is never interrupted from the client side.
func (w *Workflow) Cancel() {
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Acknowledge releases the slot held by a finished session so a new play can
// start.
func (w *Workflow) Acknowledge(ctx context.Context) error {
	if err := w.begin(nil); err != nil {
		return err
	}
	defer w.end()

	release, err := w.lease(ctx)
	if err != nil {
		return err
	}
	defer release()

	session, found, err := w.loadCurrent(ctx)
	if err != nil {
		return err
	}
	if !found {
		return domain.ErrNoSession
	}
	if session.Active() {
		return fmt.Errorf("%w: session %s is %s", domain.ErrSessionActive, session.ID, session.Status)
	}

	if err := w.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	w.setSession(nil)
	w.sessionLog(session).Info("session acknowledged")
	return nil
}

func (w *Workflow) begin(cancel context.CancelFunc) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return ErrBusy
	}
	w.running = true
	w.cancel = cancel
	return nil
}

func (w *Workflow) end() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.running = false
	w.cancel = nil
}

// lease takes the store's cross-process lease for one run. Stores that are
// not shared between processes need none.
func (w *Workflow) lease(ctx context.Context) (func(), error) {
	locker, ok := w.store.(ports.SlotLocker)
	if !ok {
		return func() {}, nil
	}
	release, err := locker.Lock(ctx)
	if errors.Is(err, ports.ErrSlotLocked) {
		return nil, fmt.Errorf("%w: %w", ErrBusy, err)
	}
	if err != nil {
		return nil, fmt.Errorf("lock session slot: %w", err)
	}
	return release, nil
}

// loadCurrent reads the slot from the store, since another process may have
// changed it since this workflow last looked. The in-memory copy is used only
// when the store lost our writes or cannot be read.
func (w *Workflow) loadCurrent(ctx context.Context) (domain.Session, bool, error) {
	cached, hasCached := w.CurrentSession()

	w.mu.Lock()
	saveFailed := w.saveFailed
	w.mu.Unlock()
	if hasCached && saveFailed {
		return cached, true, nil
	}

	session, err := w.store.Load(ctx)
	switch {
	case err == nil:
		w.setSession(&session)
		return session, true, nil
	case errors.Is(err, domain.ErrNoSession):
		w.setSession(nil)
		return domain.Session{}, false, nil
	case hasCached:
		w.sessionLog(cached).WithError(err).Warn("session store unreadable; using the in-memory copy")
		return cached, true, nil
	default:
		return domain.Session{}, false, fmt.Errorf("load session: %w", err)
	}
}

func (w *Workflow) setSession(session *domain.Session) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if session == nil {
		w.session = nil
		return
	}
	stored := copySession(*session)
	w.session = &stored
}

// persist keeps the in-memory copy authoritative and writes it through to the
// store. A failed write degrades durability but never stops the play.
func (w *Workflow) persist(ctx context.Context, session *domain.Session) {
	w.setSession(session)

	err := w.store.Save(context.WithoutCancel(ctx), *session)

	w.mu.Lock()
	w.saveFailed = err != nil
	w.mu.Unlock()

	switch {
	case errors.Is(err, ports.ErrSlotTaken):
		w.sessionLog(*session).
			WithError(err).
			Error("session slot taken by another session; this session is kept in memory only")
	case err != nil:
		w.sessionLog(*session).
			WithError(err).
			WithField("kind", domain.KindPersistenceDegraded).
			Warn("session not persisted; continuing in memory")
	}
}

func (w *Workflow) publish(session domain.Session, err error, pending bool) {
	w.mu.Lock()
	observers := append([]func(PhaseChange){}, w.observers...)
	degraded := w.degraded || w.saveFailed
	w.mu.Unlock()

	change := PhaseChange{
		SessionID: session.ID,
		InvoiceID: session.InvoiceID,
		Status:    session.Status,
		Err:       err,
		Pending:   pending,
		Degraded:  degraded,
	}
	if session.Outcome != nil {
		outcome := *session.Outcome
		change.Outcome = &outcome
	}
	for _, fn := range observers {
		fn(change)
	}
}

func (w *Workflow) sessionLog(session domain.Session) *logrus.Entry {
	fields := logrus.Fields{
		"session_id": session.ID,
		"status":     session.Status,
	}
	if session.InvoiceID != "" {
		fields["invoice_id"] = session.InvoiceID
	}
	return w.log.WithFields(fields)
}

func copySession(session domain.Session) domain.Session {
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
