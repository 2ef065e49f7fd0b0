package application

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	filestore "github.com/bnema/growscratch-cli/internal/adapters/sessionstore/file"
	"github.com/bnema/growscratch-cli/internal/adapters/sessionstore/memory"
	"github.com/bnema/growscratch-cli/internal/backoff"
	"github.com/bnema/growscratch-cli/internal/domain"
	"github.com/bnema/growscratch-cli/internal/ports"
	"github.com/bnema/growscratch-cli/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testWorkflowConfig() WorkflowConfig {
	cfg := DefaultWorkflowConfig()
	cfg.PollInterval = 2 * time.Millisecond
	cfg.InvoiceTimeout = time.Second
	cfg.PaymentTimeout = 150 * time.Millisecond
	cfg.ResultTimeout = time.Second
	cfg.MintTimeout = time.Second
	cfg.Retry = backoff.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond}
	return cfg
}

type phaseRecorder struct {
	mu      sync.Mutex
	changes []PhaseChange
}

func (r *phaseRecorder) record(change PhaseChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change)
}

func (r *phaseRecorder) statuses() []domain.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	statuses := make([]domain.Status, 0, len(r.changes))
	for _, change := range r.changes {
		statuses = append(statuses, change.Status)
	}
	return statuses
}

func (r *phaseRecorder) last() PhaseChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.changes[len(r.changes)-1]
}

func newTestWorkflow(t *testing.T, backend ports.Backend, store ports.SessionStore, opts ...Option) (*Workflow, *phaseRecorder) {
	t.Helper()

	clock := mocks.NewMockClock(t)
	clock.EXPECT().Now().Return(testNow).Maybe()

	opts = append([]Option{WithIDGenerator(func() domain.SessionID { return "S1" })}, opts...)
	workflow, err := NewWorkflow(backend, store, clock, testWorkflowConfig(), opts...)
	require.NoError(t, err)

	recorder := &phaseRecorder{}
	workflow.OnPhaseChange(recorder.record)
	return workflow, recorder
}

func storedSession(t *testing.T, status domain.Status, mutate ...func(*domain.Session)) domain.Session {
	t.Helper()

	session := domain.NewSession("S1", 25, domain.PaymentMethodStars, "EQwallet", testNow.Add(-time.Hour))
	path := []domain.Status{domain.StatusAwaitingPayment, domain.StatusPaid, domain.StatusResultReady, domain.StatusMinting}
	for _, next := range path {
		if session.Status == status {
			break
		}
		if next == domain.StatusAwaitingPayment {
			require.NoError(t, session.SetInvoiceID("inv-1"))
		}
		if next == domain.StatusResultReady {
			prize := 3
			session.Outcome = &domain.Outcome{Won: true, PrizeID: &prize}
		}
		require.NoError(t, session.Advance(next, testNow.Add(-time.Hour)))
	}
	for _, fn := range mutate {
		fn(&session)
	}
	return session
}

func seededStore(t *testing.T, session domain.Session) *memory.Store {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.Save(context.Background(), session))
	return store
}

func prizeID(id int) *int {
	return &id
}

func boolPtr(value bool) *bool {
	return &value
}

func transientErr(op string) error {
	return fmt.Errorf("%s: %w: status 503", op, domain.ErrTransientNetwork)
}

func TestStartPlayWinningPlayMintsAfterTransientFailure(t *testing.T) {
	backend := mocks.NewMockBackend(t)
	store := memory.New()
	workflow, recorder := newTestWorkflow(t, backend, store)

	backend.EXPECT().CreateInvoice(mock.Anything, ports.CreateInvoiceRequest{
		SessionID:     "S1",
		Amount:        25,
		PaymentMethod: domain.PaymentMethodStars,
	}).Return("inv-1", nil).Once()
	backend.EXPECT().VerifyPayment(mock.Anything, "inv-1").Return(ports.PaymentPending, nil).Times(2)
	backend.EXPECT().VerifyPayment(mock.Anything, "inv-1").Return(ports.PaymentConfirmed, nil).Once()
	backend.EXPECT().GenerateResult(mock.Anything, domain.SessionID("S1"), "inv-1").
		Return(domain.RawOutcome{Won: boolPtr(true), PrizeID: prizeID(3)}, nil).Once()
	mintReq := ports.MintRequest{SessionID: "S1", PrizeID: 3, WalletAddress: "EQwallet", Network: domain.NetworkMainnet}
	backend.EXPECT().MintNFT(mock.Anything, mintReq).Return("", transientErr("mint nft")).Once()
	backend.EXPECT().MintNFT(mock.Anything, mintReq).Return("tx-1", nil).Once()

	session, err := workflow.StartPlay(context.Background(), PlayRequest{WalletAddress: "EQwallet"})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCompleted, session.Status)
	assert.Equal(t, "tx-1", session.MintTx)
	assert.Equal(t, "inv-1", session.InvoiceID)
	require.NotNil(t, session.Outcome)
	assert.Equal(t, 3, *session.Outcome.PrizeID)
	assert.Equal(t, []domain.Status{
		domain.StatusCreated,
		domain.StatusAwaitingPayment,
		domain.StatusPaid,
		domain.StatusResultReady,
		domain.StatusMinting,
		domain.StatusCompleted,
	}, recorder.statuses())

	_, err = store.Load(context.Background())
	require.ErrorIs(t, err, domain.ErrNoSession, "completed sessions are cleared from storage")

	current, ok := workflow.CurrentSession()
	require.True(t, ok)
	assert.Equal(t, domain.StatusCompleted, current.Status)
}

func TestStartPlayLosingPlayCompletesWithoutMint(t *testing.T) {
	backend := mocks.NewMockBackend(t)
	workflow, recorder := newTestWorkflow(t, backend, memory.New())

	backend.EXPECT().CreateInvoice(mock.Anything, mock.Anything).Return("inv-1", nil).Once()
	backend.EXPECT().VerifyPayment(mock.Anything, "inv-1").Return(ports.PaymentConfirmed, nil).Once()
	backend.EXPECT().GenerateResult(mock.Anything, domain.SessionID("S1"), "inv-1").
		Return(domain.RawOutcome{Won: boolPtr(false)}, nil).Once()

	session, err := workflow.StartPlay(context.Background(), PlayRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, session.Status)
	assert.Empty(t, session.MintTx)
	assert.NotContains(t, recorder.statuses(), domain.StatusMinting)
}

func TestStartPlayExpiredPaymentFailsWithoutFurtherCalls(t *testing.T) {
	backend := mocks.NewMockBackend(t)
	store := memory.New()
	workflow, recorder := newTestWorkflow(t, backend, store)

	backend.EXPECT().CreateInvoice(mock.Anything, mock.Anything).Return("inv-1", nil).Once()
	backend.EXPECT().VerifyPayment(mock.Anything, "inv-1").Return(ports.PaymentExpired, nil).Once()

	session, err := workflow.StartPlay(context.Background(), PlayRequest{})
	require.Error(t, err)
	assert.Equal(t, domain.StatusFailed, session.Status)
	assert.Equal(t, domain.ReasonPaymentRejected, session.FailureReason)
	assert.Equal(t, domain.KindTerminalRejected, domain.Kind(err))

	var supportErr *domain.SupportError
	require.ErrorAs(t, err, &supportErr)
	assert.Equal(t, domain.SessionID("S1"), supportErr.SessionID)
	assert.Equal(t, "inv-1", supportErr.InvoiceID)

	last := recorder.last()
	assert.Equal(t, domain.StatusFailed, last.Status)
	assert.Same(t, err, last.Err)

	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, stored.Status, "failed sessions stay until acknowledged")
}

func TestStartPlayInconsistentResultFailsWithoutMint(t *testing.T) {
	backend := mocks.NewMockBackend(t)
	workflow, _ := newTestWorkflow(t, backend, memory.New())

	backend.EXPECT().CreateInvoice(mock.Anything, mock.Anything).Return("inv-1", nil).Once()
	backend.EXPECT().VerifyPayment(mock.Anything, "inv-1").Return(ports.PaymentConfirmed, nil).Once()
	backend.EXPECT().GenerateResult(mock.Anything, domain.SessionID("S1"), "inv-1").
		Return(domain.RawOutcome{Won: boolPtr(false), PrizeID: prizeID(3)}, nil).Once()

	session, err := workflow.StartPlay(context.Background(), PlayRequest{WalletAddress: "EQwallet"})
	require.ErrorIs(t, err, domain.ErrMalformedResult)
	assert.Equal(t, domain.StatusFailed, session.Status)
	assert.Equal(t, domain.ReasonMalformedResult, session.FailureReason)
	assert.Nil(t, session.Outcome)
	assert.True(t, session.Paid())
	assert.Contains(t, err.Error(), "inv-1")
}

func TestStartPlayInvoiceFailureAfterRetries(t *testing.T) {
	backend := mocks.NewMockBackend(t)
	workflow, _ := newTestWorkflow(t, backend, memory.New())

	backend.EXPECT().CreateInvoice(mock.Anything, mock.Anything).Return("", transientErr("create invoice")).Times(2)

	session, err := workflow.StartPlay(context.Background(), PlayRequest{})
	require.ErrorIs(t, err, domain.ErrTransientNetwork)
	assert.Equal(t, domain.StatusFailed, session.Status)
	assert.Equal(t, domain.ReasonInvoiceCreateFailed, session.FailureReason)
	assert.Empty(t, session.InvoiceID)

	var supportErr *domain.SupportError
	assert.False(t, errors.As(err, &supportErr), "no invoice exists yet")
}

func TestPaymentPollTimeoutKeepsSessionReloadable(t *testing.T) {
	store := memory.New()

	backend := mocks.NewMockBackend(t)
	workflow, recorder := newTestWorkflow(t, backend, store)
	backend.EXPECT().CreateInvoice(mock.Anything, mock.Anything).Return("inv-1", nil).Once()
	backend.EXPECT().VerifyPayment(mock.Anything, "inv-1").Return(ports.PaymentPending, nil)

	session, err := workflow.StartPlay(context.Background(), PlayRequest{})
	require.ErrorIs(t, err, domain.ErrTimeout)
	assert.Equal(t, domain.StatusAwaitingPayment, session.Status)
	assert.True(t, recorder.last().Pending)

	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingPayment, stored.Status)
	assert.Equal(t, "inv-1", stored.InvoiceID)

	// A fresh process picks the session up without creating a new invoice.
	restarted := mocks.NewMockBackend(t)
	resumed, _ := newTestWorkflow(t, restarted, store)
	restarted.EXPECT().VerifyPayment(mock.Anything, "inv-1").Return(ports.PaymentConfirmed, nil).Once()
	restarted.EXPECT().GenerateResult(mock.Anything, domain.SessionID("S1"), "inv-1").
		Return(domain.RawOutcome{Won: boolPtr(false)}, nil).Once()

	restored, err := resumed.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingPayment, restored.Status)

	session, err = resumed.Resume(context.Background(), ResumeRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, session.Status)
}

func TestPaidSessionNeverReissuesInvoiceAcrossRestores(t *testing.T) {
	store := seededStore(t, storedSession(t, domain.StatusPaid))

	for restart := 0; restart < 3; restart++ {
		backend := mocks.NewMockBackend(t)
		workflow, _ := newTestWorkflow(t, backend, store)
		backend.EXPECT().GenerateResult(mock.Anything, domain.SessionID("S1"), "inv-1").
			Return(domain.RawOutcome{}, transientErr("generate result"))

		_, err := workflow.Restore(context.Background())
		require.NoError(t, err)

		session, err := workflow.Resume(context.Background(), ResumeRequest{})
		require.ErrorIs(t, err, domain.ErrTransientNetwork)
		assert.Equal(t, domain.StatusPaid, session.Status)

		var supportErr *domain.SupportError
		require.ErrorAs(t, err, &supportErr)
		assert.Equal(t, "inv-1", supportErr.InvoiceID)
	}

	backend := mocks.NewMockBackend(t)
	workflow, _ := newTestWorkflow(t, backend, store)
	backend.EXPECT().GenerateResult(mock.Anything, domain.SessionID("S1"), "inv-1").
		Return(domain.RawOutcome{Won: boolPtr(false)}, nil).Once()

	session, err := workflow.Resume(context.Background(), ResumeRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, session.Status)
	backend.AssertNotCalled(t, "CreateInvoice", mock.Anything, mock.Anything)
}

func TestResultRejectionFailsSession(t *testing.T) {
	backend := mocks.NewMockBackend(t)
	workflow, _ := newTestWorkflow(t, backend, seededStore(t, storedSession(t, domain.StatusPaid)))

	backend.EXPECT().GenerateResult(mock.Anything, domain.SessionID("S1"), "inv-1").
		Return(domain.RawOutcome{}, fmt.Errorf("generate result: %w: status 409", domain.ErrTerminalRejected)).Once()

	session, err := workflow.Resume(context.Background(), ResumeRequest{})
	require.ErrorIs(t, err, domain.ErrTerminalRejected)
	assert.Equal(t, domain.StatusFailed, session.Status)
	assert.Equal(t, domain.ReasonResultRejected, session.FailureReason)
}

func TestStartPlayRejectedWhileSessionActive(t *testing.T) {
	existing := storedSession(t, domain.StatusAwaitingPayment)
	store := seededStore(t, existing)
	backend := mocks.NewMockBackend(t)
	workflow, recorder := newTestWorkflow(t, backend, store)

	session, err := workflow.StartPlay(context.Background(), PlayRequest{})
	require.ErrorIs(t, err, domain.ErrSessionActive)
	assert.Equal(t, existing.ID, session.ID)
	assert.Empty(t, recorder.statuses())

	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, existing, stored)
}

func TestStartPlayRequiresAcknowledgedFailure(t *testing.T) {
	failed := storedSession(t, domain.StatusAwaitingPayment, func(s *domain.Session) {
		require.NoError(t, s.Fail(domain.ReasonPaymentRejected, errors.New("payment EXPIRED"), testNow))
	})
	store := seededStore(t, failed)
	backend := mocks.NewMockBackend(t)
	workflow, _ := newTestWorkflow(t, backend, store, WithIDGenerator(func() domain.SessionID { return "S2" }))

	_, err := workflow.StartPlay(context.Background(), PlayRequest{})
	require.ErrorIs(t, err, domain.ErrUnacknowledgedFailure)

	require.NoError(t, workflow.Acknowledge(context.Background()))
	_, err = store.Load(context.Background())
	require.ErrorIs(t, err, domain.ErrNoSession)

	backend.EXPECT().CreateInvoice(mock.Anything, mock.MatchedBy(func(req ports.CreateInvoiceRequest) bool {
		return req.SessionID == "S2"
	})).Return("", fmt.Errorf("create invoice: %w: status 400", domain.ErrTerminalRejected)).Once()

	session, err := workflow.StartPlay(context.Background(), PlayRequest{})
	require.ErrorIs(t, err, domain.ErrTerminalRejected)
	assert.Equal(t, domain.SessionID("S2"), session.ID)
	assert.Equal(t, domain.ReasonInvoiceCreateFailed, session.FailureReason)
}

func TestAcknowledgeRefusesActiveSession(t *testing.T) {
	store := seededStore(t, storedSession(t, domain.StatusMinting))
	workflow, _ := newTestWorkflow(t, mocks.NewMockBackend(t), store)

	require.ErrorIs(t, workflow.Acknowledge(context.Background()), domain.ErrSessionActive)

	empty, _ := newTestWorkflow(t, mocks.NewMockBackend(t), memory.New())
	require.ErrorIs(t, empty.Acknowledge(context.Background()), domain.ErrNoSession)
}

func TestMintFailureKeepsMintingForUserRetry(t *testing.T) {
	store := seededStore(t, storedSession(t, domain.StatusMinting))

	backend := mocks.NewMockBackend(t)
	workflow, recorder := newTestWorkflow(t, backend, store)
	backend.EXPECT().MintNFT(mock.Anything, mock.Anything).
		Return("", fmt.Errorf("mint nft: %w: status 422", domain.ErrTerminalRejected)).Once()

	session, err := workflow.Resume(context.Background(), ResumeRequest{})
	require.ErrorIs(t, err, domain.ErrTerminalRejected)
	assert.Equal(t, domain.StatusMinting, session.Status)
	assert.Contains(t, session.LastError, "status 422")
	assert.Equal(t, domain.StatusMinting, recorder.last().Status)
	assert.Error(t, recorder.last().Err)

	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusMinting, stored.Status)

	backend.EXPECT().MintNFT(mock.Anything, mock.Anything).Return("tx-9", nil).Once()
	session, err = workflow.Resume(context.Background(), ResumeRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, session.Status)
	assert.Equal(t, "tx-9", session.MintTx)
	assert.Empty(t, session.LastError)
}

func TestResumeSuppliesMissingWallet(t *testing.T) {
	store := seededStore(t, storedSession(t, domain.StatusMinting, func(s *domain.Session) {
		s.WalletAddress = ""
	}))
	backend := mocks.NewMockBackend(t)
	workflow, _ := newTestWorkflow(t, backend, store)

	session, err := workflow.Resume(context.Background(), ResumeRequest{})
	require.ErrorIs(t, err, domain.ErrWalletRequired)
	assert.Equal(t, domain.StatusMinting, session.Status)

	backend.EXPECT().MintNFT(mock.Anything, ports.MintRequest{SessionID: "S1", PrizeID: 3, WalletAddress: "EQnew", Network: domain.NetworkMainnet}).Return("tx-2", nil).Once()
	session, err = workflow.Resume(context.Background(), ResumeRequest{WalletAddress: "EQnew"})
	require.NoError(t, err)
	assert.Equal(t, "EQnew", session.WalletAddress)
	assert.Equal(t, domain.StatusCompleted, session.Status)

	_, err = workflow.Resume(context.Background(), ResumeRequest{WalletAddress: "EQother"})
	require.NoError(t, err, "finished sessions are returned as is")
}

func TestResumeRejectsDifferentWallet(t *testing.T) {
	store := seededStore(t, storedSession(t, domain.StatusMinting))
	workflow, _ := newTestWorkflow(t, mocks.NewMockBackend(t), store)

	_, err := workflow.Resume(context.Background(), ResumeRequest{WalletAddress: "EQsomeoneelse"})
	require.ErrorIs(t, err, ErrWalletConflict)
}

func TestResumeExpiresOldSession(t *testing.T) {
	store := seededStore(t, storedSession(t, domain.StatusAwaitingPayment, func(s *domain.Session) {
		s.CreatedAt = testNow.Add(-25 * time.Hour)
	}))
	workflow, _ := newTestWorkflow(t, mocks.NewMockBackend(t), store)

	session, err := workflow.Resume(context.Background(), ResumeRequest{})
	require.ErrorIs(t, err, domain.ErrSessionExpired)
	assert.Equal(t, domain.StatusFailed, session.Status)
	assert.Equal(t, domain.ReasonSessionExpired, session.FailureReason)
	assert.Contains(t, err.Error(), "validated manually")
	assert.Contains(t, err.Error(), "inv-1")
}

func TestResumeWithoutSession(t *testing.T) {
	workflow, _ := newTestWorkflow(t, mocks.NewMockBackend(t), memory.New())

	_, err := workflow.Resume(context.Background(), ResumeRequest{})
	require.ErrorIs(t, err, domain.ErrNoSession)

	_, err = workflow.Restore(context.Background())
	require.ErrorIs(t, err, domain.ErrNoSession)
}

func TestConcurrentRunIsRejectedAndCancelStopsPolling(t *testing.T) {
	backend := mocks.NewMockBackend(t)
	store := memory.New()
	workflow, _ := newTestWorkflow(t, backend, store)

	started := make(chan struct{})
	var once sync.Once
	backend.EXPECT().CreateInvoice(mock.Anything, mock.Anything).Return("inv-1", nil).Once()
	backend.EXPECT().VerifyPayment(mock.Anything, "inv-1").RunAndReturn(func(ctx context.Context, _ string) (ports.PaymentStatus, error) {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return "", ctx.Err()
	})

	type result struct {
		session domain.Session
		err     error
	}
	done := make(chan result, 1)
	go func() {
		session, err := workflow.StartPlay(context.Background(), PlayRequest{})
		done <- result{session: session, err: err}
	}()

	<-started
	_, err := workflow.Resume(context.Background(), ResumeRequest{})
	require.ErrorIs(t, err, ErrBusy)

	workflow.Cancel()
	res := <-done
	require.ErrorIs(t, res.err, context.Canceled)
	assert.Equal(t, domain.StatusAwaitingPayment, res.session.Status)

	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingPayment, stored.Status)
}

func TestSaveFailureDegradesButDoesNotStopPlay(t *testing.T) {
	backend := mocks.NewMockBackend(t)
	store := mocks.NewMockSessionStore(t)
	workflow, recorder := newTestWorkflow(t, backend, store)

	store.EXPECT().Load(mock.Anything).Return(domain.Session{}, domain.ErrNoSession).Once()
	store.EXPECT().Save(mock.Anything, mock.Anything).Return(errors.New("disk full"))
	store.EXPECT().Clear(mock.Anything).Return(nil).Once()
	backend.EXPECT().CreateInvoice(mock.Anything, mock.Anything).Return("inv-1", nil).Once()
	backend.EXPECT().VerifyPayment(mock.Anything, "inv-1").Return(ports.PaymentConfirmed, nil).Once()
	backend.EXPECT().GenerateResult(mock.Anything, domain.SessionID("S1"), "inv-1").
		Return(domain.RawOutcome{Won: boolPtr(false)}, nil).Once()

	session, err := workflow.StartPlay(context.Background(), PlayRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, session.Status)
	for _, change := range recorder.changes {
		assert.True(t, change.Degraded, "status %s", change.Status)
	}
}

func TestDegradedStoreOptionFlagsEveryPhaseChange(t *testing.T) {
	backend := mocks.NewMockBackend(t)
	workflow, recorder := newTestWorkflow(t, backend, memory.New(), WithDegradedStore(true))

	backend.EXPECT().CreateInvoice(mock.Anything, mock.Anything).Return("", fmt.Errorf("create invoice: %w", domain.ErrTerminalRejected)).Once()

	_, err := workflow.StartPlay(context.Background(), PlayRequest{})
	require.Error(t, err)
	require.NotEmpty(t, recorder.changes)
	for _, change := range recorder.changes {
		assert.True(t, change.Degraded)
	}
}

func TestTonPlayVerifiesOnChain(t *testing.T) {
	backend := mocks.NewMockBackend(t)
	workflow, _ := newTestWorkflow(t, backend, memory.New())

	backend.EXPECT().CreateInvoice(mock.Anything, ports.CreateInvoiceRequest{
		SessionID:     "S1",
		Amount:        1_000_000_000,
		PaymentMethod: domain.PaymentMethodTON,
	}).Return("inv-ton", nil).Once()
	backend.EXPECT().VerifyTonPayment(mock.Anything, ports.TonPaymentRequest{
		SessionID:     "S1",
		InvoiceID:     "inv-ton",
		WalletAddress: "EQwallet",
		Amount:        1_000_000_000,
	}).Return(ports.PaymentConfirmed, nil).Once()
	backend.EXPECT().GenerateResult(mock.Anything, domain.SessionID("S1"), "inv-ton").
		Return(domain.RawOutcome{Won: boolPtr(false)}, nil).Once()

	session, err := workflow.StartPlay(context.Background(), PlayRequest{Method: domain.PaymentMethodTON, WalletAddress: "EQwallet"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, session.Status)
}

func TestTonPlayRequiresWallet(t *testing.T) {
	store := memory.New()
	workflow, _ := newTestWorkflow(t, mocks.NewMockBackend(t), store)

	_, err := workflow.StartPlay(context.Background(), PlayRequest{Method: domain.PaymentMethodTON})
	require.ErrorIs(t, err, domain.ErrWalletRequired)

	_, err = store.Load(context.Background())
	require.ErrorIs(t, err, domain.ErrNoSession)
}

func TestNewWorkflowValidatesInputs(t *testing.T) {
	_, err := NewWorkflow(nil, memory.New(), nil, DefaultWorkflowConfig())
	require.Error(t, err)

	cfg := DefaultWorkflowConfig()
	cfg.PaymentTimeout = 0
	_, err = NewWorkflow(mocks.NewMockBackend(t), memory.New(), nil, cfg)
	require.ErrorContains(t, err, "payment timeout")

	cfg = DefaultWorkflowConfig()
	cfg.Mint.Network = "devnet"
	_, err = NewWorkflow(mocks.NewMockBackend(t), memory.New(), nil, cfg)
	require.ErrorContains(t, err, "ton network")
}

func TestPaymentRetriesAreCountedOnce(t *testing.T) {
	store := memory.New()
	backend := mocks.NewMockBackend(t)
	workflow, _ := newTestWorkflow(t, backend, store)

	backend.EXPECT().CreateInvoice(mock.Anything, mock.Anything).Return("inv-1", nil).Once()
	backend.EXPECT().VerifyPayment(mock.Anything, "inv-1").Return("", transientErr("verify payment")).Times(2)
	backend.EXPECT().VerifyPayment(mock.Anything, "inv-1").Return(ports.PaymentPending, nil)

	session, err := workflow.StartPlay(context.Background(), PlayRequest{})
	require.ErrorIs(t, err, domain.ErrTimeout)
	assert.Equal(t, domain.StatusAwaitingPayment, session.Status)
	// Two failed calls within one check are one retry.
	assert.Equal(t, 1, session.Attempts)

	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Attempts)
}

func TestWorkflowsSharingAFileSlotNeverDriveItTogether(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	firstStore, err := filestore.New(path)
	require.NoError(t, err)
	secondStore, err := filestore.New(path)
	require.NoError(t, err)

	clock := mocks.NewMockClock(t)
	clock.EXPECT().Now().Return(testNow).Maybe()
	cfg := testWorkflowConfig()
	cfg.PaymentTimeout = 10 * time.Second

	firstBackend := mocks.NewMockBackend(t)
	first, err := NewWorkflow(firstBackend, firstStore, clock, cfg,
		WithIDGenerator(func() domain.SessionID { return "S1" }))
	require.NoError(t, err)

	secondBackend := mocks.NewMockBackend(t)
	second, _ := newTestWorkflow(t, secondBackend, secondStore,
		WithIDGenerator(func() domain.SessionID { return "S2" }))

	polling := make(chan struct{})
	confirm := make(chan struct{})
	var once sync.Once
	firstBackend.EXPECT().CreateInvoice(mock.Anything, mock.Anything).Return("inv-1", nil).Once()
	firstBackend.EXPECT().VerifyPayment(mock.Anything, "inv-1").RunAndReturn(func(ctx context.Context, _ string) (ports.PaymentStatus, error) {
		once.Do(func() { close(polling) })
		select {
		case <-confirm:
			return ports.PaymentConfirmed, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	firstBackend.EXPECT().GenerateResult(mock.Anything, domain.SessionID("S1"), "inv-1").
		Return(domain.RawOutcome{Won: boolPtr(false)}, nil).Once()

	type result struct {
		session domain.Session
		err     error
	}
	done := make(chan result, 1)
	go func() {
		session, err := first.StartPlay(context.Background(), PlayRequest{})
		done <- result{session: session, err: err}
	}()
	<-polling

	_, err = second.Resume(context.Background(), ResumeRequest{})
	require.ErrorIs(t, err, ErrBusy)
	require.ErrorIs(t, err, ports.ErrSlotLocked)
	_, err = second.StartPlay(context.Background(), PlayRequest{})
	require.ErrorIs(t, err, ErrBusy)
	require.ErrorIs(t, second.Acknowledge(context.Background()), ErrBusy)

	close(confirm)
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, domain.StatusCompleted, res.session.Status)

	// The slot is free again: the second process starts its own play, which
	// stays pending.
	secondBackend.EXPECT().CreateInvoice(mock.Anything, mock.Anything).Return("inv-2", nil).Once()
	secondBackend.EXPECT().VerifyPayment(mock.Anything, "inv-2").Return(ports.PaymentPending, nil)
	_, err = second.StartPlay(context.Background(), PlayRequest{})
	require.ErrorIs(t, err, domain.ErrTimeout)

	// The first workflow still remembers its completed play but must see the
	// pending one in the slot instead of starting over it.
	session, err := first.StartPlay(context.Background(), PlayRequest{})
	require.ErrorIs(t, err, domain.ErrSessionActive)
	assert.Equal(t, domain.SessionID("S2"), session.ID)

	stored, err := firstStore.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.SessionID("S2"), stored.ID)
	assert.Equal(t, domain.StatusAwaitingPayment, stored.Status)
	assert.Equal(t, "inv-2", stored.InvoiceID)
}
