package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/growscratch-cli/internal/backoff"
	"github.com/bnema/growscratch-cli/internal/domain"
	"github.com/bnema/growscratch-cli/internal/poll"
	"github.com/bnema/growscratch-cli/internal/ports"
	"github.com/sirupsen/logrus"
)

// run advances session until it completes, fails, or a phase has to stop and
// wait for the user. Each phase persists its own transition before the next
// one starts.
func (w *Workflow) run(ctx context.Context, session domain.Session) (domain.Session, error) {
	for {
		if err := ctx.Err(); err != nil {
			return copySession(session), err
		}

		if session.Active() && session.Expired(w.clock.Now(), w.cfg.SessionMaxAge) {
			cause := fmt.Errorf("%w: started %s; payment may still be validated manually", domain.ErrSessionExpired, session.CreatedAt.Format(time.RFC3339))
			return w.fail(ctx, &session, domain.ReasonSessionExpired, cause)
		}

		var err error
		switch session.Status {
		case domain.StatusCreated:
			err = w.createInvoice(ctx, &session)
		case domain.StatusAwaitingPayment:
			err = w.awaitPayment(ctx, &session)
		case domain.StatusPaid:
			err = w.generateResult(ctx, &session)
		case domain.StatusResultReady:
			err = w.settleOutcome(ctx, &session)
		case domain.StatusMinting:
			err = w.mint(ctx, &session)
		case domain.StatusCompleted:
			w.finish(ctx, session)
			return copySession(session), nil
		case domain.StatusFailed:
			return copySession(session), surface(session, failureCause(session))
		default:
			return copySession(session), fmt.Errorf("%w: unknown status %q", domain.ErrInvalidTransition, session.Status)
		}
		if err != nil {
			return copySession(session), err
		}
	}
}

func (w *Workflow) createInvoice(ctx context.Context, session *domain.Session) error {
	if session.InvoiceID == "" {
		phaseCtx, cancel := context.WithTimeout(ctx, w.cfg.InvoiceTimeout)
		defer cancel()

		req := ports.CreateInvoiceRequest{
			SessionID:     session.ID,
			Amount:        session.Amount,
			PaymentMethod: session.PaymentMethod,
		}
		invoiceID, err := backoff.ExecuteIf(phaseCtx, w.retryPolicy("create invoice", session), domain.IsTransient, func(ctx context.Context) (string, error) {
			return w.backend.CreateInvoice(ctx, req)
		})
		if err == nil {
			err = session.SetInvoiceID(invoiceID)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if phaseCtx.Err() != nil {
				err = fmt.Errorf("create invoice: %w after %s: %v", domain.ErrTimeout, w.cfg.InvoiceTimeout, err)
			}
			_, failErr := w.fail(ctx, session, domain.ReasonInvoiceCreateFailed, err)
			return failErr
		}
	}

	return w.advance(ctx, session, domain.StatusAwaitingPayment)
}

func (w *Workflow) awaitPayment(ctx context.Context, session *domain.Session) error {
	if session.PaymentMethod == domain.PaymentMethodTON && session.WalletAddress == "" {
		return w.retain(ctx, session, fmt.Errorf("verify ton payment: %w", domain.ErrWalletRequired), false)
	}

	opts := poll.Options{
		Interval: w.cfg.PollInterval,
		Timeout:  w.cfg.PaymentTimeout,
		Retry:    w.retryPolicy("verify payment", session),
		OnTick: func(tick int, err error) {
			entry := w.sessionLog(*session).WithField("tick", tick)
			if err != nil {
				entry.WithError(err).Debug("payment check failed")
				return
			}
			entry.Debug("payment checked")
		},
	}

	status, err := poll.Until(ctx, opts, func(ctx context.Context) (ports.PaymentStatus, bool, error) {
		status, err := w.verifyPayment(ctx, *session)
		if err != nil {
			return "", false, err
		}
		return status, status != ports.PaymentPending, nil
	})

	switch {
	case err == nil:
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, domain.ErrTimeout):
		return w.retain(ctx, session, fmt.Errorf("payment for invoice %s is still pending: %w", session.InvoiceID, err), true)
	case errors.Is(err, domain.ErrTerminalRejected):
		_, failErr := w.fail(ctx, session, domain.ReasonPaymentRejected, err)
		return failErr
	case errors.Is(err, domain.ErrMalformedResult):
		_, failErr := w.fail(ctx, session, domain.ReasonMalformedResult, err)
		return failErr
	default:
		return w.retain(ctx, session, err, false)
	}

	switch status {
	case ports.PaymentConfirmed:
		return w.advance(ctx, session, domain.StatusPaid)
	case ports.PaymentExpired, ports.PaymentRejected:
		cause := fmt.Errorf("payment %s: %w", status, domain.ErrTerminalRejected)
		_, failErr := w.fail(ctx, session, domain.ReasonPaymentRejected, cause)
		return failErr
	default:
		cause := fmt.Errorf("verify payment: %w: unexpected status %q", domain.ErrMalformedResult, status)
		_, failErr := w.fail(ctx, session, domain.ReasonMalformedResult, cause)
		return failErr
	}
}

func (w *Workflow) verifyPayment(ctx context.Context, session domain.Session) (ports.PaymentStatus, error) {
	if session.PaymentMethod == domain.PaymentMethodTON {
		return w.backend.VerifyTonPayment(ctx, ports.TonPaymentRequest{
			SessionID:     session.ID,
			InvoiceID:     session.InvoiceID,
			WalletAddress: session.WalletAddress,
			Amount:        session.Amount,
		})
	}
	return w.backend.VerifyPayment(ctx, session.InvoiceID)
}

func (w *Workflow) generateResult(ctx context.Context, session *domain.Session) error {
	phaseCtx, cancel := context.WithTimeout(ctx, w.cfg.ResultTimeout)
	defer cancel()

	raw, err := backoff.ExecuteIf(phaseCtx, w.retryPolicy("generate result", session), domain.IsTransient, func(ctx context.Context) (domain.RawOutcome, error) {
		return w.backend.GenerateResult(ctx, session.ID, session.InvoiceID)
	})
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, domain.ErrMalformedResult):
			_, failErr := w.fail(ctx, session, domain.ReasonMalformedResult, err)
			return failErr
		case errors.Is(err, domain.ErrTerminalRejected):
			_, failErr := w.fail(ctx, session, domain.ReasonResultRejected, err)
			return failErr
		case phaseCtx.Err() != nil:
			err = fmt.Errorf("generate result: %w after %s: %v", domain.ErrTimeout, w.cfg.ResultTimeout, err)
		}
		return w.retain(ctx, session, err, false)
	}

	outcome, err := w.cfg.Game.Prizes.Validate(raw)
	if err != nil {
		_, failErr := w.fail(ctx, session, domain.ReasonMalformedResult, fmt.Errorf("generate result: %w", err))
		return failErr
	}

	session.Outcome = &outcome
	return w.advance(ctx, session, domain.StatusResultReady)
}

func (w *Workflow) settleOutcome(ctx context.Context, session *domain.Session) error {
	if session.Outcome == nil {
		_, failErr := w.fail(ctx, session, domain.ReasonMalformedResult, fmt.Errorf("%w: result ready without an outcome", domain.ErrMalformedResult))
		return failErr
	}
	if session.Outcome.Won {
		return w.advance(ctx, session, domain.StatusMinting)
	}
	return w.advance(ctx, session, domain.StatusCompleted)
}

// mint never fails the session: a paid, winning play stays in MINTING until
// the mint goes through.
func (w *Workflow) mint(ctx context.Context, session *domain.Session) error {
	if session.WalletAddress == "" {
		return w.retain(ctx, session, fmt.Errorf("mint nft: %w", domain.ErrWalletRequired), false)
	}
	if session.Outcome == nil || session.Outcome.PrizeID == nil {
		return w.retain(ctx, session, fmt.Errorf("mint nft: %w: no prize to mint", domain.ErrMalformedResult), false)
	}

	phaseCtx, cancel := context.WithTimeout(ctx, w.cfg.MintTimeout)
	defer cancel()

	req := ports.MintRequest{
		SessionID:         session.ID,
		PrizeID:           *session.Outcome.PrizeID,
		WalletAddress:     session.WalletAddress,
		Network:           w.cfg.Mint.Network,
		CollectionAddress: w.cfg.Mint.CollectionAddress,
	}
	tx, err := backoff.ExecuteIf(phaseCtx, w.retryPolicy("mint nft", session), domain.IsTransient, func(ctx context.Context) (string, error) {
		return w.backend.MintNFT(ctx, req)
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if phaseCtx.Err() != nil {
			err = fmt.Errorf("mint nft: %w after %s: %v", domain.ErrTimeout, w.cfg.MintTimeout, err)
		}
		return w.retain(ctx, session, err, false)
	}

	session.MintTx = tx
	session.LastError = ""
	return w.advance(ctx, session, domain.StatusCompleted)
}

func (w *Workflow) advance(ctx context.Context, session *domain.Session, next domain.Status) error {
	previous := session.Status
	if err := session.Advance(next, w.clock.Now()); err != nil {
		return err
	}
	if previous == next {
		return nil
	}

	w.persist(ctx, session)
	w.sessionLog(*session).WithField("from", previous).Info("session advanced")
	w.publish(*session, nil, false)
	return nil
}

// fail moves session to FAILED. The returned error carries the support
// identifiers once an invoice exists.
func (w *Workflow) fail(ctx context.Context, session *domain.Session, reason domain.FailureReason, cause error) (domain.Session, error) {
	if err := session.Fail(reason, cause, w.clock.Now()); err != nil {
		return copySession(*session), err
	}

	surfaced := surface(*session, fmt.Errorf("%s: %w", reason, cause))
	w.persist(ctx, session)
	w.sessionLog(*session).
		WithError(cause).
		WithFields(logrus.Fields{"reason": reason, "kind": domain.Kind(cause)}).
		Error("session failed")
	w.publish(*session, surfaced, false)
	return copySession(*session), surfaced
}

// retain records err on a session that stays in its current status so the
// user can retry later.
func (w *Workflow) retain(ctx context.Context, session *domain.Session, err error, pending bool) error {
	session.LastError = err.Error()
	session.UpdatedAt = w.clock.Now()

	surfaced := surface(*session, err)
	w.persist(ctx, session)

	entry := w.sessionLog(*session).WithError(err).WithField("kind", domain.Kind(err))
	if pending {
		entry.Warn("payment not confirmed yet; session kept")
	} else {
		entry.Warn("phase failed; session kept for retry")
	}
	w.publish(*session, surfaced, pending)
	return surfaced
}

func (w *Workflow) finish(ctx context.Context, session domain.Session) {
	if err := w.store.Clear(context.WithoutCancel(ctx)); err != nil {
		w.sessionLog(session).
			WithError(err).
			WithField("kind", domain.KindPersistenceDegraded).
			Warn("completed session not cleared from storage")
		return
	}
	w.sessionLog(session).WithField("mint_tx", session.MintTx).Info("session completed")
}

func (w *Workflow) retryPolicy(phase string, session *domain.Session) backoff.Policy {
	policy := w.cfg.Retry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		session.Attempts++
		w.sessionLog(*session).
			WithError(err).
			WithFields(logrus.Fields{"phase": phase, "attempt": attempt + 1, "delay": delay}).
			Warn("retrying backend call")
	}
	return policy
}

// surface attaches support identifiers to err when the session already has
// an invoice.
func surface(session domain.Session, err error) error {
	if err == nil || session.InvoiceID == "" {
		return err
	}
	var supportErr *domain.SupportError
	if errors.As(err, &supportErr) {
		return err
	}
	return &domain.SupportError{SessionID: session.ID, InvoiceID: session.InvoiceID, Err: err}
}

func failureCause(session domain.Session) error {
	cause := domain.ErrTerminalRejected
	switch session.FailureReason {
	case domain.ReasonMalformedResult:
		cause = domain.ErrMalformedResult
	case domain.ReasonSessionExpired:
		cause = domain.ErrSessionExpired
	}
	if session.LastError != "" {
		return fmt.Errorf("%s: %w: %s", session.FailureReason, cause, session.LastError)
	}
	return fmt.Errorf("%s: %w", session.FailureReason, cause)
}
