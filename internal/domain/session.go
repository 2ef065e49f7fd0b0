package domain

import (
	"fmt"
	"time"
)

type SessionID string

type Status string

const (
	StatusCreated         Status = "CREATED"
	StatusAwaitingPayment Status = "AWAITING_PAYMENT"
	StatusPaid            Status = "PAID"
	StatusResultReady     Status = "RESULT_READY"
	StatusMinting         Status = "MINTING"
	StatusCompleted       Status = "COMPLETED"
	StatusFailed          Status = "FAILED"
)

// Terminal reports whether no further automatic progress happens from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) Valid() bool {
	_, ok := forwardTransitions[s]
	return ok || s == StatusFailed
}

var forwardTransitions = map[Status][]Status{
	StatusCreated:         {StatusAwaitingPayment},
	StatusAwaitingPayment: {StatusPaid},
	StatusPaid:            {StatusResultReady},
	StatusResultReady:     {StatusMinting, StatusCompleted},
	StatusMinting:         {StatusCompleted},
	StatusCompleted:       nil,
}

type FailureReason string

const (
	ReasonInvoiceCreateFailed FailureReason = "INVOICE_CREATE_FAILED"
	ReasonPaymentRejected     FailureReason = "PAYMENT_REJECTED"
	ReasonResultRejected      FailureReason = "RESULT_REJECTED"
	ReasonMalformedResult     FailureReason = "MALFORMED_RESULT"
	ReasonSessionExpired      FailureReason = "SESSION_EXPIRED"
)

type PaymentMethod string

const (
	PaymentMethodStars PaymentMethod = "stars"
	PaymentMethodTON   PaymentMethod = "ton"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodStars || m == PaymentMethodTON
}

// Session is one play attempt, tracked from invoice request to completion.
type Session struct {
	ID            SessionID
	InvoiceID     string
	Amount        int64
	PaymentMethod PaymentMethod
	WalletAddress string
	Status        Status
	Outcome       *Outcome
	MintTx        string
	FailureReason FailureReason
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	PaidAt        time.Time
	Attempts      int
}

func NewSession(id SessionID, amount int64, method PaymentMethod, wallet string, now time.Time) Session {
	return Session{
		ID:            id,
		Amount:        amount,
		PaymentMethod: method,
		WalletAddress: wallet,
		Status:        StatusCreated,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Active reports whether the session still occupies the device's play slot.
func (s Session) Active() bool {
	return s.Status != "" && !s.Status.Terminal()
}

// Paid reports whether the backend confirmed payment for this session, even
// if the session failed afterwards.
func (s Session) Paid() bool {
	return !s.PaidAt.IsZero()
}

func (s Session) Expired(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 || s.CreatedAt.IsZero() {
		return false
	}
	return now.Sub(s.CreatedAt) > maxAge
}

// Advance moves the session forward to next. Re-applying the current status
// is a no-op; going backwards or skipping an undefined edge is an error.
func (s *Session) Advance(next Status, now time.Time) error {
	if s.Status == next {
		return nil
	}
	if next == StatusFailed {
		return fmt.Errorf("%w: use Fail to leave %s", ErrInvalidTransition, s.Status)
	}

	for _, allowed := range forwardTransitions[s.Status] {
		if allowed == next {
			s.Status = next
			s.Attempts = 0
			s.UpdatedAt = now
			if next == StatusPaid {
				s.PaidAt = now
			}
			return nil
		}
	}

	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, next)
}

// Fail is the only exit from an active state other than completion.
func (s *Session) Fail(reason FailureReason, cause error, now time.Time) error {
	if !s.Active() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, StatusFailed)
	}

	s.Status = StatusFailed
	s.FailureReason = reason
	if cause != nil {
		s.LastError = cause.Error()
	}
	s.Attempts = 0
	s.UpdatedAt = now
	return nil
}

func (s *Session) SetInvoiceID(invoiceID string) error {
	if invoiceID == "" {
		return fmt.Errorf("%w: empty invoice id", ErrMalformedResult)
	}
	if s.InvoiceID != "" && s.InvoiceID != invoiceID {
		return fmt.Errorf("%w: have %q, got %q", ErrInvoiceImmutable, s.InvoiceID, invoiceID)
	}
	s.InvoiceID = invoiceID
	return nil
}
