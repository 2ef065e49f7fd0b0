// Package sessionstore holds the persisted session record format shared by
// the durable stores, and the startup selection between durable and
// in-memory storage.
package sessionstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/growscratch-cli/internal/domain"
)

const RecordVersion = 1

var ErrUnsupportedVersion = errors.New("unsupported session record version")

type record struct {
	Version       int            `json:"version"`
	SessionID     string         `json:"session_id"`
	InvoiceID     string         `json:"invoice_id,omitempty"`
	Amount        int64          `json:"amount"`
	PaymentMethod string         `json:"payment_method"`
	WalletAddress string         `json:"wallet_address,omitempty"`
	Status        string         `json:"status"`
	Outcome       *outcomeRecord `json:"outcome,omitempty"`
	MintTx        string         `json:"mint_tx,omitempty"`
	FailureReason string         `json:"failure_reason,omitempty"`
	LastError     string         `json:"last_error,omitempty"`
	CreatedAt     string         `json:"created_at"`
	UpdatedAt     string         `json:"updated_at"`
	PaidAt        string         `json:"paid_at,omitempty"`
	Attempts      int            `json:"attempts"`
}

type outcomeRecord struct {
	Won     bool `json:"won"`
	PrizeID *int `json:"prize_id,omitempty"`
}

// Encode renders session as the versioned JSON record.
func Encode(session domain.Session) ([]byte, error) {
	if session.ID == "" {
		return nil, errors.New("encode session: id is empty")
	}
	if !session.Status.Valid() {
		return nil, fmt.Errorf("encode session: invalid status %q", session.Status)
	}

	rec := record{
		Version:       RecordVersion,
		SessionID:     string(session.ID),
		InvoiceID:     session.InvoiceID,
		Amount:        session.Amount,
		PaymentMethod: string(session.PaymentMethod),
		WalletAddress: session.WalletAddress,
		Status:        string(session.Status),
		MintTx:        session.MintTx,
		FailureReason: string(session.FailureReason),
		LastError:     session.LastError,
		CreatedAt:     formatTime(session.CreatedAt),
		UpdatedAt:     formatTime(session.UpdatedAt),
		PaidAt:        formatTime(session.PaidAt),
		Attempts:      session.Attempts,
	}
	if session.Outcome != nil {
		rec.Outcome = &outcomeRecord{Won: session.Outcome.Won}
		if session.Outcome.PrizeID != nil {
			id := *session.Outcome.PrizeID
			rec.Outcome.PrizeID = &id
		}
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return data, nil
}

// Decode parses a record written by Encode. Records from a newer client are
// refused rather than half-understood.
func Decode(data []byte) (domain.Session, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.Session{}, fmt.Errorf("decode session: %w", err)
	}
	if rec.Version > RecordVersion {
		return domain.Session{}, fmt.Errorf("decode session: %w: %d", ErrUnsupportedVersion, rec.Version)
	}
	if rec.SessionID == "" {
		return domain.Session{}, errors.New("decode session: session_id is empty")
	}

	status := domain.Status(rec.Status)
	if !status.Valid() {
		return domain.Session{}, fmt.Errorf("decode session: unknown status %q", rec.Status)
	}

	createdAt, err := parseTime("created_at", rec.CreatedAt)
	if err != nil {
		return domain.Session{}, err
	}
	updatedAt, err := parseTime("updated_at", rec.UpdatedAt)
	if err != nil {
		return domain.Session{}, err
	}
	paidAt, err := parseTime("paid_at", rec.PaidAt)
	if err != nil {
		return domain.Session{}, err
	}

	session := domain.Session{
		ID:            domain.SessionID(rec.SessionID),
		InvoiceID:     rec.InvoiceID,
		Amount:        rec.Amount,
		PaymentMethod: domain.PaymentMethod(rec.PaymentMethod),
		WalletAddress: rec.WalletAddress,
		Status:        status,
		MintTx:        rec.MintTx,
		FailureReason: domain.FailureReason(rec.FailureReason),
		LastError:     rec.LastError,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
		PaidAt:        paidAt,
		Attempts:      rec.Attempts,
	}
	if session.PaymentMethod == "" {
		session.PaymentMethod = domain.PaymentMethodStars
	}
	if rec.Outcome != nil {
		session.Outcome = &domain.Outcome{Won: rec.Outcome.Won, PrizeID: rec.Outcome.PrizeID}
	}
	return session, nil
}

// parseTime accepts an empty field as the zero time. Anything else must be
// RFC 3339, otherwise expiry and payment evidence would be lost.
func parseTime(field, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode session: %s %q is not RFC 3339: %w", field, raw, err)
	}
	return parsed.UTC(), nil
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339Nano)
}
