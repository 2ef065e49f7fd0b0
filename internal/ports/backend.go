package ports

import (
	"context"

	"github.com/bnema/growscratch-cli/internal/domain"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentConfirmed PaymentStatus = "CONFIRMED"
	PaymentExpired   PaymentStatus = "EXPIRED"
	PaymentRejected  PaymentStatus = "REJECTED"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentConfirmed, PaymentExpired, PaymentRejected:
		return true
	default:
		return false
	}
}

type CreateInvoiceRequest struct {
	SessionID     domain.SessionID
	Amount        int64
	PaymentMethod domain.PaymentMethod
}

type TonPaymentRequest struct {
	SessionID     domain.SessionID
	InvoiceID     string
	WalletAddress string
	Amount        int64
}

type MintRequest struct {
	SessionID         domain.SessionID
	PrizeID           int
	WalletAddress     string
	Network           string
	CollectionAddress string
}

// Backend is the GrowScratch HTTP surface. Calls that carry a session id must
// be idempotent on the server side, keyed by that id.
type Backend interface {
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (string, error)
	VerifyPayment(ctx context.Context, invoiceID string) (PaymentStatus, error)
	VerifyTonPayment(ctx context.Context, req TonPaymentRequest) (PaymentStatus, error)
	GenerateResult(ctx context.Context, sessionID domain.SessionID, invoiceID string) (domain.RawOutcome, error)
	MintNFT(ctx context.Context, req MintRequest) (string, error)
}
