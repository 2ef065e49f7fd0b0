package application

import "github.com/bnema/growscratch-cli/internal/domain"

type PlayRequest struct {
	Method        domain.PaymentMethod
	WalletAddress string
}

// ResumeRequest may supply the wallet a winning session should be minted to
// when none was known at play time.
type ResumeRequest struct {
	WalletAddress string
}
