package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/growscratch-cli/internal/application"
	"github.com/bnema/growscratch-cli/internal/domain"
	"github.com/spf13/cobra"
)

type outcomeOutput struct {
	Won       bool   `json:"won"`
	PrizeID   *int   `json:"prize_id,omitempty"`
	PrizeName string `json:"prize_name,omitempty"`
	Rarity    string `json:"rarity,omitempty"`
}

type sessionOutput struct {
	SessionID     string         `json:"session_id"`
	Status        string         `json:"status"`
	InvoiceID     string         `json:"invoice_id,omitempty"`
	Amount        int64          `json:"amount"`
	AmountLabel   string         `json:"amount_label"`
	PaymentMethod string         `json:"payment_method"`
	WalletAddress string         `json:"wallet_address,omitempty"`
	Outcome       *outcomeOutput `json:"outcome,omitempty"`
	MintTx        string         `json:"mint_tx,omitempty"`
	Network       string         `json:"network,omitempty"`
	ExplorerURL   string         `json:"explorer_url,omitempty"`
	FailureReason string         `json:"failure_reason,omitempty"`
	LastError     string         `json:"last_error,omitempty"`
	CreatedAt     string         `json:"created_at,omitempty"`
	UpdatedAt     string         `json:"updated_at,omitempty"`
	Degraded      bool           `json:"degraded,omitempty"`
}

type commandOutput struct {
	Session *sessionOutput `json:"session"`
	Error   string         `json:"error,omitempty"`
}

// writeSessionOutput prints session as JSON or as the rendered view. runErr
// is included in the JSON document; the caller still returns it.
func writeSessionOutput(cmd *cobra.Command, a *app, session *domain.Session, degraded bool, asJSON bool, runErr error) error {
	if asJSON {
		out := commandOutput{}
		if session != nil {
			out.Session = a.toOutput(*session, degraded)
		}
		if runErr != nil {
			out.Error = runErr.Error()
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	rendered, err := a.renderer(session, a.renderOptions(degraded))
	if err != nil {
		return fmt.Errorf("render session: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

func (a *app) toOutput(session domain.Session, degraded bool) *sessionOutput {
	out := &sessionOutput{
		SessionID:     string(session.ID),
		Status:        string(session.Status),
		InvoiceID:     session.InvoiceID,
		Amount:        session.Amount,
		AmountLabel:   domain.FormatAmount(session.Amount, session.PaymentMethod),
		PaymentMethod: string(session.PaymentMethod),
		WalletAddress: session.WalletAddress,
		MintTx:        session.MintTx,
		FailureReason: string(session.FailureReason),
		LastError:     session.LastError,
		CreatedAt:     formatTimestamp(session.CreatedAt),
		UpdatedAt:     formatTimestamp(session.UpdatedAt),
		Degraded:      degraded,
	}
	if session.MintTx != "" {
		out.Network = a.cfg.TON.Network
		if a.cfg.TON.ExplorerURL != "" {
			out.ExplorerURL = a.cfg.TON.ExplorerURL + "/tx/" + session.MintTx
		}
	}
	if session.Outcome != nil {
		outcome := &outcomeOutput{Won: session.Outcome.Won}
		if session.Outcome.PrizeID != nil {
			id := *session.Outcome.PrizeID
			outcome.PrizeID = &id
			if prize, ok := a.cfg.Game.Prizes.ByID(id); ok {
				outcome.PrizeName = prize.Name
				outcome.Rarity = string(prize.Rarity)
			}
		}
		out.Outcome = outcome
	}
	return out
}

func formatTimestamp(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

// explainError appends the next step a player can take. active reports that
// the play is still stored and can be resumed.
func explainError(err error, active bool) error {
	if err == nil {
		return nil
	}

	hint := ""
	var supportErr *domain.SupportError
	switch {
	case errors.Is(err, context.Canceled):
		hint = "interrupted; progress is saved, run gs resume to continue"
	case errors.Is(err, application.ErrBusy):
		hint = "another command is driving this session"
	case errors.Is(err, domain.ErrSessionActive):
		hint = "run gs resume to continue the current play"
	case errors.Is(err, domain.ErrUnacknowledgedFailure):
		hint = "run gs session to review it, then gs ack to clear it"
	case errors.Is(err, application.ErrWalletConflict):
		hint = "resume with the wallet the play started with"
	case errors.Is(err, domain.ErrWalletRequired):
		hint = "pass --wallet with your TON address"
	case errors.Is(err, domain.ErrNoSession):
		hint = "run gs play to start one"
	case active:
		hint = "the play is kept; run gs resume to try again"
	case errors.As(err, &supportErr):
		hint = "contact support with the session and invoice ids above, then run gs ack"
	}
	if hint == "" {
		return err
	}
	return fmt.Errorf("%w\n%s", err, hint)
}
