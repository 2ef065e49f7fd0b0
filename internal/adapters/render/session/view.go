package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/bnema/growscratch-cli/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

type RenderOptions struct {
	Now         time.Time
	MaxAge      time.Duration
	Catalog     domain.Catalog
	ExplorerURL string
	Network     string
	Degraded    bool
}

var track = []domain.Status{
	domain.StatusCreated,
	domain.StatusAwaitingPayment,
	domain.StatusPaid,
	domain.StatusResultReady,
	domain.StatusMinting,
	domain.StatusCompleted,
}

func renderView(session *domain.Session, opts RenderOptions, s styles) string {
	lines := []string{s.title.Render("GrowScratch Session")}

	if session == nil {
		lines = append(lines, s.empty.Render("No session stored. Run gs play to start one."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	lines = append(lines,
		s.header.Render(fmt.Sprintf("session: %s", session.ID)),
		s.section.Render(renderTrack(*session, s)),
	)

	details := []string{
		field(s, "status", s.status.Render(string(session.Status))),
		field(s, "amount", domain.FormatAmount(session.Amount, session.PaymentMethod)),
		field(s, "invoice", orNA(session.InvoiceID)),
	}
	if session.WalletAddress != "" {
		details = append(details, field(s, "wallet", domain.ShortenAddress(session.WalletAddress)))
	}
	if age := ageLine(*session, opts); age != "" {
		details = append(details, field(s, "started", age))
	}
	lines = append(lines, s.section.Render(lipgloss.JoinVertical(lipgloss.Left, details...)))

	if outcome := outcomeLines(*session, opts, s); len(outcome) > 0 {
		lines = append(lines, s.section.Render(lipgloss.JoinVertical(lipgloss.Left, outcome...)))
	}
	if problems := problemLines(*session, opts, s); len(problems) > 0 {
		lines = append(lines, s.section.Render(lipgloss.JoinVertical(lipgloss.Left, problems...)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// renderTrack draws the forward path with the current status highlighted. A
// failed session marks the step it never reached.
func renderTrack(session domain.Session, s styles) string {
	reached := reachedIndex(session)
	parts := make([]string, 0, len(track)*2)
	for i, status := range track {
		if i > 0 {
			parts = append(parts, s.separator.Render(" > "))
		}
		label := trackLabel(status)
		switch {
		case session.Status == domain.StatusFailed && i == reached+1:
			parts = append(parts, s.stepFail.Render("x "+label))
		case session.Status == domain.StatusFailed && i <= reached:
			parts = append(parts, s.stepDone.Render(label))
		case session.Status == domain.StatusCompleted || i < reached:
			parts = append(parts, s.stepDone.Render(label))
		case i == reached:
			parts = append(parts, s.stepNow.Render("["+label+"]"))
		default:
			parts = append(parts, s.stepTodo.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

// reachedIndex is the furthest track step the session got to. Failed sessions
// are placed from the facts they recorded.
func reachedIndex(session domain.Session) int {
	for i, status := range track {
		if status == session.Status {
			return i
		}
	}

	switch {
	case session.Outcome != nil:
		return 3
	case session.Paid():
		return 2
	case session.InvoiceID != "":
		return 1
	default:
		return 0
	}
}

func trackLabel(status domain.Status) string {
	switch status {
	case domain.StatusCreated:
		return "invoice"
	case domain.StatusAwaitingPayment:
		return "payment"
	case domain.StatusPaid:
		return "paid"
	case domain.StatusResultReady:
		return "result"
	case domain.StatusMinting:
		return "mint"
	case domain.StatusCompleted:
		return "done"
	default:
		return strings.ToLower(string(status))
	}
}

func outcomeLines(session domain.Session, opts RenderOptions, s styles) []string {
	if session.Outcome == nil {
		return nil
	}
	if !session.Outcome.Won {
		return []string{s.detail.Render("No prize this time.")}
	}

	lines := []string{s.success.Render("You won " + prizeLabel(*session.Outcome.PrizeID, opts.Catalog) + "!")}
	switch {
	case session.MintTx != "":
		lines = append(lines, field(s, "mint tx", session.MintTx))
		if opts.Network != "" {
			lines = append(lines, field(s, "network", opts.Network))
		}
		if link := explorerLink(opts.ExplorerURL, session.MintTx); link != "" {
			lines = append(lines, field(s, "explorer", link))
		}
	case session.Status == domain.StatusMinting && session.WalletAddress == "":
		lines = append(lines, s.warning.Render("Connect a wallet to claim: gs resume --wallet <address>"))
	case session.Status == domain.StatusMinting:
		lines = append(lines, s.detail.Render("Minting to "+domain.ShortenAddress(session.WalletAddress)+"..."))
	}
	return lines
}

func problemLines(session domain.Session, opts RenderOptions, s styles) []string {
	var lines []string

	if session.Status == domain.StatusFailed {
		lines = append(lines, s.warning.Render("Failed: "+string(session.FailureReason)))
		if session.LastError != "" {
			lines = append(lines, field(s, "cause", session.LastError))
		}
		if session.InvoiceID != "" {
			lines = append(lines, s.detail.Render(fmt.Sprintf("Contact support with session %s and invoice %s.", session.ID, session.InvoiceID)))
		}
		lines = append(lines, s.empty.Render("Run gs ack to clear this session."))
	} else if session.LastError != "" {
		lines = append(lines, field(s, "last error", session.LastError))
		if session.Active() {
			lines = append(lines, s.empty.Render("Run gs resume to continue."))
		}
	}

	if opts.Degraded {
		lines = append(lines, s.warning.Render("Session is not persisted; it will be lost if the process exits."))
	}
	return lines
}

func prizeLabel(id int, catalog domain.Catalog) string {
	if prize, ok := catalog.ByID(id); ok {
		return fmt.Sprintf("%s (%s)", prize.Name, prize.Rarity)
	}
	return fmt.Sprintf("prize #%d", id)
}

func explorerLink(base, tx string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" || tx == "" {
		return ""
	}
	return base + "/tx/" + tx
}

func ageLine(session domain.Session, opts RenderOptions) string {
	if session.CreatedAt.IsZero() {
		return ""
	}
	started := session.CreatedAt.UTC().Format("2006-01-02 15:04 MST")
	if opts.Now.IsZero() {
		return started
	}

	line := fmt.Sprintf("%s (%s ago)", started, formatDuration(opts.Now.Sub(session.CreatedAt)))
	if session.Active() && session.Expired(opts.Now, opts.MaxAge) {
		line += " [expired]"
	}
	return line
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "<1m"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func field(s styles, key, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, s.key.Render(key+":"), " ", s.detail.Render(value))
}

func orNA(value string) string {
	if value == "" {
		return "n/a"
	}
	return value
}
