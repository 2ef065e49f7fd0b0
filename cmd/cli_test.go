package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bnema/growscratch-cli/internal/adapters/sandbox"
	filestore "github.com/bnema/growscratch-cli/internal/adapters/sessionstore/file"
	"github.com/bnema/growscratch-cli/internal/domain"
	"github.com/bnema/growscratch-cli/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type playResult struct {
	Session *sessionOutput `json:"session"`
	Error   string         `json:"error"`
}

func TestPlayWinningStarsPlayMintsAndClearsSlot(t *testing.T) {
	home := t.TempDir()
	baseURL := startSandbox(t, sandbox.Config{WinRate: 1, Catalog: domain.Catalog{{ID: 3, Name: "Rare Unicorn NFT", Rarity: domain.RarityRare}}})

	stdout, _, err := executeCLI(t, home, env{"GS_API_BASE_URL": baseURL}, "play", "--wallet", "EQwalletaddress0001", "--json")
	require.NoError(t, err)

	result := decodePlay(t, stdout)
	require.NotNil(t, result.Session)
	assert.Empty(t, result.Error)
	assert.Equal(t, "COMPLETED", result.Session.Status)
	assert.Equal(t, "25 Stars", result.Session.AmountLabel)
	assert.NotEmpty(t, result.Session.InvoiceID)
	assert.NotEmpty(t, result.Session.MintTx)
	assert.Equal(t, "https://tonscan.org/tx/"+result.Session.MintTx, result.Session.ExplorerURL)
	require.NotNil(t, result.Session.Outcome)
	assert.True(t, result.Session.Outcome.Won)
	assert.Equal(t, "Rare Unicorn NFT", result.Session.Outcome.PrizeName)

	stdout, _, err = executeCLI(t, home, env{"GS_API_BASE_URL": baseURL}, "session", "--json")
	require.NoError(t, err)
	assert.Nil(t, decodePlay(t, stdout).Session)
}

func TestPlayLosingRendersSessionView(t *testing.T) {
	home := t.TempDir()
	baseURL := startSandbox(t, sandbox.Config{WinRate: 0})

	stdout, stderr, err := executeCLI(t, home, env{"GS_API_BASE_URL": baseURL}, "play")
	require.NoError(t, err)

	assert.Contains(t, stdout, "GrowScratch Session")
	assert.Contains(t, stdout, "status: COMPLETED")
	assert.Contains(t, stdout, "No prize this time.")
	assert.Contains(t, stderr, "session advanced")
}

func TestPendingPaymentIsResumedWithoutNewInvoice(t *testing.T) {
	home := t.TempDir()
	baseURL := startSandbox(t, sandbox.Config{WinRate: 0, PendingPolls: 20})
	impatient := env{"GS_API_BASE_URL": baseURL, "GS_WORKFLOW_PAYMENT_TIMEOUT": "30ms"}

	stdout, _, err := executeCLI(t, home, impatient, "play", "--json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "still pending")
	assert.Contains(t, err.Error(), "gs resume")

	first := decodePlay(t, stdout)
	require.NotNil(t, first.Session)
	assert.Equal(t, "AWAITING_PAYMENT", first.Session.Status)

	_, _, err = executeCLI(t, home, impatient, "play", "--json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already in progress")

	stdout, _, err = executeCLI(t, home, env{"GS_API_BASE_URL": baseURL, "GS_WORKFLOW_PAYMENT_TIMEOUT": "10s"}, "resume", "--json")
	require.NoError(t, err)

	resumed := decodePlay(t, stdout)
	require.NotNil(t, resumed.Session)
	assert.Equal(t, "COMPLETED", resumed.Session.Status)
	assert.Equal(t, first.Session.SessionID, resumed.Session.SessionID)
	assert.Equal(t, first.Session.InvoiceID, resumed.Session.InvoiceID)
}

func TestFailedPlayMustBeAcknowledged(t *testing.T) {
	home := t.TempDir()
	baseURL := startSandbox(t, sandbox.Config{PaymentStatus: ports.PaymentExpired})
	vars := env{"GS_API_BASE_URL": baseURL}

	_, _, err := executeCLI(t, home, vars, "play", "--json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAYMENT_REJECTED")
	assert.Contains(t, err.Error(), "contact support")

	_, _, err = executeCLI(t, home, vars, "play", "--json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has not been acknowledged")
	assert.Contains(t, err.Error(), "gs ack")

	stdout, _, err := executeCLI(t, home, vars, "session")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Failed: PAYMENT_REJECTED")
	assert.Contains(t, stdout, "Contact support with session")

	stdout, _, err = executeCLI(t, home, vars, "ack")
	require.NoError(t, err)
	assert.Contains(t, stdout, "(FAILED) cleared.")

	stdout, _, err = executeCLI(t, home, vars, "session")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No session stored")
}

func TestAckWithoutSession(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, nil, "ack")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no session stored")
	assert.Contains(t, err.Error(), "gs play")
}

func TestTonPlayRequiresWallet(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, nil, "play", "--ton", "--json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wallet address is required")
	assert.Contains(t, err.Error(), "--wallet")
}

func TestTonPlayCompletes(t *testing.T) {
	home := t.TempDir()
	baseURL := startSandbox(t, sandbox.Config{WinRate: 0})

	stdout, _, err := executeCLI(t, home, env{"GS_API_BASE_URL": baseURL}, "play", "--ton", "--wallet", "EQwalletaddress0001", "--json")
	require.NoError(t, err)

	result := decodePlay(t, stdout)
	require.NotNil(t, result.Session)
	assert.Equal(t, "COMPLETED", result.Session.Status)
	assert.Equal(t, "ton", result.Session.PaymentMethod)
	assert.Equal(t, "1.00 TON", result.Session.AmountLabel)
}

func TestMemoryStoreReportsDegraded(t *testing.T) {
	home := t.TempDir()
	baseURL := startSandbox(t, sandbox.Config{WinRate: 0})

	stdout, stderr, err := executeCLI(t, home, env{"GS_API_BASE_URL": baseURL, "GS_STORE_BACKEND": "memory"}, "play", "--json")
	require.NoError(t, err)

	result := decodePlay(t, stdout)
	require.NotNil(t, result.Session)
	assert.True(t, result.Session.Degraded)
	assert.Contains(t, stderr, "PERSISTENCE_DEGRADED")
	assert.NoFileExists(t, filepath.Join(home, ".growscratch", "session.json"))
}

func TestSessionShowsEmptySlot(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), nil, "session")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No session stored")
}

func TestPrizesListsCatalog(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), nil, "prizes")
	require.NoError(t, err)
	assert.Contains(t, stdout, "prizes: 9")
	assert.Contains(t, stdout, "Legendary Kraken NFT")
	assert.Contains(t, stdout, "Win rate 20%, one play costs 25 Stars or 1.00 TON.")

	stdout, _, err = executeCLI(t, t.TempDir(), nil, "prizes", "--json")
	require.NoError(t, err)

	var prizes []prizeOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &prizes))
	require.Len(t, prizes, 9)
	assert.Equal(t, prizeOutput{ID: 1, Name: "Legendary Dragon NFT", Rarity: "Legendary", Image: "assets/prizes/prize-1.png"}, prizes[0])
}

func TestConfigInitShowAndPath(t *testing.T) {
	home := t.TempDir()
	vars := env{"GS_TELEGRAM_INIT_DATA": "query_id=1&hash=abc"}

	stdout, _, err := executeCLI(t, home, vars, "config", "init")
	require.NoError(t, err)
	path := filepath.Join(home, ".growscratch", "config.toml")
	assert.Contains(t, stdout, path)
	assert.FileExists(t, path)

	_, _, err = executeCLI(t, home, vars, "config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	stdout, _, err = executeCLI(t, home, nil, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "[api]")
	assert.Contains(t, stdout, "your-backend.workers.dev")
	assert.Contains(t, stdout, "<redacted>")
	assert.NotContains(t, stdout, "hash=abc")

	stdout, _, err = executeCLI(t, home, nil, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, path+"\n", stdout)
}

func TestInvalidConfigIsReported(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), env{"GS_GAME_STARS_COST": "0"}, "session")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), nil, "version", "--json")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"app_name": "gs"`)
}

func TestSandboxRejectsInvalidFlags(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), nil, "sandbox", "--win-rate", "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "win rate")
}

type env map[string]string

// lockedBuffer lets the spinner and the logger share stderr.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func executeCLI(t *testing.T, home string, vars env, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", home)
	t.Setenv("GS_CONFIG_FILE", "")
	t.Setenv("GS_WORKFLOW_POLL_INTERVAL", "5ms")
	t.Setenv("GS_RETRY_BASE_DELAY", "1ms")
	t.Setenv("GS_LOG_LEVEL", "info")
	t.Setenv("GS_CREDENTIALS_BACKEND", "file")
	for key, value := range vars {
		t.Setenv(key, value)
	}

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &lockedBuffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func startSandbox(t *testing.T, cfg sandbox.Config) string {
	t.Helper()
	if cfg.Seed == 0 {
		cfg.Seed = 1
	}

	server, err := sandbox.New(cfg)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		_ = server.Serve(ln)
	}()
	t.Cleanup(func() {
		_ = server.Shutdown(context.Background())
	})

	return "http://" + ln.Addr().String()
}

func decodePlay(t *testing.T, stdout string) playResult {
	t.Helper()
	var result playResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &result), stdout)
	return result
}

func TestLoginStoresInitDataUsedByPlay(t *testing.T) {
	home := t.TempDir()
	const initData = "query_id=AAH&auth_date=1&hash=abc123"

	stdout, _, err := executeCLI(t, home, nil, "login", "--init-data", initData)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Telegram init data saved (file backend)")

	stored, err := os.ReadFile(filepath.Join(home, ".growscratch", "credentials", ports.TelegramInitDataKey))
	require.NoError(t, err)
	assert.Equal(t, initData, string(stored))

	a, err := wireApp()
	require.NoError(t, err)
	value, err := a.initData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, initData, value)

	stdout, _, err = executeCLI(t, home, nil, "logout")
	require.NoError(t, err)
	assert.Contains(t, stdout, "removed")

	value, err = a.initData(context.Background())
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestConfiguredInitDataWinsOverStoredOne(t *testing.T) {
	home := t.TempDir()
	_, _, err := executeCLI(t, home, nil, "login", "--init-data", "query_id=stored&hash=s")
	require.NoError(t, err)

	t.Setenv("GS_TELEGRAM_INIT_DATA", "query_id=env&hash=e")
	a, err := wireApp()
	require.NoError(t, err)
	value, err := a.initData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "query_id=env&hash=e", value)
}

func TestLoginRejectsMalformedInitData(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), nil, "login", "--init-data", "query_id=AAH&auth_date=1")
	require.Error(t, err)
	assert.ErrorContains(t, err, "no hash")
}

func TestResumeRefusedWhileAnotherProcessHoldsTheSlot(t *testing.T) {
	home := t.TempDir()
	slot, err := filestore.New(filepath.Join(home, ".growscratch", "session.json"))
	require.NoError(t, err)
	release, err := slot.Lock(context.Background())
	require.NoError(t, err)

	_, _, err = executeCLI(t, home, nil, "resume")
	require.Error(t, err)
	assert.ErrorContains(t, err, "another command is driving this session")

	release()
	_, _, err = executeCLI(t, home, nil, "resume")
	require.ErrorIs(t, err, domain.ErrNoSession)
}

func TestMain(m *testing.M) {
	for _, key := range []string{"GS_API_BASE_URL", "GS_STORE_BACKEND", "GS_TELEGRAM_INIT_DATA", "GS_CREDENTIALS_DIR"} {
		_ = os.Unsetenv(key)
	}
	os.Exit(m.Run())
}
