package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bnema/growscratch-cli/internal/domain"
	"github.com/bnema/growscratch-cli/internal/logging"
	"github.com/bnema/growscratch-cli/internal/ports"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

const (
	maxResponseBytes = 1 << 20

	defaultRequestTimeout  = 30 * time.Second
	defaultBreakerFailures = 5
	defaultBreakerCooldown = 30 * time.Second

	headerIdempotencyKey = "Idempotency-Key"
	headerInitData       = "X-Telegram-Init-Data"
)

const (
	PathCreateInvoice    = "/api/create-invoice"
	PathVerifyPayment    = "/api/verify-payment"
	PathVerifyTonPayment = "/api/verify-ton-payment"
	PathGenerateResult   = "/api/generate-result"
	PathMintNFT          = "/api/mint-nft"
)

type Options struct {
	BaseURL        string
	InitData       string
	HTTPClient     *stdhttp.Client
	RequestTimeout time.Duration

	// BreakerFailures is the number of consecutive transient failures on one
	// endpoint that opens its breaker. BreakerCooldown is how long it stays open.
	BreakerFailures uint32
	BreakerCooldown time.Duration

	Logger *logrus.Logger
}

// Client talks to the GrowScratch backend. Each endpoint has its own circuit
// breaker so a failing mint service does not block payment polling.
type Client struct {
	baseURL        *url.URL
	initData       string
	httpClient     *stdhttp.Client
	requestTimeout time.Duration
	breakers       map[string]*gobreaker.CircuitBreaker
	log            *logrus.Entry
}

var _ ports.Backend = (*Client)(nil)

func New(opts Options) (*Client, error) {
	baseURL, err := parseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = stdhttp.DefaultClient
	}
	requestTimeout := opts.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	failures := opts.BreakerFailures
	if failures == 0 {
		failures = defaultBreakerFailures
	}
	cooldown := opts.BreakerCooldown
	if cooldown <= 0 {
		cooldown = defaultBreakerCooldown
	}

	log := logging.Component(opts.Logger, "backend")
	breakers := make(map[string]*gobreaker.CircuitBreaker, 5)
	for _, path := range []string{PathCreateInvoice, PathVerifyPayment, PathVerifyTonPayment, PathGenerateResult, PathMintNFT} {
		breakers[path] = newBreaker(path, failures, cooldown, log)
	}

	return &Client{
		baseURL:        baseURL,
		initData:       strings.TrimSpace(opts.InitData),
		httpClient:     httpClient,
		requestTimeout: requestTimeout,
		breakers:       breakers,
		log:            log,
	}, nil
}

func newBreaker(path string, failures uint32, cooldown time.Duration, log *logrus.Entry) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        path,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// A backend that answers with a rejection is healthy.
		IsSuccessful: func(err error) bool {
			return err == nil || !domain.IsTransient(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"endpoint": name,
				"from":     from.String(),
				"to":       to.String(),
			}).Warn("circuit breaker state changed")
		},
	})
}

type createInvoiceBody struct {
	SessionID     string `json:"session_id"`
	Amount        int64  `json:"amount"`
	PaymentMethod string `json:"payment_method"`
}

type createInvoiceResponse struct {
	InvoiceID string `json:"invoice_id"`
}

type verifyPaymentBody struct {
	InvoiceID string `json:"invoice_id"`
}

type verifyTonPaymentBody struct {
	SessionID     string `json:"session_id"`
	InvoiceID     string `json:"invoice_id"`
	WalletAddress string `json:"wallet_address"`
	Amount        int64  `json:"amount"`
}

type paymentStatusResponse struct {
	Status string `json:"status"`
}

type generateResultBody struct {
	SessionID string `json:"session_id"`
	InvoiceID string `json:"invoice_id"`
}

type generateResultResponse struct {
	Won     *bool `json:"won"`
	PrizeID *int  `json:"prize_id"`
}

type mintBody struct {
	SessionID         string `json:"session_id"`
	PrizeID           int    `json:"prize_id"`
	WalletAddress     string `json:"wallet_address"`
	Network           string `json:"network,omitempty"`
	CollectionAddress string `json:"collection_address,omitempty"`
}

type mintResponse struct {
	TxRef string `json:"tx_ref"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) CreateInvoice(ctx context.Context, req ports.CreateInvoiceRequest) (string, error) {
	if req.SessionID == "" {
		return "", errors.New("create invoice: session id is required")
	}

	var resp createInvoiceResponse
	err := c.call(ctx, "create invoice", PathCreateInvoice, string(req.SessionID), createInvoiceBody{
		SessionID:     string(req.SessionID),
		Amount:        req.Amount,
		PaymentMethod: string(req.PaymentMethod),
	}, &resp)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.InvoiceID) == "" {
		return "", fmt.Errorf("create invoice: %w: response has no invoice_id", domain.ErrMalformedResult)
	}
	return resp.InvoiceID, nil
}

func (c *Client) VerifyPayment(ctx context.Context, invoiceID string) (ports.PaymentStatus, error) {
	if invoiceID == "" {
		return "", errors.New("verify payment: invoice id is required")
	}

	var resp paymentStatusResponse
	if err := c.call(ctx, "verify payment", PathVerifyPayment, "", verifyPaymentBody{InvoiceID: invoiceID}, &resp); err != nil {
		return "", err
	}
	return parsePaymentStatus("verify payment", resp.Status)
}

func (c *Client) VerifyTonPayment(ctx context.Context, req ports.TonPaymentRequest) (ports.PaymentStatus, error) {
	if req.InvoiceID == "" {
		return "", errors.New("verify ton payment: invoice id is required")
	}

	var resp paymentStatusResponse
	err := c.call(ctx, "verify ton payment", PathVerifyTonPayment, string(req.SessionID), verifyTonPaymentBody{
		SessionID:     string(req.SessionID),
		InvoiceID:     req.InvoiceID,
		WalletAddress: req.WalletAddress,
		Amount:        req.Amount,
	}, &resp)
	if err != nil {
		return "", err
	}
	return parsePaymentStatus("verify ton payment", resp.Status)
}

func (c *Client) GenerateResult(ctx context.Context, sessionID domain.SessionID, invoiceID string) (domain.RawOutcome, error) {
	if sessionID == "" || invoiceID == "" {
		return domain.RawOutcome{}, errors.New("generate result: session id and invoice id are required")
	}

	var resp generateResultResponse
	err := c.call(ctx, "generate result", PathGenerateResult, string(sessionID), generateResultBody{
		SessionID: string(sessionID),
		InvoiceID: invoiceID,
	}, &resp)
	if err != nil {
		return domain.RawOutcome{}, err
	}
	return domain.RawOutcome{Won: resp.Won, PrizeID: resp.PrizeID}, nil
}

func (c *Client) MintNFT(ctx context.Context, req ports.MintRequest) (string, error) {
	if req.SessionID == "" {
		return "", errors.New("mint nft: session id is required")
	}
	if strings.TrimSpace(req.WalletAddress) == "" {
		return "", fmt.Errorf("mint nft: %w", domain.ErrWalletRequired)
	}

	var resp mintResponse
	err := c.call(ctx, "mint nft", PathMintNFT, string(req.SessionID), mintBody{
		SessionID:         string(req.SessionID),
		PrizeID:           req.PrizeID,
		WalletAddress:     req.WalletAddress,
		Network:           req.Network,
		CollectionAddress: req.CollectionAddress,
	}, &resp)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.TxRef) == "" {
		return "", fmt.Errorf("mint nft: %w: response has no tx_ref", domain.ErrMalformedResult)
	}
	return resp.TxRef, nil
}

func parsePaymentStatus(op string, raw string) (ports.PaymentStatus, error) {
	status := ports.PaymentStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", fmt.Errorf("%s: %w: unknown payment status %q", op, domain.ErrMalformedResult, raw)
	}
	return status, nil
}

// call runs one request through the endpoint's breaker. An open breaker is
// reported as a transient failure so callers keep their retry semantics.
func (c *Client) call(ctx context.Context, op string, path string, idempotencyKey string, body any, out any) error {
	breaker := c.breakers[path]
	_, err := breaker.Execute(func() (interface{}, error) {
		return nil, c.do(ctx, op, path, idempotencyKey, body, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w: %v", op, domain.ErrTransientNetwork, err)
	}
	return err
}

func (c *Client) do(ctx context.Context, op string, path string, idempotencyKey string, body any, out any) error {
	endpoint, err := c.baseURL.Parse(path)
	if err != nil {
		return fmt.Errorf("%s: parse api path: %w", op, err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", op, err)
	}

	requestCtx, cancel := c.requestContext(ctx)
	defer cancel()

	req, err := stdhttp.NewRequestWithContext(requestCtx, stdhttp.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if idempotencyKey != "" {
		req.Header.Set(headerIdempotencyKey, idempotencyKey)
	}
	if c.initData != "" {
		req.Header.Set(headerInitData, c.initData)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", op, ctxErr)
		}
		return fmt.Errorf("%s: %w: %v", op, domain.ErrTransientNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.log.WithFields(logrus.Fields{
		"endpoint": path,
		"status":   resp.StatusCode,
	}).Debug("backend responded")

	if resp.StatusCode < stdhttp.StatusOK || resp.StatusCode >= stdhttp.StatusMultipleChoices {
		return classifyStatus(op, resp)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", op, ctxErr)
		}
		if requestCtx.Err() != nil {
			return fmt.Errorf("%s: %w: read response: %v", op, domain.ErrTransientNetwork, err)
		}
		return fmt.Errorf("%s: %w: decode response: %v", op, domain.ErrMalformedResult, err)
	}
	return nil
}

func classifyStatus(op string, resp *stdhttp.Response) error {
	detail := fmt.Sprintf("status %d", resp.StatusCode)
	var payload errorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err == nil {
		switch {
		case payload.Error != "" && payload.Message != "":
			detail += ": " + payload.Error + ": " + payload.Message
		case payload.Error != "":
			detail += ": " + payload.Error
		case payload.Message != "":
			detail += ": " + payload.Message
		}
	}

	switch {
	case resp.StatusCode == stdhttp.StatusRequestTimeout,
		resp.StatusCode == stdhttp.StatusTooManyRequests,
		resp.StatusCode >= stdhttp.StatusInternalServerError:
		return fmt.Errorf("%s: %w: %s", op, domain.ErrTransientNetwork, detail)
	case resp.StatusCode >= stdhttp.StatusBadRequest:
		return fmt.Errorf("%s: %w: %s", op, domain.ErrTerminalRejected, detail)
	default:
		return fmt.Errorf("%s: %w: unexpected %s", op, domain.ErrMalformedResult, detail)
	}
}

func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.requestTimeout)
}

func parseBaseURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, errors.New("api base url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errors.New("api base url must use http or https")
	}
	if parsed.Host == "" {
		return nil, errors.New("api base url host is required")
	}
	return parsed, nil
}
