// Package sandbox is a local stand-in for the GrowScratch backend. It keeps
// every invoice, result and mint in memory and honours the same idempotency
// rules as the real service.
package sandbox

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/bnema/growscratch-cli/internal/domain"
	"github.com/bnema/growscratch-cli/internal/logging"
	"github.com/bnema/growscratch-cli/internal/ports"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const (
	DefaultListen       = "127.0.0.1:8787"
	DefaultPendingPolls = 2
)

type Config struct {
	WinRate      float64
	PendingPolls int
	Seed         int64

	// PaymentStatus is what verification reports once the pending polls are
	// used up. Defaults to CONFIRMED.
	PaymentStatus ports.PaymentStatus

	Catalog domain.Catalog
	Logger  *logrus.Logger
}

type invoice struct {
	id        string
	sessionID string
	amount    int64
	method    string
	polls     int
	status    ports.PaymentStatus
}

type result struct {
	won     bool
	prizeID int
}

type Server struct {
	cfg     Config
	app     *fiber.App
	log     *logrus.Entry
	metrics *metrics

	mu        sync.Mutex
	rng       *rand.Rand
	invoices  map[string]*invoice
	bySession map[string]string
	results   map[string]result
	mints     map[string]string
}

func New(cfg Config) (*Server, error) {
	if cfg.WinRate < 0 || cfg.WinRate > 1 {
		return nil, errors.New("win rate must be within [0,1]")
	}
	if cfg.PendingPolls < 0 {
		return nil, errors.New("pending polls must not be negative")
	}
	if cfg.PaymentStatus == "" {
		cfg.PaymentStatus = ports.PaymentConfirmed
	}
	if cfg.PaymentStatus == ports.PaymentPending || !cfg.PaymentStatus.Valid() {
		return nil, errors.New("payment status must be CONFIRMED, EXPIRED or REJECTED")
	}
	if len(cfg.Catalog) == 0 {
		cfg.Catalog = domain.DefaultCatalog()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	s := &Server{
		cfg:       cfg,
		log:       logging.Component(cfg.Logger, "sandbox"),
		metrics:   newMetrics(),
		rng:       rand.New(rand.NewSource(seed)),
		invoices:  map[string]*invoice{},
		bySession: map[string]string{},
		results:   map[string]result{},
		mints:     map[string]string{},
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		AppName:               "growscratch-sandbox",
	})
	app.Use(recover.New())
	app.Use(s.countRequests)

	api := app.Group("/api")
	api.Post("/create-invoice", s.createInvoice)
	api.Post("/verify-payment", s.verifyPayment)
	api.Post("/verify-ton-payment", s.verifyTonPayment)
	api.Post("/generate-result", s.generateResult)
	api.Post("/mint-nft", s.mintNFT)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))
	app.Get("/metrics", func(c *fiber.Ctx) error {
		metricsHandler(c.Context())
		return nil
	})

	s.app = app
	return s, nil
}

func (s *Server) App() *fiber.App {
	return s.app
}

// Serve blocks serving on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.log.WithField("addr", ln.Addr().String()).Info("sandbox backend listening")
	return s.app.Listener(ln)
}

func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

type createInvoiceRequest struct {
	SessionID     string `json:"session_id"`
	Amount        int64  `json:"amount"`
	PaymentMethod string `json:"payment_method"`
}

type verifyPaymentRequest struct {
	InvoiceID string `json:"invoice_id"`
}

type verifyTonPaymentRequest struct {
	SessionID     string `json:"session_id"`
	InvoiceID     string `json:"invoice_id"`
	WalletAddress string `json:"wallet_address"`
	Amount        int64  `json:"amount"`
}

type generateResultRequest struct {
	SessionID string `json:"session_id"`
	InvoiceID string `json:"invoice_id"`
}

type mintRequest struct {
	SessionID         string `json:"session_id"`
	PrizeID           int    `json:"prize_id"`
	WalletAddress     string `json:"wallet_address"`
	Network           string `json:"network"`
	CollectionAddress string `json:"collection_address"`
}

type generateResultResponse struct {
	Won     bool `json:"won"`
	PrizeID *int `json:"prize_id,omitempty"`
}

func (s *Server) createInvoice(c *fiber.Ctx) error {
	var req createInvoiceRequest
	if err := c.BodyParser(&req); err != nil {
		return reject(c, fiber.StatusBadRequest, "invalid json body")
	}
	if req.SessionID == "" || req.Amount <= 0 {
		return reject(c, fiber.StatusBadRequest, "session_id and a positive amount are required")
	}
	if err := checkIdempotencyKey(c, req.SessionID); err != nil {
		return err
	}
	method := req.PaymentMethod
	if method == "" {
		method = string(domain.PaymentMethodStars)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.bySession[req.SessionID]; ok {
		existing := s.invoices[id]
		if existing.amount != req.Amount || existing.method != method {
			return reject(c, fiber.StatusConflict, "session already has an invoice with different terms")
		}
		return c.JSON(fiber.Map{"invoice_id": id})
	}

	inv := &invoice{
		id:        "inv_" + uuid.NewString(),
		sessionID: req.SessionID,
		amount:    req.Amount,
		method:    method,
		status:    ports.PaymentPending,
	}
	s.invoices[inv.id] = inv
	s.bySession[req.SessionID] = inv.id
	s.log.WithFields(logrus.Fields{"session_id": req.SessionID, "invoice_id": inv.id}).Info("invoice created")

	return c.JSON(fiber.Map{"invoice_id": inv.id})
}

func (s *Server) verifyPayment(c *fiber.Ctx) error {
	var req verifyPaymentRequest
	if err := c.BodyParser(&req); err != nil || req.InvoiceID == "" {
		return reject(c, fiber.StatusBadRequest, "invoice_id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[req.InvoiceID]
	if !ok {
		return reject(c, fiber.StatusNotFound, "unknown invoice")
	}
	return c.JSON(fiber.Map{"status": s.advancePayment(inv)})
}

func (s *Server) verifyTonPayment(c *fiber.Ctx) error {
	var req verifyTonPaymentRequest
	if err := c.BodyParser(&req); err != nil || req.InvoiceID == "" {
		return reject(c, fiber.StatusBadRequest, "invoice_id is required")
	}
	if strings.TrimSpace(req.WalletAddress) == "" {
		return reject(c, fiber.StatusBadRequest, "wallet_address is required")
	}
	if err := checkIdempotencyKey(c, req.SessionID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[req.InvoiceID]
	if !ok || inv.sessionID != req.SessionID {
		return reject(c, fiber.StatusNotFound, "unknown invoice")
	}
	if inv.amount != req.Amount {
		return reject(c, fiber.StatusBadRequest, "amount does not match invoice")
	}
	return c.JSON(fiber.Map{"status": s.advancePayment(inv)})
}

// advancePayment settles inv after the configured number of pending polls.
// Callers hold s.mu.
func (s *Server) advancePayment(inv *invoice) ports.PaymentStatus {
	if inv.status != ports.PaymentPending {
		return inv.status
	}
	inv.polls++
	if inv.polls > s.cfg.PendingPolls {
		inv.status = s.cfg.PaymentStatus
		s.metrics.payments.WithLabelValues(string(inv.status)).Inc()
	}
	return inv.status
}

func (s *Server) generateResult(c *fiber.Ctx) error {
	var req generateResultRequest
	if err := c.BodyParser(&req); err != nil || req.SessionID == "" || req.InvoiceID == "" {
		return reject(c, fiber.StatusBadRequest, "session_id and invoice_id are required")
	}
	if err := checkIdempotencyKey(c, req.SessionID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[req.InvoiceID]
	if !ok || inv.sessionID != req.SessionID {
		return reject(c, fiber.StatusNotFound, "unknown invoice")
	}
	if inv.status != ports.PaymentConfirmed {
		return reject(c, fiber.StatusConflict, "payment not confirmed")
	}

	res, ok := s.results[req.SessionID]
	if !ok {
		res = s.roll()
		s.results[req.SessionID] = res
		s.metrics.results.WithLabelValues(boolLabel(res.won)).Inc()
		s.log.WithFields(logrus.Fields{"session_id": req.SessionID, "won": res.won, "prize_id": res.prizeID}).Info("result generated")
	}

	resp := generateResultResponse{Won: res.won}
	if res.won {
		id := res.prizeID
		resp.PrizeID = &id
	}
	return c.JSON(resp)
}

// roll decides an outcome. Callers hold s.mu.
func (s *Server) roll() result {
	if s.rng.Float64() >= s.cfg.WinRate {
		return result{}
	}
	prize := s.cfg.Catalog[s.rng.Intn(len(s.cfg.Catalog))]
	return result{won: true, prizeID: prize.ID}
}

func (s *Server) mintNFT(c *fiber.Ctx) error {
	var req mintRequest
	if err := c.BodyParser(&req); err != nil || req.SessionID == "" {
		return reject(c, fiber.StatusBadRequest, "session_id is required")
	}
	if strings.TrimSpace(req.WalletAddress) == "" {
		return reject(c, fiber.StatusBadRequest, "wallet_address is required")
	}
	if req.Network != "" {
		if err := (domain.MintTarget{Network: req.Network}).Validate(); err != nil {
			return reject(c, fiber.StatusBadRequest, err.Error())
		}
	}
	if err := checkIdempotencyKey(c, req.SessionID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if tx, ok := s.mints[req.SessionID]; ok {
		return c.JSON(fiber.Map{"tx_ref": tx})
	}

	res, ok := s.results[req.SessionID]
	if !ok || !res.won {
		return reject(c, fiber.StatusConflict, "session has no winning result")
	}
	if res.prizeID != req.PrizeID {
		return reject(c, fiber.StatusConflict, "prize does not match result")
	}

	tx := "tx_" + uuid.NewString()
	s.mints[req.SessionID] = tx
	s.metrics.mints.Inc()
	s.log.WithFields(logrus.Fields{
		"session_id": req.SessionID,
		"tx_ref":     tx,
		"network":    req.Network,
		"collection": req.CollectionAddress,
	}).Info("prize minted")

	return c.JSON(fiber.Map{"tx_ref": tx})
}

func (s *Server) countRequests(c *fiber.Ctx) error {
	err := c.Next()
	status := c.Response().StatusCode()
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		status = fiberErr.Code
	}
	s.metrics.requests.WithLabelValues(c.Path(), statusLabel(status)).Inc()
	return err
}

func checkIdempotencyKey(c *fiber.Ctx, sessionID string) error {
	key := c.Get("Idempotency-Key")
	if key != "" && key != sessionID {
		return reject(c, fiber.StatusBadRequest, "idempotency key does not match session_id")
	}
	return nil
}

func reject(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": message})
}
