package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/omar4917/real-estate-project/internal/domain"
	"github.com/omar4917/real-estate-project/internal/repos"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	WalletModeAuto = "auto"
	WalletModeLive = "live"
	WalletModeMock = "mock"

	walletCompleted   = "Completed"
	walletCallbackURI = "/api/payments/webhook/bkash"
)

var errWalletCreds = &ConfigurationError{Provider: Bkash, Msg: "bKash credentials not configured."}

type WalletConfig struct {
	BaseURL   string
	AppKey    string
	AppSecret string
	Username  string
	Password  string
	Currency  string
	Mode      string // auto | live | mock
	Timeout   time.Duration
}

func (c WalletConfig) HasCredentials() bool {
	return c.BaseURL != "" && c.AppKey != "" && c.AppSecret != "" && c.Username != "" && c.Password != ""
}

// WalletProvider is the full wallet strategy: initiation, callbacks and the
// execute/query steps.
type WalletProvider interface {
	Provider
	WalletOperator
}

// NewWallet picks the wallet variant from cfg.Mode. "auto" falls back to
// the mock when any credential is missing; "live" refuses to start without them.
func NewWallet(cfg WalletConfig, client *http.Client, payments *repos.PaymentRepo, rec *Reconciler) (WalletProvider, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	switch mode {
	case "", WalletModeAuto:
		if !cfg.HasCredentials() {
			return NewMockWallet(payments, rec), nil
		}
	case WalletModeMock:
		return NewMockWallet(payments, rec), nil
	case WalletModeLive:
		if !cfg.HasCredentials() {
			return nil, errWalletCreds
		}
	default:
		return nil, fmt.Errorf("unknown wallet mode %q", cfg.Mode)
	}
	return NewLiveWallet(cfg, client, payments, rec), nil
}

// walletCallback is the unsigned JSON body the wallet posts back.
type walletCallback struct {
	PaymentID         string `json:"paymentID"`
	TransactionStatus string `json:"transactionStatus"`
}

func walletStatus(flag string) domain.PaymentStatus {
	if flag == walletCompleted {
		return domain.PaymentSuccess
	}
	return domain.PaymentFailed
}

// handleWalletCallback is shared by both variants; the provider offers no
// signature to check.
func handleWalletCallback(ctx context.Context, rec *Reconciler, payload []byte) (Result, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		payload = []byte(`{}`)
	}
	var body walletCallback
	if err := json.Unmarshal(payload, &body); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}
	if body.PaymentID == "" {
		return Result{Outcome: OutcomeNoReference}, nil
	}
	return rec.Reconcile(ctx, Bkash, body.PaymentID, walletStatus(body.TransactionStatus), payload)
}

func walletInitiation(p domain.Payment, redirect string) Initiation {
	return Initiation{
		PaymentID:     p.ID,
		Provider:      Bkash,
		TransactionID: p.TransactionID,
		Status:        p.Status,
		WalletDetails: &WalletDetails{BkashPaymentID: p.TransactionID, RedirectURL: redirect},
	}
}

// LiveWallet talks to the tokenized checkout API: grant token, create,
// execute, query. Each step is its own HTTP call bounded by cfg.Timeout.
type LiveWallet struct {
	cfg      WalletConfig
	client   *http.Client
	payments *repos.PaymentRepo
	rec      *Reconciler
	cb       *gobreaker.CircuitBreaker
	now      func() time.Time
}

func NewLiveWallet(cfg WalletConfig, client *http.Client, payments *repos.PaymentRepo, rec *Reconciler) *LiveWallet {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultProviderTimeout
	}
	if cfg.Currency == "" {
		cfg.Currency = "BDT"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &LiveWallet{cfg: cfg, client: client, payments: payments, rec: rec, cb: newBreaker(Bkash), now: time.Now}
}

func (w *LiveWallet) Name() Name { return Bkash }

func (w *LiveWallet) Initiate(ctx context.Context, tx *sqlx.Tx, b domain.Booking, rc RequestContext) (Initiation, error) {
	ctx, span := otel.Tracer("payments").Start(ctx, "Wallet.Initiate")
	defer span.End()

	token, err := w.token(ctx)
	if err != nil {
		return Initiation{}, err
	}
	callback := ""
	if rc.BaseURL != "" {
		callback = strings.TrimRight(rc.BaseURL, "/") + walletCallbackURI
	}
	raw, err := w.post(ctx, "create payment", "/checkout/payment/create", token, map[string]string{
		"mode":                  "0011",
		"payerReference":        b.UserID,
		"callbackURL":           callback,
		"amount":                b.TotalAmount.StringFixed(2),
		"currency":              w.cfg.Currency,
		"intent":                "sale",
		"merchantInvoiceNumber": "inv-" + b.ID,
	})
	if err != nil {
		return Initiation{}, err
	}
	var created struct {
		PaymentID string `json:"paymentID"`
		BkashURL  string `json:"bkashURL"`
	}
	if err := json.Unmarshal(raw, &created); err != nil || created.PaymentID == "" {
		return Initiation{}, &ProviderError{Provider: Bkash, Op: "create payment", Err: errors.New("response carries no paymentID")}
	}
	span.SetAttributes(attribute.String("payment.transaction_id", created.PaymentID))

	now := w.now().UTC()
	p := domain.Payment{
		ID:            uuid.NewString(),
		BookingID:     b.ID,
		Provider:      string(Bkash),
		TransactionID: created.PaymentID,
		Status:        domain.PaymentPending,
		RawResponse:   raw,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := w.payments.Insert(ctx, tx, p); err != nil {
		return Initiation{}, err
	}
	return walletInitiation(p, created.BkashURL), nil
}

func (w *LiveWallet) Resume(p domain.Payment) Initiation {
	var stored struct {
		BkashURL string `json:"bkashURL"`
	}
	_ = json.Unmarshal(p.RawResponse, &stored)
	return walletInitiation(p, stored.BkashURL)
}

func (w *LiveWallet) HandleCallback(ctx context.Context, payload []byte, _ string) (Result, error) {
	return handleWalletCallback(ctx, w.rec, payload)
}

// Execute finalizes a payment the customer approved and reconciles the result.
func (w *LiveWallet) Execute(ctx context.Context, transactionID string) ([]byte, domain.PaymentStatus, error) {
	ctx, span := otel.Tracer("payments").Start(ctx, "Wallet.Execute")
	defer span.End()

	token, err := w.token(ctx)
	if err != nil {
		return nil, "", err
	}
	raw, err := w.post(ctx, "execute payment", "/checkout/payment/execute", token, map[string]string{"paymentID": transactionID})
	if err != nil {
		return nil, "", err
	}
	var body walletCallback
	_ = json.Unmarshal(raw, &body)
	status := walletStatus(body.TransactionStatus)
	if _, err := w.rec.Reconcile(ctx, Bkash, transactionID, status, raw); err != nil {
		return nil, "", err
	}
	return raw, status, nil
}

// Query reads the provider's view of a payment without changing local state.
func (w *LiveWallet) Query(ctx context.Context, transactionID string) ([]byte, error) {
	ctx, span := otel.Tracer("payments").Start(ctx, "Wallet.Query")
	defer span.End()

	token, err := w.token(ctx)
	if err != nil {
		return nil, err
	}
	return w.post(ctx, "query payment", "/checkout/payment/query", token, map[string]string{"paymentID": transactionID})
}

func (w *LiveWallet) token(ctx context.Context) (string, error) {
	raw, err := w.call(ctx, "grant token", "/token/grant", map[string]string{
		"username": w.cfg.Username,
		"password": w.cfg.Password,
	}, map[string]string{
		"app_key":    w.cfg.AppKey,
		"app_secret": w.cfg.AppSecret,
	})
	if err != nil {
		return "", err
	}
	var grant struct {
		IDToken string `json:"id_token"`
	}
	if err := json.Unmarshal(raw, &grant); err != nil || grant.IDToken == "" {
		return "", &ProviderError{Provider: Bkash, Op: "grant token", Err: errors.New("bKash token missing")}
	}
	return grant.IDToken, nil
}

func (w *LiveWallet) post(ctx context.Context, op, path, token string, body any) ([]byte, error) {
	return w.call(ctx, op, path, map[string]string{
		"authorization": token,
		"x-app-key":     w.cfg.AppKey,
	}, body)
}

// call performs one outbound request under its own deadline and the breaker.
func (w *LiveWallet) call(ctx context.Context, op, path string, headers map[string]string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return guard(w.cb, Bkash, op, func() ([]byte, error) {
		cctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(cctx, http.MethodPost, w.cfg.BaseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, &ProviderError{Provider: Bkash, Op: op, Err: err}
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := w.client.Do(req)
		if err != nil {
			return nil, &ProviderError{Provider: Bkash, Op: op, Err: err}
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, &ProviderError{Provider: Bkash, Op: op, Err: err}
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &ProviderError{Provider: Bkash, Op: op, Status: resp.StatusCode, Err: errors.New(strings.TrimSpace(string(b)))}
		}
		if !json.Valid(b) {
			return nil, &ProviderError{Provider: Bkash, Op: op, Err: errors.New("response is not JSON")}
		}
		return b, nil
	})
}

// MockWallet stands in when no credentials exist: initiation succeeds at
// once with a synthesized transaction id; execute and query are refused.
type MockWallet struct {
	payments *repos.PaymentRepo
	rec      *Reconciler
	now      func() time.Time
}

func NewMockWallet(payments *repos.PaymentRepo, rec *Reconciler) *MockWallet {
	return &MockWallet{payments: payments, rec: rec, now: time.Now}
}

func (m *MockWallet) Name() Name { return Bkash }

func (m *MockWallet) Initiate(ctx context.Context, tx *sqlx.Tx, b domain.Booking, _ RequestContext) (Initiation, error) {
	n, err := m.payments.CountForBooking(ctx, tx, b.ID)
	if err != nil {
		return Initiation{}, err
	}
	now := m.now().UTC()
	raw := json.RawMessage(`{"message":"Mock bKash payment success"}`)
	p := domain.Payment{
		ID:            uuid.NewString(),
		BookingID:     b.ID,
		Provider:      string(Bkash),
		TransactionID: fmt.Sprintf("bkash-mock-%s-%d", b.ID, n+1),
		Status:        domain.PaymentPending,
		RawResponse:   raw,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := m.payments.Insert(ctx, tx, p); err != nil {
		return Initiation{}, err
	}
	res, err := m.rec.apply(ctx, tx, p, domain.PaymentSuccess, raw)
	if err != nil {
		return Initiation{}, err
	}
	return walletInitiation(res.Payment, ""), nil
}

func (m *MockWallet) Resume(p domain.Payment) Initiation { return walletInitiation(p, "") }

func (m *MockWallet) HandleCallback(ctx context.Context, payload []byte, _ string) (Result, error) {
	return handleWalletCallback(ctx, m.rec, payload)
}

func (m *MockWallet) Execute(context.Context, string) ([]byte, domain.PaymentStatus, error) {
	return nil, "", errWalletCreds
}

func (m *MockWallet) Query(context.Context, string) ([]byte, error) {
	return nil, errWalletCreds
}
