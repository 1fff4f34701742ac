// Package payments holds the provider strategies (card processor, mobile
// wallet) and the reconciliation engine that folds provider outcomes into
// Payment and Booking state.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/omar4917/real-estate-project/internal/domain"
)

type Name string

const (
	Stripe Name = "stripe"
	Bkash  Name = "bkash"
)

// defaultProviderTimeout bounds each outbound provider call when the caller
// leaves Timeout unset.
const defaultProviderTimeout = 10 * time.Second

var (
	ErrInvalidProvider = errors.New("invalid provider")
	ErrInvalidWebhook  = errors.New("invalid webhook")
)

func ParseName(s string) (Name, error) {
	switch n := Name(strings.ToLower(strings.TrimSpace(s))); n {
	case Stripe, Bkash:
		return n, nil
	}
	return "", ErrInvalidProvider
}

// ProviderError is an upstream failure: transport error, timeout, non-2xx,
// malformed response or an open circuit. It is never retried here.
type ProviderError struct {
	Provider Name
	Op       string
	Status   int // HTTP status when the upstream answered
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s failed (HTTP %d): %v", e.Provider, e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ConfigurationError means a real provider call was attempted without the
// credentials it needs.
type ConfigurationError struct {
	Provider Name
	Msg      string
}

func (e *ConfigurationError) Error() string { return e.Msg }

// RequestContext carries what a strategy needs from the inbound request.
type RequestContext struct {
	BaseURL string // scheme://host of the API, used for provider callbacks
	UserID  string
}

type CardDetails struct {
	PaymentIntentID string  `json:"payment_intent_id"`
	ClientSecret    *string `json:"client_secret"`
}

type WalletDetails struct {
	BkashPaymentID string `json:"bkash_payment_id"`
	RedirectURL    string `json:"redirect_url,omitempty"`
}

// Initiation is returned to the client. Exactly one of the provider-specific
// parts is set and its fields are flattened into the JSON object.
type Initiation struct {
	PaymentID     string               `json:"payment_id"`
	Provider      Name                 `json:"provider"`
	TransactionID string               `json:"transaction_id"`
	Status        domain.PaymentStatus `json:"status"`
	*CardDetails
	*WalletDetails
}

type Provider interface {
	Name() Name
	// Initiate creates the remote charge and records its Payment inside tx.
	Initiate(ctx context.Context, tx *sqlx.Tx, b domain.Booking, rc RequestContext) (Initiation, error)
	// Resume rebuilds the client view of an existing pending Payment.
	Resume(p domain.Payment) Initiation
	// HandleCallback verifies and parses a provider callback and reconciles it.
	HandleCallback(ctx context.Context, payload []byte, signature string) (Result, error)
}

// WalletOperator covers the wallet protocol steps that follow initiation.
type WalletOperator interface {
	Execute(ctx context.Context, transactionID string) ([]byte, domain.PaymentStatus, error)
	Query(ctx context.Context, transactionID string) ([]byte, error)
}

type Registry struct {
	providers map[Name]Provider
}

func NewRegistry(ps ...Provider) *Registry {
	r := &Registry{providers: make(map[Name]Provider, len(ps))}
	for _, p := range ps {
		r.providers[p.Name()] = p
	}
	return r
}

func (r *Registry) Get(n Name) (Provider, error) {
	p, ok := r.providers[n]
	if !ok {
		return nil, ErrInvalidProvider
	}
	return p, nil
}

// Wallet returns the registered wallet strategy's follow-up operations.
func (r *Registry) Wallet() (WalletOperator, error) {
	p, err := r.Get(Bkash)
	if err != nil {
		return nil, err
	}
	op, ok := p.(WalletOperator)
	if !ok {
		return nil, ErrInvalidProvider
	}
	return op, nil
}
