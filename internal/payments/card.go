package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/omar4917/real-estate-project/internal/domain"
	"github.com/omar4917/real-estate-project/internal/log"
	"github.com/omar4917/real-estate-project/internal/repos"
	"github.com/sony/gobreaker"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	eventIntentSucceeded = "payment_intent.succeeded"
	eventIntentFailed    = "payment_intent.payment_failed"
)

// IntentCreator is the slice of the Stripe PaymentIntent API we use.
type IntentCreator interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type CardConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	// InsecureWebhooks accepts unsigned events when WebhookSecret is empty.
	InsecureWebhooks bool
	Timeout          time.Duration
}

type Card struct {
	cfg      CardConfig
	intents  IntentCreator
	payments *repos.PaymentRepo
	rec      *Reconciler
	cb       *gobreaker.CircuitBreaker
	now      func() time.Time
}

// NewCard builds the card strategy. A nil intents uses the live Stripe API
// when a secret key is configured.
func NewCard(cfg CardConfig, intents IntentCreator, payments *repos.PaymentRepo, rec *Reconciler) *Card {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultProviderTimeout
	}
	if cfg.Currency == "" {
		cfg.Currency = string(stripe.CurrencyUSD)
	}
	if intents == nil && cfg.SecretKey != "" {
		backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			HTTPClient:        &http.Client{Timeout: cfg.Timeout},
			MaxNetworkRetries: stripe.Int64(0),
		})
		intents = &paymentintent.Client{B: backend, Key: cfg.SecretKey}
	}
	return &Card{cfg: cfg, intents: intents, payments: payments, rec: rec, cb: newBreaker(Stripe), now: time.Now}
}

func (c *Card) Name() Name { return Stripe }

func (c *Card) Initiate(ctx context.Context, tx *sqlx.Tx, b domain.Booking, _ RequestContext) (Initiation, error) {
	ctx, span := otel.Tracer("payments").Start(ctx, "Card.Initiate")
	defer span.End()

	if c.intents == nil {
		return Initiation{}, &ConfigurationError{Provider: Stripe, Msg: "Stripe secret key not configured."}
	}

	paymentID := uuid.NewString()
	amount := b.TotalAmount.Shift(2).IntPart()
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(c.cfg.Currency),
	}
	params.Context = ctx
	params.AddMetadata("booking_id", b.ID)
	params.AddMetadata("user_id", b.UserID)
	params.SetIdempotencyKey("payment-" + paymentID)
	span.SetAttributes(attribute.Int64("payment.amount_minor", amount))

	intent, err := guard(c.cb, Stripe, "create payment intent", func() (*stripe.PaymentIntent, error) {
		pi, err := c.intents.New(params)
		if err != nil {
			return nil, cardProviderError(err)
		}
		return pi, nil
	})
	if err != nil {
		return Initiation{}, err
	}

	raw, err := json.Marshal(intent)
	if err != nil {
		return Initiation{}, err
	}
	now := c.now().UTC()
	p := domain.Payment{
		ID:            paymentID,
		BookingID:     b.ID,
		Provider:      string(Stripe),
		TransactionID: intent.ID,
		Status:        domain.PaymentPending,
		RawResponse:   raw,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := c.payments.Insert(ctx, tx, p); err != nil {
		return Initiation{}, err
	}

	secret := intent.ClientSecret
	return Initiation{
		PaymentID:     p.ID,
		Provider:      Stripe,
		TransactionID: intent.ID,
		Status:        p.Status,
		CardDetails:   &CardDetails{PaymentIntentID: intent.ID, ClientSecret: &secret},
	}, nil
}

func (c *Card) Resume(p domain.Payment) Initiation {
	var stored struct {
		ClientSecret *string `json:"client_secret"`
	}
	_ = json.Unmarshal(p.RawResponse, &stored)
	return Initiation{
		PaymentID:     p.ID,
		Provider:      Stripe,
		TransactionID: p.TransactionID,
		Status:        p.Status,
		CardDetails:   &CardDetails{PaymentIntentID: p.TransactionID, ClientSecret: stored.ClientSecret},
	}
}

type cardEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

func (c *Card) HandleCallback(ctx context.Context, payload []byte, signature string) (Result, error) {
	switch {
	case c.cfg.WebhookSecret != "":
		if err := webhook.ValidatePayload(payload, signature, c.cfg.WebhookSecret); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
		}
	case c.cfg.InsecureWebhooks:
		log.Security(nil, "webhook.unsigned.accepted", map[string]any{"provider": Stripe})
	default:
		return Result{}, fmt.Errorf("%w: webhook secret not configured", ErrInvalidWebhook)
	}

	var ev cardEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}

	var status domain.PaymentStatus
	switch ev.Type {
	case eventIntentSucceeded:
		status = domain.PaymentSuccess
	case eventIntentFailed:
		status = domain.PaymentFailed
	default:
		return Result{Outcome: OutcomeIgnored}, nil
	}

	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(ev.Data.Object, &obj); err != nil || obj.ID == "" {
		return Result{}, fmt.Errorf("%w: event %s carries no payment intent", ErrInvalidWebhook, ev.ID)
	}
	return c.rec.Reconcile(ctx, Stripe, obj.ID, status, ev.Data.Object)
}

func cardProviderError(err error) error {
	pe := &ProviderError{Provider: Stripe, Op: "create payment intent", Err: err}
	var se *stripe.Error
	if errors.As(err, &se) {
		pe.Status = se.HTTPStatusCode
		if se.Msg != "" {
			pe.Err = errors.New(se.Msg)
		}
	}
	return pe
}
