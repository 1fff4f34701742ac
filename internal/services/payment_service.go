package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/omar4917/real-estate-project/internal/domain"
	"github.com/omar4917/real-estate-project/internal/events"
	"github.com/omar4917/real-estate-project/internal/lock"
	"github.com/omar4917/real-estate-project/internal/log"
	"github.com/omar4917/real-estate-project/internal/payments"
	"github.com/omar4917/real-estate-project/internal/repos"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// PaymentService is the admission controller for payment initiation and the
// entry point for provider callbacks and wallet follow-up calls.
type PaymentService struct {
	DB        *sqlx.DB
	Bookings  *repos.BookingRepo
	Payments  *repos.PaymentRepo
	Providers *payments.Registry
	Locks     *lock.Keyed
	Events    events.Publisher
}

func NewPaymentService(db *sqlx.DB, providers *payments.Registry, locks *lock.Keyed, pub events.Publisher) *PaymentService {
	if pub == nil {
		pub = events.Nop{}
	}
	return &PaymentService{
		DB:        db,
		Bookings:  repos.NewBookingRepo(db),
		Payments:  repos.NewPaymentRepo(db),
		Providers: providers,
		Locks:     locks,
		Events:    pub,
	}
}

// Initiate starts (or resumes) a payment for one of the user's bookings.
// created is false when an existing pending payment was returned instead.
func (s *PaymentService) Initiate(ctx context.Context, userID, bookingID, provider string, rc payments.RequestContext) (payments.Initiation, bool, error) {
	ctx, span := otel.Tracer("services").Start(ctx, "PaymentService.Initiate")
	defer span.End()
	span.SetAttributes(attribute.String("booking.id", bookingID), attribute.String("payment.provider", provider))

	name, err := payments.ParseName(provider)
	if err != nil {
		return payments.Initiation{}, false, err
	}
	strategy, err := s.Providers.Get(name)
	if err != nil {
		return payments.Initiation{}, false, err
	}

	unlock, err := s.Locks.Lock(ctx, payments.BookingLockKey(bookingID))
	if err != nil {
		return payments.Initiation{}, false, err
	}
	defer unlock()

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return payments.Initiation{}, false, err
	}
	defer func() { _ = tx.Rollback() }()

	b, err := s.Bookings.GetForUser(ctx, tx, bookingID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return payments.Initiation{}, false, ErrNotFound
	}
	if err != nil {
		return payments.Initiation{}, false, err
	}
	switch b.Status {
	case domain.BookingPaid:
		return payments.Initiation{}, false, ErrAlreadyPaid
	case domain.BookingCanceled:
		return payments.Initiation{}, false, ErrBookingCanceled
	}

	done, err := s.Payments.HasSuccess(ctx, tx, b.ID, "")
	if err != nil {
		return payments.Initiation{}, false, err
	}
	if done {
		return payments.Initiation{}, false, ErrAlreadyCompleted
	}

	pending, err := s.Payments.LatestPending(ctx, tx, b.ID, string(name))
	switch {
	case err == nil:
		return strategy.Resume(pending), false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return payments.Initiation{}, false, err
	}

	init, err := strategy.Initiate(ctx, tx, b, rc)
	if err != nil {
		return payments.Initiation{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return payments.Initiation{}, false, err
	}

	s.publish(ctx, events.PaymentInitiated, init, b.ID)
	if init.Status == domain.PaymentSuccess {
		s.publish(ctx, events.PaymentSucceeded, init, b.ID)
	}
	return init, true, nil
}

// HandleWebhook hands a raw callback to the named provider. Unknown
// transactions come back as OutcomeUnknown, not as an error.
func (s *PaymentService) HandleWebhook(ctx context.Context, provider payments.Name, payload []byte, signature string) (payments.Result, error) {
	strategy, err := s.Providers.Get(provider)
	if err != nil {
		return payments.Result{}, err
	}
	return strategy.HandleCallback(ctx, payload, signature)
}

// ExecuteWallet runs the wallet execute step for a payment the user owns.
func (s *PaymentService) ExecuteWallet(ctx context.Context, userID, paymentID string) ([]byte, domain.PaymentStatus, error) {
	p, err := s.walletPayment(ctx, userID, paymentID)
	if err != nil {
		return nil, "", err
	}
	op, err := s.Providers.Wallet()
	if err != nil {
		return nil, "", err
	}
	return op.Execute(ctx, p.TransactionID)
}

// QueryWallet asks the wallet for the current state of a payment the user owns.
func (s *PaymentService) QueryWallet(ctx context.Context, userID, paymentID string) ([]byte, error) {
	p, err := s.walletPayment(ctx, userID, paymentID)
	if err != nil {
		return nil, err
	}
	op, err := s.Providers.Wallet()
	if err != nil {
		return nil, err
	}
	return op.Query(ctx, p.TransactionID)
}

func (s *PaymentService) ListLatest(ctx context.Context, limit int) ([]domain.Payment, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return s.Payments.ListLatest(ctx, limit)
}

func (s *PaymentService) walletPayment(ctx context.Context, userID, paymentID string) (domain.Payment, error) {
	p, err := s.Payments.GetForUser(ctx, paymentID, string(payments.Bkash), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

func (s *PaymentService) publish(ctx context.Context, key string, init payments.Initiation, bookingID string) {
	err := s.Events.PublishJSON(ctx, key, map[string]any{
		"payment_id":     init.PaymentID,
		"booking_id":     bookingID,
		"provider":       init.Provider,
		"transaction_id": init.TransactionID,
		"status":         init.Status,
		"at":             time.Now().UTC(),
	})
	if err != nil {
		log.Error(nil, "events.publish.fail", err, map[string]any{"key": key, "payment_id": init.PaymentID})
	}
}
