package payments

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/omar4917/real-estate-project/internal/domain"
	"github.com/omar4917/real-estate-project/internal/events"
	"github.com/omar4917/real-estate-project/internal/lock"
	"github.com/omar4917/real-estate-project/internal/log"
	"github.com/omar4917/real-estate-project/internal/repos"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

type Outcome string

const (
	// OutcomeApplied: payment status/raw overwritten, booking updated on success.
	OutcomeApplied Outcome = "applied"
	// OutcomeUnknown: no payment carries that transaction id.
	OutcomeUnknown Outcome = "unknown"
	// OutcomeIgnored: a well-formed callback for an event we do not act on.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeDuplicateSuccess: another payment already succeeded for the booking.
	OutcomeDuplicateSuccess Outcome = "duplicate_success"
	// OutcomeNoReference: the callback named no transaction at all.
	OutcomeNoReference Outcome = "no_reference"
	// OutcomeReplayed: the status was already stored; at most the payload changed.
	OutcomeReplayed Outcome = "replayed"
)

type Result struct {
	Outcome     Outcome
	Payment     domain.Payment
	BookingPaid bool
}

// Received is what webhook callers acknowledge back to the provider.
func (r Result) Received() bool { return r.Outcome != OutcomeNoReference }

// BookingLockKey is shared with the admission controller so reconciliation,
// initiation and cancel never interleave on one booking.
func BookingLockKey(bookingID string) string { return "booking:" + bookingID }

type Reconciler struct {
	db       *sqlx.DB
	payments *repos.PaymentRepo
	bookings *repos.BookingRepo
	locks    *lock.Keyed
	events   events.Publisher
	now      func() time.Time
}

func NewReconciler(db *sqlx.DB, locks *lock.Keyed, pub events.Publisher) *Reconciler {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Reconciler{
		db:       db,
		payments: repos.NewPaymentRepo(db),
		bookings: repos.NewBookingRepo(db),
		locks:    locks,
		events:   pub,
		now:      time.Now,
	}
}

// Reconcile applies a provider-reported status to the payment identified by
// (provider, transactionID). Replays converge on the last applied status; a
// booking once Paid is never reverted here.
func (r *Reconciler) Reconcile(ctx context.Context, provider Name, transactionID string, status domain.PaymentStatus, raw json.RawMessage) (Result, error) {
	ctx, span := otel.Tracer("payments").Start(ctx, "Reconciler.Reconcile")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.provider", string(provider)),
		attribute.String("payment.transaction_id", transactionID),
		attribute.String("payment.status", string(status)),
	)

	if !status.Terminal() {
		return Result{}, errors.New("reconcile: status must be success or failed")
	}

	p, err := r.payments.ByTransaction(ctx, r.db, string(provider), transactionID)
	if errors.Is(err, sql.ErrNoRows) {
		log.Info(nil, "payment.reconcile.unknown", map[string]any{
			"provider": provider, "transaction_id": transactionID, "status": status,
		})
		return Result{Outcome: OutcomeUnknown}, nil
	}
	if err != nil {
		return Result{}, err
	}

	unlock, err := r.locks.Lock(ctx, BookingLockKey(p.BookingID))
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = tx.Rollback() }()

	// re-read under the booking lock so raw_response reflects the latest commit
	p, err = r.payments.Get(ctx, tx, p.ID)
	if err != nil {
		return Result{}, err
	}
	res, err := r.apply(ctx, tx, p, status, raw)
	if err != nil {
		return Result{}, err
	}
	if err := tx.Commit(); err != nil {
		return Result{}, err
	}

	r.publish(ctx, res)
	span.SetAttributes(attribute.String("reconcile.outcome", string(res.Outcome)))
	return res, nil
}

// apply performs the state change inside an existing transaction. Callers
// must hold the booking lock.
func (r *Reconciler) apply(ctx context.Context, tx *sqlx.Tx, p domain.Payment, status domain.PaymentStatus, raw json.RawMessage) (Result, error) {
	now := r.now().UTC()
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}

	// the outcome was already applied; a new payload (execute response then
	// callback) is kept for audit but triggers no transition or event
	if p.Status == status {
		if !bytes.Equal(p.RawResponse, raw) {
			if err := r.payments.UpdateRaw(ctx, tx, p.ID, raw, now); err != nil {
				return Result{}, err
			}
			p.RawResponse, p.UpdatedAt = raw, now
		}
		log.Info(nil, "payment.reconcile.replay", map[string]any{
			"payment_id": p.ID, "transaction_id": p.TransactionID, "status": status,
		})
		return Result{Outcome: OutcomeReplayed, Payment: p}, nil
	}

	if status == domain.PaymentSuccess {
		dup, err := r.payments.HasSuccess(ctx, tx, p.BookingID, p.ID)
		if err != nil {
			return Result{}, err
		}
		if dup {
			// at most one success per booking; keep the payload for audit only
			if err := r.payments.UpdateRaw(ctx, tx, p.ID, raw, now); err != nil {
				return Result{}, err
			}
			p.RawResponse = raw
			log.Security(nil, "payment.reconcile.duplicate_success", map[string]any{
				"payment_id": p.ID, "booking_id": p.BookingID, "transaction_id": p.TransactionID,
			})
			return Result{Outcome: OutcomeDuplicateSuccess, Payment: p}, nil
		}
	}

	if err := r.payments.UpdateOutcome(ctx, tx, p.ID, status, raw, now); err != nil {
		return Result{}, err
	}
	p.Status, p.RawResponse, p.UpdatedAt = status, raw, now
	res := Result{Outcome: OutcomeApplied, Payment: p}

	if status == domain.PaymentSuccess {
		changed, err := r.bookings.TransitionStatus(ctx, tx, p.BookingID, domain.BookingPaid,
			[]domain.BookingStatus{domain.BookingPending, domain.BookingPaid}, now)
		if err != nil {
			return Result{}, err
		}
		res.BookingPaid = changed
		if !changed {
			log.Security(nil, "payment.reconcile.booking_canceled", map[string]any{
				"payment_id": p.ID, "booking_id": p.BookingID,
			})
		}
	}

	log.Audit(nil, "payment.reconcile", map[string]any{
		"payment_id": p.ID, "booking_id": p.BookingID, "provider": p.Provider,
		"transaction_id": p.TransactionID, "status": status, "booking_paid": res.BookingPaid,
	})
	return res, nil
}

func (r *Reconciler) publish(ctx context.Context, res Result) {
	if res.Outcome != OutcomeApplied {
		return
	}
	key := events.PaymentFailed
	if res.Payment.Status == domain.PaymentSuccess {
		key = events.PaymentSucceeded
	}
	if err := r.events.PublishJSON(ctx, key, PaymentEvent(res.Payment)); err != nil {
		log.Error(nil, "events.publish.fail", err, map[string]any{"key": key})
	}
}

// PaymentEvent is the wire body of payment.* events.
func PaymentEvent(p domain.Payment) map[string]any {
	return map[string]any{
		"payment_id":     p.ID,
		"booking_id":     p.BookingID,
		"provider":       p.Provider,
		"transaction_id": p.TransactionID,
		"status":         p.Status,
	}
}
