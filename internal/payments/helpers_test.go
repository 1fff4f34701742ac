package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"

	"github.com/omar4917/real-estate-project/internal/domain"
	"github.com/omar4917/real-estate-project/internal/events"
	"github.com/omar4917/real-estate-project/internal/lock"
	applog "github.com/omar4917/real-estate-project/internal/log"
	"github.com/omar4917/real-estate-project/internal/repos"
)

type fixture struct {
	db       *sqlx.DB
	bookings *repos.BookingRepo
	payments *repos.PaymentRepo
	rec      *Reconciler
	events   *events.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	rec := &events.Recorder{}
	return &fixture{
		db:       db,
		bookings: repos.NewBookingRepo(db),
		payments: repos.NewPaymentRepo(db),
		rec:      NewReconciler(db, lock.NewKeyed(), rec),
		events:   rec,
	}
}

func (f *fixture) booking(t *testing.T, status domain.BookingStatus) domain.Booking {
	t.Helper()
	start := time.Date(2031, 1, 1, 10, 0, 0, 0, time.UTC)
	now := time.Now().UTC()
	b := domain.Booking{
		ID:          uuid.NewString(),
		UserID:      "u-alice",
		PropertyID:  "studio-loft",
		StartAt:     start,
		EndAt:       start.Add(2 * time.Hour),
		TotalAmount: decimal.RequireFromString("500000.00"),
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := f.bookings.Insert(context.Background(), f.db, b); err != nil {
		t.Fatalf("insert booking: %v", err)
	}
	return b
}

func (f *fixture) payment(t *testing.T, b domain.Booking, provider Name, txn string, status domain.PaymentStatus) domain.Payment {
	t.Helper()
	now := time.Now().UTC()
	p := domain.Payment{
		ID:            uuid.NewString(),
		BookingID:     b.ID,
		Provider:      string(provider),
		TransactionID: txn,
		Status:        status,
		RawResponse:   json.RawMessage(`{"seed":true}`),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := f.payments.Insert(context.Background(), f.db, p); err != nil {
		t.Fatalf("insert payment: %v", err)
	}
	return p
}

func (f *fixture) bookingStatus(t *testing.T, id string) domain.BookingStatus {
	t.Helper()
	b, err := f.bookings.Get(context.Background(), f.db, id)
	if err != nil {
		t.Fatalf("get booking: %v", err)
	}
	return b.Status
}

func (f *fixture) paymentByID(t *testing.T, id string) domain.Payment {
	t.Helper()
	p, err := f.payments.Get(context.Background(), f.db, id)
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	return p
}

// inTx runs fn in a committed transaction, as the admission controller does.
func (f *fixture) inTx(t *testing.T, fn func(tx *sqlx.Tx) error) error {
	t.Helper()
	tx, err := f.db.Beginx()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// fakeIntents stands in for the Stripe PaymentIntent API.
type fakeIntents struct {
	mu     sync.Mutex
	n      int
	err    error
	params []*stripe.PaymentIntentParams
}

func (f *fakeIntents) New(p *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.params = append(f.params, p)
	if f.err != nil {
		return nil, f.err
	}
	f.n++
	id := fmt.Sprintf("pi_test_%d", f.n)
	return &stripe.PaymentIntent{
		ID:           id,
		Object:       "payment_intent",
		Amount:       *p.Amount,
		Currency:     stripe.Currency(*p.Currency),
		ClientSecret: id + "_secret_abc",
		Status:       stripe.PaymentIntentStatusRequiresPaymentMethod,
		Metadata:     p.Metadata,
	}, nil
}

// signStripe builds a Stripe-Signature header for payload.
func signStripe(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.", ts)))
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func intentEvent(eventType, intentID string) []byte {
	b, _ := json.Marshal(map[string]any{
		"id":   "evt_" + intentID,
		"type": eventType,
		"data": map[string]any{
			"object": map[string]any{"id": intentID, "object": "payment_intent", "status": "succeeded"},
		},
	})
	return b
}

type logLine struct {
	Level  string         `json:"level"`
	Action string         `json:"action"`
	Fields map[string]any `json:"fields"`
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.Write(p)
}

// captureLogs swaps the structured log sink for the duration of fn.
func captureLogs(t *testing.T, fn func()) []logLine {
	t.Helper()
	var lb lockedBuffer
	applog.SetOutput(&lb)
	defer applog.SetOutput(discard{})
	fn()

	var out []logLine
	for _, line := range strings.Split(strings.TrimSpace(lb.buf.String()), "\n") {
		var e logLine
		if json.Unmarshal([]byte(line), &e) == nil {
			out = append(out, e)
		}
	}
	return out
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func hasAction(lines []logLine, action string) bool {
	for _, l := range lines {
		if l.Action == action {
			return true
		}
	}
	return false
}
