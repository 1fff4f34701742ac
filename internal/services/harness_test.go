package services_test

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stripe/stripe-go/v76"

	"github.com/omar4917/real-estate-project/internal/catalog"
	"github.com/omar4917/real-estate-project/internal/events"
	"github.com/omar4917/real-estate-project/internal/lock"
	"github.com/omar4917/real-estate-project/internal/payments"
	"github.com/omar4917/real-estate-project/internal/repos"
	"github.com/omar4917/real-estate-project/internal/services"
)

type harness struct {
	db       *sqlx.DB
	events   *events.Recorder
	intents  *stubIntents
	bookings *services.BookingService
	payments *services.PaymentService
	catalog  *services.CatalogService
}

// newHarness wires the services over a seeded in-memory database, with the
// card provider backed by a stub and the wallet in mock mode.
func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	rec := &events.Recorder{}
	locks := lock.NewKeyed()
	paymentRepo := repos.NewPaymentRepo(db)
	reconciler := payments.NewReconciler(db, locks, rec)
	intents := &stubIntents{}
	card := payments.NewCard(payments.CardConfig{SecretKey: "sk_test", WebhookSecret: "whsec_test"}, intents, paymentRepo, reconciler)
	wallet, err := payments.NewWallet(payments.WalletConfig{Mode: payments.WalletModeMock}, nil, paymentRepo, reconciler)
	if err != nil {
		t.Fatal(err)
	}

	cats := repos.NewCategoryRepo(db)
	graph := catalog.NewGraphCache(catalog.NewMemoryCache(), cats, time.Minute)
	return &harness{
		db:       db,
		events:   rec,
		intents:  intents,
		bookings: services.NewBookingService(db, locks, rec),
		payments: services.NewPaymentService(db, payments.NewRegistry(card, wallet), locks, rec),
		catalog:  services.NewCatalogService(db, cats, repos.NewPropertyRepo(db), graph),
	}
}

// at returns 2031-03-<day> <hour>:00 UTC.
func at(day, hour int) time.Time {
	return time.Date(2031, 3, day, hour, 0, 0, 0, time.UTC)
}

func (h *harness) countPayments(t *testing.T, bookingID string) int {
	t.Helper()
	n, err := repos.NewPaymentRepo(h.db).CountForBooking(context.Background(), h.db, bookingID)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

type stubIntents struct {
	mu sync.Mutex
	n  int
}

func (s *stubIntents) New(p *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	id := "pi_svc_" + strconv.Itoa(s.n)
	return &stripe.PaymentIntent{ID: id, Amount: *p.Amount, ClientSecret: id + "_secret"}, nil
}

func (s *stubIntents) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}
