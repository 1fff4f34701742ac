package repos_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/omar4917/real-estate-project/internal/domain"
	"github.com/omar4917/real-estate-project/internal/repos"
)

func newBooking(id string, start time.Time, hours int, status domain.BookingStatus) domain.Booking {
	now := time.Now().UTC()
	b := domain.Booking{
		ID: id, UserID: "u-alice", PropertyID: "penthouse",
		StartAt: start, EndAt: start.Add(time.Duration(hours) * time.Hour),
		TotalAmount: decimal.RequireFromString("750000"), Status: status,
		CreatedAt: now, UpdatedAt: now,
	}
	return b
}

func TestOpenDBSeedsCatalogAndUsers(t *testing.T) {
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()

	cats, err := repos.NewCategoryRepo(db).List(ctx)
	if err != nil || len(cats) != 6 {
		t.Fatalf("categories: %d %v", len(cats), err)
	}
	p, err := repos.NewPropertyRepo(db).Get(ctx, db, "studio-loft")
	if err != nil || p.Price.StringFixed(2) != "500000.00" || !p.Active() {
		t.Fatalf("property: %+v %v", p, err)
	}
	u, err := repos.NewUserRepo(db).ByEmail(ctx, "ADMIN@realestate.test")
	if err != nil || u.Role != domain.RoleAdmin {
		t.Fatalf("admin user: %+v %v", u, err)
	}
}

func TestBookingOverlapAndTransitions(t *testing.T) {
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()
	r := repos.NewBookingRepo(db)

	start := time.Date(2031, 1, 5, 10, 0, 0, 0, time.UTC)
	held := newBooking("b-held", start, 2, domain.BookingPending)
	gone := newBooking("b-gone", start.Add(24*time.Hour), 2, domain.BookingCanceled)
	for _, b := range []domain.Booking{held, gone} {
		if err := r.Insert(ctx, db, b); err != nil {
			t.Fatal(err)
		}
	}

	cases := []struct {
		name     string
		from, to time.Time
		want     bool
	}{
		{"same window", start, start.Add(2 * time.Hour), true},
		{"straddles start", start.Add(-time.Hour), start.Add(time.Hour), true},
		{"ends at start", start.Add(-time.Hour), start, false},
		{"starts at end", start.Add(2 * time.Hour), start.Add(3 * time.Hour), false},
		{"canceled booking ignored", gone.StartAt, gone.EndAt, false},
	}
	for _, tc := range cases {
		got, err := r.HasOverlap(ctx, db, "penthouse", tc.from, tc.to)
		if err != nil || got != tc.want {
			t.Fatalf("%s: got %v err %v", tc.name, got, err)
		}
	}

	at := time.Now().UTC()
	ok, err := r.TransitionStatus(ctx, db, held.ID, domain.BookingPaid, []domain.BookingStatus{domain.BookingPending}, at)
	if err != nil || !ok {
		t.Fatalf("pending->paid: %v %v", ok, err)
	}
	ok, err = r.TransitionStatus(ctx, db, held.ID, domain.BookingCanceled, []domain.BookingStatus{domain.BookingPending}, at)
	if err != nil || ok {
		t.Fatalf("paid must not cancel: %v %v", ok, err)
	}
	got, err := r.Get(ctx, db, held.ID)
	if err != nil || got.Status != domain.BookingPaid || !got.StartAt.Equal(start) {
		t.Fatalf("stored booking %+v %v", got, err)
	}
	if _, err := r.GetForUser(ctx, db, held.ID, "u-bob"); err == nil {
		t.Fatal("foreign booking visible")
	}
}

func TestOneSuccessfulPaymentPerBooking(t *testing.T) {
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()
	bookings := repos.NewBookingRepo(db)
	pays := repos.NewPaymentRepo(db)

	b := newBooking("b-1", time.Date(2031, 2, 1, 9, 0, 0, 0, time.UTC), 1, domain.BookingPending)
	if err := bookings.Insert(ctx, db, b); err != nil {
		t.Fatal(err)
	}
	now := time.Now().UTC()
	pay := func(id, txn string, st domain.PaymentStatus) error {
		return pays.Insert(ctx, db, domain.Payment{
			ID: id, BookingID: b.ID, Provider: "stripe", TransactionID: txn, Status: st,
			RawResponse: json.RawMessage(`{}`), CreatedAt: now, UpdatedAt: now,
		})
	}

	if err := pay("p-1", "pi_1", domain.PaymentSuccess); err != nil {
		t.Fatal(err)
	}
	if err := pay("p-2", "pi_2", domain.PaymentFailed); err != nil {
		t.Fatalf("failed payments are unrestricted: %v", err)
	}
	if err := pay("p-3", "pi_3", domain.PaymentSuccess); err == nil {
		t.Fatal("second success for one booking was stored")
	}
	if err := pay("p-4", "pi_1", domain.PaymentPending); err == nil {
		t.Fatal("duplicate transaction id was stored")
	}

	has, err := pays.HasSuccess(ctx, db, b.ID, "p-1")
	if err != nil || has {
		t.Fatalf("HasSuccess excluding the winner: %v %v", has, err)
	}
	found, err := pays.ByTransaction(ctx, db, "stripe", "pi_2")
	if err != nil || found.ID != "p-2" {
		t.Fatalf("ByTransaction: %+v %v", found, err)
	}
}
