package handlers_test

import (
	"net/http"
	"testing"
)

func TestBookingAndPaymentAuditTrail(t *testing.T) {
	ta := newTestApp(t, testConfig())
	alice := ta.login(t, "alice@realestate.test")

	var b bookingOut
	entries := captureLogs(t, func() {
		b = ta.book(t, alice, "penthouse", "2031-12-01T10:00:00Z", "2031-12-01T12:00:00Z")
		ta.do(t, http.MethodPost, "/api/payments/initiate", alice, map[string]string{"provider": "bkash", "booking_id": b.ID})
	})

	e, ok := findLog(entries, "booking.create")
	if !ok || e.UserID != "u-alice" || e.Fields["kind"] != "audit" || e.Fields["total_amount"] != "750000.00" {
		t.Fatalf("booking.create audit log: %+v", e)
	}
	e, ok = findLog(entries, "payment.initiate")
	if !ok || e.Fields["booking_id"] != b.ID || e.Fields["status"] != "success" {
		t.Fatalf("payment.initiate audit log: %+v", e)
	}
	if _, ok := findLog(entries, "payment.reconcile"); !ok {
		t.Fatal("payment.reconcile audit log missing")
	}
}

func TestRejectedRequestsAreLogged(t *testing.T) {
	ta := newTestApp(t, testConfig())
	alice := ta.login(t, "alice@realestate.test")
	ta.book(t, alice, "penthouse", "2031-12-02T10:00:00Z", "2031-12-02T12:00:00Z")

	entries := captureLogs(t, func() {
		ta.do(t, http.MethodGet, "/api/bookings", "", nil)
		ta.do(t, http.MethodPost, "/api/bookings", alice, map[string]string{
			"property_id": "penthouse", "start_at": "2031-12-02T11:00:00Z", "end_at": "2031-12-02T13:00:00Z",
		})
		ta.do(t, http.MethodPost, "/api/payments/webhook/stripe", "", []byte(`{}`), "Stripe-Signature", "t=1,v1=00")
	})

	if e, ok := findLog(entries, "access.denied.auth"); !ok || e.Fields["reason"] != "missing_token" {
		t.Fatalf("access.denied.auth: %+v", e)
	}
	if e, ok := findLog(entries, "booking.create.fail"); !ok || e.Level != "warning" {
		t.Fatalf("booking.create.fail: %+v", e)
	}
	if _, ok := findLog(entries, "webhook.invalid"); !ok {
		t.Fatal("webhook.invalid log missing")
	}
}
