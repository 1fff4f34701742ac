package handlers_test

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v76"

	"github.com/omar4917/real-estate-project/internal/config"
	"github.com/omar4917/real-estate-project/internal/events"
	"github.com/omar4917/real-estate-project/internal/http/handlers"
	applog "github.com/omar4917/real-estate-project/internal/log"
	"github.com/omar4917/real-estate-project/internal/payments"
	"github.com/omar4917/real-estate-project/internal/repos"
)

const (
	testWebhookSecret = "whsec_http_test"
	testPassword      = "Passw0rd!"
)

type testApp struct {
	app     *fiber.App
	events  *events.Recorder
	intents *fakeIntents
}

func testConfig() config.Config {
	return config.Config{
		DBDSN:               ":memory:",
		TimeZone:            "UTC",
		JWTSecret:           "test-secret",
		JWTExpireMin:        15,
		CategoryCacheTTL:    time.Minute,
		StripeSecretKey:     "sk_test_http",
		StripeWebhookSecret: testWebhookSecret,
		StripeCurrency:      "usd",
		BkashMode:           "mock",
		ProviderTimeout:     2 * time.Second,
	}
}

// newTestApp builds the full app over a seeded in-memory database.
func newTestApp(t *testing.T, cfg config.Config) *testApp {
	t.Helper()
	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	rec := &events.Recorder{}
	intents := &fakeIntents{}
	// without a key the card provider must report itself unconfigured
	var creator payments.IntentCreator
	if cfg.StripeSecretKey != "" {
		creator = intents
	}
	deps, err := handlers.NewDeps(db, cfg, handlers.Infra{Events: rec, Intents: creator})
	if err != nil {
		t.Fatalf("deps: %v", err)
	}
	return &testApp{app: handlers.NewApp(deps), events: rec, intents: intents}
}

type response struct {
	Status int
	Body   []byte
}

func (r response) json(t *testing.T, v any) {
	t.Helper()
	if err := json.Unmarshal(r.Body, v); err != nil {
		t.Fatalf("decode %s: %v", r.Body, err)
	}
}

func (r response) detail(t *testing.T) string {
	t.Helper()
	var out struct {
		Detail string `json:"detail"`
	}
	r.json(t, &out)
	return out.Detail
}

func (ta *testApp) do(t *testing.T, method, path, token string, body any, headers ...string) response {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		rdr = bytes.NewReader(b)
	case string:
		rdr = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return response{Status: resp.StatusCode, Body: out}
}

func (ta *testApp) login(t *testing.T, email string) string {
	t.Helper()
	r := ta.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": testPassword})
	if r.Status != http.StatusOK {
		t.Fatalf("login %s: %d %s", email, r.Status, r.Body)
	}
	var out struct {
		Access string `json:"access"`
	}
	r.json(t, &out)
	return out.Access
}

type bookingOut struct {
	ID          string `json:"id"`
	PropertyID  string `json:"property_id"`
	TotalAmount string `json:"total_amount"`
	Status      string `json:"status"`
}

func (ta *testApp) book(t *testing.T, token, propertyID, start, end string) bookingOut {
	t.Helper()
	r := ta.do(t, http.MethodPost, "/api/bookings", token, map[string]string{
		"property_id": propertyID, "start_at": start, "end_at": end,
	})
	if r.Status != http.StatusCreated {
		t.Fatalf("book: %d %s", r.Status, r.Body)
	}
	var b bookingOut
	r.json(t, &b)
	return b
}

type fakeIntents struct {
	mu sync.Mutex
	n  int
}

func (f *fakeIntents) New(p *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	id := fmt.Sprintf("pi_http_%d", f.n)
	return &stripe.PaymentIntent{ID: id, Amount: *p.Amount, ClientSecret: id + "_secret"}, nil
}

func signStripe(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.", ts)))
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func stripeEvent(eventType, intentID string) []byte {
	b, _ := json.Marshal(map[string]any{
		"id":   "evt_" + intentID,
		"type": eventType,
		"data": map[string]any{"object": map[string]any{"id": intentID, "object": "payment_intent"}},
	})
	return b
}

type logEntry struct {
	Level  string         `json:"level"`
	Action string         `json:"action"`
	UserID string         `json:"user_id"`
	Fields map[string]any `json:"fields"`
}

type lockedWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.buf.Write(p)
}

// captureLogs points the structured logger at a buffer while fn runs.
func captureLogs(t *testing.T, fn func()) []logEntry {
	t.Helper()
	var lw lockedWriter
	applog.SetOutput(&lw)
	defer applog.SetOutput(io.Discard)

	fn()

	var entries []logEntry
	for _, line := range strings.Split(strings.TrimSpace(lw.buf.String()), "\n") {
		var e logEntry
		if err := json.Unmarshal([]byte(line), &e); err == nil {
			entries = append(entries, e)
		}
	}
	return entries
}

func findLog(entries []logEntry, action string) (logEntry, bool) {
	for _, e := range entries {
		if e.Action == action {
			return e, true
		}
	}
	return logEntry{}, false
}
