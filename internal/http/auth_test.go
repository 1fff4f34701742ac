package handlers_test

import (
	"net/http"
	"testing"
)

func TestLoginIssuesBearerToken(t *testing.T) {
	ta := newTestApp(t, testConfig())

	var out struct {
		Access    string `json:"access"`
		TokenType string `json:"token_type"`
		ExpiresIn int    `json:"expires_in"`
	}
	entries := captureLogs(t, func() {
		r := ta.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "alice@realestate.test", "password": testPassword,
		})
		if r.Status != http.StatusOK {
			t.Fatalf("login: %d %s", r.Status, r.Body)
		}
		r.json(t, &out)
	})
	if out.Access == "" || out.TokenType != "Bearer" || out.ExpiresIn != 15*60 {
		t.Fatalf("unexpected login body %+v", out)
	}
	e, ok := findLog(entries, "auth.login.success")
	if !ok || e.Fields["email"] != "alice@realestate.test" || e.Fields["kind"] != "audit" {
		t.Fatalf("auth.login.success log missing or incomplete: %+v", e)
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	ta := newTestApp(t, testConfig())

	cases := []map[string]string{
		{"email": "alice@realestate.test", "password": "wrong"},
		{"email": "nobody@realestate.test", "password": testPassword},
		{"email": "not-an-email", "password": testPassword},
	}
	for _, body := range cases {
		var r response
		entries := captureLogs(t, func() {
			r = ta.do(t, http.MethodPost, "/api/auth/login", "", body)
		})
		if r.Status != http.StatusUnauthorized || r.detail(t) != "Invalid email or password" {
			t.Fatalf("%v: %d %s", body, r.Status, r.Body)
		}
		if e, ok := findLog(entries, "auth.login.fail"); !ok || e.Level != "warning" {
			t.Fatalf("%v: auth.login.fail log missing: %+v", body, entries)
		}
	}
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	ta := newTestApp(t, testConfig())

	r := ta.do(t, http.MethodGet, "/api/bookings", "", nil)
	if r.Status != http.StatusUnauthorized || r.detail(t) != "Authentication credentials were not provided." {
		t.Fatalf("anonymous: %d %s", r.Status, r.Body)
	}
	r = ta.do(t, http.MethodGet, "/api/bookings", "garbage.token.value", nil)
	if r.Status != http.StatusUnauthorized || r.detail(t) != "Invalid or expired token." {
		t.Fatalf("bad token: %d %s", r.Status, r.Body)
	}

	// a token signed with another secret is rejected
	other := testConfig()
	other.JWTSecret = "someone-else"
	foreign := newTestApp(t, other).login(t, "alice@realestate.test")
	if r := ta.do(t, http.MethodGet, "/api/bookings", foreign, nil); r.Status != http.StatusUnauthorized {
		t.Fatalf("foreign token: %d", r.Status)
	}

	tok := ta.login(t, "alice@realestate.test")
	if r := ta.do(t, http.MethodGet, "/api/bookings", tok, nil); r.Status != http.StatusOK || string(r.Body) != "[]" {
		t.Fatalf("own bookings: %d %s", r.Status, r.Body)
	}
}
