package main

import (
	"net/http"
	"testing"
	"time"
)

func TestRegisterLoginMe(t *testing.T) {
	a := newTestApp(t)
	h := a.routes()

	rec := doJSON(t, h, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "a@x.com",
		"password": "secret1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, want 201 (body: %s)", rec.Code, rec.Body.String())
	}
	data := dataMap(t, decodeEnvelope(t, rec))
	user := data["user"].(map[string]any)
	id := user["id"].(float64)
	if user["role"] != "user" {
		t.Errorf("registered role = %v, want user", user["role"])
	}
	if data["token"] == "" {
		t.Fatal("register returned no token")
	}

	rec = doJSON(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "a@x.com",
		"password": "secret1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}
	data = dataMap(t, decodeEnvelope(t, rec))
	if got := data["user"].(map[string]any)["id"].(float64); got != id {
		t.Errorf("login user id = %v, want %v", got, id)
	}
	token := data["token"].(string)

	rec = doJSON(t, h, http.MethodGet, "/api/auth/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}
	me := dataMap(t, decodeEnvelope(t, rec))["user"].(map[string]any)
	if me["id"].(float64) != id || me["email"] != "a@x.com" || me["role"] != "user" {
		t.Errorf("me = %v, want id=%v email=a@x.com role=user", me, id)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	a := newTestApp(t)
	h := a.routes()

	registerUser(t, h, "dup@x.com", "secret1")

	rec := doJSON(t, h, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "dup@x.com",
		"password": "another1",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register status = %d, want 409", rec.Code)
	}

	var count int64
	a.db.Model(&User{}).Where("email = ?", "dup@x.com").Count(&count)
	if count != 1 {
		t.Errorf("users with email = %d, want 1", count)
	}
}

func TestRegisterValidation(t *testing.T) {
	a := newTestApp(t)
	h := a.routes()

	tests := []struct {
		name     string
		email    string
		password string
		field    string
	}{
		{"bad email", "not-an-email", "secret1", "email"},
		{"empty email", "", "secret1", "email"},
		{"short password", "ok@x.com", "12345", "password"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/api/auth/register", "", map[string]string{
				"email":    tc.email,
				"password": tc.password,
			})
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			env := decodeEnvelope(t, rec)
			if env.Message != "Validation failed" {
				t.Errorf("message = %q, want Validation failed", env.Message)
			}
			found := false
			for _, fe := range env.Errors {
				if fe.Field == tc.field {
					found = true
				}
			}
			if !found {
				t.Errorf("errors %v missing field %q", env.Errors, tc.field)
			}
		})
	}
}

func TestLoginNoUserEnumeration(t *testing.T) {
	a := newTestApp(t)
	h := a.routes()

	registerUser(t, h, "real@x.com", "secret1")

	wrongPw := doJSON(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "real@x.com",
		"password": "wrong-password",
	})
	unknown := doJSON(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "ghost@x.com",
		"password": "whatever1",
	})

	if wrongPw.Code != http.StatusUnauthorized || unknown.Code != http.StatusUnauthorized {
		t.Fatalf("statuses = %d/%d, want 401/401", wrongPw.Code, unknown.Code)
	}
	m1 := decodeEnvelope(t, wrongPw).Message
	m2 := decodeEnvelope(t, unknown).Message
	if m1 != m2 {
		t.Errorf("wrong-password message %q differs from unknown-email message %q", m1, m2)
	}
}

func TestLoginBlockedAccount(t *testing.T) {
	a := newTestApp(t)
	h := a.routes()

	_, id := registerUser(t, h, "blocked@x.com", "secret1")
	a.db.Model(&User{}).Where("id = ?", id).Update("is_blocked", true)

	rec := doJSON(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "blocked@x.com",
		"password": "secret1",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("blocked login status = %d, want 403", rec.Code)
	}
}

func TestBlockedTokenRejectedOnEveryRoute(t *testing.T) {
	a := newTestApp(t)
	h := a.routes()

	token, id := registerUser(t, h, "b@x.com", "secret1")
	a.db.Model(&User{}).Where("id = ?", id).Update("is_blocked", true)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodGet, "/api/transactions"},
		{http.MethodGet, "/api/categories"},
		{http.MethodPost, "/api/predict"},
	}
	for _, p := range paths {
		rec := doJSON(t, h, p.method, p.path, token, nil)
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s %s with blocked token: status = %d, want 403", p.method, p.path, rec.Code)
		}
	}
}

func TestAuthTokenFailures(t *testing.T) {
	a := newTestApp(t)
	h := a.routes()

	// No token at all.
	rec := doJSON(t, h, http.MethodGet, "/api/auth/me", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing token status = %d, want 401", rec.Code)
	}

	// Garbage token.
	rec = doJSON(t, h, http.MethodGet, "/api/auth/me", "not.a.token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("invalid token status = %d, want 401", rec.Code)
	}
	if msg := decodeEnvelope(t, rec).Message; msg != "Invalid token" {
		t.Errorf("invalid token message = %q, want Invalid token", msg)
	}

	// Expired token gets its own reason.
	_, id := registerUser(t, h, "exp@x.com", "secret1")
	var user User
	a.db.First(&user, id)
	expired, err := signToken([]byte(a.cfg.JWTSecret), user, -time.Minute)
	if err != nil {
		t.Fatalf("sign expired token: %v", err)
	}
	rec = doJSON(t, h, http.MethodGet, "/api/auth/me", expired, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expired token status = %d, want 401", rec.Code)
	}
	if msg := decodeEnvelope(t, rec).Message; msg != "Token expired" {
		t.Errorf("expired token message = %q, want Token expired", msg)
	}

	// Valid token whose user row no longer exists.
	token2, id2 := registerUser(t, h, "gone@x.com", "secret1")
	a.db.Delete(&User{}, id2)
	rec = doJSON(t, h, http.MethodGet, "/api/auth/me", token2, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("deleted-user token status = %d, want 401", rec.Code)
	}
}

func TestEmailNormalization(t *testing.T) {
	a := newTestApp(t)
	h := a.routes()

	rec := doJSON(t, h, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "  Mixed@Case.COM ",
		"password": "secret1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, want 201 (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "mixed@case.com",
		"password": "secret1",
	})
	if rec.Code != http.StatusOK {
		t.Errorf("login with normalized email status = %d, want 200", rec.Code)
	}
}

func TestLogout(t *testing.T) {
	a := newTestApp(t)
	h := a.routes()

	token, _ := registerUser(t, h, "out@x.com", "secret1")
	rec := doJSON(t, h, http.MethodPost, "/api/auth/logout", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d, want 200", rec.Code)
	}
	if msg := decodeEnvelope(t, rec).Message; msg != "Logout successful" {
		t.Errorf("logout message = %q", msg)
	}
}
