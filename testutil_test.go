package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestApp builds an app against an in-memory SQLite database. A single
// connection keeps the :memory: database alive across queries.
func newTestApp(t *testing.T) *app {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := autoMigrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	cfg := Config{
		Port:           "5000",
		DatabaseURL:    "sqlite::memory:",
		JWTSecret:      "test-secret",
		JWTExpire:      time.Hour,
		CORSOrigin:     "http://localhost:5173",
		MLBackendURL:   "http://127.0.0.1:1",
		PredictTimeout: 2 * time.Second,
		HistoryTimeout: 2 * time.Second,
		Env:            "production",
		BcryptCost:     bcrypt.MinCost,
		AdminEmail:     "admin@pf.com",
		AdminPassword:  "admin123",
	}
	return newApp(cfg, db)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body: %s)", err, rec.Body.String())
	}
	return env
}

func dataMap(t *testing.T, env envelope) map[string]any {
	t.Helper()

	m, ok := env.Data.(map[string]any)
	if !ok {
		t.Fatalf("envelope data is %T, want object", env.Data)
	}
	return m
}

// registerUser registers through the real endpoint and returns the issued
// token and the new user's id.
func registerUser(t *testing.T, h http.Handler, email, password string) (string, uint) {
	t.Helper()

	rec := doJSON(t, h, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d, body %s", email, rec.Code, rec.Body.String())
	}
	data := dataMap(t, decodeEnvelope(t, rec))
	token, _ := data["token"].(string)
	user, _ := data["user"].(map[string]any)
	if token == "" || user == nil {
		t.Fatalf("register %s: missing token or user in %s", email, rec.Body.String())
	}
	return token, uint(user["id"].(float64))
}

// newAdmin inserts an admin row directly and signs a token for it.
func newAdmin(t *testing.T, a *app) (string, User) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash admin password: %v", err)
	}
	admin := User{Email: "admin@pf.com", PasswordHash: string(hash), Role: RoleAdmin}
	if err := a.db.Create(&admin).Error; err != nil {
		t.Fatalf("create admin: %v", err)
	}
	token, err := signToken([]byte(a.cfg.JWTSecret), admin, time.Hour)
	if err != nil {
		t.Fatalf("sign admin token: %v", err)
	}
	return token, admin
}

func mustCategory(t *testing.T, a *app, name, typ string) Category {
	t.Helper()

	c := Category{Name: name, Type: typ}
	if err := a.db.Create(&c).Error; err != nil {
		t.Fatalf("create category %s: %v", name, err)
	}
	return c
}

func mustTransaction(t *testing.T, a *app, userID uint, amount float64, typ, date string, categoryID *uint) Transaction {
	t.Helper()

	d, err := parseDate(date)
	if err != nil {
		t.Fatalf("parse date %s: %v", date, err)
	}
	tx := Transaction{
		Amount:     amount,
		Type:       typ,
		Date:       d,
		UserID:     userID,
		CategoryID: categoryID,
	}
	if err := a.db.Create(&tx).Error; err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	return tx
}
