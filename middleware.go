package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

type contextKey string

const userContextKey contextKey = "user"

const blockedMessage = "Your account has been blocked. Please contact administrator."

// authenticate extracts the bearer token, verifies it, and loads the current
// user row. The database row is authoritative: a deleted user is rejected
// even with a valid token, a blocked user is rejected on every route.
func (a *app) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			errorJSON(w, http.StatusUnauthorized, "Access denied. No token provided.")
			return
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := parseToken([]byte(a.cfg.JWTSecret), tokenStr)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				errorJSON(w, http.StatusUnauthorized, "Token expired")
				return
			}
			errorJSON(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		var user User
		if err := a.db.First(&user, claims.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				errorJSON(w, http.StatusUnauthorized, "User not found")
				return
			}
			log.Printf("[auth] load user %d: %v", claims.UserID, err)
			errorJSON(w, http.StatusInternalServerError, "Authentication failed")
			return
		}

		if user.IsBlocked {
			errorJSON(w, http.StatusForbidden, blockedMessage)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin gates admin-only routes. Must be mounted after authenticate.
func (a *app) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if currentUser(r).Role != RoleAdmin {
			errorJSON(w, http.StatusForbidden, "Access denied. Admin rights required.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// currentUser returns the authenticated user placed in the context by
// authenticate. Calling it on an unauthenticated route is a programming error.
func currentUser(r *http.Request) User {
	u, _ := r.Context().Value(userContextKey).(User)
	return u
}

// requestLogger logs method, path, status and duration for every request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		log.Printf("[http] %s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
