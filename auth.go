package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type authRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// normalizeEmail lowercases and trims, matching registration and login so a
// user can always log in with the address they registered.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// POST /api/auth/register
func (a *app) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in authRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		errorJSON(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	in.Email = normalizeEmail(in.Email)

	var errs []fieldError
	if !validEmail(in.Email) {
		errs = append(errs, fieldError{Field: "email", Message: "Invalid email format"})
	}
	if len(in.Password) < 6 {
		errs = append(errs, fieldError{Field: "password", Message: "Password must be at least 6 characters"})
	}
	if len(errs) > 0 {
		validationJSON(w, errs)
		return
	}

	// Friendly pre-check; the unique index below is the source of truth.
	var count int64
	if err := a.db.Model(&User{}).Where("email = ?", in.Email).Count(&count).Error; err != nil {
		a.serverError(w, "auth", "Registration failed", err)
		return
	}
	if count > 0 {
		errorJSON(w, http.StatusConflict, "User with this email already exists")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), a.cfg.BcryptCost)
	if err != nil {
		a.serverError(w, "auth", "Registration failed", err)
		return
	}
	user := User{Email: in.Email, PasswordHash: string(hash), Role: RoleUser}
	if err := a.db.Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			errorJSON(w, http.StatusConflict, "User with this email already exists")
			return
		}
		a.serverError(w, "auth", "Registration failed", err)
		return
	}

	token, err := signToken([]byte(a.cfg.JWTSecret), user, a.cfg.JWTExpire)
	if err != nil {
		a.serverError(w, "auth", "Registration failed", err)
		return
	}

	dataJSON(w, http.StatusCreated, "User registered successfully", map[string]any{
		"user":  toUserDTO(user),
		"token": token,
	})
}

// POST /api/auth/login
func (a *app) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in authRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		errorJSON(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	in.Email = normalizeEmail(in.Email)

	var errs []fieldError
	if !validEmail(in.Email) {
		errs = append(errs, fieldError{Field: "email", Message: "Invalid email format"})
	}
	if in.Password == "" {
		errs = append(errs, fieldError{Field: "password", Message: "Password is required"})
	}
	if len(errs) > 0 {
		validationJSON(w, errs)
		return
	}

	var user User
	err := a.db.Where("email = ?", in.Email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Same message as a wrong password: no user enumeration.
		errorJSON(w, http.StatusUnauthorized, "Invalid email or password")
		return
	} else if err != nil {
		a.serverError(w, "auth", "Login failed", err)
		return
	}

	if user.IsBlocked {
		errorJSON(w, http.StatusForbidden, blockedMessage)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)) != nil {
		errorJSON(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := signToken([]byte(a.cfg.JWTSecret), user, a.cfg.JWTExpire)
	if err != nil {
		a.serverError(w, "auth", "Login failed", err)
		return
	}

	dataJSON(w, http.StatusOK, "Login successful", map[string]any{
		"user":  toUserDTO(user),
		"token": token,
	})
}

// GET /api/auth/me
func (a *app) handleMe(w http.ResponseWriter, r *http.Request) {
	dataJSON(w, http.StatusOK, "", map[string]any{
		"user": toUserDTO(currentUser(r)),
	})
}

// POST /api/auth/logout
// Tokens are stateless and not revocable server-side; the client discards
// the token and this endpoint only acknowledges.
func (a *app) handleLogout(w http.ResponseWriter, r *http.Request) {
	dataJSON(w, http.StatusOK, "Logout successful", nil)
}
