package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"gorm.io/gorm"
)

// All handlers in this file are mounted behind authenticate + requireAdmin.

// GET /api/users
func (a *app) handleListUsers(w http.ResponseWriter, r *http.Request) {
	var users []User
	if err := a.db.Order("created_at DESC").Find(&users).Error; err != nil {
		a.serverError(w, "users", "Failed to fetch users", err)
		return
	}

	out := make([]userDTO, 0, len(users))
	for _, u := range users {
		out = append(out, toUserDTO(u))
	}
	dataJSON(w, http.StatusOK, "", map[string]any{
		"users": out,
		"count": len(out),
	})
}

// GET /api/users/{id}
func (a *app) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		errorJSON(w, http.StatusNotFound, "User not found")
		return
	}

	var user User
	if err := a.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			errorJSON(w, http.StatusNotFound, "User not found")
			return
		}
		a.serverError(w, "users", "Failed to fetch user", err)
		return
	}

	dataJSON(w, http.StatusOK, "", map[string]any{"user": toUserDTO(user)})
}

// PUT /api/users/{id}/block
// Admin accounts can never be blocked.
func (a *app) handleBlockUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		errorJSON(w, http.StatusNotFound, "User not found")
		return
	}

	var in struct {
		IsBlocked *bool `json:"is_blocked"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.IsBlocked == nil {
		errorJSON(w, http.StatusBadRequest, "is_blocked must be a boolean value")
		return
	}

	var user User
	if err := a.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			errorJSON(w, http.StatusNotFound, "User not found")
			return
		}
		a.serverError(w, "users", "Failed to update user status", err)
		return
	}

	if user.Role == RoleAdmin {
		errorJSON(w, http.StatusForbidden, "Cannot block admin users")
		return
	}

	user.IsBlocked = *in.IsBlocked
	if err := a.db.Model(&user).Update("is_blocked", user.IsBlocked).Error; err != nil {
		a.serverError(w, "users", "Failed to update user status", err)
		return
	}

	message := "User unblocked successfully"
	if user.IsBlocked {
		message = "User blocked successfully"
	}
	dataJSON(w, http.StatusOK, message, map[string]any{"user": toUserDTO(user)})
}

// DELETE /api/users/{id}
// Admins cannot be deleted, and a caller cannot delete themself. Deletion
// cascades to the target's transactions.
func (a *app) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	caller := currentUser(r)
	id, ok := idParam(r)
	if !ok {
		errorJSON(w, http.StatusNotFound, "User not found")
		return
	}

	var user User
	if err := a.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			errorJSON(w, http.StatusNotFound, "User not found")
			return
		}
		a.serverError(w, "users", "Failed to delete user", err)
		return
	}

	if user.ID == caller.ID {
		errorJSON(w, http.StatusForbidden, "Cannot delete your own account")
		return
	}
	if user.Role == RoleAdmin {
		errorJSON(w, http.StatusForbidden, "Cannot delete admin users")
		return
	}

	err := a.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&Transaction{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		a.serverError(w, "users", "Failed to delete user", err)
		return
	}

	dataJSON(w, http.StatusOK, "User deleted successfully", nil)
}
