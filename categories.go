package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

type categoryInput struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func validateCategoryInput(in *categoryInput) []fieldError {
	var errs []fieldError
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		errs = append(errs, fieldError{Field: "name", Message: "Category name is required"})
	} else if len(in.Name) > 255 {
		errs = append(errs, fieldError{Field: "name", Message: "Category name too long"})
	}
	if in.Type != "" && in.Type != TypeIncome && in.Type != TypeExpense {
		errs = append(errs, fieldError{Field: "type", Message: "Type must be income or expense"})
	}
	return errs
}

func idParam(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

// GET /api/categories and GET /api/categories/all
// Categories are global: every authenticated user sees the same list.
func (a *app) handleListCategories(w http.ResponseWriter, r *http.Request) {
	var categories []Category
	if err := a.db.Order("type ASC, name ASC").Find(&categories).Error; err != nil {
		a.serverError(w, "categories", "Failed to fetch categories", err)
		return
	}

	out := make([]categoryDTO, 0, len(categories))
	for _, c := range categories {
		out = append(out, toCategoryDTO(c))
	}
	dataJSON(w, http.StatusOK, "", map[string]any{
		"categories": out,
		"count":      len(out),
	})
}

// GET /api/categories/{id}
func (a *app) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		errorJSON(w, http.StatusNotFound, "Category not found")
		return
	}

	var category Category
	if err := a.db.First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			errorJSON(w, http.StatusNotFound, "Category not found")
			return
		}
		a.serverError(w, "categories", "Failed to fetch category", err)
		return
	}

	dataJSON(w, http.StatusOK, "", map[string]any{"category": toCategoryDTO(category)})
}

// POST /api/categories (admin)
func (a *app) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var in categoryInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		errorJSON(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if errs := validateCategoryInput(&in); len(errs) > 0 {
		validationJSON(w, errs)
		return
	}
	if in.Type == "" {
		in.Type = TypeExpense
	}

	category := Category{Name: in.Name, Type: in.Type}
	if err := a.db.Create(&category).Error; err != nil {
		if isUniqueViolation(err) {
			errorJSON(w, http.StatusConflict, "Category with this name already exists")
			return
		}
		a.serverError(w, "categories", "Failed to create category", err)
		return
	}

	dataJSON(w, http.StatusCreated, "Category created successfully", map[string]any{
		"category": toCategoryDTO(category),
	})
}

// PUT /api/categories/{id} (admin)
// Name is required; type is updated only when supplied.
func (a *app) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		errorJSON(w, http.StatusNotFound, "Category not found")
		return
	}

	var in categoryInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		errorJSON(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if errs := validateCategoryInput(&in); len(errs) > 0 {
		validationJSON(w, errs)
		return
	}

	var category Category
	if err := a.db.First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			errorJSON(w, http.StatusNotFound, "Category not found")
			return
		}
		a.serverError(w, "categories", "Failed to update category", err)
		return
	}

	// Renaming onto a different existing category is a conflict.
	var count int64
	if err := a.db.Model(&Category{}).
		Where("name = ? AND id <> ?", in.Name, id).
		Count(&count).Error; err != nil {
		a.serverError(w, "categories", "Failed to update category", err)
		return
	}
	if count > 0 {
		errorJSON(w, http.StatusConflict, "Category with this name already exists")
		return
	}

	category.Name = in.Name
	if in.Type != "" {
		category.Type = in.Type
	}
	if err := a.db.Save(&category).Error; err != nil {
		if isUniqueViolation(err) {
			errorJSON(w, http.StatusConflict, "Category with this name already exists")
			return
		}
		a.serverError(w, "categories", "Failed to update category", err)
		return
	}

	dataJSON(w, http.StatusOK, "Category updated successfully", map[string]any{
		"category": toCategoryDTO(category),
	})
}

// DELETE /api/categories/{id} (admin)
// Referencing transactions keep their rows; their category_id becomes null.
func (a *app) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		errorJSON(w, http.StatusNotFound, "Category not found")
		return
	}

	var category Category
	if err := a.db.First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			errorJSON(w, http.StatusNotFound, "Category not found")
			return
		}
		a.serverError(w, "categories", "Failed to delete category", err)
		return
	}

	err := a.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Transaction{}).
			Where("category_id = ?", id).
			Update("category_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&category).Error
	})
	if err != nil {
		a.serverError(w, "categories", "Failed to delete category", err)
		return
	}

	dataJSON(w, http.StatusOK, "Category deleted successfully", nil)
}
