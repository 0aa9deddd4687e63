package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"gorm.io/gorm"
)

type transactionInput struct {
	Amount      float64 `json:"amount"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
	CategoryID  *uint   `json:"category_id"`
}

// httpError carries a status code out of a gorm transaction closure.
type httpError struct {
	status  int
	message string
}

func (e *httpError) Error() string { return e.message }

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// validateTransactionInput normalizes the payload in place and returns
// field-level errors. Amount is rounded to two decimals before the
// positivity check so 0.004 cannot sneak in as a zero-value row.
func validateTransactionInput(in *transactionInput) (time.Time, []fieldError) {
	var errs []fieldError

	in.Amount = math.Round(in.Amount*100) / 100
	if in.Amount < 0.01 {
		errs = append(errs, fieldError{Field: "amount", Message: "Amount must be a positive number"})
	}
	if in.Type != TypeIncome && in.Type != TypeExpense {
		errs = append(errs, fieldError{Field: "type", Message: "Type must be either income or expense"})
	}
	date, err := parseDate(in.Date)
	if err != nil {
		errs = append(errs, fieldError{Field: "date", Message: "Invalid date format"})
	}
	return date, errs
}

// checkCategory verifies the referenced category exists and its type matches
// the transaction's type. Runs inside the same DB transaction as the write so
// the category cannot change between check and insert.
func checkCategory(tx *gorm.DB, categoryID uint, txType string) (*Category, error) {
	var category Category
	if err := tx.First(&category, categoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &httpError{http.StatusBadRequest, "Category not found"}
		}
		return nil, err
	}
	if category.Type != txType {
		return nil, &httpError{
			http.StatusBadRequest,
			fmt.Sprintf("Cannot use %s category for %s transaction", category.Type, txType),
		}
	}
	return &category, nil
}

/* ===================== HTTP: list ====================== */

// GET /api/transactions?type=&category_id=&date_from=&date_to=&limit=&offset=
func (a *app) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	q := r.URL.Query()

	var errs []fieldError
	filters := func(db *gorm.DB) *gorm.DB {
		return db.Where("user_id = ?", user.ID)
	}
	addFilter := func(f func(db *gorm.DB) *gorm.DB) {
		prev := filters
		filters = func(db *gorm.DB) *gorm.DB { return f(prev(db)) }
	}

	if t := q.Get("type"); t != "" {
		if t != TypeIncome && t != TypeExpense {
			errs = append(errs, fieldError{Field: "type", Message: "Type must be either income or expense"})
		} else {
			addFilter(func(db *gorm.DB) *gorm.DB { return db.Where("type = ?", t) })
		}
	}
	if c := q.Get("category_id"); c != "" {
		cid, err := strconv.ParseUint(c, 10, 32)
		if err != nil {
			errs = append(errs, fieldError{Field: "category_id", Message: "Category ID must be an integer"})
		} else {
			addFilter(func(db *gorm.DB) *gorm.DB { return db.Where("category_id = ?", uint(cid)) })
		}
	}
	if from := q.Get("date_from"); from != "" {
		d, err := parseDate(from)
		if err != nil {
			errs = append(errs, fieldError{Field: "date_from", Message: "Invalid date format"})
		} else {
			addFilter(func(db *gorm.DB) *gorm.DB { return db.Where("date >= ?", d) })
		}
	}
	if to := q.Get("date_to"); to != "" {
		d, err := parseDate(to)
		if err != nil {
			errs = append(errs, fieldError{Field: "date_to", Message: "Invalid date format"})
		} else {
			addFilter(func(db *gorm.DB) *gorm.DB { return db.Where("date <= ?", d) })
		}
	}
	if len(errs) > 0 {
		validationJSON(w, errs)
		return
	}

	limit := 100
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	// Total reflects the active filters so pagination adds up.
	var total int64
	if err := filters(a.db.Model(&Transaction{})).Count(&total).Error; err != nil {
		a.serverError(w, "transactions", "Failed to fetch transactions", err)
		return
	}

	var rows []Transaction
	if err := filters(a.db).
		Order("date DESC, created_at DESC").
		Limit(limit).
		Offset(offset).
		Preload("Category").
		Find(&rows).Error; err != nil {
		a.serverError(w, "transactions", "Failed to fetch transactions", err)
		return
	}

	out := make([]transactionDTO, 0, len(rows))
	for _, t := range rows {
		out = append(out, toTransactionDTO(t))
	}
	dataJSON(w, http.StatusOK, "", map[string]any{
		"transactions": out,
		"count":        len(out),
		"total":        total,
	})
}

/* ===================== HTTP: stats ====================== */

type overallStat struct {
	Type    string  `gorm:"column:type" json:"type"`
	Count   int64   `gorm:"column:count" json:"count"`
	Total   float64 `gorm:"column:total" json:"total"`
	Average float64 `gorm:"column:average" json:"average"`
}

type categoryStat struct {
	ID    *uint   `gorm:"column:id" json:"id"`
	Name  *string `gorm:"column:name" json:"name"`
	Type  string  `gorm:"column:type" json:"type"`
	Count int64   `gorm:"column:count" json:"count"`
	Total float64 `gorm:"column:total" json:"total"`
}

type monthlyStat struct {
	Month string  `gorm:"column:month" json:"month"`
	Type  string  `gorm:"column:type" json:"type"`
	Total float64 `gorm:"column:total" json:"total"`
	Count int64   `gorm:"column:count" json:"count"`
}

// monthExpr yields the YYYY-MM bucket expression for the active dialect;
// tests run on SQLite, production on Postgres.
func monthExpr(db *gorm.DB) string {
	if db.Dialector.Name() == "sqlite" {
		return "strftime('%Y-%m', date)"
	}
	return "to_char(date, 'YYYY-MM')"
}

// GET /api/transactions/stats?date_from=&date_to=
func (a *app) handleTransactionStats(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	q := r.URL.Query()

	var errs []fieldError
	window := func(db *gorm.DB) *gorm.DB { return db }
	if from := q.Get("date_from"); from != "" {
		d, err := parseDate(from)
		if err != nil {
			errs = append(errs, fieldError{Field: "date_from", Message: "Invalid date format"})
		} else {
			prev := window
			window = func(db *gorm.DB) *gorm.DB { return prev(db).Where("date >= ?", d) }
		}
	}
	if to := q.Get("date_to"); to != "" {
		d, err := parseDate(to)
		if err != nil {
			errs = append(errs, fieldError{Field: "date_to", Message: "Invalid date format"})
		} else {
			prev := window
			window = func(db *gorm.DB) *gorm.DB { return prev(db).Where("date <= ?", d) }
		}
	}
	if len(errs) > 0 {
		validationJSON(w, errs)
		return
	}

	var overall []overallStat
	if err := window(a.db.Model(&Transaction{}).Where("user_id = ?", user.ID)).
		Select("type, COUNT(*) AS count, SUM(amount) AS total, AVG(amount) AS average").
		Group("type").
		Scan(&overall).Error; err != nil {
		a.serverError(w, "transactions", "Failed to fetch statistics", err)
		return
	}

	var byCategory []categoryStat
	if err := window(a.db.Table("transactions").Where("transactions.user_id = ?", user.ID)).
		Select("categories.id AS id, categories.name AS name, transactions.type AS type, COUNT(*) AS count, SUM(transactions.amount) AS total").
		Joins("LEFT JOIN categories ON transactions.category_id = categories.id").
		Group("categories.id, categories.name, transactions.type").
		Order("total DESC").
		Scan(&byCategory).Error; err != nil {
		a.serverError(w, "transactions", "Failed to fetch statistics", err)
		return
	}

	// Monthly buckets feed the ML forecaster: latest 12 months regardless of
	// the requested window.
	bucket := monthExpr(a.db)
	var monthly []monthlyStat
	if err := a.db.Model(&Transaction{}).
		Where("user_id = ?", user.ID).
		Select(bucket + " AS month, type, SUM(amount) AS total, COUNT(*) AS count").
		Group("month, type").
		Order("month DESC").
		Limit(12).
		Scan(&monthly).Error; err != nil {
		a.serverError(w, "transactions", "Failed to fetch statistics", err)
		return
	}

	dataJSON(w, http.StatusOK, "", map[string]any{
		"overall":     overall,
		"by_category": byCategory,
		"monthly":     monthly,
	})
}

/* ===================== HTTP: get/create/update/delete ====================== */

// GET /api/transactions/{id}
func (a *app) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	id, ok := idParam(r)
	if !ok {
		errorJSON(w, http.StatusNotFound, "Transaction not found")
		return
	}

	var t Transaction
	err := a.db.Where("id = ? AND user_id = ?", id, user.ID).
		Preload("Category").
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		errorJSON(w, http.StatusNotFound, "Transaction not found")
		return
	} else if err != nil {
		a.serverError(w, "transactions", "Failed to fetch transaction", err)
		return
	}

	dataJSON(w, http.StatusOK, "", map[string]any{"transaction": toTransactionDTO(t)})
}

// POST /api/transactions
func (a *app) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var in transactionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		errorJSON(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	date, errs := validateTransactionInput(&in)
	if len(errs) > 0 {
		validationJSON(w, errs)
		return
	}

	t := Transaction{
		Amount:      in.Amount,
		Type:        in.Type,
		Description: in.Description,
		Date:        date,
		UserID:      user.ID,
		CategoryID:  in.CategoryID,
	}
	var category *Category
	err := a.db.Transaction(func(tx *gorm.DB) error {
		if in.CategoryID != nil {
			var err error
			if category, err = checkCategory(tx, *in.CategoryID, in.Type); err != nil {
				return err
			}
		}
		return tx.Create(&t).Error
	})
	if err == nil {
		t.Category = category
	}
	if err != nil {
		var he *httpError
		if errors.As(err, &he) {
			errorJSON(w, he.status, he.message)
			return
		}
		if isForeignKeyViolation(err) {
			errorJSON(w, http.StatusBadRequest, "Category not found")
			return
		}
		a.serverError(w, "transactions", "Failed to create transaction", err)
		return
	}

	dataJSON(w, http.StatusCreated, "Transaction created successfully", map[string]any{
		"transaction": toTransactionDTO(t),
	})
}

// PUT /api/transactions/{id}
// Whole-row update; the category check runs against the new type.
func (a *app) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	id, ok := idParam(r)
	if !ok {
		errorJSON(w, http.StatusNotFound, "Transaction not found")
		return
	}

	var in transactionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		errorJSON(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	date, errs := validateTransactionInput(&in)
	if len(errs) > 0 {
		validationJSON(w, errs)
		return
	}

	var t Transaction
	err := a.db.Where("id = ? AND user_id = ?", id, user.ID).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		errorJSON(w, http.StatusNotFound, "Transaction not found")
		return
	} else if err != nil {
		a.serverError(w, "transactions", "Failed to update transaction", err)
		return
	}

	var category *Category
	err = a.db.Transaction(func(tx *gorm.DB) error {
		if in.CategoryID != nil {
			var err error
			if category, err = checkCategory(tx, *in.CategoryID, in.Type); err != nil {
				return err
			}
		}
		t.Amount = in.Amount
		t.Type = in.Type
		t.Description = in.Description
		t.Date = date
		t.CategoryID = in.CategoryID
		return tx.Save(&t).Error
	})
	if err == nil {
		t.Category = category
	}
	if err != nil {
		var he *httpError
		if errors.As(err, &he) {
			errorJSON(w, he.status, he.message)
			return
		}
		if isForeignKeyViolation(err) {
			errorJSON(w, http.StatusBadRequest, "Category not found")
			return
		}
		a.serverError(w, "transactions", "Failed to update transaction", err)
		return
	}

	dataJSON(w, http.StatusOK, "Transaction updated successfully", map[string]any{
		"transaction": toTransactionDTO(t),
	})
}

// DELETE /api/transactions/{id}
func (a *app) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	id, ok := idParam(r)
	if !ok {
		errorJSON(w, http.StatusNotFound, "Transaction not found")
		return
	}

	var t Transaction
	err := a.db.Where("id = ? AND user_id = ?", id, user.ID).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		errorJSON(w, http.StatusNotFound, "Transaction not found")
		return
	} else if err != nil {
		a.serverError(w, "transactions", "Failed to delete transaction", err)
		return
	}

	if err := a.db.Delete(&t).Error; err != nil {
		a.serverError(w, "transactions", "Failed to delete transaction", err)
		return
	}

	dataJSON(w, http.StatusOK, "Transaction deleted successfully", nil)
}
