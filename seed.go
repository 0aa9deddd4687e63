package main

import (
	"errors"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// defaultCategories is the global taxonomy installed on first run.
var defaultCategories = []Category{
	{Name: "Salary", Type: TypeIncome},
	{Name: "Freelance", Type: TypeIncome},
	{Name: "Other Income", Type: TypeIncome},
	{Name: "Rent", Type: TypeExpense},
	{Name: "Utilities", Type: TypeExpense},
	{Name: "Food", Type: TypeExpense},
	{Name: "Transport", Type: TypeExpense},
	{Name: "Entertainment", Type: TypeExpense},
	{Name: "Healthcare", Type: TypeExpense},
	{Name: "Shopping", Type: TypeExpense},
	{Name: "Education", Type: TypeExpense},
	{Name: "Other", Type: TypeExpense},
}

// seedDatabase installs the admin account and the default global categories.
// Idempotent: rows that already exist are left untouched.
func seedDatabase(db *gorm.DB, cfg Config) error {
	var admin User
	err := db.Where("email = ?", cfg.AdminEmail).First(&admin).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), cfg.BcryptCost)
		if err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}
		admin = User{Email: cfg.AdminEmail, PasswordHash: string(hash), Role: RoleAdmin}
		if err := db.Create(&admin).Error; err != nil {
			return fmt.Errorf("create admin user: %w", err)
		}
		log.Printf("[seed] admin user created (%s)", cfg.AdminEmail)
	case err != nil:
		return fmt.Errorf("look up admin user: %w", err)
	}

	created := 0
	for _, c := range defaultCategories {
		var row Category
		res := db.Where(Category{Name: c.Name}).Attrs(Category{Type: c.Type}).FirstOrCreate(&row)
		if res.Error != nil {
			return fmt.Errorf("seed category %q: %w", c.Name, res.Error)
		}
		created += int(res.RowsAffected)
	}
	if created > 0 {
		log.Printf("[seed] %d categories created", created)
	}
	return nil
}
