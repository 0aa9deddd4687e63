package main

import "time"

// Roles and entry types are stored as plain strings with CHECK-style
// validation at the handler boundary.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"

	TypeIncome  = "income"
	TypeExpense = "expense"
)

// User is the persisted account record.
type User struct {
	ID           uint      `gorm:"primaryKey"`
	Email        string    `gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string    `gorm:"type:text;not null"`
	Role         string    `gorm:"size:20;not null;default:user"`
	IsBlocked    bool      `gorm:"not null;default:false"`
	CreatedAt    time.Time
}

func (User) TableName() string { return "users" }

// Category is a global income/expense taxonomy entry shared by all users.
// Name uniqueness is system-wide; only admins may mutate rows.
type Category struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"size:255;uniqueIndex;not null"`
	Type      string    `gorm:"size:10;not null;default:expense"`
	CreatedAt time.Time
}

func (Category) TableName() string { return "categories" }

// Transaction is a per-user financial record. Deleting the owning user
// removes the row; deleting the referenced category nulls CategoryID.
type Transaction struct {
	ID          uint      `gorm:"primaryKey"`
	Amount      float64   `gorm:"type:numeric(10,2);not null"`
	Type        string    `gorm:"size:10;not null"`
	Description string    `gorm:"type:text"`
	Date        time.Time `gorm:"type:date;not null;index:idx_transactions_date"`
	UserID      uint      `gorm:"not null;index:idx_transactions_user"`
	User        User      `gorm:"constraint:OnDelete:CASCADE"`
	CategoryID  *uint
	Category    *Category `gorm:"constraint:OnDelete:SET NULL"`
	CreatedAt   time.Time
}

func (Transaction) TableName() string { return "transactions" }

/* ===================== Public JSON (API) ====================== */

type userDTO struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	IsBlocked bool      `json:"is_blocked"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserDTO(u User) userDTO {
	return userDTO{
		ID:        u.ID,
		Email:     u.Email,
		Role:      u.Role,
		IsBlocked: u.IsBlocked,
		CreatedAt: u.CreatedAt,
	}
}

type categoryDTO struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

func toCategoryDTO(c Category) categoryDTO {
	return categoryDTO{ID: c.ID, Name: c.Name, Type: c.Type, CreatedAt: c.CreatedAt}
}

type transactionDTO struct {
	ID           uint      `json:"id"`
	Amount       float64   `json:"amount"`
	Type         string    `json:"type"`
	Description  string    `json:"description,omitempty"`
	Date         string    `json:"date"`
	CategoryID   *uint     `json:"category_id"`
	CategoryName string    `json:"category_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func toTransactionDTO(t Transaction) transactionDTO {
	out := transactionDTO{
		ID:          t.ID,
		Amount:      t.Amount,
		Type:        t.Type,
		Description: t.Description,
		Date:        t.Date.Format(dateLayout),
		CategoryID:  t.CategoryID,
		CreatedAt:   t.CreatedAt,
	}
	if t.Category != nil {
		out.CategoryName = t.Category.Name
	}
	return out
}

const dateLayout = "2006-01-02"
