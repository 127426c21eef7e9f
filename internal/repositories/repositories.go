package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/desertthunder/nutrivision/internal/models"
	"github.com/mattn/go-sqlite3"
)

const defaultHistoryLimit = 50

// UserStore persists accounts.
type UserStore interface {
	Create(ctx context.Context, acct *models.Account) error
	Get(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
}

// MealStore persists logged meals.
type MealStore interface {
	Add(ctx context.Context, meal *models.Meal) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Meal, error)
	Stats(ctx context.Context, userID string) (*models.MealStats, error)
}

// Stores groups the stores the API serves from.
type Stores struct {
	Users UserStore
	Meals MealStore
}

// Open returns SQLite-backed stores for db, or in-memory stores when db is nil.
func Open(db *sql.DB) Stores {
	if db == nil {
		return Stores{Users: NewMemoryUserRepository(), Meals: NewMemoryMealRepository()}
	}
	return Stores{Users: NewUserRepository(db), Meals: NewMealRepository(db)}
}

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode == sqlite3.ErrConstraintUnique || serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultHistoryLimit
	}
	return limit
}
