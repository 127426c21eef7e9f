package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/nutrivision/internal/models"
	"github.com/desertthunder/nutrivision/internal/shared"
)

// UserRepository implements [UserStore] on SQLite.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts acct, assigning its ID and creation time.
// Emails are stored lowercased; a taken email is [shared.ErrDuplicate].
func (r *UserRepository) Create(ctx context.Context, acct *models.Account) error {
	if err := validateAccount(acct); err != nil {
		return err
	}

	acct.ID = shared.GenerateID()
	acct.Email = normalizeEmail(acct.Email)
	acct.CreatedAt = time.Now().UTC()
	if acct.Provider == "" {
		acct.Provider = models.ProviderLocal
	}

	query := `
		INSERT INTO users (id, name, email, password_hash, provider, created_at) VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query, acct.ID, acct.Name, acct.Email, acct.PasswordHash, acct.Provider, acct.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: email %s is already registered", shared.ErrDuplicate, acct.Email)
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// Get retrieves an account by ID
func (r *UserRepository) Get(ctx context.Context, id string) (*models.Account, error) {
	return r.queryOne(ctx, "id = ?", id)
}

// GetByEmail retrieves an account by email, ignoring case
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.queryOne(ctx, "email = ?", normalizeEmail(email))
}

func (r *UserRepository) queryOne(ctx context.Context, where string, arg any) (*models.Account, error) {
	query := `
		SELECT id, name, email, password_hash, provider, created_at
		FROM users
		WHERE ` + where

	var acct models.Account
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&acct.ID, &acct.Name, &acct.Email, &acct.PasswordHash, &acct.Provider, &acct.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %v", shared.ErrNotFound, arg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	return &acct, nil
}

func validateAccount(acct *models.Account) error {
	switch {
	case acct == nil:
		return fmt.Errorf("%w: account is required", shared.ErrInvalidInput)
	case strings.TrimSpace(acct.Name) == "":
		return fmt.Errorf("%w: name is required", shared.ErrInvalidInput)
	case !strings.Contains(acct.Email, "@"):
		return fmt.Errorf("%w: a valid email is required", shared.ErrInvalidInput)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
