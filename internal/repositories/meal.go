package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/nutrivision/internal/models"
	"github.com/desertthunder/nutrivision/internal/shared"
)

// MealRepository implements [MealStore] on SQLite.
type MealRepository struct {
	db *sql.DB
}

func NewMealRepository(db *sql.DB) *MealRepository {
	return &MealRepository{db: db}
}

// Add inserts meal, assigning its ID and, when unset, its creation time
func (r *MealRepository) Add(ctx context.Context, meal *models.Meal) error {
	if err := validateMeal(meal); err != nil {
		return err
	}

	meal.ID = shared.GenerateID()
	if meal.CreatedAt.IsZero() {
		meal.CreatedAt = time.Now()
	}
	meal.CreatedAt = meal.CreatedAt.UTC()
	details := "{}"
	if len(meal.Details) > 0 {
		details = string(meal.Details)
	}

	query := `
		INSERT INTO meals (id, user_id, name, calories, details, created_at) VALUES (?, ?, ?, ?, ?, ?)
	`

	if _, err := r.db.ExecContext(ctx, query, meal.ID, meal.UserID, meal.Name, meal.Calories, details, meal.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert meal: %w", err)
	}

	return nil
}

// ListByUser returns a user's meals, newest first
func (r *MealRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.Meal, error) {
	query := `
		SELECT id, user_id, name, calories, details, created_at
		FROM meals
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, userID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query meals: %w", err)
	}
	defer rows.Close()

	meals := []models.Meal{}
	for rows.Next() {
		var (
			meal    models.Meal
			details string
		)
		if err := rows.Scan(&meal.ID, &meal.UserID, &meal.Name, &meal.Calories, &details, &meal.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan meal: %w", err)
		}
		meal.Details = json.RawMessage(details)
		meals = append(meals, meal)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return meals, nil
}

// Stats aggregates a user's meals. A user without meals gets zero totals.
func (r *MealRepository) Stats(ctx context.Context, userID string) (*models.MealStats, error) {
	var stats models.MealStats

	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(calories), 0) FROM meals WHERE user_id = ?`, userID,
	).Scan(&stats.TotalMeals, &stats.TotalCalories)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate meals: %w", err)
	}

	if stats.TotalMeals == 0 {
		return &stats, nil
	}

	first, err := r.boundary(ctx, userID, "ASC")
	if err != nil {
		return nil, err
	}
	last, err := r.boundary(ctx, userID, "DESC")
	if err != nil {
		return nil, err
	}
	stats.FirstMealAt, stats.LastMealAt = &first, &last

	return &stats, nil
}

func (r *MealRepository) boundary(ctx context.Context, userID, order string) (time.Time, error) {
	query := `SELECT created_at FROM meals WHERE user_id = ? ORDER BY created_at ` + order + ` LIMIT 1`

	var at time.Time
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return at, fmt.Errorf("%w: meals for %s", shared.ErrNotFound, userID)
	}
	if err != nil {
		return at, fmt.Errorf("failed to query meal time: %w", err)
	}
	return at, nil
}

func validateMeal(meal *models.Meal) error {
	switch {
	case meal == nil:
		return fmt.Errorf("%w: meal is required", shared.ErrInvalidInput)
	case meal.UserID == "":
		return fmt.Errorf("%w: meal needs an owner", shared.ErrInvalidInput)
	case strings.TrimSpace(meal.Name) == "":
		return fmt.Errorf("%w: meal name is required", shared.ErrInvalidInput)
	case meal.Calories < 0:
		return fmt.Errorf("%w: calories cannot be negative", shared.ErrInvalidInput)
	case len(meal.Details) > 0 && !json.Valid(meal.Details):
		return fmt.Errorf("%w: meal details must be JSON", shared.ErrInvalidInput)
	}
	return nil
}
