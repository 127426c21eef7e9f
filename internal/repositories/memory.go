package repositories

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/desertthunder/nutrivision/internal/models"
	"github.com/desertthunder/nutrivision/internal/shared"
)

// MemoryUserRepository implements [UserStore] in process memory.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	byID    map[string]models.Account
	byEmail map[string]string
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    make(map[string]models.Account),
		byEmail: make(map[string]string),
	}
}

func (r *MemoryUserRepository) Create(ctx context.Context, acct *models.Account) error {
	if err := validateAccount(acct); err != nil {
		return err
	}
	email := normalizeEmail(acct.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[email]; ok {
		return fmt.Errorf("%w: email %s is already registered", shared.ErrDuplicate, email)
	}

	acct.ID = shared.GenerateID()
	acct.Email = email
	acct.CreatedAt = time.Now().UTC()
	if acct.Provider == "" {
		acct.Provider = models.ProviderLocal
	}

	r.byID[acct.ID] = *acct
	r.byEmail[email] = acct.ID
	return nil
}

func (r *MemoryUserRepository) Get(ctx context.Context, id string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acct, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", shared.ErrNotFound, id)
	}
	return &acct, nil
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	r.mu.RLock()
	id, ok := r.byEmail[normalizeEmail(email)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: user %s", shared.ErrNotFound, email)
	}
	return r.Get(ctx, id)
}

// MemoryMealRepository implements [MealStore] in process memory.
type MemoryMealRepository struct {
	mu     sync.RWMutex
	byUser map[string][]models.Meal
}

func NewMemoryMealRepository() *MemoryMealRepository {
	return &MemoryMealRepository{byUser: make(map[string][]models.Meal)}
}

func (r *MemoryMealRepository) Add(ctx context.Context, meal *models.Meal) error {
	if err := validateMeal(meal); err != nil {
		return err
	}

	meal.ID = shared.GenerateID()
	if meal.CreatedAt.IsZero() {
		meal.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	r.byUser[meal.UserID] = append(r.byUser[meal.UserID], *meal)
	r.mu.Unlock()
	return nil
}

// ListByUser returns a user's meals, newest first. Meals logged at the same
// instant keep reverse insertion order.
func (r *MemoryMealRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.Meal, error) {
	r.mu.RLock()
	meals := slices.Clone(r.byUser[userID])
	r.mu.RUnlock()

	slices.Reverse(meals)
	slices.SortStableFunc(meals, func(a, b models.Meal) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if limit = normalizeLimit(limit); len(meals) > limit {
		meals = meals[:limit]
	}
	if meals == nil {
		meals = []models.Meal{}
	}
	return meals, nil
}

func (r *MemoryMealRepository) Stats(ctx context.Context, userID string) (*models.MealStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stats models.MealStats
	for _, m := range r.byUser[userID] {
		at := m.CreatedAt
		stats.TotalMeals++
		stats.TotalCalories += m.Calories
		if stats.FirstMealAt == nil || at.Before(*stats.FirstMealAt) {
			stats.FirstMealAt = &at
		}
		if stats.LastMealAt == nil || at.After(*stats.LastMealAt) {
			stats.LastMealAt = &at
		}
	}
	return &stats, nil
}
