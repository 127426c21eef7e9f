package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/nutrivision/internal/models"
	"github.com/desertthunder/nutrivision/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	if err := shared.RunMigrations(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// storeFactories runs every test against both the SQLite and in-memory stores.
func storeFactories(t *testing.T) map[string]func() Stores {
	return map[string]func() Stores{
		"sqlite": func() Stores { return Open(setupTestDB(t)) },
		"memory": func() Stores { return Open(nil) },
	}
}

func TestUserStores(t *testing.T) {
	ctx := context.Background()

	for name, newStores := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("Create & Get", func(t *testing.T) {
				users := newStores().Users
				acct := &models.Account{User: models.User{Name: "Ada", Email: " Ada@Example.com "}, PasswordHash: "hash"}

				if err := users.Create(ctx, acct); err != nil {
					t.Fatalf("failed to create user: %v", err)
				}
				if acct.ID == "" {
					t.Error("user ID should be set after creation")
				}
				if acct.Email != "ada@example.com" {
					t.Errorf("expected normalized email, got %q", acct.Email)
				}
				if acct.Provider != models.ProviderLocal {
					t.Errorf("expected local provider, got %q", acct.Provider)
				}

				retrieved, err := users.Get(ctx, acct.ID)
				if err != nil {
					t.Fatalf("failed to get user: %v", err)
				}
				if retrieved.Email != acct.Email || retrieved.PasswordHash != "hash" {
					t.Errorf("unexpected account %+v", retrieved)
				}
			})

			t.Run("GetByEmail ignores case", func(t *testing.T) {
				users := newStores().Users
				acct := &models.Account{User: models.User{Name: "Ada", Email: "ada@example.com"}}
				if err := users.Create(ctx, acct); err != nil {
					t.Fatalf("failed to create user: %v", err)
				}

				retrieved, err := users.GetByEmail(ctx, "ADA@example.com")
				if err != nil {
					t.Fatalf("failed to get user: %v", err)
				}
				if retrieved.ID != acct.ID {
					t.Errorf("expected ID %s, got %s", acct.ID, retrieved.ID)
				}
			})

			t.Run("DuplicateEmail", func(t *testing.T) {
				users := newStores().Users
				if err := users.Create(ctx, &models.Account{User: models.User{Name: "One", Email: "dup@example.com"}}); err != nil {
					t.Fatalf("failed to create first user: %v", err)
				}

				err := users.Create(ctx, &models.Account{User: models.User{Name: "Two", Email: "DUP@example.com"}})
				if !errors.Is(err, shared.ErrDuplicate) {
					t.Fatalf("expected ErrDuplicate, got %v", err)
				}
			})

			t.Run("NotFound", func(t *testing.T) {
				users := newStores().Users
				if _, err := users.Get(ctx, "missing"); !errors.Is(err, shared.ErrNotFound) {
					t.Errorf("expected ErrNotFound, got %v", err)
				}
				if _, err := users.GetByEmail(ctx, "missing@example.com"); !errors.Is(err, shared.ErrNotFound) {
					t.Errorf("expected ErrNotFound, got %v", err)
				}
			})

			t.Run("ValidationError", func(t *testing.T) {
				users := newStores().Users
				tests := []*models.Account{
					nil,
					{User: models.User{Name: "", Email: "a@b.c"}},
					{User: models.User{Name: "Ada", Email: "not-an-email"}},
				}
				for _, acct := range tests {
					if err := users.Create(ctx, acct); !errors.Is(err, shared.ErrInvalidInput) {
						t.Errorf("expected ErrInvalidInput for %+v, got %v", acct, err)
					}
				}
			})
		})
	}
}

func TestMealStores(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, newStores := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("Add & ListByUser newest first", func(t *testing.T) {
				meals := newStores().Meals
				for i, n := range []string{"breakfast", "lunch", "dinner"} {
					m := &models.Meal{UserID: "u1", Name: n, Calories: 100, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
					if err := meals.Add(ctx, m); err != nil {
						t.Fatalf("failed to add meal: %v", err)
					}
					if m.ID == "" {
						t.Error("meal ID should be set after creation")
					}
				}
				meals.Add(ctx, &models.Meal{UserID: "u2", Name: "other", CreatedAt: base})

				history, err := meals.ListByUser(ctx, "u1", 0)
				if err != nil {
					t.Fatalf("failed to list meals: %v", err)
				}
				if len(history) != 3 {
					t.Fatalf("expected 3 meals, got %d", len(history))
				}
				if history[0].Name != "dinner" || history[2].Name != "breakfast" {
					t.Errorf("unexpected order: %s, %s, %s", history[0].Name, history[1].Name, history[2].Name)
				}
				if !history[0].CreatedAt.Equal(base.Add(2 * time.Hour)) {
					t.Errorf("unexpected timestamp %v", history[0].CreatedAt)
				}
			})

			t.Run("ListByUser honours limit", func(t *testing.T) {
				meals := newStores().Meals
				for i := range 5 {
					meals.Add(ctx, &models.Meal{UserID: "u1", Name: "snack", CreatedAt: base.Add(time.Duration(i) * time.Minute)})
				}

				history, err := meals.ListByUser(ctx, "u1", 2)
				if err != nil {
					t.Fatalf("failed to list meals: %v", err)
				}
				if len(history) != 2 {
					t.Errorf("expected 2 meals, got %d", len(history))
				}
			})

			t.Run("ListByUser empty", func(t *testing.T) {
				history, err := newStores().Meals.ListByUser(ctx, "nobody", 10)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if history == nil || len(history) != 0 {
					t.Errorf("expected empty non-nil slice, got %#v", history)
				}
			})

			t.Run("Details round trip", func(t *testing.T) {
				meals := newStores().Meals
				details := json.RawMessage(`{"protein":30,"items":["egg","toast"]}`)
				if err := meals.Add(ctx, &models.Meal{UserID: "u1", Name: "breakfast", Details: details}); err != nil {
					t.Fatalf("failed to add meal: %v", err)
				}

				history, _ := meals.ListByUser(ctx, "u1", 1)
				var got map[string]any
				if err := json.Unmarshal(history[0].Details, &got); err != nil {
					t.Fatalf("details not JSON: %v", err)
				}
				if got["protein"] != float64(30) {
					t.Errorf("unexpected details %v", got)
				}
			})

			t.Run("Stats", func(t *testing.T) {
				meals := newStores().Meals
				meals.Add(ctx, &models.Meal{UserID: "u1", Name: "a", Calories: 250.5, CreatedAt: base.Add(time.Hour)})
				meals.Add(ctx, &models.Meal{UserID: "u1", Name: "b", Calories: 400, CreatedAt: base})
				meals.Add(ctx, &models.Meal{UserID: "u1", Name: "c", Calories: 100, CreatedAt: base.Add(3 * time.Hour)})

				stats, err := meals.Stats(ctx, "u1")
				if err != nil {
					t.Fatalf("failed to get stats: %v", err)
				}
				if stats.TotalMeals != 3 || stats.TotalCalories != 750.5 {
					t.Errorf("unexpected totals %+v", stats)
				}
				if stats.FirstMealAt == nil || !stats.FirstMealAt.Equal(base) {
					t.Errorf("unexpected first meal %v", stats.FirstMealAt)
				}
				if stats.LastMealAt == nil || !stats.LastMealAt.Equal(base.Add(3*time.Hour)) {
					t.Errorf("unexpected last meal %v", stats.LastMealAt)
				}
			})

			t.Run("Stats without meals", func(t *testing.T) {
				stats, err := newStores().Meals.Stats(ctx, "nobody")
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if stats.TotalMeals != 0 || stats.FirstMealAt != nil {
					t.Errorf("expected zero stats, got %+v", stats)
				}
			})

			t.Run("ValidationError", func(t *testing.T) {
				meals := newStores().Meals
				tests := []*models.Meal{
					nil,
					{Name: "no owner"},
					{UserID: "u1"},
					{UserID: "u1", Name: "negative", Calories: -1},
					{UserID: "u1", Name: "bad details", Details: json.RawMessage(`{oops`)},
				}
				for _, m := range tests {
					if err := meals.Add(ctx, m); !errors.Is(err, shared.ErrInvalidInput) {
						t.Errorf("expected ErrInvalidInput for %+v, got %v", m, err)
					}
				}
			})
		})
	}
}

func TestOpen(t *testing.T) {
	if _, ok := Open(nil).Users.(*MemoryUserRepository); !ok {
		t.Error("expected memory user store without a database")
	}
	if _, ok := Open(setupTestDB(t)).Meals.(*MealRepository); !ok {
		t.Error("expected sqlite meal store with a database")
	}
}
