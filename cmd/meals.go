package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/desertthunder/nutrivision/internal/shared"
	"github.com/urfave/cli/v3"
)

type mealInput struct {
	Name     string          `json:"name"`
	Calories float64         `json:"calories"`
	Details  json.RawMessage `json:"details,omitempty"`
}

// MealsAdd logs a meal for the signed-in user.
func (r *Runner) MealsAdd(ctx context.Context, cmd *cli.Command) error {
	input := mealInput{Name: cmd.String("name"), Calories: cmd.Float("calories")}

	if details := cmd.String("details"); details != "" {
		if !json.Valid([]byte(details)) {
			return fmt.Errorf("%w: --details must be valid JSON", shared.ErrInvalidArgument)
		}
		input.Details = json.RawMessage(details)
	}

	meal, err := r.client.AddMeal(ctx, input)
	if err != nil {
		return r.explain(err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(meal, true)
	}
	r.writePlain("✓ Logged %s (%.0f kcal)\n", meal.Name, meal.Calories)
	return nil
}

// MealsHistory lists logged meals, newest first.
func (r *Runner) MealsHistory(ctx context.Context, cmd *cli.Command) error {
	meals, err := r.client.MealHistory(ctx)
	if err != nil {
		return r.explain(err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(meals, true)
	}

	if len(meals) == 0 {
		r.writePlainln("No meals logged yet.")
		return nil
	}

	r.writePlainHeader(fmt.Sprintf("Meals (%d)", len(meals)))
	w := tabwriter.NewWriter(r.output, 0, 0, 2, ' ', 0)
	for _, m := range meals {
		fmt.Fprintf(w, "%s\t%s\t%.0f kcal\n", m.CreatedAt.Local().Format(time.DateTime), m.Name, m.Calories)
	}
	return w.Flush()
}

// MealsStats shows meal totals.
func (r *Runner) MealsStats(ctx context.Context, cmd *cli.Command) error {
	stats, err := r.client.MealStats(ctx)
	if err != nil {
		return r.explain(err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(stats, true)
	}

	r.writePlain("Meals:    %d\n", stats.TotalMeals)
	r.writePlain("Calories: %.0f\n", stats.TotalCalories)
	if stats.FirstMealAt != nil {
		r.writePlain("First:    %s\n", stats.FirstMealAt.Local().Format(time.DateTime))
	}
	if stats.LastMealAt != nil {
		r.writePlain("Last:     %s\n", stats.LastMealAt.Local().Format(time.DateTime))
	}
	return nil
}
