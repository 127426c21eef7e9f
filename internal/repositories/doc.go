// Package repositories implements persistence for NutriVision accounts and meals.
//
// Two implementations exist for each store:
//   - [UserRepository] and [MealRepository] persist to SQLite
//   - [MemoryUserRepository] and [MemoryMealRepository] keep records in process memory
//
// The memory variants back the server in fallback mode, when no database connection
// could be made. Their contents are lost on restart.
//
// [Open] picks the implementation for a given connection.
package repositories
