// Package session holds the client's current bearer token and user profile.
//
// A [Store] is constructed once at application start and is the only owner of session state.
// Transitions are whole replacements: [Store.Set] installs a token/profile pair and
// [Store.Clear] removes both. There is no way to change one field without the other.
//
// A [Persister] lets the session outlive the process; [FilePersister] keeps it in a JSON file.
package session
