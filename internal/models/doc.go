// Package models defines the wire and domain types shared by the NutriVision client and server.
//
// Wire types:
//   - [Envelope] : the {success, data, error, message} wrapper every backend JSON response uses
//   - [AuthData] : data of register/login/federation envelopes (session token + [User])
//   - [Health] : body of the health endpoint
//
// Domain types:
//   - [User] : the profile that always travels with a session token
//   - [Account] : a stored user with credentials, never serialized to clients
//   - [Meal], [MealStats] : meal history records and their aggregate
//   - [ChatMessage] : one turn of a chatbot conversation
package models
