// Package oauth federates third-party identity providers into a NutriVision session.
//
// A [Bridge] drives one sign-in at a time through
//
//	Idle → Initializing → AwaitingUserConsent → CredentialReceived → Exchanging → SessionEstablished | Failed
//
// Providers are injected capability objects implementing [Provider]. Each wraps a provider SDK:
//   - [GoogleProvider] wraps a callback-style [GoogleIdentity]; a single-shot adapter turns the callback into one awaited result
//   - [AppleProvider] wraps an [AppleID] whose SignIn returns the result directly
//
// A missing SDK is reported as a [shared.IntegrationError] while initializing.
// The provider credential is posted to the backend and only the exchanged token and profile
// reach the [session.Store]; a failure at any stage leaves the store as it was.
//
// [LoopbackGoogle] and [LoopbackApple] are SDK implementations for terminals: they open the
// provider's consent page in a browser and receive the result on a localhost callback.
package oauth
