package oauth

import (
	"context"
	"sync"
)

// Credential is a provider-issued credential on its way to the backend.
//
// Payload is the provider-specific exchange body. It is never persisted.
type Credential struct {
	Provider string
	Payload  any
}

// Provider is an identity provider capability.
type Provider interface {
	Name() string                                       // Name is the provider tag, e.g. "google"
	Endpoint() string                                   // Endpoint is the backend exchange path
	Initialize(ctx context.Context) error               // Initialize prepares the SDK
	PromptUser(ctx context.Context) (Credential, error) // PromptUser obtains the user's consent and credential
}

// singleShot resolves at most once; later resolutions are dropped.
type singleShot[T any] struct {
	once sync.Once
	ch   chan T
}

func newSingleShot[T any]() *singleShot[T] {
	return &singleShot[T]{ch: make(chan T, 1)}
}

func (s *singleShot[T]) resolve(v T) {
	s.once.Do(func() {
		s.ch <- v
		close(s.ch)
	})
}

func (s *singleShot[T]) wait(ctx context.Context) (T, error) {
	select {
	case v := <-s.ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
