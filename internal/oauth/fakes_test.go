package oauth

import (
	"context"
	"sync"
)

type fakeGoogle struct {
	mu        sync.Mutex
	callback  func(GoogleCredentialResponse)
	cfg       GoogleIDConfig
	initErr   error
	promptErr error
	responses []GoogleCredentialResponse
	prompted  chan struct{}
	inits     int
	prompts   int
}

func (f *fakeGoogle) Initialize(cfg GoogleIDConfig, callback func(GoogleCredentialResponse)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits++
	f.cfg = cfg
	f.callback = callback
	return f.initErr
}

func (f *fakeGoogle) Prompt(ctx context.Context) error {
	f.mu.Lock()
	f.prompts++
	cb, responses := f.callback, f.responses
	f.mu.Unlock()

	if f.promptErr != nil {
		return f.promptErr
	}
	for _, r := range responses {
		cb(r)
	}
	if f.prompted != nil {
		close(f.prompted)
	}
	return nil
}

func (f *fakeGoogle) fire(r GoogleCredentialResponse) {
	f.mu.Lock()
	cb := f.callback
	f.mu.Unlock()
	cb(r)
}

type fakeApple struct {
	cfg     AppleConfig
	initErr error
	resp    *AppleSignInResponse
	err     error
}

func (f *fakeApple) Init(cfg AppleConfig) error {
	f.cfg = cfg
	return f.initErr
}

func (f *fakeApple) SignIn(ctx context.Context) (*AppleSignInResponse, error) {
	return f.resp, f.err
}
