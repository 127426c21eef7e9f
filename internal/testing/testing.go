// package testing contains shared testing utilities
package testing

import (
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/nutrivision/internal/session"
	"github.com/desertthunder/nutrivision/internal/shared"
)

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
	calls    atomic.Int32
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	m.calls.Add(1)
	return m.response, m.err
}

// Calls reports how many requests reached the transport.
func (m *MockRoundTripper) Calls() int { return int(m.calls.Load()) }

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// RecordingPersister is an in-memory [session.Persister] counting saves and removals.
type RecordingPersister struct {
	mu      sync.Mutex
	stored  *session.Session
	Saves   int
	Removes int
}

func (p *RecordingPersister) Load() (*session.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stored, nil
}

func (p *RecordingPersister) Save(s session.Session) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Saves++
	p.stored = &s
	return nil
}

func (p *RecordingPersister) Remove() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Removes++
	p.stored = nil
	return nil
}

// Counts returns the number of saves and removals so far.
func (p *RecordingPersister) Counts() (saves, removes int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Saves, p.Removes
}

// NewStore returns a quiet [session.Store] backed by a fresh [RecordingPersister].
func NewStore(t *testing.T) (*session.Store, *RecordingPersister) {
	t.Helper()
	p := &RecordingPersister{}
	return session.NewStore(session.StoreOpts{Persister: p, Logger: shared.NewLogger(io.Discard)}), p
}
