// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/desertthunder/binder/internal/models"
)

// Journal records the order in which fakes were called.
type Journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *Journal) add(entry string) {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
}

// Entries returns a copy of the recorded calls.
func (j *Journal) Entries() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

// Persister is an in-memory stand-in for the progress repository.
type Persister struct {
	Journal *Journal
	Err     error

	mu      sync.Mutex
	saves   []models.Progress
	markers map[string]string
}

func (p *Persister) SaveProgress(pr models.Progress) error {
	p.Journal.add("persist")
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.saves = append(p.saves, pr.Clone())
	return nil
}

// LoadProgress returns the last saved value, or empty progress.
func (p *Persister) LoadProgress() (models.Progress, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.saves) == 0 {
		return models.Progress{}, nil
	}
	return p.saves[len(p.saves)-1].Clone(), nil
}

func (p *Persister) Marker(key string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.markers[key], nil
}

func (p *Persister) SetMarker(key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.markers == nil {
		p.markers = map[string]string{}
	}
	p.markers[key] = value
	return nil
}

// Saves returns how many times SaveProgress succeeded.
func (p *Persister) Saves() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.saves)
}

// Last returns the most recently saved progress, or nil.
func (p *Persister) Last() models.Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.saves) == 0 {
		return nil
	}
	return p.saves[len(p.saves)-1]
}

// Pusher records pushes instead of sending them.
type Pusher struct {
	Journal *Journal
	Err     error

	mu     sync.Mutex
	pushes []models.Progress
}

func (p *Pusher) Push(ctx context.Context, pr models.Progress) error {
	p.Journal.add("push")
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes = append(p.pushes, pr.Clone())
	return p.Err
}

// Pushes returns how many times Push was called.
func (p *Pusher) Pushes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pushes)
}

// Last returns the most recently pushed progress, or nil.
func (p *Pusher) Last() models.Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pushes) == 0 {
		return nil
	}
	return p.pushes[len(p.pushes)-1]
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

var _ io.ReadCloser = (*FCloser)(nil)

// MustWriteFile writes content to path, creating parent directories.
func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
