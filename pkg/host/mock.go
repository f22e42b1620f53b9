package host

import (
	"sync"
	"time"
)

// MockHost implements Host for testing. Behavior can be customized via
// function fields; every call is recorded.
type MockHost struct {
	// SendMessageFunc is called by SendMessage. If nil, returns nil.
	SendMessageFunc func() error

	mu        sync.Mutex
	sends     int
	toasts    []string
	expecting bool
}

func (m *MockHost) SendMessage() error {
	m.mu.Lock()
	m.sends++
	m.mu.Unlock()
	if m.SendMessageFunc != nil {
		return m.SendMessageFunc()
	}
	return nil
}

func (m *MockHost) ShowToast(message string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toasts = append(m.toasts, message)
}

func (m *MockHost) ExpectingResponse() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expecting
}

func (m *MockHost) SetExpectingResponse(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expecting = v
}

// Sends returns how many times SendMessage was called.
func (m *MockHost) Sends() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sends
}

// Toasts returns every notice shown so far.
func (m *MockHost) Toasts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.toasts))
	copy(out, m.toasts)
	return out
}

var _ Host = (*MockHost)(nil)
