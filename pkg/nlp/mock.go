package nlp

import (
	"context"
	"sync"

	"github.com/tempograph/tempograph/pkg/types"
)

// MockClient replays scripted responses in order, for tests and offline
// runs. Once the script is exhausted it repeats the last entry.
type MockClient struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
}

// NewMockClient builds a client that returns the given responses in order.
func NewMockClient(responses ...string) *MockClient {
	return &MockClient{responses: responses}
}

// FailWith schedules err for the call at the given index (0-based).
func (m *MockClient) FailWith(index int, err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.errs) <= index {
		m.errs = append(m.errs, nil)
	}
	m.errs[index] = err
	return m
}

// Calls reports how many Chat calls were made.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockClient) Chat(ctx context.Context, messages []types.Message, opts *types.GenerateOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.calls
	m.calls++
	if idx < len(m.errs) && m.errs[idx] != nil {
		return "", m.errs[idx]
	}
	if len(m.responses) == 0 {
		return "", nil
	}
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx], nil
}

func (m *MockClient) Close() error { return nil }
