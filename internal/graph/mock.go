package graph

import (
	"context"
	"sync"
)

// MockCall records one query issued against the mock executor.
type MockCall struct {
	Method string
	Cypher string
	Params map[string]any
}

// MockExecutor is an in-memory Executor for tests. Results are served from
// FIFO queues, one per transaction kind; an exhausted queue yields an empty
// result, which is how a pagination loop observes its final page.
type MockExecutor struct {
	mu sync.Mutex

	readResults  []QueryResult
	writeResults []QueryResult
	readErr      error
	writeErr     error
	closed       bool
	calls        []MockCall
}

// NewMockExecutor creates an empty mock executor.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{}
}

// PushReadResult queues a result for the next unserved ReadQuery call.
func (m *MockExecutor) PushReadResult(result QueryResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readResults = append(m.readResults, result)
}

// PushWriteResult queues a result for the next unserved WriteQuery call.
func (m *MockExecutor) PushWriteResult(result QueryResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeResults = append(m.writeResults, result)
}

// SetReadError makes every subsequent ReadQuery fail.
func (m *MockExecutor) SetReadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

// SetWriteError makes every subsequent WriteQuery fail.
func (m *MockExecutor) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

func (m *MockExecutor) ReadQuery(ctx context.Context, cypher string, params map[string]any) (QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockCall{Method: "ReadQuery", Cypher: cypher, Params: params})

	if m.readErr != nil {
		return QueryResult{}, m.readErr
	}
	if len(m.readResults) > 0 {
		result := m.readResults[0]
		m.readResults = m.readResults[1:]
		return result, nil
	}
	return QueryResult{Records: []map[string]any{}}, nil
}

func (m *MockExecutor) WriteQuery(ctx context.Context, cypher string, params map[string]any) (QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockCall{Method: "WriteQuery", Cypher: cypher, Params: params})

	if m.writeErr != nil {
		return QueryResult{}, m.writeErr
	}
	if len(m.writeResults) > 0 {
		result := m.writeResults[0]
		m.writeResults = m.writeResults[1:]
		return result, nil
	}
	return QueryResult{Records: []map[string]any{}}, nil
}

func (m *MockExecutor) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockExecutor) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Calls returns a copy of all recorded calls.
func (m *MockExecutor) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]MockCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// CallsByMethod returns the recorded calls for one method name.
func (m *MockExecutor) CallsByMethod(method string) []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var calls []MockCall
	for _, call := range m.calls {
		if call.Method == method {
			calls = append(calls, call)
		}
	}
	return calls
}
