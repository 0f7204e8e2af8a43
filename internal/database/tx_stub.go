package database

import (
	"context"
	"sync"
)

// Snapshotter is implemented by in-memory repository stubs. Snapshot captures the current
// state and returns a function restoring it.
type Snapshotter interface {
	Snapshot() (restore func())
}

type stubTxKey struct{}

// StubTxManager gives in-memory stubs the same guarantees as PgxTxManager: units of work are
// serialized and a failing unit of work leaves no trace in any registered stub.
type StubTxManager struct {
	mu           sync.Mutex
	participants []Snapshotter
	commits      int
	rollbacks    int
}

func NewStubTxManager(participants ...Snapshotter) *StubTxManager {
	return &StubTxManager{participants: participants}
}

func (m *StubTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(stubTxKey{}) != nil {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	restores := make([]func(), 0, len(m.participants))
	for _, p := range m.participants {
		restores = append(restores, p.Snapshot())
	}

	if err := fn(context.WithValue(ctx, stubTxKey{}, true)); err != nil {
		for _, restore := range restores {
			restore()
		}
		m.rollbacks++
		return err
	}
	m.commits++
	return nil
}

func (m *StubTxManager) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

func (m *StubTxManager) Rollbacks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rollbacks
}
