// Package memory holds an in-memory snapshot mirror for local runs and
// tests.
package memory

import (
	"context"
	"sync"

	"budgetdigest/internal/core"
	ports "budgetdigest/internal/sheets"
)

type Mirror struct {
	mu        sync.Mutex
	snapshots []core.Snapshot
}

var _ ports.SnapshotMirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{}
}

func (m *Mirror) MirrorSnapshot(_ context.Context, snap core.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, snap)
	return nil
}

// Snapshots returns a copy of everything mirrored so far.
func (m *Mirror) Snapshots() []core.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.Snapshot, len(m.snapshots))
	copy(out, m.snapshots)
	return out
}
