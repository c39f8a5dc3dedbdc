// Package sheets defines the snapshot mirror port. Adapters live in
// subpackages.
package sheets

import (
	"context"

	"budgetdigest/internal/core"
)

// SnapshotMirror copies a weekly snapshot into an external spreadsheet
// so the household can chart history outside the service.
type SnapshotMirror interface {
	MirrorSnapshot(ctx context.Context, snap core.Snapshot) error
}
