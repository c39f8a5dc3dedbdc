// Package worker executes queued newsletter runs and mirrors the resulting
// snapshots to the household spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"

	"budgetdigest/internal/amqp"
	"budgetdigest/internal/core"
	"budgetdigest/internal/log"
	"budgetdigest/internal/service"
	"budgetdigest/internal/sheets"
)

// Runner executes one newsletter pipeline run.
type Runner interface {
	Run(ctx context.Context, opts service.RunOptions) (service.RunResult, error)
}

// SnapshotReader loads stored snapshots, newest first.
type SnapshotReader interface {
	ListSnapshots(ctx context.Context, userID string, limit int) ([]core.Snapshot, error)
}

// DigestWorker consumes run requests and drives the pipeline.
type DigestWorker struct {
	runner    Runner
	snapshots SnapshotReader
	mirror    sheets.SnapshotMirror // nil disables mirroring
	logger    *log.Logger
}

func NewDigestWorker(runner Runner, snapshots SnapshotReader, mirror sheets.SnapshotMirror, logger *log.Logger) *DigestWorker {
	return &DigestWorker{
		runner:    runner,
		snapshots: snapshots,
		mirror:    mirror,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleRunRequest processes a single run request from the queue. A failed
// run is already recorded in the run log, so it is treated as handled;
// only a provider outage is returned to the consumer for redelivery.
func (w *DigestWorker) HandleRunRequest(ctx context.Context, msg *amqp.RunRequestMessage) error {
	logger := w.logger.With(log.FieldUserID, msg.UserID)
	logger.InfoContext(ctx, "processing run request",
		"skip_ai", msg.SkipAI, "skip_email", msg.SkipEmail, "force", msg.Force)

	result, err := w.runner.Run(ctx, service.RunOptions{
		UserID:    msg.UserID,
		SkipAI:    msg.SkipAI,
		SkipEmail: msg.SkipEmail,
		Force:     msg.Force,
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		if errors.Is(err, core.ErrProviderUnavailable) {
			return fmt.Errorf("run %s: %w", result.RunID, err)
		}
		logger.ErrorContext(ctx, "run failed", log.FieldRunID, result.RunID, log.FieldError, err)
		return nil
	}

	if result.SnapshotID != "" {
		w.mirrorSnapshot(ctx, msg.UserID, result.SnapshotID)
	}
	return nil
}

// mirrorSnapshot appends the freshly stored snapshot to the spreadsheet.
// Best effort: the run already succeeded, mirror failures are only logged.
func (w *DigestWorker) mirrorSnapshot(ctx context.Context, userID, snapshotID string) {
	if w.mirror == nil {
		return
	}

	snaps, err := w.snapshots.ListSnapshots(ctx, userID, 1)
	if err != nil || len(snaps) == 0 || snaps[0].ID != snapshotID {
		w.logger.WarnContext(ctx, "snapshot not found for mirroring",
			log.FieldSnapshotID, snapshotID, log.FieldError, err)
		return
	}

	if err := w.mirror.MirrorSnapshot(ctx, snaps[0]); err != nil {
		w.logger.WarnContext(ctx, "snapshot mirror failed",
			log.FieldSnapshotID, snapshotID, log.FieldError, err)
		return
	}
	w.logger.InfoContext(ctx, "snapshot mirrored",
		log.FieldSnapshotID, snapshotID, log.FieldOperation, log.OpMirror)
}
