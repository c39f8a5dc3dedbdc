package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"budgetdigest/internal/amqp"
	"budgetdigest/internal/core"
	"budgetdigest/internal/log"
	"budgetdigest/internal/service"
	"budgetdigest/internal/sheets/memory"
)

type fakeRunner struct {
	result   service.RunResult
	err      error
	lastOpts service.RunOptions
}

func (f *fakeRunner) Run(_ context.Context, opts service.RunOptions) (service.RunResult, error) {
	f.lastOpts = opts
	return f.result, f.err
}

type fakeSnapshots struct {
	snaps []core.Snapshot
	err   error
}

func (f *fakeSnapshots) ListSnapshots(_ context.Context, _ string, _ int) ([]core.Snapshot, error) {
	return f.snaps, f.err
}

func testLogger() *log.Logger {
	return log.New(log.Config{Level: slog.LevelError})
}

func TestHandleRunRequestForwardsOptions(t *testing.T) {
	runner := &fakeRunner{result: service.RunResult{RunID: "r1", Status: core.RunSuccess}}
	w := NewDigestWorker(runner, &fakeSnapshots{}, nil, testLogger())

	msg := &amqp.RunRequestMessage{UserID: "u1", SkipAI: true, Force: true}
	if err := w.HandleRunRequest(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if runner.lastOpts.UserID != "u1" || !runner.lastOpts.SkipAI || !runner.lastOpts.Force || runner.lastOpts.SkipEmail {
		t.Fatalf("options not forwarded: %+v", runner.lastOpts)
	}
}

func TestHandleRunRequestMirrorsSnapshot(t *testing.T) {
	snap := core.Snapshot{ID: "s1", UserID: "u1", NetWorth: core.FromUnits(1000)}
	runner := &fakeRunner{result: service.RunResult{RunID: "r1", Status: core.RunSuccess, SnapshotID: "s1"}}
	mirror := memory.New()
	w := NewDigestWorker(runner, &fakeSnapshots{snaps: []core.Snapshot{snap}}, mirror, testLogger())

	if err := w.HandleRunRequest(context.Background(), &amqp.RunRequestMessage{UserID: "u1"}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	mirrored := mirror.Snapshots()
	if len(mirrored) != 1 || mirrored[0].ID != "s1" {
		t.Fatalf("expected snapshot s1 mirrored, got %+v", mirrored)
	}
}

func TestHandleRunRequestNoSnapshotNoMirror(t *testing.T) {
	runner := &fakeRunner{result: service.RunResult{RunID: "r1", Status: core.RunPartial}}
	mirror := memory.New()
	w := NewDigestWorker(runner, &fakeSnapshots{}, mirror, testLogger())

	if err := w.HandleRunRequest(context.Background(), &amqp.RunRequestMessage{UserID: "u1"}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(mirror.Snapshots()) != 0 {
		t.Fatal("nothing should be mirrored without a snapshot id")
	}
}

func TestHandleRunRequestStaleSnapshotNotMirrored(t *testing.T) {
	// The newest stored snapshot belongs to an older run; mirroring it
	// again would duplicate a spreadsheet row.
	old := core.Snapshot{ID: "old", UserID: "u1"}
	runner := &fakeRunner{result: service.RunResult{RunID: "r1", Status: core.RunSuccess, SnapshotID: "s1"}}
	mirror := memory.New()
	w := NewDigestWorker(runner, &fakeSnapshots{snaps: []core.Snapshot{old}}, mirror, testLogger())

	if err := w.HandleRunRequest(context.Background(), &amqp.RunRequestMessage{UserID: "u1"}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(mirror.Snapshots()) != 0 {
		t.Fatal("stale snapshot must not be mirrored")
	}
}

func TestHandleRunRequestFailedRunIsHandled(t *testing.T) {
	runner := &fakeRunner{
		result: service.RunResult{RunID: "r1", Status: core.RunFailed},
		err:    errors.New("run r1 failed: authorize: token expired"),
	}
	w := NewDigestWorker(runner, &fakeSnapshots{}, nil, testLogger())

	// Permanent failures are logged, not redelivered.
	if err := w.HandleRunRequest(context.Background(), &amqp.RunRequestMessage{UserID: "u1"}); err != nil {
		t.Fatalf("expected failed run to be swallowed, got %v", err)
	}
}

func TestHandleRunRequestProviderOutageRequeued(t *testing.T) {
	runner := &fakeRunner{
		result: service.RunResult{RunID: "r1", Status: core.RunFailed},
		err:    fmt.Errorf("fetch: %w", core.ErrProviderUnavailable),
	}
	w := NewDigestWorker(runner, &fakeSnapshots{}, nil, testLogger())

	err := w.HandleRunRequest(context.Background(), &amqp.RunRequestMessage{UserID: "u1"})
	if !errors.Is(err, core.ErrProviderUnavailable) {
		t.Fatalf("expected provider outage to surface for redelivery, got %v", err)
	}
}
