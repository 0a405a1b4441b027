package ipc_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"glossa/internal/ipc"
	"glossa/internal/ledger"
	"glossa/internal/logging"
	"glossa/internal/pipeline"
	"glossa/internal/services"
)

type stubBackend struct {
	busy      bool
	jobs      map[string]*ledger.Job
	active    *ledger.Job
	cancelled []string
	shutdowns atomic.Int32
}

func newStubBackend() *stubBackend {
	return &stubBackend{jobs: make(map[string]*ledger.Job)}
}

func (b *stubBackend) Submit(_ context.Context, req pipeline.Request) (*ledger.Job, error) {
	if b.busy {
		return nil, services.Wrap(services.ErrBusy, "pipeline", "submit", "job active-1 is still running", nil)
	}
	job := &ledger.Job{
		ID:             "job-1",
		SourcePath:     req.SourcePath,
		Title:          "Test Movie",
		TargetLanguage: req.TargetLanguage,
		Model:          "base",
		Engine:         "openai",
		OutputMode:     "sidecar",
		SubtitleFormat: "srt",
		State:          ledger.StatePending,
	}
	b.jobs[job.ID] = job
	return job, nil
}

func (b *stubBackend) Cancel(_ context.Context, id string) error {
	if _, ok := b.jobs[id]; !ok {
		return services.Wrap(services.ErrNotFound, "ledger", "get job", fmt.Sprintf("job %s not found", id), nil)
	}
	b.cancelled = append(b.cancelled, id)
	return nil
}

func (b *stubBackend) Job(_ context.Context, id string) (*ledger.Job, error) {
	job, ok := b.jobs[id]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "ledger", "get job", fmt.Sprintf("job %s not found", id), nil)
	}
	return job, nil
}

func (b *stubBackend) Active(context.Context) (*ledger.Job, error) {
	return b.active, nil
}

func (b *stubBackend) Recent(_ context.Context, limit int) ([]*ledger.Job, error) {
	out := make([]*ledger.Job, 0, len(b.jobs))
	for _, job := range b.jobs {
		out = append(out, job)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (b *stubBackend) Stats(context.Context) (map[ledger.State]int, error) {
	return map[ledger.State]int{ledger.StateCompleted: 2, ledger.StatePending: 1}, nil
}

func (b *stubBackend) LedgerHealth(context.Context) (ledger.Health, error) {
	return ledger.Health{Path: "/tmp/glossa.db", Readable: true, IntegrityOK: true, TotalJobs: 3}, nil
}

func (b *stubBackend) TestNotification(context.Context) error {
	return errors.New("no topic configured")
}

func (b *stubBackend) Info() ipc.DaemonInfo {
	return ipc.DaemonInfo{PID: os.Getpid(), Version: "test", SocketPath: "/tmp/glossa.sock"}
}

func (b *stubBackend) Shutdown() {
	b.shutdowns.Add(1)
}

func startServer(t *testing.T, backend ipc.Backend) string {
	t.Helper()
	socket := filepath.Join(t.TempDir(), "glossa.sock")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv, err := ipc.NewServer(ctx, socket, backend, logging.NewNop())
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("NewServer failed: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	time.Sleep(50 * time.Millisecond)
	return socket
}

func TestServerClientRoundTrip(t *testing.T) {
	backend := newStubBackend()
	socket := startServer(t, backend)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	submit, err := client.Submit(ipc.SubmitRequest{SourcePath: "/media/movie.mkv", TargetLanguage: "fr"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if submit.Busy {
		t.Fatalf("unexpected busy response: %s", submit.Message)
	}
	if submit.Job.ID != "job-1" || submit.Job.TargetLanguage != "fr" {
		t.Fatalf("unexpected job: %+v", submit.Job)
	}

	describe, err := client.Describe("job-1")
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if describe.Job.Title != "Test Movie" {
		t.Fatalf("unexpected title %q", describe.Job.Title)
	}

	if _, err := client.Describe("missing"); err == nil {
		t.Fatal("expected error for unknown job")
	}

	recent, err := client.Recent(10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent.Jobs) != 1 {
		t.Fatalf("expected one job, got %d", len(recent.Jobs))
	}

	cancelResp, err := client.Cancel("job-1")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if !cancelResp.Requested {
		t.Fatal("expected cancellation to be accepted")
	}
	if len(backend.cancelled) != 1 || backend.cancelled[0] != "job-1" {
		t.Fatalf("expected backend cancel call, got %v", backend.cancelled)
	}

	ping, err := client.Ping()
	if err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if ping.PID != os.Getpid() {
		t.Fatalf("expected pid %d, got %d", os.Getpid(), ping.PID)
	}
}

func TestServerReportsStatusAndHealth(t *testing.T) {
	backend := newStubBackend()
	now := time.Now().UTC()
	backend.active = &ledger.Job{
		ID:              "active-1",
		Title:           "Running Movie",
		TargetLanguage:  "de",
		State:           ledger.StateTranscribing,
		ProgressStage:   "transcribing",
		ProgressPercent: 42,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	socket := startServer(t, backend)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !status.Running {
		t.Fatal("expected running status")
	}
	if status.PID != os.Getpid() {
		t.Fatalf("expected pid %d, got %d", os.Getpid(), status.PID)
	}
	if status.Active == nil || status.Active.ID != "active-1" {
		t.Fatalf("expected active job, got %+v", status.Active)
	}
	if status.Active.ProgressPercent != 42 {
		t.Fatalf("expected progress 42, got %v", status.Active.ProgressPercent)
	}
	if status.Stats["completed"] != 2 || status.Stats["pending"] != 1 {
		t.Fatalf("unexpected stats %v", status.Stats)
	}

	health, err := client.Health()
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if !health.Readable || !health.IntegrityOK || health.TotalJobs != 3 {
		t.Fatalf("unexpected health %+v", health)
	}

	note, err := client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification failed: %v", err)
	}
	if note.Sent {
		t.Fatal("expected notification test to report failure")
	}
	if !strings.Contains(note.Message, "no topic") {
		t.Fatalf("unexpected message %q", note.Message)
	}
}

func TestServerRejectsSubmissionWhenBusy(t *testing.T) {
	backend := newStubBackend()
	backend.busy = true
	socket := startServer(t, backend)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	resp, err := client.Submit(ipc.SubmitRequest{SourcePath: "/media/movie.mkv", TargetLanguage: "fr"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !resp.Busy {
		t.Fatal("expected busy response")
	}
	if !strings.Contains(resp.Message, "still running") {
		t.Fatalf("expected busy message, got %q", resp.Message)
	}
}

func TestServerShutdownDelegates(t *testing.T) {
	backend := newStubBackend()
	socket := startServer(t, backend)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	resp, err := client.Shutdown()
	if err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if !resp.Stopping {
		t.Fatal("expected stopping acknowledgement")
	}
	if backend.shutdowns.Load() != 1 {
		t.Fatalf("expected one shutdown call, got %d", backend.shutdowns.Load())
	}
}
