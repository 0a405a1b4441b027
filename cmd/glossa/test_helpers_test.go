package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"glossa/internal/config"
	"glossa/internal/daemon"
	"glossa/internal/ipc"
	"glossa/internal/ledger"
	"glossa/internal/logging"
	"glossa/internal/pipeline"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *ledger.Store
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
	baseDir    string
	cancel     context.CancelFunc
}

// testConfigForDir builds a config rooted under base with enough set for
// jobs to validate.
func testConfigForDir(base string) *config.Config {
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Translation.APIKey = "test-key"
	cfg.Translation.TargetLanguage = "fr"
	return &cfg
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	cfg := testConfigForDir(base)

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}

	logger := logging.NewNop()
	orch := pipeline.New(cfg, store, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	orch.Start(ctx)

	d, err := daemon.New(cfg, store, orch, nil, logger, "test")
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	socketPath := filepath.Join(cfg.Paths.StateDir, "cli.sock")
	srv, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("unix sockets unavailable in this environment: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	env := &cliTestEnv{
		cfg:        cfg,
		store:      store,
		daemon:     d,
		server:     srv,
		socketPath: socketPath,
		configPath: configPath,
		baseDir:    base,
		cancel:     cancel,
	}

	t.Cleanup(func() {
		cancel()
		srv.Close()
		store.Close()
	})

	return env
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
state_dir = %q
log_dir = %q
work_dir = %q

[translation]
api_key = %q
target_language = %q
`,
		cfg.Paths.StateDir,
		cfg.Paths.LogDir,
		cfg.Paths.WorkDir,
		cfg.Translation.APIKey,
		cfg.Translation.TargetLanguage,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func seedJob(t *testing.T, store *ledger.Store, id, title string, state ledger.State, created time.Time) *ledger.Job {
	t.Helper()
	job := &ledger.Job{
		ID:             id,
		SourcePath:     "/videos/" + id + ".mkv",
		Title:          title,
		TargetLanguage: "fr",
		Model:          "base",
		Engine:         "openai",
		OutputMode:     "sidecar",
		SubtitleFormat: "srt",
		State:          state,
		CreatedAt:      created,
		UpdatedAt:      created,
	}
	if err := store.Save(context.Background(), job); err != nil {
		t.Fatalf("seed job %s: %v", id, err)
	}
	return job
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
