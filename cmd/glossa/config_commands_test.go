package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigInitCreatesSample(t *testing.T) {
	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	target := filepath.Join(base, "config.toml")
	socket := filepath.Join(base, "unused.sock")

	stdout, _, err := runCLI(t, []string{"config", "init", "--path", target}, socket, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, stdout, "Wrote sample configuration")

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[translation]") {
		t.Fatalf("sample missing translation section: %s", data)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, socket, ""); err == nil {
		t.Fatal("expected error when config already exists")
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, socket, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigValidateAcceptsSample(t *testing.T) {
	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	target := filepath.Join(base, "config.toml")
	socket := filepath.Join(base, "unused.sock")

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, socket, ""); err != nil {
		t.Fatalf("config init: %v", err)
	}

	stdout, _, err := runCLI(t, []string{"config", "validate"}, socket, target)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, stdout, "Configuration valid")
	requireContains(t, stdout, target)
}

func TestConfigValidateReportsMissingFile(t *testing.T) {
	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	socket := filepath.Join(base, "unused.sock")

	stdout, _, err := runCLI(t, []string{"config", "validate"}, socket, "")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, stdout, "defaults were used")
}

func TestConfigShowRedactsAPIKey(t *testing.T) {
	base := t.TempDir()
	cfg := testConfigForDir(base)
	cfg.Translation.APIKey = "super-secret-key"
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	stdout, _, err := runCLI(t, []string{"config", "show"}, filepath.Join(base, "unused.sock"), configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, stdout, "state_dir")
	requireContains(t, stdout, "<redacted>")
	if strings.Contains(stdout, "super-secret-key") {
		t.Fatal("api key leaked into config show output")
	}
}
