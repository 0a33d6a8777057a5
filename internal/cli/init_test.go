package cli

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("FAMLEDGER_TEST_VALUE=from-dotenv\n"), 0644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(wd)
		_ = os.Unsetenv("FAMLEDGER_TEST_VALUE")
	})

	LoadEnvFile()
	if got := os.Getenv("FAMLEDGER_TEST_VALUE"); got != "from-dotenv" {
		t.Fatalf("env not loaded: %q", got)
	}
}

func TestSetupLogger(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger := SetupLogger("worker")
	if logger.Component() != "worker" {
		t.Fatalf("component=%q", logger.Component())
	}
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug level not applied to default logger")
	}
}
