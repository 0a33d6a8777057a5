package backend

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"famledger/internal/config"
	"famledger/internal/core"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:        "sqlite",
		SQLiteDBPath:       "/tmp/x.db",
		EnforceOwnership:   true,
		SnapshotFamilyName: true,
		AttachmentsDriver:  "memory",
	})
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if cfg.Type != SQLiteBackend || cfg.SQLiteDBPath != "/tmp/x.db" || !cfg.EnforceOwnership || !cfg.SnapshotFamilyName {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{"memory", Config{Type: MemoryBackend}, ""},
		{"unknown type", Config{Type: "sheets"}, "invalid backend type"},
		{"sqlite without path", Config{Type: SQLiteBackend}, "SQLite database path is required"},
		{"postgres without dsn", Config{Type: PostgresBackend}, "Postgres DSN is required"},
		{"s3 without bucket", Config{Type: MemoryBackend, AttachmentsDriver: "s3"}, "S3 bucket is required"},
		{"unknown attachments", Config{Type: MemoryBackend, AttachmentsDriver: "ftp"}, "invalid attachments driver"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend, EnforceOwnership: true, SnapshotFamilyName: true})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Cleanup()

	ctx := core.WithPrincipal(context.Background(), "alice")
	fam, err := res.Registry.AddFamily(ctx, core.FamilyPayload{Name: "Smith"})
	if err != nil {
		t.Fatalf("AddFamily: %v", err)
	}
	exp, err := res.Ledger.AddFamilyExpense(ctx, core.FamilyExpensePayload{FamilyID: fam.ID, Amount: "1"})
	if err != nil {
		t.Fatalf("AddFamilyExpense: %v", err)
	}
	if exp.FamilyName != "Smith" {
		t.Fatalf("snapshot option not applied: %+v", exp)
	}
	if _, err := res.Registry.DeleteFamily(core.WithPrincipal(context.Background(), "bob"), fam.ID); !errors.Is(err, core.ErrPermissionDenied) {
		t.Fatalf("ownership option not applied: %v", err)
	}
	if err := res.Ready(context.Background()); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	if res.Attachments == nil || res.Metrics == nil {
		t.Fatal("attachments and metrics must be wired")
	}
}

func TestCreateSQLiteBackendPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	cfg := Config{Type: SQLiteBackend, SQLiteDBPath: path, EnforceOwnership: true, SnapshotFamilyName: true}

	res, err := NewFactory(nil).CreateBackend(context.Background(), cfg)
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	fam, err := res.Registry.AddFamily(context.Background(), core.FamilyPayload{Name: "Smith"})
	if err != nil {
		t.Fatalf("AddFamily: %v", err)
	}
	if err := res.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	res, err = NewFactory(nil).CreateBackend(context.Background(), cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer res.Cleanup()
	got, err := res.Registry.GetFamily(context.Background(), fam.ID)
	if err != nil || got.Name != "Smith" {
		t.Fatalf("family not persisted: %+v %v", got, err)
	}
}
