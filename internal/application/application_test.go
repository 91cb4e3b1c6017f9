package application

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/CRM/internal/config"
	"github.com/JonMunkholm/CRM/internal/core"
)

func testConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(func(k string) string { return env[k] })
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestNew_InProcessDefaults(t *testing.T) {
	app, err := New(context.Background(), testConfig(t, nil))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	if app.Queue != nil {
		t.Error("queue should be disabled by default")
	}
	if app.Registry.Len() != 4 {
		t.Errorf("registered %d entities", app.Registry.Len())
	}

	list, err := app.Service.ListRecords(context.Background(), "customers")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) == 0 {
		t.Error("memory store should be seeded")
	}

	sum, err := app.Service.Import(context.Background(), "leads", core.TextSource("name,email\nA,a@x.com\n"), "")
	if err != nil {
		t.Fatal(err)
	}
	hist, err := app.Service.History(context.Background(), "leads", 0)
	if err != nil || len(hist) != 1 || hist[0].ImportID != sum.ImportID {
		t.Errorf("History() = %v, %v", hist, err)
	}
}

func TestNew_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crm.db")
	app, err := New(context.Background(), testConfig(t, map[string]string{
		"DB_DRIVER":    "sqlite",
		"DATABASE_URL": path,
	}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := app.Service.Import(context.Background(), "customers", core.TextSource("name,email\nA,a@x.com\n"), "csv"); err != nil {
		t.Fatal(err)
	}
	if err := app.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := app.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestNew_BadSchemaFile(t *testing.T) {
	_, err := New(context.Background(), testConfig(t, map[string]string{
		"IMPORT_SCHEMA_FILE": filepath.Join(t.TempDir(), "missing.toml"),
	}))
	if err == nil || !strings.Contains(err.Error(), "load entity schemas") {
		t.Errorf("New() error = %v", err)
	}
}
