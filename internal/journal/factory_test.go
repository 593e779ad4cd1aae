package journal

import (
	"os"
	"path/filepath"
	"testing"

	"eventphoto/internal/config"
)

func TestNewJournalFromConfig(t *testing.T) {
	t.Run("memory journal is ready", func(t *testing.T) {
		j, err := NewJournalFromConfig(config.JournalConfig{Type: "memory"}, nil)
		if err != nil {
			t.Fatalf("NewJournalFromConfig() error = %v", err)
		}
		defer j.Close()
		if err := j.CheckMigrations(); err != nil {
			t.Errorf("CheckMigrations() error = %v", err)
		}
	})

	t.Run("sqlite journal", func(t *testing.T) {
		j, err := NewJournalFromConfig(config.JournalConfig{Type: "sqlite", DataDir: t.TempDir()}, nil)
		if err != nil {
			t.Fatalf("NewJournalFromConfig() error = %v", err)
		}
		if j == nil {
			t.Fatal("NewJournalFromConfig() returned nil")
		}
		j.Close()
	})

	t.Run("sqlite journal creates data_dir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "journal")
		j, err := NewJournalFromConfig(config.JournalConfig{Type: "sqlite", DataDir: dir}, nil)
		if err != nil {
			t.Fatalf("NewJournalFromConfig() error = %v", err)
		}
		defer j.Close()
		if err := j.MigrateUp(); err != nil {
			t.Fatalf("MigrateUp() error = %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, FileName)); err != nil {
			t.Errorf("journal file not created: %v", err)
		}
	})

	t.Run("sqlite journal without data_dir", func(t *testing.T) {
		if _, err := NewJournalFromConfig(config.JournalConfig{Type: "sqlite"}, nil); err == nil {
			t.Error("NewJournalFromConfig() expected error")
		}
	})

	t.Run("none", func(t *testing.T) {
		j, err := NewJournalFromConfig(config.JournalConfig{Type: "none"}, nil)
		if err != nil || j != nil {
			t.Errorf("NewJournalFromConfig(none) = %v, %v, want nil, nil", j, err)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		if _, err := NewJournalFromConfig(config.JournalConfig{Type: "postgres"}, nil); err == nil {
			t.Error("NewJournalFromConfig() expected error")
		}
	})
}
