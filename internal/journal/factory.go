package journal

import (
	"fmt"
	"os"
	"path/filepath"

	"eventphoto/internal/config"
	"eventphoto/internal/photo"
)

// FileName is the journal database name inside the configured data dir.
const FileName = "journal.db"

// NewJournalFromConfig creates the journal selected by cfg.Type. The "none"
// type returns a nil journal: runs work without history. A memory journal
// is migrated immediately since it starts empty on every open.
func NewJournalFromConfig(cfg config.JournalConfig, clock photo.Clock) (photo.Journal, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite journal")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
		j, err := NewSQLiteJournal(filepath.Join(cfg.DataDir, FileName), clock)
		if err != nil {
			return nil, err
		}
		return j, nil
	case "memory":
		j, err := NewSQLiteJournal(":memory:", clock)
		if err != nil {
			return nil, err
		}
		if err := j.MigrateUp(); err != nil {
			j.Close()
			return nil, err
		}
		return j, nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown journal type: %s", cfg.Type)
	}
}
