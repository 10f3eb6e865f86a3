package ingestion

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Muchai10/safeguardcrawler/internal/storage/models"
)

// writeBackup replaces path with a CSV of records. Readers never see a
// half-written file: rows go to a temp file in the same directory first.
func writeBackup(path string, records []models.ThreatRecord) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create backup dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp backup: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := csv.NewWriter(tmp)
	if err := w.Write(models.Columns()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range records {
		if err := w.Write(r.Row()); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write row %s: %w", r.PostURL, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush backup: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp backup: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace backup: %w", err)
	}
	return nil
}
