// Package ingestion persists one scan batch: a local CSV backup, then an
// optional upsert into remote storage.
package ingestion

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Muchai10/safeguardcrawler/internal/metrics"
	"github.com/Muchai10/safeguardcrawler/internal/storage/models"
	"github.com/Muchai10/safeguardcrawler/pkg/logger"
)

type Upserter interface {
	UpsertThreats(ctx context.Context, records []models.ThreatRecord) (int, error)
}

type Notifier interface {
	Publish(records []models.ThreatRecord)
}

type PersistResult struct {
	Records    int
	Uploaded   int
	BackupPath string
	// Degraded means no remote store is configured; only the backup was written.
	Degraded  bool
	UploadErr error
}

type Sink struct {
	store      Upserter
	notifier   Notifier
	backupPath string
}

// NewSink accepts a nil store (backup-only) and a nil notifier.
func NewSink(store Upserter, notifier Notifier, backupPath string) *Sink {
	if backupPath == "" {
		backupPath = "twitter_threats.csv"
	}
	return &Sink{
		store:      store,
		notifier:   notifier,
		backupPath: backupPath,
	}
}

// Persist returns an error only when the local backup could not be written.
// Upload failures are reported through PersistResult.UploadErr.
func (s *Sink) Persist(ctx context.Context, batch []models.ThreatRecord) (*PersistResult, error) {
	res := &PersistResult{Records: len(batch), Degraded: s.store == nil}
	if len(batch) == 0 {
		return res, nil
	}

	var backupErr error
	if err := writeBackup(s.backupPath, batch); err != nil {
		backupErr = fmt.Errorf("backup %s: %w", s.backupPath, err)
		logger.Error("Failed to write local backup", zap.String("path", s.backupPath), zap.Error(err))
	} else {
		res.BackupPath = s.backupPath
		metrics.BackupRows.Set(float64(len(batch)))
		logger.Info("Local backup written", zap.String("path", s.backupPath), zap.Int("rows", len(batch)))
	}

	if s.store == nil {
		logger.Warn("Remote storage not configured, kept local backup only", zap.Int("records", len(batch)))
		metrics.Uploads.WithLabelValues("skipped").Inc()
	} else {
		n, err := s.store.UpsertThreats(ctx, batch)
		if err != nil {
			res.UploadErr = err
			metrics.Uploads.WithLabelValues("error").Inc()
			logger.Error("Upload failed, local backup retained",
				zap.Int("records", len(batch)),
				zap.Error(err),
			)
		} else {
			res.Uploaded = n
			metrics.Uploads.WithLabelValues("ok").Inc()
			logger.Info("Threats uploaded", zap.Int("records", n))
		}
	}

	if s.notifier != nil {
		s.notifier.Publish(batch)
	}

	return res, backupErr
}
