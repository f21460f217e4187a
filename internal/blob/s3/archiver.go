package s3blob

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/quantfold/updownbot/internal/domain"
)

// Archiver writes finished run records to object storage as JSON documents.
// It implements domain.ReportArchiver.
type Archiver struct {
	writer domain.BlobWriter
	prefix string
	logger *slog.Logger
}

// NewArchiver creates an Archiver that stores run reports under the given
// key prefix ("runs" if empty).
func NewArchiver(w domain.BlobWriter, prefix string, logger *slog.Logger) *Archiver {
	if prefix == "" {
		prefix = "runs"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		writer: w,
		prefix: prefix,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveRun uploads the run record as a JSON object keyed by creation date
// and run ID, e.g. "runs/2026-08-29/<run-id>.json". It returns the object
// key on success.
func (a *Archiver) ArchiveRun(ctx context.Context, run domain.RunRecord) (string, error) {
	payload, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return "", fmt.Errorf("s3blob: marshal run %s: %w", run.ID, err)
	}

	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	key := fmt.Sprintf("%s/%s/%s.json", a.prefix, createdAt.UTC().Format("2006-01-02"), run.ID)

	if err := a.writer.PutReport(ctx, key, payload); err != nil {
		return "", fmt.Errorf("s3blob: archive run %s: %w", run.ID, err)
	}

	a.logger.Info("archived run report",
		slog.String("run_id", run.ID),
		slog.String("key", key),
		slog.Int("bytes", len(payload)))
	return key, nil
}
