// Package retention implements the prediction history retention job: it pages
// through records older than the retention cutoff, appends them to a
// gzip-compressed JSON-lines archive, and deletes each page only after it has
// been flushed to the archive.
package retention

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"

	"rainbowcast/internal/types"
)

const defaultBatchSize = 500

// HistoryPruner is the persistence surface the archiver needs. Implemented by
// db.PredictionRepository.
type HistoryPruner interface {
	ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*types.PredictionRecord, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
}

// Report summarizes one retention run.
type Report struct {
	Cutoff      time.Time
	Archived    int
	Deleted     int64
	ArchivePath string
}

// Archiver pages old prediction records into compressed archives.
type Archiver struct {
	store     HistoryPruner
	dir       string
	batchSize int
	logger    *slog.Logger
	clock     types.Clock
}

// NewArchiver creates a retention archiver writing archives into dir.
func NewArchiver(store HistoryPruner, dir string, batchSize int, logger *slog.Logger, clock types.Clock) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Archiver{
		store:     store,
		dir:       dir,
		batchSize: batchSize,
		logger:    logger,
		clock:     clock,
	}
}

// Run archives and deletes every record older than retention. Each page is
// flushed to the archive before its rows are deleted; a failure mid-run
// leaves already-archived pages deleted and the remainder untouched, so the
// job is safe to re-run.
func (a *Archiver) Run(ctx context.Context, retention time.Duration) (*Report, error) {
	now := a.clock.Now()
	cutoff := now.Add(-retention)
	report := &Report{Cutoff: cutoff}

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return report, fmt.Errorf("creating archive directory: %w", err)
	}

	path := filepath.Join(a.dir, fmt.Sprintf("predictions-%s.jsonl.gz", now.Format("20060102T150405Z")))

	f, err := os.Create(path)
	if err != nil {
		return report, fmt.Errorf("creating archive file: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	report.ArchivePath = path

	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		records, err := a.store.ListOlderThan(ctx, cutoff, a.batchSize)
		if err != nil {
			return report, fmt.Errorf("listing expired records: %w", err)
		}
		if len(records) == 0 {
			break
		}

		ids := make([]string, 0, len(records))
		for _, rec := range records {
			if err := writeRecord(gz, rec); err != nil {
				return report, fmt.Errorf("writing archive record: %w", err)
			}
			ids = append(ids, rec.ID)
		}

		// Flush before deleting so an interrupted run never loses rows.
		if err := gz.Flush(); err != nil {
			return report, fmt.Errorf("flushing archive: %w", err)
		}

		deleted, err := a.store.DeleteByIDs(ctx, ids)
		if err != nil {
			return report, fmt.Errorf("deleting archived records: %w", err)
		}

		report.Archived += len(records)
		report.Deleted += deleted

		a.logger.Info("retention page archived",
			"records", len(records),
			"deleted", deleted,
			"total_archived", report.Archived,
		)

		if len(records) < a.batchSize {
			break
		}
	}

	if err := gz.Close(); err != nil {
		return report, fmt.Errorf("closing archive: %w", err)
	}
	if err := f.Sync(); err != nil {
		return report, fmt.Errorf("syncing archive file: %w", err)
	}

	// An empty run leaves no archive behind.
	if report.Archived == 0 {
		if err := os.Remove(path); err != nil {
			a.logger.Warn("removing empty archive failed", "path", path, "error", err)
		}
		report.ArchivePath = ""
	}

	return report, nil
}

func writeRecord(w io.Writer, rec *types.PredictionRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	_, err = w.Write(line)
	return err
}
