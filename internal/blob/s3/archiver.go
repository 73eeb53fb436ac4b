package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/alanyoungcy/btcsniper/internal/domain"
)

// DefaultArchiveInterval is used when no interval is configured.
const DefaultArchiveInterval = time.Hour

const auditArchiveUploaded = "archive.uploaded"

// ArchiverConfig configures an Archiver. Journal and Audit are optional.
type ArchiverConfig struct {
	SuggestionLog string
	Interval      time.Duration
	Journal       domain.DecisionJournal
	Audit         domain.AuditStore
}

// Archiver periodically copies the suggestion log and the decisions made
// since its previous run to object storage.
type Archiver struct {
	writer  domain.BlobWriter
	cfg     ArchiverConfig
	logger  *slog.Logger
	now     func() time.Time
	lastRun time.Time
	started time.Time
}

// NewArchiver creates an Archiver uploading through writer.
func NewArchiver(writer domain.BlobWriter, cfg ArchiverConfig, logger *slog.Logger) *Archiver {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultArchiveInterval
	}
	return &Archiver{
		writer: writer,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Run archives once per interval until ctx is cancelled. A failed pass is
// logged and retried on the next tick.
func (a *Archiver) Run(ctx context.Context) error {
	a.started = a.now()
	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := a.ArchiveOnce(ctx); err != nil {
				a.logger.WarnContext(ctx, "archive pass failed", slog.String("error", err.Error()))
			}
		}
	}
}

// ArchiveOnce uploads the current suggestion log plus the decisions and audit
// entries recorded since the last successful pass. It returns the object keys
// written.
func (a *Archiver) ArchiveOnce(ctx context.Context) ([]string, error) {
	at := a.now().UTC()
	var written []string

	if a.cfg.SuggestionLog != "" {
		data, err := os.ReadFile(a.cfg.SuggestionLog)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return written, fmt.Errorf("s3blob: read suggestion log: %w", err)
		case len(data) > 0:
			path := archivePath("suggestions", at, "log")
			if err := a.writer.Put(ctx, path, bytes.NewReader(data), "text/plain; charset=utf-8"); err != nil {
				return written, fmt.Errorf("s3blob: archive suggestions: %w", err)
			}
			written = append(written, path)
		}
	}

	var since *time.Time
	if t := a.since(); !t.IsZero() {
		since = &t
	}

	if a.cfg.Journal != nil {
		recs, err := a.cfg.Journal.List(ctx, domain.ListOpts{Since: since})
		if err != nil {
			return written, fmt.Errorf("s3blob: archive decisions query: %w", err)
		}
		path, err := putJSONL(ctx, a.writer, "decisions", at, recs)
		if err != nil {
			return written, err
		}
		if path != "" {
			written = append(written, path)
		}
	}

	if a.cfg.Audit != nil {
		entries, err := a.cfg.Audit.List(ctx, domain.ListOpts{Since: since})
		if err != nil {
			return written, fmt.Errorf("s3blob: archive audit query: %w", err)
		}
		path, err := putJSONL(ctx, a.writer, "audit", at, withoutArchiveEvents(entries))
		if err != nil {
			return written, err
		}
		if path != "" {
			written = append(written, path)
		}
	}

	a.lastRun = at
	if len(written) == 0 {
		return written, nil
	}

	a.logger.InfoContext(ctx, "archived to object storage", slog.Any("paths", written))
	if a.cfg.Audit != nil {
		if err := a.cfg.Audit.Log(ctx, auditArchiveUploaded, map[string]any{
			"paths": written,
			"at":    at.Format(time.RFC3339),
		}); err != nil {
			return written, fmt.Errorf("s3blob: archive audit log: %w", err)
		}
	}
	return written, nil
}

func (a *Archiver) since() time.Time {
	if !a.lastRun.IsZero() {
		return a.lastRun
	}
	return a.started
}

// archivePath partitions keys by UTC day.
//
//	suggestions/2025/01/31/suggestions-1738281600.log
func archivePath(kind string, at time.Time, ext string) string {
	return fmt.Sprintf("%s/%s/%s-%d.%s", kind, at.Format("2006/01/02"), kind, at.Unix(), ext)
}

// putJSONL uploads records as one JSONL object. Nothing is written for an
// empty slice and the returned path is empty.
func putJSONL[T any](ctx context.Context, w domain.BlobWriter, kind string, at time.Time, records []T) (string, error) {
	if len(records) == 0 {
		return "", nil
	}
	buf, err := marshalJSONL(records)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive %s marshal: %w", kind, err)
	}
	path := archivePath(kind, at, "jsonl")
	if err := w.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return "", fmt.Errorf("s3blob: archive %s: %w", kind, err)
	}
	return path, nil
}

// withoutArchiveEvents drops the archiver's own upload records so an idle
// pass never uploads just the trace of the previous one.
func withoutArchiveEvents(entries []domain.AuditEntry) []domain.AuditEntry {
	out := entries[:0:0]
	for _, e := range entries {
		if e.Event != auditArchiveUploaded {
			out = append(out, e)
		}
	}
	return out
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
