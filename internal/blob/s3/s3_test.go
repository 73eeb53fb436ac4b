package s3blob

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/btcsniper/internal/domain"
)

type putCall struct {
	path        string
	body        string
	contentType string
}

type memWriter struct {
	puts []putCall
	err  error
}

func (m *memWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	if m.err != nil {
		return m.err
	}
	b, _ := io.ReadAll(data)
	m.puts = append(m.puts, putCall{path: path, body: string(b), contentType: contentType})
	return nil
}

type memJournal struct {
	recs  []domain.DecisionRecord
	since []*time.Time
}

func (j *memJournal) Record(_ context.Context, rec domain.DecisionRecord) error {
	j.recs = append(j.recs, rec)
	return nil
}

func (j *memJournal) List(_ context.Context, opts domain.ListOpts) ([]domain.DecisionRecord, error) {
	j.since = append(j.since, opts.Since)
	var out []domain.DecisionRecord
	for _, r := range j.recs {
		if opts.Since == nil || !r.CreatedAt.Before(*opts.Since) {
			out = append(out, r)
		}
	}
	return out, nil
}

type memAudit struct {
	events  []string
	entries []domain.AuditEntry
	at      time.Time
}

func (m *memAudit) Log(_ context.Context, event string, detail map[string]any) error {
	m.events = append(m.events, event)
	m.entries = append(m.entries, domain.AuditEntry{
		ID: int64(len(m.entries) + 1), Event: event, Detail: detail, CreatedAt: m.at,
	})
	return nil
}

func (m *memAudit) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	for _, e := range m.entries {
		if opts.Since == nil || !e.CreatedAt.Before(*opts.Since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestArchivePath(t *testing.T) {
	at := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "suggestions/2025/01/31/suggestions-1738281600.log", archivePath("suggestions", at, "log"))
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://e2.example.com", normaliseEndpoint("https://e2.example.com/", false))
	assert.Equal(t, "https://minio:9000", normaliseEndpoint("minio:9000", true))
	assert.Equal(t, "http://minio:9000", normaliseEndpoint(" minio:9000 ", false))
	assert.Empty(t, normaliseEndpoint("", true))
}

func TestNewValidatesArchiveConfig(t *testing.T) {
	ctx := context.Background()
	_, err := New(ctx, ClientConfig{})
	assert.ErrorContains(t, err, "bucket")

	_, err = New(ctx, ClientConfig{Bucket: "b", AccessKey: "AKIA"})
	assert.ErrorContains(t, err, "together")

	c, err := New(ctx, ClientConfig{Bucket: "b", Endpoint: "minio:9000", AccessKey: "a", SecretKey: "s", ForcePathStyle: true})
	require.NoError(t, err)
	assert.Equal(t, "b", c.bucket)
	assert.NoError(t, c.Close())
}

func TestClientKeyPrefix(t *testing.T) {
	plain := &Client{}
	assert.Equal(t, "suggestions/x.log", plain.key("/suggestions/x.log"))

	c, err := New(context.Background(), ClientConfig{Bucket: "b", Prefix: "/prod/sniper/", AccessKey: "a", SecretKey: "s"})
	require.NoError(t, err)
	assert.Equal(t, "prod/sniper/decisions/2025/01/31/d.jsonl", c.key("decisions/2025/01/31/d.jsonl"))
}

func TestArchiveOnceSuggestionsAndDecisions(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "suggestions.log")
	require.NoError(t, os.WriteFile(logPath, []byte("[2025-01-31 00:00:00] SIGNAL DETECTED\n"), 0o644))

	at := time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)
	journal := &memJournal{recs: []domain.DecisionRecord{
		{ID: "d1", Action: domain.ActionBuyUp, Confidence: 0.9, CreatedAt: at.Add(-time.Minute)},
	}}
	audit := &memAudit{at: at}
	w := &memWriter{}

	a := NewArchiver(w, ArchiverConfig{SuggestionLog: logPath, Journal: journal, Audit: audit}, discardLogger())
	a.now = func() time.Time { return at }

	paths, err := a.ArchiveOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, paths, 2)
	require.Len(t, w.puts, 2)

	assert.Equal(t, "suggestions/2025/01/31/suggestions-1738324800.log", w.puts[0].path)
	assert.Contains(t, w.puts[0].body, "SIGNAL DETECTED")
	assert.Equal(t, "decisions/2025/01/31/decisions-1738324800.jsonl", w.puts[1].path)
	assert.Equal(t, "application/x-ndjson", w.puts[1].contentType)
	assert.True(t, strings.HasSuffix(w.puts[1].body, "\n"))
	assert.Contains(t, w.puts[1].body, `"id":"d1"`)
	assert.Equal(t, []string{"archive.uploaded"}, audit.events)

	// The second pass only asks for decisions newer than the first.
	_, err = a.ArchiveOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, journal.since, 2)
	assert.Nil(t, journal.since[0])
	require.NotNil(t, journal.since[1])
	assert.Equal(t, at, *journal.since[1])
	assert.Len(t, w.puts, 3, "second pass re-uploads the log but not its own audit trace")
}

func TestArchiveOnceExportsAuditEntries(t *testing.T) {
	start := time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)
	audit := &memAudit{at: start.Add(-time.Hour)}
	require.NoError(t, audit.Log(context.Background(), "sniper_started", map[string]any{"mode": "dry_run"}))
	audit.at = start.Add(time.Minute)
	require.NoError(t, audit.Log(context.Background(), "sniper_stopped", nil))

	w := &memWriter{}
	a := NewArchiver(w, ArchiverConfig{Audit: audit}, discardLogger())
	a.started = start
	a.now = func() time.Time { return start.Add(time.Hour) }

	paths, err := a.ArchiveOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"audit/2025/01/31/audit-1738328400.jsonl"}, paths)
	require.Len(t, w.puts, 1)
	assert.Contains(t, w.puts[0].body, `"event":"sniper_stopped"`)
	assert.NotContains(t, w.puts[0].body, "sniper_started", "entries before the archiver started are not exported")
	assert.Equal(t, []string{"sniper_started", "sniper_stopped", "archive.uploaded"}, audit.events)
}

func TestArchiveOnceNothingToDo(t *testing.T) {
	w := &memWriter{}
	a := NewArchiver(w, ArchiverConfig{SuggestionLog: filepath.Join(t.TempDir(), "missing.log")}, discardLogger())

	paths, err := a.ArchiveOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, paths)
	assert.Empty(t, w.puts)
	assert.Equal(t, DefaultArchiveInterval, a.cfg.Interval)
}

func TestArchiveOnceUploadError(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "suggestions.log")
	require.NoError(t, os.WriteFile(logPath, []byte("x\n"), 0o644))

	a := NewArchiver(&memWriter{err: errors.New("access denied")}, ArchiverConfig{SuggestionLog: logPath}, discardLogger())
	_, err := a.ArchiveOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestArchiverRunStopsOnCancel(t *testing.T) {
	a := NewArchiver(&memWriter{}, ArchiverConfig{Interval: time.Millisecond}, discardLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.NoError(t, a.Run(ctx))
}
