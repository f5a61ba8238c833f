package service

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/lexiguard/lexiguard/internal/ingest"
	"github.com/lexiguard/lexiguard/internal/retrieval"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	retrieval.Unavailable
	mu       sync.Mutex
	upserted []string
}

func (s *recordingStore) Upsert(_ context.Context, source string, _ []retrieval.Passage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserted = append(s.upserted, source)
	return nil
}

func (s *recordingStore) DeleteSource(context.Context, string) error { return nil }
func (s *recordingStore) Count(context.Context) (int, error)        { return len(s.upserted), nil }
func (s *recordingStore) Close() error                              { return nil }

func (s *recordingStore) sources() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.upserted...)
	sort.Strings(out)
	return out
}

type constEmbedder struct{}

func (constEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func writeWithModTime(t *testing.T, path string, modTime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("Section text for "+filepath.Base(path)), 0o644))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
}

func newTestReindexer(t *testing.T, cronExpr string) (*Reindexer, *recordingStore, string) {
	t.Helper()
	dir := t.TempDir()
	store := &recordingStore{}
	pipeline, err := ingest.NewPipeline(store, constEmbedder{}, dir)
	require.NoError(t, err)
	return NewReindexer(pipeline, cron.New(), cronExpr), store, dir
}

func TestReindexer_RunPicksChangedFiles(t *testing.T) {
	r, store, dir := newTestReindexer(t, "0 0 * * *")
	now := time.Now()

	writeWithModTime(t, filepath.Join(dir, "old.txt"), now.Add(-30*24*time.Hour))
	writeWithModTime(t, filepath.Join(dir, "recent.txt"), now.Add(-time.Hour))

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Files)
	assert.Equal(t, []string{"recent.txt"}, store.sources())

	report, err = r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Files, "nothing changed since the last run")

	writeWithModTime(t, filepath.Join(dir, "amended.md"), time.Now().Add(time.Minute))
	report, err = r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Files)
	assert.Equal(t, []string{"amended.md", "recent.txt"}, store.sources())
}

func TestReindexer_StartTime(t *testing.T) {
	ref := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

	r, _, _ := newTestReindexer(t, "0 2 * * 1")
	r.now = func() time.Time { return ref }
	got, err := r.startTime()
	require.NoError(t, err)
	assert.Equal(t, ref.Add(-7*24*time.Hour), got, "a trigger within the last day looks back a week")

	r, _, _ = newTestReindexer(t, "0 2 * * 5")
	r.now = func() time.Time { return ref }
	got, err = r.startTime()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 7, 2, 0, 0, 0, time.UTC), got)

	r.lastTriggerTime = ref.Add(-time.Hour)
	got, err = r.startTime()
	require.NoError(t, err)
	assert.Equal(t, ref.Add(-time.Hour), got)
}

func TestReindexer_Schedule(t *testing.T) {
	r, _, _ := newTestReindexer(t, "@every 1h")
	require.NoError(t, r.Schedule(context.Background()))
	assert.Len(t, r.cron.Entries(), 1)

	r, _, _ = newTestReindexer(t, "not a schedule")
	assert.Error(t, r.Schedule(context.Background()))

	err := NewReindexer(nil, cron.New(), "@daily").Schedule(context.Background())
	assert.True(t, IsErrorType(err, ErrIndex))
}

func TestReindexer_JobSurvivesPanics(t *testing.T) {
	r, store, dir := newTestReindexer(t, "@daily")
	writeWithModTime(t, filepath.Join(dir, "act.txt"), time.Now())

	r.now = func() time.Time { panic("clock unavailable") }
	assert.NotPanics(t, r.job(context.Background()))
	assert.Empty(t, store.sources())

	r.now = time.Now
	r.job(context.Background())()
	assert.Equal(t, []string{"act.txt"}, store.sources())
}
