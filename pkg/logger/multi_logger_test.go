package logger

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMultiLoggerWritesCategoryFiles(t *testing.T) {
	dir := t.TempDir()
	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "info", LogsDir: dir})
	require.NoError(t, err)

	ml.Resolve().Info("resolution succeeded", zap.String("provider", "sparky"))
	ml.Delivery().Info("strategy attempted", zap.String("strategy", "direct"))
	ml.Error().Info("ignored below error level")
	ml.LogAppError("boom", zap.String("component", "engine"))
	require.NoError(t, ml.Close())

	reader := NewLogReader(dir)

	resolveEntries, err := reader.ReadLogs(CategoryResolve, time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, resolveEntries, 1)
	assert.Equal(t, "resolution succeeded", resolveEntries[0].Message)
	assert.Equal(t, "info", resolveEntries[0].Level)
	assert.Equal(t, "resolve", resolveEntries[0].Category)
	assert.Equal(t, "sparky", resolveEntries[0].Fields["provider"])
	assert.NotEmpty(t, resolveEntries[0].Timestamp)

	errorEntries, err := reader.ReadLogs(CategoryError, time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, errorEntries, 1)
	assert.Equal(t, "boom", errorEntries[0].Message)
}

func TestMultiLoggerRotatesOnDateChange(t *testing.T) {
	dir := t.TempDir()
	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "info", LogsDir: dir})
	require.NoError(t, err)
	defer ml.Close()

	tomorrow := time.Now().Add(24 * time.Hour)
	ml.now = func() time.Time { return tomorrow }
	ml.Delivery().Info("next day")
	require.NoError(t, ml.Sync())

	reader := NewLogReader(dir)
	entries, err := reader.ReadLogs(CategoryDelivery, tomorrow, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "next day", entries[0].Message)
}

func TestNewMultiLoggerRequiresDir(t *testing.T) {
	_, err := NewMultiLogger(MultiLoggerConfig{})
	assert.Error(t, err)
}

func TestLoggerAdapterTeesIntoCategoryFile(t *testing.T) {
	dir := t.TempDir()
	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "debug", LogsDir: dir})
	require.NoError(t, err)

	adapter := NewLoggerAdapter(zap.NewNop(), ml)
	adapter.Delivery().With(zap.String("asset_id", "a1")).Info("delivered")
	require.NoError(t, ml.Close())

	entries, err := NewLogReader(dir).ReadLogs(CategoryDelivery, time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a1", entries[0].Fields["asset_id"])

	single := NewSingleLoggerAdapter(nil)
	assert.NotPanics(t, func() { single.Resolve().Info("nop") })
}

func TestLogReaderReadAndSearch(t *testing.T) {
	dir := t.TempDir()
	reader := NewLogReader(dir)
	path := reader.GetLogPath(CategoryResolve, time.Now())

	content := `{"level":"info","ts":"2024-01-01T00:00:00Z","msg":"resolution started","input":"https://x.com/a"}
{"level":"warn","ts":"2024-01-01T00:00:01Z","msg":"provider failed","provider":"sparky"}
not json at all
{"level":"info","ts":"2024-01-01T00:00:02Z","msg":"resolution succeeded","provider":"nexoracle"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	entries, err := reader.ReadLogs(CategoryResolve, time.Now(), 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "not json at all", entries[0].Message)
	assert.Equal(t, "resolution succeeded", entries[1].Message)

	found, err := reader.SearchLogs(CategoryResolve, time.Now(), "SPARKY", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "provider failed", found[0].Message)

	missing, err := reader.ReadLogs(CategoryDelivery, time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestLogReaderTail(t *testing.T) {
	dir := t.TempDir()
	reader := NewLogReader(dir)
	reader.poll = 10 * time.Millisecond
	path := reader.GetLogPath(CategoryDelivery, time.Now())
	require.NoError(t, os.WriteFile(path, []byte(`{"msg":"old"}`+"\n"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	entries := make(chan LogEntry, 1)
	done := make(chan error, 1)
	go func() { done <- reader.TailLogs(ctx, CategoryDelivery, entries) }()

	appendLine := func() {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
		require.NoError(t, err)
		_, err = f.WriteString(`{"msg":"new","level":"info"}` + "\n")
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}

	// Keep appending until the tailer has seeked to the end and picks one up
	deadline := time.After(2 * time.Second)
	received := false
	for !received {
		appendLine()
		select {
		case entry := <-entries:
			assert.Equal(t, "new", entry.Message)
			received = true
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("no entry received")
		}
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestValidCategory(t *testing.T) {
	category, ok := ValidCategory("delivery")
	assert.True(t, ok)
	assert.Equal(t, CategoryDelivery, category)

	_, ok = ValidCategory("queue")
	assert.False(t, ok)
}
