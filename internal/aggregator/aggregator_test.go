package aggregator

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logwell-systems/logwell/internal/models"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func errorRecord(id, message string, at time.Time) *models.LogRecord {
	return &models.LogRecord{
		ID:          id,
		ProjectID:   "proj-1",
		Level:       models.LevelError,
		Message:     message,
		Timestamp:   at,
		ServiceName: strPtr("checkout"),
		SourceFile:  strPtr("handler.go"),
		LineNumber:  intPtr(42),
	}
}

func TestEnrichSkipsBelowErrorSeverity(t *testing.T) {
	records := []*models.LogRecord{
		{Level: models.LevelDebug, Message: "x"},
		{Level: models.LevelInfo, Message: "x"},
		{Level: models.LevelWarn, Message: "x"},
		{Level: models.LevelError, Message: "x"},
		{Level: models.LevelFatal, Message: "x"},
	}
	Enrich(records)

	for _, record := range records[:3] {
		assert.Nil(t, record.Fingerprint, "level %s must not be grouped", record.Level)
		assert.Empty(t, record.NormalizedMessage)
	}
	for _, record := range records[3:] {
		require.NotNil(t, record.Fingerprint, "level %s must be grouped", record.Level)
		assert.Len(t, *record.Fingerprint, 32)
		assert.Equal(t, "x", record.NormalizedMessage)
	}
}

func TestEnrichSameIdentitySameFingerprint(t *testing.T) {
	at := time.Now().UTC()
	a := errorRecord("1", "DB timeout after 30s for user 123", at)
	b := errorRecord("2", "db timeout after 45s for user 456", at)
	Enrich([]*models.LogRecord{a, b})

	require.NotNil(t, a.Fingerprint)
	require.NotNil(t, b.Fingerprint)
	assert.Equal(t, *a.Fingerprint, *b.Fingerprint,
		"variable tokens normalize away, case folds")
}

func TestGroupMergesWithinBatch(t *testing.T) {
	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	records := []*models.LogRecord{
		errorRecord("1", "boom 1", base.Add(2*time.Minute)),
		errorRecord("2", "boom 2", base),
		errorRecord("3", "boom 3", base.Add(time.Minute)),
	}
	Enrich(records)
	aggregates := Group(records)

	require.Len(t, aggregates, 1)
	agg := aggregates[0]
	assert.Equal(t, int64(3), agg.TotalEvents)
	assert.Equal(t, base, agg.FirstSeen)
	assert.Equal(t, base.Add(2*time.Minute), agg.LastSeen)
	assert.Equal(t, "boom 1", agg.Title, "title comes from the first record seen")
	assert.Equal(t, "checkout", agg.ServiceName)
	assert.Equal(t, "handler.go", agg.SourceFile)
	assert.Equal(t, 42, agg.LineNumber)
}

func TestGroupHighestLevelWins(t *testing.T) {
	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	errorRec := errorRecord("1", "boom", base)
	fatalRec := errorRecord("2", "boom", base.Add(time.Minute))
	fatalRec.Level = models.LevelFatal
	warnRec := errorRecord("3", "boom", base.Add(2*time.Minute))
	warnRec.Level = models.LevelWarn

	records := []*models.LogRecord{errorRec, fatalRec, warnRec}
	Enrich(records)

	// Force the warn record into the same group to exercise the max merge.
	warnRec.Fingerprint = errorRec.Fingerprint
	warnRec.NormalizedMessage = errorRec.NormalizedMessage

	aggregates := Group(records)
	require.Len(t, aggregates, 1)
	assert.Equal(t, models.LevelFatal, aggregates[0].HighestLevel)
	assert.Equal(t, int64(3), aggregates[0].TotalEvents)
}

func TestGroupFirstAppearanceOrder(t *testing.T) {
	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	records := []*models.LogRecord{
		errorRecord("1", "first kind", base),
		errorRecord("2", "second kind", base),
		errorRecord("3", "first kind", base),
	}
	Enrich(records)
	aggregates := Group(records)

	require.Len(t, aggregates, 2)
	assert.Equal(t, "first kind", aggregates[0].Title)
	assert.Equal(t, "second kind", aggregates[1].Title)
}

func TestGroupDefaultsMissingContext(t *testing.T) {
	record := &models.LogRecord{
		ID:        "1",
		Level:     models.LevelError,
		Message:   "boom",
		Timestamp: time.Now().UTC(),
	}
	Enrich([]*models.LogRecord{record})
	aggregates := Group([]*models.LogRecord{record})

	require.Len(t, aggregates, 1)
	assert.Equal(t, "unknown-service", aggregates[0].ServiceName)
	assert.Equal(t, "unknown-source", aggregates[0].SourceFile)
	assert.Equal(t, 0, aggregates[0].LineNumber)
}

func TestTruncateTitle(t *testing.T) {
	assert.Equal(t, "short", TruncateTitle("short"))

	exact := strings.Repeat("x", 160)
	assert.Equal(t, exact, TruncateTitle(exact))

	long := strings.Repeat("x", 161)
	got := TruncateTitle(long)
	assert.Len(t, []rune(got), 163)
	assert.True(t, strings.HasSuffix(got, "..."))

	// Rune-based, not byte-based.
	wide := strings.Repeat("日", 200)
	got = TruncateTitle(wide)
	assert.Equal(t, strings.Repeat("日", 160)+"...", got)
}
