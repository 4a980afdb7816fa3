package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for _, level := range Levels {
		parsed, err := ParseLevel(string(level))
		require.NoError(t, err)
		assert.Equal(t, level, parsed)
	}

	parsed, err := ParseLevel("ERROR")
	require.NoError(t, err)
	assert.Equal(t, LevelError, parsed)

	_, err = ParseLevel("verbose")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be one of debug, info, warn, error, fatal")

	_, err = ParseLevel("")
	assert.Error(t, err)
}

func TestLevelOrdering(t *testing.T) {
	assert.Equal(t, LevelFatal, MaxLevel(LevelWarn, LevelFatal))
	assert.Equal(t, LevelError, MaxLevel(LevelError, LevelWarn))
	assert.Equal(t, LevelInfo, MaxLevel(LevelInfo, LevelDebug))

	for _, level := range Levels {
		assert.Equal(t, level, LevelFromRank(level.Rank()))
	}
}

func TestGroupable(t *testing.T) {
	assert.False(t, LevelDebug.Groupable())
	assert.False(t, LevelInfo.Groupable())
	assert.False(t, LevelWarn.Groupable())
	assert.True(t, LevelError.Groupable())
	assert.True(t, LevelFatal.Groupable())
}

func TestStatusDerivation(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	threshold := 30 * time.Minute

	tests := []struct {
		name     string
		lastSeen time.Time
		want     string
	}{
		{"just seen", now, StatusOpen},
		{"29 minutes ago", now.Add(-29 * time.Minute), StatusOpen},
		{"exactly at threshold", now.Add(-30 * time.Minute), StatusOpen},
		{"31 minutes ago", now.Add(-31 * time.Minute), StatusResolved},
		{"days ago", now.Add(-72 * time.Hour), StatusResolved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Status(tt.lastSeen, now, threshold))
		})
	}
}
