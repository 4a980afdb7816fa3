package models

import (
	"fmt"
	"strings"
)

// Level is the canonical severity of a log record.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelFatal Level = "fatal"
)

// Levels lists all valid levels in ascending severity order.
var Levels = []Level{LevelDebug, LevelInfo, LevelWarn, LevelError, LevelFatal}

var levelRanks = map[Level]int{
	LevelDebug: 1,
	LevelInfo:  2,
	LevelWarn:  3,
	LevelError: 4,
	LevelFatal: 5,
}

// ParseLevel converts a string into a Level. Matching is case-insensitive.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := levelRanks[l]; !ok {
		return "", fmt.Errorf("invalid level %q: must be one of debug, info, warn, error, fatal", s)
	}
	return l, nil
}

// Rank returns the numeric severity rank (debug=1 .. fatal=5).
// Unknown levels rank as 0, below every valid level.
func (l Level) Rank() int {
	return levelRanks[l]
}

// LevelFromRank is the inverse of Rank. It returns info for out-of-range ranks.
func LevelFromRank(rank int) Level {
	for l, r := range levelRanks {
		if r == rank {
			return l
		}
	}
	return LevelInfo
}

// MaxLevel returns the more severe of two levels.
func MaxLevel(a, b Level) Level {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Groupable reports whether records at this level participate in
// fingerprinting and incident assignment. Only error and fatal events are
// grouped; everything else passes through untouched.
func (l Level) Groupable() bool {
	return l == LevelError || l == LevelFatal
}
