package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIntersectsBlackout(t *testing.T) {
	tests := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"morning", at(0, 9, 0), at(0, 10, 0), false},
		{"ends at lunch start", at(0, 12, 30), at(0, 13, 0), false},
		{"starts at lunch end", at(0, 14, 0), at(0, 14, 30), false},
		{"inside", at(0, 13, 15), at(0, 13, 45), true},
		{"spans into", at(0, 12, 45), at(0, 13, 15), true},
		{"spans out of", at(0, 13, 45), at(0, 14, 15), true},
		{"covers", at(0, 12, 0), at(0, 15, 0), true},
		{"next day lunch", at(0, 18, 0), at(1, 13, 30), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IntersectsBlackout(tt.start, tt.end))
		})
	}
}

func TestInBlackout(t *testing.T) {
	assert.True(t, InBlackout(at(0, 13, 0)))
	assert.True(t, InBlackout(at(0, 13, 59)))
	assert.False(t, InBlackout(at(0, 14, 0)))
	assert.False(t, InBlackout(at(0, 12, 59)))
}

func TestBlackoutWindowUsesLocalTime(t *testing.T) {
	loc := time.FixedZone("ART", -3*60*60)
	ts := time.Date(2026, 3, 2, 13, 30, 0, 0, loc)

	w := BlackoutWindow(ts)
	assert.Equal(t, 13, w.Start.Hour())
	assert.Equal(t, loc, w.Start.Location())
	assert.True(t, InBlackout(ts))
	// 13:30 local is 16:30 UTC, outside a UTC lunch break.
	assert.False(t, InBlackout(ts.UTC()))
}
