package usage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMonthBounds(t *testing.T) {
	tests := []struct {
		name      string
		at        time.Time
		loc       *time.Location
		wantStart time.Time
		wantNext  time.Time
	}{
		{
			name:      "mid month",
			at:        time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC),
			wantStart: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			wantNext:  time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "december rolls the year",
			at:        time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC),
			wantStart: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
			wantNext:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "first instant belongs to the new month",
			at:        time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
			wantStart: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
			wantNext:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "converted into location",
			at:        time.Date(2025, 1, 31, 23, 0, 0, 0, time.UTC),
			loc:       time.FixedZone("UTC+2", 2*60*60),
			wantStart: time.Date(2025, 2, 1, 0, 0, 0, 0, time.FixedZone("UTC+2", 2*60*60)),
			wantNext:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.FixedZone("UTC+2", 2*60*60)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, next := MonthBounds(tt.at, tt.loc)
			assert.True(t, tt.wantStart.Equal(start), "start = %v", start)
			assert.True(t, tt.wantNext.Equal(next), "next = %v", next)
		})
	}
}
