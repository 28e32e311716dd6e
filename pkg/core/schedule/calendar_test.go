package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveCalendar(t *testing.T) {
	tests := []struct {
		name       string
		date       string
		startClock string
		endClock   string
		want       Calendar
	}{
		{
			name:       "weekday day shift",
			date:       "2025-06-10", // Tuesday
			startClock: "08:00",
			endClock:   "17:00",
			want:       Calendar{DayOfWeek: 2, ISOWeek: 24, Quarter: 2, Weekend: false, Night: false},
		},
		{
			name:       "saturday shift is weekend",
			date:       "2025-06-14",
			startClock: "08:00",
			endClock:   "17:00",
			want:       Calendar{DayOfWeek: 6, ISOWeek: 24, Quarter: 2, Weekend: true, Night: false},
		},
		{
			name:       "sunday maps to ISO day 7",
			date:       "2025-06-15",
			startClock: "08:00",
			endClock:   "17:00",
			want:       Calendar{DayOfWeek: 7, ISOWeek: 24, Quarter: 2, Weekend: true, Night: false},
		},
		{
			name:       "late start is a night shift",
			date:       "2025-06-10",
			startClock: "22:00",
			endClock:   "06:00",
			want:       Calendar{DayOfWeek: 2, ISOWeek: 24, Quarter: 2, Weekend: false, Night: true},
		},
		{
			name:       "early end is a night shift",
			date:       "2025-06-10",
			startClock: "00:00",
			endClock:   "06:00",
			want:       Calendar{DayOfWeek: 2, ISOWeek: 24, Quarter: 2, Weekend: false, Night: true},
		},
		{
			name:       "new year week boundary",
			date:       "2026-01-01", // Thursday of ISO week 1
			startClock: "08:00",
			endClock:   "17:00",
			want:       Calendar{DayOfWeek: 4, ISOWeek: 1, Quarter: 1, Weekend: false, Night: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			date, err := time.Parse("2006-01-02", tt.date)
			require.NoError(t, err)
			w, err := BuildWindow(date, tt.startClock, tt.endClock)
			require.NoError(t, err)

			assert.Equal(t, tt.want, DeriveCalendar(date, w))
		})
	}
}

func TestBuildWindow(t *testing.T) {
	date, err := time.Parse("2006-01-02", "2025-06-10")
	require.NoError(t, err)

	t.Run("same-day window", func(t *testing.T) {
		w, err := BuildWindow(date, "08:00", "17:00")
		require.NoError(t, err)
		assert.Equal(t, 9*time.Hour, w.End.Sub(w.Start))
		assert.Equal(t, 10, w.Start.Day())
		assert.Equal(t, 10, w.End.Day())
	})

	t.Run("overnight window rolls the end to the next day", func(t *testing.T) {
		w, err := BuildWindow(date, "22:00", "06:00")
		require.NoError(t, err)
		assert.Equal(t, 8*time.Hour, w.End.Sub(w.Start))
		assert.Equal(t, 11, w.End.Day())
	})

	t.Run("invalid clock is rejected", func(t *testing.T) {
		_, err := BuildWindow(date, "8am", "17:00")
		assert.Error(t, err)
	})
}
