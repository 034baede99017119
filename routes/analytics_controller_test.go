package routes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanradar/scanradar/model"
)

func TestCalculateAnalytics(t *testing.T) {
	day := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	scans := []model.ScanEvent{
		{
			UserUUID:  "a",
			CreatedAt: day,
			Metadata:  map[string]any{"device": map[string]any{"type": "mobile"}},
			LocationData: &model.Location{
				City: "Milan",
			},
		},
		{
			UserUUID:  "a",
			CreatedAt: day.Add(time.Hour),
			Metadata:  map[string]any{"device": map[string]any{"type": "mobile"}},
		},
		{
			UserUUID:  "b",
			CreatedAt: day.AddDate(0, 0, 1),
			// no device metadata at all
		},
	}
	submissions := []model.FormSubmission{
		{CreatedAt: day},
	}

	analytics := calculateAnalytics(scans, submissions, "7d")

	totals := analytics["totals"].(map[string]any)
	assert.Equal(t, 3, totals["scans"])
	assert.Equal(t, 2, totals["uniqueUsers"])
	assert.Equal(t, 1, totals["submissions"])
	assert.Equal(t, 33.33, totals["conversionRate"])

	breakdowns := analytics["breakdowns"].(map[string]any)
	assert.Equal(t, map[string]int{"mobile": 2, "desktop": 1}, breakdowns["devices"])
	assert.Equal(t, map[string]int{"Milan": 1, "Unknown": 2}, breakdowns["locations"])

	timeline := analytics["timeline"].(map[string]any)
	assert.Equal(t, map[string]int{"2026-08-20": 2, "2026-08-21": 1}, timeline["scans"])
}

func TestCalculateAnalyticsNoScans(t *testing.T) {
	analytics := calculateAnalytics(nil, nil, "7d")

	totals := analytics["totals"].(map[string]any)
	assert.Equal(t, 0, totals["scans"])
	assert.Equal(t, 0.0, totals["conversionRate"])
}

func TestGroupByTimePeriodHourly(t *testing.T) {
	day := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	groups := groupByTimePeriod([]time.Time{
		day, day.Add(10 * time.Minute), day.Add(time.Hour),
	}, "24h")

	assert.Equal(t, map[string]int{
		"2026-08-20 12:00": 2,
		"2026-08-20 13:00": 1,
	}, groups)
}

func TestTimeframeWindow(t *testing.T) {
	until := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		timeframe string
		since     time.Time
	}{
		{"24h", until.Add(-24 * time.Hour)},
		{"7d", until.AddDate(0, 0, -7)},
		{"30d", until.AddDate(0, 0, -30)},
		{"90d", until.AddDate(0, 0, -90)},
		{"bogus", until.AddDate(0, 0, -7)},
	}
	for _, tt := range tests {
		require.Equal(t, tt.since, timeframeWindow(tt.timeframe, until), tt.timeframe)
	}
}
