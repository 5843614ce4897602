package textproc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// anchor is Wednesday, 2025-03-12.
var anchor = time.Date(2025, 3, 12, 9, 30, 0, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPreprocessRelativeDays(t *testing.T) {
	tests := []struct {
		text string
		want time.Time
	}{
		{"heute anrufen", date(2025, 3, 12)},
		{"morgen milch kaufen", date(2025, 3, 13)},
		{"übermorgen abgeben", date(2025, 3, 14)},
		{"uebermorgen abgeben", date(2025, 3, 14)},
		{"in 3 tagen nachfassen", date(2025, 3, 15)},
		{"in 2 wochen review", date(2025, 3, 26)},
	}
	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			h := Preprocess(tc.text, "tasks", anchor)
			require.NotNil(t, h.DueDate)
			assert.Equal(t, tc.want, *h.DueDate)
		})
	}
}

func TestPreprocessWeekdays(t *testing.T) {
	tests := []struct {
		text string
		want time.Time
	}{
		// Two days ahead of the Wednesday anchor.
		{"freitag bericht schicken", date(2025, 3, 14)},
		// The same weekday rolls to next week.
		{"mittwoch termin", date(2025, 3, 19)},
		// A past weekday rolls to next week.
		{"montag anfangen", date(2025, 3, 17)},
	}
	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			h := Preprocess(tc.text, "tasks", anchor)
			require.NotNil(t, h.DueDate)
			assert.Equal(t, tc.want, *h.DueDate)
		})
	}
}

func TestPreprocessPeriodEnds(t *testing.T) {
	h := Preprocess("ende der woche fertig", "tasks", anchor)
	require.NotNil(t, h.DueDate)
	assert.Equal(t, date(2025, 3, 14), *h.DueDate)

	h = Preprocess("ende des monats abrechnen", "tasks", anchor)
	require.NotNil(t, h.DueDate)
	assert.Equal(t, date(2025, 3, 31), *h.DueDate)
}

func TestPreprocessExplicitDates(t *testing.T) {
	h := Preprocess("am 15.04.2025 einreichen", "tasks", anchor)
	require.NotNil(t, h.DueDate)
	assert.Equal(t, date(2025, 4, 15), *h.DueDate)

	h = Preprocess("deadline 2025-05-01", "tasks", anchor)
	require.NotNil(t, h.DueDate)
	assert.Equal(t, date(2025, 5, 1), *h.DueDate)

	// Explicit dates win over relative words.
	h = Preprocess("morgen oder am 20.06.2025", "tasks", anchor)
	require.NotNil(t, h.DueDate)
	assert.Equal(t, date(2025, 6, 20), *h.DueDate)

	// Impossible calendar dates are rejected, not normalised.
	h = Preprocess("am 31.02.2025 fertig", "tasks", anchor)
	assert.Nil(t, h.DueDate)
}

func TestPreprocessTimes(t *testing.T) {
	h := Preprocess("meeting um 14:30", "tasks", anchor)
	assert.Equal(t, "14:30", h.TimeOfDay)

	h = Preprocess("abends joggen", "tasks", anchor)
	assert.Equal(t, "18:00", h.TimeOfDay)

	// "morgens" is a time of day, not the day "morgen".
	h = Preprocess("morgens meditieren", "tasks", anchor)
	assert.Equal(t, "08:00", h.TimeOfDay)
	assert.Nil(t, h.DueDate)

	h = Preprocess("um 25:99 gibt es nicht", "tasks", anchor)
	assert.Equal(t, "", h.TimeOfDay)

	// Bare "<N> uhr" carries the hour without minutes.
	h = Preprocess("zahnarzt morgen 14 uhr", "tasks", anchor)
	assert.Equal(t, "14:00", h.TimeOfDay)

	h = Preprocess("treffen um 8 uhr", "tasks", anchor)
	assert.Equal(t, "08:00", h.TimeOfDay)

	h = Preprocess("um 25 uhr gibt es auch nicht", "tasks", anchor)
	assert.Equal(t, "", h.TimeOfDay)
}

func TestPreprocessPriority(t *testing.T) {
	assert.Equal(t, 1, Preprocess("dringend anrufen", "tasks", anchor).Priority)
	assert.Equal(t, 1, Preprocess("kritisch: server patchen", "tasks", anchor).Priority)
	assert.Equal(t, 3, Preprocess("irgendwann keller aufräumen", "tasks", anchor).Priority)
	assert.Equal(t, 3, Preprocess("steuer machen wenn zeit", "tasks", anchor).Priority)
	assert.Equal(t, 3, Preprocess("someday: buch schreiben", "tasks", anchor).Priority)
	assert.Equal(t, 2, Preprocess("milch kaufen", "tasks", anchor).Priority)
}

func TestPreprocessDefaultStatus(t *testing.T) {
	assert.Equal(t, "inbox", Preprocess("x", "tasks", anchor).Status)
	assert.Equal(t, "inbox", Preprocess("x", "ideas", anchor).Status)
	assert.Equal(t, "active", Preprocess("x", "projects", anchor).Status)
	assert.Equal(t, "", Preprocess("x", "calendar_events", anchor).Status)
}

func TestPreprocessCalendarStartTime(t *testing.T) {
	h := Preprocess("zahnarzt morgen um 09:15", "calendar_events", anchor)
	require.NotNil(t, h.StartTime)
	assert.Equal(t, time.Date(2025, 3, 13, 9, 15, 0, 0, time.UTC), *h.StartTime)

	// No time of day falls back to noon.
	h = Preprocess("teamessen freitag", "calendar_events", anchor)
	require.NotNil(t, h.StartTime)
	assert.Equal(t, time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC), *h.StartTime)

	// No date means no start time either.
	h = Preprocess("irgendein termin", "calendar_events", anchor)
	assert.Nil(t, h.StartTime)
}

func TestExtractKeywords(t *testing.T) {
	stopwords := []string{"der", "die", "das", "und", "mit"}

	got := ExtractKeywords("Der Zahnarzt und die Rechnung", stopwords, 2)
	assert.Equal(t, []string{"zahnarzt", "rechnung"}, got)

	// Duplicates collapse, order of first occurrence is kept.
	got = ExtractKeywords("projekt umzug projekt", stopwords, 2)
	assert.Equal(t, []string{"projekt", "umzug"}, got)

	// Tokens below the minimum rune length are dropped, umlauts count.
	got = ExtractKeywords("ab büro", stopwords, 3)
	assert.Equal(t, []string{"büro"}, got)
}
