package textproc

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Hints are the deterministic fields extracted from captured text before the
// structure agent runs. Nil pointers mean "nothing found".
type Hints struct {
	DueDate   *time.Time // date only, midnight local
	TimeOfDay string     // "HH:MM", empty when absent
	Priority  int        // 1 high, 2 normal, 3 low
	Status    string     // category default
	StartTime *time.Time // calendar events: date plus time of day
}

// Relative day words and their offsets.
var relativeDays = map[string]int{
	"heute":       0,
	"morgen":      1,
	"übermorgen":  2,
	"uebermorgen": 2,
}

// German weekday names, Monday first, matching time.Weekday via weekdayIndex.
var weekdayNames = map[string]int{
	"montag":     0,
	"dienstag":   1,
	"mittwoch":   2,
	"donnerstag": 3,
	"freitag":    4,
	"samstag":    5,
	"sonntag":    6,
}

// Named times of day.
var namedTimes = map[string]string{
	"morgens":     "08:00",
	"vormittags":  "10:00",
	"mittags":     "12:00",
	"nachmittags": "15:00",
	"abends":      "18:00",
	"nachts":      "22:00",
	"früh":        "07:00",
	"frueh":       "07:00",
	"spät":        "20:00",
	"spaet":       "20:00",
}

var highPriorityWords = []string{"dringend", "wichtig", "sofort", "eilig", "asap", "urgent", "kritisch"}
var lowPriorityWords = []string{"irgendwann", "später", "spaeter", "unwichtig", "niedrig", "low", "someday", "wenn zeit"}

var (
	inDaysRe    = regexp.MustCompile(`in (\d+) tag(?:en)?`)
	inWeeksRe   = regexp.MustCompile(`in (\d+) woche(?:n)?`)
	dottedDate  = regexp.MustCompile(`\b(\d{1,2})\.(\d{1,2})\.(\d{4})\b`)
	isoDate     = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	explicitHHM = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	hourOnlyRe  = regexp.MustCompile(`\b(\d{1,2})\s*uhr\b`)
)

// weekdayIndex maps time.Weekday (Sunday=0) onto Monday=0.
func weekdayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// Preprocess extracts dates, times, priority, and the category default status
// from captured text. now anchors relative dates; its location is the user's
// timezone.
func Preprocess(text, category string, now time.Time) Hints {
	lower := strings.ToLower(text)
	h := Hints{
		Priority: extractPriority(lower),
		Status:   defaultStatus(category),
	}
	h.DueDate = extractDate(lower, now)
	h.TimeOfDay = extractTime(lower)

	if category == "calendar_events" && h.DueDate != nil {
		tod := h.TimeOfDay
		if tod == "" {
			tod = "12:00"
		}
		hh, _ := strconv.Atoi(tod[:2])
		mm, _ := strconv.Atoi(tod[3:])
		start := time.Date(h.DueDate.Year(), h.DueDate.Month(), h.DueDate.Day(),
			hh, mm, 0, 0, now.Location())
		h.StartTime = &start
	}
	return h
}

func defaultStatus(category string) string {
	switch category {
	case "tasks", "ideas":
		return "inbox"
	case "projects":
		return "active"
	default:
		return ""
	}
}

func extractPriority(lower string) int {
	for _, w := range highPriorityWords {
		if strings.Contains(lower, w) {
			return 1
		}
	}
	for _, w := range lowPriorityWords {
		if strings.Contains(lower, w) {
			return 3
		}
	}
	return 2
}

func extractDate(lower string, now time.Time) *time.Time {
	midnight := func(t time.Time) *time.Time {
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location())
		return &d
	}

	// Explicit formats win over relative words.
	if m := dottedDate.FindStringSubmatch(lower); m != nil {
		if d, ok := buildDate(m[3], m[2], m[1], now.Location()); ok {
			return d
		}
	}
	if m := isoDate.FindStringSubmatch(lower); m != nil {
		if d, ok := buildDate(m[1], m[2], m[3], now.Location()); ok {
			return d
		}
	}

	// "morgen" the day competes with "morgens" the time of day; match on word
	// boundaries so the longer token does not trigger a date.
	for word, offset := range relativeDays {
		if containsWord(lower, word) {
			return midnight(now.AddDate(0, 0, offset))
		}
	}

	if strings.Contains(lower, "ende der woche") {
		ahead := 4 - weekdayIndex(now.Weekday())
		if ahead < 0 {
			ahead += 7
		}
		return midnight(now.AddDate(0, 0, ahead))
	}
	if strings.Contains(lower, "ende des monats") {
		// Day 28 plus four days is always next month; backing up by its day
		// number lands on the last day of the current month.
		next := time.Date(now.Year(), now.Month(), 28, 0, 0, 0, 0, now.Location()).AddDate(0, 0, 4)
		return midnight(next.AddDate(0, 0, -next.Day()))
	}

	for name, target := range weekdayNames {
		if containsWord(lower, name) {
			ahead := target - weekdayIndex(now.Weekday())
			if ahead <= 0 {
				ahead += 7
			}
			return midnight(now.AddDate(0, 0, ahead))
		}
	}

	if m := inDaysRe.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		return midnight(now.AddDate(0, 0, n))
	}
	if m := inWeeksRe.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		return midnight(now.AddDate(0, 0, 7*n))
	}
	return nil
}

func buildDate(y, m, d string, loc *time.Location) (*time.Time, bool) {
	year, _ := strconv.Atoi(y)
	month, _ := strconv.Atoi(m)
	day, _ := strconv.Atoi(d)
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return nil, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	// Reject normalised overflow like 31.02.
	if t.Day() != day || int(t.Month()) != month {
		return nil, false
	}
	return &t, true
}

func extractTime(lower string) string {
	if m := explicitHHM.FindStringSubmatch(lower); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if hh <= 23 && mm <= 59 {
			return fmt.Sprintf("%02d:%02d", hh, mm)
		}
	}
	if m := hourOnlyRe.FindStringSubmatch(lower); m != nil {
		if hh, _ := strconv.Atoi(m[1]); hh <= 23 {
			return fmt.Sprintf("%02d:00", hh)
		}
	}
	for word, tod := range namedTimes {
		if containsWord(lower, word) {
			return tod
		}
	}
	return ""
}

var wordRunes = func(r rune) bool {
	return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' ||
		r == 'ä' || r == 'ö' || r == 'ü' || r == 'ß')
}

func containsWord(lower, word string) bool {
	for _, tok := range strings.FieldsFunc(lower, wordRunes) {
		if tok == word {
			return true
		}
	}
	return false
}
