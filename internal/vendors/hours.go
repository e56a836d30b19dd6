package vendors

import (
	"strconv"
	"strings"
	"time"

	"github.com/foodmart/foodmart-backend/pkg/db/models"
)

// isoWeekday maps time.Weekday to 1=Mon … 7=Sun.
func isoWeekday(t time.Time) int {
	if wd := t.Weekday(); wd != time.Sunday {
		return int(wd)
	}
	return 7
}

// parseClock reads "HH:MM" as minutes after midnight. "24:00" is accepted as a window end.
func parseClock(value string) (int, bool) {
	h, m, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return 0, false
	}
	hours, err := strconv.Atoi(h)
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.Atoi(m)
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, false
	}
	if hours < 0 || hours > 24 || (hours == 24 && minutes != 0) {
		return 0, false
	}
	return hours*60 + minutes, true
}

// IsOpenNow reports whether any window for localNow's weekday contains it. A closed-day
// entry closes the whole day; a day with no entries is closed.
func IsOpenNow(hours []models.OpeningHour, localNow time.Time) bool {
	day := isoWeekday(localNow)
	now := localNow.Hour()*60 + localNow.Minute()
	open := false
	for _, h := range hours {
		if h.Day != day {
			continue
		}
		if h.IsClosed {
			return false
		}
		from, ok := parseClock(h.FromHour)
		if !ok {
			continue
		}
		to, ok := parseClock(h.ToHour)
		if !ok {
			continue
		}
		if from <= now && now < to {
			open = true
		}
	}
	return open
}
