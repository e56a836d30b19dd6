package cron

import (
	"fmt"
	"strconv"
	"time"
)

// Schedule decides whether a job is due and names the slot a run belongs to. A job runs
// at most once per slot.
type Schedule interface {
	// Slot returns the identifier of the slot now falls in and whether that slot has
	// opened.
	Slot(now time.Time) (string, bool)
	// Period bounds how long a slot claim needs to be remembered.
	Period() time.Duration
	String() string
}

type every struct {
	interval time.Duration
}

// Every fires once per fixed interval, aligned to the Unix epoch.
func Every(interval time.Duration) (Schedule, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", interval)
	}
	return every{interval: interval}, nil
}

func (e every) Slot(now time.Time) (string, bool) {
	return strconv.FormatInt(now.UTC().Truncate(e.interval).Unix(), 10), true
}

func (e every) Period() time.Duration { return e.interval }

func (e every) String() string { return "every " + e.interval.String() }

type dailyAt struct {
	hour, minute int
	loc          *time.Location
}

// DailyAt fires once per civil day in loc, at or after the "HH:MM" wall-clock time.
func DailyAt(clock string, loc *time.Location) (Schedule, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return nil, fmt.Errorf("parse daily time %q: %w", clock, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return dailyAt{hour: t.Hour(), minute: t.Minute(), loc: loc}, nil
}

func (d dailyAt) Slot(now time.Time) (string, bool) {
	local := now.In(d.loc)
	at := time.Date(local.Year(), local.Month(), local.Day(), d.hour, d.minute, 0, 0, d.loc)
	return local.Format("2006-01-02"), !local.Before(at)
}

func (d dailyAt) Period() time.Duration { return 24 * time.Hour }

func (d dailyAt) String() string {
	return fmt.Sprintf("daily at %02d:%02d %s", d.hour, d.minute, d.loc)
}
