package clan_ingest

import (
	"fmt"
	"time"
)

const seasonResetHour = 5

// Season is the monthly competitive window a snapshot belongs to.
type Season struct {
	ID    string    `json:"id" yaml:"season_id"`
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

func (s Season) contains(t time.Time) bool {
	return !t.Before(s.Start) && t.Before(s.End)
}

// SeasonCalendar resolves season windows. Overrides replace the computed
// window for calendar months where the game moved the reset.
type SeasonCalendar struct {
	Overrides []Season
}

// SeasonFor returns the season t is attributed to. A season runs from the 1st
// of its month at 05:00 UTC until the last Monday of that month at 05:00 UTC.
// Windows are not contiguous: an instant in the break between the last Monday
// and the next 1st at 05:00 is attributed to the upcoming season, so the
// returned Start can be after t. End is always after t.
func (c SeasonCalendar) SeasonFor(t time.Time) Season {
	t = t.UTC()
	for _, o := range c.Overrides {
		if o.contains(t) {
			return Season{ID: o.ID, Start: o.Start.UTC(), End: o.End.UTC()}
		}
	}
	s := c.monthSeason(t.Year(), t.Month())
	if !t.Before(s.End) {
		return c.monthSeason(t.Year(), t.Month()+1)
	}
	return s
}

func (c SeasonCalendar) monthSeason(year int, month time.Month) Season {
	first := time.Date(year, month, 1, seasonResetHour, 0, 0, 0, time.UTC)
	id := fmt.Sprintf("%04d-%02d", first.Year(), int(first.Month()))
	for _, o := range c.Overrides {
		if o.ID == id {
			return Season{ID: o.ID, Start: o.Start.UTC(), End: o.End.UTC()}
		}
	}
	return Season{ID: id, Start: first, End: lastMonday(first.Year(), first.Month())}
}

func lastMonday(year int, month time.Month) time.Time {
	// day 0 of the next month is the last day of this one
	last := time.Date(year, month+1, 0, seasonResetHour, 0, 0, 0, time.UTC)
	back := (int(last.Weekday()) - int(time.Monday) + 7) % 7
	return last.AddDate(0, 0, -back)
}
