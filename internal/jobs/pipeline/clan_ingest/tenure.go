package clan_ingest

import (
	"time"

	types "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/domain"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/dbctx"
)

const day = 24 * time.Hour

// dayOf truncates t to its UTC calendar day.
func dayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(dayOf(to).Sub(dayOf(from)) / day)
}

// Tenure is a resolved days-in-clan value and the day it holds for.
type Tenure struct {
	Days int
	AsOf time.Time
}

// TenureBook is the tenure evidence known for a clan's members.
type TenureBook struct {
	Entries  map[string][]*types.TenureEntry
	JoinDays map[string]time.Time
}

/*
Resolve returns the tenure of tag on target using, in order:
  - an explicit ledger entry for the target day,
  - (target - join date) + 1,
  - the latest anchor on or before the target: base days + days since it,
  - nil.
*/
func (b TenureBook) Resolve(tag string, target time.Time) *Tenure {
	target = dayOf(target)
	entries := b.Entries[tag]

	for _, e := range entries {
		if dayOf(e.AsOf).Equal(target) {
			return &Tenure{Days: e.BaseDays, AsOf: target}
		}
	}
	if joined, ok := b.JoinDays[tag]; ok && !dayOf(joined).After(target) {
		return &Tenure{Days: daysBetween(joined, target) + 1, AsOf: target}
	}

	var anchor *types.TenureEntry
	for _, e := range entries {
		if dayOf(e.AsOf).After(target) {
			continue
		}
		if anchor == nil || e.AsOf.After(anchor.AsOf) {
			anchor = e
		}
	}
	if anchor != nil {
		return &Tenure{Days: anchor.BaseDays + daysBetween(anchor.AsOf, target), AsOf: target}
	}
	return nil
}

// loadTenureBook reads the ledger and joiner history for tags.
func (p *Pipeline) loadTenureBook(dbc dbctx.Context, clanTag string, tags []string, asOf time.Time) (TenureBook, error) {
	book := TenureBook{Entries: map[string][]*types.TenureEntry{}, JoinDays: map[string]time.Time{}}
	if len(tags) == 0 {
		return book, nil
	}
	entries, err := p.deps.Tenure.ListForTags(dbc, clanTag, tags)
	if err != nil {
		return book, err
	}
	joins, err := p.deps.Joiners.LatestJoinByTags(dbc, clanTag, tags, asOf)
	if err != nil {
		return book, err
	}
	book.Entries = entries
	book.JoinDays = joins
	return book, nil
}
