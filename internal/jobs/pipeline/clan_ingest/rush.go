package clan_ingest

import (
	"math"

	types "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/domain"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/pointers"
)

// heroCaps lists the max hero level reachable at each town hall level.
// Index 0 is unused.
var heroCaps = struct {
	BK, AQ, MP, GW, RC [18]int
}{
	BK: [18]int{0, 0, 0, 0, 0, 0, 0, 5, 10, 30, 40, 50, 65, 75, 80, 90, 95, 100},
	AQ: [18]int{0, 0, 0, 0, 0, 0, 0, 0, 0, 30, 40, 50, 65, 75, 80, 90, 95, 100},
	MP: [18]int{0, 0, 0, 0, 0, 0, 0, 0, 0, 10, 20, 30, 40, 50, 60, 70, 80, 90},
	GW: [18]int{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 20, 40, 50, 55, 65, 70, 75},
	RC: [18]int{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 25, 30, 40, 45, 50},
}

// RushPercent measures how far a player's heroes are behind the caps of the
// previous town hall, 0 (not rushed) to 100. It is nil when the town hall is
// unknown or no hero level is known.
func RushPercent(townHall *int, heroes types.HeroLevels) *float64 {
	if townHall == nil || *townHall <= 0 {
		return nil
	}
	if heroes.BarbarianKing == nil && heroes.ArcherQueen == nil && heroes.MinionPrince == nil &&
		heroes.GrandWarden == nil && heroes.RoyalChampion == nil {
		return nil
	}
	th := *townHall - 1
	if th >= len(heroCaps.BK) {
		th = len(heroCaps.BK) - 1
	}
	if th < 0 {
		th = 0
	}

	var deficit, total int
	add := func(cap int, level *int) {
		if cap <= 0 {
			return
		}
		total += cap
		if have := pointers.IntOr(level, 0); have < cap {
			deficit += cap - have
		}
	}
	add(heroCaps.BK[th], heroes.BarbarianKing)
	add(heroCaps.AQ[th], heroes.ArcherQueen)
	add(heroCaps.MP[th], heroes.MinionPrince)
	add(heroCaps.GW[th], heroes.GrandWarden)
	add(heroCaps.RC[th], heroes.RoyalChampion)

	pct := 0.0
	if total > 0 {
		pct = math.Round(float64(deficit)/float64(total)*1000) / 10
	}
	return &pct
}
