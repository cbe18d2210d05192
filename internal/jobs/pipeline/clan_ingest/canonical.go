package clan_ingest

import (
	"encoding/json"
	"fmt"
	"time"

	types "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/domain"
)

type canonicalTenure struct {
	Days int       `json:"days"`
	AsOf time.Time `json:"asOf"`
}

// canonicalPayload is the read-side document of one member at one snapshot.
type canonicalPayload struct {
	PlayerTag         string            `json:"playerTag"`
	Name              string            `json:"name"`
	Role              string            `json:"role,omitempty"`
	TownHallLevel     *int              `json:"townHallLevel,omitempty"`
	Trophies          *int              `json:"trophies,omitempty"`
	BuilderTrophies   *int              `json:"builderTrophies,omitempty"`
	LeagueName        string            `json:"leagueName,omitempty"`
	RankedLeagueName  string            `json:"rankedLeagueName,omitempty"`
	Donations         *int              `json:"donations,omitempty"`
	DonationsReceived *int              `json:"donationsReceived,omitempty"`
	Heroes            types.HeroLevels  `json:"heroes"`
	RushPercent       *float64          `json:"rushPercent,omitempty"`
	Tenure            *canonicalTenure  `json:"tenure,omitempty"`
	Enrichment        *types.Enrichment `json:"enrichment,omitempty"`
	SeasonID          string            `json:"seasonId"`
	ClanName          string            `json:"clanName,omitempty"`
}

func buildCanonical(snap *types.ClanSnapshot, stats []*types.MemberSnapshotStat, enrich map[string]*types.Enrichment) ([]*types.CanonicalMemberSnapshot, error) {
	out := make([]*types.CanonicalMemberSnapshot, 0, len(stats))
	for _, s := range stats {
		doc := canonicalPayload{
			PlayerTag:         s.PlayerTag,
			Name:              s.Name,
			Role:              s.Role,
			TownHallLevel:     s.TownHallLevel,
			Trophies:          s.Trophies,
			BuilderTrophies:   s.BuilderTrophies,
			LeagueName:        s.LeagueName,
			RankedLeagueName:  s.RankedLeagueName,
			Donations:         s.Donations,
			DonationsReceived: s.DonationsReceived,
			Heroes:            s.HeroLevels,
			RushPercent:       s.RushPercent,
			Enrichment:        enrich[s.PlayerTag],
			SeasonID:          snap.SeasonID,
			ClanName:          snap.ClanName,
		}
		if s.TenureDays != nil && s.TenureAsOf != nil {
			doc.Tenure = &canonicalTenure{Days: *s.TenureDays, AsOf: *s.TenureAsOf}
		}
		body, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encode canonical %s: %w", s.PlayerTag, err)
		}
		out = append(out, &types.CanonicalMemberSnapshot{
			SnapshotID:     snap.ID,
			ClanTag:        snap.ClanTag,
			PlayerTag:      s.PlayerTag,
			FetchedAt:      snap.FetchedAt,
			PayloadVersion: snap.PayloadVersion,
			SchemaVersion:  snap.SchemaVersion,
			Payload:        body,
		})
	}
	return out, nil
}
