package core

import (
	"sort"

	"gridrank/pkg/domain"
)

// ComputeTeamRecords counts wins and losses of completed games played up to
// and including week. A nil week counts the whole season. Every affiliated
// team appears, winless teams included; ties count for neither side.
//
// The result is ordered by wins descending, then losses ascending, then team
// ID.
func ComputeTeamRecords(games []*domain.Game, affiliations []*domain.Affiliation, week *int) []domain.TeamRecordValue {
	byTeam := make(map[string]*domain.TeamRecordValue)
	entry := func(teamID string) *domain.TeamRecordValue {
		v, ok := byTeam[teamID]
		if !ok {
			v = &domain.TeamRecordValue{TeamID: teamID}
			byTeam[teamID] = v
		}
		return v
	}
	for _, a := range affiliations {
		entry(a.TeamID)
	}
	for _, g := range games {
		if g.Status != domain.StatusCompleted {
			continue
		}
		if week != nil && g.Week > *week {
			continue
		}
		if g.WinningTeamID == "" {
			entry(g.HomeTeamID)
			entry(g.AwayTeamID)
			continue
		}
		entry(g.WinningTeamID).Wins++
		entry(g.LosingTeamID).Losses++
	}

	values := make([]domain.TeamRecordValue, 0, len(byTeam))
	for _, v := range byTeam {
		values = append(values, *v)
	}
	sort.Slice(values, func(i, j int) bool {
		a, b := values[i], values[j]
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.Losses != b.Losses {
			return a.Losses < b.Losses
		}
		return a.TeamID < b.TeamID
	})
	return values
}
