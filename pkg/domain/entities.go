// Package domain defines the gridrank entities, the events that create and
// mutate them, and the repository and event-handler contracts every storage
// backend implements.
package domain

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// EntityType identifies the kind of record a key, error or table refers to.
type EntityType string

// Supported entity type identifiers.
const (
	// EntitySeason identifies a season record.
	EntitySeason EntityType = "season"
	// EntityTeam identifies a team record.
	EntityTeam EntityType = "team"
	// EntityAffiliation identifies a team's subdivision membership for one season.
	EntityAffiliation EntityType = "affiliation"
	// EntityGame identifies a game record.
	EntityGame EntityType = "game"
	// EntityTeamRanking identifies a named ranking of teams.
	EntityTeamRanking EntityType = "team_ranking"
	// EntityGameRanking identifies a named ranking of games.
	EntityGameRanking EntityType = "game_ranking"
	// EntityTeamRecord identifies a wins/losses table.
	EntityTeamRecord EntityType = "team_record"
)

// Subdivision is the competitive level a team plays at in a season.
type Subdivision string

// Supported subdivisions.
const (
	SubdivisionFBS Subdivision = "FBS"
	SubdivisionFCS Subdivision = "FCS"
)

// SeasonSection separates the regular season from the postseason.
type SeasonSection string

// Supported season sections.
const (
	SectionRegular SeasonSection = "REGULAR"
	SectionPost    SeasonSection = "POST"
)

// GameStatus tracks where a game is in its lifecycle.
type GameStatus string

// Supported game statuses.
const (
	StatusScheduled GameStatus = "SCHEDULED"
	StatusCompleted GameStatus = "COMPLETED"
	StatusCanceled  GameStatus = "CANCELED"
)

// Season is a single year of play.
type Season struct {
	ID   string `json:"id"`
	Year int    `json:"year"`
}

// Team is a program, identified across seasons by its name.
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Affiliation places a team in a subdivision for one season.
type Affiliation struct {
	ID          string      `json:"id"`
	SeasonID    string      `json:"season_id"`
	TeamID      string      `json:"team_id"`
	Subdivision Subdivision `json:"subdivision"`
}

// Score is the final score of a completed game.
type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// GameState is the full value of a game. Score is set exactly when the game
// is completed.
type GameState struct {
	ID            string        `json:"id"`
	SeasonID      string        `json:"season_id"`
	Week          int           `json:"week"`
	Date          time.Time     `json:"date"`
	SeasonSection SeasonSection `json:"season_section"`
	HomeTeamID    string        `json:"home_team_id"`
	AwayTeamID    string        `json:"away_team_id"`
	Score         *Score        `json:"score,omitempty"`
	Status        GameStatus    `json:"status"`
	WinningTeamID string        `json:"winning_team_id,omitempty"`
	LosingTeamID  string        `json:"losing_team_id,omitempty"`
	Notes         string        `json:"notes,omitempty"`
}

// Clone returns a deep copy.
func (s GameState) Clone() GameState {
	if s.Score != nil {
		score := *s.Score
		s.Score = &score
	}
	return s
}

// Key returns the natural key of the game.
func (s GameState) Key() string {
	return GameKey(s.SeasonID, s.Week, s.HomeTeamID, s.AwayTeamID)
}

// TeamRankingValue is one team's position in a ranking.
type TeamRankingValue struct {
	TeamID string  `json:"team_id"`
	Rank   int     `json:"rank"`
	Value  float64 `json:"value"`
}

// TeamRanking is a named ranking of teams for a season, optionally as of a week.
type TeamRanking struct {
	ID       string             `json:"id"`
	Name     string             `json:"name"`
	SeasonID string             `json:"season_id"`
	Week     *int               `json:"week,omitempty"`
	Values   []TeamRankingValue `json:"values"`
}

// Clone returns a deep copy.
func (r TeamRanking) Clone() TeamRanking {
	r.Week = cloneWeek(r.Week)
	r.Values = append([]TeamRankingValue(nil), r.Values...)
	return r
}

// Key returns the natural key of the ranking.
func (r TeamRanking) Key() string { return RankingKey(r.Name, r.SeasonID, r.Week) }

// GameRankingValue is one game's position in a ranking.
type GameRankingValue struct {
	GameID string  `json:"game_id"`
	Rank   int     `json:"rank"`
	Value  float64 `json:"value"`
}

// GameRanking is a named ranking of games for a season, optionally as of a week.
type GameRanking struct {
	ID       string             `json:"id"`
	Name     string             `json:"name"`
	SeasonID string             `json:"season_id"`
	Week     *int               `json:"week,omitempty"`
	Values   []GameRankingValue `json:"values"`
}

// Clone returns a deep copy.
func (r GameRanking) Clone() GameRanking {
	r.Week = cloneWeek(r.Week)
	r.Values = append([]GameRankingValue(nil), r.Values...)
	return r
}

// Key returns the natural key of the ranking.
func (r GameRanking) Key() string { return RankingKey(r.Name, r.SeasonID, r.Week) }

// TeamRecordValue is one team's wins and losses.
type TeamRecordValue struct {
	TeamID string `json:"team_id"`
	Wins   int    `json:"wins"`
	Losses int    `json:"losses"`
}

// TeamRecord is the wins/losses table of a season, optionally as of a week.
type TeamRecord struct {
	ID       string            `json:"id"`
	SeasonID string            `json:"season_id"`
	Week     *int              `json:"week,omitempty"`
	Values   []TeamRecordValue `json:"values"`
}

// Clone returns a deep copy.
func (r TeamRecord) Clone() TeamRecord {
	r.Week = cloneWeek(r.Week)
	r.Values = append([]TeamRecordValue(nil), r.Values...)
	return r
}

// Key returns the natural key of the record.
func (r TeamRecord) Key() string { return RecordKey(r.SeasonID, r.Week) }

// Week returns a pointer to n, for the optional week of rankings and records.
func Week(n int) *int { return &n }

func cloneWeek(w *int) *int {
	if w == nil {
		return nil
	}
	n := *w
	return &n
}

// SameWeek reports whether two optional weeks are equal.
func SameWeek(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Natural keys are flattened to strings so every backend can index them the
// same way. The separator cannot appear in generated IDs or years.

const keySep = "\x1f"

// SeasonKey is the natural key of a season.
func SeasonKey(year int) string { return strconv.Itoa(year) }

// TeamKey is the natural key of a team.
func TeamKey(name string) string { return name }

// AffiliationKey is the natural key of an affiliation.
func AffiliationKey(seasonID, teamID string) string {
	return seasonID + keySep + teamID
}

// TeamPair orders two team IDs so a pairing has one canonical form.
func TeamPair(a, b string) (string, string) {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0], pair[1]
}

// GameKey is the natural key of a game. Home and away are interchangeable.
func GameKey(seasonID string, week int, teamA, teamB string) string {
	lo, hi := TeamPair(teamA, teamB)
	return strings.Join([]string{seasonID, strconv.Itoa(week), lo, hi}, keySep)
}

// RankingKey is the natural key shared by team and game rankings.
func RankingKey(name, seasonID string, week *int) string {
	return strings.Join([]string{name, seasonID, weekKey(week)}, keySep)
}

// RecordKey is the natural key of a team record.
func RecordKey(seasonID string, week *int) string {
	return seasonID + keySep + weekKey(week)
}

func weekKey(week *int) string {
	if week == nil {
		return "*"
	}
	return strconv.Itoa(*week)
}
