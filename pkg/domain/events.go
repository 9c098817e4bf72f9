package domain

// Event type names. They are persisted in backups and the document store's
// event journal, so they must not change.
const (
	EventSeasonCreated      = "SeasonCreated"
	EventTeamCreated        = "TeamCreated"
	EventAffiliationCreated = "AffiliationCreated"
	EventGameCreated        = "GameCreated"
	EventGameRescheduled    = "GameRescheduled"
	EventGameCanceled       = "GameCanceled"
	EventGameCompleted      = "GameCompleted"
	EventGameNotesUpdated   = "GameNotesUpdated"
	EventTeamRankingCreated = "TeamRankingCreated"
	EventGameRankingCreated = "GameRankingCreated"
	EventTeamRecordCreated  = "TeamRecordCreated"
)

// EventTypes lists every event type in dependency order: an event only
// references rows created by event types listed before it.
var EventTypes = []string{
	EventSeasonCreated,
	EventTeamCreated,
	EventAffiliationCreated,
	EventGameCreated,
	EventGameRescheduled,
	EventGameCanceled,
	EventGameCompleted,
	EventGameNotesUpdated,
	EventTeamRankingCreated,
	EventGameRankingCreated,
	EventTeamRecordCreated,
}

// SeasonCreated carries a new season.
type SeasonCreated struct {
	Season Season `json:"season"`
}

// EventType implements eventbus.Event.
func (SeasonCreated) EventType() string { return EventSeasonCreated }

// TeamCreated carries a new team.
type TeamCreated struct {
	Team Team `json:"team"`
}

// EventType implements eventbus.Event.
func (TeamCreated) EventType() string { return EventTeamCreated }

// AffiliationCreated carries a new affiliation.
type AffiliationCreated struct {
	Affiliation Affiliation `json:"affiliation"`
}

// EventType implements eventbus.Event.
func (AffiliationCreated) EventType() string { return EventAffiliationCreated }

// GameCreated carries a new game.
type GameCreated struct {
	Game GameState `json:"game"`
}

// EventType implements eventbus.Event.
func (GameCreated) EventType() string { return EventGameCreated }

// GameRescheduled carries the game state after a week or date change.
type GameRescheduled struct {
	Game GameState `json:"game"`
}

// EventType implements eventbus.Event.
func (GameRescheduled) EventType() string { return EventGameRescheduled }

// GameCanceled carries the game state after cancellation.
type GameCanceled struct {
	Game GameState `json:"game"`
}

// EventType implements eventbus.Event.
func (GameCanceled) EventType() string { return EventGameCanceled }

// GameCompleted carries the game state with its final score.
type GameCompleted struct {
	Game GameState `json:"game"`
}

// EventType implements eventbus.Event.
func (GameCompleted) EventType() string { return EventGameCompleted }

// GameNotesUpdated carries the game state with new notes.
type GameNotesUpdated struct {
	Game GameState `json:"game"`
}

// EventType implements eventbus.Event.
func (GameNotesUpdated) EventType() string { return EventGameNotesUpdated }

// TeamRankingCreated carries a ranking that replaces any ranking with the
// same name, season and week.
type TeamRankingCreated struct {
	Ranking TeamRanking `json:"ranking"`
}

// EventType implements eventbus.Event.
func (TeamRankingCreated) EventType() string { return EventTeamRankingCreated }

// GameRankingCreated carries a ranking that replaces any ranking with the
// same name, season and week.
type GameRankingCreated struct {
	Ranking GameRanking `json:"ranking"`
}

// EventType implements eventbus.Event.
func (GameRankingCreated) EventType() string { return EventGameRankingCreated }

// TeamRecordCreated carries a record that replaces any record with the same
// season and week.
type TeamRecordCreated struct {
	Record TeamRecord `json:"record"`
}

// EventType implements eventbus.Event.
func (TeamRecordCreated) EventType() string { return EventTeamRecordCreated }
