package memory

import (
	"context"
	"errors"

	"gridrank/pkg/domain"
	"gridrank/pkg/eventbus"
)

// EventHandler applies domain events to a Storage.
type EventHandler struct {
	storage *Storage
}

var _ domain.EventHandler = (*EventHandler)(nil)

// NewEventHandler returns a handler writing into storage.
func NewEventHandler(storage *Storage) *EventHandler {
	return &EventHandler{storage: storage}
}

// HandleSeasonCreated inserts the season.
func (h *EventHandler) HandleSeasonCreated(_ context.Context, e domain.SeasonCreated) error {
	return h.storage.seasons.add(e.Season)
}

// HandleTeamCreated inserts the team.
func (h *EventHandler) HandleTeamCreated(_ context.Context, e domain.TeamCreated) error {
	return h.storage.teams.add(e.Team)
}

// HandleAffiliationCreated inserts the affiliation.
func (h *EventHandler) HandleAffiliationCreated(_ context.Context, e domain.AffiliationCreated) error {
	return h.storage.affiliations.add(e.Affiliation)
}

// HandleGameCreated inserts the game.
func (h *EventHandler) HandleGameCreated(_ context.Context, e domain.GameCreated) error {
	return h.storage.games.add(e.Game)
}

// HandleGameRescheduled moves the stored game, re-indexing its natural key.
func (h *EventHandler) HandleGameRescheduled(_ context.Context, e domain.GameRescheduled) error {
	return h.applyGame(e.Game.ID, e)
}

// HandleGameCanceled updates the stored game's status.
func (h *EventHandler) HandleGameCanceled(_ context.Context, e domain.GameCanceled) error {
	return h.applyGame(e.Game.ID, e)
}

// HandleGameCompleted stores the final score and result.
func (h *EventHandler) HandleGameCompleted(_ context.Context, e domain.GameCompleted) error {
	return h.applyGame(e.Game.ID, e)
}

// HandleGameNotesUpdated stores the new notes.
func (h *EventHandler) HandleGameNotesUpdated(_ context.Context, e domain.GameNotesUpdated) error {
	return h.applyGame(e.Game.ID, e)
}

// HandleTeamRankingCreated replaces any ranking with the same natural key.
func (h *EventHandler) HandleTeamRankingCreated(_ context.Context, e domain.TeamRankingCreated) error {
	return h.storage.teamRankings.replace(e.Ranking)
}

// HandleGameRankingCreated replaces any ranking with the same natural key.
func (h *EventHandler) HandleGameRankingCreated(_ context.Context, e domain.GameRankingCreated) error {
	return h.storage.gameRankings.replace(e.Ranking)
}

// HandleTeamRecordCreated replaces any record with the same natural key.
func (h *EventHandler) HandleTeamRecordCreated(_ context.Context, e domain.TeamRecordCreated) error {
	return h.storage.teamRecords.replace(e.Record)
}

func (h *EventHandler) applyGame(id string, event eventbus.Event) error {
	err := h.storage.games.update(id, func(current domain.GameState) (domain.GameState, error) {
		return domain.ApplyGameEvent(current, event)
	})
	if errors.Is(err, errMissingRow) {
		return &domain.OutOfSyncError{Entity: domain.EntityGame, ID: id, Event: event.EventType()}
	}
	return err
}
