package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestEventCodecPreservesGameState(t *testing.T) {
	state := GameState{
		ID:            "g1",
		SeasonID:      "s1",
		Week:          4,
		Date:          time.Date(2020, 10, 3, 19, 30, 0, 0, time.UTC),
		SeasonSection: SectionRegular,
		HomeTeamID:    "a",
		AwayTeamID:    "b",
		Score:         &Score{Home: 28, Away: 14},
		Status:        StatusCompleted,
		WinningTeamID: "a",
		LosingTeamID:  "b",
	}
	env, err := MarshalEvent(GameCompleted{Game: state})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if env.Type != EventGameCompleted {
		t.Fatalf("unexpected envelope type %q", env.Type)
	}

	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	var back Envelope
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	event, err := UnmarshalEvent(back)
	if err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	got, ok := event.(GameCompleted)
	if !ok {
		t.Fatalf("expected GameCompleted, got %T", event)
	}
	if got.Game.Score == nil || *got.Game.Score != *state.Score || !got.Game.Date.Equal(state.Date) || got.Game.WinningTeamID != "a" {
		t.Fatalf("state changed through codec: %+v", got.Game)
	}
}

func TestEventCodecOptionalWeek(t *testing.T) {
	env, err := MarshalEvent(TeamRecordCreated{Record: TeamRecord{ID: "r", SeasonID: "s"}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	event, err := UnmarshalEvent(env)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if event.(TeamRecordCreated).Record.Week != nil {
		t.Fatalf("season-wide record gained a week")
	}
}

type strayEvent struct{}

func (strayEvent) EventType() string { return "Stray" }

func TestEventCodecUnknownType(t *testing.T) {
	var unknown *UnknownEventTypeError
	if _, err := MarshalEvent(strayEvent{}); !errors.As(err, &unknown) || unknown.Type != "Stray" {
		t.Fatalf("expected unknown type on marshal, got %v", err)
	}
	if _, err := UnmarshalEvent(Envelope{Type: "Stray", Payload: json.RawMessage(`{}`)}); !errors.As(err, &unknown) {
		t.Fatalf("expected unknown type on unmarshal, got %v", err)
	}
	if _, err := UnmarshalEvent(Envelope{Type: EventTeamCreated, Payload: json.RawMessage(`{`)}); err == nil {
		t.Fatalf("expected decode error for truncated payload")
	}
}
