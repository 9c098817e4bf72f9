package domain

import (
	"encoding/json"
	"fmt"

	"gridrank/pkg/eventbus"
)

// Envelope is the serialized form of an event.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

var decoders = map[string]func(json.RawMessage) (eventbus.Event, error){
	EventSeasonCreated:      decode[SeasonCreated],
	EventTeamCreated:        decode[TeamCreated],
	EventAffiliationCreated: decode[AffiliationCreated],
	EventGameCreated:        decode[GameCreated],
	EventGameRescheduled:    decode[GameRescheduled],
	EventGameCanceled:       decode[GameCanceled],
	EventGameCompleted:      decode[GameCompleted],
	EventGameNotesUpdated:   decode[GameNotesUpdated],
	EventTeamRankingCreated: decode[TeamRankingCreated],
	EventGameRankingCreated: decode[GameRankingCreated],
	EventTeamRecordCreated:  decode[TeamRecordCreated],
}

// MarshalEvent encodes a domain event.
func MarshalEvent(event eventbus.Event) (Envelope, error) {
	if event == nil {
		return Envelope{}, &UnknownEventTypeError{}
	}
	if _, ok := decoders[event.EventType()]; !ok {
		return Envelope{}, &UnknownEventTypeError{Type: event.EventType()}
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", event.EventType(), err)
	}
	return Envelope{Type: event.EventType(), Payload: payload}, nil
}

// UnmarshalEvent decodes an envelope back into its domain event value.
func UnmarshalEvent(env Envelope) (eventbus.Event, error) {
	dec, ok := decoders[env.Type]
	if !ok {
		return nil, &UnknownEventTypeError{Type: env.Type}
	}
	return dec(env.Payload)
}

func decode[E eventbus.Event](payload json.RawMessage) (eventbus.Event, error) {
	var event E
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decode %s: %w", event.EventType(), err)
	}
	return event, nil
}
