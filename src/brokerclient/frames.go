package brokerclient

import (
	"encoding/json"
	"fmt"

	"github.com/oakmont-systems/futures-engine/src/eventmodels"
)

// Inbound frames are single-character tagged, SockJS style.
const (
	frameTagReady     = 'o'
	frameTagHeartbeat = 'h'
	frameTagArray     = 'a'
	frameTagData      = 'd'
	frameTagClose     = 'c'
)

// envelopeDTO is one response or push envelope. Responses carry the status
// and the id of the request they answer; push events carry an event kind and
// a data payload.
type envelopeDTO struct {
	Status    int             `json:"s"`
	RequestID int64           `json:"i"`
	Event     string          `json:"e"`
	Data      json.RawMessage `json:"d"`
}

type pushPayloadDTO struct {
	EntityType string          `json:"entityType"`
	EventType  string          `json:"eventType"`
	Entity     json.RawMessage `json:"entity"`
}

func decodeEnvelopes(payload []byte) ([]envelopeDTO, error) {
	var envelopes []envelopeDTO
	if err := json.Unmarshal(payload, &envelopes); err != nil {
		return nil, fmt.Errorf("decodeEnvelopes: failed to parse frame payload: %w", err)
	}

	return envelopes, nil
}

func decodeEnvelope(payload []byte) (envelopeDTO, error) {
	var envelope envelopeDTO
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return envelopeDTO{}, fmt.Errorf("decodeEnvelope: failed to parse frame payload: %w", err)
	}

	return envelope, nil
}

// toBrokerEvent normalizes a push payload into the canonical event shape. The
// rest of the engine never sees raw wire fields.
func toBrokerEvent(payload pushPayloadDTO) (*eventmodels.BrokerEvent, error) {
	event := &eventmodels.BrokerEvent{
		EntityType: payload.EntityType,
		EventType:  payload.EventType,
		Raw:        payload.Entity,
	}

	switch payload.EntityType {
	case eventmodels.EntityTypeOrder:
		var dto eventmodels.BrokerOrderDTO
		if err := json.Unmarshal(payload.Entity, &dto); err != nil {
			return nil, fmt.Errorf("toBrokerEvent: failed to parse order entity: %w", err)
		}
		event.Order = &dto
	case eventmodels.EntityTypeFill:
		var dto eventmodels.FillDTO
		if err := json.Unmarshal(payload.Entity, &dto); err != nil {
			return nil, fmt.Errorf("toBrokerEvent: failed to parse fill entity: %w", err)
		}
		event.Fill = &dto
	case eventmodels.EntityTypePosition:
		var dto eventmodels.PositionDTO
		if err := json.Unmarshal(payload.Entity, &dto); err != nil {
			return nil, fmt.Errorf("toBrokerEvent: failed to parse position entity: %w", err)
		}
		event.Position = &dto
	case eventmodels.EntityTypeOrderStrategy:
		var dto eventmodels.OrderStrategyDTO
		if err := json.Unmarshal(payload.Entity, &dto); err != nil {
			return nil, fmt.Errorf("toBrokerEvent: failed to parse order strategy entity: %w", err)
		}
		event.Strategy = &dto
	case eventmodels.EntityTypeCashBalance:
		var dto eventmodels.CashBalanceDTO
		if err := json.Unmarshal(payload.Entity, &dto); err != nil {
			return nil, fmt.Errorf("toBrokerEvent: failed to parse cash balance entity: %w", err)
		}
		event.Balance = &dto
	default:
		return nil, fmt.Errorf("toBrokerEvent: unknown entity type %q", payload.EntityType)
	}

	return event, nil
}

// requestFrame builds the outbound wire frame: endpoint, request id, query
// string and body separated by newlines.
func requestFrame(endpoint string, requestID int64, query, body string) []byte {
	return []byte(fmt.Sprintf("%s\n%d\n%s\n%s", endpoint, requestID, query, body))
}
