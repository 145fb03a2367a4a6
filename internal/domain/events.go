// Package domain содержит агрегат ваучера и его доменные события.
package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/akriventsev/vouchers/internal/events"
)

// Типы доменных событий ваучера. Набор закрыт: диспетчеризация по типу
// выполняется явным switch без рефлексии.
const (
	EventTypeVoucherIssued   = "voucher.issued"
	EventTypeVoucherRedeemed = "voucher.redeemed"
)

// VoucherIssuedEvent факт выпуска ваучера
type VoucherIssuedEvent struct {
	ID                 string    `json:"event_id"`
	VoucherID          uuid.UUID `json:"voucher_id"`
	EstateID           uuid.UUID `json:"estate_id"`
	TransactionID      uuid.UUID `json:"transaction_id"`
	OperatorIdentifier string    `json:"operator_identifier"`
	VoucherCode        string    `json:"voucher_code"`
	Value              float64   `json:"value"`
	IssuedDateTime     time.Time `json:"issued_date_time"`
	ExpiryDateTime     time.Time `json:"expiry_date_time"`
	RecipientEmail     string    `json:"recipient_email,omitempty"`
	RecipientMobile    string    `json:"recipient_mobile,omitempty"`
}

func (e *VoucherIssuedEvent) EventID() string       { return e.ID }
func (e *VoucherIssuedEvent) EventType() string     { return EventTypeVoucherIssued }
func (e *VoucherIssuedEvent) AggregateID() string   { return e.VoucherID.String() }
func (e *VoucherIssuedEvent) OccurredAt() time.Time { return e.IssuedDateTime }

// VoucherRedeemedEvent факт погашения ваучера
type VoucherRedeemedEvent struct {
	ID               string    `json:"event_id"`
	VoucherID        uuid.UUID `json:"voucher_id"`
	EstateID         uuid.UUID `json:"estate_id"`
	RedeemedDateTime time.Time `json:"redeemed_date_time"`
}

func (e *VoucherRedeemedEvent) EventID() string       { return e.ID }
func (e *VoucherRedeemedEvent) EventType() string     { return EventTypeVoucherRedeemed }
func (e *VoucherRedeemedEvent) AggregateID() string   { return e.VoucherID.String() }
func (e *VoucherRedeemedEvent) OccurredAt() time.Time { return e.RedeemedDateTime }

// EventDeserializer восстанавливает доменные события из JSON журнала
type EventDeserializer struct{}

// NewEventDeserializer создает десериализатор доменных событий
func NewEventDeserializer() *EventDeserializer {
	return &EventDeserializer{}
}

// DeserializeEvent десериализует JSON данные в конкретный тип события
func (d *EventDeserializer) DeserializeEvent(eventType string, data []byte) (events.Event, error) {
	switch eventType {
	case EventTypeVoucherIssued:
		var event VoucherIssuedEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", eventType, err)
		}
		return &event, nil
	case EventTypeVoucherRedeemed:
		var event VoucherRedeemedEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", eventType, err)
		}
		return &event, nil
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
}
