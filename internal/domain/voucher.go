package domain

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/akriventsev/vouchers/internal/core"
	"github.com/akriventsev/vouchers/internal/events"
	"github.com/akriventsev/vouchers/internal/eventsourcing"
)

// VoucherState состояние ваучера
type VoucherState string

const (
	StateNotIssued VoucherState = "NotIssued"
	StateIssued    VoucherState = "Issued"
	StateRedeemed  VoucherState = "Redeemed"
	StateExpired   VoucherState = "Expired"
)

// Параметры выпуска по умолчанию; переопределяются из конфигурации
// при создании агрегата через фабрику.
const (
	DefaultCodeLength = 10
	DefaultExpiryDays = 30
)

const codeAlphabet = "0123456789"

// VoucherAggregate Event Sourced агрегат ваучера. Чистая машина состояний:
// никакого I/O, время всегда передается вызывающим.
type VoucherAggregate struct {
	*eventsourcing.AggregateRoot

	voucherID          uuid.UUID
	estateID           uuid.UUID
	transactionID      uuid.UUID
	operatorIdentifier string
	voucherCode        string
	value              float64
	issuedDateTime     time.Time
	expiryDateTime     time.Time
	recipientEmail     string
	recipientMobile    string
	redeemedDateTime   time.Time
	state              VoucherState

	codeLength int
	expiryDays int
}

// NewVoucherAggregate создает пустой агрегат ваучера с политикой
// выпуска по умолчанию
func NewVoucherAggregate(id string) *VoucherAggregate {
	v := &VoucherAggregate{
		AggregateRoot: eventsourcing.NewAggregateRoot(id),
		state:         StateNotIssued,
		codeLength:    DefaultCodeLength,
		expiryDays:    DefaultExpiryDays,
	}
	v.SetApplier(v)
	return v
}

// NewVoucherFactory возвращает фабрику агрегатов с заданной политикой
// выпуска: длиной кода и сроком действия в днях
func NewVoucherFactory(codeLength, expiryDays int) func(id string) *VoucherAggregate {
	return func(id string) *VoucherAggregate {
		v := NewVoucherAggregate(id)
		if codeLength > 0 {
			v.codeLength = codeLength
		}
		if expiryDays > 0 {
			v.expiryDays = expiryDays
		}
		return v
	}
}

// Issue выпускает ваучер. Генерирует код и срок действия; повторный
// выпуск недопустим.
func (v *VoucherAggregate) Issue(voucherID uuid.UUID, operatorIdentifier string, estateID, transactionID uuid.UUID,
	issuedAt time.Time, value float64, recipientEmail, recipientMobile string) error {

	if v.state != StateNotIssued {
		return core.NewError(core.CodeInvalidState, "voucher %s has already been issued", v.ID())
	}
	if value <= 0 {
		return core.NewError(core.CodeInvalidState, "voucher value must be positive, got %v", value)
	}
	if estateID == uuid.Nil {
		return core.NewError(core.CodeInvalidState, "estate id is required")
	}
	if transactionID == uuid.Nil {
		return core.NewError(core.CodeInvalidState, "transaction id is required")
	}

	event := &VoucherIssuedEvent{
		ID:                 uuid.NewString(),
		VoucherID:          voucherID,
		EstateID:           estateID,
		TransactionID:      transactionID,
		OperatorIdentifier: operatorIdentifier,
		VoucherCode:        generateVoucherCode(v.codeLength),
		Value:              value,
		IssuedDateTime:     issuedAt,
		ExpiryDateTime:     issuedAt.AddDate(0, 0, v.expiryDays),
		RecipientEmail:     recipientEmail,
		RecipientMobile:    recipientMobile,
	}

	return v.RaiseEvent(event)
}

// Redeem погашает ваучер. Допустимо только из состояния Issued и до
// истечения срока действия: просроченный ваучер не погашается, даже
// если явного перехода в Expired не было.
func (v *VoucherAggregate) Redeem(redeemedAt time.Time) error {
	if v.state != StateIssued {
		return core.NewError(core.CodeInvalidState, "voucher %s cannot be redeemed from state %s", v.ID(), v.state)
	}
	if redeemedAt.After(v.expiryDateTime) {
		return core.NewError(core.CodeInvalidState, "voucher %s expired at %s", v.ID(), v.expiryDateTime.Format(time.RFC3339))
	}

	event := &VoucherRedeemedEvent{
		ID:               uuid.NewString(),
		VoucherID:        v.voucherID,
		EstateID:         v.estateID,
		RedeemedDateTime: redeemedAt,
	}

	return v.RaiseEvent(event)
}

// Apply применяет событие при replay. Идемпотентен относительно
// повторного применения одного и того же упорядоченного потока.
func (v *VoucherAggregate) Apply(event events.Event) error {
	switch e := event.(type) {
	case *VoucherIssuedEvent:
		v.voucherID = e.VoucherID
		v.estateID = e.EstateID
		v.transactionID = e.TransactionID
		v.operatorIdentifier = e.OperatorIdentifier
		v.voucherCode = e.VoucherCode
		v.value = e.Value
		v.issuedDateTime = e.IssuedDateTime
		v.expiryDateTime = e.ExpiryDateTime
		v.recipientEmail = e.RecipientEmail
		v.recipientMobile = e.RecipientMobile
		v.state = StateIssued
	case *VoucherRedeemedEvent:
		v.redeemedDateTime = e.RedeemedDateTime
		v.state = StateRedeemed
	}
	return nil
}

// IsIssued возвращает true, если ваучер выпущен
func (v *VoucherAggregate) IsIssued() bool {
	return v.state != StateNotIssued
}

// StateAt возвращает состояние на указанный момент: выпущенный, но не
// погашенный ваучер после срока действия считается просроченным
func (v *VoucherAggregate) StateAt(at time.Time) VoucherState {
	if v.state == StateIssued && at.After(v.expiryDateTime) {
		return StateExpired
	}
	return v.state
}

// Voucher модель текущего состояния агрегата
type Voucher struct {
	VoucherID          uuid.UUID
	EstateID           uuid.UUID
	TransactionID      uuid.UUID
	OperatorIdentifier string
	VoucherCode        string
	Value              float64
	IssuedDateTime     time.Time
	ExpiryDateTime     time.Time
	RecipientEmail     string
	RecipientMobile    string
	RedeemedDateTime   time.Time
	State              VoucherState
}

// GetVoucher возвращает снимок состояния агрегата
func (v *VoucherAggregate) GetVoucher() Voucher {
	return Voucher{
		VoucherID:          v.voucherID,
		EstateID:           v.estateID,
		TransactionID:      v.transactionID,
		OperatorIdentifier: v.operatorIdentifier,
		VoucherCode:        v.voucherCode,
		Value:              v.value,
		IssuedDateTime:     v.issuedDateTime,
		ExpiryDateTime:     v.expiryDateTime,
		RecipientEmail:     v.recipientEmail,
		RecipientMobile:    v.recipientMobile,
		RedeemedDateTime:   v.redeemedDateTime,
		State:              v.state,
	}
}

// generateVoucherCode генерирует код ваучера. Уникальность в рамках
// estate обеспечивается на уровне проекции уникальным индексом.
func generateVoucherCode(length int) string {
	code := make([]byte, length)
	for i := range code {
		code[i] = codeAlphabet[rand.IntN(len(codeAlphabet))]
	}
	return string(code)
}
