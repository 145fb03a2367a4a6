package eventhandling

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akriventsev/vouchers/internal/core"
	"github.com/akriventsev/vouchers/internal/domain"
	"github.com/akriventsev/vouchers/internal/events"
	"github.com/akriventsev/vouchers/internal/notification"
	"github.com/akriventsev/vouchers/internal/readmodel"
)

type fakeRepository struct {
	aggregate *domain.VoucherAggregate
}

func (r *fakeRepository) GetLatestVersion(ctx context.Context, aggregateID string) (*domain.VoucherAggregate, error) {
	return r.aggregate, nil
}

type fakeTokenSource struct {
	token notification.Token
	err   error
	calls int
}

func (s *fakeTokenSource) GetToken(ctx context.Context) (notification.Token, error) {
	s.calls++
	return s.token, s.err
}

type fakeGateway struct {
	sent  []notification.Message
	token string
	err   error
}

func (g *fakeGateway) Send(ctx context.Context, message notification.Message, accessToken string) error {
	if g.err != nil {
		return g.err
	}
	g.sent = append(g.sent, message)
	g.token = accessToken
	return nil
}

type handlerFixture struct {
	handler *VoucherDomainEventHandler
	event   *domain.VoucherIssuedEvent
	store   *readmodel.InMemoryStore
	tokens  *fakeTokenSource
	gateway *fakeGateway
}

// newHandlerFixture собирает обработчик поверх fake-инфраструктуры:
// агрегат с одним событием выпуска, read-модель с контекстом транзакции
// и контракта, временные файлы шаблонов
func newHandlerFixture(t *testing.T, email, mobile string, withContext bool) *handlerFixture {
	t.Helper()

	issuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	estateID := uuid.New()
	transactionID := uuid.New()
	voucherID := uuid.New()

	aggregate := domain.NewVoucherAggregate(voucherID.String())
	require.NoError(t, aggregate.Issue(voucherID, "op-1", estateID, transactionID,
		issuedAt, 25.0, email, mobile))
	event := aggregate.UncommittedEvents()[0].(*domain.VoucherIssuedEvent)
	aggregate.ClearUncommittedEvents()

	store := readmodel.NewInMemoryStore()
	if withContext {
		contractID := uuid.New()
		require.NoError(t, store.UpsertContract(context.Background(), readmodel.ContractRecord{
			ContractID:  contractID,
			EstateID:    estateID,
			Description: "Operator Contract",
		}))
		require.NoError(t, store.UpsertTransaction(context.Background(), readmodel.TransactionRecord{
			TransactionID: transactionID,
			EstateID:      estateID,
			ContractID:    contractID,
		}))
	}

	dir := t.TempDir()
	emailPath := filepath.Join(dir, "email.html")
	smsPath := filepath.Join(dir, "sms.txt")
	require.NoError(t, os.WriteFile(emailPath, []byte("Code [VoucherCode], value [VoucherValue]"), 0o644))
	require.NoError(t, os.WriteFile(smsPath, []byte("SMS code [VoucherCode]"), 0o644))

	tokens := &fakeTokenSource{token: notification.Token{AccessToken: "abc"}}
	gateway := &fakeGateway{}

	handler := NewVoucherDomainEventHandler(
		&fakeRepository{aggregate: aggregate},
		readmodel.NewQueryManager(store),
		notification.NewTemplateRenderer(),
		tokens,
		gateway,
		TemplateConfig{
			EmailTemplatePath: emailPath,
			SMSTemplatePath:   smsPath,
			EmailSubject:      "Voucher Issued",
		},
		nil,
	)

	return &handlerFixture{
		handler: handler,
		event:   event,
		store:   store,
		tokens:  tokens,
		gateway: gateway,
	}
}

func TestVoucherDomainEventHandler_SendsEmail(t *testing.T) {
	f := newHandlerFixture(t, "buyer@example.com", "", true)

	require.NoError(t, f.handler.Handle(context.Background(), f.event))

	require.Len(t, f.gateway.sent, 1)
	message := f.gateway.sent[0]
	assert.Equal(t, notification.ChannelEmail, message.Channel)
	assert.Equal(t, "buyer@example.com", message.Recipient)
	assert.Equal(t, "Voucher Issued", message.Subject)
	assert.Contains(t, message.Body, f.event.VoucherCode)
	assert.Contains(t, message.Body, "25.00")
	assert.Equal(t, "abc", f.gateway.token)
}

func TestVoucherDomainEventHandler_SMSFallback(t *testing.T) {
	f := newHandlerFixture(t, "", "+27831234567", true)

	require.NoError(t, f.handler.Handle(context.Background(), f.event))

	require.Len(t, f.gateway.sent, 1)
	message := f.gateway.sent[0]
	assert.Equal(t, notification.ChannelSMS, message.Channel)
	assert.Equal(t, "+27831234567", message.Recipient)
	assert.Contains(t, message.Body, f.event.VoucherCode)
}

func TestVoucherDomainEventHandler_EmailPreferredOverSMS(t *testing.T) {
	f := newHandlerFixture(t, "buyer@example.com", "+27831234567", true)

	require.NoError(t, f.handler.Handle(context.Background(), f.event))

	require.Len(t, f.gateway.sent, 1)
	assert.Equal(t, notification.ChannelEmail, f.gateway.sent[0].Channel)
}

func TestVoucherDomainEventHandler_SkipsOnMissingContext(t *testing.T) {
	f := newHandlerFixture(t, "buyer@example.com", "", false)

	// Контекст транзакции не спроецирован: нотификация пропускается
	// без ошибки, redelivery не требуется
	require.NoError(t, f.handler.Handle(context.Background(), f.event))

	assert.Empty(t, f.gateway.sent)
	assert.Zero(t, f.tokens.calls)
}

func TestVoucherDomainEventHandler_NoRecipient(t *testing.T) {
	f := newHandlerFixture(t, "", "", true)

	require.NoError(t, f.handler.Handle(context.Background(), f.event))

	assert.Empty(t, f.gateway.sent)
	assert.Zero(t, f.tokens.calls)
}

func TestVoucherDomainEventHandler_TokenFailurePropagates(t *testing.T) {
	f := newHandlerFixture(t, "buyer@example.com", "", true)
	f.tokens.err = core.NewError(core.CodeAuthenticationFailed, "provider down")

	err := f.handler.Handle(context.Background(), f.event)
	require.Error(t, err)
	assert.True(t, core.IsAuthenticationFailed(err))
	assert.Empty(t, f.gateway.sent)
}

func TestVoucherDomainEventHandler_DeliveryFailurePropagates(t *testing.T) {
	f := newHandlerFixture(t, "buyer@example.com", "", true)
	f.gateway.err = core.NewError(core.CodeDeliveryFailed, "gateway down")

	err := f.handler.Handle(context.Background(), f.event)
	require.Error(t, err)
	assert.True(t, core.IsDeliveryFailed(err))
}

func TestRegistry_ClosedSet(t *testing.T) {
	f := newHandlerFixture(t, "buyer@example.com", "", true)
	registry := NewRegistry(f.handler)

	assert.NotNil(t, registry.HandlerFor(domain.EventTypeVoucherIssued))
	assert.Nil(t, registry.HandlerFor(domain.EventTypeVoucherRedeemed))
	assert.Nil(t, registry.HandlerFor("unknown.type"))
}

var _ events.Handler = (*VoucherDomainEventHandler)(nil)
