// Package eventhandling содержит обработчики устойчивых доменных событий.
package eventhandling

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akriventsev/vouchers/internal/core"
	"github.com/akriventsev/vouchers/internal/domain"
	"github.com/akriventsev/vouchers/internal/events"
	"github.com/akriventsev/vouchers/internal/notification"
	"github.com/akriventsev/vouchers/internal/readmodel"
)

// AggregateRepository источник авторитетного состояния агрегата
type AggregateRepository interface {
	GetLatestVersion(ctx context.Context, aggregateID string) (*domain.VoucherAggregate, error)
}

// ContextResolver доступ к справочным записям read-модели
type ContextResolver interface {
	GetTransactionContext(ctx context.Context, estateID, transactionID uuid.UUID) (readmodel.TransactionRecord, readmodel.ContractRecord, error)
}

// TokenSource выдает bearer-токен для вызова шлюза
type TokenSource interface {
	GetToken(ctx context.Context) (notification.Token, error)
}

// MessageSender отправляет готовую нотификацию
type MessageSender interface {
	Send(ctx context.Context, message notification.Message, accessToken string) error
}

// TemplateConfig пути к шаблонам и тема письма
type TemplateConfig struct {
	EmailTemplatePath string
	SMSTemplatePath   string
	EmailSubject      string
}

// VoucherDomainEventHandler реагирует на устойчивое событие выпуска
// ваучера отправкой нотификации получателю. Доставка событий
// at-least-once: обработчик не хранит состояния и безопасен при
// повторном вызове; шлюз вызывается не более одного раза за вызов.
type VoucherDomainEventHandler struct {
	repository AggregateRepository
	resolver   ContextResolver
	renderer   *notification.TemplateRenderer
	tokens     TokenSource
	gateway    MessageSender
	templates  TemplateConfig
	logger     *zap.Logger
}

// NewVoucherDomainEventHandler создает новый обработчик
func NewVoucherDomainEventHandler(
	repository AggregateRepository,
	resolver ContextResolver,
	renderer *notification.TemplateRenderer,
	tokens TokenSource,
	gateway MessageSender,
	templates TemplateConfig,
	logger *zap.Logger,
) *VoucherDomainEventHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VoucherDomainEventHandler{
		repository: repository,
		resolver:   resolver,
		renderer:   renderer,
		tokens:     tokens,
		gateway:    gateway,
		templates:  templates,
		logger:     logger,
	}
}

// EventType возвращает обрабатываемый тип события
func (h *VoucherDomainEventHandler) EventType() string {
	return domain.EventTypeVoucherIssued
}

// Handle обрабатывает событие выпуска ваучера.
//
// Состояние перечитывается из репозитория: авторитетные поля получателя
// могут отличаться от устаревшей копии в событии. Отсутствие записи
// транзакции/контракта не считается ошибкой: нотификация пропускается
// (политика SkipOnMissingContext). Ошибки токена и доставки
// пробрасываются наверх, redelivery принадлежит шине событий.
func (h *VoucherDomainEventHandler) Handle(ctx context.Context, event events.Event) error {
	issued, ok := event.(*domain.VoucherIssuedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type %s", event.EventType())
	}

	aggregate, err := h.repository.GetLatestVersion(ctx, issued.AggregateID())
	if err != nil {
		return fmt.Errorf("failed to load voucher %s: %w", issued.AggregateID(), err)
	}
	voucher := aggregate.GetVoucher()

	transaction, contract, err := h.resolver.GetTransactionContext(ctx, voucher.EstateID, voucher.TransactionID)
	if err != nil {
		if core.IsNotFound(err) {
			h.logger.Info("transaction context not projected yet, notification skipped",
				zap.String("voucher_id", voucher.VoucherID.String()),
				zap.String("transaction_id", voucher.TransactionID.String()))
			return nil
		}
		return fmt.Errorf("failed to resolve transaction context: %w", err)
	}

	message, ok, err := h.buildMessage(voucher, transaction, contract)
	if err != nil {
		return err
	}
	if !ok {
		// Выпуск без получателя валиден и нотификации не порождает
		h.logger.Debug("voucher has no recipient, nothing to send",
			zap.String("voucher_id", voucher.VoucherID.String()))
		return nil
	}

	token, err := h.tokens.GetToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire token: %w", err)
	}

	if err := h.gateway.Send(ctx, message, token.AccessToken); err != nil {
		return fmt.Errorf("failed to deliver notification: %w", err)
	}

	h.logger.Info("voucher notification sent",
		zap.String("voucher_id", voucher.VoucherID.String()),
		zap.String("channel", string(message.Channel)))
	return nil
}

// buildMessage выбирает канал и рендерит тело сообщения; возвращает
// false когда получатель не указан
func (h *VoucherDomainEventHandler) buildMessage(voucher domain.Voucher,
	transaction readmodel.TransactionRecord, contract readmodel.ContractRecord) (notification.Message, bool, error) {

	var channel notification.Channel
	var recipient, templatePath string

	switch {
	case voucher.RecipientEmail != "":
		channel = notification.ChannelEmail
		recipient = voucher.RecipientEmail
		templatePath = h.templates.EmailTemplatePath
	case voucher.RecipientMobile != "":
		channel = notification.ChannelSMS
		recipient = voucher.RecipientMobile
		templatePath = h.templates.SMSTemplatePath
	default:
		return notification.Message{}, false, nil
	}

	placeholders := map[string]string{
		"TransactionNumber":   transaction.TransactionID.String(),
		"OperatorName":        voucher.OperatorIdentifier,
		"ContractDescription": contract.Description,
		"VoucherCode":         voucher.VoucherCode,
		"VoucherValue":        fmt.Sprintf("%.2f", voucher.Value),
		"VoucherExpiry":       voucher.ExpiryDateTime.Format("2006-01-02"),
	}

	body, err := h.renderer.Render(templatePath, placeholders)
	if err != nil {
		// Шаблон лежит в локальном файле, его отсутствие это ошибка конфигурации
		return notification.Message{}, false, fmt.Errorf("failed to render notification template: %w", err)
	}

	return notification.Message{
		Channel:   channel,
		Recipient: recipient,
		Subject:   h.templates.EmailSubject,
		Body:      body,
	}, true, nil
}
