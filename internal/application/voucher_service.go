// Package application содержит прикладные сервисы команд над ваучерами.
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akriventsev/vouchers/internal/core"
	"github.com/akriventsev/vouchers/internal/domain"
	"github.com/akriventsev/vouchers/internal/events"
	"github.com/akriventsev/vouchers/internal/eventsourcing"
	"github.com/akriventsev/vouchers/internal/observability"
	"github.com/akriventsev/vouchers/internal/readmodel"
)

// Количество попыток выполнения команды при конфликте версий
const conflictRetryAttempts = 3

// IssueVoucherCommand команда выпуска ваучера
type IssueVoucherCommand struct {
	OperatorIdentifier string
	EstateID           uuid.UUID
	TransactionID      uuid.UUID
	Value              float64
	RecipientEmail     string
	RecipientMobile    string
	IssuedDateTime     time.Time
}

// IssueVoucherResult результат выпуска ваучера
type IssueVoucherResult struct {
	VoucherID      uuid.UUID
	VoucherCode    string
	ExpiryDateTime time.Time
}

// RedeemVoucherCommand команда погашения ваучера по коду
type RedeemVoucherCommand struct {
	EstateID         uuid.UUID
	VoucherCode      string
	RedeemedDateTime time.Time
}

// RedeemVoucherResult результат погашения ваучера
type RedeemVoucherResult struct {
	VoucherID        uuid.UUID
	VoucherCode      string
	Value            float64
	ExpiryDateTime   time.Time
	RedeemedDateTime time.Time
}

// VoucherService прикладной сервис команд. Агрегат загружается полным
// replay'ем потока, команда валидируется машиной состояний, новые
// события пишутся в журнал под expected version и затем публикуются
// в шину и внешний брокер.
type VoucherService struct {
	repository *eventsourcing.Repository[*domain.VoucherAggregate]
	queries    *readmodel.QueryManager
	bus        events.Publisher
	external   events.Publisher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewVoucherService создает новый сервис команд; metrics может быть nil
func NewVoucherService(
	repository *eventsourcing.Repository[*domain.VoucherAggregate],
	queries *readmodel.QueryManager,
	bus events.Publisher,
	external events.Publisher,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *VoucherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VoucherService{
		repository: repository,
		queries:    queries,
		bus:        bus,
		external:   external,
		metrics:    metrics,
		logger:     logger,
	}
}

// IssueVoucher выпускает новый ваучер и возвращает его код и срок
// действия. Идентификатор агрегата генерируется сервисом: команда
// выпуска не несет ID.
func (s *VoucherService) IssueVoucher(ctx context.Context, cmd IssueVoucherCommand) (result IssueVoucherResult, err error) {
	start := time.Now()
	defer func() { s.recordCommand(ctx, "IssueVoucher", start, err) }()

	voucherID := uuid.New()

	aggregate, err := s.repository.GetLatestVersion(ctx, voucherID.String())
	if err != nil {
		return IssueVoucherResult{}, err
	}

	if err := aggregate.Issue(voucherID, cmd.OperatorIdentifier, cmd.EstateID, cmd.TransactionID,
		cmd.IssuedDateTime, cmd.Value, cmd.RecipientEmail, cmd.RecipientMobile); err != nil {
		return IssueVoucherResult{}, err
	}

	if err := s.commit(ctx, aggregate); err != nil {
		return IssueVoucherResult{}, err
	}

	voucher := aggregate.GetVoucher()
	s.logger.Info("voucher issued",
		zap.String("voucher_id", voucher.VoucherID.String()),
		zap.String("estate_id", voucher.EstateID.String()),
		zap.Float64("value", voucher.Value))

	return IssueVoucherResult{
		VoucherID:      voucher.VoucherID,
		VoucherCode:    voucher.VoucherCode,
		ExpiryDateTime: voucher.ExpiryDateTime,
	}, nil
}

// RedeemVoucher погашает ваучер по коду в рамках estate. Код
// разрешается в идентификатор агрегата через read-модель, поэтому
// погашение сразу после выпуска может вернуть NOT_FOUND, пока
// проектор не догнал журнал. Конфликт версий повторяется ограниченное
// число раз с перечитыванием агрегата.
func (s *VoucherService) RedeemVoucher(ctx context.Context, cmd RedeemVoucherCommand) (result RedeemVoucherResult, err error) {
	start := time.Now()
	defer func() { s.recordCommand(ctx, "RedeemVoucher", start, err) }()

	record, err := s.queries.GetVoucherByCode(ctx, cmd.EstateID, cmd.VoucherCode)
	if err != nil {
		return RedeemVoucherResult{}, err
	}

	var lastErr error
	for attempt := 1; attempt <= conflictRetryAttempts; attempt++ {
		aggregate, err := s.repository.GetLatestVersion(ctx, record.VoucherID.String())
		if err != nil {
			return RedeemVoucherResult{}, err
		}
		if !aggregate.IsIssued() {
			return RedeemVoucherResult{}, core.NewError(core.CodeNotFound,
				"voucher %s not found", record.VoucherID)
		}

		if err := aggregate.Redeem(cmd.RedeemedDateTime); err != nil {
			return RedeemVoucherResult{}, err
		}

		if err := s.commit(ctx, aggregate); err != nil {
			if core.IsConcurrencyConflict(err) {
				lastErr = err
				s.logger.Warn("voucher stream version conflict, retrying",
					zap.String("voucher_id", record.VoucherID.String()),
					zap.Int("attempt", attempt))
				continue
			}
			return RedeemVoucherResult{}, err
		}

		voucher := aggregate.GetVoucher()
		s.logger.Info("voucher redeemed",
			zap.String("voucher_id", voucher.VoucherID.String()),
			zap.String("estate_id", voucher.EstateID.String()))

		return RedeemVoucherResult{
			VoucherID:        voucher.VoucherID,
			VoucherCode:      voucher.VoucherCode,
			Value:            voucher.Value,
			ExpiryDateTime:   voucher.ExpiryDateTime,
			RedeemedDateTime: voucher.RedeemedDateTime,
		}, nil
	}

	return RedeemVoucherResult{}, fmt.Errorf("redeem of voucher %s failed after %d attempts: %w",
		record.VoucherID, conflictRetryAttempts, lastErr)
}

// commit пишет несохраненные события в журнал и публикует их. Журнал
// остается источником истины: ошибка внешнего брокера логируется, но
// команду не проваливает, ошибка внутренней шины проваливает.
func (s *VoucherService) commit(ctx context.Context, aggregate *domain.VoucherAggregate) error {
	pending := make([]events.Event, len(aggregate.UncommittedEvents()))
	copy(pending, aggregate.UncommittedEvents())

	if err := s.repository.Save(ctx, aggregate); err != nil {
		return err
	}

	for _, event := range pending {
		if s.metrics != nil {
			s.metrics.RecordEvent(ctx, event.EventType())
		}
		if err := s.bus.Publish(ctx, event); err != nil {
			return fmt.Errorf("failed to publish %s: %w", event.EventType(), err)
		}
		if s.external != nil {
			if err := s.external.Publish(ctx, event); err != nil {
				s.logger.Warn("external publish failed, event remains in journal",
					zap.String("event_type", event.EventType()),
					zap.Error(err))
			}
		}
	}
	return nil
}

func (s *VoucherService) recordCommand(ctx context.Context, name string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordCommand(ctx, name, time.Since(start), err == nil)
}
