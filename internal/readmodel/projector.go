package readmodel

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/akriventsev/vouchers/internal/domain"
	"github.com/akriventsev/vouchers/internal/events"
	"github.com/akriventsev/vouchers/internal/eventsourcing"
)

// ProjectionName имя проекции ваучеров в checkpoint store
const ProjectionName = "voucher-read-model"

// Projector сворачивает доменные события в read-модель. Потребляет тот же
// поток, что и обработчик нотификаций, независимо от него; повторная
// доставка события безопасна.
type Projector struct {
	store  Store
	logger *zap.Logger
}

// NewProjector создает новый проектор
func NewProjector(store Store, logger *zap.Logger) *Projector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Projector{store: store, logger: logger}
}

// Register подписывает проектор на события шины
func (p *Projector) Register(bus events.Subscriber) error {
	if err := bus.Subscribe(domain.EventTypeVoucherIssued,
		events.HandlerFunc(domain.EventTypeVoucherIssued, p.Handle)); err != nil {
		return err
	}
	return bus.Subscribe(domain.EventTypeVoucherRedeemed,
		events.HandlerFunc(domain.EventTypeVoucherRedeemed, p.Handle))
}

// Handle применяет одно доменное событие к read-модели
func (p *Projector) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case *domain.VoucherIssuedEvent:
		return p.applyIssued(ctx, e)
	case *domain.VoucherRedeemedEvent:
		return p.applyRedeemed(ctx, e)
	default:
		// Чужие события проекцию не интересуют
		return nil
	}
}

func (p *Projector) applyIssued(ctx context.Context, e *domain.VoucherIssuedEvent) error {
	record := VoucherRecord{
		VoucherID:      e.VoucherID,
		EstateID:       e.EstateID,
		TransactionID:  e.TransactionID,
		VoucherCode:    e.VoucherCode,
		Value:          e.Value,
		IssuedDateTime: e.IssuedDateTime,
		ExpiryDateTime: e.ExpiryDateTime,
	}

	if err := p.store.InsertVoucher(ctx, record); err != nil {
		return fmt.Errorf("failed to project issued voucher %s: %w", e.VoucherID, err)
	}

	p.logger.Debug("voucher projected",
		zap.String("voucher_id", e.VoucherID.String()),
		zap.String("voucher_code", e.VoucherCode))
	return nil
}

func (p *Projector) applyRedeemed(ctx context.Context, e *domain.VoucherRedeemedEvent) error {
	if err := p.store.MarkVoucherRedeemed(ctx, e.VoucherID, e.RedeemedDateTime); err != nil {
		return fmt.Errorf("failed to project redeemed voucher %s: %w", e.VoucherID, err)
	}

	p.logger.Debug("voucher redemption projected",
		zap.String("voucher_id", e.VoucherID.String()))
	return nil
}

// CatchUp доводит проекцию до текущего края журнала, продолжая с
// сохраненной позиции. Используется при старте сервиса: локальная шина
// не переживает рестарт, пропущенные события добираются из журнала.
func (p *Projector) CatchUp(ctx context.Context, log eventsourcing.EventStore, checkpoints eventsourcing.CheckpointStore) error {
	position, err := checkpoints.GetCheckpoint(ctx, ProjectionName)
	if err != nil {
		return fmt.Errorf("failed to read checkpoint: %w", err)
	}

	ch, err := log.GetAllEvents(ctx, position+1)
	if err != nil {
		return fmt.Errorf("failed to read event log: %w", err)
	}

	for stored := range ch {
		if stored.EventData == nil {
			continue
		}
		if err := p.Handle(ctx, stored.EventData); err != nil {
			return fmt.Errorf("failed to project event at position %d: %w", stored.Position, err)
		}
		if err := checkpoints.SaveCheckpoint(ctx, ProjectionName, stored.Position); err != nil {
			return fmt.Errorf("failed to save checkpoint: %w", err)
		}
	}

	return ctx.Err()
}

// Rebuild перестраивает проекцию с нуля: очищает спроецированные записи,
// сбрасывает позицию и сворачивает журнал заново
func (p *Projector) Rebuild(ctx context.Context, log eventsourcing.EventStore, checkpoints eventsourcing.CheckpointStore) error {
	if err := p.store.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset projection: %w", err)
	}
	if err := checkpoints.DeleteCheckpoint(ctx, ProjectionName); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	if err := p.CatchUp(ctx, log, checkpoints); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
