package application

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/akriventsev/vouchers/internal/core"
	"github.com/akriventsev/vouchers/internal/domain"
	"github.com/akriventsev/vouchers/internal/events"
	"github.com/akriventsev/vouchers/internal/eventsourcing"
	"github.com/akriventsev/vouchers/internal/readmodel"
)

var issuedAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	published []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.published = append(p.published, event)
	return nil
}

type serviceFixture struct {
	service    *VoucherService
	eventStore *eventsourcing.InMemoryEventStore
	readStore  *readmodel.InMemoryStore
	projector  *readmodel.Projector
	bus        *recordingPublisher
}

func newServiceFixture() *serviceFixture {
	eventStore := eventsourcing.NewInMemoryEventStore()
	readStore := readmodel.NewInMemoryStore()
	bus := &recordingPublisher{}

	repository := eventsourcing.NewRepository(eventStore,
		domain.NewVoucherFactory(domain.DefaultCodeLength, domain.DefaultExpiryDays))
	queries := readmodel.NewQueryManager(readStore)

	return &serviceFixture{
		service:    NewVoucherService(repository, queries, bus, nil, nil, nil),
		eventStore: eventStore,
		readStore:  readStore,
		projector:  readmodel.NewProjector(readStore, nil),
		bus:        bus,
	}
}

// project прогоняет опубликованные события через проектор, имитируя
// доставку по шине
func (f *serviceFixture) project(t *testing.T) {
	t.Helper()
	for _, event := range f.bus.published {
		if err := f.projector.Handle(context.Background(), event); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
	}
	f.bus.published = nil
}

func issueCommand(estateID uuid.UUID) IssueVoucherCommand {
	return IssueVoucherCommand{
		OperatorIdentifier: "op-1",
		EstateID:           estateID,
		TransactionID:      uuid.New(),
		Value:              25.0,
		RecipientEmail:     "buyer@example.com",
		IssuedDateTime:     issuedAt,
	}
}

func TestVoucherService_IssueVoucher(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()

	result, err := f.service.IssueVoucher(ctx, issueCommand(uuid.New()))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.VoucherID == uuid.Nil {
		t.Error("Expected generated voucher ID")
	}
	if len(result.VoucherCode) != domain.DefaultCodeLength {
		t.Errorf("Expected code of length %d, got %q", domain.DefaultCodeLength, result.VoucherCode)
	}
	wantExpiry := issuedAt.AddDate(0, 0, domain.DefaultExpiryDays)
	if !result.ExpiryDateTime.Equal(wantExpiry) {
		t.Errorf("Expected expiry %s, got %s", wantExpiry, result.ExpiryDateTime)
	}

	// Событие записано в журнал и опубликовано в шину
	stored, err := f.eventStore.GetEvents(ctx, result.VoucherID.String(), 0)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(stored) != 1 || stored[0].EventType != domain.EventTypeVoucherIssued {
		t.Errorf("Expected one %s event in journal, got %+v", domain.EventTypeVoucherIssued, stored)
	}
	if len(f.bus.published) != 1 {
		t.Errorf("Expected 1 published event, got %d", len(f.bus.published))
	}
}

func TestVoucherService_IssueVoucherInvalidValue(t *testing.T) {
	f := newServiceFixture()

	cmd := issueCommand(uuid.New())
	cmd.Value = 0
	if _, err := f.service.IssueVoucher(context.Background(), cmd); !core.IsInvalidState(err) {
		t.Fatalf("Expected INVALID_STATE, got %v", err)
	}
	if len(f.bus.published) != 0 {
		t.Error("Expected no events for rejected command")
	}
}

func TestVoucherService_RedeemVoucher(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	estateID := uuid.New()

	issued, err := f.service.IssueVoucher(ctx, issueCommand(estateID))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	f.project(t)

	redeemedAt := issuedAt.AddDate(0, 0, 5)
	result, err := f.service.RedeemVoucher(ctx, RedeemVoucherCommand{
		EstateID:         estateID,
		VoucherCode:      issued.VoucherCode,
		RedeemedDateTime: redeemedAt,
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.VoucherID != issued.VoucherID {
		t.Errorf("Expected voucher ID %s, got %s", issued.VoucherID, result.VoucherID)
	}
	if !result.RedeemedDateTime.Equal(redeemedAt) {
		t.Errorf("Expected redeemed at %s, got %s", redeemedAt, result.RedeemedDateTime)
	}

	stored, err := f.eventStore.GetEvents(ctx, issued.VoucherID.String(), 0)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(stored) != 2 {
		t.Errorf("Expected 2 events in journal, got %d", len(stored))
	}
}

func TestVoucherService_RedeemUnknownCode(t *testing.T) {
	f := newServiceFixture()

	_, err := f.service.RedeemVoucher(context.Background(), RedeemVoucherCommand{
		EstateID:         uuid.New(),
		VoucherCode:      "0000000000",
		RedeemedDateTime: issuedAt,
	})
	if !core.IsNotFound(err) {
		t.Fatalf("Expected NOT_FOUND, got %v", err)
	}
}

func TestVoucherService_RedeemTwiceFails(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	estateID := uuid.New()

	issued, err := f.service.IssueVoucher(ctx, issueCommand(estateID))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	f.project(t)

	cmd := RedeemVoucherCommand{
		EstateID:         estateID,
		VoucherCode:      issued.VoucherCode,
		RedeemedDateTime: issuedAt.AddDate(0, 0, 1),
	}
	if _, err := f.service.RedeemVoucher(ctx, cmd); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := f.service.RedeemVoucher(ctx, cmd); !core.IsInvalidState(err) {
		t.Fatalf("Expected INVALID_STATE on second redeem, got %v", err)
	}
}

func TestVoucherService_RedeemExpiredFails(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	estateID := uuid.New()

	issued, err := f.service.IssueVoucher(ctx, issueCommand(estateID))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	f.project(t)

	_, err = f.service.RedeemVoucher(ctx, RedeemVoucherCommand{
		EstateID:         estateID,
		VoucherCode:      issued.VoucherCode,
		RedeemedDateTime: issuedAt.AddDate(0, 0, domain.DefaultExpiryDays+1),
	})
	if !core.IsInvalidState(err) {
		t.Fatalf("Expected INVALID_STATE for expired voucher, got %v", err)
	}
}
