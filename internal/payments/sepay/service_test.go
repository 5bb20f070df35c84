package sepay

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mechastore/mecha-backend/internal/notifications"
	"github.com/mechastore/mecha-backend/internal/orders"
	"github.com/mechastore/mecha-backend/pkg/config"
	"github.com/mechastore/mecha-backend/pkg/db/models"
	"github.com/mechastore/mecha-backend/pkg/enums"
	"github.com/mechastore/mecha-backend/pkg/logger"
	"github.com/mechastore/mecha-backend/pkg/pagination"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubSepayRepo struct {
	rows map[int64]*models.SepayTransaction
}

func newStubSepayRepo() *stubSepayRepo {
	return &stubSepayRepo{rows: map[int64]*models.SepayTransaction{}}
}

func (s *stubSepayRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubSepayRepo) ExistsBySepayID(ctx context.Context, sepayID int64) (bool, error) {
	_, ok := s.rows[sepayID]
	return ok, nil
}

func (s *stubSepayRepo) Create(ctx context.Context, txn *models.SepayTransaction) error {
	s.rows[txn.SepayID] = txn
	return nil
}

type stubOrderRepo struct {
	orders map[uuid.UUID]*models.Order
	notes  map[uuid.UUID]string
}

func newStubOrderRepo() *stubOrderRepo {
	return &stubOrderRepo{orders: map[uuid.UUID]*models.Order{}, notes: map[uuid.UUID]string{}}
}

func (s *stubOrderRepo) put(order *models.Order) { s.orders[order.ID] = order }

func (s *stubOrderRepo) WithTx(tx *gorm.DB) orders.Repository { return s }

func (s *stubOrderRepo) Create(ctx context.Context, order *models.Order) error {
	s.put(order)
	return nil
}

func (s *stubOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *order
	return &copied, nil
}

func (s *stubOrderRepo) FindByCode(ctx context.Context, code string) (*models.Order, error) {
	for _, order := range s.orders {
		if order.OrderCode == code {
			copied := *order
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrderRepo) FindByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.Order, error) {
	return nil, nil
}

func (s *stubOrderRepo) Search(ctx context.Context, filters orders.SearchFilters) ([]models.Order, error) {
	return nil, nil
}

func (s *stubOrderRepo) UpdateStatusIf(ctx context.Context, id uuid.UUID, expected, target enums.OrderStatus) (bool, error) {
	order, ok := s.orders[id]
	if !ok || order.Status != expected {
		return false, nil
	}
	order.Status = target
	return true, nil
}

func (s *stubOrderRepo) MarkPaidIfPending(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.UpdatePaymentStatusIf(ctx, id, enums.PaymentStatusPending, enums.PaymentStatusPaid)
}

func (s *stubOrderRepo) UpdatePaymentStatusIf(ctx context.Context, id uuid.UUID, expected, target enums.PaymentStatus) (bool, error) {
	order, ok := s.orders[id]
	if !ok || order.PaymentStatus != expected {
		return false, nil
	}
	order.PaymentStatus = target
	return true, nil
}

func (s *stubOrderRepo) SetPaymentStatus(ctx context.Context, id uuid.UUID, target enums.PaymentStatus) error {
	if order, ok := s.orders[id]; ok {
		order.PaymentStatus = target
	}
	return nil
}

func (s *stubOrderRepo) SetNote(ctx context.Context, id uuid.UUID, note string) error {
	s.notes[id] = note
	return nil
}

func (s *stubOrderRepo) FindExpiredBankTransfers(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	return nil, nil
}

func (s *stubOrderRepo) HasDeliveredOrderWithProduct(ctx context.Context, customerID, productID uuid.UUID) (bool, error) {
	return false, nil
}

type stubNotifRepo struct {
	created []*models.Notification
}

func (s *stubNotifRepo) WithTx(tx *gorm.DB) notifications.Repository { return s }

func (s *stubNotifRepo) Create(ctx context.Context, n *models.Notification) error {
	s.created = append(s.created, n)
	return nil
}

func (s *stubNotifRepo) List(ctx context.Context, params notifications.ListParams) ([]models.Notification, *pagination.Cursor, error) {
	return nil, nil, nil
}

func (s *stubNotifRepo) MarkRead(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (notifications.MarkResult, error) {
	return notifications.MarkResult{}, nil
}

func (s *stubNotifRepo) MarkAllRead(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	return 0, nil
}

type sepayFixture struct {
	svc    Service
	repo   *stubSepayRepo
	orders *stubOrderRepo
	notifs *stubNotifRepo
}

func newSepayFixture(t *testing.T, cfg config.SepayConfig) *sepayFixture {
	t.Helper()

	repo := newStubSepayRepo()
	ordersRepo := newStubOrderRepo()
	notifs := &stubNotifRepo{}
	logg := logger.New(logger.Options{ServiceName: "sepay-test", Level: zerolog.ErrorLevel})

	svc, err := NewService(repo, ordersRepo, notifs, fakeTxRunner{}, cfg, logg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &sepayFixture{svc: svc, repo: repo, orders: ordersRepo, notifs: notifs}
}

func pendingBankOrder(code string, total int64) *models.Order {
	return &models.Order{
		ID:            uuid.New(),
		OrderCode:     code,
		CustomerID:    uuid.New(),
		TotalAmount:   decimal.NewFromInt(total),
		PaymentMethod: enums.PaymentMethodBankTransfer,
		PaymentStatus: enums.PaymentStatusPending,
		Status:        enums.OrderStatusPending,
	}
}

func incomingPayload(id int64, content string, amount int64) WebhookPayload {
	return WebhookPayload{
		ID:              id,
		Gateway:         "MBBank",
		TransactionDate: "2026-08-30 14:05:09",
		AccountNumber:   "0011002233",
		Content:         content,
		TransferType:    "in",
		TransferAmount:  decimal.NewFromInt(amount),
	}
}

func TestHandleAppliesPaymentThenDuplicates(t *testing.T) {
	t.Parallel()

	fx := newSepayFixture(t, config.SepayConfig{})
	order := pendingBankOrder("ORD-1A2B3C4D", 134000)
	fx.orders.put(order)

	payload := incomingPayload(777, "Thanh toan don hang ORD-1A2B3C4D", 134000)

	result, err := fx.svc.Handle(context.Background(), payload)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if result.Outcome != OutcomeApplied {
		t.Fatalf("expected applied, got %s (%s)", result.Outcome, result.Reason)
	}
	if fx.orders.orders[order.ID].PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("order not marked paid")
	}
	if len(fx.notifs.created) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(fx.notifs.created))
	}
	stored := fx.repo.rows[777]
	if stored == nil || stored.OrderID == nil || *stored.OrderID != order.ID {
		t.Fatalf("transaction row not linked to order")
	}
	if stored.TransactionDate == nil {
		t.Fatal("expected parsed transaction date")
	}

	result, err = fx.svc.Handle(context.Background(), payload)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if result.Outcome != OutcomeDuplicate {
		t.Fatalf("expected duplicate, got %s", result.Outcome)
	}
	if len(fx.notifs.created) != 1 {
		t.Fatalf("redelivery must not notify again")
	}
}

func TestHandleMatchesDashlessReference(t *testing.T) {
	t.Parallel()

	fx := newSepayFixture(t, config.SepayConfig{})
	order := pendingBankOrder("ORD-1A2B3C4D", 50000)
	fx.orders.put(order)

	result, err := fx.svc.Handle(context.Background(), incomingPayload(1, "CK ORD1A2B3C4D", 50000))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if result.Outcome != OutcomeApplied {
		t.Fatalf("expected applied, got %s (%s)", result.Outcome, result.Reason)
	}
	if result.OrderCode != "ORD-1A2B3C4D" {
		t.Fatalf("expected normalized code, got %q", result.OrderCode)
	}
}

func TestHandleCodeFieldWinsOverContent(t *testing.T) {
	t.Parallel()

	fx := newSepayFixture(t, config.SepayConfig{})
	coded := pendingBankOrder("ORD-AAAA1111", 60000)
	mentioned := pendingBankOrder("ORD-BBBB2222", 60000)
	fx.orders.put(coded)
	fx.orders.put(mentioned)

	payload := incomingPayload(11, "Thanh toan ORD-BBBB2222", 60000)
	code := "ORD-AAAA1111"
	payload.Code = &code

	result, err := fx.svc.Handle(context.Background(), payload)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if result.Outcome != OutcomeApplied {
		t.Fatalf("expected applied, got %s (%s)", result.Outcome, result.Reason)
	}
	if result.OrderCode != "ORD-AAAA1111" {
		t.Fatalf("structured code must win, got %q", result.OrderCode)
	}
	if fx.orders.orders[coded.ID].PaymentStatus != enums.PaymentStatusPaid {
		t.Fatal("coded order not marked paid")
	}
	if fx.orders.orders[mentioned.ID].PaymentStatus != enums.PaymentStatusPending {
		t.Fatal("content-mentioned order must stay pending")
	}
}

func TestHandleUnknownTokenFallsThrough(t *testing.T) {
	t.Parallel()

	fx := newSepayFixture(t, config.SepayConfig{})
	order := pendingBankOrder("ORD-CCCC3333", 45000)
	fx.orders.put(order)

	payload := incomingPayload(12, "CK ORDZZZZ9999", 45000)
	desc := "hoa don ORD-CCCC3333"
	payload.Description = &desc

	result, err := fx.svc.Handle(context.Background(), payload)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if result.Outcome != OutcomeApplied {
		t.Fatalf("expected applied, got %s (%s)", result.Outcome, result.Reason)
	}
	if fx.orders.orders[order.ID].PaymentStatus != enums.PaymentStatusPaid {
		t.Fatal("order referenced in description not marked paid")
	}
}

func TestHandleMatchesLowercaseReference(t *testing.T) {
	t.Parallel()

	fx := newSepayFixture(t, config.SepayConfig{})
	order := pendingBankOrder("ORD-1A2B3C4D", 50000)
	fx.orders.put(order)

	result, err := fx.svc.Handle(context.Background(), incomingPayload(13, "ck ord-1a2b3c4d", 50000))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if result.Outcome != OutcomeApplied {
		t.Fatalf("expected applied, got %s (%s)", result.Outcome, result.Reason)
	}
	if result.OrderCode != "ORD-1A2B3C4D" {
		t.Fatalf("expected uppercased code, got %q", result.OrderCode)
	}
}

func TestHandleBlankTransferTypeStored(t *testing.T) {
	t.Parallel()

	fx := newSepayFixture(t, config.SepayConfig{})
	order := pendingBankOrder("ORD-DDDD4444", 30000)
	fx.orders.put(order)

	payload := incomingPayload(14, "ORD-DDDD4444", 30000)
	payload.TransferType = ""

	result, err := fx.svc.Handle(context.Background(), payload)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if result.Outcome != OutcomeRejected {
		t.Fatalf("expected rejected, got %s", result.Outcome)
	}
	if fx.repo.rows[14] == nil {
		t.Fatal("blank transfer type must still be stored")
	}
	if fx.orders.orders[order.ID].PaymentStatus != enums.PaymentStatusPending {
		t.Fatal("order must stay pending")
	}
}

func TestHandleRejectsShortAmount(t *testing.T) {
	t.Parallel()

	fx := newSepayFixture(t, config.SepayConfig{})
	order := pendingBankOrder("ORD-AAAA1111", 100000)
	fx.orders.put(order)

	result, err := fx.svc.Handle(context.Background(), incomingPayload(2, "ORD-AAAA1111", 99999))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if result.Outcome != OutcomeRejected {
		t.Fatalf("expected rejected, got %s", result.Outcome)
	}
	if fx.orders.orders[order.ID].PaymentStatus != enums.PaymentStatusPending {
		t.Fatal("underpaid order must stay pending")
	}
	if fx.repo.rows[2] == nil {
		t.Fatal("rejected transaction must still be stored")
	}
}

func TestHandleAcceptsOverpayment(t *testing.T) {
	t.Parallel()

	fx := newSepayFixture(t, config.SepayConfig{})
	order := pendingBankOrder("ORD-AAAA2222", 100000)
	fx.orders.put(order)

	result, err := fx.svc.Handle(context.Background(), incomingPayload(3, "ORD-AAAA2222", 150000))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if result.Outcome != OutcomeApplied {
		t.Fatalf("expected applied, got %s (%s)", result.Outcome, result.Reason)
	}
}

func TestHandleRejectsOutgoingTransfer(t *testing.T) {
	t.Parallel()

	fx := newSepayFixture(t, config.SepayConfig{})
	order := pendingBankOrder("ORD-BBBB1111", 40000)
	fx.orders.put(order)

	payload := incomingPayload(4, "ORD-BBBB1111", 40000)
	payload.TransferType = "out"

	result, err := fx.svc.Handle(context.Background(), payload)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if result.Outcome != OutcomeRejected {
		t.Fatalf("expected rejected, got %s", result.Outcome)
	}
	if fx.orders.orders[order.ID].PaymentStatus != enums.PaymentStatusPending {
		t.Fatal("outgoing transfer must not settle the order")
	}
}

func TestHandleRejectsAlreadyPaidOrder(t *testing.T) {
	t.Parallel()

	fx := newSepayFixture(t, config.SepayConfig{})
	order := pendingBankOrder("ORD-CCCC1111", 40000)
	order.PaymentStatus = enums.PaymentStatusPaid
	fx.orders.put(order)

	result, err := fx.svc.Handle(context.Background(), incomingPayload(5, "ORD-CCCC1111", 40000))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if result.Outcome != OutcomeRejected {
		t.Fatalf("expected rejected, got %s", result.Outcome)
	}
}

func TestHandleUnmatchedContentIsStored(t *testing.T) {
	t.Parallel()

	fx := newSepayFixture(t, config.SepayConfig{})

	result, err := fx.svc.Handle(context.Background(), incomingPayload(6, "Chuyen tien an trua", 25000))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if result.Outcome != OutcomeUnmatched {
		t.Fatalf("expected unmatched, got %s", result.Outcome)
	}
	if fx.repo.rows[6] == nil {
		t.Fatal("unmatched transaction must still be stored")
	}
}

func TestHandleBookingReferenceStoredInert(t *testing.T) {
	t.Parallel()

	fx := newSepayFixture(t, config.SepayConfig{})

	result, err := fx.svc.Handle(context.Background(), incomingPayload(7, "Dat lich BOOKING12345", 80000))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if result.Outcome != OutcomeUnmatched {
		t.Fatalf("expected unmatched, got %s", result.Outcome)
	}
	if result.OrderCode != "BOOKING12345" {
		t.Fatalf("expected booking token recorded, got %q", result.OrderCode)
	}
	if fx.repo.rows[7] == nil || fx.repo.rows[7].OrderID != nil {
		t.Fatal("booking transaction must be stored without an order link")
	}
}

func TestHandleMalformedDateStoredAsNull(t *testing.T) {
	t.Parallel()

	fx := newSepayFixture(t, config.SepayConfig{})
	payload := incomingPayload(8, "no reference", 10000)
	payload.TransactionDate = "30/08/2026 14:05"

	if _, err := fx.svc.Handle(context.Background(), payload); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if fx.repo.rows[8].TransactionDate != nil {
		t.Fatal("unparseable date must be stored as null")
	}
}

func TestAuthorizeHeader(t *testing.T) {
	t.Parallel()

	open := newSepayFixture(t, config.SepayConfig{})
	if !open.svc.AuthorizeHeader("") {
		t.Fatal("blank configured key must disable auth")
	}

	locked := newSepayFixture(t, config.SepayConfig{APIKey: "s3cret"})
	if locked.svc.AuthorizeHeader("") {
		t.Fatal("missing header must fail")
	}
	if locked.svc.AuthorizeHeader("Bearer s3cret") {
		t.Fatal("wrong scheme must fail")
	}
	if locked.svc.AuthorizeHeader("Apikey wrong") {
		t.Fatal("wrong key must fail")
	}
	if !locked.svc.AuthorizeHeader("Apikey s3cret") {
		t.Fatal("correct key must pass")
	}
}

func TestPaymentInfoFor(t *testing.T) {
	t.Parallel()

	fx := newSepayFixture(t, config.SepayConfig{
		BankAccountNumber: "0011002233",
		BankName:          "MBBank",
		AccountHolderName: "MECHA STORE",
	})
	order := pendingBankOrder("ORD-1A2B3C4D", 134000)

	info, err := fx.svc.PaymentInfoFor(context.Background(), order)
	if err != nil {
		t.Fatalf("payment info: %v", err)
	}
	if info.TransferContent != "ORD-1A2B3C4D" {
		t.Fatalf("unexpected transfer content %q", info.TransferContent)
	}
	want := "https://qr.sepay.vn/img?acc=0011002233&amount=134000&bank=MBBank&des=ORD-1A2B3C4D"
	if info.QRImageURL != want {
		t.Fatalf("unexpected qr url %q", info.QRImageURL)
	}

	order.PaymentStatus = enums.PaymentStatusPaid
	if _, err := fx.svc.PaymentInfoFor(context.Background(), order); err == nil {
		t.Fatal("paid order must not expose payment info")
	}
}
