package checkout

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mechastore/mecha-backend/internal/addresses"
	"github.com/mechastore/mecha-backend/internal/cart"
	"github.com/mechastore/mecha-backend/internal/catalog"
	"github.com/mechastore/mecha-backend/internal/inventory"
	"github.com/mechastore/mecha-backend/internal/orders"
	"github.com/mechastore/mecha-backend/pkg/db/models"
	"github.com/mechastore/mecha-backend/pkg/enums"
	pkgerrors "github.com/mechastore/mecha-backend/pkg/errors"
	"github.com/mechastore/mecha-backend/pkg/logger"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubCartRepo struct {
	cart    *models.Cart
	cleared bool
}

func (s *stubCartRepo) WithTx(tx *gorm.DB) cart.Repository { return s }

func (s *stubCartRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if s.cart == nil || s.cart.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.cart, nil
}

func (s *stubCartRepo) Create(ctx context.Context, c *models.Cart) error { return nil }

func (s *stubCartRepo) FindItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCartRepo) FindItemByRef(ctx context.Context, cartID uuid.UUID, kind enums.ItemKind, refID uuid.UUID) (*models.CartItem, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCartRepo) CreateItem(ctx context.Context, item *models.CartItem) error { return nil }
func (s *stubCartRepo) SaveItem(ctx context.Context, item *models.CartItem) error   { return nil }
func (s *stubCartRepo) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	return nil
}

func (s *stubCartRepo) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	s.cleared = true
	return nil
}

type stubCatalogRepo struct {
	products map[uuid.UUID]*models.Product
	services map[uuid.UUID]*models.ServiceOffering
}

func (s *stubCatalogRepo) WithTx(tx *gorm.DB) catalog.Repository { return s }

func (s *stubCatalogRepo) FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, ok := s.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return product, nil
}

func (s *stubCatalogRepo) FindServiceByID(ctx context.Context, id uuid.UUID) (*models.ServiceOffering, error) {
	svc, ok := s.services[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return svc, nil
}

func (s *stubCatalogRepo) ListProducts(ctx context.Context, limit, offset int) ([]models.Product, error) {
	return nil, nil
}

func (s *stubCatalogRepo) ListActiveServices(ctx context.Context, limit, offset int) ([]models.ServiceOffering, error) {
	return nil, nil
}

type stubInventory struct {
	stock map[uuid.UUID]int
}

func (s *stubInventory) WithTx(tx *gorm.DB) inventory.Repository { return s }

func (s *stubInventory) StockFor(ctx context.Context, productID uuid.UUID) (int, error) {
	return s.stock[productID], nil
}

func (s *stubInventory) Decrement(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	if s.stock[productID] < qty {
		return false, nil
	}
	s.stock[productID] -= qty
	return true, nil
}

func (s *stubInventory) Restock(ctx context.Context, productID uuid.UUID, qty int) error {
	s.stock[productID] += qty
	return nil
}

type stubOrdersRepo struct {
	created *models.Order
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) orders.Repository { return s }

func (s *stubOrdersRepo) Create(ctx context.Context, order *models.Order) error {
	order.ID = uuid.New()
	s.created = order
	return nil
}

func (s *stubOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrdersRepo) FindByCode(ctx context.Context, code string) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrdersRepo) FindByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.Order, error) {
	return nil, nil
}

func (s *stubOrdersRepo) Search(ctx context.Context, filters orders.SearchFilters) ([]models.Order, error) {
	return nil, nil
}

func (s *stubOrdersRepo) UpdateStatusIf(ctx context.Context, id uuid.UUID, expected, target enums.OrderStatus) (bool, error) {
	return false, nil
}

func (s *stubOrdersRepo) MarkPaidIfPending(ctx context.Context, id uuid.UUID) (bool, error) {
	return false, nil
}

func (s *stubOrdersRepo) UpdatePaymentStatusIf(ctx context.Context, id uuid.UUID, expected, target enums.PaymentStatus) (bool, error) {
	return false, nil
}

func (s *stubOrdersRepo) SetPaymentStatus(ctx context.Context, id uuid.UUID, target enums.PaymentStatus) error {
	return nil
}

func (s *stubOrdersRepo) SetNote(ctx context.Context, id uuid.UUID, note string) error { return nil }

func (s *stubOrdersRepo) FindExpiredBankTransfers(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	return nil, nil
}

func (s *stubOrdersRepo) HasDeliveredOrderWithProduct(ctx context.Context, customerID, productID uuid.UUID) (bool, error) {
	return false, nil
}

type stubAddressesRepo struct {
	byID map[uuid.UUID]*models.ShippingAddress
}

func (s *stubAddressesRepo) WithTx(tx *gorm.DB) addresses.Repository { return s }

func (s *stubAddressesRepo) FindOwned(ctx context.Context, userID, addressID uuid.UUID) (*models.ShippingAddress, error) {
	addr, ok := s.byID[addressID]
	if !ok || addr.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return addr, nil
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []*models.Order
	done chan struct{}
}

func newRecordingMailer() *recordingMailer {
	return &recordingMailer{done: make(chan struct{}, 1)}
}

func (m *recordingMailer) SendOrderConfirmation(ctx context.Context, order *models.Order) error {
	m.mu.Lock()
	m.sent = append(m.sent, order)
	m.mu.Unlock()
	select {
	case m.done <- struct{}{}:
	default:
	}
	return nil
}

type checkoutFixture struct {
	svc       Service
	cartRepo  *stubCartRepo
	orders    *stubOrdersRepo
	inventory *stubInventory
	addrRepo  *stubAddressesRepo
	mailer    *recordingMailer
}

func newCheckoutFixture(t *testing.T, userCart *models.Cart, cat *stubCatalogRepo, inv *stubInventory) *checkoutFixture {
	t.Helper()

	cartRepo := &stubCartRepo{cart: userCart}
	ordersRepo := &stubOrdersRepo{}
	addrRepo := &stubAddressesRepo{byID: map[uuid.UUID]*models.ShippingAddress{}}
	mailer := newRecordingMailer()
	logg := logger.New(logger.Options{ServiceName: "checkout-test", Level: zerolog.ErrorLevel})

	svc, err := NewService(cartRepo, cat, ordersRepo, inv, addrRepo, fakeTxRunner{}, mailer, logg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &checkoutFixture{
		svc:       svc,
		cartRepo:  cartRepo,
		orders:    ordersRepo,
		inventory: inv,
		addrRepo:  addrRepo,
		mailer:    mailer,
	}
}

func TestCheckoutFreezesPricesAndTotals(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	productID := uuid.New()
	serviceID := uuid.New()

	cat := &stubCatalogRepo{
		products: map[uuid.UUID]*models.Product{
			productID: {
				ID:        productID,
				Name:      "ESC 40A",
				BasePrice: decimal.NewFromInt(5000),
				TierPrices: []models.ProductTierPrice{
					{MinQty: 10, UnitPrice: decimal.NewFromInt(4500)},
				},
			},
		},
		services: map[uuid.UUID]*models.ServiceOffering{
			serviceID: {
				ID:        serviceID,
				Name:      "Soldering service",
				BasePrice: decimal.NewFromInt(80000),
				Status:    enums.ServiceStatusActive,
			},
		},
	}
	inv := &stubInventory{stock: map[uuid.UUID]int{productID: 100}}
	userCart := &models.Cart{
		ID:     uuid.New(),
		UserID: userID,
		Items: []models.CartItem{
			{ItemKind: enums.ItemKindProduct, ProductID: &productID, Quantity: 12, UnitPrice: decimal.NewFromInt(4500), LineTotal: decimal.NewFromInt(54000)},
			{ItemKind: enums.ItemKindService, ServiceID: &serviceID, Quantity: 1, UnitPrice: decimal.NewFromInt(80000), LineTotal: decimal.NewFromInt(80000)},
		},
	}

	fx := newCheckoutFixture(t, userCart, cat, inv)

	order, err := fx.svc.Checkout(context.Background(), Input{
		UserID:          userID,
		PaymentMethod:   enums.PaymentMethodBankTransfer,
		ShippingAddress: "12 Ly Thuong Kiet, Hanoi",
		ContactPhone:    "0912345678",
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	if !strings.HasPrefix(order.OrderCode, "ORD-") || len(order.OrderCode) != 12 {
		t.Fatalf("unexpected order code %q", order.OrderCode)
	}
	// 12 * 4500 + 80000, as snapshotted into the cart
	if !order.TotalAmount.Equal(decimal.NewFromInt(134000)) {
		t.Fatalf("unexpected total %s", order.TotalAmount)
	}
	if !order.Items[0].UnitPrice.Equal(decimal.NewFromInt(4500)) {
		t.Fatalf("unexpected unit price %s", order.Items[0].UnitPrice)
	}
	if order.PaymentStatus != enums.PaymentStatusPending || order.Status != enums.OrderStatusPending {
		t.Fatalf("expected pending order, got %s/%s", order.Status, order.PaymentStatus)
	}
	if inv.stock[productID] != 88 {
		t.Fatalf("expected stock 88, got %d", inv.stock[productID])
	}
	if !fx.cartRepo.cleared {
		t.Fatal("cart must be cleared inside the checkout transaction")
	}

	select {
	case <-fx.mailer.done:
	case <-time.After(time.Second):
		t.Fatal("confirmation email never dispatched")
	}
}

func TestCheckoutKeepsCartSnapshotWhenCatalogPriceChanges(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	productID := uuid.New()

	// Catalog price was raised after the line entered the cart. The order
	// must charge what the customer saw, not today's price.
	cat := &stubCatalogRepo{
		products: map[uuid.UUID]*models.Product{
			productID: {ID: productID, Name: "ESC 40A", BasePrice: decimal.NewFromInt(9000)},
		},
	}
	inv := &stubInventory{stock: map[uuid.UUID]int{productID: 10}}
	userCart := &models.Cart{
		ID:     uuid.New(),
		UserID: userID,
		Items: []models.CartItem{
			{ItemKind: enums.ItemKindProduct, ProductID: &productID, Quantity: 2, UnitPrice: decimal.NewFromInt(5000), LineTotal: decimal.NewFromInt(10000)},
		},
	}

	fx := newCheckoutFixture(t, userCart, cat, inv)

	order, err := fx.svc.Checkout(context.Background(), Input{
		UserID:          userID,
		PaymentMethod:   enums.PaymentMethodCashOnDelivery,
		ShippingAddress: "addr",
		ContactPhone:    "000",
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if !order.TotalAmount.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("expected snapshot total 10000, got %s", order.TotalAmount)
	}
	if !order.Items[0].UnitPrice.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("expected snapshot unit price 5000, got %s", order.Items[0].UnitPrice)
	}
}

func TestCheckoutRejectsInsufficientStock(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	productID := uuid.New()
	cat := &stubCatalogRepo{
		products: map[uuid.UUID]*models.Product{
			productID: {ID: productID, Name: "LiPo 4S", BasePrice: decimal.NewFromInt(450000)},
		},
	}
	inv := &stubInventory{stock: map[uuid.UUID]int{productID: 2}}
	userCart := &models.Cart{
		ID:     uuid.New(),
		UserID: userID,
		Items: []models.CartItem{
			{ItemKind: enums.ItemKindProduct, ProductID: &productID, Quantity: 3},
		},
	}

	fx := newCheckoutFixture(t, userCart, cat, inv)

	_, err := fx.svc.Checkout(context.Background(), Input{
		UserID:          userID,
		PaymentMethod:   enums.PaymentMethodCashOnDelivery,
		ShippingAddress: "addr",
		ContactPhone:    "000",
	})
	if err == nil {
		t.Fatal("expected insufficient stock error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestCheckoutRejectsEmptyCart(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	fx := newCheckoutFixture(t, &models.Cart{ID: uuid.New(), UserID: userID}, &stubCatalogRepo{}, &stubInventory{stock: map[uuid.UUID]int{}})

	_, err := fx.svc.Checkout(context.Background(), Input{
		UserID:          userID,
		PaymentMethod:   enums.PaymentMethodCashOnDelivery,
		ShippingAddress: "addr",
		ContactPhone:    "000",
	})
	if err == nil {
		t.Fatal("expected empty cart rejection")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestCheckoutResolvesSavedAddress(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	productID := uuid.New()
	addressID := uuid.New()

	cat := &stubCatalogRepo{
		products: map[uuid.UUID]*models.Product{
			productID: {ID: productID, Name: "Frame kit", BasePrice: decimal.NewFromInt(250000)},
		},
	}
	inv := &stubInventory{stock: map[uuid.UUID]int{productID: 5}}
	userCart := &models.Cart{
		ID:     uuid.New(),
		UserID: userID,
		Items: []models.CartItem{
			{ItemKind: enums.ItemKindProduct, ProductID: &productID, Quantity: 1},
		},
	}

	fx := newCheckoutFixture(t, userCart, cat, inv)
	fx.addrRepo.byID[addressID] = &models.ShippingAddress{
		ID:          addressID,
		UserID:      userID,
		AddressLine: "45 Tran Hung Dao",
		Ward:        "Phuong 6",
		City:        "Da Nang",
		Phone:       "0905111222",
	}

	order, err := fx.svc.Checkout(context.Background(), Input{
		UserID:            userID,
		PaymentMethod:     enums.PaymentMethodCashOnDelivery,
		ShippingAddressID: &addressID,
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if order.ShippingAddress != "45 Tran Hung Dao, Phuong 6, Da Nang" {
		t.Fatalf("unexpected shipping address %q", order.ShippingAddress)
	}
	if order.ContactPhone != "0905111222" {
		t.Fatalf("unexpected contact phone %q", order.ContactPhone)
	}
}

func TestCheckoutRejectsForeignSavedAddress(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	productID := uuid.New()
	addressID := uuid.New()

	cat := &stubCatalogRepo{
		products: map[uuid.UUID]*models.Product{
			productID: {ID: productID, Name: "Frame kit", BasePrice: decimal.NewFromInt(250000)},
		},
	}
	userCart := &models.Cart{
		ID:     uuid.New(),
		UserID: userID,
		Items: []models.CartItem{
			{ItemKind: enums.ItemKindProduct, ProductID: &productID, Quantity: 1},
		},
	}

	fx := newCheckoutFixture(t, userCart, cat, &stubInventory{stock: map[uuid.UUID]int{productID: 5}})
	fx.addrRepo.byID[addressID] = &models.ShippingAddress{ID: addressID, UserID: uuid.New(), AddressLine: "x", Phone: "0"}

	_, err := fx.svc.Checkout(context.Background(), Input{
		UserID:            userID,
		PaymentMethod:     enums.PaymentMethodCashOnDelivery,
		ShippingAddressID: &addressID,
	})
	if err == nil {
		t.Fatal("expected not found for another user's address")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestCheckoutRejectsMixedShippingSources(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	addressID := uuid.New()
	fx := newCheckoutFixture(t, &models.Cart{ID: uuid.New(), UserID: userID}, &stubCatalogRepo{}, &stubInventory{stock: map[uuid.UUID]int{}})

	_, err := fx.svc.Checkout(context.Background(), Input{
		UserID:            userID,
		PaymentMethod:     enums.PaymentMethodCashOnDelivery,
		ShippingAddressID: &addressID,
		ShippingAddress:   "12 Ly Thuong Kiet, Hanoi",
		ContactPhone:      "0912345678",
	})
	if err == nil {
		t.Fatal("expected mixed shipping sources rejection")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestCheckoutRejectsVanishedService(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	serviceID := uuid.New()
	userCart := &models.Cart{
		ID:     uuid.New(),
		UserID: userID,
		Items: []models.CartItem{
			{ItemKind: enums.ItemKindService, ServiceID: &serviceID, Quantity: 1, UnitPrice: decimal.NewFromInt(120000), LineTotal: decimal.NewFromInt(120000)},
		},
	}

	fx := newCheckoutFixture(t, userCart, &stubCatalogRepo{}, &stubInventory{stock: map[uuid.UUID]int{}})

	_, err := fx.svc.Checkout(context.Background(), Input{
		UserID:          userID,
		PaymentMethod:   enums.PaymentMethodBankTransfer,
		ShippingAddress: "addr",
		ContactPhone:    "000",
	})
	if err == nil {
		t.Fatal("expected rejection for a service removed from the catalog")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error code: %v", err)
	}
}
