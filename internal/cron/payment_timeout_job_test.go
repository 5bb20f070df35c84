package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mechastore/mecha-backend/internal/inventory"
	"github.com/mechastore/mecha-backend/internal/notifications"
	"github.com/mechastore/mecha-backend/internal/orders"
	"github.com/mechastore/mecha-backend/pkg/db/models"
	"github.com/mechastore/mecha-backend/pkg/enums"
	"github.com/mechastore/mecha-backend/pkg/logger"
)

type passthroughTx struct {
	db *gorm.DB
}

func (p passthroughTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return p.db.Transaction(fn)
}

func setupSweepTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := []string{`
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_code TEXT NOT NULL UNIQUE,
  customer_id TEXT NOT NULL,
  total_amount NUMERIC NOT NULL,
  payment_method TEXT NOT NULL,
  payment_status TEXT NOT NULL DEFAULT 'PENDING',
  status TEXT NOT NULL DEFAULT 'PENDING',
  shipping_address TEXT NOT NULL,
  contact_phone TEXT NOT NULL,
  note TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  item_kind TEXT NOT NULL,
  product_id TEXT,
  service_id TEXT,
  item_name TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price NUMERIC NOT NULL,
  line_total NUMERIC NOT NULL,
  created_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  sku TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  description TEXT,
  unit_of_measure TEXT,
  base_price NUMERIC NOT NULL,
  stock_quantity INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  order_id TEXT,
  title TEXT NOT NULL,
  body TEXT NOT NULL,
  read_at DATETIME,
  created_at DATETIME
);`}
	for _, stmt := range schema {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type sweepFixture struct {
	db  *gorm.DB
	job *PaymentTimeoutJob
}

func newSweepFixture(t *testing.T, now time.Time) *sweepFixture {
	t.Helper()

	db := setupSweepTestDB(t)
	logg := logger.New(logger.Options{ServiceName: "sweep-test", Level: zerolog.ErrorLevel})

	job, err := NewPaymentTimeoutJob(PaymentTimeoutJobParams{
		Orders:        orders.NewRepository(db),
		Inventory:     inventory.NewRepository(db),
		Notifications: notifications.NewRepository(db),
		Tx:            passthroughTx{db: db},
		Logger:        logg,
		Timeout:       30 * time.Minute,
	})
	require.NoError(t, err)
	job.now = func() time.Time { return now }
	return &sweepFixture{db: db, job: job}
}

func seedSweepOrder(t *testing.T, db *gorm.DB, createdAt time.Time, mutate func(*models.Order)) *models.Order {
	t.Helper()

	order := &models.Order{
		ID:              uuid.New(),
		OrderCode:       orders.NewOrderCode(),
		CustomerID:      uuid.New(),
		TotalAmount:     decimal.NewFromInt(90000),
		PaymentMethod:   enums.PaymentMethodBankTransfer,
		PaymentStatus:   enums.PaymentStatusPending,
		Status:          enums.OrderStatusPending,
		ShippingAddress: "addr",
		ContactPhone:    "000",
		CreatedAt:       createdAt,
	}
	if mutate != nil {
		mutate(order)
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestPaymentTimeoutJobCancelsExpiredOrders(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	fx := newSweepFixture(t, now)

	productID := uuid.New()
	require.NoError(t, fx.db.Create(&models.Product{
		ID:            productID,
		SKU:           "SKU-1",
		Name:          "Gyro module",
		BasePrice:     decimal.NewFromInt(30000),
		StockQuantity: 5,
	}).Error)

	stale := seedSweepOrder(t, fx.db, now.Add(-31*time.Minute), nil)
	require.NoError(t, fx.db.Create(&models.OrderItem{
		ID:        uuid.New(),
		OrderID:   stale.ID,
		ItemKind:  enums.ItemKindProduct,
		ProductID: &productID,
		ItemName:  "Gyro module",
		Quantity:  3,
		UnitPrice: decimal.NewFromInt(30000),
		LineTotal: decimal.NewFromInt(90000),
	}).Error)

	require.NoError(t, fx.job.Run(context.Background()))

	repo := orders.NewRepository(fx.db)
	fresh, err := repo.FindByID(context.Background(), stale.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, fresh.Status)
	require.Equal(t, enums.PaymentStatusFailed, fresh.PaymentStatus)
	require.NotNil(t, fresh.Note)
	require.Equal(t, "Payment timeout", *fresh.Note)

	stock, err := inventory.NewRepository(fx.db).StockFor(context.Background(), productID)
	require.NoError(t, err)
	require.Equal(t, 8, stock)

	var notifCount int64
	require.NoError(t, fx.db.Model(&models.Notification{}).Count(&notifCount).Error)
	require.EqualValues(t, 1, notifCount)
}

func TestPaymentTimeoutJobLeavesFreshOrdersAlone(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	fx := newSweepFixture(t, now)

	fresh := seedSweepOrder(t, fx.db, now.Add(-29*time.Minute), nil)
	paid := seedSweepOrder(t, fx.db, now.Add(-2*time.Hour), func(o *models.Order) {
		o.PaymentStatus = enums.PaymentStatusPaid
	})
	cod := seedSweepOrder(t, fx.db, now.Add(-2*time.Hour), func(o *models.Order) {
		o.PaymentMethod = enums.PaymentMethodCashOnDelivery
	})

	require.NoError(t, fx.job.Run(context.Background()))

	repo := orders.NewRepository(fx.db)
	for _, id := range []uuid.UUID{fresh.ID, paid.ID, cod.ID} {
		order, err := repo.FindByID(context.Background(), id)
		require.NoError(t, err)
		require.Equal(t, enums.OrderStatusPending, order.Status)
	}
}

func TestPaymentTimeoutJobIsIdempotent(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	fx := newSweepFixture(t, now)

	seedSweepOrder(t, fx.db, now.Add(-45*time.Minute), nil)

	require.NoError(t, fx.job.Run(context.Background()))
	require.NoError(t, fx.job.Run(context.Background()))

	var notifCount int64
	require.NoError(t, fx.db.Model(&models.Notification{}).Count(&notifCount).Error)
	require.EqualValues(t, 1, notifCount)
}

type countingTx struct {
	db    *gorm.DB
	calls int
}

func (c *countingTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	c.calls++
	return c.db.Transaction(fn)
}

func TestPaymentTimeoutJobSweepsBatchInOneTransaction(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	db := setupSweepTestDB(t)
	logg := logger.New(logger.Options{ServiceName: "sweep-test", Level: zerolog.ErrorLevel})
	runner := &countingTx{db: db}

	job, err := NewPaymentTimeoutJob(PaymentTimeoutJobParams{
		Orders:        orders.NewRepository(db),
		Inventory:     inventory.NewRepository(db),
		Notifications: notifications.NewRepository(db),
		Tx:            runner,
		Logger:        logg,
		Timeout:       30 * time.Minute,
	})
	require.NoError(t, err)
	job.now = func() time.Time { return now }

	first := seedSweepOrder(t, db, now.Add(-40*time.Minute), nil)
	second := seedSweepOrder(t, db, now.Add(-50*time.Minute), nil)

	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, 1, runner.calls)

	repo := orders.NewRepository(db)
	for _, id := range []uuid.UUID{first.ID, second.ID} {
		order, err := repo.FindByID(context.Background(), id)
		require.NoError(t, err)
		require.Equal(t, enums.OrderStatusCancelled, order.Status)
	}
}
