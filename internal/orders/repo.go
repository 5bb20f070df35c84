package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mechastore/mecha-backend/pkg/db/models"
	"github.com/mechastore/mecha-backend/pkg/enums"
)

// Repository persists orders and their frozen line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByCode(ctx context.Context, code string) (*models.Order, error)
	FindByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.Order, error)
	Search(ctx context.Context, filters SearchFilters) ([]models.Order, error)
	// UpdateStatusIf flips status only when the order currently holds the
	// expected status. Returns false when the guard did not match.
	UpdateStatusIf(ctx context.Context, id uuid.UUID, expected, target enums.OrderStatus) (bool, error)
	// MarkPaidIfPending flips payment_status PENDING -> PAID. Returns false
	// when the order was already settled or failed.
	MarkPaidIfPending(ctx context.Context, id uuid.UUID) (bool, error)
	UpdatePaymentStatusIf(ctx context.Context, id uuid.UUID, expected, target enums.PaymentStatus) (bool, error)
	// SetPaymentStatus writes payment_status unconditionally. Reserved for
	// the operator override; automatic transitions go through the guarded
	// variants above.
	SetPaymentStatus(ctx context.Context, id uuid.UUID, target enums.PaymentStatus) error
	SetNote(ctx context.Context, id uuid.UUID, note string) error
	FindExpiredBankTransfers(ctx context.Context, cutoff time.Time) ([]models.Order, error)
	HasDeliveredOrderWithProduct(ctx context.Context, customerID, productID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("order_code = ?", code).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) Search(ctx context.Context, filters SearchFilters) ([]models.Order, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{}).Preload("Items")

	if filters.CustomerID != nil {
		query = query.Where("customer_id = ?", *filters.CustomerID)
	}
	if filters.OrderCode != nil {
		query = query.Where("order_code = ?", *filters.OrderCode)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.PaymentStatus != nil {
		query = query.Where("payment_status = ?", *filters.PaymentStatus)
	}
	if filters.PaymentMethod != nil {
		query = query.Where("payment_method = ?", *filters.PaymentMethod)
	}
	if filters.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filters.CreatedFrom)
	}
	if filters.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filters.CreatedTo)
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	var orders []models.Order
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(filters.Offset).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) UpdateStatusIf(ctx context.Context, id uuid.UUID, expected, target enums.OrderStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, expected).
		Update("status", target)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) MarkPaidIfPending(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.UpdatePaymentStatusIf(ctx, id, enums.PaymentStatusPending, enums.PaymentStatusPaid)
}

func (r *repository) UpdatePaymentStatusIf(ctx context.Context, id uuid.UUID, expected, target enums.PaymentStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", id, expected).
		Update("payment_status", target)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) SetPaymentStatus(ctx context.Context, id uuid.UUID, target enums.PaymentStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("payment_status", target).Error
}

func (r *repository) SetNote(ctx context.Context, id uuid.UUID, note string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("note", note).Error
}

func (r *repository) FindExpiredBankTransfers(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("payment_method = ? AND payment_status = ? AND status = ? AND created_at < ?",
			enums.PaymentMethodBankTransfer, enums.PaymentStatusPending, enums.OrderStatusPending, cutoff).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) HasDeliveredOrderWithProduct(ctx context.Context, customerID, productID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.customer_id = ? AND orders.status = ? AND order_items.product_id = ?",
			customerID, enums.OrderStatusDelivered, productID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
