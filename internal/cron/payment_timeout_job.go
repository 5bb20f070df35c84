package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mechastore/mecha-backend/internal/inventory"
	"github.com/mechastore/mecha-backend/internal/notifications"
	"github.com/mechastore/mecha-backend/internal/orders"
	"github.com/mechastore/mecha-backend/pkg/db/models"
	"github.com/mechastore/mecha-backend/pkg/enums"
	"github.com/mechastore/mecha-backend/pkg/logger"
)

const paymentTimeoutJobName = "payment-timeout"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PaymentTimeoutJobParams configure the bank transfer expiration sweep.
type PaymentTimeoutJobParams struct {
	Orders        orders.Repository
	Inventory     inventory.Repository
	Notifications notifications.Repository
	Tx            txRunner
	Logger        *logger.Logger
	Timeout       time.Duration
}

// PaymentTimeoutJob cancels bank transfer orders whose payment window has
// lapsed. The whole batch is swept in a single transaction; the guarded
// status update keeps an order paid mid-sweep out of the cancellation.
type PaymentTimeoutJob struct {
	orders        orders.Repository
	inventory     inventory.Repository
	notifications notifications.Repository
	tx            txRunner
	logg          *logger.Logger
	timeout       time.Duration

	now func() time.Time
}

// NewPaymentTimeoutJob builds the sweep job.
func NewPaymentTimeoutJob(params PaymentTimeoutJobParams) (*PaymentTimeoutJob, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.Notifications == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &PaymentTimeoutJob{
		orders:        params.Orders,
		inventory:     params.Inventory,
		notifications: params.Notifications,
		tx:            params.Tx,
		logg:          params.Logger,
		timeout:       timeout,
		now:           time.Now,
	}, nil
}

// Name implements Job.
func (j *PaymentTimeoutJob) Name() string { return paymentTimeoutJobName }

// Run implements Job.
func (j *PaymentTimeoutJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.timeout)

	cancelled := 0
	err := j.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.orders.WithTx(tx)
		inv := j.inventory.WithTx(tx)
		notifRepo := j.notifications.WithTx(tx)

		expired, err := repo.FindExpiredBankTransfers(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("list expired bank transfers: %w", err)
		}
		for _, stale := range expired {
			changed, err := j.expireOrder(ctx, repo, inv, notifRepo, stale)
			if err != nil {
				return fmt.Errorf("expire order %s: %w", stale.OrderCode, err)
			}
			if changed {
				cancelled++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	j.logg.Info(j.logg.WithField(ctx, "cancelled", cancelled), "payment timeout sweep finished")
	return nil
}

func (j *PaymentTimeoutJob) expireOrder(ctx context.Context, repo orders.Repository, inv inventory.Repository, notifRepo notifications.Repository, stale models.Order) (bool, error) {
	// Re-guard on the current status: the customer may have paid or
	// cancelled between the scan and this point.
	changed, err := repo.UpdateStatusIf(ctx, stale.ID, enums.OrderStatusPending, enums.OrderStatusCancelled)
	if err != nil {
		return false, fmt.Errorf("cancel order: %w", err)
	}
	if !changed {
		return false, nil
	}

	if _, err := repo.UpdatePaymentStatusIf(ctx, stale.ID, enums.PaymentStatusPending, enums.PaymentStatusFailed); err != nil {
		return false, fmt.Errorf("fail payment: %w", err)
	}

	order, err := repo.FindByID(ctx, stale.ID)
	if err != nil {
		return false, fmt.Errorf("reload order: %w", err)
	}
	for _, item := range order.Items {
		if item.ItemKind != enums.ItemKindProduct || item.ProductID == nil {
			continue
		}
		if err := inv.Restock(ctx, *item.ProductID, item.Quantity); err != nil {
			return false, fmt.Errorf("restock product: %w", err)
		}
	}

	if err := repo.SetNote(ctx, order.ID, orders.AppendNote(order.Note, "Payment timeout")); err != nil {
		return false, fmt.Errorf("append note: %w", err)
	}

	notification := &models.Notification{
		UserID:  order.CustomerID,
		OrderID: &order.ID,
		Title:   "Order cancelled",
		Body:    fmt.Sprintf("Order %s was cancelled because payment was not received in time.", order.OrderCode),
	}
	if err := notifRepo.Create(ctx, notification); err != nil {
		return false, fmt.Errorf("write notification: %w", err)
	}
	return true, nil
}
