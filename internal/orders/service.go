package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mechastore/mecha-backend/internal/inventory"
	"github.com/mechastore/mecha-backend/pkg/db/models"
	"github.com/mechastore/mecha-backend/pkg/enums"
	pkgerrors "github.com/mechastore/mecha-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

const noteSeparator = " | "

// AppendNote joins a new note fragment onto an existing order note.
func AppendNote(existing *string, addition string) string {
	if existing == nil || *existing == "" {
		return addition
	}
	return *existing + noteSeparator + addition
}

// Service covers order reads and the state changes allowed after checkout.
type Service interface {
	GetByID(ctx context.Context, actorID uuid.UUID, actorRole enums.UserRole, orderID uuid.UUID) (*models.Order, error)
	ListMine(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error)
	Search(ctx context.Context, filters SearchFilters) ([]models.Order, error)
	UpdateStatus(ctx context.Context, input StatusUpdateInput) (*models.Order, error)
	OverridePaymentStatus(ctx context.Context, input PaymentOverrideInput) (*models.Order, error)
	CancelByOwner(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	HasDeliveredOrderWithProduct(ctx context.Context, customerID, productID uuid.UUID) (bool, error)
}

type service struct {
	repo      Repository
	inventory inventory.Repository
	tx        txRunner
}

// NewService builds an orders service with the required dependencies.
func NewService(repo Repository, inv inventory.Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, inventory: inv, tx: tx}, nil
}

func (s *service) GetByID(ctx context.Context, actorID uuid.UUID, actorRole enums.UserRole, orderID uuid.UUID) (*models.Order, error) {
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.CustomerID != actorID && !actorRole.IsElevated() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}
	return order, nil
}

func (s *service) ListMine(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if limit <= 0 {
		limit = 50
	}
	orders, err := s.repo.FindByCustomer(ctx, userID, limit, offset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, nil
}

func (s *service) Search(ctx context.Context, filters SearchFilters) ([]models.Order, error) {
	orders, err := s.repo.Search(ctx, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search orders")
	}
	return orders, nil
}

func (s *service) UpdateStatus(ctx context.Context, input StatusUpdateInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	if input.Status == enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orders cannot return to pending")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status == input.Status {
			result = order
			return nil
		}
		if order.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is already finalized")
		}

		changed, err := repo.UpdateStatusIf(ctx, order.ID, order.Status, input.Status)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !changed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order state changed concurrently")
		}

		if input.Status == enums.OrderStatusCancelled {
			if err := s.cancelSideEffects(ctx, repo, s.inventory.WithTx(tx), order); err != nil {
				return err
			}
		}
		if input.Note != nil && *input.Note != "" {
			if err := repo.SetNote(ctx, order.ID, AppendNote(order.Note, *input.Note)); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order note")
			}
		}

		fresh, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		result = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// OverridePaymentStatus is the operator escape hatch: it writes the payment
// status directly, skipping the one-way transition guards the reconciler and
// sweeper obey. Only PAID and FAILED are legal targets.
func (s *service) OverridePaymentStatus(ctx context.Context, input PaymentOverrideInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.PaymentStatus != enums.PaymentStatusPaid && input.PaymentStatus != enums.PaymentStatusFailed {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment status override must be PAID or FAILED")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if order.PaymentStatus != input.PaymentStatus {
			if err := repo.SetPaymentStatus(ctx, order.ID, input.PaymentStatus); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "override payment status")
			}
		}
		if input.Note != nil && *input.Note != "" {
			if err := repo.SetNote(ctx, order.ID, AppendNote(order.Note, *input.Note)); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order note")
			}
		}

		fresh, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		result = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) CancelByOwner(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.CustomerID != userID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending orders can be cancelled")
		}

		changed, err := repo.UpdateStatusIf(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusCancelled)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if !changed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order state changed concurrently")
		}

		if err := s.cancelSideEffects(ctx, repo, s.inventory.WithTx(tx), order); err != nil {
			return err
		}
		if err := repo.SetNote(ctx, order.ID, AppendNote(order.Note, "Cancelled by customer")); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order note")
		}

		fresh, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		result = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) HasDeliveredOrderWithProduct(ctx context.Context, customerID, productID uuid.UUID) (bool, error) {
	if customerID == uuid.Nil || productID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "customer id and product id required")
	}
	ok, err := s.repo.HasDeliveredOrderWithProduct(ctx, customerID, productID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check delivered orders")
	}
	return ok, nil
}

// cancelSideEffects restocks product lines and fails a still-pending payment.
// A settled payment survives cancellation; refunds are handled out of band.
func (s *service) cancelSideEffects(ctx context.Context, repo Repository, inv inventory.Repository, order *models.Order) error {
	for _, item := range order.Items {
		if item.ItemKind != enums.ItemKindProduct || item.ProductID == nil {
			continue
		}
		if err := inv.Restock(ctx, *item.ProductID, item.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restock product")
		}
	}
	if order.PaymentStatus == enums.PaymentStatusPending {
		if _, err := repo.UpdatePaymentStatusIf(ctx, order.ID, enums.PaymentStatusPending, enums.PaymentStatusFailed); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fail pending payment")
		}
	}
	return nil
}
