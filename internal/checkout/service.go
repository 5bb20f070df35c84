package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
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

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// OrderMailer delivers the confirmation email after checkout commits.
type OrderMailer interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order) error
}

// Input carries everything needed to turn a cart into an order. Shipping
// info comes from exactly one source: a saved address id, or the inline
// address and phone fields.
type Input struct {
	UserID            uuid.UUID
	PaymentMethod     enums.PaymentMethod
	ShippingAddressID *uuid.UUID
	ShippingAddress   string
	ContactPhone      string
	Note              *string
}

// Service converts the caller's cart into an immutable order. The whole
// conversion runs in one transaction: stock decrements, order rows and the
// cart wipe commit or roll back together.
type Service interface {
	Checkout(ctx context.Context, input Input) (*models.Order, error)
}

type service struct {
	cartRepo   cart.Repository
	catalog    catalog.Repository
	ordersRepo orders.Repository
	inventory  inventory.Repository
	addresses  addresses.Repository
	tx         txRunner
	mailer     OrderMailer
	logg       *logger.Logger
}

// NewService builds a checkout service with the required dependencies.
func NewService(
	cartRepo cart.Repository,
	cat catalog.Repository,
	ordersRepo orders.Repository,
	inv inventory.Repository,
	addrRepo addresses.Repository,
	tx txRunner,
	mailer OrderMailer,
	logg *logger.Logger,
) (Service, error) {
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if cat == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if addrRepo == nil {
		return nil, fmt.Errorf("addresses repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		cartRepo:   cartRepo,
		catalog:    cat,
		ordersRepo: ordersRepo,
		inventory:  inv,
		addresses:  addrRepo,
		tx:         tx,
		mailer:     mailer,
		logg:       logg,
	}, nil
}

func (s *service) Checkout(ctx context.Context, input Input) (*models.Order, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	shippingAddress, contactPhone, err := s.resolveShipping(ctx, input)
	if err != nil {
		return nil, err
	}

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		cat := s.catalog.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)
		inv := s.inventory.WithTx(tx)

		userCart, err := cartRepo.FindByUserID(ctx, input.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if len(userCart.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		items, total, err := s.buildLines(ctx, cat, inv, userCart.Items)
		if err != nil {
			return err
		}

		order = &models.Order{
			OrderCode:       orders.NewOrderCode(),
			CustomerID:      input.UserID,
			TotalAmount:     total,
			PaymentMethod:   input.PaymentMethod,
			PaymentStatus:   enums.PaymentStatusPending,
			Status:          enums.OrderStatusPending,
			ShippingAddress: shippingAddress,
			ContactPhone:    contactPhone,
			Note:            input.Note,
			Items:           items,
		}
		if err := ordersRepo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		if err := cartRepo.ClearItems(ctx, userCart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatchConfirmation(ctx, order)
	return order, nil
}

// resolveShipping picks the single shipping source. A saved address id and
// inline fields are mutually exclusive; resolved text comes from whichever
// side was supplied.
func (s *service) resolveShipping(ctx context.Context, input Input) (string, string, error) {
	if input.ShippingAddressID != nil {
		if input.ShippingAddress != "" || input.ContactPhone != "" {
			return "", "", pkgerrors.New(pkgerrors.CodeValidation, "provide a saved address id or inline shipping fields, not both")
		}
		addr, err := s.addresses.FindOwned(ctx, input.UserID, *input.ShippingAddressID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", "", pkgerrors.New(pkgerrors.CodeNotFound, "shipping address not found")
			}
			return "", "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipping address")
		}
		return addr.FullText(), addr.Phone, nil
	}
	if input.ShippingAddress == "" {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "shipping address required")
	}
	if input.ContactPhone == "" {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "contact phone required")
	}
	return input.ShippingAddress, input.ContactPhone, nil
}

// buildLines copies the cart's price snapshot into immutable order lines.
// Prices were fixed when each line entered the cart; checkout only checks
// the catalog reference still exists and claims stock for product lines.
func (s *service) buildLines(ctx context.Context, cat catalog.Repository, inv inventory.Repository, cartItems []models.CartItem) ([]models.OrderItem, decimal.Decimal, error) {
	items := make([]models.OrderItem, 0, len(cartItems))
	total := decimal.Zero

	for _, line := range cartItems {
		switch line.ItemKind {
		case enums.ItemKindProduct:
			if line.ProductID == nil {
				return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "cart line missing product id")
			}
			product, err := cat.FindProductByID(ctx, *line.ProductID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "product no longer available")
				}
				return nil, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
			}

			claimed, err := inv.Decrement(ctx, product.ID, line.Quantity)
			if err != nil {
				return nil, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim stock")
			}
			if !claimed {
				return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("insufficient stock for %s", product.Name))
			}

			items = append(items, models.OrderItem{
				ItemKind:  enums.ItemKindProduct,
				ProductID: line.ProductID,
				ItemName:  product.Name,
				Quantity:  line.Quantity,
				UnitPrice: line.UnitPrice,
				LineTotal: line.LineTotal,
			})
			total = total.Add(line.LineTotal)

		case enums.ItemKindService:
			if line.ServiceID == nil {
				return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "cart line missing service id")
			}
			svc, err := cat.FindServiceByID(ctx, *line.ServiceID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "service no longer available")
				}
				return nil, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load service")
			}

			items = append(items, models.OrderItem{
				ItemKind:  enums.ItemKindService,
				ServiceID: line.ServiceID,
				ItemName:  svc.Name,
				Quantity:  line.Quantity,
				UnitPrice: line.UnitPrice,
				LineTotal: line.LineTotal,
			})
			total = total.Add(line.LineTotal)

		default:
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "invalid cart line kind")
		}
	}
	return items, total, nil
}

// dispatchConfirmation sends the order email off the request path. Delivery
// failures are logged and never surface to the caller.
func (s *service) dispatchConfirmation(ctx context.Context, order *models.Order) {
	if s.mailer == nil || order == nil {
		return
	}
	ctx = s.logg.WithOrderCode(context.WithoutCancel(ctx), order.OrderCode)
	go func() {
		if err := s.mailer.SendOrderConfirmation(ctx, order); err != nil {
			s.logg.Error(ctx, "order confirmation email failed", err)
		}
	}()
}
