package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mechastore/mecha-backend/internal/catalog"
	"github.com/mechastore/mecha-backend/internal/pricing"
	"github.com/mechastore/mecha-backend/pkg/db/models"
	"github.com/mechastore/mecha-backend/pkg/enums"
	pkgerrors "github.com/mechastore/mecha-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// AddItemInput captures a request to put a product or service in the cart.
type AddItemInput struct {
	UserID    uuid.UUID
	ItemKind  enums.ItemKind
	ProductID *uuid.UUID
	ServiceID *uuid.UUID
	Quantity  int
}

// Service owns all cart mutations. Every write re-resolves the unit price so
// a line always reflects the tier its quantity lands in.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*View, error)
	AddItem(ctx context.Context, input AddItemInput) (*View, error)
	UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*View, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*View, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	repo    Repository
	catalog catalog.Repository
	tx      txRunner
}

// NewService builds a cart service with the required dependencies.
func NewService(repo Repository, cat catalog.Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if cat == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, catalog: cat, tx: tx}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var view View
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cart, err := s.getOrCreate(ctx, s.repo.WithTx(tx), userID)
		if err != nil {
			return err
		}
		view = buildView(cart)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *service) AddItem(ctx context.Context, input AddItemInput) (*View, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if !input.ItemKind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid item kind")
	}
	refID, err := refIDFor(input.ItemKind, input.ProductID, input.ServiceID)
	if err != nil {
		return nil, err
	}

	var view View
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cat := s.catalog.WithTx(tx)

		cart, err := s.getOrCreate(ctx, repo, input.UserID)
		if err != nil {
			return err
		}

		existing, err := repo.FindItemByRef(ctx, cart.ID, input.ItemKind, refID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}

		quantity := input.Quantity
		if existing != nil {
			quantity += existing.Quantity
		}

		unitPrice, err := s.resolveUnitPrice(ctx, cat, input.ItemKind, refID, quantity)
		if err != nil {
			return err
		}
		lineTotal := pricing.LineTotal(unitPrice, quantity)

		if existing != nil {
			existing.Quantity = quantity
			existing.UnitPrice = unitPrice
			existing.LineTotal = lineTotal
			if err := repo.SaveItem(ctx, existing); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
			}
		} else {
			item := &models.CartItem{
				CartID:    cart.ID,
				ItemKind:  input.ItemKind,
				ProductID: input.ProductID,
				ServiceID: input.ServiceID,
				Quantity:  quantity,
				UnitPrice: unitPrice,
				LineTotal: lineTotal,
			}
			if err := repo.CreateItem(ctx, item); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart item")
			}
		}

		fresh, err := repo.FindByUserID(ctx, input.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
		}
		view = buildView(fresh)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *service) UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	var view View
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cat := s.catalog.WithTx(tx)

		cart, err := repo.FindByUserID(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		item, err := repo.FindItem(ctx, cart.ID, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}

		refID, err := refIDFor(item.ItemKind, item.ProductID, item.ServiceID)
		if err != nil {
			return err
		}
		unitPrice, err := s.resolveUnitPrice(ctx, cat, item.ItemKind, refID, quantity)
		if err != nil {
			return err
		}

		item.Quantity = quantity
		item.UnitPrice = unitPrice
		item.LineTotal = pricing.LineTotal(unitPrice, quantity)
		if err := repo.SaveItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
		}

		fresh, err := repo.FindByUserID(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
		}
		view = buildView(fresh)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}

	var view View
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := repo.FindByUserID(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		if _, err := repo.FindItem(ctx, cart.ID, itemID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}
		if err := repo.DeleteItem(ctx, cart.ID, itemID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
		}

		fresh, err := repo.FindByUserID(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
		}
		view = buildView(fresh)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.FindByUserID(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if err := repo.ClearItems(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart items")
		}
		return nil
	})
}

func (s *service) getOrCreate(ctx context.Context, repo Repository, userID uuid.UUID) (*models.Cart, error) {
	cart, err := repo.FindByUserID(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	created := &models.Cart{UserID: userID}
	if err := repo.Create(ctx, created); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	created.Items = nil
	return created, nil
}

func (s *service) resolveUnitPrice(ctx context.Context, cat catalog.Repository, kind enums.ItemKind, refID uuid.UUID, quantity int) (decimal.Decimal, error) {
	switch kind {
	case enums.ItemKindProduct:
		product, err := cat.FindProductByID(ctx, refID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		return pricing.UnitPriceForProduct(product, quantity)
	case enums.ItemKindService:
		svc, err := cat.FindServiceByID(ctx, refID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "service not found")
			}
			return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load service")
		}
		return pricing.UnitPriceForService(svc)
	default:
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "invalid item kind")
	}
}

func refIDFor(kind enums.ItemKind, productID, serviceID *uuid.UUID) (uuid.UUID, error) {
	switch kind {
	case enums.ItemKindProduct:
		if productID == nil || *productID == uuid.Nil {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if serviceID != nil {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "service id not allowed for product lines")
		}
		return *productID, nil
	case enums.ItemKindService:
		if serviceID == nil || *serviceID == uuid.Nil {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "service id required")
		}
		if productID != nil {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "product id not allowed for service lines")
		}
		return *serviceID, nil
	default:
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid item kind")
	}
}
