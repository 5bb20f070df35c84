package pricing

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mechastore/mecha-backend/pkg/db/models"
	"github.com/mechastore/mecha-backend/pkg/enums"
	pkgerrors "github.com/mechastore/mecha-backend/pkg/errors"
)

// UnitPriceForProduct resolves the effective unit price for a product at the
// given quantity. Tiers are evaluated in ascending min_qty order and the first
// tier whose range contains the quantity wins; without a matching tier the
// base price applies.
func UnitPriceForProduct(product *models.Product, quantity int) (decimal.Decimal, error) {
	if product == nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "product required")
	}
	if quantity < 1 {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	tiers := make([]models.ProductTierPrice, len(product.TierPrices))
	copy(tiers, product.TierPrices)
	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].MinQty < tiers[j].MinQty
	})

	for _, tier := range tiers {
		if quantity < tier.MinQty {
			continue
		}
		if tier.MaxQty != nil && quantity > *tier.MaxQty {
			continue
		}
		return tier.UnitPrice, nil
	}
	return product.BasePrice, nil
}

// UnitPriceForService resolves the price of a service offering. Services carry
// no quantity tiers and must be ACTIVE to be sold.
func UnitPriceForService(svc *models.ServiceOffering) (decimal.Decimal, error) {
	if svc == nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "service required")
	}
	if svc.Status != enums.ServiceStatusActive {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeStateConflict, "service is not active")
	}
	return svc.BasePrice, nil
}

// LineTotal multiplies a resolved unit price by quantity.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}
