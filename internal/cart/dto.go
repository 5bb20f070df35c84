package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mechastore/mecha-backend/pkg/db/models"
	"github.com/mechastore/mecha-backend/pkg/enums"
)

// ItemView is the API shape of a single cart line.
type ItemView struct {
	ID        uuid.UUID       `json:"id"`
	ItemKind  enums.ItemKind  `json:"item_kind"`
	ProductID *uuid.UUID      `json:"product_id,omitempty"`
	ServiceID *uuid.UUID      `json:"service_id,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// View is the API shape of a cart with its computed subtotal.
type View struct {
	ID       uuid.UUID       `json:"id"`
	Items    []ItemView      `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

func buildView(cart *models.Cart) View {
	view := View{
		ID:       cart.ID,
		Items:    make([]ItemView, 0, len(cart.Items)),
		Subtotal: decimal.Zero,
	}
	for _, item := range cart.Items {
		view.Items = append(view.Items, ItemView{
			ID:        item.ID,
			ItemKind:  item.ItemKind,
			ProductID: item.ProductID,
			ServiceID: item.ServiceID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
		})
		view.Subtotal = view.Subtotal.Add(item.LineTotal)
	}
	return view
}
