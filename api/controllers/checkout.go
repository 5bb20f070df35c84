package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/mechastore/mecha-backend/api/responses"
	"github.com/mechastore/mecha-backend/api/validators"
	checkoutsvc "github.com/mechastore/mecha-backend/internal/checkout"
	sepaysvc "github.com/mechastore/mecha-backend/internal/payments/sepay"
	"github.com/mechastore/mecha-backend/pkg/enums"
	pkgerrors "github.com/mechastore/mecha-backend/pkg/errors"
	"github.com/mechastore/mecha-backend/pkg/logger"
)

type checkoutRequest struct {
	PaymentMethod     string  `json:"payment_method" validate:"required,oneof=BANK_TRANSFER CASH_ON_DELIVERY"`
	ShippingAddressID *string `json:"shipping_address_id" validate:"omitempty,uuid"`
	ShippingAddress   string  `json:"shipping_address" validate:"omitempty,min=5,max=500"`
	ContactPhone      string  `json:"contact_phone" validate:"omitempty,min=7,max=20"`
	Note              *string `json:"note" validate:"omitempty,max=1000"`
}

type checkoutResponse struct {
	Order       orderResponse         `json:"order"`
	PaymentInfo *sepaysvc.PaymentInfo `json:"payment_info,omitempty"`
}

// Checkout converts the caller's cart into an order. Bank-transfer orders
// also get the transfer instructions in the same response.
func Checkout(svc checkoutsvc.Service, paySvc sepaysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		var addressID *uuid.UUID
		if payload.ShippingAddressID != nil {
			parsed, err := validators.ParsePathUUID(*payload.ShippingAddressID, "shipping_address_id")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			addressID = &parsed
		}

		var note *string
		if payload.Note != nil {
			trimmed := validators.SanitizeString(*payload.Note, 1000)
			if trimmed != "" {
				note = &trimmed
			}
		}

		order, err := svc.Checkout(r.Context(), checkoutsvc.Input{
			UserID:            userID,
			PaymentMethod:     method,
			ShippingAddressID: addressID,
			ShippingAddress:   validators.SanitizeString(payload.ShippingAddress, 500),
			ContactPhone:      validators.SanitizeString(payload.ContactPhone, 20),
			Note:              note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := checkoutResponse{Order: newOrderResponse(order)}

		if method == enums.PaymentMethodBankTransfer && paySvc != nil {
			info, err := paySvc.PaymentInfoFor(r.Context(), order)
			if err != nil {
				// The order is committed; missing transfer instructions must
				// not fail the checkout response.
				if logg != nil {
					logg.Error(r.Context(), "checkout.payment_info", err)
				}
			} else {
				out.PaymentInfo = info
			}
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, out)
	}
}
