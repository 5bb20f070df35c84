package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mechastore/mecha-backend/api/responses"
	"github.com/mechastore/mecha-backend/api/validators"
	ordersvc "github.com/mechastore/mecha-backend/internal/orders"
	"github.com/mechastore/mecha-backend/pkg/enums"
	pkgerrors "github.com/mechastore/mecha-backend/pkg/errors"
	"github.com/mechastore/mecha-backend/pkg/logger"
)

// AdminOrderSearch lists orders across all customers with optional filters.
func AdminOrderSearch(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		filters, err := searchFiltersFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orders, err := svc.Search(r.Context(), filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]orderResponse, 0, len(orders))
		for i := range orders {
			out = append(out, newOrderResponse(&orders[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

func searchFiltersFromQuery(r *http.Request) (ordersvc.SearchFilters, error) {
	var filters ordersvc.SearchFilters

	if raw := validators.ParseQueryString(r, "customer_id"); raw != nil {
		id, err := uuid.Parse(*raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid customer id")
		}
		filters.CustomerID = &id
	}

	filters.OrderCode = validators.ParseQueryString(r, "order_code")

	if raw := validators.ParseQueryString(r, "status"); raw != nil {
		status, err := enums.ParseOrderStatus(*raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		filters.Status = &status
	}

	if raw := validators.ParseQueryString(r, "payment_status"); raw != nil {
		status, err := enums.ParsePaymentStatus(*raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment status")
		}
		filters.PaymentStatus = &status
	}

	if raw := validators.ParseQueryString(r, "payment_method"); raw != nil {
		method, err := enums.ParsePaymentMethod(*raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
		}
		filters.PaymentMethod = &method
	}

	if raw := validators.ParseQueryString(r, "created_from"); raw != nil {
		from, err := time.Parse(time.RFC3339, *raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid created_from")
		}
		filters.CreatedFrom = &from
	}

	if raw := validators.ParseQueryString(r, "created_to"); raw != nil {
		to, err := time.Parse(time.RFC3339, *raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid created_to")
		}
		filters.CreatedTo = &to
	}

	limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
	if err != nil {
		return filters, err
	}
	offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1000000)
	if err != nil {
		return filters, err
	}
	filters.Limit = limit
	filters.Offset = offset

	return filters, nil
}

type updateOrderStatusRequest struct {
	Status string  `json:"status" validate:"required,oneof=PENDING DELIVERED CANCELLED"`
	Note   *string `json:"note" validate:"omitempty,max=1000"`
}

// AdminOrderUpdateStatus applies a staff-driven status change. Cancelling a
// pending order restocks its product lines.
func AdminOrderUpdateStatus(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actorID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateOrderStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseOrderStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		var note *string
		if payload.Note != nil {
			trimmed := validators.SanitizeString(*payload.Note, 1000)
			if trimmed != "" {
				note = &trimmed
			}
		}

		order, err := svc.UpdateStatus(r.Context(), ordersvc.StatusUpdateInput{
			OrderID:     orderID,
			Status:      status,
			Note:        note,
			ActorUserID: actorID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

type overridePaymentStatusRequest struct {
	PaymentStatus string  `json:"payment_status" validate:"required,oneof=PAID FAILED"`
	Note          *string `json:"note" validate:"omitempty,max=1000"`
}

// AdminOrderOverridePaymentStatus corrects a payment status by operator
// decision, outside the reconciler's one-way transitions.
func AdminOrderOverridePaymentStatus(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actorID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload overridePaymentStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParsePaymentStatus(payload.PaymentStatus)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment status"))
			return
		}

		var note *string
		if payload.Note != nil {
			trimmed := validators.SanitizeString(*payload.Note, 1000)
			if trimmed != "" {
				note = &trimmed
			}
		}

		order, err := svc.OverridePaymentStatus(r.Context(), ordersvc.PaymentOverrideInput{
			OrderID:       orderID,
			PaymentStatus: status,
			Note:          note,
			ActorUserID:   actorID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}
