package webhooks

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/mechastore/mecha-backend/api/responses"
	sepaysvc "github.com/mechastore/mecha-backend/internal/payments/sepay"
	pkgerrors "github.com/mechastore/mecha-backend/pkg/errors"
	"github.com/mechastore/mecha-backend/pkg/logger"
)

// sepayAck is the acknowledgement shape the Sepay gateway expects: a 200
// with {"success": true} in the body. The reconciliation outcome rides
// alongside for log correlation.
type sepayAck struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Outcome   string `json:"outcome"`
	OrderCode string `json:"order_code,omitempty"`
}

// SepayWebhook ingests bank transfer notifications from the Sepay gateway.
// Every authenticated, well-formed delivery gets a 200 so the gateway stops
// retrying; the reconciliation outcome rides in the response body.
func SepayWebhook(svc sepaysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		if !svc.AuthorizeHeader(r.Header.Get("Authorization")) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid api key"))
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		var payload sepaysvc.WebhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payload"))
			return
		}

		result, err := svc.Handle(ctx, payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			fields := map[string]any{
				"sepay_id": payload.ID,
				"outcome":  string(result.Outcome),
			}
			if result.OrderCode != "" {
				fields["order_code"] = result.OrderCode
			}
			logCtx := logg.WithFields(ctx, fields)
			logg.Info(logCtx, fmt.Sprintf("sepay delivery %d %s", payload.ID, result.Outcome))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(sepayAck{
			Success:   true,
			Message:   result.Reason,
			Outcome:   string(result.Outcome),
			OrderCode: result.OrderCode,
		}); err != nil && logg != nil {
			logg.Error(ctx, "sepay ack encode failed", err)
		}
	}
}
