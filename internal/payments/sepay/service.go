package sepay

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"gorm.io/gorm"

	"github.com/mechastore/mecha-backend/internal/notifications"
	"github.com/mechastore/mecha-backend/internal/orders"
	"github.com/mechastore/mecha-backend/internal/payments/sepay/match"
	"github.com/mechastore/mecha-backend/pkg/config"
	"github.com/mechastore/mecha-backend/pkg/db"
	"github.com/mechastore/mecha-backend/pkg/db/models"
	"github.com/mechastore/mecha-backend/pkg/enums"
	pkgerrors "github.com/mechastore/mecha-backend/pkg/errors"
	"github.com/mechastore/mecha-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

const authScheme = "Apikey "

// Service reconciles incoming bank transfers against pending orders. Every
// delivery is stored; at most one delivery per sepay transaction id ever
// reaches an order.
type Service interface {
	// AuthorizeHeader checks the webhook Authorization header. A blank
	// configured key disables the check.
	AuthorizeHeader(header string) bool
	Handle(ctx context.Context, payload WebhookPayload) (*Result, error)
	PaymentInfoFor(ctx context.Context, order *models.Order) (*PaymentInfo, error)
}

type service struct {
	repo          Repository
	ordersRepo    orders.Repository
	notifications notifications.Repository
	tx            txRunner
	cfg           config.SepayConfig
	logg          *logger.Logger
}

// NewService builds a sepay reconciliation service with the required dependencies.
func NewService(
	repo Repository,
	ordersRepo orders.Repository,
	notificationsRepo notifications.Repository,
	tx txRunner,
	cfg config.SepayConfig,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("sepay repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if notificationsRepo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:          repo,
		ordersRepo:    ordersRepo,
		notifications: notificationsRepo,
		tx:            tx,
		cfg:           cfg,
		logg:          logg,
	}, nil
}

func (s *service) AuthorizeHeader(header string) bool {
	if s.cfg.APIKey == "" {
		return true
	}
	if !strings.HasPrefix(header, authScheme) {
		return false
	}
	return strings.TrimPrefix(header, authScheme) == s.cfg.APIKey
}

func (s *service) Handle(ctx context.Context, payload WebhookPayload) (*Result, error) {
	if payload.ID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}

	result := &Result{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)
		notifRepo := s.notifications.WithTx(tx)

		exists, err := repo.ExistsBySepayID(ctx, payload.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check duplicate transaction")
		}
		if exists {
			result.Outcome = OutcomeDuplicate
			result.Reason = "transaction already processed"
			return nil
		}

		txn := &models.SepayTransaction{
			SepayID:         payload.ID,
			Gateway:         payload.Gateway,
			TransactionDate: parseTransactionDate(payload.TransactionDate),
			AccountNumber:   payload.AccountNumber,
			Code:            payload.Code,
			Content:         payload.Content,
			TransferType:    payload.TransferType,
			TransferAmount:  payload.TransferAmount,
			Accumulated:     payload.Accumulated,
			SubAccount:      payload.SubAccount,
			ReferenceCode:   payload.ReferenceCode,
			Description:     payload.Description,
		}

		s.reconcile(ctx, ordersRepo, notifRepo, payload, txn, result)

		if err := repo.Create(ctx, txn); err != nil {
			if db.IsUniqueViolation(err, "") {
				// Concurrent delivery of the same transaction won the race.
				*result = Result{Outcome: OutcomeDuplicate, Reason: "transaction already processed"}
				return pkgerrors.New(pkgerrors.CodeConflict, "duplicate sepay transaction")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store sepay transaction")
		}
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeConflict {
			return &Result{Outcome: OutcomeDuplicate, Reason: "transaction already processed"}, nil
		}
		return nil, err
	}
	return result, nil
}

// reconcile mutates result and txn in place. Any failure to apply leaves the
// order untouched; the transaction row is still written by the caller.
func (s *service) reconcile(
	ctx context.Context,
	ordersRepo orders.Repository,
	notifRepo notifications.Repository,
	payload WebhookPayload,
	txn *models.SepayTransaction,
	result *Result,
) {
	order, err := matchOrder(ctx, ordersRepo, payload)
	if err != nil {
		result.Outcome = OutcomeRejected
		result.Reason = "order lookup failed"
		s.logg.Error(ctx, "sepay order lookup failed", err)
		return
	}
	if order == nil {
		if code, ok := bookingReference(payload); ok {
			result.OrderCode = code
			result.Outcome = OutcomeUnmatched
			result.Reason = "booking reference recorded"
			return
		}
		result.Outcome = OutcomeUnmatched
		result.Reason = "no order reference in transfer content"
		return
	}
	result.OrderCode = order.OrderCode
	txn.OrderID = &order.ID

	if enums.TransferDirection(payload.TransferType) != enums.TransferDirectionIn {
		result.Outcome = OutcomeRejected
		result.Reason = "transfer is not incoming"
		return
	}
	if order.PaymentMethod != enums.PaymentMethodBankTransfer {
		result.Outcome = OutcomeRejected
		result.Reason = "order is not a bank transfer order"
		return
	}
	if order.PaymentStatus != enums.PaymentStatusPending {
		result.Outcome = OutcomeRejected
		result.Reason = "order payment is not pending"
		return
	}
	if payload.TransferAmount.LessThan(order.TotalAmount) {
		result.Outcome = OutcomeRejected
		result.Reason = "transfer amount below order total"
		return
	}

	changed, err := ordersRepo.MarkPaidIfPending(ctx, order.ID)
	if err != nil {
		result.Outcome = OutcomeRejected
		result.Reason = "payment update failed"
		s.logg.Error(ctx, "sepay payment update failed", err)
		return
	}
	if !changed {
		result.Outcome = OutcomeRejected
		result.Reason = "order payment is not pending"
		return
	}

	note := orders.AppendNote(order.Note, fmt.Sprintf("Paid via bank transfer (Sepay #%d)", payload.ID))
	if err := ordersRepo.SetNote(ctx, order.ID, note); err != nil {
		s.logg.Error(ctx, "sepay note append failed", err)
	}

	notification := &models.Notification{
		UserID:  order.CustomerID,
		OrderID: &order.ID,
		Title:   "Payment received",
		Body:    fmt.Sprintf("Order %s has been paid.", order.OrderCode),
	}
	if err := notifRepo.Create(ctx, notification); err != nil {
		s.logg.Error(ctx, "sepay notification write failed", err)
	}

	result.Outcome = OutcomeApplied
	result.Reason = "payment applied"
}

// matchOrder resolves the delivery to an order in fixed priority: the
// structured code field taken verbatim as an order code, then each token in
// the transfer content, then each token in the description. A candidate
// that resolves to no order falls through to the next one.
func matchOrder(ctx context.Context, ordersRepo orders.Repository, payload WebhookPayload) (*models.Order, error) {
	var candidates []string
	if payload.Code != nil {
		if code := strings.ToUpper(strings.TrimSpace(*payload.Code)); code != "" {
			candidates = append(candidates, code)
		}
	}
	candidates = append(candidates, match.OrderCodes(payload.Content)...)
	if payload.Description != nil {
		candidates = append(candidates, match.OrderCodes(*payload.Description)...)
	}

	for _, code := range candidates {
		order, err := ordersRepo.FindByCode(ctx, code)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		return order, nil
	}
	return nil, nil
}

func bookingReference(payload WebhookPayload) (string, bool) {
	if code, ok := match.BookingReference(payload.Content); ok {
		return code, true
	}
	if payload.Description != nil {
		return match.BookingReference(*payload.Description)
	}
	return "", false
}

func (s *service) PaymentInfoFor(ctx context.Context, order *models.Order) (*PaymentInfo, error) {
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if order.PaymentMethod != enums.PaymentMethodBankTransfer {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order is not a bank transfer order")
	}
	if order.PaymentStatus != enums.PaymentStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order payment is not pending")
	}
	if s.cfg.BankAccountNumber == "" || s.cfg.BankName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "bank transfer details not configured")
	}

	qr := url.URL{Scheme: "https", Host: "qr.sepay.vn", Path: "/img"}
	q := qr.Query()
	q.Set("acc", s.cfg.BankAccountNumber)
	q.Set("bank", s.cfg.BankName)
	q.Set("amount", order.TotalAmount.String())
	q.Set("des", order.OrderCode)
	qr.RawQuery = q.Encode()

	return &PaymentInfo{
		BankName:          s.cfg.BankName,
		AccountNumber:     s.cfg.BankAccountNumber,
		AccountHolderName: s.cfg.AccountHolderName,
		Amount:            order.TotalAmount,
		TransferContent:   order.OrderCode,
		QRImageURL:        qr.String(),
	}, nil
}
