package service

import (
	"context"
	"errors"
	"fmt"
	billingerrors "smartdorm/internal/billing/errors"
	billrepository "smartdorm/internal/billing/repository"
	billservice "smartdorm/internal/billing/service"
	"smartdorm/internal/notices"
	paymentserrors "smartdorm/internal/payments/errors"
	"smartdorm/internal/payments/repository"
	"smartdorm/pkg/blob"
	"smartdorm/pkg/config"
	mongotx "smartdorm/pkg/db/mongo"
	apperrors "smartdorm/pkg/errors"
	"smartdorm/pkg/identity"
	"smartdorm/pkg/model"
	"smartdorm/pkg/notify"
	"smartdorm/pkg/validator"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

type PaymentService interface {
	Submit(ctx context.Context, req *model.PaymentSubmission) (*model.Payment, error)
	Approve(ctx context.Context, billID string) (*model.Bill, error)
	Reject(ctx context.Context, billID string) (*model.Bill, error)
	GetByBill(ctx context.Context, billID string) ([]*model.Payment, error)
}

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*identity.Identity, error)
}

type Dependencies struct {
	Repo      repository.PaymentRepository
	Bills     billrepository.BillRepository
	Auth      Authenticator
	Blobs     blob.Storage
	TxManager mongotx.TransactionManager
	Notices   *notices.Publisher
	Validator *validator.Validator
	Config    *config.Config
}

type paymentService struct {
	repo      repository.PaymentRepository
	bills     billrepository.BillRepository
	auth      Authenticator
	blobs     blob.Storage
	txManager mongotx.TransactionManager
	notices   *notices.Publisher
	validator *validator.Validator
	cfg       *config.Config
}

func NewPaymentService(deps Dependencies) PaymentService {
	return &paymentService{
		repo:      deps.Repo,
		bills:     deps.Bills,
		auth:      deps.Auth,
		blobs:     deps.Blobs,
		txManager: deps.TxManager,
		notices:   deps.Notices,
		validator: deps.Validator,
		cfg:       deps.Config,
	}
}

func (s *paymentService) Submit(ctx context.Context, req *model.PaymentSubmission) (*model.Payment, error) {
	if req == nil {
		return nil, apperrors.InvalidInput("Payment submission cannot be empty")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, apperrors.Validation("Invalid payment submission", validator.Details(err))
	}

	who, err := s.auth.Authenticate(ctx, req.AccessToken)
	if err != nil {
		return nil, err
	}

	bill, err := s.bills.FindByID(ctx, req.BillID)
	if err != nil {
		return nil, billservice.MapError(err, req.BillID)
	}
	if bill.ExternalID != who.Subject {
		s.cfg.Log.Warn("Payment submitted for another customer's bill", "bill_id", bill.ID, "subject", who.Subject)
		return nil, apperrors.Forbidden("Bill belongs to another customer").WithCause(paymentserrors.ErrNotOwner)
	}
	if err := payable(bill); err != nil {
		return nil, err
	}

	if len(req.Slip) == 0 {
		return nil, apperrors.Validation("Invalid payment submission", map[string]any{
			"slip": "is required",
		}).WithCause(paymentserrors.ErrSlipRequired)
	}
	if err := blob.Check(req.Slip, req.SlipContentType); err != nil {
		return nil, apperrors.Validation("Invalid slip", map[string]any{"slip": err.Error()}).WithCause(err)
	}
	slipURL, err := s.blobs.Store(ctx, req.Slip, req.SlipContentType)
	if err != nil {
		s.cfg.Log.Error("Failed to store payment slip", "bill_id", bill.ID, "error", err)
		return nil, apperrors.Upstream("blob storage", err)
	}

	payment := &model.Payment{
		BillID:      bill.ID,
		CustomerID:  bill.CustomerID,
		ExternalID:  bill.ExternalID,
		SlipURL:     slipURL,
		Status:      model.PaymentSubmitted,
		SubmittedAt: s.cfg.Now(),
	}
	err = s.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		current, err := s.bills.FindByID(sessCtx, bill.ID)
		if err != nil {
			return billservice.MapError(err, bill.ID)
		}
		if err := payable(current); err != nil {
			return err
		}
		if err := s.repo.Create(sessCtx, payment); err != nil {
			return apperrors.Internal("Failed to record payment", err)
		}
		if _, err := s.bills.TransitionStatus(sessCtx, bill.ID, model.BillUnpaid, model.BillVerifying, nil); err != nil {
			if errors.Is(err, billingerrors.ErrStateChanged) {
				return apperrors.Conflict("Bill changed during payment, please retry").WithCause(err)
			}
			return billservice.MapError(err, bill.ID)
		}
		return nil
	})
	if err != nil {
		s.discardSlip(slipURL)
		s.cfg.Log.Error("Failed to submit payment", "bill_id", bill.ID, "error", err)
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.Internal("Failed to submit payment", err)
	}

	s.cfg.Log.Info("Payment submitted", "id", payment.ID, "bill_id", bill.ID, "room", bill.RoomNumber)
	fields := paymentFields(bill)
	s.notices.ToCustomer(ctx, bill.CustomerID, notices.Message{
		Event:   notices.EventPaymentSubmitted,
		Subject: fmt.Sprintf("Payment received for room %s, %s", bill.RoomNumber, notices.Month(bill.Period)),
		Fields:  fields,
		Path:    "/bills/" + bill.ID,
	})
	s.notices.ToAdmin(notices.Message{
		Event:   notices.EventPaymentSubmitted,
		Subject: fmt.Sprintf("Payment to review for room %s, %s", bill.RoomNumber, notices.Month(bill.Period)),
		Fields:  append(fields, notify.Field{Label: "Slip", Value: slipURL}),
		Path:    "/admin/bills/" + bill.ID,
	})
	return payment, nil
}

func (s *paymentService) Approve(ctx context.Context, billID string) (*model.Bill, error) {
	now := s.cfg.Now()
	bill, err := s.review(ctx, billID, model.BillPaid, model.PaymentApproved, &now)
	if err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Payment approved", "bill_id", billID, "room", bill.RoomNumber)
	s.notices.ToCustomer(ctx, bill.CustomerID, notices.Message{
		Event:   notices.EventPaymentApproved,
		Subject: fmt.Sprintf("Payment confirmed for room %s, %s", bill.RoomNumber, notices.Month(bill.Period)),
		Fields:  paymentFields(bill),
	})
	return bill, nil
}

func (s *paymentService) Reject(ctx context.Context, billID string) (*model.Bill, error) {
	bill, err := s.review(ctx, billID, model.BillUnpaid, model.PaymentRejected, nil)
	if err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Payment rejected", "bill_id", billID, "room", bill.RoomNumber)
	s.notices.ToCustomer(ctx, bill.CustomerID, notices.Message{
		Event:   notices.EventPaymentRejected,
		Subject: fmt.Sprintf("Payment for room %s, %s was not accepted, please resubmit", bill.RoomNumber, notices.Month(bill.Period)),
		Fields:  paymentFields(bill),
		Path:    "/bills/" + bill.ID,
	})
	return bill, nil
}

// review settles the payment under review: the bill leaves VERIFYING and the
// submitted payment is stamped with the outcome. Both writes commit together.
func (s *paymentService) review(ctx context.Context, billID, billStatus, paymentStatus string, paidAt *time.Time) (*model.Bill, error) {
	if billID == "" {
		return nil, apperrors.InvalidInput("Bill ID cannot be empty")
	}

	var bill *model.Bill
	err := s.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		var err error
		bill, err = s.bills.TransitionStatus(sessCtx, billID, model.BillVerifying, billStatus, paidAt)
		if err != nil {
			if errors.Is(err, billingerrors.ErrStateChanged) {
				return apperrors.InvalidState("Bill has no payment under review").WithCause(paymentserrors.ErrNotVerifying)
			}
			return billservice.MapError(err, billID)
		}

		payment, err := s.repo.FindLatestByBill(sessCtx, billID, model.PaymentSubmitted)
		if err != nil {
			return apperrors.Internal("Failed to load payment under review", err)
		}
		if _, err := s.repo.Review(sessCtx, payment.ID, paymentStatus, s.cfg.Now()); err != nil {
			return apperrors.Internal("Failed to review payment", err)
		}
		return nil
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		s.cfg.Log.Error("Failed to review payment", "bill_id", billID, "error", err)
		return nil, apperrors.Internal("Failed to review payment", err)
	}
	return bill, nil
}

func (s *paymentService) GetByBill(ctx context.Context, billID string) ([]*model.Payment, error) {
	if _, err := s.bills.FindByID(ctx, billID); err != nil {
		return nil, billservice.MapError(err, billID)
	}

	payments, err := s.repo.FindByBill(ctx, billID)
	if err != nil {
		return nil, apperrors.Internal("Failed to retrieve payments", err)
	}
	return payments, nil
}

func (s *paymentService) discardSlip(url string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
	defer cancel()
	if err := s.blobs.Delete(ctx, url); err != nil {
		s.cfg.Log.Warn("Failed to delete payment slip", "url", url, "error", err)
	}
}

func payable(bill *model.Bill) error {
	switch bill.Status {
	case model.BillPaid:
		return apperrors.InvalidState("Bill is already paid").WithCause(paymentserrors.ErrAlreadyPaid)
	case model.BillVerifying:
		return apperrors.InvalidState("Bill already has a payment under review").WithCause(paymentserrors.ErrAlreadyVerifying)
	default:
		return nil
	}
}

func paymentFields(b *model.Bill) []notify.Field {
	return []notify.Field{
		{Label: "Room", Value: b.RoomNumber},
		{Label: "Period", Value: notices.Month(b.Period)},
		{Label: "Amount", Value: notices.Money(b.Total)},
	}
}
