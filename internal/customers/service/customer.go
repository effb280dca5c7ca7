package service

import (
	"context"
	"errors"
	customerserrors "smartdorm/internal/customers/errors"
	"smartdorm/internal/customers/repository"
	"smartdorm/pkg/config"
	mongotx "smartdorm/pkg/db/mongo"
	apperrors "smartdorm/pkg/errors"
	"smartdorm/pkg/identity"
	"smartdorm/pkg/model"
	"smartdorm/pkg/sanitizer"
	"smartdorm/pkg/validator"
	"strings"
)

const maxUpsertAttempts = 3

type CustomerService interface {
	// Authenticate resolves a bearer credential into the caller's identity.
	Authenticate(ctx context.Context, token string) (*identity.Identity, error)
	Register(ctx context.Context, token string, profile *model.CustomerProfile) (*model.Customer, error)
	GetMe(ctx context.Context, token string) (*model.Customer, error)
	GetByID(ctx context.Context, id string) (*model.Customer, error)
	// Upsert creates or refreshes the customer for who. It joins the
	// caller's transaction when ctx carries one.
	Upsert(ctx context.Context, who *identity.Identity, profile *model.CustomerProfile) (*model.Customer, error)
}

type customerService struct {
	repo      repository.CustomerRepository
	verifier  identity.Verifier
	validator *validator.Validator
	cfg       *config.Config
}

func NewCustomerService(
	repo repository.CustomerRepository,
	verifier identity.Verifier,
	validator *validator.Validator,
	cfg *config.Config,
) CustomerService {
	return &customerService{
		repo:      repo,
		verifier:  verifier,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *customerService) Authenticate(ctx context.Context, token string) (*identity.Identity, error) {
	if strings.TrimSpace(token) == "" {
		return nil, apperrors.Unauthorized("access credential is required")
	}

	who, err := s.verifier.Verify(ctx, token)
	if err != nil {
		s.cfg.Log.Warn("Identity verification failed", "error", err)
		return nil, identity.AppError(err)
	}
	return who, nil
}

func (s *customerService) Register(ctx context.Context, token string, profile *model.CustomerProfile) (*model.Customer, error) {
	who, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.Upsert(ctx, who, profile)
}

func (s *customerService) GetMe(ctx context.Context, token string) (*model.Customer, error) {
	who, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}

	customer, err := s.repo.FindByExternalID(ctx, who.Subject)
	if err != nil {
		if errors.Is(err, customerserrors.ErrNotFound) {
			return nil, apperrors.NotFound("Customer profile").WithCause(err)
		}
		return nil, apperrors.Internal("Failed to retrieve customer", err)
	}
	return customer, nil
}

func (s *customerService) GetByID(ctx context.Context, id string) (*model.Customer, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Customer ID cannot be empty")
	}

	customer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, customerserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Customer", id).WithCause(err)
		}
		if errors.Is(err, customerserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid customer ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve customer", err)
	}
	return customer, nil
}

func (s *customerService) Upsert(ctx context.Context, who *identity.Identity, profile *model.CustomerProfile) (*model.Customer, error) {
	if who == nil || who.Subject == "" {
		return nil, apperrors.Unauthorized("identity is required")
	}
	if profile == nil {
		return nil, apperrors.InvalidInput("Customer profile is required")
	}

	if err := s.sanitize(profile); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(profile); err != nil {
		s.cfg.Log.Warn("Customer profile validation failed", "subject", who.Subject, "error", err)
		return nil, apperrors.Validation("Invalid customer profile", validator.Details(err))
	}

	customer := &model.Customer{
		ExternalID:  who.Subject,
		DisplayName: sanitizer.NormalizeName(who.Name),
		FirstName:   profile.FirstName,
		LastName:    profile.LastName,
		Phone:       profile.Phone,
		Email:       profile.Email,
	}
	if customer.DisplayName == "" {
		customer.DisplayName = profile.FirstName + " " + profile.LastName
	}
	if customer.Email == "" {
		customer.Email = sanitizer.NormalizeEmail(who.Email)
	}

	// Concurrent first-time upserts can collide on the unique index; the
	// loser retries and finds the winner's document. Inside a transaction
	// the whole transaction has to be retried by the caller instead.
	attempts := maxUpsertAttempts
	if mongotx.InTransaction(ctx) {
		attempts = 1
	}

	var (
		stored *model.Customer
		err    error
	)
	for i := 0; i < attempts; i++ {
		stored, err = s.repo.Upsert(ctx, customer)
		if !errors.Is(err, customerserrors.ErrDuplicate) {
			break
		}
		s.cfg.Log.Warn("Customer upsert collided, retrying", "subject", who.Subject, "attempt", i+1)
	}
	if err != nil {
		if errors.Is(err, customerserrors.ErrDuplicate) {
			return nil, apperrors.Conflict("Customer registration is in progress, please retry").WithCause(err)
		}
		s.cfg.Log.Error("Failed to upsert customer", "subject", who.Subject, "error", err)
		return nil, apperrors.Internal("Failed to save customer", err)
	}

	s.cfg.Log.Info("Customer upserted", "id", stored.ID, "subject", who.Subject)
	return stored, nil
}

func (s *customerService) sanitize(profile *model.CustomerProfile) error {
	profile.FirstName = sanitizer.NormalizeName(profile.FirstName)
	profile.LastName = sanitizer.NormalizeName(profile.LastName)
	profile.Email = sanitizer.NormalizeEmail(profile.Email)

	raw := profile.Phone
	profile.Phone = sanitizer.NormalizePhone(raw)
	if raw != "" && profile.Phone == "" {
		return apperrors.Validation("Invalid customer profile", map[string]any{
			"phone": "must be a valid phone number",
		})
	}
	return nil
}
