package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/template_store/storefront-service/domain"
	"github.com/fjod/template_store/storefront-service/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const currency = "RUB"

type PurchaseService struct {
	repo   repository.RepoInterface
	logger *zap.Logger
	now    func() time.Time
}

func NewPurchaseService(repo repository.RepoInterface, logger *zap.Logger) *PurchaseService {
	return &PurchaseService{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type PurchaseResult struct {
	Purchase *domain.Purchase
	Template *domain.Template
	// Replayed is set when the idempotency key matched an earlier purchase.
	Replayed bool
}

// Purchase records a completed purchase of templateID for userID. Payment is
// confirmed out of band, so the purchase is stored as completed right away.
// Repeating a call with the same idempotency key returns the first purchase.
func (s *PurchaseService) Purchase(ctx context.Context, userID, templateID int64, idempotencyKey string) (*PurchaseResult, error) {
	template, err := s.repo.GetTemplate(ctx, templateID)
	if errors.Is(err, repository.ErrTemplateNotFound) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, err
	}

	if idempotencyKey != "" {
		existing, err := s.repo.GetPurchaseByIdempotencyKey(ctx, userID, idempotencyKey)
		if err == nil {
			s.logger.Info("duplicate purchase request",
				zap.String("idempotency_key", idempotencyKey),
				zap.String("transaction_id", existing.TransactionID))
			return &PurchaseResult{Purchase: existing, Template: template, Replayed: true}, nil
		}
		if !errors.Is(err, repository.ErrPurchaseNotFound) {
			return nil, fmt.Errorf("failed to check idempotency: %w", err)
		}
	}

	purchase := &domain.Purchase{
		UserID:         userID,
		TemplateID:     templateID,
		PurchaseDate:   s.now(),
		TransactionID:  uuid.NewString(),
		Status:         domain.PurchaseStatusCompleted,
		IdempotencyKey: idempotencyKey,
	}

	payload, err := json.Marshal(domain.PurchaseCompletedEvent{
		TransactionID: purchase.TransactionID,
		UserID:        userID,
		TemplateID:    template.ID,
		TemplateName:  template.Name,
		Price:         template.Price,
		Currency:      currency,
		CompletedAt:   purchase.PurchaseDate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal purchase event: %w", err)
	}

	err = s.repo.CreatePurchase(ctx, purchase, &repository.OutboxEvent{
		AggregateID: purchase.TransactionID,
		EventType:   domain.EventTypePurchaseCompleted,
		Payload:     payload,
		CreatedAt:   purchase.PurchaseDate,
	})
	if errors.Is(err, repository.ErrDuplicateKey) {
		existing, errGet := s.repo.GetPurchaseByIdempotencyKey(ctx, userID, idempotencyKey)
		if errGet != nil {
			return nil, fmt.Errorf("failed to load concurrent purchase: %w", errGet)
		}
		return &PurchaseResult{Purchase: existing, Template: template, Replayed: true}, nil
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("purchase completed",
		zap.Int64("user_id", userID),
		zap.Int64("template_id", templateID),
		zap.String("transaction_id", purchase.TransactionID))

	return &PurchaseResult{Purchase: purchase, Template: template}, nil
}

// Download returns the template if userID owns a completed purchase of it.
func (s *PurchaseService) Download(ctx context.Context, userID, templateID int64) (*domain.Template, error) {
	owned, err := s.repo.HasCompletedPurchase(ctx, userID, templateID)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, ErrNotPurchased
	}

	template, err := s.repo.GetTemplate(ctx, templateID)
	if errors.Is(err, repository.ErrTemplateNotFound) {
		return nil, ErrTemplateNotFound
	}
	return template, err
}

func (s *PurchaseService) Dashboard(ctx context.Context, userID int64) ([]*domain.PurchasedTemplate, error) {
	return s.repo.ListCompletedPurchases(ctx, userID)
}
