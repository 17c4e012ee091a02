package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/rifadigital/rifa-api/internal/domain"
	"github.com/rifadigital/rifa-api/internal/repository/dao"
)

var (
	ErrPurchaseNotFound       = dao.ErrPurchaseNotFound
	ErrInvalidStateTransition = dao.ErrInvalidStateTransition
	ErrPurchaseExpired        = dao.ErrPurchaseExpired
)

// TicketUnavailableError surfaces a reservation conflict with the losing
// number attached.
type TicketUnavailableError = dao.TicketUnavailableError

type PurchaseDAO interface {
	Reserve(ctx context.Context, raffleID uint, numbers []int, userID uint, amount int, holdUntil time.Time) (dao.Purchase, error)
	FindByID(ctx context.Context, id uint) (dao.Purchase, error)
	FindByUserID(ctx context.Context, userID uint) ([]dao.Purchase, error)
	FindPendingConfirmation(ctx context.Context) ([]dao.Purchase, error)
	SubmitProof(ctx context.Context, purchaseID uint, proofURL string, now time.Time) error
	Approve(ctx context.Context, purchaseID uint) error
	Reject(ctx context.Context, purchaseID uint, reason string) error
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

type PurchaseRepository struct {
	dao PurchaseDAO
}

func NewPurchaseRepository(dao PurchaseDAO) *PurchaseRepository {
	return &PurchaseRepository{
		dao: dao,
	}
}

func (r *PurchaseRepository) Reserve(ctx context.Context, raffleID uint, numbers []int, userID uint, amount int, holdUntil time.Time) (domain.Purchase, error) {
	reserved, err := r.dao.Reserve(ctx, raffleID, numbers, userID, amount, holdUntil)
	if err != nil {
		return domain.Purchase{}, fmt.Errorf("r.dao.Reserve -> %w", err)
	}

	return r.daoToDomain(reserved), nil
}

func (r *PurchaseRepository) FindByID(ctx context.Context, id uint) (domain.Purchase, error) {
	found, err := r.dao.FindByID(ctx, id)
	if err != nil {
		return domain.Purchase{}, fmt.Errorf("r.dao.FindByID -> %w", err)
	}

	return r.daoToDomain(found), nil
}

func (r *PurchaseRepository) FindByUserID(ctx context.Context, userID uint) ([]domain.Purchase, error) {
	found, err := r.dao.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindByUserID -> %w", err)
	}

	return r.daosToDomain(found), nil
}

func (r *PurchaseRepository) FindPendingConfirmation(ctx context.Context) ([]domain.Purchase, error) {
	found, err := r.dao.FindPendingConfirmation(ctx)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindPendingConfirmation -> %w", err)
	}

	return r.daosToDomain(found), nil
}

func (r *PurchaseRepository) SubmitProof(ctx context.Context, purchaseID uint, proofURL string, now time.Time) error {
	if err := r.dao.SubmitProof(ctx, purchaseID, proofURL, now); err != nil {
		return fmt.Errorf("r.dao.SubmitProof -> %w", err)
	}

	return nil
}

func (r *PurchaseRepository) Approve(ctx context.Context, purchaseID uint) error {
	if err := r.dao.Approve(ctx, purchaseID); err != nil {
		return fmt.Errorf("r.dao.Approve -> %w", err)
	}

	return nil
}

func (r *PurchaseRepository) Reject(ctx context.Context, purchaseID uint, reason string) error {
	if err := r.dao.Reject(ctx, purchaseID, reason); err != nil {
		return fmt.Errorf("r.dao.Reject -> %w", err)
	}

	return nil
}

func (r *PurchaseRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	expired, err := r.dao.ExpireOverdue(ctx, now)
	if err != nil {
		return expired, fmt.Errorf("r.dao.ExpireOverdue -> %w", err)
	}

	return expired, nil
}

func (r *PurchaseRepository) daosToDomain(purchases []dao.Purchase) []domain.Purchase {
	result := make([]domain.Purchase, len(purchases))
	for i, purchase := range purchases {
		result[i] = r.daoToDomain(purchase)
	}

	return result
}

func (r *PurchaseRepository) daoToDomain(p dao.Purchase) domain.Purchase {
	return domain.Purchase{
		ID:              p.ID,
		UserID:          p.UserID,
		RaffleID:        p.RaffleID,
		TicketCount:     p.TicketCount,
		TotalAmount:     p.TotalAmount,
		Status:          domain.PurchaseStatus(p.Status),
		ExpiresAt:       p.ExpiresAt,
		PaymentProofURL: p.PaymentProofURL,
		RejectionReason: p.RejectionReason,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}
