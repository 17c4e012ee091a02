package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rifadigital/rifa-api/internal/config"
	"github.com/rifadigital/rifa-api/internal/domain"
	"github.com/rifadigital/rifa-api/internal/repository"
)

var (
	ErrPurchaseNotFound       = repository.ErrPurchaseNotFound
	ErrInvalidStateTransition = repository.ErrInvalidStateTransition
	ErrPurchaseExpired        = repository.ErrPurchaseExpired
	ErrNotOwner               = errors.New("purchase does not belong to the user")
	ErrNoTicketNumbers        = errors.New("no ticket numbers requested")
)

// TicketUnavailableError re-exported so handlers can errors.As against the
// service surface alone.
type TicketUnavailableError = repository.TicketUnavailableError

type PurchaseRepository interface {
	Reserve(ctx context.Context, raffleID uint, numbers []int, userID uint, amount int, holdUntil time.Time) (domain.Purchase, error)
	FindByID(ctx context.Context, id uint) (domain.Purchase, error)
	FindByUserID(ctx context.Context, userID uint) ([]domain.Purchase, error)
	FindPendingConfirmation(ctx context.Context) ([]domain.Purchase, error)
	SubmitProof(ctx context.Context, purchaseID uint, proofURL string, now time.Time) error
	Approve(ctx context.Context, purchaseID uint) error
	Reject(ctx context.Context, purchaseID uint, reason string) error
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

type PurchaseService struct {
	repo       PurchaseRepository
	raffleRepo RaffleRepository
	conf       *config.RaffleConfig
}

func NewPurchaseService(repo PurchaseRepository, raffleRepo RaffleRepository, conf *config.RaffleConfig) *PurchaseService {
	return &PurchaseService{
		repo:       repo,
		raffleRepo: raffleRepo,
		conf:       conf,
	}
}

// ReserveTickets claims the requested numbers for the user, all-or-nothing.
// A success means the caller holds every number exclusively until the hold
// expires or an admin settles the purchase. A conflict on any number fails
// the whole call and reserves nothing.
func (s *PurchaseService) ReserveTickets(ctx context.Context, raffleID uint, numbers []int, user domain.User) (domain.Purchase, error) {
	numbers = dedupeNumbers(numbers)
	if len(numbers) == 0 {
		return domain.Purchase{}, ErrNoTicketNumbers
	}

	raffle, err := s.raffleRepo.FindByID(ctx, raffleID)
	if err != nil {
		return domain.Purchase{}, fmt.Errorf("s.raffleRepo.FindByID -> %w", err)
	}
	if !raffle.IsActive() {
		return domain.Purchase{}, ErrRaffleNotActive
	}
	for _, number := range numbers {
		if !raffle.ContainsNumber(number) {
			return domain.Purchase{}, ErrInvalidTicketNumber
		}
	}

	amount := raffle.TicketPrice * len(numbers)
	holdUntil := time.Now().Add(s.conf.HoldDuration)

	purchase, err := s.repo.Reserve(ctx, raffleID, numbers, user.ID, amount, holdUntil)
	if err != nil {
		return domain.Purchase{}, fmt.Errorf("s.repo.Reserve -> %w", err)
	}

	return purchase, nil
}

// SubmitPaymentProof attaches the proof reference and moves the purchase to
// the admin review queue. Only the purchase owner may submit.
func (s *PurchaseService) SubmitPaymentProof(ctx context.Context, purchaseID uint, userID uint, proofURL string) error {
	purchase, err := s.repo.FindByID(ctx, purchaseID)
	if err != nil {
		return fmt.Errorf("s.repo.FindByID -> %w", err)
	}

	if purchase.UserID != userID {
		return ErrNotOwner
	}

	if err = s.repo.SubmitProof(ctx, purchaseID, proofURL, time.Now()); err != nil {
		return fmt.Errorf("s.repo.SubmitProof -> %w", err)
	}

	return nil
}

// ApprovePurchase finalizes a reviewed purchase: tickets become sold and the
// raffle counter grows, atomically. Approving twice fails the second call
// with ErrAlreadyFinalized and never double-counts.
func (s *PurchaseService) ApprovePurchase(ctx context.Context, purchaseID uint) error {
	if err := s.repo.Approve(ctx, purchaseID); err != nil {
		return fmt.Errorf("s.repo.Approve -> %w", err)
	}

	return nil
}

// RejectPurchase terminates a reviewed purchase with the supplied reason and
// frees its ticket numbers for anyone to reserve again.
func (s *PurchaseService) RejectPurchase(ctx context.Context, purchaseID uint, reason string) error {
	if err := s.repo.Reject(ctx, purchaseID, reason); err != nil {
		return fmt.Errorf("s.repo.Reject -> %w", err)
	}

	return nil
}

// GetPurchase returns one purchase with its tickets. Owners see their own;
// admins see any.
func (s *PurchaseService) GetPurchase(ctx context.Context, purchaseID uint, user domain.User) (domain.Purchase, []domain.Ticket, error) {
	purchase, err := s.repo.FindByID(ctx, purchaseID)
	if err != nil {
		return domain.Purchase{}, nil, fmt.Errorf("s.repo.FindByID -> %w", err)
	}

	if purchase.UserID != user.ID && !user.IsAdmin() {
		return domain.Purchase{}, nil, ErrNotOwner
	}

	tickets, err := s.raffleRepo.FindTicketsByPurchaseID(ctx, purchaseID)
	if err != nil {
		return domain.Purchase{}, nil, fmt.Errorf("s.raffleRepo.FindTicketsByPurchaseID -> %w", err)
	}

	return purchase, tickets, nil
}

func (s *PurchaseService) GetUserPurchases(ctx context.Context, userID uint) ([]domain.Purchase, error) {
	purchases, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindByUserID -> %w", err)
	}

	return purchases, nil
}

func (s *PurchaseService) GetPendingConfirmation(ctx context.Context) ([]domain.Purchase, error) {
	purchases, err := s.repo.FindPendingConfirmation(ctx)
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindPendingConfirmation -> %w", err)
	}

	return purchases, nil
}

// ExpireOverduePurchases releases every reservation whose payment window has
// closed. Invoked by the background sweeper; safe to run concurrently with
// user traffic because each purchase is settled under its own row lock.
func (s *PurchaseService) ExpireOverduePurchases(ctx context.Context) (int64, error) {
	expired, err := s.repo.ExpireOverdue(ctx, time.Now())
	if err != nil {
		return expired, fmt.Errorf("s.repo.ExpireOverdue -> %w", err)
	}

	return expired, nil
}

func dedupeNumbers(numbers []int) []int {
	seen := make(map[int]struct{}, len(numbers))
	result := make([]int, 0, len(numbers))
	for _, n := range numbers {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		result = append(result, n)
	}
	sort.Ints(result)

	return result
}
