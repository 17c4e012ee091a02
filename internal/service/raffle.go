package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rifadigital/rifa-api/internal/domain"
	"github.com/rifadigital/rifa-api/internal/repository"
)

var (
	ErrRaffleNotFound      = repository.ErrRaffleNotFound
	ErrRaffleNotActive     = repository.ErrRaffleNotActive
	ErrAlreadyFinalized    = repository.ErrAlreadyFinalized
	ErrInvalidTicketNumber = repository.ErrInvalidTicketNumber
	ErrRaffleHasSales      = repository.ErrRaffleHasSales
)

type RaffleRepository interface {
	Create(ctx context.Context, raffle domain.Raffle) (domain.Raffle, error)
	FindByID(ctx context.Context, id uint) (domain.Raffle, error)
	FindAll(ctx context.Context) ([]domain.Raffle, error)
	Cancel(ctx context.Context, id uint) (domain.Raffle, error)
	Delete(ctx context.Context, id uint) error
	Finish(ctx context.Context, id uint, winningNumber int) (domain.Raffle, error)
	FindUnavailableTickets(ctx context.Context, raffleID uint, now time.Time) ([]domain.UnavailableTicket, error)
	FindTicketsByPurchaseID(ctx context.Context, purchaseID uint) ([]domain.Ticket, error)
}

type RaffleService struct {
	repo RaffleRepository
}

func NewRaffleService(repo RaffleRepository) *RaffleService {
	return &RaffleService{
		repo: repo,
	}
}

func (s *RaffleService) CreateRaffle(ctx context.Context, raffle domain.Raffle) (domain.Raffle, error) {
	raffle.Status = domain.RaffleStatusActive

	created, err := s.repo.Create(ctx, raffle)
	if err != nil {
		return domain.Raffle{}, fmt.Errorf("s.repo.Create -> %w", err)
	}

	return created, nil
}

func (s *RaffleService) GetRaffles(ctx context.Context) ([]domain.Raffle, error) {
	raffles, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindAll -> %w", err)
	}

	return raffles, nil
}

func (s *RaffleService) GetRaffle(ctx context.Context, id uint) (domain.Raffle, error) {
	raffle, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Raffle{}, fmt.Errorf("s.repo.FindByID -> %w", err)
	}

	return raffle, nil
}

func (s *RaffleService) CancelRaffle(ctx context.Context, id uint) (domain.Raffle, error) {
	cancelled, err := s.repo.Cancel(ctx, id)
	if err != nil {
		return domain.Raffle{}, fmt.Errorf("s.repo.Cancel -> %w", err)
	}

	return cancelled, nil
}

func (s *RaffleService) DeleteRaffle(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("s.repo.Delete -> %w", err)
	}

	return nil
}

// FinishRaffle closes an active raffle and records the winning number. The
// range check runs here and again inside the storage transaction, so racing
// edits of the raffle cannot slip an out-of-range winner through.
func (s *RaffleService) FinishRaffle(ctx context.Context, id uint, winningNumber int) (domain.Raffle, error) {
	raffle, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Raffle{}, fmt.Errorf("s.repo.FindByID -> %w", err)
	}

	if !raffle.ContainsNumber(winningNumber) {
		return domain.Raffle{}, ErrInvalidTicketNumber
	}

	finished, err := s.repo.Finish(ctx, id, winningNumber)
	if err != nil {
		return domain.Raffle{}, fmt.Errorf("s.repo.Finish -> %w", err)
	}

	return finished, nil
}

// GetUnavailableTickets reports the claimed numbers of a raffle. Lapsed
// reservations are filtered out at read time, so a number is reported
// available the moment its hold expires.
func (s *RaffleService) GetUnavailableTickets(ctx context.Context, raffleID uint) ([]domain.UnavailableTicket, error) {
	if _, err := s.repo.FindByID(ctx, raffleID); err != nil {
		return nil, fmt.Errorf("s.repo.FindByID -> %w", err)
	}

	unavailable, err := s.repo.FindUnavailableTickets(ctx, raffleID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindUnavailableTickets -> %w", err)
	}

	return unavailable, nil
}
