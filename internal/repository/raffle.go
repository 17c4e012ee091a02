package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/rifadigital/rifa-api/internal/domain"
	"github.com/rifadigital/rifa-api/internal/repository/dao"
)

var (
	ErrRaffleNotFound      = dao.ErrRaffleNotFound
	ErrRaffleNotActive     = dao.ErrRaffleNotActive
	ErrAlreadyFinalized    = dao.ErrAlreadyFinalized
	ErrInvalidTicketNumber = dao.ErrInvalidTicketNumber
	ErrRaffleHasSales      = dao.ErrRaffleHasSales
)

type RaffleDAO interface {
	Insert(ctx context.Context, raffle dao.Raffle) (dao.Raffle, error)
	FindByID(ctx context.Context, id uint) (dao.Raffle, error)
	FindAll(ctx context.Context) ([]dao.Raffle, error)
	Cancel(ctx context.Context, id uint) (dao.Raffle, error)
	Delete(ctx context.Context, id uint) error
	Finish(ctx context.Context, id uint, winningNumber int) (dao.Raffle, error)
}

type TicketDAO interface {
	FindUnavailable(ctx context.Context, raffleID uint, now time.Time) ([]dao.Ticket, error)
	FindByPurchaseID(ctx context.Context, purchaseID uint) ([]dao.Ticket, error)
}

type RaffleRepository struct {
	dao       RaffleDAO
	ticketDAO TicketDAO
}

func NewRaffleRepository(raffleDAO RaffleDAO, ticketDAO TicketDAO) *RaffleRepository {
	return &RaffleRepository{
		dao:       raffleDAO,
		ticketDAO: ticketDAO,
	}
}

func (r *RaffleRepository) Create(ctx context.Context, raffle domain.Raffle) (domain.Raffle, error) {
	created, err := r.dao.Insert(ctx, r.domainToDao(raffle))
	if err != nil {
		return domain.Raffle{}, fmt.Errorf("r.dao.Insert -> %w", err)
	}

	return r.daoToDomain(created), nil
}

func (r *RaffleRepository) FindByID(ctx context.Context, id uint) (domain.Raffle, error) {
	found, err := r.dao.FindByID(ctx, id)
	if err != nil {
		return domain.Raffle{}, fmt.Errorf("r.dao.FindByID -> %w", err)
	}

	return r.daoToDomain(found), nil
}

func (r *RaffleRepository) FindAll(ctx context.Context) ([]domain.Raffle, error) {
	found, err := r.dao.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindAll -> %w", err)
	}

	raffles := make([]domain.Raffle, len(found))
	for i, raffle := range found {
		raffles[i] = r.daoToDomain(raffle)
	}

	return raffles, nil
}

func (r *RaffleRepository) Cancel(ctx context.Context, id uint) (domain.Raffle, error) {
	cancelled, err := r.dao.Cancel(ctx, id)
	if err != nil {
		return domain.Raffle{}, fmt.Errorf("r.dao.Cancel -> %w", err)
	}

	return r.daoToDomain(cancelled), nil
}

func (r *RaffleRepository) Delete(ctx context.Context, id uint) error {
	if err := r.dao.Delete(ctx, id); err != nil {
		return fmt.Errorf("r.dao.Delete -> %w", err)
	}

	return nil
}

func (r *RaffleRepository) Finish(ctx context.Context, id uint, winningNumber int) (domain.Raffle, error) {
	finished, err := r.dao.Finish(ctx, id, winningNumber)
	if err != nil {
		return domain.Raffle{}, fmt.Errorf("r.dao.Finish -> %w", err)
	}

	return r.daoToDomain(finished), nil
}

func (r *RaffleRepository) FindUnavailableTickets(ctx context.Context, raffleID uint, now time.Time) ([]domain.UnavailableTicket, error) {
	tickets, err := r.ticketDAO.FindUnavailable(ctx, raffleID, now)
	if err != nil {
		return nil, fmt.Errorf("r.ticketDAO.FindUnavailable -> %w", err)
	}

	unavailable := make([]domain.UnavailableTicket, len(tickets))
	for i, ticket := range tickets {
		unavailable[i] = domain.UnavailableTicket{
			Number: ticket.Number,
			Status: domain.TicketStatus(ticket.Status),
		}
	}

	return unavailable, nil
}

func (r *RaffleRepository) FindTicketsByPurchaseID(ctx context.Context, purchaseID uint) ([]domain.Ticket, error) {
	found, err := r.ticketDAO.FindByPurchaseID(ctx, purchaseID)
	if err != nil {
		return nil, fmt.Errorf("r.ticketDAO.FindByPurchaseID -> %w", err)
	}

	tickets := make([]domain.Ticket, len(found))
	for i, ticket := range found {
		tickets[i] = domain.Ticket{
			ID:            ticket.ID,
			RaffleID:      ticket.RaffleID,
			Number:        ticket.Number,
			Status:        domain.TicketStatus(ticket.Status),
			UserID:        ticket.UserID,
			PurchaseID:    ticket.PurchaseID,
			ReservedUntil: ticket.ReservedUntil,
			CreatedAt:     ticket.CreatedAt,
		}
	}

	return tickets, nil
}

func (r *RaffleRepository) domainToDao(raffle domain.Raffle) dao.Raffle {
	return dao.Raffle{
		ID:            raffle.ID,
		Title:         raffle.Title,
		Description:   raffle.Description,
		TotalTickets:  raffle.TotalTickets,
		TicketPrice:   raffle.TicketPrice,
		Status:        string(raffle.Status),
		TicketsSold:   raffle.TicketsSold,
		WinningNumber: raffle.WinningNumber,
		WinnerUserID:  raffle.WinnerUserID,
		CreatedAt:     raffle.CreatedAt,
		UpdatedAt:     raffle.UpdatedAt,
	}
}

func (r *RaffleRepository) daoToDomain(raffle dao.Raffle) domain.Raffle {
	return domain.Raffle{
		ID:            raffle.ID,
		Title:         raffle.Title,
		Description:   raffle.Description,
		TotalTickets:  raffle.TotalTickets,
		TicketPrice:   raffle.TicketPrice,
		Status:        domain.RaffleStatus(raffle.Status),
		TicketsSold:   raffle.TicketsSold,
		WinningNumber: raffle.WinningNumber,
		WinnerUserID:  raffle.WinnerUserID,
		CreatedAt:     raffle.CreatedAt,
		UpdatedAt:     raffle.UpdatedAt,
	}
}
