package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrRaffleNotFound      = errors.New("raffle not found")
	ErrRaffleNotActive     = errors.New("raffle is not active")
	ErrAlreadyFinalized    = errors.New("already finalized")
	ErrInvalidTicketNumber = errors.New("ticket number out of range")
	ErrRaffleHasSales      = errors.New("raffle has sales and cannot be deleted")
)

type Raffle struct {
	ID uint `gorm:"primaryKey"`

	Title       string `gorm:"not null"`
	Description string

	TotalTickets int    `gorm:"not null"`
	TicketPrice  int    `gorm:"not null"`
	Status       string `gorm:"not null;index;default:'active'"`
	TicketsSold  int    `gorm:"not null;default:0"`

	WinningNumber *int
	WinnerUserID  *uint

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type RaffleDAO struct {
	db *gorm.DB
}

func NewRaffleDAO(db *gorm.DB) *RaffleDAO {
	return &RaffleDAO{
		db: db,
	}
}

func (d *RaffleDAO) Insert(ctx context.Context, raffle Raffle) (Raffle, error) {
	result := d.db.WithContext(ctx).Create(&raffle)
	if result.Error != nil {
		return Raffle{}, result.Error
	}

	return raffle, nil
}

func (d *RaffleDAO) FindByID(ctx context.Context, id uint) (Raffle, error) {
	var raffle Raffle
	result := d.db.WithContext(ctx).First(&raffle, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Raffle{}, ErrRaffleNotFound
		}

		return Raffle{}, result.Error
	}

	return raffle, nil
}

func (d *RaffleDAO) FindAll(ctx context.Context) ([]Raffle, error) {
	var raffles []Raffle
	result := d.db.WithContext(ctx).Order("created_at DESC").Find(&raffles)
	if result.Error != nil {
		return nil, result.Error
	}

	return raffles, nil
}

// Cancel soft-cancels an active raffle. Held and sold tickets keep their
// rows; the raffle simply stops accepting reservations.
func (d *RaffleDAO) Cancel(ctx context.Context, id uint) (Raffle, error) {
	var raffle Raffle
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&raffle, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRaffleNotFound
			}
			return err
		}

		if raffle.Status != "active" {
			return ErrRaffleNotActive
		}

		raffle.Status = "cancelled"

		return tx.Save(&raffle).Error
	})
	if err != nil {
		return Raffle{}, err
	}

	return raffle, nil
}

// Delete removes a raffle outright. Only allowed while no purchase has ever
// touched it; anything with sales history is cancel-only.
func (d *RaffleDAO) Delete(ctx context.Context, id uint) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var raffle Raffle
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&raffle, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRaffleNotFound
			}
			return err
		}

		var purchases int64
		if err := tx.Model(&Purchase{}).Where("raffle_id = ?", id).Count(&purchases).Error; err != nil {
			return err
		}
		if purchases > 0 {
			return ErrRaffleHasSales
		}

		return tx.Delete(&Raffle{}, id).Error
	})
}

// Finish closes an active raffle with the winning number. When the winning
// ticket was sold, the owning user is resolved as the winner; an unsold
// winning number leaves the winner unset.
func (d *RaffleDAO) Finish(ctx context.Context, id uint, winningNumber int) (Raffle, error) {
	var raffle Raffle
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&raffle, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRaffleNotFound
			}
			return err
		}

		if raffle.Status != "active" {
			return ErrAlreadyFinalized
		}
		if winningNumber < 1 || winningNumber > raffle.TotalTickets {
			return ErrInvalidTicketNumber
		}

		var winning Ticket
		err := tx.Where("raffle_id = ? AND number = ? AND status = ?", id, winningNumber, "sold").
			First(&winning).Error
		switch {
		case err == nil:
			raffle.WinnerUserID = &winning.UserID
		case errors.Is(err, gorm.ErrRecordNotFound):
			// Winning number was never sold; the raffle still closes.
		default:
			return err
		}

		raffle.Status = "finished"
		raffle.WinningNumber = &winningNumber

		return tx.Save(&raffle).Error
	})
	if err != nil {
		return Raffle{}, err
	}

	return raffle, nil
}
