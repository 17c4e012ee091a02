package dao

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// TicketUnavailableError reports the first requested number that is already
// claimed by someone else.
type TicketUnavailableError struct {
	Number int
}

func (e TicketUnavailableError) Error() string {
	return fmt.Sprintf("ticket %d is no longer available", e.Number)
}

// Ticket rows exist only for claimed numbers; availability is row absence.
// The unique index on (raffle_id, number) is what makes two concurrent
// reservations of the same number impossible: the second insert fails at the
// storage layer no matter how the transactions interleave.
type Ticket struct {
	ID uint `gorm:"primaryKey"`

	RaffleID uint   `gorm:"not null;uniqueIndex:idx_tickets_raffle_number"`
	Number   int    `gorm:"not null;uniqueIndex:idx_tickets_raffle_number"`
	Status   string `gorm:"not null;index"` // "reserved" or "sold"

	UserID     uint `gorm:"not null;index"`
	PurchaseID uint `gorm:"not null;index"`

	ReservedUntil *time.Time

	CreatedAt time.Time `gorm:"not null"`
}

type TicketDAO struct {
	db *gorm.DB
}

func NewTicketDAO(db *gorm.DB) *TicketDAO {
	return &TicketDAO{
		db: db,
	}
}

// FindUnavailable returns the claimed tickets of a raffle as of now. Reserved
// rows whose hold has lapsed are filtered out, so a number is never reported
// unavailable past its expiry even before the sweeper reclaims the row.
// Reserved rows with a NULL reserved_until belong to a purchase awaiting
// admin review and stay unavailable indefinitely.
func (d *TicketDAO) FindUnavailable(ctx context.Context, raffleID uint, now time.Time) ([]Ticket, error) {
	var tickets []Ticket
	result := d.db.WithContext(ctx).
		Where("raffle_id = ? AND (status = ? OR (status = ? AND (reserved_until IS NULL OR reserved_until > ?)))",
			raffleID, "sold", "reserved", now).
		Order("number ASC").
		Find(&tickets)
	if result.Error != nil {
		return nil, result.Error
	}

	return tickets, nil
}

func (d *TicketDAO) FindByPurchaseID(ctx context.Context, purchaseID uint) ([]Ticket, error) {
	var tickets []Ticket
	result := d.db.WithContext(ctx).
		Where("purchase_id = ?", purchaseID).
		Order("number ASC").
		Find(&tickets)
	if result.Error != nil {
		return nil, result.Error
	}

	return tickets, nil
}
