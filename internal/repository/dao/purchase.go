package dao

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrPurchaseNotFound       = errors.New("purchase not found")
	ErrInvalidStateTransition = errors.New("invalid purchase state transition")
	ErrPurchaseExpired        = errors.New("purchase reservation has expired")
)

type Purchase struct {
	ID uint `gorm:"primaryKey"`

	UserID   uint `gorm:"not null;index"`
	RaffleID uint `gorm:"not null;index"`

	TicketCount int    `gorm:"not null"`
	TotalAmount int    `gorm:"not null"`
	Status      string `gorm:"not null;index"`
	ExpiresAt   time.Time

	PaymentProofURL *string
	RejectionReason *string

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type PurchaseDAO struct {
	db *gorm.DB
}

func NewPurchaseDAO(db *gorm.DB) *PurchaseDAO {
	return &PurchaseDAO{
		db: db,
	}
}

// Reserve claims all requested numbers for one user in a single transaction:
// one purchase row plus one ticket row per number, all-or-nothing. Lapsed
// reservations for the requested numbers are reclaimed first. A conflict with
// a live claim fails with TicketUnavailableError naming the lowest conflicting
// number. Two racers for the same number cannot both commit: whichever inserts
// second trips the (raffle_id, number) unique index and loses.
func (d *PurchaseDAO) Reserve(ctx context.Context, raffleID uint, numbers []int, userID uint, amount int, holdUntil time.Time) (Purchase, error) {
	now := time.Now()

	var purchase Purchase
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var raffle Raffle
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&raffle, raffleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRaffleNotFound
			}
			return err
		}
		if raffle.Status != "active" {
			return ErrRaffleNotActive
		}

		// Free rows whose hold lapsed so their numbers can be re-claimed here.
		err := tx.Where("raffle_id = ? AND number IN ? AND status = ? AND reserved_until <= ?",
			raffleID, numbers, "reserved", now).
			Delete(&Ticket{}).Error
		if err != nil {
			return err
		}

		var taken []int
		err = tx.Model(&Ticket{}).
			Where("raffle_id = ? AND number IN ?", raffleID, numbers).
			Pluck("number", &taken).Error
		if err != nil {
			return err
		}
		if len(taken) > 0 {
			sort.Ints(taken)
			return TicketUnavailableError{Number: taken[0]}
		}

		purchase = Purchase{
			UserID:      userID,
			RaffleID:    raffleID,
			TicketCount: len(numbers),
			TotalAmount: amount,
			Status:      "pending_payment",
			ExpiresAt:   holdUntil,
		}
		if err = tx.Create(&purchase).Error; err != nil {
			return err
		}

		tickets := make([]Ticket, len(numbers))
		for i, number := range numbers {
			tickets[i] = Ticket{
				RaffleID:      raffleID,
				Number:        number,
				Status:        "reserved",
				UserID:        userID,
				PurchaseID:    purchase.ID,
				ReservedUntil: &holdUntil,
			}
		}

		return tx.Create(&tickets).Error
	})
	if err != nil {
		if isTicketUniqueViolation(err) {
			// A concurrent reservation won the race between our availability
			// check and our insert. Report whichever requested number is now
			// claimed.
			return Purchase{}, d.firstConflict(ctx, raffleID, numbers, now)
		}

		return Purchase{}, err
	}

	return purchase, nil
}

func isTicketUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == pgerrcode.UniqueViolation &&
		strings.Contains(pgErr.Message, "idx_tickets_raffle_number")
}

func (d *PurchaseDAO) firstConflict(ctx context.Context, raffleID uint, numbers []int, now time.Time) error {
	var taken []int
	err := d.db.WithContext(ctx).Model(&Ticket{}).
		Where("raffle_id = ? AND number IN ? AND (status = ? OR reserved_until IS NULL OR reserved_until > ?)",
			raffleID, numbers, "sold", now).
		Pluck("number", &taken).Error
	if err != nil || len(taken) == 0 {
		// The racer may itself have been reclaimed already; fall back to the
		// lowest requested number.
		sorted := append([]int(nil), numbers...)
		sort.Ints(sorted)
		return TicketUnavailableError{Number: sorted[0]}
	}

	sort.Ints(taken)
	return TicketUnavailableError{Number: taken[0]}
}

func (d *PurchaseDAO) FindByID(ctx context.Context, id uint) (Purchase, error) {
	var purchase Purchase
	result := d.db.WithContext(ctx).First(&purchase, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Purchase{}, ErrPurchaseNotFound
		}

		return Purchase{}, result.Error
	}

	return purchase, nil
}

func (d *PurchaseDAO) FindByUserID(ctx context.Context, userID uint) ([]Purchase, error) {
	var purchases []Purchase
	result := d.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&purchases)
	if result.Error != nil {
		return nil, result.Error
	}

	return purchases, nil
}

func (d *PurchaseDAO) FindPendingConfirmation(ctx context.Context) ([]Purchase, error) {
	var purchases []Purchase
	result := d.db.WithContext(ctx).
		Where("status = ?", "pending_confirmation").
		Order("updated_at ASC").
		Find(&purchases)
	if result.Error != nil {
		return nil, result.Error
	}

	return purchases, nil
}

// SubmitProof moves a purchase from pending_payment to pending_confirmation,
// storing the proof reference. Touching a purchase whose hold already lapsed
// finalizes it to expired instead and reports ErrPurchaseExpired.
func (d *PurchaseDAO) SubmitProof(ctx context.Context, purchaseID uint, proofURL string, now time.Time) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		purchase, err := lockPurchase(tx, purchaseID)
		if err != nil {
			return err
		}

		if purchase.Status != "pending_payment" {
			return ErrInvalidStateTransition
		}

		if !purchase.ExpiresAt.After(now) {
			if err = expireLocked(tx, purchase); err != nil {
				return err
			}
			return ErrPurchaseExpired
		}

		// The hold no longer bounds these tickets; they stay claimed until an
		// admin settles the purchase. NULL reserved_until never matches the
		// lapsed-reclaim filter in Reserve.
		err = tx.Model(&Ticket{}).
			Where("purchase_id = ?", purchase.ID).
			Update("reserved_until", nil).Error
		if err != nil {
			return err
		}

		purchase.Status = "pending_confirmation"
		purchase.PaymentProofURL = &proofURL

		return tx.Save(&purchase).Error
	})
}

// Approve finalizes a reviewed purchase: its tickets flip reserved->sold and
// the raffle counter grows by the ticket count, all in one transaction. The
// row lock plus the status check make re-approval a clean failure rather than
// a double increment.
func (d *PurchaseDAO) Approve(ctx context.Context, purchaseID uint) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		purchase, err := lockPurchase(tx, purchaseID)
		if err != nil {
			return err
		}

		if purchase.Status == "completed" {
			return ErrAlreadyFinalized
		}
		if purchase.Status != "pending_confirmation" {
			return ErrInvalidStateTransition
		}

		err = tx.Model(&Ticket{}).
			Where("purchase_id = ?", purchase.ID).
			Updates(map[string]interface{}{"status": "sold", "reserved_until": nil}).Error
		if err != nil {
			return err
		}

		err = tx.Model(&Raffle{}).
			Where("id = ?", purchase.RaffleID).
			Update("tickets_sold", gorm.Expr("tickets_sold + ?", purchase.TicketCount)).Error
		if err != nil {
			return err
		}

		purchase.Status = "completed"

		return tx.Save(&purchase).Error
	})
}

// Reject terminates a reviewed purchase and frees its ticket numbers.
// Rejection is terminal; a rejected purchase never reopens for payment.
func (d *PurchaseDAO) Reject(ctx context.Context, purchaseID uint, reason string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		purchase, err := lockPurchase(tx, purchaseID)
		if err != nil {
			return err
		}

		if purchase.Status == "completed" {
			return ErrAlreadyFinalized
		}
		if purchase.Status != "pending_confirmation" {
			return ErrInvalidStateTransition
		}

		if err = tx.Where("purchase_id = ?", purchase.ID).Delete(&Ticket{}).Error; err != nil {
			return err
		}

		purchase.Status = "rejected"
		purchase.RejectionReason = &reason

		return tx.Save(&purchase).Error
	})
}

// ExpireOverdue releases every pending_payment purchase whose hold lapsed.
// Each purchase is settled in its own transaction so one poisoned row cannot
// wedge the whole sweep.
func (d *PurchaseDAO) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	var ids []uint
	err := d.db.WithContext(ctx).Model(&Purchase{}).
		Where("status = ? AND expires_at <= ?", "pending_payment", now).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}

	var expired int64
	for _, id := range ids {
		err = d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			purchase, err := lockPurchase(tx, id)
			if err != nil {
				return err
			}

			// Re-check under lock: the user may have submitted proof between
			// the scan and the lock.
			if purchase.Status != "pending_payment" || purchase.ExpiresAt.After(now) {
				return nil
			}

			if err = expireLocked(tx, purchase); err != nil {
				return err
			}

			expired++

			return nil
		})
		if err != nil {
			return expired, err
		}
	}

	return expired, nil
}

func lockPurchase(tx *gorm.DB, id uint) (Purchase, error) {
	var purchase Purchase
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&purchase, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Purchase{}, ErrPurchaseNotFound
		}
		return Purchase{}, err
	}

	return purchase, nil
}

func expireLocked(tx *gorm.DB, purchase Purchase) error {
	if err := tx.Where("purchase_id = ?", purchase.ID).Delete(&Ticket{}).Error; err != nil {
		return err
	}

	purchase.Status = "expired"

	return tx.Save(&purchase).Error
}
