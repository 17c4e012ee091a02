package domain

import "time"

type RaffleStatus string

const (
	RaffleStatusActive    RaffleStatus = "active"
	RaffleStatusFinished  RaffleStatus = "finished"
	RaffleStatusCancelled RaffleStatus = "cancelled"
)

// Raffle is one prize drawing with a fixed range of numbered tickets
// [1..TotalTickets]. TicketPrice is in minor currency units.
type Raffle struct {
	ID            uint         `json:"id"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	TotalTickets  int          `json:"total_tickets"`
	TicketPrice   int          `json:"ticket_price"`
	Status        RaffleStatus `json:"status"`
	TicketsSold   int          `json:"tickets_sold"`
	WinningNumber *int         `json:"winning_number,omitempty"`
	WinnerUserID  *uint        `json:"winner_user_id,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

func (r Raffle) IsActive() bool {
	return r.Status == RaffleStatusActive
}

// ContainsNumber reports whether n is inside the raffle's ticket range.
func (r Raffle) ContainsNumber(n int) bool {
	return n >= 1 && n <= r.TotalTickets
}
