package domain

import "time"

type TicketStatus string

const (
	TicketStatusReserved TicketStatus = "reserved"
	TicketStatusSold     TicketStatus = "sold"
)

// Ticket is one numbered slot within a raffle. A row only exists while the
// number is claimed; an absent row means the number is available. While
// reserved, ReservedUntil bounds the claim.
type Ticket struct {
	ID            uint         `json:"id"`
	RaffleID      uint         `json:"raffle_id"`
	Number        int          `json:"number"`
	Status        TicketStatus `json:"status"`
	UserID        uint         `json:"user_id"`
	PurchaseID    uint         `json:"purchase_id"`
	ReservedUntil *time.Time   `json:"reserved_until,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Lapsed reports whether a reserved ticket's hold has run out. Sold tickets
// never lapse.
func (t Ticket) Lapsed(now time.Time) bool {
	return t.Status == TicketStatusReserved && t.ReservedUntil != nil && !t.ReservedUntil.After(now)
}

// UnavailableTicket is the availability-query projection: which number is
// taken and why.
type UnavailableTicket struct {
	Number int          `json:"number"`
	Status TicketStatus `json:"status"`
}
