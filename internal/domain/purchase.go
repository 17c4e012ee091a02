package domain

import "time"

type PurchaseStatus string

const (
	PurchaseStatusPendingPayment      PurchaseStatus = "pending_payment"
	PurchaseStatusPendingConfirmation PurchaseStatus = "pending_confirmation"
	PurchaseStatusCompleted           PurchaseStatus = "completed"
	PurchaseStatusExpired             PurchaseStatus = "expired"
	PurchaseStatusRejected            PurchaseStatus = "rejected"
)

// Purchase groups the tickets reserved in a single user action and carries
// the payment lifecycle: pending_payment -> pending_confirmation -> completed,
// with expired and rejected as terminal exits.
type Purchase struct {
	ID              uint           `json:"id"`
	UserID          uint           `json:"user_id"`
	RaffleID        uint           `json:"raffle_id"`
	TicketCount     int            `json:"ticket_count"`
	TotalAmount     int            `json:"total_amount"`
	Status          PurchaseStatus `json:"status"`
	ExpiresAt       time.Time      `json:"expires_at"`
	PaymentProofURL *string        `json:"payment_proof_url,omitempty"`
	RejectionReason *string        `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (p Purchase) IsTerminal() bool {
	switch p.Status {
	case PurchaseStatusCompleted, PurchaseStatusExpired, PurchaseStatusRejected:
		return true
	}
	return false
}

// HoldLapsed reports whether the payment window has closed. Only meaningful
// while the purchase is still pending payment.
func (p Purchase) HoldLapsed(now time.Time) bool {
	return p.Status == PurchaseStatusPendingPayment && !p.ExpiresAt.After(now)
}
