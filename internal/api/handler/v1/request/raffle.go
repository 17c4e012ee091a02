package request

import (
	validation "github.com/go-ozzo/ozzo-validation"
)

type CreateRaffleRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	TotalTickets int    `json:"total_tickets"`
	TicketPrice  int    `json:"ticket_price"`
}

func (req *CreateRaffleRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Title, validation.Required, validation.Length(2, 100)),
		validation.Field(&req.Description, validation.Length(0, 500)),
		validation.Field(&req.TotalTickets, validation.Required, validation.Min(1), validation.Max(100000)),
		validation.Field(&req.TicketPrice, validation.Required, validation.Min(1)),
	)
}

type FinishRaffleRequest struct {
	WinningNumber int `json:"winning_number"`
}

func (req *FinishRaffleRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.WinningNumber, validation.Required, validation.Min(1)),
	)
}
