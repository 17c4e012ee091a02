package response

import "github.com/rifadigital/rifa-api/internal/domain"

type PurchaseDetailResponse struct {
	Purchase domain.Purchase `json:"purchase"`
	Tickets  []domain.Ticket `json:"tickets"`
}
