package request

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

type ReserveTicketsRequest struct {
	Numbers []int `json:"numbers"`
}

func (req *ReserveTicketsRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Numbers,
			validation.Required,
			validation.Length(1, 100),
			validation.Each(validation.Min(1)),
		),
	)
}

type SubmitProofRequest struct {
	ImageURL string `json:"image_url"`
}

func (req *SubmitProofRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.ImageURL, validation.Required, is.URL),
	)
}

type RejectPurchaseRequest struct {
	Reason string `json:"reason"`
}

func (req *RejectPurchaseRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Reason, validation.Required, validation.Length(2, 200)),
	)
}
