package request

import (
	"errors"
	"fmt"

	"github.com/dlclark/regexp2"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// At least one letter and one digit, 8 to 64 characters. regexp2 because the
// stdlib engine has no lookaheads.
var passwordPattern = regexp2.MustCompile(`^(?=.*[A-Za-z])(?=.*\d).{8,64}$`, regexp2.None)

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (req *SignupRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Email, validation.Required, is.Email),
		validation.Field(&req.Password, validation.Required, validation.By(validatePassword)),
		validation.Field(&req.Name, validation.Required, validation.Length(2, 50)),
	)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (req *LoginRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Email, validation.Required, is.Email),
		validation.Field(&req.Password, validation.Required),
	)
}

func validatePassword(value interface{}) error {
	password, ok := value.(string)
	if !ok {
		return errors.New("password must be a string")
	}

	matched, err := passwordPattern.MatchString(password)
	if err != nil {
		return fmt.Errorf("passwordPattern.MatchString -> %w", err)
	}
	if !matched {
		return errors.New("password must be 8-64 characters with at least one letter and one digit")
	}

	return nil
}
