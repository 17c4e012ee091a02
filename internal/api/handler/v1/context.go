package v1

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/rifadigital/rifa-api/internal/api/handler/v1/response"
	"github.com/rifadigital/rifa-api/internal/api/middleware"
	"github.com/rifadigital/rifa-api/internal/domain"
	"github.com/rifadigital/rifa-api/internal/service"
)

// getUserFromContext resolves the authenticated user from the ID the JWT
// middleware stored on the request context.
func getUserFromContext(ctx *gin.Context, uSvc UserService) (domain.User, *response.Err) {
	raw, exists := ctx.Get(middleware.ContextKeyUserID)
	if !exists {
		return domain.User{}, response.ErrUnauthorized(errors.New("missing user identity"))
	}

	userID, ok := raw.(uint)
	if !ok {
		return domain.User{}, response.ErrUnauthorized(errors.New("malformed user identity"))
	}

	user, err := uSvc.GetUser(ctx.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return domain.User{}, response.ErrUnauthorized(err)
		}

		return domain.User{}, response.ErrInternalServerError(fmt.Errorf("getUserFromContext -> uSvc.GetUser -> %w", err))
	}

	return user, nil
}
