package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rifadigital/rifa-api/internal/api/handler/v1/request"
	"github.com/rifadigital/rifa-api/internal/api/handler/v1/response"
	"github.com/rifadigital/rifa-api/internal/domain"
	"github.com/rifadigital/rifa-api/internal/service"
)

type RaffleService interface {
	CreateRaffle(ctx context.Context, raffle domain.Raffle) (domain.Raffle, error)
	GetRaffles(ctx context.Context) ([]domain.Raffle, error)
	GetRaffle(ctx context.Context, id uint) (domain.Raffle, error)
	CancelRaffle(ctx context.Context, id uint) (domain.Raffle, error)
	DeleteRaffle(ctx context.Context, id uint) error
	FinishRaffle(ctx context.Context, id uint, winningNumber int) (domain.Raffle, error)
	GetUnavailableTickets(ctx context.Context, raffleID uint) ([]domain.UnavailableTicket, error)
}

type RaffleHandler struct {
	svc  RaffleService
	uSvc UserService
}

func NewRaffleHandler(svc RaffleService, uSvc UserService) *RaffleHandler {
	return &RaffleHandler{
		svc:  svc,
		uSvc: uSvc,
	}
}

// HandleCreateRaffle godoc
// @Summary      Create a new raffle
// @Description  Creates a raffle with a fixed ticket range. Admin only.
// @Tags         raffles
// @Accept       json
// @Produce      json
// @Param        input  body      request.CreateRaffleRequest  true  "Raffle details"
// @Success      201    {object}  domain.Raffle
// @Failure      400    {object}  response.Err
// @Failure      401    {object}  response.Err
// @Failure      403    {object}  response.Err
// @Failure      500    {object}  response.Err
// @Router       /raffles [post]
// @Security BearerAuth
func (h *RaffleHandler) HandleCreateRaffle(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	if !user.IsAdmin() {
		response.RenderErr(ctx, response.ErrPermissionDenied(fmt.Errorf("user %v is not an admin", user.ID)))
		return
	}

	var input request.CreateRaffleRequest
	if err := ctx.ShouldBindJSON(&input); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := input.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	raffle, err := h.svc.CreateRaffle(ctx.Request.Context(), domain.Raffle{
		Title:        input.Title,
		Description:  input.Description,
		TotalTickets: input.TotalTickets,
		TicketPrice:  input.TicketPrice,
	})
	if err != nil {
		err = fmt.Errorf("v1.HandleCreateRaffle -> h.svc.CreateRaffle -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusCreated, raffle)
}

// HandleGetRaffles godoc
// @Summary      List raffles
// @Tags         raffles
// @Produce      json
// @Success      200  {array}   domain.Raffle
// @Failure      401  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /raffles [get]
// @Security BearerAuth
func (h *RaffleHandler) HandleGetRaffles(ctx *gin.Context) {
	raffles, err := h.svc.GetRaffles(ctx.Request.Context())
	if err != nil {
		err = fmt.Errorf("v1.HandleGetRaffles -> h.svc.GetRaffles -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, raffles)
}

// HandleGetRaffle godoc
// @Summary      Get one raffle
// @Tags         raffles
// @Produce      json
// @Param        raffleID  path      int  true  "Raffle ID"
// @Success      200  {object}  domain.Raffle
// @Failure      401  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /raffles/{raffleID} [get]
// @Security BearerAuth
func (h *RaffleHandler) HandleGetRaffle(ctx *gin.Context) {
	raffleID, err := parseRaffleID(ctx)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	raffle, err := h.svc.GetRaffle(ctx.Request.Context(), raffleID)
	if err != nil {
		if errors.Is(err, service.ErrRaffleNotFound) {
			response.RenderErr(ctx, response.ErrNotFound("raffle", "ID", raffleID))
			return
		}

		err = fmt.Errorf("v1.HandleGetRaffle -> h.svc.GetRaffle -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, raffle)
}

// HandleGetUnavailableTickets godoc
// @Summary      List unavailable ticket numbers
// @Description  Returns the claimed numbers of a raffle with their status. Lapsed holds are excluded.
// @Tags         raffles,tickets
// @Produce      json
// @Param        raffleID  path      int  true  "Raffle ID"
// @Success      200  {array}   domain.UnavailableTicket
// @Failure      401  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /raffles/{raffleID}/tickets/unavailable [get]
// @Security BearerAuth
func (h *RaffleHandler) HandleGetUnavailableTickets(ctx *gin.Context) {
	raffleID, err := parseRaffleID(ctx)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	unavailable, err := h.svc.GetUnavailableTickets(ctx.Request.Context(), raffleID)
	if err != nil {
		if errors.Is(err, service.ErrRaffleNotFound) {
			response.RenderErr(ctx, response.ErrNotFound("raffle", "ID", raffleID))
			return
		}

		err = fmt.Errorf("v1.HandleGetUnavailableTickets -> h.svc.GetUnavailableTickets -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, unavailable)
}

// HandleCancelRaffle godoc
// @Summary      Cancel a raffle
// @Description  Soft-cancels an active raffle. Admin only.
// @Tags         raffles
// @Produce      json
// @Param        raffleID  path      int  true  "Raffle ID"
// @Success      200  {object}  domain.Raffle
// @Failure      401  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      409  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /raffles/{raffleID}/cancel [post]
// @Security BearerAuth
func (h *RaffleHandler) HandleCancelRaffle(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	if !user.IsAdmin() {
		response.RenderErr(ctx, response.ErrPermissionDenied(fmt.Errorf("user %v is not an admin", user.ID)))
		return
	}

	raffleID, err := parseRaffleID(ctx)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	raffle, err := h.svc.CancelRaffle(ctx.Request.Context(), raffleID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRaffleNotFound):
			response.RenderErr(ctx, response.ErrNotFound("raffle", "ID", raffleID))
		case errors.Is(err, service.ErrRaffleNotActive):
			response.RenderErr(ctx, response.ErrConflict("raffle_not_active", service.ErrRaffleNotActive))
		default:
			err = fmt.Errorf("v1.HandleCancelRaffle -> h.svc.CancelRaffle -> %w", err)
			response.RenderErr(ctx, response.ErrInternalServerError(err))
		}
		return
	}

	ctx.JSON(http.StatusOK, raffle)
}

// HandleDeleteRaffle godoc
// @Summary      Delete a raffle
// @Description  Hard-deletes a raffle that has no sales history. Admin only.
// @Tags         raffles
// @Produce      json
// @Param        raffleID  path      int  true  "Raffle ID"
// @Success      204
// @Failure      401  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      409  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /raffles/{raffleID} [delete]
// @Security BearerAuth
func (h *RaffleHandler) HandleDeleteRaffle(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	if !user.IsAdmin() {
		response.RenderErr(ctx, response.ErrPermissionDenied(fmt.Errorf("user %v is not an admin", user.ID)))
		return
	}

	raffleID, err := parseRaffleID(ctx)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err = h.svc.DeleteRaffle(ctx.Request.Context(), raffleID); err != nil {
		switch {
		case errors.Is(err, service.ErrRaffleNotFound):
			response.RenderErr(ctx, response.ErrNotFound("raffle", "ID", raffleID))
		case errors.Is(err, service.ErrRaffleHasSales):
			response.RenderErr(ctx, response.ErrConflict("raffle_has_sales", service.ErrRaffleHasSales))
		default:
			err = fmt.Errorf("v1.HandleDeleteRaffle -> h.svc.DeleteRaffle -> %w", err)
			response.RenderErr(ctx, response.ErrInternalServerError(err))
		}
		return
	}

	ctx.Status(http.StatusNoContent)
}

// HandleFinishRaffle godoc
// @Summary      Finish a raffle with a winning number
// @Description  Closes an active raffle, records the winning number and resolves the winner when the ticket was sold. Admin only.
// @Tags         raffles
// @Accept       json
// @Produce      json
// @Param        raffleID  path      int                         true  "Raffle ID"
// @Param        input     body      request.FinishRaffleRequest true  "Winning number"
// @Success      200  {object}  domain.Raffle
// @Failure      400  {object}  response.Err
// @Failure      401  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      409  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /raffles/{raffleID}/finish [post]
// @Security BearerAuth
func (h *RaffleHandler) HandleFinishRaffle(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	if !user.IsAdmin() {
		response.RenderErr(ctx, response.ErrPermissionDenied(fmt.Errorf("user %v is not an admin", user.ID)))
		return
	}

	raffleID, err := parseRaffleID(ctx)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	var input request.FinishRaffleRequest
	if err = ctx.ShouldBindJSON(&input); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err = input.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	raffle, err := h.svc.FinishRaffle(ctx.Request.Context(), raffleID, input.WinningNumber)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRaffleNotFound):
			response.RenderErr(ctx, response.ErrNotFound("raffle", "ID", raffleID))
		case errors.Is(err, service.ErrInvalidTicketNumber):
			response.RenderErr(ctx, response.ErrBadRequest(service.ErrInvalidTicketNumber))
		case errors.Is(err, service.ErrAlreadyFinalized):
			response.RenderErr(ctx, response.ErrConflict("already_finalized", service.ErrAlreadyFinalized))
		default:
			err = fmt.Errorf("v1.HandleFinishRaffle -> h.svc.FinishRaffle -> %w", err)
			response.RenderErr(ctx, response.ErrInternalServerError(err))
		}
		return
	}

	ctx.JSON(http.StatusOK, raffle)
}

func parseRaffleID(ctx *gin.Context) (uint, error) {
	raffleID, err := strconv.ParseUint(ctx.Param("raffleID"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid raffle ID: %w", err)
	}

	return uint(raffleID), nil
}
