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

type PurchaseService interface {
	ReserveTickets(ctx context.Context, raffleID uint, numbers []int, user domain.User) (domain.Purchase, error)
	SubmitPaymentProof(ctx context.Context, purchaseID uint, userID uint, proofURL string) error
	ApprovePurchase(ctx context.Context, purchaseID uint) error
	RejectPurchase(ctx context.Context, purchaseID uint, reason string) error
	GetPurchase(ctx context.Context, purchaseID uint, user domain.User) (domain.Purchase, []domain.Ticket, error)
	GetUserPurchases(ctx context.Context, userID uint) ([]domain.Purchase, error)
	GetPendingConfirmation(ctx context.Context) ([]domain.Purchase, error)
}

type PurchaseHandler struct {
	svc  PurchaseService
	uSvc UserService
}

func NewPurchaseHandler(svc PurchaseService, uSvc UserService) *PurchaseHandler {
	return &PurchaseHandler{
		svc:  svc,
		uSvc: uSvc,
	}
}

// HandleReserveTickets godoc
// @Summary      Reserve ticket numbers
// @Description  Claims the requested numbers for the caller, all-or-nothing, and opens a purchase pending payment.
// @Tags         purchases
// @Accept       json
// @Produce      json
// @Param        raffleID  path      int                           true  "Raffle ID"
// @Param        input     body      request.ReserveTicketsRequest true  "Ticket numbers"
// @Success      201  {object}  domain.Purchase
// @Failure      400  {object}  response.Err
// @Failure      401  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      409  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /raffles/{raffleID}/tickets/reserve [post]
// @Security BearerAuth
func (h *PurchaseHandler) HandleReserveTickets(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	raffleID, err := parseRaffleID(ctx)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	var input request.ReserveTicketsRequest
	if err = ctx.ShouldBindJSON(&input); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err = input.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	purchase, err := h.svc.ReserveTickets(ctx.Request.Context(), raffleID, input.Numbers, user)
	if err != nil {
		var unavailable service.TicketUnavailableError
		switch {
		case errors.As(err, &unavailable):
			response.RenderErr(ctx, response.ErrConflict("ticket_unavailable", unavailable))
		case errors.Is(err, service.ErrRaffleNotFound):
			response.RenderErr(ctx, response.ErrNotFound("raffle", "ID", raffleID))
		case errors.Is(err, service.ErrRaffleNotActive):
			response.RenderErr(ctx, response.ErrConflict("raffle_not_active", service.ErrRaffleNotActive))
		case errors.Is(err, service.ErrInvalidTicketNumber), errors.Is(err, service.ErrNoTicketNumbers):
			response.RenderErr(ctx, response.ErrBadRequest(err))
		default:
			err = fmt.Errorf("v1.HandleReserveTickets -> h.svc.ReserveTickets -> %w", err)
			response.RenderErr(ctx, response.ErrInternalServerError(err))
		}
		return
	}

	ctx.JSON(http.StatusCreated, purchase)
}

// HandleSubmitProof godoc
// @Summary      Submit payment proof
// @Description  Attaches a payment-proof image reference and moves the purchase into the admin review queue. Owner only.
// @Tags         purchases
// @Accept       json
// @Produce      json
// @Param        purchaseID  path      int                        true  "Purchase ID"
// @Param        input       body      request.SubmitProofRequest true  "Proof image URL"
// @Success      200
// @Failure      400  {object}  response.Err
// @Failure      401  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      409  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /purchases/{purchaseID}/proof [post]
// @Security BearerAuth
func (h *PurchaseHandler) HandleSubmitProof(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	purchaseID, err := parsePurchaseID(ctx)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	var input request.SubmitProofRequest
	if err = ctx.ShouldBindJSON(&input); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err = input.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	err = h.svc.SubmitPaymentProof(ctx.Request.Context(), purchaseID, user.ID, input.ImageURL)
	if err != nil {
		h.renderPurchaseErr(ctx, purchaseID, fmt.Errorf("v1.HandleSubmitProof -> h.svc.SubmitPaymentProof -> %w", err))
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "payment proof submitted"})
}

// HandleApprovePurchase godoc
// @Summary      Approve a purchase
// @Description  Finalizes a reviewed purchase: tickets become sold and the raffle counter grows. Admin only.
// @Tags         purchases
// @Produce      json
// @Param        purchaseID  path      int  true  "Purchase ID"
// @Success      200
// @Failure      401  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      409  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /purchases/{purchaseID}/approve [post]
// @Security BearerAuth
func (h *PurchaseHandler) HandleApprovePurchase(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	if !user.IsAdmin() {
		response.RenderErr(ctx, response.ErrPermissionDenied(fmt.Errorf("user %v is not an admin", user.ID)))
		return
	}

	purchaseID, err := parsePurchaseID(ctx)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err = h.svc.ApprovePurchase(ctx.Request.Context(), purchaseID); err != nil {
		h.renderPurchaseErr(ctx, purchaseID, fmt.Errorf("v1.HandleApprovePurchase -> h.svc.ApprovePurchase -> %w", err))
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "purchase approved"})
}

// HandleRejectPurchase godoc
// @Summary      Reject a purchase
// @Description  Terminates a reviewed purchase with a reason and frees its ticket numbers. Admin only.
// @Tags         purchases
// @Accept       json
// @Produce      json
// @Param        purchaseID  path      int                           true  "Purchase ID"
// @Param        input       body      request.RejectPurchaseRequest true  "Rejection reason"
// @Success      200
// @Failure      400  {object}  response.Err
// @Failure      401  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      409  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /purchases/{purchaseID}/reject [post]
// @Security BearerAuth
func (h *PurchaseHandler) HandleRejectPurchase(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	if !user.IsAdmin() {
		response.RenderErr(ctx, response.ErrPermissionDenied(fmt.Errorf("user %v is not an admin", user.ID)))
		return
	}

	purchaseID, err := parsePurchaseID(ctx)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	var input request.RejectPurchaseRequest
	if err = ctx.ShouldBindJSON(&input); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err = input.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err = h.svc.RejectPurchase(ctx.Request.Context(), purchaseID, input.Reason); err != nil {
		h.renderPurchaseErr(ctx, purchaseID, fmt.Errorf("v1.HandleRejectPurchase -> h.svc.RejectPurchase -> %w", err))
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "purchase rejected"})
}

// HandleGetPurchases godoc
// @Summary      List the caller's purchases
// @Tags         purchases
// @Produce      json
// @Success      200  {array}   domain.Purchase
// @Failure      401  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /purchases [get]
// @Security BearerAuth
func (h *PurchaseHandler) HandleGetPurchases(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	purchases, err := h.svc.GetUserPurchases(ctx.Request.Context(), user.ID)
	if err != nil {
		err = fmt.Errorf("v1.HandleGetPurchases -> h.svc.GetUserPurchases -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, purchases)
}

// HandleGetPendingPurchases godoc
// @Summary      List purchases awaiting review
// @Tags         purchases
// @Produce      json
// @Success      200  {array}   domain.Purchase
// @Failure      401  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /purchases/pending [get]
// @Security BearerAuth
func (h *PurchaseHandler) HandleGetPendingPurchases(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	if !user.IsAdmin() {
		response.RenderErr(ctx, response.ErrPermissionDenied(fmt.Errorf("user %v is not an admin", user.ID)))
		return
	}

	purchases, err := h.svc.GetPendingConfirmation(ctx.Request.Context())
	if err != nil {
		err = fmt.Errorf("v1.HandleGetPendingPurchases -> h.svc.GetPendingConfirmation -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, purchases)
}

// HandleGetPurchase godoc
// @Summary      Get one purchase with its tickets
// @Tags         purchases
// @Produce      json
// @Param        purchaseID  path      int  true  "Purchase ID"
// @Success      200  {object}  response.PurchaseDetailResponse
// @Failure      401  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /purchases/{purchaseID} [get]
// @Security BearerAuth
func (h *PurchaseHandler) HandleGetPurchase(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	purchaseID, err := parsePurchaseID(ctx)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	purchase, tickets, err := h.svc.GetPurchase(ctx.Request.Context(), purchaseID, user)
	if err != nil {
		h.renderPurchaseErr(ctx, purchaseID, fmt.Errorf("v1.HandleGetPurchase -> h.svc.GetPurchase -> %w", err))
		return
	}

	ctx.JSON(http.StatusOK, response.PurchaseDetailResponse{
		Purchase: purchase,
		Tickets:  tickets,
	})
}

// renderPurchaseErr maps the purchase workflow's sentinel errors onto the
// wire taxonomy; anything unrecognized is a 500.
func (h *PurchaseHandler) renderPurchaseErr(ctx *gin.Context, purchaseID uint, err error) {
	switch {
	case errors.Is(err, service.ErrPurchaseNotFound):
		response.RenderErr(ctx, response.ErrNotFound("purchase", "ID", purchaseID))
	case errors.Is(err, service.ErrNotOwner):
		response.RenderErr(ctx, response.ErrPermissionDenied(service.ErrNotOwner))
	case errors.Is(err, service.ErrAlreadyFinalized):
		response.RenderErr(ctx, response.ErrConflict("already_finalized", service.ErrAlreadyFinalized))
	case errors.Is(err, service.ErrPurchaseExpired):
		response.RenderErr(ctx, response.ErrConflict("purchase_expired", service.ErrPurchaseExpired))
	case errors.Is(err, service.ErrInvalidStateTransition):
		response.RenderErr(ctx, response.ErrConflict("invalid_state_transition", service.ErrInvalidStateTransition))
	default:
		response.RenderErr(ctx, response.ErrInternalServerError(err))
	}
}

func parsePurchaseID(ctx *gin.Context) (uint, error) {
	purchaseID, err := strconv.ParseUint(ctx.Param("purchaseID"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid purchase ID: %w", err)
	}

	return uint(purchaseID), nil
}
