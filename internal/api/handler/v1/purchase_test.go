package v1_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	v1 "github.com/rifadigital/rifa-api/internal/api/handler/v1"
	"github.com/rifadigital/rifa-api/internal/api/middleware"
	"github.com/rifadigital/rifa-api/internal/domain"
	"github.com/rifadigital/rifa-api/internal/service"
)

type stubUserService struct {
	user domain.User
}

func (s stubUserService) GetUser(_ context.Context, _ uint) (domain.User, error) {
	return s.user, nil
}

// stubPurchaseService returns canned errors so the handler's status-code
// mapping can be exercised without storage.
type stubPurchaseService struct {
	reserveErr error
	submitErr  error
	approveErr error
}

func (s stubPurchaseService) ReserveTickets(_ context.Context, raffleID uint, numbers []int, user domain.User) (domain.Purchase, error) {
	if s.reserveErr != nil {
		return domain.Purchase{}, s.reserveErr
	}
	return domain.Purchase{ID: 1, UserID: user.ID, RaffleID: raffleID, TicketCount: len(numbers)}, nil
}

func (s stubPurchaseService) SubmitPaymentProof(_ context.Context, _ uint, _ uint, _ string) error {
	return s.submitErr
}

func (s stubPurchaseService) ApprovePurchase(_ context.Context, _ uint) error {
	return s.approveErr
}

func (s stubPurchaseService) RejectPurchase(_ context.Context, _ uint, _ string) error {
	return nil
}

func (s stubPurchaseService) GetPurchase(_ context.Context, purchaseID uint, user domain.User) (domain.Purchase, []domain.Ticket, error) {
	return domain.Purchase{ID: purchaseID, UserID: user.ID}, nil, nil
}

func (s stubPurchaseService) GetUserPurchases(_ context.Context, _ uint) ([]domain.Purchase, error) {
	return nil, nil
}

func (s stubPurchaseService) GetPendingConfirmation(_ context.Context) ([]domain.Purchase, error) {
	return nil, nil
}

func newPurchaseRouter(svc v1.PurchaseService, user domain.User) *gin.Engine {
	gin.SetMode(gin.TestMode)

	handler := v1.NewPurchaseHandler(svc, stubUserService{user: user})

	router := gin.New()
	router.Use(func(ctx *gin.Context) {
		ctx.Set(middleware.ContextKeyUserID, user.ID)
	})
	router.POST("/raffles/:raffleID/tickets/reserve", handler.HandleReserveTickets)
	router.POST("/purchases/:purchaseID/proof", handler.HandleSubmitProof)
	router.POST("/purchases/:purchaseID/approve", handler.HandleApprovePurchase)

	return router
}

func TestHandleReserveTickets(t *testing.T) {
	buyer := domain.User{ID: 7, Role: domain.RoleUser}

	tests := []struct {
		name       string
		reserveErr error
		body       string
		wantStatus int
	}{
		{
			name:       "created",
			body:       `{"numbers":[1,2,3]}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "invalid body",
			body:       `{"numbers":[]}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "taken number conflicts",
			reserveErr: service.TicketUnavailableError{Number: 2},
			body:       `{"numbers":[1,2,3]}`,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "inactive raffle conflicts",
			reserveErr: service.ErrRaffleNotActive,
			body:       `{"numbers":[1]}`,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "unknown raffle",
			reserveErr: service.ErrRaffleNotFound,
			body:       `{"numbers":[1]}`,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "out of range",
			reserveErr: service.ErrInvalidTicketNumber,
			body:       `{"numbers":[1]}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newPurchaseRouter(stubPurchaseService{reserveErr: tt.reserveErr}, buyer)

			req := httptest.NewRequest(http.MethodPost, "/raffles/1/tickets/reserve", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)

			assert.Equal(t, tt.wantStatus, resp.Code)
		})
	}
}

func TestHandleSubmitProof(t *testing.T) {
	buyer := domain.User{ID: 7, Role: domain.RoleUser}
	body := `{"image_url":"https://cdn.example.com/p.png"}`

	tests := []struct {
		name       string
		submitErr  error
		wantStatus int
	}{
		{name: "accepted", wantStatus: http.StatusOK},
		{name: "not the owner", submitErr: service.ErrNotOwner, wantStatus: http.StatusForbidden},
		{name: "hold lapsed", submitErr: service.ErrPurchaseExpired, wantStatus: http.StatusConflict},
		{name: "wrong state", submitErr: service.ErrInvalidStateTransition, wantStatus: http.StatusConflict},
		{name: "unknown purchase", submitErr: service.ErrPurchaseNotFound, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newPurchaseRouter(stubPurchaseService{submitErr: tt.submitErr}, buyer)

			req := httptest.NewRequest(http.MethodPost, "/purchases/1/proof", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)

			assert.Equal(t, tt.wantStatus, resp.Code)
		})
	}
}

func TestHandleApprovePurchase(t *testing.T) {
	admin := domain.User{ID: 1, Role: domain.RoleAdmin}

	t.Run("non-admin is denied", func(t *testing.T) {
		router := newPurchaseRouter(stubPurchaseService{}, domain.User{ID: 7, Role: domain.RoleUser})

		req := httptest.NewRequest(http.MethodPost, "/purchases/1/approve", nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		assert.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("second approval conflicts", func(t *testing.T) {
		router := newPurchaseRouter(stubPurchaseService{approveErr: service.ErrAlreadyFinalized}, admin)

		req := httptest.NewRequest(http.MethodPost, "/purchases/1/approve", nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		assert.Equal(t, http.StatusConflict, resp.Code)
	})

	t.Run("approval succeeds", func(t *testing.T) {
		router := newPurchaseRouter(stubPurchaseService{}, admin)

		req := httptest.NewRequest(http.MethodPost, "/purchases/1/approve", nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		assert.Equal(t, http.StatusOK, resp.Code)
	})
}
