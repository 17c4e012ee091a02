package api

import (
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"github.com/rifadigital/rifa-api/docs"
	v1 "github.com/rifadigital/rifa-api/internal/api/handler/v1"
	"github.com/rifadigital/rifa-api/internal/api/middleware"
	"github.com/rifadigital/rifa-api/internal/config"
	"github.com/rifadigital/rifa-api/internal/repository"
	"github.com/rifadigital/rifa-api/internal/repository/dao"
	"github.com/rifadigital/rifa-api/internal/service"
)

type Server struct {
	Config *config.AppConfig
	Router *gin.Engine
}

func NewServer(conf *config.AppConfig, db *gorm.DB) *Server {
	gin.SetMode(conf.Gin.Mode)
	engine := gin.New()

	s := &Server{
		Config: conf,
		Router: engine,
	}

	s.MountMiddlewares()

	authHandler := s.initAuthHandler(db)
	userHandler := s.initUserHandler(db)
	raffleHandler := s.initRaffleHandler(db)
	purchaseHandler := s.initPurchaseHandler(db)
	s.MountHandlers(authHandler, userHandler, raffleHandler, purchaseHandler)

	return s
}

func (s *Server) initAuthHandler(db *gorm.DB) *v1.AuthHandler {
	userDAO := dao.NewUserDAO(db)
	repo := repository.NewUserRepository(userDAO)
	svc := service.NewAuthService(repo)
	handler := v1.NewAuthHandler(s.Config.API, svc)

	return handler
}

func (s *Server) initUserHandler(db *gorm.DB) *v1.UserHandler {
	userDAO := dao.NewUserDAO(db)
	repo := repository.NewUserRepository(userDAO)
	svc := service.NewUserService(repo)
	handler := v1.NewUserHandler(svc)

	return handler
}

func (s *Server) initRaffleHandler(db *gorm.DB) *v1.RaffleHandler {
	repo := repository.NewRaffleRepository(dao.NewRaffleDAO(db), dao.NewTicketDAO(db))
	svc := service.NewRaffleService(repo)
	uSvc := service.NewUserService(repository.NewUserRepository(dao.NewUserDAO(db)))
	handler := v1.NewRaffleHandler(svc, uSvc)

	return handler
}

func (s *Server) initPurchaseHandler(db *gorm.DB) *v1.PurchaseHandler {
	repo := repository.NewPurchaseRepository(dao.NewPurchaseDAO(db))
	raffleRepo := repository.NewRaffleRepository(dao.NewRaffleDAO(db), dao.NewTicketDAO(db))
	svc := service.NewPurchaseService(repo, raffleRepo, s.Config.Raffle)
	uSvc := service.NewUserService(repository.NewUserRepository(dao.NewUserDAO(db)))
	handler := v1.NewPurchaseHandler(svc, uSvc)

	return handler
}

func (s *Server) MountMiddlewares() {
	// Logger and Recovery are needed unless we use gin.Default().
	s.Router.Use(gin.Logger())
	s.Router.Use(gin.Recovery())
	s.Router.Use(requestid.New())
	s.Router.Use(middleware.ConfigCORS(s.Config.API.AllowedCORSDomains))
}

func (s *Server) MountHandlers(authHandler *v1.AuthHandler, userHandler *v1.UserHandler, raffleHandler *v1.RaffleHandler, purchaseHandler *v1.PurchaseHandler) {
	const basePath = "/api/v1"

	auth := s.Router.Group(basePath)
	{
		auth.POST("/auth/signup", authHandler.HandleSignup)
		auth.POST("/auth/login", authHandler.HandleLogin)
	}

	users := s.Router.Group(basePath, middleware.NewAuthenticator(s.Config.API.JWTSigningKey).VerifyJWT())
	{
		users.GET("/users/:userID", userHandler.HandleGetUser)
	}

	raffles := s.Router.Group(basePath, middleware.NewAuthenticator(s.Config.API.JWTSigningKey).VerifyJWT())
	{
		raffles.GET("/raffles", raffleHandler.HandleGetRaffles)
		raffles.GET("/raffles/:raffleID", raffleHandler.HandleGetRaffle)
		raffles.GET("/raffles/:raffleID/tickets/unavailable", raffleHandler.HandleGetUnavailableTickets)
		raffles.POST("/raffles", raffleHandler.HandleCreateRaffle)
		raffles.POST("/raffles/:raffleID/cancel", raffleHandler.HandleCancelRaffle)
		raffles.POST("/raffles/:raffleID/finish", raffleHandler.HandleFinishRaffle)
		raffles.DELETE("/raffles/:raffleID", raffleHandler.HandleDeleteRaffle)

		raffles.POST("/raffles/:raffleID/tickets/reserve", purchaseHandler.HandleReserveTickets)
	}

	purchases := s.Router.Group(basePath, middleware.NewAuthenticator(s.Config.API.JWTSigningKey).VerifyJWT())
	{
		purchases.GET("/purchases", purchaseHandler.HandleGetPurchases)
		purchases.GET("/purchases/pending", purchaseHandler.HandleGetPendingPurchases)
		purchases.GET("/purchases/:purchaseID", purchaseHandler.HandleGetPurchase)
		purchases.POST("/purchases/:purchaseID/proof", purchaseHandler.HandleSubmitProof)
		purchases.POST("/purchases/:purchaseID/approve", purchaseHandler.HandleApprovePurchase)
		purchases.POST("/purchases/:purchaseID/reject", purchaseHandler.HandleRejectPurchase)
	}

	s.Router.GET("/", v1.HandleHealthcheck)

	// Setup Swagger UI.
	docs.SwaggerInfo.Host = s.Config.API.BaseURL
	docs.SwaggerInfo.BasePath = basePath
	docs.SwaggerInfo.Title = "Rifa API"
	docs.SwaggerInfo.Description = "Raffle ticketing API with reservation holds and admin-confirmed purchases."
	docs.SwaggerInfo.Version = "1.0"
	s.Router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))
}
