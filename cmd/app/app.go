package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rifadigital/rifa-api/internal/api"
	"github.com/rifadigital/rifa-api/internal/config"
	"github.com/rifadigital/rifa-api/internal/db"
	"github.com/rifadigital/rifa-api/internal/logger"
	"github.com/rifadigital/rifa-api/internal/repository"
	"github.com/rifadigital/rifa-api/internal/repository/dao"
	"github.com/rifadigital/rifa-api/internal/service"
)

func Start() error {
	conf, err := config.Load("./cmd/app/config.yml")
	if err != nil {
		return fmt.Errorf("failed to initialize config -> %w", err)
	}

	if err = logger.Init(conf.API.Environment); err != nil {
		return fmt.Errorf("failed to initialize logger -> %w", err)
	}

	dbURL := os.Getenv("DATABASE_URL")
	var postgresDB *gorm.DB
	if dbURL != "" {
		postgresDB, err = db.OpenPostgresWithURL(dbURL)
	} else {
		postgresDB, err = db.OpenPostgres(conf.Postgres)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database -> %w", err)
	}

	if err = dao.InitTables(postgresDB); err != nil {
		return fmt.Errorf("failed to migrate tables -> %w", err)
	}

	s := api.NewServer(conf, postgresDB)

	startExpirySweeper(conf, postgresDB)

	addr := ":" + s.Config.API.Port
	zap.L().Info(fmt.Sprintf("starting server at %v", addr))
	if err = s.Router.Run(addr); err != nil {
		return fmt.Errorf("failed to start the server -> %w", err)
	}

	return nil
}

// startExpirySweeper releases lapsed reservations on a fixed interval so that
// held ticket numbers become purchasable again even if the reserver never
// comes back. Availability reads apply the same expiry filter, so the sweep
// interval only bounds how long dead rows linger, not correctness.
func startExpirySweeper(conf *config.AppConfig, postgresDB *gorm.DB) {
	repo := repository.NewPurchaseRepository(dao.NewPurchaseDAO(postgresDB))
	raffleRepo := repository.NewRaffleRepository(dao.NewRaffleDAO(postgresDB), dao.NewTicketDAO(postgresDB))
	svc := service.NewPurchaseService(repo, raffleRepo, conf.Raffle)

	go func() {
		ticker := time.NewTicker(conf.Raffle.SweepInterval)
		defer ticker.Stop()

		for range ticker.C {
			expired, err := svc.ExpireOverduePurchases(context.Background())
			if err != nil {
				zap.L().Error("expiry sweep failed", zap.Error(err))
				continue
			}
			if expired > 0 {
				zap.L().Info("released lapsed reservations", zap.Int64("purchases", expired))
			}
		}
	}()
}
