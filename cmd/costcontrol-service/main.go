package main

import (
	"fmt"
	"os"

	"github.com/openpmo/costcontrol/internal/auth"
	"github.com/openpmo/costcontrol/internal/config"
	"github.com/openpmo/costcontrol/internal/db"
	"github.com/openpmo/costcontrol/internal/excel"
	httphandler "github.com/openpmo/costcontrol/internal/http"
	"github.com/openpmo/costcontrol/internal/http/middleware"
	"github.com/openpmo/costcontrol/internal/logger"
	"github.com/openpmo/costcontrol/internal/pdf"
	"github.com/openpmo/costcontrol/internal/repository"
	"github.com/openpmo/costcontrol/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg.DB.DSN, cfg.DB.MaxOpenConns, cfg.DB.MaxIdleConns, cfg.DB.ConnMaxLifetime, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	wbsRepo := repository.NewWBSRepository(database)
	accountRepo := repository.NewControlAccountRepository(database)
	budgetRepo := repository.NewBudgetRepository(database)
	workPackageRepo := repository.NewWorkPackageRepository(database)
	commitmentRepo := repository.NewCommitmentRepository(database)
	evmRepo := repository.NewEVMRepository(database)
	rateRepo := repository.NewRateRepository(database)

	wbsService := service.NewWBSService(wbsRepo)
	accountService := service.NewControlAccountService(accountRepo)
	budgetService := service.NewBudgetService(budgetRepo, rateRepo, cfg)
	conversionService := service.NewConversionService(workPackageRepo, cfg)
	workPackageService := service.NewWorkPackageService(workPackageRepo)
	commitmentService := service.NewCommitmentService(commitmentRepo, cfg)
	evmService := service.NewEVMService(evmRepo)
	exportService := service.NewExportService(evmService, evmRepo, commitmentRepo, excel.NewGenerator(), pdf.NewGenerator())

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(
		wbsService,
		accountService,
		budgetService,
		conversionService,
		workPackageService,
		commitmentService,
		evmService,
		exportService,
		log,
	)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting cost control service")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
