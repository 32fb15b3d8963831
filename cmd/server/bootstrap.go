package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/visicontrol/visicontrol/internal/api"
	"github.com/visicontrol/visicontrol/internal/app"
	"github.com/visicontrol/visicontrol/internal/app/jobs"
	iauth "github.com/visicontrol/visicontrol/internal/auth"
	"github.com/visicontrol/visicontrol/internal/database"
	"github.com/visicontrol/visicontrol/internal/realtime"
	"github.com/visicontrol/visicontrol/internal/services"
	"github.com/visicontrol/visicontrol/pkg/logger"
	"github.com/visicontrol/visicontrol/pkg/mail"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB            *gorm.DB
	Hub           *realtime.Hub
	Notifications *services.NotificationService
	Accounts      *services.AccountService
	Scheduler     *jobs.Scheduler
	Router        *gin.Engine
}

// bootstrapRuntime opens the store and wires the services, the scheduler and the HTTP router.
func bootstrapRuntime(cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	stack.Hub = realtime.NewHub(cfg.Notifications.HubOptions())

	stack.Notifications, err = services.NewNotificationService(stack.DB, stack.Hub,
		services.WithListLimits(cfg.Notifications.ListLimits()))
	if err != nil {
		return nil, fmt.Errorf("initialise notification service: %w", err)
	}

	visits, err := services.NewVisitService(stack.DB, stack.Notifications)
	if err != nil {
		return nil, fmt.Errorf("initialise visit service: %w", err)
	}

	inmates, err := services.NewInmateService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise inmate service: %w", err)
	}

	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise mailer: %w", err)
	}

	stack.Accounts, err = services.NewAccountService(stack.DB, jwtSvc,
		services.WithMailer(mailer),
		services.WithResetBaseURL(cfg.Server.BaseURL),
		services.WithResetTokenTTL(cfg.Auth.ResetTTL()))
	if err != nil {
		return nil, fmt.Errorf("initialise account service: %w", err)
	}

	stack.Scheduler = jobs.NewScheduler(stack.Notifications, cfg.Notifications.SchedulerConfig(),
		jobs.WithTokenCleaner(stack.Accounts))

	stack.Router, err = api.NewRouter(api.Dependencies{
		DB:            stack.DB,
		Config:        cfg,
		JWT:           jwtSvc,
		Hub:           stack.Hub,
		Notifications: stack.Notifications,
		Visits:        visits,
		Inmates:       inmates,
		Accounts:      stack.Accounts,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown stops background jobs and closes the store. Safe on a partially built stack.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}
	if log == nil {
		log = logger.WithModule("bootstrap")
	}

	if s.Scheduler != nil {
		select {
		case <-s.Scheduler.Stop().Done():
		case <-ctx.Done():
			log.Warn("scheduler did not stop before shutdown deadline")
		}
	}

	closeDatabase(s.DB, log)
	s.DB = nil
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.DatabaseSettings()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db, cfg.Auth.AdminSeed()); err != nil {
		closeDatabase(db, logger.WithModule("database"))
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	driver := dbCfg.Driver
	if driver == "" {
		driver = "sqlite"
	}
	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(driver)))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
