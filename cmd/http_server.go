package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/expenseflow/expense-approval/internal"
	"github.com/expenseflow/expense-approval/internal/approval"
	approvalPostgres "github.com/expenseflow/expense-approval/internal/approval/postgres"
	"github.com/expenseflow/expense-approval/internal/auth"
	"github.com/expenseflow/expense-approval/internal/core/events"
	"github.com/expenseflow/expense-approval/internal/expense"
	expensePostgres "github.com/expenseflow/expense-approval/internal/expense/postgres"
	"github.com/expenseflow/expense-approval/internal/notification"
	notificationPostgres "github.com/expenseflow/expense-approval/internal/notification/postgres"
	"github.com/expenseflow/expense-approval/internal/organization"
	organizationPostgres "github.com/expenseflow/expense-approval/internal/organization/postgres"
	"github.com/expenseflow/expense-approval/internal/transport/rest"
	"github.com/expenseflow/expense-approval/internal/transport/swagger"
	"github.com/expenseflow/expense-approval/internal/user"
	userPostgres "github.com/expenseflow/expense-approval/internal/user/postgres"
	"github.com/expenseflow/expense-approval/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *sqlx.DB
	GormDB *gorm.DB
	Router *chi.Mux
	Logger *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("received signal, shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	env := "development"
	if config.Logging.Format == "json" {
		env = "production"
	}
	logger.Init(env)
	lg := logger.L()

	if _, err := swagger.ValidateSpec(context.Background(), "./api/openapi.yml"); err != nil {
		return nil, fmt.Errorf("openapi spec is invalid: %w", err)
	}

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := initGorm(db, config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize orm: %w", err)
	}

	router := chi.NewRouter()

	handlers, err := buildHandlers(config, gormDB, lg)
	if err != nil {
		return nil, err
	}

	rest.RegisterAllRoutes(router, db.DB, handlers, lg)

	return &Dependencies{
		Config: config,
		Logger: lg,
		DB:     db,
		GormDB: gormDB,
		Router: router,
	}, nil
}

func buildHandlers(config *internal.Config, gormDB *gorm.DB, lg *slog.Logger) (rest.Handlers, error) {
	bus := events.NewEventBus(lg)

	userRepo := userPostgres.NewUserRepository(gormDB)
	expenseRepo := expensePostgres.NewExpenseRepository(gormDB)
	ruleRepo := approvalPostgres.NewRuleRepository(gormDB)
	orgRepo := organizationPostgres.NewOrganizationRepository(gormDB)
	notificationRepo := notificationPostgres.NewNotificationRepository(gormDB)

	tokenGen := auth.NewJWTTokenGenerator(
		config.Security.AccessTokenSecret,
		config.Security.RefreshTokenSecret,
		config.Security.AccessTokenDuration,
		config.Security.RefreshTokenDuration,
	)
	authService := auth.NewService(userRepo, tokenGen)
	userService := user.NewService(userRepo, config.Security.BCryptCost, lg)
	orgService := organization.NewService(orgRepo, lg)

	approvalService := approval.NewService(expenseRepo, ruleRepo, userRepo, bus, lg)

	// The approval service doubles as the rule snapshot source at
	// submission time.
	expenseService := expense.NewService(expenseRepo, approvalService, bus, lg)

	notificationService := notification.NewService(notificationRepo, lg)
	notification.NewEventHandler(notificationService, lg).RegisterHandlers(bus)

	return rest.Handlers{
		Auth:         auth.NewHandler(authService),
		User:         user.NewHandler(userService),
		Expense:      expense.NewHandler(expenseService),
		Approval:     approval.NewHandler(approvalService),
		Organization: organization.NewHandler(orgService),
		Notification: notification.NewHandler(notificationService),
	}, nil
}

// initDB opens the pgx-backed sqlx pool used for health checks and raw SQL.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	if cfg.ConnMaxLifetime > 0 {
		dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm layers GORM on top of the already-open pgx pool so both share
// one set of connections.
func initGorm(db *sqlx.DB, cfg internal.DatabaseConfig) (*gorm.DB, error) {
	gormDB, err := gorm.Open(gormPostgres.New(gormPostgres.Config{
		Conn: db.DB,
	}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm connection: %w", err)
	}
	return gormDB, nil
}
