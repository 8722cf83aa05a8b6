package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/orderline/orders-bff/internal/api/http"
	"github.com/orderline/orders-bff/internal/api/http/handlers"
	"github.com/orderline/orders-bff/internal/auth"
	"github.com/orderline/orders-bff/internal/config"
	"github.com/orderline/orders-bff/internal/crm"
	"github.com/orderline/orders-bff/internal/events"
	"github.com/orderline/orders-bff/internal/lifecycle"
	"github.com/orderline/orders-bff/internal/observability"
	"github.com/orderline/orders-bff/internal/payment"
	"github.com/orderline/orders-bff/internal/persistence"
	"github.com/orderline/orders-bff/internal/report"
	"github.com/orderline/orders-bff/internal/scope"
	"github.com/orderline/orders-bff/internal/service"
	"github.com/orderline/orders-bff/internal/worker"
)

const bodyLimit = 32 << 20

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "orders-bff",
		Short:        "Role-scoped order API over the HighLevel CRM",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCommand(), newHyperlinkCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func newHyperlinkCommand() *cobra.Command {
	var email, phone, opportunityID string
	cmd := &cobra.Command{
		Use:   "hyperlink",
		Short: "Print a 24h access link to one opportunity for a contact",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			gateway := newGateway(cfg, logger)
			authService := service.NewAuthService(*cfg, service.AuthDependencies{
				Directory:     gateway,
				Opportunities: gateway,
				Filter:        scope.NewFilter(cfg.CRM),
				Logger:        logger,
			})
			link, err := authService.Hyperlink(cmd.Context(), service.Credentials{Email: email, Phone: phone}, opportunityID)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), link)
			return err
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "contact email")
	cmd.Flags().StringVar(&phone, "phone", "", "contact phone")
	cmd.Flags().StringVar(&opportunityID, "opportunity", "", "opportunity id the link grants access to")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("phone")
	_ = cmd.MarkFlagRequired("opportunity")
	return cmd
}

func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init logger: %w", err)
	}
	return cfg, logger, nil
}

func newGateway(cfg *config.Config, logger *zap.Logger) *crm.Gateway {
	client := crm.NewClient(cfg.HighLevel.BaseURL, cfg.HighLevel.Token, cfg.HighLevel.Version, cfg.HighLevel.Timeout())
	return crm.NewGateway(client, crm.GatewayConfig{
		LocationID: cfg.HighLevel.LocationID,
		PipelineID: cfg.HighLevel.PipelineID,
		PublicURL:  cfg.App.PublicURL,
	}, logger)
}

func serve(parent context.Context, cfg *config.Config, logger *zap.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	if cfg.HighLevel.Token == "" || cfg.HighLevel.LocationID == "" {
		logger.Warn("HIGHLEVEL_TOKEN_API or HIGHLEVEL_LOCATION_ID not set; CRM calls will fail")
	}

	engine, err := lifecycle.NewEngine(cfg.CRM)
	if err != nil {
		return fmt.Errorf("invalid crm table: %w", err)
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()
	store := redis.CacheStore()

	gateway := newGateway(cfg, logger)
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	notifier := worker.NewNotificationWorker(service.NewNotificationService(logger, cfg.Notification), logger, 0)
	worker.StartNotificationWorker(ctx, dispatcher, notifier)

	filter := scope.NewFilter(cfg.CRM)
	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		Directory:     gateway,
		Opportunities: gateway,
		Filter:        filter,
		Cache:         store,
		Logger:        logger,
	})
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), authService)

	opportunityService := service.NewOpportunityService(service.OpportunityDependencies{
		Gateway:     gateway,
		Table:       cfg.CRM,
		Engine:      engine,
		Filter:      filter,
		Dispatcher:  dispatcher,
		Cache:       store,
		CachePrefix: cfg.App.Name + ":",
		PipelineTTL: cfg.Cache.PipelineTTL(),
		Logger:      logger,
	})
	reportService := service.NewReportService(
		gateway,
		cfg.CRM,
		report.NewBuilder(cfg.CRM, payment.NewCalculator(cfg.CRM)),
		dispatcher,
		logger,
	)

	var readiness handlers.Pinger
	if store != nil {
		readiness = redis
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readiness, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Opportunities:  handlers.NewOpportunitiesHandler(opportunityService),
		Admin:          handlers.NewAdminHandler(reportService),
		AuthMiddleware: authMiddleware,
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	select {
	case err := <-listenErr:
		cancel()
		notifier.Wait()
		return fmt.Errorf("fiber listen: %w", err)
	case <-waitForShutdown(ctx, logger):
	}

	shutdownErr := app.ShutdownWithTimeout(10 * time.Second)
	cancel()
	notifier.Wait()
	return shutdownErr
}

func waitForShutdown(ctx context.Context, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			logger.Info("shutting down", zap.String("signal", sig.String()))
		case <-ctx.Done():
		}
	}()
	return done
}
