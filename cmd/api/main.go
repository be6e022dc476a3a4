package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-routing/internal/api/http"
	"github.com/spec-kit/ticket-routing/internal/api/http/handlers"
	"github.com/spec-kit/ticket-routing/internal/auth"
	"github.com/spec-kit/ticket-routing/internal/bootstrap"
	"github.com/spec-kit/ticket-routing/internal/config"
	"github.com/spec-kit/ticket-routing/internal/observability"
	"github.com/spec-kit/ticket-routing/internal/service"
	"github.com/spec-kit/ticket-routing/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to start engine", zap.Error(err))
	}
	defer rt.Close()

	deps := rt.Deps
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(deps, tokens)
	ticketService := service.NewTicketService(deps)
	assignmentService := service.NewAssignmentService(deps)
	replyService := service.NewReplyService(deps)
	ratingService := service.NewRatingService(deps)
	agentService := service.NewAgentService(deps)

	notifications := service.NewNotificationService(rt.Dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(rt.Dispatcher, notifications, rt.Publisher)

	sweeper := worker.NewAssignmentSweeper(assignmentService, deps.Clock, cfg.Engine.FixAssignmentsInterval(), logger)
	sweeperDone := sweeper.Start(ctx)

	authMiddleware := auth.NewAuthMiddleware(tokens, deps.Repos.Customers, deps.Repos.Agents)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, rt.Metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, rt.Postgres, rt.Redis),
		Users:          handlers.NewUsersHandler(authService),
		Staff:          handlers.NewStaffHandler(authService, agentService, ratingService, rt.Metrics),
		Tickets:        handlers.NewTicketsHandler(ticketService, replyService, ratingService),
		StaffTickets:   handlers.NewStaffTicketsHandler(assignmentService, agentService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	<-sweeperDone
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
