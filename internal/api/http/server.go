package http

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/service-portal/internal/api/http/handlers"
	"github.com/spec-kit/service-portal/internal/auth"
	"github.com/spec-kit/service-portal/internal/config"
	"github.com/spec-kit/service-portal/internal/domain"
	"github.com/spec-kit/service-portal/internal/events"
	"github.com/spec-kit/service-portal/internal/observability"
	"github.com/spec-kit/service-portal/internal/repository"
	"github.com/spec-kit/service-portal/internal/service"
)

// ServerDependencies bundles everything the HTTP application needs.
type ServerDependencies struct {
	Config       *config.Config
	Logger       *zap.Logger
	Metrics      *observability.Metrics
	Users        repository.UserRepository
	Outlets      repository.OutletRepository
	Entities     repository.EntityRepository
	Sequence     service.SequenceSource
	Attachments  service.AttachmentStore
	Dispatcher   events.Dispatcher
	HealthChecks map[string]handlers.Pinger
}

// Server is the assembled HTTP application with its services.
type Server struct {
	App    *fiber.App
	Auth   *service.AuthService
	Portal *service.PortalService
}

// NewServer builds services, handlers, middlewares and routes.
func NewServer(deps ServerDependencies) *Server {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(cfg.Auth, deps.Users, tokens)
	outletService := service.NewOutletService(deps.Outlets)
	portal := service.NewPortalService(service.PortalDependencies{
		EntityRepo:  deps.Entities,
		OutletRepo:  deps.Outlets,
		Attachments: deps.Attachments,
		DisplayIDs:  service.NewDisplayIDs(deps.Sequence, logger),
		Dispatcher:  deps.Dispatcher,
		Logger:      logger,
	})

	bodyLimit := 4 << 20
	if cfg.Storage.MaxFileBytes > 0 {
		bodyLimit = int(cfg.Storage.MaxFileBytes)*domain.MaxCreateImages + 1<<20
	}
	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
	})
	RegisterMiddlewares(app, logger, deps.Metrics, cfg.App.RequestTimeout())

	paging := handlers.Paging{DefaultLimit: cfg.App.DefaultPageSize, MaxLimit: cfg.App.MaxPageSize}
	routes := RouteConfig{
		Health:          handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps.HealthChecks),
		Auth:            handlers.NewAuthHandler(authService),
		Outlets:         handlers.NewOutletsHandler(outletService),
		Tickets:         handlers.NewEntitiesHandler(domain.KindTicket, portal, paging, cfg.Storage.MaxFileBytes),
		ServiceRequests: handlers.NewEntitiesHandler(domain.KindServiceRequest, portal, paging, cfg.Storage.MaxFileBytes),
		AuthMiddleware:  auth.NewAuthMiddleware(tokens, deps.Users),
		UploadDir:       cfg.Storage.UploadDir,
		UploadPrefix:    cfg.Storage.PublicPrefix,
	}
	if deps.Metrics != nil {
		routes.Metrics = deps.Metrics.Handler()
	}
	RegisterRoutes(app, routes)

	return &Server{App: app, Auth: authService, Portal: portal}
}
