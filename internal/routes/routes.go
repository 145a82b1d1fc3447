package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fitlink-platform/fitlink-backend/internal/config"
	"github.com/fitlink-platform/fitlink-backend/internal/handlers"
	"github.com/fitlink-platform/fitlink-backend/internal/middleware"
	"github.com/fitlink-platform/fitlink-backend/internal/repository"
	"github.com/fitlink-platform/fitlink-backend/internal/services"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool) error {
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	requestRepo := repository.NewChangeRequestRepository(db)
	packageRepo := repository.NewPackageRepository(db)
	entitlementRepo := repository.NewEntitlementRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	notificationService := services.NewNotificationService(notificationRepo, cfg.NotificationLimit)
	sessionService := services.NewSessionService(sessionRepo)
	requestService := services.NewRequestService(db, sessionRepo, requestRepo, notificationService)
	packageService := services.NewPackageService(packageRepo, entitlementRepo)
	entitlementService := services.NewEntitlementService(
		entitlementRepo,
		packageRepo,
		userRepo,
		transactionRepo,
	)
	transactionService := services.NewTransactionService(
		db,
		transactionRepo,
		packageRepo,
		userRepo,
		notificationService,
		cfg.PaymentMethodTag,
	)

	authHandler := handlers.NewAuthHandler(userRepo, cfg.JWTSecret)
	sessionHandler := handlers.NewSessionHandler(sessionService)
	requestHandler := handlers.NewRequestHandler(requestService)
	packageHandler := handlers.NewPackageHandler(packageService)
	entitlementHandler := handlers.NewEntitlementHandler(entitlementService)
	transactionHandler := handlers.NewTransactionHandler(transactionService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	sessions := authProtected.Group("/sessions")
	sessions.Get("", sessionHandler.ListSessions)
	sessions.Post("/conflict-check", sessionHandler.CheckConflict)
	sessions.Get("/requests/pending", requestHandler.ListPending)
	sessions.Post("/requests/change", requestHandler.SubmitChange)
	sessions.Post("/requests/absent", requestHandler.SubmitAbsent)
	sessions.Post("/requests/approve", requestHandler.Approve)
	sessions.Post("/requests/reject", requestHandler.Reject)
	sessions.Get("/:id", sessionHandler.GetSession)

	packages := authProtected.Group("/packages")
	packages.Post("", packageHandler.CreatePackage)
	packages.Get("", packageHandler.ListMyPackages)
	packages.Get("/trainer/:id", packageHandler.ListTrainerPackages)
	packages.Get("/:id", packageHandler.GetPackage)
	packages.Put("/:id", packageHandler.UpdatePackage)
	packages.Post("/:id/deactivate", packageHandler.DeactivatePackage)
	packages.Delete("/:id", packageHandler.DeletePackage)

	transactions := authProtected.Group("/transactions")
	transactions.Post("", transactionHandler.InitiateTransaction)
	transactions.Get("/:id", transactionHandler.GetTransaction)
	transactions.Post("/:id/complete", transactionHandler.CompleteTransaction)

	authProtected.Get("/dashboard/stats", entitlementHandler.DashboardStats)

	entitlements := authProtected.Group("/entitlements")
	entitlements.Post("", entitlementHandler.CreateEntitlement)
	entitlements.Get("/mine", entitlementHandler.ListMyEntitlements)
	entitlements.Get("/students", entitlementHandler.ListMyStudents)
	entitlements.Get("/trainers", entitlementHandler.ListMyTrainers)
	entitlements.Get("/:id", entitlementHandler.GetEntitlement)
	entitlements.Patch("/:id", entitlementHandler.AdjustEntitlement)

	notifications := authProtected.Group("/notifications")
	notifications.Get("", notificationHandler.ListNotifications)
	notifications.Post("/read-all", notificationHandler.MarkAllNotificationsRead)
	notifications.Post("/:id/read", notificationHandler.MarkNotificationRead)

	return registerDocsRoutes(app, cfg)
}
