// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "vitamora/docs" // swagger docs
	"vitamora/internal/cache"
	"vitamora/internal/config"
	"vitamora/internal/database"
	"vitamora/internal/middleware"
	"vitamora/internal/models"
	"vitamora/internal/realtime"
	"vitamora/internal/repository"
	"vitamora/internal/service"
	"vitamora/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// realtimeTables are the tables the hub relays to websocket clients.
var realtimeTables = []string{
	models.TablePosts,
	models.TableLikes,
	models.TableComments,
	models.TableProfiles,
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	limiter        *middleware.Limiter
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	broker realtime.Broker
	hub    *realtime.Hub
	store  *storage.LocalStore

	authService    *service.AuthService
	postService    *service.PostService
	commentService *service.CommentService
	profileService *service.ProfileService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg, middleware.Logger)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Without Redis, realtime changes stay in process and tokens cannot be revoked.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	likeRepo := repository.NewLikeRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	profileRepo := repository.NewProfileRepository(db)

	var broker realtime.Broker
	if redisClient != nil {
		broker = realtime.NewRedisBroker(redisClient)
	} else {
		broker = realtime.NewMemoryBroker()
	}

	store := storage.NewLocalStore(cfg.StorageDir, cfg.StoragePublicURL)
	uploader := storage.NewUploader(store, cfg.MaxUploadBytes())
	tokens := service.NewTokenIssuer(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("vitamora-api"),
		limiter:        middleware.NewLimiter(redisClient, cfg.IsProduction()),
		shutdownCtx:    ctx,
		shutdownFn:     cancel,
		broker:         broker,
		hub:            realtime.NewHub(),
		store:          store,
		authService:    service.NewAuthService(userRepo, profileRepo, tokens, redisClient),
		postService:    service.NewPostService(postRepo, likeRepo, profileRepo, uploader, broker),
		commentService: service.NewCommentService(commentRepo, postRepo, broker),
		profileService: service.NewProfileService(profileRepo, uploader, broker),
	}

	if err := s.hub.Attach(ctx, broker, realtimeTables...); err != nil {
		cancel()
		return nil, fmt.Errorf("realtime hub wiring failed: %w", err)
	}
	return s, nil
}

// Broker returns the realtime broker every write publishes to.
func (s *Server) Broker() realtime.Broker { return s.broker }

// RealtimeClients reports how many websocket clients are connected.
func (s *Server) RealtimeClients() int { return s.hub.Len() }

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Resource policy is relaxed so stored images can be embedded cross-origin.
	app.Use(helmet.New(helmet.Config{CrossOriginResourcePolicy: "cross-origin"}))
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so error responses still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	if s.config.IsProduction() {
		app.Use(limiter.New(limiter.Config{
			Max:        300,
			Expiration: time.Minute,
			Next: func(c *fiber.Ctx) bool {
				return c.Method() == fiber.MethodOptions
			},
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error": "Too many requests, please try again later.",
				})
			},
		}))
	}
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	app.Static("/storage/v1/object/public", s.store.Root(), fiber.Static{
		Browse:        false,
		CacheDuration: time.Hour,
	})

	api := app.Group("/api")
	api.Get("/swagger/*", swagger.HandlerDefault)

	// Auth is attached per route. A Group with handlers would register a Use
	// on its prefix and catch the public routes that follow.
	requireAuth := s.AuthRequired()

	auth := api.Group("/auth")
	auth.Post("/signup", s.limiter.Handler("signup", 5, 10*time.Minute, middleware.FailOpen), s.Signup)
	auth.Post("/login", s.limiter.Handler("login", 10, 5*time.Minute, middleware.FailOpen), s.Login)
	auth.Post("/refresh", s.Refresh)
	auth.Post("/logout", requireAuth, s.Logout)
	api.Get("/session", requireAuth, s.GetSession)

	// Reads are public; a bearer token, when present, personalizes the liked flag.
	// Specific /:id/:resource routes before the generic /:id route.
	posts := api.Group("/posts")
	posts.Get("/", s.GetPosts)
	posts.Post("/", requireAuth, s.limiter.Handler("create_post", 10, time.Minute, middleware.FailOpen), s.CreatePost)
	posts.Get("/:id/like", s.GetLike)
	posts.Put("/:id/like", requireAuth, s.LikePost)
	posts.Delete("/:id/like", requireAuth, s.UnlikePost)
	posts.Post("/:id/recount", requireAuth, s.RecountPost)
	posts.Get("/:id/comments", s.GetComments)
	posts.Post("/:id/comments", requireAuth, s.limiter.Handler("create_comment", 20, time.Minute, middleware.FailOpen), s.CreateComment)
	posts.Delete("/:id/comments/:commentId", requireAuth, s.DeleteComment)
	posts.Get("/:id", s.GetPost)
	posts.Delete("/:id", requireAuth, s.DeletePost)

	profiles := api.Group("/profiles")
	profiles.Get("/me", requireAuth, s.GetMyProfile)
	profiles.Put("/me", requireAuth, s.UpdateMyProfile)
	profiles.Post("/me/image", requireAuth, s.UploadProfileImage)
	profiles.Get("/:id", s.GetProfile)

	api.Get("/ws/realtime", s.RealtimeUpgrade(), s.RealtimeHandler())
}

// App builds the Fiber app with middleware and routes, without listening.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:   "Vitamora API",
		BodyLimit: int(s.config.MaxUploadBytes()) + 1024*1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return models.RespondWithError(c, fe.Code, &models.AppError{Code: codeForStatus(fe.Code), Message: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// Start starts the server
func (s *Server) Start() error {
	app := s.App()
	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", "error", err)
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down hub", "hub", s.hub.Name(), "error", err)
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", "error", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", "error", rerr)
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}

// LivenessCheck reports that the process is up
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports whether the database and Redis are reachable. Redis is optional: without it
// the server runs degraded (in-process realtime, no revocation) but is ready.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
			"realtime": s.hub.Len(),
		},
		"time": time.Now(),
	})
}
