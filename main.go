package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/girish1208dev/print-service/config"
	"github.com/girish1208dev/print-service/controllers"
	"github.com/girish1208dev/print-service/middleware"
	"github.com/girish1208dev/print-service/services"
	"github.com/girish1208dev/print-service/utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	config.SetupLogger(cfg)
	log.Info().Str("env", cfg.GoEnv).Msg("Starting Photo Print API server...")

	shutdownTracing, err := config.InitTracing(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tracing")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.ConnectDatabase(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	feed := newInsertFeed(ctx, cfg)
	defer feed.Close()

	remote, err := services.InitRemoteStore(config.GetDB(), feed)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}
	log.Info().Msg("Database migration completed successfully")

	localStore, err := services.OpenBoltStore(cfg.LocalCachePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open local cache")
	}
	defer localStore.Close()
	cache := services.NewOrderCache(localStore, cfg.LocalHistoryLimit)

	utils.UploadDir = cfg.UploadDir
	encoder, err := services.InitPreviewEncoder(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize preview storage")
	}

	dispatcher := newDispatcher(cfg)
	if closer, ok := dispatcher.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	authorizer, err := newAuthorizer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize admin authorization")
	}

	builder := services.NewOrderBuilder(encoder, services.WithPlaceholder(cfg.PlaceholderImageURL))
	reconciler := services.InitReconciliationService(cache, remote, cfg.RemoteTimeout)
	orderService := services.InitOrderService(builder, cache, reconciler, dispatcher, cfg.NotifyTimeout)
	services.InitAdminService(authorizer, remote, reconciler, cfg.RemoteTimeout)

	if report, err := orderService.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Startup reconciliation failed")
	} else if report.HasConflicts() {
		log.Warn().Int("conflicts", len(report.Conflicts)).Msg("Startup reconciliation found integrity conflicts")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("Server is running")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
	}

	orderService.Wait()
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		log.Warn().Err(err).Msg("Failed to flush traces")
	}
	log.Info().Msg("Server stopped")
}

// newRouter registers every route. Handlers use the initialized service instances.
func newRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AddAllowHeaders("Authorization", middleware.AdminSecretHeader)
	router.Use(cors.New(corsConfig))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/database/status", databaseStatus)

		v1.POST("/orders", controllers.CreateOrder)
		v1.GET("/orders/current", controllers.GetCurrentOrder)
		v1.GET("/orders/history", controllers.GetOrderHistory)

		v1.GET("/customer-info", controllers.GetCustomerInfo)
		v1.PUT("/customer-info", controllers.UpdateCustomerInfo)

		v1.GET("/uploads/:filename", controllers.GetUploadedImage)

		admin := v1.Group("/admin")
		{
			admin.GET("/orders", controllers.ListAdminOrders)
			admin.GET("/orders/stream", controllers.StreamOrders)
			admin.GET("/orders/:id/print", controllers.PrintOrder)
			admin.POST("/reconcile", controllers.ReconcileOrders)
		}
	}

	return router
}

// newInsertFeed uses Redis pub/sub when configured so every instance sees every insert
func newInsertFeed(ctx context.Context, cfg *config.Config) services.InsertFeed {
	if cfg.RedisAddr == "" {
		return services.NewMemoryFeed()
	}
	feed, err := services.NewRedisFeed(ctx, cfg.RedisAddr, cfg.InsertChannel)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, streaming inserts in-process only")
		return services.NewMemoryFeed()
	}
	log.Info().Str("addr", cfg.RedisAddr).Str("channel", cfg.InsertChannel).Msg("Redis insert feed connected")
	return feed
}

// newDispatcher publishes notifications to RabbitMQ when configured, otherwise logs them
func newDispatcher(cfg *config.Config) services.Dispatcher {
	if cfg.RabbitMQURL == "" {
		return services.LogDispatcher{Recipient: cfg.NotifyRecipient}
	}
	dispatcher, err := services.NewAMQPDispatcher(cfg.RabbitMQURL, cfg.NotifyQueue, cfg.NotifyRecipient)
	if err != nil {
		log.Warn().Err(err).Msg("RabbitMQ unavailable, notifications will only be logged")
		return services.LogDispatcher{Recipient: cfg.NotifyRecipient}
	}
	return dispatcher
}

// newAuthorizer accepts the shared admin secret, an Auth0 token, or either when both are configured
func newAuthorizer(cfg *config.Config) (services.Authorizer, error) {
	var authorizers services.AnyAuthorizer
	if cfg.AdminSecret != "" {
		authorizers = append(authorizers, services.NewSharedSecretAuthorizer(cfg.AdminSecret))
	}
	if cfg.UsesAuth0() {
		jwtAuthorizer, err := middleware.NewJWTAuthorizer(cfg)
		if err != nil {
			return nil, err
		}
		authorizers = append(authorizers, jwtAuthorizer)
	}
	return authorizers, nil
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Photo Print API is running",
	})
}

// databaseStatus checks remote store connectivity and the orders table
func databaseStatus(c *gin.Context) {
	reporter, ok := services.GetRemoteStore().(services.StatusReporter)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Database is not configured",
			},
		})
		return
	}

	status, err := reporter.Status(c.Request.Context())
	if err != nil {
		code, message := "DATABASE_QUERY_ERROR", "Failed to count orders"
		var remoteErr *services.RemoteFailure
		if errors.As(err, &remoteErr) && remoteErr.Op == "ping" {
			code, message = "DATABASE_CONNECTION_ERROR", "Database connection failed"
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    code,
				"message": message,
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connected",
		"data":    status,
	})
}
