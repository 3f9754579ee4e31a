package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "orderflow/api/swagger" // swagger docs
	"orderflow/internal/changefeed"
	"orderflow/internal/config"
	"orderflow/internal/database"
	"orderflow/internal/events"
	"orderflow/internal/fulfillment"
	"orderflow/internal/handler"
	"orderflow/internal/logger"
	"orderflow/internal/middleware"
	"orderflow/internal/repository"
	"orderflow/internal/service"
	"orderflow/internal/stock"
	"orderflow/internal/websocket"
	"orderflow/pkg/pagination"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           Order Fulfillment API
// @version         1.0
// @description     Order lifecycle, warehouse custody and stock ledger for sales and warehouse staff.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	gin.SetMode(cfg.Server.Mode)

	db, err := database.NewConnection(cfg.Database.DSN(), database.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, zapLogger)
	if err != nil {
		zapLogger.Fatal("Database connection failed", zap.Error(err))
	}
	zapLogger.Info("Connected to PostgreSQL")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var rdb *redis.Client
	if cfg.NeedsRedis() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			zapLogger.Fatal("Redis connection failed", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		defer func() { _ = rdb.Close() }()
	}

	// Repositories
	orderRepo := repository.NewOrderRepository(db)
	staffRepo := repository.NewStaffRepository(db)
	stockRepo := repository.NewStockRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	txManager := repository.NewTransactionManager(db)

	var feed changefeed.Feed = changefeed.NewLocalFeed()
	if cfg.ChangeFeed.Backend == config.BackendRedis {
		feed = changefeed.NewRedisFeed(rdb, cfg.ChangeFeed.Channel, zapLogger)
	}

	var ledger stock.Ledger = stock.NewSQLLedger(stockRepo, txManager)
	if cfg.Stock.Backend == config.BackendRedis {
		redisLedger := stock.NewRedisLedger(rdb)
		seeded, err := primeLedger(ctx, stockRepo, redisLedger)
		if err != nil {
			zapLogger.Fatal("Failed to prime stock counters", zap.Error(err))
		}
		zapLogger.Info("Primed stock counters", zap.Int("seeded", seeded))
		ledger = redisLedger
	}

	var publisher events.Publisher = events.Noop{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		zapLogger.Info("Publishing order events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	defer func() { _ = publisher.Close() }()

	// Live updates
	views := service.NewViewService(staffRepo)
	bridge := service.NewBridge(orderRepo, feed, cfg.Subscription.Debounce, zapLogger)
	secret := []byte(cfg.JWT.Secret)
	wsHub := websocket.NewHub(secret, views, bridge, cfg.Server.CORSOrigins, zapLogger)
	go wsHub.Run(ctx)

	// Services
	notifier := service.NewNotifier(feed, publisher, wsHub, zapLogger)
	workflow := service.NewWorkflow(orderRepo, auditRepo, txManager, views, notifier, zapLogger)
	executor := fulfillment.NewExecutor(txManager, orderRepo, stockRepo, auditRepo, ledger, zapLogger)
	orderService := service.NewOrderService(workflow, executor)
	assignmentService := service.NewAssignmentService(workflow, staffRepo)
	stockService := service.NewStockService(stockRepo, auditRepo, txManager, ledger, notifier, zapLogger)
	staffService := service.NewStaffService(staffRepo, zapLogger)
	auditService := service.NewAuditService(auditRepo)

	// Handlers
	orderHandler := handler.NewOrderHandler(orderService, assignmentService)
	stockHandler := handler.NewStockHandler(stockService)
	staffHandler := handler.NewStaffHandler(staffService)
	auditHandler := handler.NewAuditHandler(auditService)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(zapLogger))
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/ws"})))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Request-ID"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	router.GET("/ws", wsHub.ServeWs)
	router.GET("/ws/orders", wsHub.ServeOrders)

	api := router.Group("")
	api.Use(middleware.Authenticate(secret))
	orderHandler.RegisterRoutes(api)
	stockHandler.RegisterRoutes(api)
	staffHandler.RegisterRoutes(api)
	auditHandler.RegisterRoutes(api)

	srv := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		// websocket connections manage their own write deadlines
		WriteTimeout: 0,
	}

	go func() {
		zapLogger.Info("Server starting", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	stop()

	zapLogger.Info("Server exited")
}

// primeLedger creates redis counters for stock levels that have none yet
func primeLedger(ctx context.Context, stockRepo repository.StockRepository, seeder stock.Seeder) (int, error) {
	seeded := 0
	for page := 1; ; page++ {
		levels, total, err := stockRepo.List(ctx, "", page, pagination.MaxLimit)
		if err != nil {
			return seeded, err
		}
		n, err := stock.Prime(ctx, seeder, levels)
		seeded += n
		if err != nil {
			return seeded, err
		}
		if int64(page*pagination.MaxLimit) >= total {
			return seeded, nil
		}
	}
}
