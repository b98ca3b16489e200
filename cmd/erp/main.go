// ERP 服务主程序
// 功能：商品与销售单资源的保存/列表/详情/删除接口
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	catalogapp "github.com/wyfcoding/erp/internal/catalog/application"
	catalogdomain "github.com/wyfcoding/erp/internal/catalog/domain"
	cataloghttp "github.com/wyfcoding/erp/internal/catalog/interfaces/http"
	salesapp "github.com/wyfcoding/erp/internal/sales/application"
	salesdomain "github.com/wyfcoding/erp/internal/sales/domain"
	"github.com/wyfcoding/erp/internal/sales/infrastructure/messaging"
	saleshttp "github.com/wyfcoding/erp/internal/sales/interfaces/http"
	"github.com/wyfcoding/erp/pkg/cache"
	"github.com/wyfcoding/erp/pkg/config"
	"github.com/wyfcoding/erp/pkg/db"
	"github.com/wyfcoding/erp/pkg/gormstore"
	"github.com/wyfcoding/erp/pkg/logger"
	"github.com/wyfcoding/erp/pkg/metrics"
	"github.com/wyfcoding/erp/pkg/middleware"
	"github.com/wyfcoding/erp/pkg/mq"
	"github.com/wyfcoding/erp/pkg/ratelimit"
)

var configPath = flag.String("config", "configs/erp/config.toml", "config file path")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	logger.Info(ctx, "Starting ERP service",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
	)

	database, err := db.Init(db.Config{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogEnabled:      cfg.Database.LogEnabled,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize database", "error", err)
	}
	defer database.Close()

	// 仅用于开发方便
	if cfg.Environment == "dev" {
		if err := database.AutoMigrate(
			&catalogdomain.ProductType{},
			&catalogdomain.Product{},
			&salesdomain.Consumer{},
			&salesdomain.User{},
			&salesdomain.SaleOrder{},
			&salesdomain.SaleOrderItem{},
		); err != nil {
			logger.Error(ctx, "Failed to migrate database", "error", err)
		}
	}

	var publisher salesdomain.EventPublisher
	if cfg.Kafka.Enabled {
		producer := mq.NewProducer(mq.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			MaxRetries:   cfg.Kafka.MaxRetries,
			RetryBackoff: cfg.Kafka.RetryBackoff,
		})
		defer producer.Close()
		publisher = messaging.NewKafkaPublisher(producer)
	}

	store := gormstore.New(database.DB)
	catalogService := catalogapp.NewCatalogApplicationService(store)
	salesService := salesapp.NewSalesApplicationService(store, publisher)

	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.GinLoggingMiddleware(),
		middleware.GinRecoveryMiddleware(),
		middleware.GinCORSMiddleware(),
	)

	if cfg.RateLimit.Enabled {
		redisCache, err := cache.New(cfg.Redis)
		if err != nil {
			logger.Fatal(ctx, "Failed to connect to Redis", "error", err)
		}
		defer redisCache.Close()
		limiter := ratelimit.NewRedisRateLimiter(redisCache.Client())
		router.Use(middleware.RateLimitMiddleware(limiter, cfg.RateLimit))
	}

	if cfg.Metrics.Enabled {
		m := metrics.New(cfg.ServiceName)
		if err := m.Register(); err != nil {
			logger.Fatal(ctx, "Failed to register metrics", "error", err)
		}
		router.Use(m.GinMiddleware())
		router.GET("/metrics", metrics.Handler())
	}

	api := router.Group("/api/v1")
	cataloghttp.NewHandler(catalogService).RegisterRoutes(api)
	saleshttp.NewHandler(salesService).RegisterRoutes(api)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   cfg.ServiceName,
			"timestamp": time.Now().Unix(),
		})
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info(ctx, "Starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "HTTP server error", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info(ctx, "Shutting down ERP service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "HTTP server shutdown error", "error", err)
	}

	logger.Info(ctx, "ERP service stopped")
}
