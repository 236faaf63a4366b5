package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"paygate/internal/config"
	"paygate/internal/metrics"
	"paygate/pkg/gateway"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	metricsService := metrics.NewService()
	client := gateway.NewClient(cfg.ToGatewayConfig(), logger,
		gateway.WithMetrics(metricsService))

	// Echo proves the key pair and merchant id before taking traffic.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := client.Echo(ctx); err != nil {
		cancel()
		logger.Fatal("gateway echo failed", zap.Error(err))
	}
	cancel()
	logger.Info("gateway echo ok", zap.String("merchant_id", cfg.Gateway.MerchantID))

	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	returnHandler := gateway.ReturnHandler(client, logger,
		func(c *gin.Context, resp *gateway.PaymentResponse) {
			metricsService.RecordReturnRedirect("ok")
			c.JSON(http.StatusOK, gin.H{
				"payId":         resp.PayID,
				"resultCode":    resp.ResultCode,
				"paymentStatus": gateway.StatusText(resp.PaymentStatus),
			})
		})
	router.GET("/payment/return", returnHandler)
	router.POST("/payment/return", returnHandler)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}

func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Encoding != "" {
		zapCfg.Encoding = cfg.Encoding
	}
	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zapCfg.Build()
}
