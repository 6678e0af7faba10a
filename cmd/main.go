package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stock_screener/internal/api"
	"stock_screener/internal/cache"
	"stock_screener/internal/config"
	"stock_screener/internal/service"
)

func main() {
	cfg, err := config.LoadConfig("./config/config.yaml")
	if err != nil {
		log.Fatalf("load config error: %v", err)
	}

	// 初始化日志
	logger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer func(logger *zap.Logger) {
		err := logger.Sync()
		if err != nil {

		}
	}(logger)
	logger.Info("配置加载成功")

	// 交易日时钟
	calendar, err := service.NewTradingCalendar(&cfg.Schedule)
	if err != nil {
		logger.Fatal("初始化交易日时钟失败", zap.Error(err))
	}

	// 当日缓存
	store := cache.NewStore(cfg.Cache.Dir, logger)

	// 行情客户端与选股服务
	client := service.NewEastmoneyClient(&cfg.Eastmoney)
	indicators := service.BuildIndicators(cfg.Indicators, client, logger)
	screener := service.NewScreener(client, store, calendar, &cfg.Screener, indicators, logger)
	logger.Info("选股服务初始化成功", zap.Int("indicators", len(indicators)))

	// 启动后台定时更新任务
	scheduler := service.NewScheduler(&cfg.Schedule, screener, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatal("启动定时任务失败", zap.Error(err))
	}

	// 设置 Gin 模式
	gin.SetMode(cfg.Server.Mode)

	// 创建 Gin 引擎
	r := gin.Default()

	// 创建 API 处理器
	handler := api.NewHandler(screener, store, calendar, cfg, logger)
	handler.RegisterRoutes(r)

	// 启动服务器
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		logger.Info("服务器启动", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("服务器启动失败", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("正在关闭服务器...")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("服务器强制关闭", zap.Error(err))
	}

	logger.Info("服务器已关闭")
}

// initLogger 初始化日志
func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	// 创建日志目录
	if err := os.MkdirAll("./logs", 0755); err != nil {
		return nil, err
	}

	// 配置日志
	zapCfg := zap.NewProductionConfig()
	zapCfg.OutputPaths = []string{
		"stdout",
	}
	if cfg.File != "" {
		zapCfg.OutputPaths = append(zapCfg.OutputPaths, cfg.File)
	}

	// 设置日志级别
	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return zapCfg.Build()
}
