package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"pulselink/internal/config"
	"pulselink/internal/logger"
	"pulselink/internal/service"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化Logger
	zapLogger, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "pulselink")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting pulselink service",
		zap.String("osc_target", cfg.OSC.TargetIP),
		zap.Int("osc_port", cfg.OSC.Port),
		zap.Int("websocket_port", cfg.Websocket.Port),
	)

	// 创建服务
	bridgeService, err := service.NewBridgeService(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create bridge service", zap.Error(err))
	}

	// 启动服务
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := bridgeService.Start(ctx); err != nil {
		zapLogger.Fatal("Failed to start bridge service", zap.Error(err))
	}

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	zapLogger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	// 优雅关闭
	cancel()
	if err := bridgeService.Stop(ctx); err != nil {
		zapLogger.Error("Error during shutdown", zap.Error(err))
	}

	zapLogger.Info("Service stopped")
}
