package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"vital-monitor/common/logger"
	"vital-monitor/internal/app"
	"vital-monitor/internal/config"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// 0. 本地开发时从 .env 加载环境变量（文件不存在时忽略）
	_ = godotenv.Load()

	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "vital-monitor")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	// 3. 创建上下文（支持优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. 创建服务
	application, err := app.NewApp(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to create vital monitor",
			zap.Error(err),
		)
	}

	// 5. 等待信号（优雅关闭）
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := runUntilSignal(ctx, cancel, application, sigChan, log); err != nil {
		log.Error("Service error",
			zap.Error(err),
		)
		_ = log.Sync()
		os.Exit(1)
	}

	log.Info("Vital monitor stopped")
}

// service 可启动/停止的服务（*app.App 实现）
type service interface {
	Start(ctx context.Context) error
	Stop() error
}

// runUntilSignal 启动服务，收到信号或服务退出后取消 ctx，
// 等待 Start 返回（正在处理的批次完成）后才调用 Stop 关闭连接
func runUntilSignal(ctx context.Context, cancel context.CancelFunc, svc service, sigChan <-chan os.Signal, log *zap.Logger) error {
	serviceDone := make(chan error, 1)
	go func() {
		serviceDone <- svc.Start(ctx)
	}()

	var serviceErr error
	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down",
			zap.String("signal", sig.String()),
		)
		cancel()
		serviceErr = <-serviceDone
	case serviceErr = <-serviceDone:
		cancel()
	}

	if err := svc.Stop(); err != nil {
		log.Error("Failed to stop service", zap.Error(err))
	}
	return serviceErr
}
