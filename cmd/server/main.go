package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"clashsub/internal/auth"
	"clashsub/internal/fetch"
	"clashsub/internal/handler"
	"clashsub/internal/logger"
	"clashsub/internal/storage"
)

const defaultCacheTTL = 30 * time.Minute

func main() {
	logger.Init()
	logger.Info("订阅转换服务启动中")

	addr := getAddr()
	cacheTTL := getCacheTTL()

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}

	repo, err := storage.NewRepository(filepath.Join(dataDir, "clashsub.db"))
	if err != nil {
		logger.Error("数据库初始化失败", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	manager, err := auth.NewManager(os.Getenv("ADMIN_TOKEN"))
	if err != nil {
		logger.Error("管理令牌初始化失败", "error", err)
		os.Exit(1)
	}
	if !manager.Enabled() {
		logger.Warn("未配置 ADMIN_TOKEN, 管理接口不可用")
	}

	hub := handler.NewEventHub()
	defer hub.Close()

	mux := http.NewServeMux()
	mux.Handle("/sub", handler.NewConvertHandler(fetch.Subscription, repo, hub, cacheTTL))
	mux.Handle("/api/admin/history", auth.RequireAdmin(manager, handler.NewHistoryHandler(repo)))
	mux.Handle("/api/admin/events", auth.RequireAdmin(manager, handler.NewEventsHandler(hub)))
	mux.Handle("/healthz", handler.NewHealthHandler())

	allowedOrigins := getAllowedOrigins()
	handlerWithCORS := withCORS(mux, allowedOrigins)

	srv := &http.Server{
		Addr:              addr,
		Handler:           handlerWithCORS,
		ReadHeaderTimeout: 5 * time.Second,
	}

	sweeperCtx, stopSweeper := context.WithCancel(context.Background())
	go startCacheSweeper(sweeperCtx, repo, cacheTTL)

	go func() {
		logger.Info("HTTP服务器启动", "address", addr, "cache_ttl", cacheTTL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP服务器运行失败", "error", err)
			os.Exit(1)
		}
	}()

	waitForShutdown(srv, stopSweeper)
}

func getAddr() string {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	return ":" + port
}

func getCacheTTL() time.Duration {
	raw := os.Getenv("CACHE_TTL_MINUTES")
	if raw == "" {
		return defaultCacheTTL
	}

	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		logger.Warn("CACHE_TTL_MINUTES 无效, 使用默认值", "value", raw, "default", defaultCacheTTL)
		return defaultCacheTTL
	}
	return time.Duration(minutes) * time.Minute
}

// startCacheSweeper 定期清理过期的订阅缓存
func startCacheSweeper(ctx context.Context, repo *storage.Repository, ttl time.Duration) {
	if repo == nil || ttl <= 0 {
		return
	}

	ticker := time.NewTicker(ttl)
	defer ticker.Stop()

	logger.Info("[缓存清理] 定时清理任务已启动", "interval", ttl)

	for {
		select {
		case <-ctx.Done():
			logger.Info("[缓存清理] 定时清理任务已停止")
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			removed, err := repo.PruneCache(sweepCtx, ttl)
			cancel()

			if err != nil {
				logger.Warn("[缓存清理] 清理失败", "error", err)
				continue
			}
			if removed > 0 {
				logger.Info("[缓存清理] 清理完成", "removed", removed)
			}
		}
	}
}

func waitForShutdown(srv *http.Server, cancels ...context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("收到关闭信号，开始优雅关闭")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 停止所有后台任务
	for _, cancelFunc := range cancels {
		if cancelFunc != nil {
			cancelFunc()
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("优雅关闭失败", "error", err)
	} else {
		logger.Info("服务器已安全关闭")
	}
}
