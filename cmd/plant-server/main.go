package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"plant-config/internal/catalog"
	"plant-config/internal/config"
	"plant-config/internal/configio"
	"plant-config/internal/event"
	"plant-config/internal/handlers"
	"plant-config/internal/journal"
	"plant-config/internal/model"
	"plant-config/internal/store"
	"plant-config/internal/web"
)

// main 是应用程序的主入口
func main() {
	configPath := flag.String("config", "", "配置文件路径，默认查找当前目录的 config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("加载配置失败", "error", err)
		os.Exit(1)
	}

	// 1. 初始化核心组件
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		logger.Error("无法打开数据库", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	st, err := store.New(ctx, db)
	if err != nil {
		logger.Error("初始化数据库失败", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	var jr *journal.Journal
	if cfg.JournalPath != "" {
		jr, err = journal.Open(cfg.JournalPath)
		if err != nil {
			logger.Error("无法打开变更日志", "path", cfg.JournalPath, "error", err)
			os.Exit(1)
		}
		defer jr.Close()
	}

	hub := web.NewHub(logger)
	go hub.Run(ctx)
	tracker := web.NewLineTracker(hub)

	eventBus := event.NewBus()

	// 2. 注册事件处理器
	handlers.RegisterEventHandlers(eventBus, tracker, jr, logger)

	// 3. 用已存在的产线初始化 UI 状态
	lines, err := st.ListLines(ctx)
	if err != nil {
		logger.Error("读取产线列表失败", "error", err)
		os.Exit(1)
	}
	tracker.Seed(lines)
	if jr != nil {
		reconcileJournal(jr, lines, logger)
	}

	api := web.NewAPI(web.API{
		Service:        configio.NewService(st, eventBus, logger),
		Catalog:        catalog.New(st, eventBus, logger),
		Store:          st,
		Hub:            hub,
		Tracker:        tracker,
		MaxUploadBytes: cfg.MaxUploadBytes,
		StaticDir:      cfg.StaticDir,
		Logger:         logger,
	})
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("=== 产线配置服务启动 ===", "addr", cfg.ListenAddr, "database", cfg.DatabasePath, "lines", len(lines))
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("API 服务器启动失败", "error", err)
			cancel()
		}
	}()

	// 4. 优雅停机
	waitForShutdown(ctx, logger, cancel, srv, eventBus)
}

// reconcileJournal 比对变更日志与数据库，只记录不一致，不做修复
func reconcileJournal(jr *journal.Journal, lines []model.ProductionLine, logger *slog.Logger) {
	live, err := jr.LiveLines()
	if err != nil {
		logger.Warn("读取变更日志失败", "error", err)
		return
	}
	stored := make(map[string]bool, len(lines))
	for _, l := range lines {
		stored[l.ID] = true
	}
	for _, id := range live {
		if !stored[id] {
			logger.Warn("变更日志中的产线不在数据库中", "line_id", id)
		}
	}
}

// waitForShutdown 等待系统信号以实现优雅停机
func waitForShutdown(ctx context.Context, logger *slog.Logger, cancel context.CancelFunc, srv *http.Server, bus *event.Bus) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
		logger.Info("接收到停机信号，正在优雅关闭...")
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("关闭 HTTP 服务器超时", "error", err)
	}
	cancel()
	bus.Wait()
	logger.Info("产线配置服务已安全退出。")
}
