package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mailflow/backend/internal/bootstrap"
	"mailflow/backend/internal/config"
	"mailflow/backend/internal/health"
	"mailflow/backend/internal/logger"
	"mailflow/backend/internal/monitoring"
	"mailflow/backend/internal/service"
	httptransport "mailflow/backend/internal/transport/http"
)

// main 启动 HTTP API 与后台定时任务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	log, err := logger.New(logger.FromConfig(cfg.Log))
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting mailflow server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
		zap.String("mail_backend", cfg.Mail.Backend),
	)

	app, err := bootstrap.New(cfg, log, nil)
	if err != nil {
		log.Fatal("failed to initialize application", zap.Error(err))
	}
	defer app.Close()

	// 健康检查
	healthChecker := health.NewHealthChecker(app.Store.Health, log)
	for name, p := range app.Pingers {
		healthChecker.AddReadinessPinger(name, p)
	}

	// 告警
	alertManager := monitoring.NewAlertManager(log)
	alertManager.AddReceiver(monitoring.NewLogAlertReceiver(log))
	alertManager.AddRule(monitoring.StoreUnavailableRule(app.Store.Health))
	alertManager.AddRule(monitoring.DeliveryFailureRule(app.Metrics, 0.5, 20))

	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:      cfg,
		AuthService: app.Auth,
		Clients:     app.Clients,
		Messages:    app.Messages,
		Mailings:    app.Mailings,
		Sender:      app.Sender,
		Stats:       app.Stats,
		Admin:       app.Admin,
		Metrics:     app.Metrics,
		Health:      healthChecker,
		Logger:      log,
	})

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		// 发送请求在处理器内同步执行完整轮次
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	group.Go(func() error {
		runSweeper(groupCtx, app.Mailings, cfg.Scheduler.SweepInterval, log)
		return nil
	})

	group.Go(func() error {
		app.Metrics.CollectPools(groupCtx, 15*time.Second, app.Pools)
		return nil
	})

	group.Go(func() error {
		log.Info("starting alert monitoring")
		alertManager.StartMonitoring(groupCtx, time.Minute)
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("server error", zap.Error(err))
	}
	log.Info("server exited cleanly")
}

// runSweeper 定时把已过结束时间的群发标记为 finished
func runSweeper(ctx context.Context, mailings *service.MailingService, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info("starting expired mailing sweeper", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			log.Info("expired mailing sweeper stopped")
			return
		case <-ticker.C:
			count, err := mailings.FinalizeExpired(ctx)
			if err != nil {
				log.Error("failed to finalize expired mailings", zap.Error(err))
			} else if count > 0 {
				log.Info("expired mailings finalized", zap.Int("count", count))
			}
		}
	}
}
