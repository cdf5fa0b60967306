package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shwanortho/site/internal/app"
	"github.com/shwanortho/site/internal/config"
	"github.com/shwanortho/site/internal/logger"
	"github.com/shwanortho/site/internal/router"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New(logger.Config{})
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("server stopped")
		stop()
		os.Exit(1)
	}
}

// run 启动 HTTP 服务，ctx 结束时优雅关闭
func run(ctx context.Context, cfg config.AppConfig, log zerolog.Logger) error {
	// 初始化数据库与内容存储
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	defer a.Close()

	// 存储变更时清空字典缓存，进程退出时随 ctx 释放订阅
	if _, err := a.Content.Watch(ctx); err != nil {
		log.Warn().Err(err).Msg("content change feed unavailable, relying on cache ttl")
	}

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(a.API(), router.Options{
		SessionSecret: cfg.SessionSecret,
		TemplateDir:   cfg.TemplateDir,
		StaticDir:     cfg.StaticDir,
		Logger:        logger.Component(log, "http"),
	})

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddr, err)
	}
	srv := &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Str("store", cfg.StoreDriver).Msg("server listening")
		serveErr <- srv.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
