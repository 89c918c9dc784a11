package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bitwise74/smart-librarian/app"
	"bitwise74/smart-librarian/config"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Setup()
	if err != nil {
		if errors.Is(err, config.ErrMissingJWTSecret) {
			fmt.Printf("jwt.secret is not set. Here is a freshly generated one:\n\n%s\n", config.GenSecret())
			os.Exit(1)
		}

		panic(err)
	}

	if err := app.MakeLogger(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic(err)
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, closeDeps, err := app.NewDeps(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer closeDeps()

	store, err := app.NewCacheStore(cfg.Cache)
	if err != nil {
		zap.L().Fatal("Failed to initialize cache", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Host.Port),
		Handler:           app.NewRouter(d, store),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zap.L().Info("Server starting", zap.Int("port", cfg.Host.Port), zap.Bool("ssl", cfg.Host.SSL.Enabled))

		var err error
		if cfg.Host.SSL.Enabled {
			err = srv.ListenAndServeTLS(cfg.Host.SSL.CertificatePath, cfg.Host.SSL.CertificateKeyPath)
		} else {
			err = srv.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zap.L().Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("Forced shutdown", zap.Error(err))
	}
}
