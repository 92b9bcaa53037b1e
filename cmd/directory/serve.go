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

	"business-directory/internal/api"
	"business-directory/internal/common/config"
	"business-directory/internal/common/database"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the metrics server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a := newApp(cfg)
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, images, err := a.directory(ctx)
	if err != nil {
		return err
	}
	authn, issuer, err := a.authenticator()
	if err != nil {
		return err
	}

	opts := api.Options{
		Directory:     svc,
		Authenticator: authn,
		Users:         cfg.Auth.Users,
		Media:         images,
		Health:        a.pingers(),
		Logger:        a.logger,
		Mode:          cfg.HTTP.GinMode,
	}
	if issuer != nil {
		opts.Issuer = issuer
	}

	apiServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      api.New(opts).Handler(),
		ReadTimeout:  config.GetDuration(cfg.HTTP.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.HTTP.WriteTimeout),
	}
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.MetricsPort),
		Handler: metricsHandler(a.pingers()),
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range []*http.Server{apiServer, metricsServer} {
		srv := srv
		g.Go(func() error {
			a.logger.Info("listening", map[string]interface{}{"addr": srv.Addr})
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down", nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return errors.Join(apiServer.Shutdown(shutdownCtx), metricsServer.Shutdown(shutdownCtx))
	})

	return g.Wait()
}

func metricsHandler(deps []database.Pinger) http.Handler {
	r := gin.New()
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ready", func(c *gin.Context) {
		status, healthy := database.CheckAll(c.Request.Context(), 2*time.Second, deps...)
		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"ready": healthy, "dependencies": status})
	})
	return r
}
