package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/drmparse/constants"
	"github.com/joseph-ayodele/drmparse/internal/common"
	"github.com/joseph-ayodele/drmparse/internal/ingest"
	"github.com/joseph-ayodele/drmparse/internal/server"
	"github.com/joseph-ayodele/drmparse/internal/services/parsing"
)

func main() {
	cfg := common.LoadConfig()
	logger := common.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := parsing.NewService(cfg.DRM.Dir, cfg.Server.MaxTextBytes, logger)
	if err != nil {
		logger.Error("failed to load DRMs", "dir", cfg.DRM.Dir, "error", err)
		os.Exit(1)
	}

	grpcServer, healthServer := server.NewGRPCServer(svc, logger)
	// Reflection for grpcurl
	reflection.Register(grpcServer)

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           server.NewHTTPServer(svc, cfg.Server.MaxTextBytes, logger).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("gRPC listening", "addr", cfg.Server.GRPCAddr)
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		logger.Info("HTTP listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		reloadOnChange(gctx, svc, cfg.DRM.Dir, logger)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}

		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			grpcServer.Stop()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}

// reloadOnChange reloads the model set on SIGHUP and whenever a DRM file
// under dir changes. A failed reload keeps the previous models.
func reloadOnChange(ctx context.Context, svc *parsing.Service, dir string, logger *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:    []string{dir},
		Match:    constants.IsDRMFile,
		Debounce: 500 * time.Millisecond,
	}, logger)
	if err != nil {
		logger.Warn("drm watcher disabled", "dir", dir, "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			logger.Info("SIGHUP received, reloading DRMs")
			_ = svc.Reload()
		case p, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			logger.Info("drm file changed, reloading", "path", p)
			_ = svc.Reload()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("drm watcher error", "error", err)
		}
	}
}
