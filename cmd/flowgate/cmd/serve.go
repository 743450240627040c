package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/flowtrack/flowgate/cmd/flowgate/cmd/cmdutil"
	"github.com/flowtrack/flowgate/cmd/flowgate/internal/access"
	"github.com/flowtrack/flowgate/cmd/flowgate/internal/server"
	"github.com/flowtrack/flowgate/cmd/flowgate/internal/telemetry"
)

var serveWithoutAccess bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the edge gate",
	Long: `Starts the HTTP edge: the API prefix is proxied to the backend untouched,
every other path is gated and then served from the SPA build or an upstream.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		shutdownTelemetry, err := telemetry.Init(ctx, cfg.Observability, logger.Named("telemetry"))
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(sctx); err != nil {
				logger.Warn("telemetry shutdown failed", zap.Error(err))
			}
		}()

		metrics, err := telemetry.NewGateMetrics()
		if err != nil {
			return fmt.Errorf("failed to create metrics: %w", err)
		}

		evaluator, err := cmdutil.NewEvaluator(cfg, logger, metrics)
		if err != nil {
			return err
		}

		var policy *access.Policy
		if !serveWithoutAccess {
			bundle, err := cmdutil.OpenAccess(ctx, cfg)
			if err != nil {
				return err
			}
			defer bundle.Close()
			policy = bundle.Policy
			logger.Info("page access policy loaded")
		}

		apiHandler, err := server.NewReverseProxy(cfg.Server.APIBackendURL, logger.Named("api_proxy"))
		if err != nil {
			return fmt.Errorf("configure api backend: %w", err)
		}

		pageHandler, err := newPageHandler()
		if err != nil {
			return err
		}

		corsOpts := server.DefaultCORSOptions()
		if len(cfg.Server.CORSOrigins) > 0 {
			corsOpts.AllowedOrigins = cfg.Server.CORSOrigins
		}

		healthHandler := func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `{"status":"ok","external_identity":%q,"page_access":%t}`, cfg.External.Mode, policy != nil)
		}

		r := server.NewRouter(server.RouterOptions{
			Evaluator:     evaluator,
			APIPrefix:     cfg.Routes.APIPrefix,
			APIHandler:    apiHandler,
			PageHandler:   pageHandler,
			Access:        policy,
			Logger:        logger,
			CORSOptions:   &corsOpts,
			Instrument:    cfg.Observability.OTLPEndpoint != "",
			HealthHandler: healthHandler,
		})

		srv := &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      h2c.NewHandler(r, &http2.Server{}),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("starting server",
				zap.String("addr", cfg.Server.Addr),
				zap.String("api_backend", cfg.Server.APIBackendURL),
				zap.String("external_identity", cfg.External.Mode),
			)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		// SIGHUP reloads page access rules after out-of-band edits.
		reload := make(chan os.Signal, 1)
		signal.Notify(reload, syscall.SIGHUP)

		for {
			select {
			case err := <-serverErrors:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("server error: %w", err)

			case sig := <-reload:
				if policy == nil {
					logger.Warn("page access disabled, ignoring reload", zap.String("signal", sig.String()))
					continue
				}
				if err := policy.Reload(); err != nil {
					logger.Error("page access reload failed", zap.Error(err))
				} else {
					logger.Info("page access rules reloaded", zap.String("signal", sig.String()))
				}

			case sig := <-shutdown:
				logger.Info("shutting down", zap.String("signal", sig.String()))

				sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()

				if err := srv.Shutdown(sctx); err != nil {
					_ = srv.Close()
					return fmt.Errorf("graceful shutdown failed: %w", err)
				}

				logger.Info("server stopped")
				return nil
			}
		}
	},
}

// newPageHandler prefers an upstream renderer over the static build.
func newPageHandler() (http.Handler, error) {
	if cfg.Server.UpstreamURL != "" {
		proxy, err := server.NewReverseProxy(cfg.Server.UpstreamURL, logger.Named("page_proxy"))
		if err != nil {
			return nil, fmt.Errorf("configure page upstream: %w", err)
		}
		return proxy, nil
	}

	info, err := os.Stat(cfg.Server.StaticDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("static dir %q is not a directory; set server.static_dir or server.upstream_url", cfg.Server.StaticDir)
	}
	return server.NewSPAHandler(os.DirFS(cfg.Server.StaticDir)), nil
}

func init() {
	serveCmd.Flags().BoolVar(&serveWithoutAccess, "no-page-access", false, "Serve without a database; /_gate/access answers 503")
	rootCmd.AddCommand(serveCmd)
}
