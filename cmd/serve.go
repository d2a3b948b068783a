package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadimport/internal/api"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP import API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc, st, err := initService(ctx, "serve")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr: fmt.Sprintf(":%d", port),
			Handler: api.NewRouter(svc, api.Config{
				AllowedOrigins: cfg.Server.AllowedOrigins,
				RateLimitRPS:   cfg.Server.RateLimitRPS,
				RateBurst:      cfg.Server.RateBurst,
				MaxBodyBytes:   cfg.Server.MaxBodyBytes,
				Pinger:         st.Ping,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		return runServer(ctx, srv)
	},
}

// runServer serves until ctx is done, then drains in-flight requests.
func runServer(ctx context.Context, srv *http.Server) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zap.L().Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		return eris.Wrap(srv.Shutdown(shutdownCtx), "server shutdown")
	})

	return g.Wait()
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
