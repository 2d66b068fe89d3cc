package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newswire-app/newswire/internal/auth"
	"github.com/newswire-app/newswire/internal/feed"
	"github.com/newswire-app/newswire/internal/hackernews"
	httpapp "github.com/newswire-app/newswire/internal/http"
	"github.com/newswire-app/newswire/internal/logging"
	"github.com/newswire-app/newswire/internal/rate"
	"github.com/newswire-app/newswire/internal/reaction"
	"github.com/newswire-app/newswire/internal/redisclient"
	"github.com/newswire-app/newswire/internal/worker"

	"github.com/spf13/cobra"
)

var serveIngest bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		logging.Setup(cfg.App.Env, cfg.App.LogLevel)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		var limiter rate.Limiter
		if cfg.Redis.Addr != "" {
			rdb := redisclient.New(cfg.Redis)
			defer rdb.Close()
			limiter = rate.NewRedis(rdb)
			slog.Info("rate limiting backed by redis", "addr", cfg.Redis.Addr)
		} else {
			limiter = rate.NewMemory()
		}

		authSvc := auth.NewService(auth.Config{
			Domain:        cfg.Auth.Domain,
			ClientID:      cfg.Auth.ClientID,
			ClientSecret:  cfg.Auth.ClientSecret,
			CallbackURL:   cfg.Auth.CallbackURL,
			SessionSecret: cfg.Auth.SessionSecret,
			SessionTTL:    cfg.Auth.SessionTTLDuration(),
		})
		if !authSvc.Configured() {
			slog.Warn("login is not configured, the feed is read-only")
		}

		server, err := httpapp.NewServer(feed.New(st), reaction.New(st), authSvc, limiter, cfg)
		if err != nil {
			return err
		}

		httpServer := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           server,
			ReadHeaderTimeout: 5 * time.Second,
		}

		errs := make(chan error, 1)
		go func() {
			slog.Info("newswire listening", "addr", cfg.Server.Addr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- err
			}
		}()

		if cfg.Ingest.Enabled || serveIngest {
			collector := &worker.Collector{
				Client:   hackernews.NewClient(cfg.Ingest.BaseAPI),
				Store:    st,
				Interval: cfg.Ingest.IntervalDuration(),
				Limit:    cfg.Ingest.Limit,
			}
			mgr := worker.NewManager(collector)
			go func() {
				if err := mgr.Start(ctx); err != nil {
					slog.Error("worker manager stopped", "error", err)
				}
			}()
			slog.Info("collector running", "interval", cfg.Ingest.Interval, "limit", cfg.Ingest.Limit)
		}

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		select {
		case sig := <-stop:
			slog.Info("shutting down", "signal", sig.String())
		case err := <-errs:
			return err
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveIngest, "ingest", false, "run the news collector alongside the server")
	rootCmd.AddCommand(serveCmd)
}
