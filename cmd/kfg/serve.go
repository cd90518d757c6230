package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/groblegark/kconfig/internal/audit"
	"github.com/groblegark/kconfig/internal/config"
	"github.com/groblegark/kconfig/internal/events"
	"github.com/groblegark/kconfig/internal/identity"
	"github.com/groblegark/kconfig/internal/model"
	"github.com/groblegark/kconfig/internal/server"
	"github.com/groblegark/kconfig/internal/store/postgres"
	cfgsync "github.com/groblegark/kconfig/internal/sync"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the kconfig governance server",
	GroupID: "system",
	// Override PersistentPreRunE so we don't create an HTTP client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		// Load configuration.
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		// Connect to Postgres.
		store, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}

		// Create event publisher.
		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				store.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (KCONFIG_NATS_URL not set)")
		}

		// Audit records go to the log, plus the bus when events are on.
		auditor := audit.Multi{&audit.LogEmitter{Logger: logger}}
		if cfg.NATSURL != "" {
			auditor = append(auditor, &audit.NATSEmitter{Publisher: publisher})
		}

		// Resolve roles from the collaborator service when configured,
		// otherwise from the static environment defaults.
		var provider identity.Provider
		if cfg.IdentityURL != "" {
			provider = identity.NewHTTPProvider(cfg.IdentityURL, cfg.IdentityToken)
			logger.Info("identity provider enabled", "url", cfg.IdentityURL)
		} else {
			provider = &identity.StaticProvider{
				DefaultRole: model.Role(cfg.DefaultRole),
				DefaultFlags: identity.Flags{
					RequireProposals:   cfg.RequireProposals,
					AllowSelfApprovals: cfg.AllowSelfApprovals,
				},
			}
			logger.Info("static identity provider", "default_role", cfg.DefaultRole)
		}

		configServer := server.NewConfigServer(store, publisher, auditor, provider)

		// Start HTTP server.
		httpServer := &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: configServer.NewHTTPHandler(cfg.AuthToken),
		}

		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		// Start sync scheduler if any destinations are configured.
		var scheduler *cfgsync.Scheduler
		if cfg.SyncInterval > 0 {
			var dests []cfgsync.Destination

			if cfg.SyncS3Bucket != "" {
				s3Dest, err := cfgsync.NewS3Destination(
					context.Background(),
					cfg.SyncS3Bucket,
					cfg.SyncS3Key,
					cfg.SyncS3Region,
					cfg.SyncS3Endpoint,
				)
				if err != nil {
					logger.Error("failed to create S3 sync destination", "err", err)
				} else {
					dests = append(dests, s3Dest)
					logger.Info("sync S3 destination enabled", "bucket", cfg.SyncS3Bucket, "key", cfg.SyncS3Key)
				}
			}

			if cfg.SyncGitRepo != "" {
				gitDest := cfgsync.NewGitDestination(cfg.SyncGitRepo, cfg.SyncGitFile, cfg.SyncGitBranch)
				dests = append(dests, gitDest)
				logger.Info("sync git destination enabled", "repo", cfg.SyncGitRepo, "file", cfg.SyncGitFile)
			}

			if len(dests) > 0 {
				scheduler = cfgsync.NewScheduler(store, dests, cfg.SyncInterval, logger)
				scheduler.Start()
				logger.Info("sync scheduler started", "interval", cfg.SyncInterval)
			}
		}

		logger.Info("kconfig server started", "http_addr", cfg.HTTPAddr)

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		// Graceful shutdown.
		if scheduler != nil {
			scheduler.Stop()
			logger.Info("sync scheduler stopped")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := store.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}
