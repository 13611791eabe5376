package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/backup"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/channels"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/config"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/dispatch"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/events"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/model"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/presence"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/server"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/store"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/store/cache"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/store/memory"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/store/postgres"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the switchboard server",
	GroupID: "system",
	// The server does not need an API client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		level, _ := config.ParseLevel(cfg.LogLevel)
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logger)
	},
}

// serve runs the server until ctx is cancelled, then shuts down in reverse
// start order.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	tracker := presence.New()
	mux := http.NewServeMux()

	d, err := dispatch.New(buildChannels(cfg, st, tracker, logger), dispatch.WithLogger(logger))
	if err != nil {
		st.Close()
		return err
	}
	d.Init(ctx, mux)

	handler := server.New(d, tracker, logger).Register(mux, cfg.AuthToken)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Inbound envelopes over NATS.
	var inboundWG sync.WaitGroup
	inboundCtx, inboundCancel := context.WithCancel(context.Background())
	if cfg.NATSURL != "" && cfg.InboundSubject != "-" {
		sub, err := events.NewNATSSubscriber(cfg.NATSURL)
		if err != nil {
			logger.Error("failed to create inbound subscriber", "err", err)
		} else {
			queue := cfg.InboundQueue
			if queue == "-" {
				queue = ""
			}
			in := events.NewInbound(sub, d, events.InboundOptions{
				Subject: cfg.InboundSubject,
				Queue:   queue,
				Workers: cfg.InboundWorkers,
			}, logger)
			inboundWG.Add(1)
			go func() {
				defer inboundWG.Done()
				if err := in.Run(inboundCtx); err != nil {
					logger.Error("inbound subscriber error", "err", err)
				}
				sub.Close()
			}()
		}
	}

	// Config backups.
	var scheduler *backup.Scheduler
	if dests := backupDestinations(ctx, cfg, logger); len(dests) > 0 && cfg.BackupInterval > 0 {
		scheduler = backup.NewScheduler(st, dests, cfg.BackupInterval, logger)
		scheduler.Start()
		logger.Info("backup scheduler started", "destinations", len(dests), "interval", cfg.BackupInterval)
	}

	tracker.StartReaper(&presence.ReaperConfig{
		DeadThreshold: cfg.PresenceDeadThreshold,
		SweepInterval: cfg.PresenceSweepInterval,
		OnDead:        d.Release,
	})

	logger.Info("switchboard started", "http_addr", cfg.HTTPAddr, "channels", d.Channels())

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-serveErr:
		logger.Error("HTTP server error", "err", runErr)
	}

	tracker.Stop()
	if scheduler != nil {
		scheduler.Stop()
		logger.Info("backup scheduler stopped")
	}
	inboundCancel()
	inboundWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "err", err)
	}
	logger.Info("HTTP server stopped")

	if err := d.Close(); err != nil {
		logger.Error("error closing channels", "err", err)
	}
	if err := st.Close(); err != nil {
		logger.Error("error closing store", "err", err)
	}
	logger.Info("shutdown complete")
	return runErr
}

// openStore returns Postgres when a database URL is set, else an in-memory
// store, wrapped in the Redis cache when a Redis URL is set.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.ConfigStore, error) {
	var st store.ConfigStore
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL, postgres.Options{MaxOpenConns: cfg.DatabaseMaxConns})
		if err != nil {
			return nil, err
		}
		st = pg
		logger.Info("config store: postgres")
	} else {
		st = memory.New()
		logger.Warn("config store: in-memory (SWITCHBOARD_DATABASE_URL not set); configs are lost on restart")
	}

	if cfg.RedisURL != "" {
		rc, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("config cache: %w", err)
		}
		st = cache.New(st, rc, cfg.CacheTTL, logger)
		logger.Info("config cache enabled", "ttl", cfg.CacheTTL)
	}
	return st, nil
}

// buildChannels constructs the adapters named in cfg.Channels.
func buildChannels(cfg *config.Config, st store.ConfigStore, tracker *presence.Tracker, logger *slog.Logger) []channels.Channel {
	opts := channels.Options{Logger: logger, Timeout: cfg.ChannelTimeout}

	var out []channels.Channel
	for _, c := range cfg.Channels {
		switch c {
		case model.ChannelWebsocket:
			var p channels.Presence
			if cfg.WebsocketRequirePresence && tracker != nil {
				p = tracker
			}
			ws := channels.NewWebsocket(st, p, opts)
			if len(cfg.WebsocketOrigins) > 0 {
				ws.AllowOrigins(cfg.WebsocketOrigins...)
			}
			out = append(out, ws)
		case model.ChannelNATS:
			if cfg.NATSURL == "" {
				logger.Warn("nats channel disabled (SWITCHBOARD_NATS_URL not set)")
				continue
			}
			out = append(out, channels.NewNATS(st, cfg.NATSURL, cfg.NATSSubjectPrefix, opts))
		case model.ChannelWebhook:
			out = append(out, channels.NewWebhook(st, nil, opts))
		case model.ChannelPusher:
			out = append(out, channels.NewPusher(st, opts))
		case model.ChannelSQS:
			out = append(out, channels.NewSQS(st, channels.SQSOptions{
				Region:      cfg.SQSRegion,
				Endpoint:    cfg.SQSEndpoint,
				QueuePrefix: cfg.SQSQueuePrefix,
			}, opts))
		}
	}
	return out
}

func init() {
	serveCmd.Flags().String("config", "", "TOML config file (default $SWITCHBOARD_CONFIG)")
}

// backupDestinations builds the configured backup targets. A destination
// that cannot be created is logged and left out.
func backupDestinations(ctx context.Context, cfg *config.Config, logger *slog.Logger) []backup.Destination {
	var dests []backup.Destination
	if cfg.BackupS3Bucket != "" {
		dest, err := backup.NewS3Destination(ctx, cfg.BackupS3Bucket, cfg.BackupS3Prefix, cfg.BackupS3Region, cfg.BackupS3Endpoint)
		if err != nil {
			logger.Error("failed to create S3 backup destination", "err", err)
		} else {
			dest.Snapshots = cfg.BackupSnapshots
			dests = append(dests, dest)
		}
	}
	if cfg.BackupDir != "" {
		dests = append(dests, backup.NewFileDestination(cfg.BackupDir))
	}
	return dests
}
