package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/doffice/internal/api"
	"github.com/joseph-ayodele/doffice/internal/async"
	"github.com/joseph-ayodele/doffice/internal/channel"
	"github.com/joseph-ayodele/doffice/internal/common"
	"github.com/joseph-ayodele/doffice/internal/history"
	"github.com/joseph-ayodele/doffice/internal/ingest"
	"github.com/joseph-ayodele/doffice/internal/pipeline"
	"github.com/joseph-ayodele/doffice/internal/repository"
	"github.com/joseph-ayodele/doffice/internal/session"
	"github.com/joseph-ayodele/doffice/internal/tracker"
)

func main() {
	if err := common.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(2)
	}
	cfg := common.LoadConfig()

	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.LogLevel()})
	if cfg.Log.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.LogLevel()})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	if err := cfg.ValidateWatch(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(ctx, repository.Config{
		DSN:             cfg.Storage.HistoryDSN,
		MaxConns:        int32(cfg.Watch.Workers + 2),
		MinConns:        1,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
		DialTimeout:     3 * time.Second,
	}, logger)
	if err != nil {
		logger.Error("failed to open history database", "error", err, "dsn", cfg.Storage.HistoryDSN)
		os.Exit(1)
	}
	defer db.Close(logger)

	if err := db.HealthCheck(ctx, 5*time.Second); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	hist := history.NewService(repository.NewHistoryRepository(db, logger), logger)

	client := api.NewClient(api.Config{BaseURL: cfg.Backend.APIURL, Timeout: cfg.Backend.HTTPTimeout}, logger)
	sessions := session.NewManager(session.APIBackend{Client: client}, session.NewFileTokenStore(cfg.Storage.DataDir), logger)
	sess, err := sessions.Load(ctx)
	if err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			logger.Warn("could not restore session, continuing as guest", "error", err)
		}
		sess, _ = sessions.EnterGuest()
	}
	logger.Info("session ready", "guest", sess.Guest(), "email", sess.User.Email)

	authed := client.WithAuth(sess)
	newProcessor := func(workerID int) async.Processor {
		dialer := channel.NewWSDialer(cfg.Backend.WSURL, sess, cfg.Backend.DialTimeout, logger)
		tr := tracker.New(authed, dialer, tracker.WithLogger(logger.With("worker", workerID)))
		return pipeline.NewProcessor(logger.With("worker", workerID), tr, hist)
	}
	queue := async.NewProcessorQueue(newProcessor, logger,
		async.WithWorkers(cfg.Watch.Workers),
		async.WithQueueSize(cfg.Watch.QueueSize),
		async.WithProcessTimeout(cfg.Watch.JobTimeout),
	)

	paths, watchErrs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       cfg.Watch.Dirs,
		InitialScan: false,
		Debounce:    cfg.Watch.Debounce,
		SkipHidden:  true,
	}, logger)
	if err != nil {
		logger.Error("failed to start watcher", "error", err)
		os.Exit(1)
	}

	// gRPC health for supervisors
	lis, err := net.Listen("tcp", cfg.Watch.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Watch.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	logger.Info("dofficed watching", "dirs", cfg.Watch.Dirs, "workers", cfg.Watch.Workers, "health_addr", cfg.Watch.GRPCAddr)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case p, ok := <-paths:
			if !ok {
				break loop
			}
			job := async.Job{Path: p, SubmittedAt: time.Now(), TraceID: uuid.NewString()}
			if err := queue.Enqueue(ctx, job); err != nil {
				logger.Warn("enqueue failed", "path", p, "error", err)
				continue
			}
			logger.Info("file queued", "path", p, "trace_id", job.TraceID)
		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			logger.Warn("watcher reported error", "error", err)
		}
	}

	logger.Info("shutting down")
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	queue.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
	logger.Info("stopped")
}
