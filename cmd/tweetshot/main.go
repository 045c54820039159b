// Package main wires together the tweet screenshot service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cloudpubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"tweetshot/internal/api"
	"tweetshot/internal/capture"
	"tweetshot/internal/clock/system"
	"tweetshot/internal/config"
	"tweetshot/internal/dispatcher"
	"tweetshot/internal/hash/sha256"
	"tweetshot/internal/id/uuid"
	"tweetshot/internal/logging"
	"tweetshot/internal/metrics"
	"tweetshot/internal/pipeline"
	"tweetshot/internal/probe"
	pubsubpublisher "tweetshot/internal/publisher/pubsub"
	queueMemory "tweetshot/internal/queue/memory"
	"tweetshot/internal/renderer"
	"tweetshot/internal/storage/archive"
	gcsStorage "tweetshot/internal/storage/gcs"
	localStorage "tweetshot/internal/storage/local"
	minioStorage "tweetshot/internal/storage/minio"
	memoryStorage "tweetshot/internal/storage/memory"
	"tweetshot/internal/storage/postgres"
	"tweetshot/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	blobStore, err := buildBlobStore(ctx, cfg)
	if err != nil {
		logger.Fatal("blob store init failed", zap.Error(err))
	}

	jobStore, closeJobStore, err := buildJobStore(ctx, cfg)
	if err != nil {
		logger.Fatal("job store init failed", zap.Error(err))
	}
	defer closeJobStore()

	publisher, closePublisher, err := buildPublisher(ctx, cfg)
	if err != nil {
		logger.Fatal("publisher init failed", zap.Error(err))
	}
	defer closePublisher()

	render, err := renderer.New(renderer.Config{
		ExecPath:          cfg.Browser.ExecPath,
		MaxParallel:       cfg.Browser.MaxParallel,
		NavigationTimeout: cfg.NavTimeout(),
		WindowWidth:       cfg.Browser.WindowWidth,
		WindowHeight:      cfg.Browser.WindowHeight,
		CapturesPerSec:    cfg.Browser.CapturesPerSec,
	})
	if err != nil {
		logger.Fatal("renderer init failed", zap.Error(err))
	}
	defer render.Close()

	var checker capture.Probe
	if cfg.Probe.Enabled {
		checker = probe.New(probe.Config{
			UserAgent: cfg.Probe.UserAgent,
			Timeout:   time.Duration(cfg.Probe.TimeoutSeconds) * time.Second,
		})
	}

	hasher := sha256.New()
	clock := system.New()
	idGen := uuid.New()
	queue := queueMemory.NewQueue(cfg.Worker.QueueDepth)

	pl := pipeline.New(
		render,
		checker,
		blobStore,
		jobStore,
		publisher,
		hasher,
		clock,
		pipeline.Config{
			BlobPrefix:  cfg.Storage.Prefix,
			ContentType: cfg.Storage.ContentType,
			Topic:       cfg.PubSub.TopicName,
			JPEGQuality: cfg.Capture.JPEGQuality,
		},
		logger.Named("pipeline"),
	)

	var workers []*worker.Worker
	for i := 0; i < cfg.Worker.Concurrency; i++ {
		workers = append(workers, worker.New(
			queue,
			jobStore,
			pl,
			logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	dispatch := dispatcher.New(queue, workers)

	apiServer := api.NewServer(jobStore, dispatch, pl, idGen, clock, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("dispatcher started", zap.Int("workers", cfg.Worker.Concurrency))
		dispatch.Run(ctx)
	}()

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	queue.Close()
	logger.Info("shutdown complete")
}

func buildBlobStore(ctx context.Context, cfg config.Config) (capture.BlobStore, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return memoryStorage.NewBlobStore(), nil
	case config.BackendLocal:
		return localStorage.New(localStorage.Config{BaseDir: cfg.Storage.Local.BaseDir})
	case config.BackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		return gcsStorage.New(client, gcsStorage.Config{Bucket: cfg.Storage.GCS.Bucket})
	case config.BackendMinIO:
		store, err := minioStorage.New(minioStorage.Config{
			Endpoint:       cfg.Storage.MinIO.Endpoint,
			AccessKey:      cfg.Storage.MinIO.AccessKey,
			SecretKey:      cfg.Storage.MinIO.SecretKey,
			Bucket:         cfg.Storage.MinIO.Bucket,
			Secure:         cfg.Storage.MinIO.Secure,
			PublicEndpoint: cfg.Storage.MinIO.PublicEndpoint,
		})
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// buildJobStore keeps job state in memory and, when a DSN is configured,
// archives every recorded shot into Postgres.
func buildJobStore(ctx context.Context, cfg config.Config) (capture.JobStore, func(), error) {
	inner := memoryStorage.NewJobStore()
	if cfg.DB.DSN == "" {
		return inner, func() {}, nil
	}
	shotStore, err := postgres.NewShotStore(ctx, postgres.ShotStoreConfig{
		DSN:      cfg.DB.DSN,
		Table:    cfg.DB.Table,
		MaxConns: cfg.DB.MaxConns,
	})
	if err != nil {
		return nil, nil, err
	}
	return archive.New(inner, shotStore), shotStore.Close, nil
}

func buildPublisher(ctx context.Context, cfg config.Config) (capture.Publisher, func(), error) {
	if cfg.PubSub.ProjectID == "" || cfg.PubSub.TopicName == "" {
		return nil, func() {}, nil
	}
	client, err := cloudpubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("create pubsub client: %w", err)
	}
	pub := pubsubpublisher.New(client.Publisher(cfg.PubSub.TopicName))
	closer := func() {
		if err := client.Close(); err != nil {
			zap.L().Error("pubsub client close failed", zap.Error(err))
		}
	}
	return pub, closer, nil
}
