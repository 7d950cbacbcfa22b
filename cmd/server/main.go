package main

import (
	"context"
	"log"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"stablewatch/internal/application/analysis"
	"stablewatch/internal/application/retention"
	"stablewatch/internal/application/schedule"
	"stablewatch/internal/application/supervisor"
	"stablewatch/internal/config"
	"stablewatch/internal/domain/stream"
	"stablewatch/internal/infrastructure/configstore"
	"stablewatch/internal/infrastructure/detector"
	"stablewatch/internal/infrastructure/ffmpeg"
	"stablewatch/internal/infrastructure/filesystem"
	"stablewatch/internal/infrastructure/postgres"
	httptransport "stablewatch/internal/transport/http"
)

// launcherAdapter narrows the ffmpeg pipeline to the supervisor's port.
type launcherAdapter struct {
	pipeline *ffmpeg.Pipeline
}

func (a launcherAdapter) StartLive(src stream.Source, outputDir, playlistPath string) (supervisor.Process, error) {
	return a.pipeline.StartLive(src, outputDir, playlistPath)
}

func main() {
	cfg := config.Load()
	logger := log.Default()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = mime.AddExtensionType(".m3u8", "application/vnd.apple.mpegurl")
	_ = mime.AddExtensionType(".ts", "video/mp2t")

	store := filesystem.NewStore(cfg.LiveDir, cfg.ChunkDir)
	if err := store.EnsureDirs(); err != nil {
		log.Fatalf("storage init failed: %v", err)
	}

	descs, err := configstore.Load(cfg.StreamsFile)
	if err != nil {
		log.Fatalf("stream config init failed: %v", err)
	}

	pipeline := ffmpeg.NewPipeline(cfg.SegmentSeconds, cfg.PlaylistWindow)

	registry := supervisor.NewRegistry()
	sup := supervisor.New(registry, launcherAdapter{pipeline}, store, logger, supervisor.Options{
		MaxStreams:       cfg.MaxStreams,
		RestartMax:       cfg.RestartMax,
		RestartDelay:     cfg.RestartDelay,
		StartVerifyDelay: cfg.StartVerifyDelay,
		StopGrace:        cfg.StopGrace,
	})
	metrics := analysis.NewMetrics(cfg.MaxQueueSize)
	analyzer := detector.NewClient(cfg.DetectorURL, cfg.DetectorTimeout, cfg.FrameInterval)
	if !analyzer.Enabled() {
		logger.Printf("DETECTOR_URL unset: queued chunks will fail until a detector is configured")
	}

	var archive analysis.FailureArchive
	var failureLog *postgres.History
	if cfg.DatabaseURL != "" {
		history, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failure archive init failed: %v", err)
		}
		defer history.Close()
		archive = history
		failureLog = history
	}

	queue := analysis.NewQueue(analyzer, archive, metrics, logger, analysis.Options{
		Workers:      cfg.Workers,
		MaxWaiting:   cfg.MaxQueueSize,
		MaxAttempts:  cfg.MaxAttempts,
		RetryBackoff: cfg.RetryBackoff,
		HistorySize:  cfg.HistorySize,
		ProcessDelay: cfg.ProcessDelay,
	})

	hub := httptransport.NewHub(logger)
	queue.SetNotifier(hub.BroadcastJob)

	extractor := schedule.NewExtractor(pipeline, store, cfg.ChunkSeconds, cfg.ExtractTimeout)
	scheduler := schedule.NewScheduler(extractor, queue, metrics, cfg.ChunkStep(), logger)

	monitor := supervisor.NewMonitor(sup, descs, store, scheduler, logger, cfg.HealthInterval, cfg.FreshnessThreshold)

	sweeper := retention.NewSweeper(store, cfg.RetentionWindow, cfg.SweepInterval, logger)

	go queue.Run(ctx)
	go monitor.Run(ctx)
	go sweeper.Run(ctx)

	// Bring desired streams up at boot; the health monitor keeps them up
	// from here on.
	if all, err := descs.List(); err == nil {
		for _, desc := range all {
			if !desc.Desired {
				continue
			}
			if err := sup.Start(desc); err != nil {
				logger.Printf("stream %s: boot start failed: %v", desc.ID, err)
				continue
			}
			_ = scheduler.Attach(desc)
		}
	}

	registerCollectors(metrics, queue, sup)

	handler := httptransport.NewHandler(sup, scheduler, descs, queue, sweeper, store, metrics, hub, logger)
	if failureLog != nil {
		handler.SetFailureLog(failureLog)
	}
	router := httptransport.NewRouter(handler, cfg.LiveDir)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
	})

	server := &http.Server{Addr: cfg.ServerAddr, Handler: c.Handler(router)}
	go func() {
		logger.Printf("Server started on %s", cfg.ServerAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Printf("shutting down")
	scheduler.DetachAll()
	sup.StopAll()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("server shutdown: %v", err)
	}
}
