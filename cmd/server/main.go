package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/arstudio/api/internal/cache"
	"github.com/arstudio/api/internal/client"
	"github.com/arstudio/api/internal/config"
	"github.com/arstudio/api/internal/exec"
	"github.com/arstudio/api/internal/middleware"
	"github.com/arstudio/api/internal/placement"
	"github.com/arstudio/api/internal/probe"
	"github.com/arstudio/api/internal/router"
	"github.com/arstudio/api/internal/service"
	"github.com/arstudio/api/internal/store"
	"github.com/arstudio/api/internal/worker"
	ws "github.com/arstudio/api/internal/websocket"
)

const (
	probeTimeout     = 10 * time.Second
	probeConcurrency = 4
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Server.Env,
		}); err != nil {
			log.Printf("Warning: Sentry not initialized: %v", err)
		}
		// Flush buffered events before the program terminates.
		defer sentry.Flush(2 * time.Second)
	}

	// Redis is optional; without it the scene cache and rate limits are off
	var redisClient redis.UniversalClient
	if cfg.Redis.Enabled {
		rc := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rc.Ping(context.Background()).Err(); err != nil {
			log.Printf("Warning: Redis not available: %v", err)
		}
		defer rc.Close()
		redisClient = rc
	}

	validate := validator.New()

	hub := ws.NewHub()
	go hub.Run()
	defer hub.Stop()

	// External clients
	upstream := client.NewUpstreamClient(&cfg.Upstream)
	generation := client.NewGenerationClient(&cfg.Generation)

	var artifacts service.ArtifactStore = store.NewMemoryArtifactStore()
	r2Configured := false
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		r2Client, err := client.NewR2Client(&cfg.R2)
		if err != nil {
			log.Printf("Warning: R2 client not initialized: %v", err)
		} else {
			artifacts = r2Client
			r2Configured = true
		}
	} else {
		log.Println("Info: R2 storage not configured, keeping artifacts in memory")
	}

	runner := exec.NewCommandRunner()
	prober := probe.NewMediaProber(probe.NewVideoProber(cfg.FFmpeg.FFprobePath, runner), probeTimeout)
	discoverer := placement.NewDiscoverer(prober, probeConcurrency)

	// Services
	assetService := service.NewAssetService(upstream, cache.NewCache("arstudio", redisClient))
	sceneService := service.NewSceneService(upstream, assetService, discoverer, cfg.Placement.SaveConcurrency)
	uploadService := service.NewUploadService(upstream, cfg.Placement.LightTagHeight, cfg.Placement.PlacementRange)
	generationService := service.NewGenerationService(generation)
	authService := service.NewAuthService(upstream)

	var processor service.JobProcessor = worker.NewSimulatedProcessor()
	if cfg.Jobs.Processor == config.ProcessorNative {
		processor = worker.NewNativeProcessor(assetService, artifacts, runner, cfg.FFmpeg.FFmpegPath)
		log.Println("Info: native job processor enabled")
	}

	jobService := service.NewJobService(store.NewMemoryJobRepository(), processor, artifacts, hub, validate,
		service.JobServiceOptions{
			InitialDelay: cfg.Jobs.InitialDelay,
			StepInterval: cfg.Jobs.StepInterval,
			PublicURL:    cfg.Server.PublicURL,
		})

	asynqEnabled := false
	if cfg.Jobs.Driver == config.DriverAsynq {
		if !cfg.Redis.Enabled {
			log.Println("Warning: asynq job driver requires redis, using timers")
		} else {
			asynqClient := asynq.NewClient(redisOpt(cfg))
			defer asynqClient.Close()
			jobService.UseDriver(worker.NewAsynqDriver(asynqClient))
			go startWorkerServer(cfg, jobService)
			asynqEnabled = true
		}
	}

	app := router.New(router.Deps{
		Config:      cfg,
		Validator:   validate,
		Hub:         hub,
		Jobs:        jobService,
		Assets:      assetService,
		Scenes:      sceneService,
		Uploads:     uploadService,
		Generation:  generationService,
		Auth:        authService,
		RateLimiter: middleware.NewRateLimiter(redisClient),
		Services: map[string]interface{}{
			"upstream":   upstream.IsConfigured(),
			"redis":      redisClient != nil,
			"r2":         r2Configured,
			"asynq":      asynqEnabled,
			"generation": generation.Configured(),
		},
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func redisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}

func startWorkerServer(cfg *config.Config, jobs worker.Advancer) {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		redisOpt(cfg),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				worker.QueueJobs: 1,
			},
			LogLevel: asynqLogLevel,
		},
	)

	jobWorker := worker.NewJobWorker(jobs)

	mux := asynq.NewServeMux()
	mux.HandleFunc(worker.TaskTypeJobAdvance, jobWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}
