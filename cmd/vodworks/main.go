package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"vodworks/internal/config"
	server "vodworks/internal/http"
	"vodworks/internal/jobs"
	"vodworks/internal/pipeline"
	"vodworks/internal/session"
	"vodworks/internal/tools"
	"vodworks/internal/workspace"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	role := flag.String("role", "all", "process role: api|worker|all")
	flag.Parse()

	cfg := config.Load(*configPath)

	// Set up logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))

	opt, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Fatalf("invalid redis url: %v", err)
	}
	rdb := redis.NewClient(opt)

	st := session.NewStore(rdb, time.Duration(cfg.Sessions.TTLSeconds)*time.Second, logger)
	queue := jobs.NewQueue(rdb, cfg.Sessions.QueueKey)

	ws, err := workspace.NewManager(cfg.Workspace.Root, logger)
	if err != nil {
		log.Fatalf("workspace root setup failed: %v", err)
	}

	downloader := tools.NewDownloader(cfg.Tools, logger)
	transcoder := tools.NewTranscoder(cfg.Tools, logger)
	runner := pipeline.NewRunner(ws, downloader, transcoder, cfg, logger)
	dispatcher := jobs.NewDispatcher(st, queue, runner, logger)

	rootCtx := context.Background()

	startWorker := func() {
		w := jobs.NewWorker(cfg, st, queue, runner, ws, logger)
		go w.Start(rootCtx)
	}

	switch *role {
	case "api":
		// API-only: submissions are queued for a separate worker process.
		s := server.NewServer(cfg, st, ws, dispatcher, downloader, rdb, logger)
		if err := s.Listen(); err != nil {
			log.Fatalf("server failed: %v", err)
		}
	case "worker":
		// Worker-only: drain the queue and block.
		startWorker()
		select {}
	case "all":
		// Default: run both API and worker in one process.
		startWorker()
		s := server.NewServer(cfg, st, ws, dispatcher, downloader, rdb, logger)
		if err := s.Listen(); err != nil {
			log.Fatalf("server failed: %v", err)
		}
	default:
		log.Fatalf("invalid role: %s (expected api|worker|all)", *role)
	}
}
