package main

import (
	"flag"
	"log"
	"net/http"

	"pose-play/server/internal/api"
	"pose-play/server/internal/config"
	"pose-play/server/internal/domain"
	"pose-play/server/internal/orchestrator"
	"pose-play/server/internal/session"
	"pose-play/server/internal/telemetry"
)

func main() {
	// 本地可跑、可调试优先：参数用 flag，部署相关项用环境变量覆盖
	// （POSEPLAY_PORT / POSEPLAY_GAMES_DIR）。
	configPath := flag.String("config", "server/configs/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	library, err := domain.NewLibrary(cfg.Paths.Games, nil)
	if err != nil {
		log.Fatalf("load games: %v", err)
	}

	watcher, err := domain.NewWatcher(library, nil)
	if err != nil {
		log.Fatalf("watch games dir: %v", err)
	}
	defer watcher.Close()

	orch := orchestrator.New(
		library,
		session.NewInMemoryStore(),
		telemetry.NewInMemoryStore(),
		cfg.TickInterval(),
		nil,
	)
	defer orch.Shutdown()

	server := api.NewServer(cfg, library, orch, nil)
	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      server.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	log.Printf("poseplay server listening on %s", cfg.Addr())
	if err := httpServer.ListenAndServe(); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
