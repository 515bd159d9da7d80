package main

import (
	"context"
	"log"

	"pipeline-chat-be/internal/bootstrap"
	"pipeline-chat-be/internal/config"
	"pipeline-chat-be/internal/server"
	"pipeline-chat-be/internal/tracer"
)

func main() {
	// 0. Initialize Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(cfg)

	// 3. Start Background Services
	go func() {
		log.Println("Background: Starting Canvas Sync Service...")
		if err := container.CanvasService.Start(context.Background()); err != nil {
			log.Printf("Background Canvas Sync Error: %v", err)
		}
	}()

	// 4. Initialize Server
	srv := server.New(cfg, container)

	// 5. Run Server
	log.Fatal(srv.Run())
}
