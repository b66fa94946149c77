package main

import (
	"log"

	"analyzer-console/internal/shared/config"
	"analyzer-console/internal/stub"
)

func main() {
	cfg := config.Load()
	srv := stub.New(cfg.StubStepDelay)

	addr := ":" + cfg.StubPort
	log.Printf("Starting stub analysis backend on %s", addr)

	if err := srv.Router().Run(addr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
