package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/courier-labs/courier/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed: ", err)
	}

	worker, err := NewWorker(cfg)
	if err != nil {
		log.Fatal("worker init failed: ", err)
	}

	if err := worker.Start(); err != nil {
		log.Fatal("worker start failed: ", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	if err := worker.Shutdown(cfg.ShutdownTimeoutDuration()); err != nil {
		log.Fatal("shutdown failed: ", err)
	}
}
