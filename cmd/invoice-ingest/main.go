package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kestrelpm/invoice-ingest/internal/core"
	"github.com/kestrelpm/invoice-ingest/internal/di"
	"github.com/kestrelpm/invoice-ingest/internal/ports"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	receivers []ports.Receiver,
	llmClient core.LLMClient,
	cache core.VendorCache,
) error {
	defer logger.Sync()

	for _, receiver := range receivers {
		r := receiver
		go func() {
			if err := r.Start(); err != nil {
				logger.Fatal("Receiver failed", zap.Error(err))
			}
		}()
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	for _, receiver := range receivers {
		if err := receiver.Stop(); err != nil {
			logger.Error("Failed to stop receiver", zap.Error(err))
		}
	}

	// Close any resources that need closing
	if closer, ok := llmClient.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close LLM client", zap.Error(err))
		}
	}

	// Stop the cache if needed
	if stopper, ok := cache.(interface{ Stop() }); ok {
		stopper.Stop()
	}

	logger.Info("Shutdown complete")
	return nil
}
