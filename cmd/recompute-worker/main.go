package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/abdul-baten/apc-kilock-sub001/internal/config"
	"github.com/abdul-baten/apc-kilock-sub001/internal/core"
	"github.com/abdul-baten/apc-kilock-sub001/internal/core/model"
	"github.com/abdul-baten/apc-kilock-sub001/internal/directory"
	"github.com/abdul-baten/apc-kilock-sub001/internal/ports/messaging"
	"github.com/abdul-baten/apc-kilock-sub001/internal/ports/repository"
	"github.com/abdul-baten/apc-kilock-sub001/internal/worker"
	"github.com/abdul-baten/apc-kilock-sub001/internal/worker/recompute"
	"github.com/abdul-baten/apc-kilock-sub001/pkg/aws"
	"github.com/abdul-baten/apc-kilock-sub001/pkg/database"
)

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Could not load configuration: %v", err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatalf("Invalid timezone %q: %v", cfg.Timezone, err)
	}

	// DB connection
	db, err := database.NewConnection(cfg)
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}
	defer db.Close()
	log.Println("Successfully connected to the database.")

	// AWS SDK Config
	awsCfg, err := aws.NewAWSConfig(context.Background(), cfg)
	if err != nil {
		log.Fatalf("unable to load SDK config: %v", err)
	}

	// Initialize Dependencies
	sqsClient := sqs.NewFromConfig(awsCfg)

	repo := repository.NewAttendanceRepository(db)
	producer := messaging.NewSQSPublisher(sqsClient, cfg.RecomputeSQSQueueURL, cfg.NoticeSQSQueueURL)
	resolver := directory.NewClient(cfg.DirectoryAPIURL)
	catalog := model.DefaultAttendanceTypes()

	ledger := core.NewSegmentLedger(repo, nil, loc)
	reconciler := core.NewReconciler(repo, ledger, resolver, producer, catalog, loc)
	processor := recompute.NewProcessor(reconciler, resolver)

	// Start Worker
	ctx, cancel := context.WithCancel(context.Background())
	app := worker.NewWorker(sqsClient, cfg.RecomputeSQSQueueURL, processor)

	go func() {
		app.Start(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down worker...")

	// Cancel the context to signal the worker to stop polling.
	cancel()

	log.Println("Worker exited gracefully")
}
