package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fieldstamp/fieldstamp/internal/config"
	"github.com/fieldstamp/fieldstamp/internal/derive"
	"github.com/fieldstamp/fieldstamp/internal/intake"
	"github.com/fieldstamp/fieldstamp/internal/pipeline"
	"github.com/fieldstamp/fieldstamp/internal/render"
	"github.com/fieldstamp/fieldstamp/internal/session"
	"github.com/fieldstamp/fieldstamp/internal/transport/httpapi"
	"github.com/fieldstamp/fieldstamp/internal/transport/telegram"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging configures the standard logger for the configured level.
func setupLogging(cfg *config.Config) {
	if cfg.IsDebug() {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	} else {
		log.SetFlags(log.LstdFlags)
	}
}

// buildPipeline assembles the core from the configuration.
func buildPipeline(cfg *config.Config) (*pipeline.Pipeline, *session.Store, error) {
	fields, err := intake.BuildFields(cfg.Fields)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid field configuration: %w", err)
	}

	renderer, err := render.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	store := session.NewStore(time.Duration(cfg.SessionTTLMinutes) * time.Minute)
	machine := intake.NewMachine(fields)
	gen := derive.NewGenerator(rand.New(rand.NewSource(time.Now().UnixNano())), cfg.Roster)
	inspector := render.NewInspector(cfg.MaxTemplateSize)

	// The last configured field holds the delivery instant; Validate
	// guarantees it is a datetime field.
	deliveryField := cfg.Fields[len(cfg.Fields)-1].Name

	return pipeline.New(store, machine, gen, renderer, inspector, deliveryField), store, nil
}

// run starts the configured transport and blocks until shutdown.
func run(ctx context.Context, cancel context.CancelFunc, start func(context.Context) error) {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	errCh := make(chan error, 1)
	go func() {
		errCh <- start(ctx)
	}()

	select {
	case sig := <-signalCh:
		log.Printf("Received signal: %s", sig)
		log.Println("Initiating graceful shutdown...")
		cancel()

		if err := <-errCh; err != nil && err != context.Canceled {
			log.Printf("Shutdown with error: %v", err)
			os.Exit(1)
		}

	case err := <-errCh:
		if err != nil {
			log.Printf("Service error: %v", err)
			os.Exit(1)
		}
	}

	log.Println("Service stopped successfully")
}

func main() {
	if config.VersionRequested() {
		printVersion()
		return
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg)

	if version != "dev" {
		cfg.Version = version
	}

	if cfg.IsDebug() {
		log.Printf("Starting with configuration: %s", cfg.String())
	}

	pipe, store, err := buildPipeline(cfg)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store.StartJanitor(ctx)

	switch {
	case cfg.IsTelegramMode():
		bot, err := telegram.New(cfg.TelegramToken, pipe, cfg.MaxTemplateSize)
		if err != nil {
			log.Fatalf("Failed to create telegram bot: %v", err)
		}
		run(ctx, cancel, bot.Run)

	case cfg.IsHTTPMode():
		srv := httpapi.New(cfg.Address(), pipe, cfg.MaxTemplateSize, cfg.IsDebug())
		run(ctx, cancel, srv.Run)

	default:
		log.Fatalf("Unknown mode: %s", cfg.Mode)
	}
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("Fieldstamp\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
