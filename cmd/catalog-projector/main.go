// catalog-projector поддерживает read-модели каталога курсов по потоку
// интеграционных событий.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/akriventsev/coursecatalog/config"
	"github.com/akriventsev/coursecatalog/framework/logger"
)

func main() {
	command := "run"
	args := os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		command, args = args[0], args[1:]
	}

	flags := flag.NewFlagSet(command, flag.ExitOnError)
	configPath := flags.String("config", "", "Path to config file (default: ./catalog.yaml)")
	flags.Usage = printUsage
	_ = flags.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log = log.With("service", cfg.Service.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case "run":
		err = run(ctx, cfg, log)
	case "migrate":
		err = migrate(ctx, cfg, flags.Args())
	case "reconcile":
		err = reconcileOnce(ctx, cfg, log)
	case "demo":
		err = demo(ctx, cfg, log)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		log.Error("command failed", "command", command, "error", err)
		log.Sync()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Course catalog projector")
	fmt.Println()
	fmt.Println("Usage: catalog-projector [command] [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run                 - Consume events and maintain read models (default)")
	fmt.Println("  migrate [up|down|status] - Manage PostgreSQL read model schema")
	fmt.Println("  reconcile           - Recompute course aggregates once")
	fmt.Println("  demo                - Project a sample course in memory and print the result")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --config   - Path to config file; CATALOG_* environment variables override it")
}
