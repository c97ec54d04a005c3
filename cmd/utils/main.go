package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/appetiteclub/apt"

	"github.com/appetiteclub/epicure/cmd/utils/internal/commands"
)

const (
	appName    = "epicure-utils"
	appVersion = "0.1.0"
)

func main() {
	var args []string
	if len(os.Args) > 2 {
		args = os.Args[2:]
	}

	config, err := apt.LoadConfig("UTILS", args)
	if err != nil {
		log.Fatalf("Cannot load config: %v", err)
	}

	if len(os.Args) < 2 {
		printUsage(config)
		os.Exit(1)
	}

	logLevel, _ := config.GetString("log.level")
	if logLevel == "" {
		logLevel = "info"
	}
	logger := apt.NewLogger(logLevel)

	ctx := context.Background()
	command := os.Args[1]

	switch command {
	case "seed-demo":
		if err := commands.SeedDemo(ctx, config, logger); err != nil {
			log.Fatalf("❌ Demo seeding failed: %v", err)
		}
		logger.Info("✅ Demo seeding completed successfully")

	case "clear-demo":
		if err := commands.ClearDemo(ctx, config, logger); err != nil {
			log.Fatalf("❌ Clear demo data failed: %v", err)
		}
		logger.Info("✅ Demo data cleared successfully")

	case "reset-db":
		logger.Info("Dropping loyalty database", "database", commands.DatabaseName(config))
		if err := commands.ResetDB(ctx, config, logger); err != nil {
			log.Fatalf("❌ Database reset failed: %v", err)
		}
		logger.Info("✅ Database reset completed successfully")

	case "version":
		fmt.Printf("%s version %s\n", appName, appVersion)

	case "help", "-h", "--help":
		printUsage(config)

	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage(config)
		os.Exit(1)
	}
}

func printUsage(config *apt.Config) {
	fmt.Printf(`%s - Epicure loyalty utility commands

Usage:
  %s <command> [options]

Target database: %s

Commands:
  seed-demo    Create demo customers (Asha, Rohan, Meera) with purchases and badges
  clear-demo   Remove demo customers and the bills they scanned
  reset-db     Drop the loyalty database, customers, OTP sessions and admins included (USE WITH CAUTION)
  version      Print version information
  help         Show this help message

Environment Variables:
  UTILS_MONGO_URL   MongoDB connection URL (default: mongodb://localhost:27017)
  UTILS_MONGO_NAME  Loyalty database name (default: epicure_loyalty)
  UTILS_LOG_LEVEL   Log level: debug, info, warn, error (default: info)

Examples:
  %s seed-demo
  UTILS_MONGO_NAME=epicure_loyalty_staging %s clear-demo
  %s reset-db

`, appName, appName, commands.DatabaseName(config), appName, appName, appName)
}
