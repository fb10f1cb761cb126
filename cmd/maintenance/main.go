package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"classroom/internal/config"
	"classroom/internal/metrics"
	"classroom/internal/repository"
	"classroom/internal/service"
	"classroom/internal/utils"
)

func main() {
	// Define subcommands
	sweepCmd := flag.NewFlagSet("sweep", flag.ExitOnError)
	exportCmd := flag.NewFlagSet("export-users", flag.ExitOnError)

	// Export flags
	exportOutput := exportCmd.String("output", "", "Output file path (default: users_YYYYMMDD_HHMMSS.json)")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := utils.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	store, closeStore, err := repository.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatalw("Failed to open store", "error", err)
	}
	defer closeStore()

	m := metrics.NewNop()
	credentials := service.NewCredentialStore(store.Users)
	sessions := service.NewSessionManager(store.Sessions, credentials, cfg.SessionDuration, logger, m)

	switch os.Args[1] {
	case "sweep":
		sweepCmd.Parse(os.Args[2:])
		resets := service.NewPasswordResetFlow(store.ResetTokens, store.Users, sessions, nil, cfg.ResetTokenTTL, logger, m)
		if err := handleSweep(ctx, sessions, resets); err != nil {
			logger.Fatalw("Sweep failed", "error", err)
		}

	case "export-users":
		exportCmd.Parse(os.Args[2:])
		users := service.NewUserService(store.Users, sessions, logger)
		exportService := service.NewExportService(users, cfg.DatabaseType, logger)
		if err := handleExport(ctx, exportService, *exportOutput); err != nil {
			logger.Fatalw("Export failed", "error", err)
		}

	default:
		printUsage()
		os.Exit(1)
	}
}

func handleSweep(ctx context.Context, sessions *service.SessionManager, resets *service.PasswordResetFlow) error {
	deletedSessions, err := sessions.Sweep(ctx)
	if err != nil {
		return err
	}
	deletedTokens, err := resets.Sweep(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d expired sessions and %d expired reset tokens\n", deletedSessions, deletedTokens)
	return nil
}

func handleExport(ctx context.Context, exportService *service.ExportService, outputPath string) error {
	// Generate default filename if not provided
	if outputPath == "" {
		timestamp := time.Now().Format("20060102_150405")
		outputPath = fmt.Sprintf("users_%s.json", timestamp)
	}

	// Ensure directory exists
	dir := filepath.Dir(outputPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	if err := exportService.Export(ctx, outputPath); err != nil {
		return err
	}

	fileInfo, err := os.Stat(outputPath)
	if err != nil {
		return err
	}
	fmt.Printf("Export complete! %s (%.2f KB)\n", outputPath, float64(fileInfo.Size())/1024)
	return nil
}

func printUsage() {
	fmt.Println("Classroom Maintenance Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  maintenance sweep                   Delete expired sessions and reset tokens")
	fmt.Println("  maintenance export-users [options]  Export users to a JSON file (no password hashes)")
	fmt.Println()
	fmt.Println("Export Options:")
	fmt.Println("  -output <file>    Output file path (default: users_YYYYMMDD_HHMMSS.json)")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DB_TYPE           Storage backend: mongo, sqlite, postgres or mysql (default: mongo)")
	fmt.Println("  MONGODB_URI       MongoDB connection URI")
	fmt.Println("  DB_PATH           SQLite database path (default: ./classroom.db)")
	fmt.Println("  DATABASE_URL      PostgreSQL or MySQL connection URL")
}
