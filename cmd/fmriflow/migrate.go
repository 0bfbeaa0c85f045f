package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/BaSui01/fmriflow/internal/migration"
)

// =============================================================================
// Database Migration Commands
// =============================================================================

// runMigrate handles the migrate command and its subcommands
func runMigrate(ctx context.Context, args []string) error {
	if len(args) < 1 {
		printMigrateUsage()
		return fmt.Errorf("migrate: subcommand is required")
	}

	subcommand := args[0]
	subargs := args[1:]

	// goto/force/steps take a leading numeric argument
	var number string
	switch subcommand {
	case "goto", "force", "steps":
		if len(subargs) < 1 {
			return fmt.Errorf("usage: fmriflow migrate %s <n>", subcommand)
		}
		number, subargs = subargs[0], subargs[1:]
	case "up", "down", "status", "version":
	case "help", "-h", "--help":
		printMigrateUsage()
		return nil
	default:
		printMigrateUsage()
		return fmt.Errorf("unknown migrate subcommand: %s", subcommand)
	}

	fs := newFlagSet("migrate " + subcommand)
	migrator, err := createMigrator(fs, subargs)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer migrator.Close()

	cli := migration.NewCLI(migrator)

	switch subcommand {
	case "up":
		return cli.RunUp(ctx)
	case "down":
		return cli.RunDown(ctx)
	case "status":
		return cli.RunStatus(ctx)
	case "version":
		return cli.RunVersion(ctx)
	case "goto":
		version, err := strconv.ParseUint(number, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version number: %s", number)
		}
		return cli.RunGoto(ctx, uint(version))
	case "force":
		version, err := strconv.ParseInt(number, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version number: %s", number)
		}
		return cli.RunForce(ctx, int(version))
	default: // steps
		n, err := strconv.Atoi(number)
		if err != nil {
			return fmt.Errorf("invalid step count: %s", number)
		}
		return cli.RunSteps(ctx, n)
	}
}

// printMigrateUsage prints the usage information for migrate command
func printMigrateUsage() {
	fmt.Println(`Database Migration Commands

Usage:
  fmriflow migrate <subcommand> [options]

Subcommands:
  up         Apply all pending migrations
  down       Rollback the last migration
  steps <n>  Apply (n > 0) or rollback (n < 0) n migrations
  status     Show migration status
  version    Show current migration version
  goto <v>   Migrate to a specific version
  force <v>  Force set migration version (use with caution)
  help       Show this help message

Options:
  --config <path>     Path to configuration file (YAML)
  --db-type <type>    Database type: postgres, mysql, sqlite (default: from config)
  --db-url <url>      Database connection URL (default: from config)
  -v                  Log migration progress to stderr

Examples:
  fmriflow migrate up
  fmriflow migrate up --config /etc/fmriflow/config.yaml
  fmriflow migrate steps -1
  fmriflow migrate status
  fmriflow migrate goto 1
  fmriflow migrate force 0`)
}

// createMigrator creates a migrator from command line flags
func createMigrator(fs *flag.FlagSet, args []string) (*migration.DefaultMigrator, error) {
	configPath := fs.String("config", "", "Path to config file")
	dbType := fs.String("db-type", "", "Database type (postgres, mysql, sqlite)")
	dbURL := fs.String("db-url", "", "Database connection URL")
	verbose := fs.Bool("v", false, "Verbose logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	logger := commandLogger(*verbose)

	// If db-type and db-url are provided, use them directly
	if *dbType != "" && *dbURL != "" {
		return migration.NewMigratorFromURL(*dbType, *dbURL, logger)
	}

	// Otherwise, load from config
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return nil, err
	}

	// Override database type if specified
	if *dbType != "" {
		cfg.Database.Driver = *dbType
	}

	return migration.NewMigratorFromDatabaseConfig(cfg.Database, logger)
}
