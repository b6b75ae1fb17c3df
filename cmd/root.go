// =============================================================================
// Invoice Batch Import - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every subcommand
// shares the configuration and logger built here.
//
// COBRA CLI STRUCTURE:
//   rootCmd (invoice-import)
//   ├── importCmd  (invoice-import import [files...])
//   ├── serveCmd   (invoice-import serve)
//   └── versionCmd (invoice-import version)
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/invoice-batch-import/internal/config"
	"github.com/ginjaninja78/invoice-batch-import/internal/logger"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose forces the development logger, which logs at debug level.
var verbose bool

// appConfig and appLog are set by the root command before any subcommand
// runs.
var (
	appConfig *config.Config
	appLog    *logger.Logger
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "invoice-import",
	Short: "Invoice Batch Import - Create invoices from CSV and XLSX line-item files",
	Long: `Invoice Batch Import reads a flat file of invoice line items, groups the
rows into invoices, resolves each customer by name and creates every invoice
independently. One bad invoice never stops the rest of the batch; the result
is a report listing every invoice as created or failed.

Input columns:
  InvoiceNumber, CustomerName, IssueDate, DueDate, Description, Quantity, UnitPrice

Example Usage:
  invoice-import import january.csv          # Import one file and print the report
  invoice-import import --dry-run batch.xlsx # Show the invoices without creating them
  invoice-import import                      # Import everything in the inbox directory
  invoice-import serve                       # Start the HTTP upload endpoint`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		mode := cfg.Log.Mode
		if verbose {
			mode = "development"
		}
		log, err := logger.New(mode)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		appConfig = cfg
		appLog = log
		return nil
	},

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if appLog != nil {
			appLog.Sync()
		}
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the CLI. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the configuration file; a missing file uses defaults",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}
