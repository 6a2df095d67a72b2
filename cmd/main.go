package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"neotransfer/internal/app"
	"neotransfer/internal/config"
	"neotransfer/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "neotransfer",
	Short: "Copy labeled graph data between Neo4j instances",
	Long: `A batched graph transfer tool between Neo4j instances with identifier
remapping, timestamp tagging for undo, optional target reset, a run journal
and progress monitoring.`,
	RunE: runTransfer,
}

var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Delete the nodes created by a previous tagged transfer",
	RunE:  runUndo,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Wipe the target database (constraints, indexes, all data)",
	RunE:  runReset,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List labels and relationship types on the source",
	RunE:  runInspect,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent transfer runs from the journal",
	RunE:  runHistory,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./config.yaml)")

	addConnectionFlags := func(cmd *cobra.Command) {
		cmd.Flags().String("src-uri", "", "Source Neo4j URI (e.g. neo4j://localhost:7687)")
		cmd.Flags().String("src-username", "neo4j", "Source username")
		cmd.Flags().String("src-password", "", "Source password")
		cmd.Flags().String("src-database", "", "Source database name")

		cmd.Flags().String("dst-uri", "", "Target Neo4j URI")
		cmd.Flags().String("dst-username", "neo4j", "Target username")
		cmd.Flags().String("dst-password", "", "Target password")
		cmd.Flags().String("dst-database", "", "Target database name")

		cmd.Flags().String("log-level", "info", "Log level (debug/info/warn/error)")
		cmd.Flags().String("journal", "./neotransfer.db", "Run journal database file")
	}

	addConnectionFlags(rootCmd)
	rootCmd.Flags().StringSlice("labels", nil, "Node labels to copy (default: all)")
	rootCmd.Flags().StringSlice("types", nil, "Relationship types to copy (default: all)")
	rootCmd.Flags().String("timestamp-key", "", "Property key for the transfer timestamp tag")
	rootCmd.Flags().Bool("no-tag", false, "Disable timestamp tagging (transfer cannot be undone)")
	rootCmd.Flags().String("timestamp", "", "Override the transfer timestamp (RFC 3339)")
	rootCmd.Flags().Int("batch-size", 1000, "Records per page and per batched statement")
	rootCmd.Flags().Bool("reset", false, "Wipe the target before copying")
	rootCmd.Flags().Int("concurrency", 1, "Concurrent relationship batch uploads")
	rootCmd.Flags().Bool("dry-run", false, "Count matching records without copying")
	rootCmd.Flags().String("metrics-addr", "", "Address to serve Prometheus metrics on (empty disables)")
	rootCmd.Flags().Bool("show-progress", true, "Show progress display")

	addConnectionFlags(undoCmd)
	undoCmd.Flags().String("timestamp", "", "Tag timestamp of the transfer to undo")
	undoCmd.Flags().String("timestamp-key", "", "Property key the tag was written under")
	undoCmd.Flags().Bool("last", false, "Undo the most recent tagged run in the journal")

	addConnectionFlags(resetCmd)
	resetCmd.Flags().Bool("force", false, "Skip the confirmation prompt")
	resetCmd.Flags().Int("batch-size", 1000, "Nodes deleted per batch")

	addConnectionFlags(inspectCmd)
	addConnectionFlags(historyCmd)
	historyCmd.Flags().Int("limit", 20, "Number of runs to show")

	rootCmd.AddCommand(undoCmd, resetCmd, inspectCmd, historyCmd)
}

// setup loads config, builds the logger and the application.
func setup(cmd *cobra.Command) (*app.App, *zap.Logger, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	application, err := app.New(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create application: %w", err)
	}
	return application, log, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(log *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("Received shutdown signal, gracefully stopping...")
		cancel()
	}()

	return ctx, cancel
}

func runTransfer(cmd *cobra.Command, args []string) error {
	application, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer application.Close()

	ctx, cancel := signalContext(log)
	defer cancel()

	return application.RunTransfer(ctx)
}

func runUndo(cmd *cobra.Command, args []string) error {
	application, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer application.Close()

	timestamp, _ := cmd.Flags().GetString("timestamp")
	last, _ := cmd.Flags().GetBool("last")
	if timestamp == "" && !last {
		return fmt.Errorf("either --timestamp or --last is required")
	}

	ctx, cancel := signalContext(log)
	defer cancel()

	return application.Undo(ctx, timestamp, last)
}

func runReset(cmd *cobra.Command, args []string) error {
	application, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer application.Close()

	force, _ := cmd.Flags().GetBool("force")
	if !force {
		fmt.Print("This wipes the target database entirely. Type 'yes' to continue: ")
		var answer string
		fmt.Scanln(&answer)
		if answer != "yes" {
			fmt.Println("aborted")
			return nil
		}
	}

	ctx, cancel := signalContext(log)
	defer cancel()

	return application.Reset(ctx)
}

func runInspect(cmd *cobra.Command, args []string) error {
	application, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer application.Close()

	ctx, cancel := signalContext(log)
	defer cancel()

	return application.Inspect(ctx)
}

func runHistory(cmd *cobra.Command, args []string) error {
	application, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer application.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	return application.History(limit)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
