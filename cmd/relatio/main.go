// -----------------------------------------------------------------------
// Last Modified: Friday, 8th November 2025 4:00:00 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/relatio/internal/common"
	"github.com/ternarybob/relatio/internal/interfaces"
	"github.com/ternarybob/relatio/internal/services/cache"
	"github.com/ternarybob/relatio/internal/services/llm"
	"github.com/ternarybob/relatio/internal/services/pipeline"
	"github.com/ternarybob/relatio/internal/storage"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	// Command-line flags
	configFiles  configPaths // Multiple -config flags supported
	inputFile    = flag.String("tickets", "", "Ticket export CSV path (overrides config)")
	startDate    = flag.String("start", "", "Analysis window start date, YYYY-MM-DD (overrides config)")
	endDate      = flag.String("end", "", "Analysis window end date, YYYY-MM-DD (overrides config)")
	historyCount = flag.Int("history", 0, "Print the N most recent run ledger entries and exit")
	schedule     = flag.String("schedule", "", "Cron schedule for unattended runs, six-field with seconds (enables scheduler)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")

	// Global state
	config *common.Config
	logger arbor.ILogger
)

func init() {
	// Register custom flag for multiple config files
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	// Crash protection: panics produce a crash report file instead of a bare
	// stack on stderr
	common.InstallCrashHandler("./logs")
	defer common.RecoverWithCrashFile()

	// Parse command-line flags
	flag.Parse()

	// Handle version flag
	if *showVersion || *showVersionV {
		fmt.Printf("Relatio version %s\n", common.LoadVersionFromFile())
		os.Exit(0)
	}

	// Startup sequence (REQUIRED ORDER):
	// 1. Load config (defaults -> file1 -> file2 -> ... -> env)
	// 2. Apply CLI overrides (highest priority)
	// 3. Initialize logger
	// 4. Print banner
	var err error

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("relatio.toml"); err == nil {
			configFiles = append(configFiles, "relatio.toml")
		} else if _, err := os.Stat("deployments/local/relatio.toml"); err == nil {
			// Fallback: check deployments/local for users running from project root
			configFiles = append(configFiles, "deployments/local/relatio.toml")
		}
	}

	// 1. Load configuration (default -> file1 -> file2 -> ... -> env -> CLI)
	// Later config files override earlier ones
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration files")
		os.Exit(1)
	}

	// 2. Apply command-line flag overrides (highest priority)
	common.ApplyFlagOverrides(config, *inputFile, *startDate, *endDate)
	if *schedule != "" {
		config.Scheduler.Enabled = true
		config.Scheduler.Schedule = *schedule
	}

	if err := config.Validate(); err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Err(err).Msg("Invalid configuration")
		os.Exit(1)
	}

	// 3. Initialize logger with final configuration
	logger = common.InitLogger(config)

	// 4. Print banner
	common.PrintBanner(common.LoadVersionFromFile())

	logger.Info().
		Strs("config_files", configFiles).
		Str("input_file", config.Pipeline.InputFile).
		Str("provider", string(config.LLM.DefaultProvider)).
		Msg("Application configuration loaded")

	// Run ledger storage
	storageManager, err := storage.NewStorageManager(logger, config)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer storageManager.Close()

	// Ledger-only mode: print recent runs and exit
	if *historyCount > 0 {
		printHistory(storageManager, *historyCount)
		return
	}

	// Result cache over the filesystem
	resultCache, err := cache.NewStore(config.Storage.Filesystem.Analyses, config.Storage.Filesystem.Summaries, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize result cache")
	}

	// Model client
	llmService, err := llm.NewLLMService(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize model client")
	}
	defer llmService.Close()

	// Rejected credentials abort here, before any per-ticket work starts
	healthCtx, healthCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := llmService.HealthCheck(healthCtx); err != nil {
		healthCancel()
		logger.Fatal().Err(err).Msg("Model provider health check failed")
	}
	healthCancel()

	pipe, err := pipeline.New(config, llmService, resultCache, storageManager.RunStorage(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize pipeline")
	}

	if config.Scheduler.Enabled {
		runScheduled(pipe)
		return
	}

	runOnce(pipe)
}

// runOnce executes a single pipeline run, cancelable with Ctrl+C.
func runOnce(pipe *pipeline.Pipeline) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Warn().Msg("Interrupt signal received, canceling run")
		cancel()
	}()

	result, err := pipe.Run(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("Pipeline run failed")
	}

	logger.Info().
		Str("run_id", result.RunID).
		Str("period_start", result.Period.Start).
		Str("period_end", result.Period.End).
		Int("tickets", result.TicketCount).
		Int("analyses", result.AnalysisCount).
		Int("summaries", result.SummaryCount).
		Int("fallbacks", result.FallbackCount).
		Dur("elapsed", result.Elapsed).
		Msg("Pipeline run completed")

	fmt.Printf("Report written to %s\n", result.ReportMarkdown)
}

// runScheduled starts the cron scheduler and blocks until interrupted.
func runScheduled(pipe *pipeline.Pipeline) {
	scheduler := pipeline.NewScheduler(pipe, logger)
	if err := scheduler.Start(config.Scheduler.Schedule); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	logger.Info().Msg("Running in scheduled mode - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Interrupt signal received")
	scheduler.Stop()
}

// printHistory lists the most recent run ledger entries.
func printHistory(storageManager interfaces.StorageManager, limit int) {
	runs, err := storageManager.RunStorage().ListRecentRuns(context.Background(), limit)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to list runs")
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded")
		return
	}

	for _, run := range runs {
		fmt.Printf("%s  %s  %s..%s  tickets=%d fallbacks=%d  %s\n",
			run.StartedAt.Format("2006-01-02 15:04:05"),
			run.Status,
			run.PeriodStart,
			run.PeriodEnd,
			run.TicketCount,
			run.FallbackCount,
			run.ID,
		)
	}
}
