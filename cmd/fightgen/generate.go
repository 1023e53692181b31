package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fightgen/pkg/auth"
	"fightgen/pkg/config"
	"fightgen/pkg/generator"
	"fightgen/pkg/logger"
	"fightgen/pkg/metrics"
	"fightgen/pkg/orchestrator"
	"fightgen/pkg/ratelimit"
	"fightgen/pkg/report"
	"fightgen/pkg/storage"
	"fightgen/pkg/ui"
	"fightgen/pkg/ui/tui"

	"github.com/spf13/cobra"
)

var (
	// Generate command flags
	batchSize     int
	totalTarget   int
	outputDir     string
	model         string
	baseURL       string
	apiKey        string
	accountName   string
	maxRetries    int
	maxAbandoned  int
	rateLimit     int
	rejectDupes   bool
	forceRestart  bool
	useTUI        bool
	dryRun        bool
	notifications bool
)

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate fight scenarios until the target is reached",
	Long: `Generate fight scenarios in batches until --total new fights have been
accepted in this run.

Each batch is validated as a whole, appended to the JSON and CSV history and
checkpointed. A failed batch is retried after 2s, 4s and 8s; after that the
round is abandoned and the next one starts. Interrupting the run (Ctrl+C) is
safe: the next run continues after the last stored fight.

The API key is looked up in this order:
  - --api-key flag
  - config file and environment (FIGHTGEN_API_KEY, OPENAI_API_KEY)
  - stored accounts (see 'fightgen auth login')`,
	Example: `  # Generate 10,000 fights in batches of 50
  fightgen generate

  # Small run into a separate directory
  fightgen generate --total 200 --batch-size 20 --output ./arena

  # Start over, keeping a backup of the previous files
  fightgen generate --force-restart

  # Exercise the pipeline without calling the API
  fightgen generate --dry-run --total 100

  # Interactive terminal UI
  fightgen generate --tui`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	f := generateCmd.Flags()
	f.IntVar(&batchSize, "batch-size", 50, "fights requested per batch")
	f.IntVar(&totalTarget, "total", 10000, "fights to generate in this run")
	f.StringVarP(&outputDir, "output", "o", "", "output directory (default: ./output)")
	f.StringVar(&model, "model", "", "model name (default: gpt-4)")
	f.StringVar(&baseURL, "base-url", "", "OpenAI compatible API base URL")
	f.StringVar(&apiKey, "api-key", "", "API key (prefer 'fightgen auth login' or FIGHTGEN_API_KEY)")
	f.StringVarP(&accountName, "account", "a", "", "use a specific stored account")
	f.IntVar(&maxRetries, "max-retries", 3, "retries per batch before the round is abandoned")
	f.IntVar(&maxAbandoned, "max-abandoned-rounds", 10, "stop after this many consecutive abandoned rounds (0 = never)")
	f.IntVar(&rateLimit, "rate-limit", 60, "maximum requests per minute (0 = unlimited)")
	f.BoolVar(&rejectDupes, "reject-duplicate-facts", false, "drop fights whose fact was already used for the winner")
	f.BoolVar(&forceRestart, "force-restart", false, "back up and clear existing output before generating")
	f.BoolVar(&useTUI, "tui", false, "use interactive terminal UI with real-time progress")
	f.BoolVar(&dryRun, "dry-run", false, "use a built-in synthetic generator instead of the API")
	f.BoolVar(&notifications, "notify", true, "send notifications on completion and failure")
}

// generateFlags collects explicitly set flags for config.MergeCommandLineFlags
func generateFlags(cmd *cobra.Command) map[string]interface{} {
	flags := globalFlags(cmd)
	fs := cmd.Flags()

	strs := map[string]string{
		"output": outputDir, "model": model, "base-url": baseURL,
		"api-key": apiKey, "account": accountName,
	}
	for name, v := range strs {
		if fs.Changed(name) {
			flags[name] = v
		}
	}

	ints := map[string]int{
		"batch-size": batchSize, "total": totalTarget, "max-retries": maxRetries,
		"max-abandoned-rounds": maxAbandoned, "rate-limit": rateLimit,
	}
	for name, v := range ints {
		if !fs.Changed(name) {
			continue
		}
		if name == "rate-limit" {
			name = "requests-per-minute"
		}
		flags[name] = v
	}

	if fs.Changed("reject-duplicate-facts") {
		flags["reject-duplicate-facts"] = rejectDupes
	}
	if fs.Changed("notify") {
		flags["notify"] = notifications
	}
	return flags
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, generateFlags(cmd))
	if err != nil {
		return err
	}

	if useTUI && cfg.Logging.File == "" {
		// console logs would tear the TUI
		cfg.Logging.Level = "error"
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()

	client, err := newClient(cfg, log)
	if err != nil {
		return err
	}

	store, err := storage.NewManager(storage.PathsFromConfig(cfg.Output), log)
	if err != nil {
		return err
	}
	if forceRestart {
		if err := store.Reset(); err != nil {
			return err
		}
		ui.PrintWarning("Existing output backed up and cleared")
	}

	notifier := newNotifier(cfg.Notifications)
	rec := metrics.New()

	orch := orchestrator.New(client, store, orchestrator.OptionsFromConfig(cfg), log)
	orch.SetLimiter(ratelimit.New(cfg.RateLimit.RequestsPerMinute))
	orch.SetMetrics(rec)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		res    *orchestrator.Result
		runErr error
	)
	if useTUI {
		res, runErr = runWithTUI(ctx, orch)
	} else {
		ui.PrintLogo()
		ui.PrintInfo("Model", client.Model())
		ui.PrintInfo("Output", cfg.Output.Directory)

		display := ui.NewProgressDisplay(cfg.Batch.TotalTarget, strings.EqualFold(cfg.Logging.Level, "debug"))
		orch.SetDisplay(withMilestones(display, notifier, cfg.Notifications.ProgressInterval))
		res, runErr = orch.Run(ctx)
	}

	if res != nil {
		writeArtifacts(cfg, res, rec, log)
	}

	switch {
	case runErr == nil:
		if notifier != nil && cfg.Notifications.OnComplete {
			notifier.SendSuccess("Generation complete", fmt.Sprintf("%d fights generated, last #%d", res.Accepted, res.State.LastID))
		}
		return nil
	case errors.Is(runErr, context.Canceled):
		accepted := 0
		if res != nil {
			accepted = res.Accepted
		}
		ui.PrintWarning("Interrupted", fmt.Sprintf("%d fights saved, rerun to continue", accepted))
		return nil
	default:
		if notifier != nil && cfg.Notifications.OnError {
			notifier.SendError("Generation failed", runErr.Error())
		}
		return runErr
	}
}

// newClient builds the generation client, resolving the API key from stored
// accounts when flags, config and environment have none.
func newClient(cfg *config.Config, log logger.Logger) (generator.Client, error) {
	if dryRun {
		log.Info("Dry run, using the synthetic generator")
		return generator.NewSynthetic(), nil
	}

	if cfg.ValidateCredentials() != nil {
		manager, err := auth.NewManager()
		if err != nil {
			log.WithError(err).Warn("Credential store unavailable")
		} else if source, err := manager.Resolve(&cfg.Generator); err == nil {
			log.WithField("source", source).Info("Using stored credentials")
		}
	}
	if err := cfg.ValidateCredentials(); err != nil {
		return nil, err
	}

	client, err := generator.NewOpenAI(cfg.Generator, log)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func newNotifier(cfg config.NotificationConfig) *ui.Notifier {
	kind := strings.ToLower(cfg.NotificationType)
	if !cfg.Enabled || kind == "none" {
		return nil
	}
	return ui.NewNotifier(kind == "desktop")
}

// runWithTUI runs the orchestrator behind the bubbletea view. Quitting the
// view cancels the run.
func runWithTUI(ctx context.Context, orch *orchestrator.Orchestrator) (*orchestrator.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	terminal := tui.NewTUI()
	orch.SetDisplay(terminal)

	tuiDone := make(chan error, 1)
	go func() {
		tuiDone <- terminal.Run()
		cancel()
	}()

	res, err := orch.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		terminal.LogError("%v", err)
		// leave the failure on screen briefly
		time.Sleep(2 * time.Second)
	}
	terminal.Stop()
	if tuiErr := <-tuiDone; tuiErr != nil {
		logger.WithError(tuiErr).Error("TUI failed")
	}
	return res, err
}

// writeArtifacts writes the report, chart and metrics. Failures are logged.
func writeArtifacts(cfg *config.Config, res *orchestrator.Result, rec *metrics.Recorder, log logger.Logger) {
	r := report.Build(res.State, res.Accepted, res.Elapsed)

	if err := r.WriteJSON(cfg.Output.Path(cfg.Output.ReportFile)); err != nil {
		log.WithError(err).Error("Failed to write report")
	}
	if cfg.Output.ChartFile != "" {
		if err := report.WriteChart(cfg.Output.Path(cfg.Output.ChartFile), res.State, 0); err != nil {
			log.WithError(err).Error("Failed to write chart")
		}
	}
	if cfg.Output.MetricsFile != "" {
		if err := rec.WriteTextfile(cfg.Output.Path(cfg.Output.MetricsFile)); err != nil {
			log.WithError(err).Error("Failed to write metrics")
		}
	}

	if !ui.IsQuietMode() {
		fmt.Fprintln(ui.Output)
		_ = r.Render(ui.Output)
	}
}

// milestoneDisplay raises a notification every n accepted batches
type milestoneDisplay struct {
	ui.Display
	notifier *ui.Notifier
	every    int
	batches  int
	accepted int
}

func withMilestones(d ui.Display, n *ui.Notifier, every int) ui.Display {
	if n == nil || every <= 0 {
		return d
	}
	return &milestoneDisplay{Display: d, notifier: n, every: every}
}

func (m *milestoneDisplay) BatchAccepted(accepted, duplicates, lastID int) {
	m.Display.BatchAccepted(accepted, duplicates, lastID)
	m.batches++
	m.accepted += accepted
	if m.batches%m.every == 0 {
		m.notifier.SendNotification("fightgen progress", fmt.Sprintf("%d fights this run, last #%d", m.accepted, lastID))
	}
}
