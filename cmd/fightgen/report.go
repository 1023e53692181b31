package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"fightgen/pkg/checkpoint"
	"fightgen/pkg/config"
	"fightgen/pkg/logger"
	"fightgen/pkg/report"
	"fightgen/pkg/storage"
	"fightgen/pkg/ui"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	reportJSON  bool
	reportChart bool
	reportTop   int
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarise the generated fights",
	Long: `Summarise the fights stored in the output directory: totals, species
usage and collected facts. Run time and per-run counts come from the last
generation_report.json when present.`,
	Example: `  # Table summary
  fightgen report

  # Machine readable summary
  fightgen report --json

  # Rebuild the species usage chart with the top 30 species
  fightgen report --chart --top 30`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (default: ./output)")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "print the report as JSON")
	reportCmd.Flags().BoolVar(&reportChart, "chart", false, "rewrite the species usage chart")
	reportCmd.Flags().IntVar(&reportTop, "top", 20, "species shown in the chart")
}

func runReport(cmd *cobra.Command, args []string) error {
	flags := globalFlags(cmd)
	if cmd.Flags().Changed("output") {
		flags["output"] = outputDir
	}
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	store, err := storage.NewManager(storage.PathsFromConfig(cfg.Output), logger.GetLogger())
	if err != nil {
		return err
	}
	state, err := store.Load()
	if err != nil {
		return err
	}

	var last report.Report
	reportPath := cfg.Output.Path(cfg.Output.ReportFile)
	if data, err := os.ReadFile(reportPath); err == nil {
		if last, err = report.Load(data); err != nil {
			ui.PrintWarning("Ignoring unreadable report", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read report: %w", err)
	}

	r := report.Build(state, last.FightsThisRun, last.Elapsed())

	if reportChart {
		chartPath := cfg.Output.Path(cfg.Output.ChartFile)
		if err := report.WriteChart(chartPath, state, reportTop); err != nil {
			return err
		}
		ui.PrintSuccess("Chart written: " + chartPath)
	}

	if reportJSON {
		encoder := json.NewEncoder(ui.Output)
		encoder.SetIndent("", "  ")
		return encoder.Encode(r)
	}

	if state.LastID == 0 {
		ui.PrintInfo("No fights yet", "run 'fightgen generate' first")
		return nil
	}
	if err := r.Render(ui.Output); err != nil {
		return err
	}
	showCheckpoint(cfg)
	return nil
}

// showCheckpoint prints what the last checkpoint covers and when it was saved
func showCheckpoint(cfg *config.Config) {
	cp := checkpoint.NewManager(cfg.Output.Path(cfg.Output.CheckpointFile), logger.GetLogger())
	info, err := cp.GetCheckpointInfo()
	switch {
	case err != nil:
		ui.PrintWarning("Checkpoint unreadable", err)
	case info == nil:
		ui.PrintInfo("Checkpoint", "none yet")
	default:
		ui.PrintInfo("Checkpoint", fmt.Sprintf("fight #%s, %d species, %d facts, saved %s",
			humanize.Comma(int64(info.LastID)), info.Species, info.Facts, humanize.Time(info.UpdatedAt)))
	}
}
