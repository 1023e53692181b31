package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fightgen/pkg/auth"
	"fightgen/pkg/config"
	"fightgen/pkg/ui"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var showFormat string

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage fightgen configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (FIGHTGEN_*)
  - .env and ~/.fightgen.env files
  - Configuration file, YAML or TOML
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file with the defaults",
	Long: `Create a configuration file holding every option at its default value.

The file is written to '.fightgen.yaml' unless --config names another path.
A '.toml' extension selects TOML.`,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging all sources. The API key is masked.`,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Validate the merged configuration.

This command checks:
  - File syntax
  - Value ranges
  - Output and log paths
  - Whether an API key can be found`,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)

	showCmd.Flags().StringVar(&showFormat, "format", "yaml", "output format (yaml, toml)")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = ".fightgen.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		ui.PrintError("Configuration file already exists", path)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", path)
		return fmt.Errorf("refusing to overwrite %s", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Store an API key with 'fightgen auth login' or set FIGHTGEN_API_KEY")
	fmt.Println("2. Run 'fightgen config validate' to check the configuration")
	fmt.Println("3. Start generating with 'fightgen generate'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, globalFlags(cmd))
	if err != nil {
		return err
	}

	display := *cfg
	if display.Generator.APIKey != "" {
		display.Generator.APIKey = auth.MaskKey(display.Generator.APIKey)
	}

	var buf bytes.Buffer
	switch strings.ToLower(showFormat) {
	case "toml":
		err = toml.NewEncoder(&buf).Encode(display)
	case "yaml", "yml":
		err = yaml.NewEncoder(&buf).Encode(&display)
	default:
		return fmt.Errorf("unknown format %q", showFormat)
	}
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(buf.String())

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (FIGHTGEN_*, OPENAI_API_KEY)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (searched in default locations)")
	}
	fmt.Println("4. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		ui.PrintInfo("Validating configuration", configFile)
	}

	cfg, err := config.Load(configFile, globalFlags(cmd))
	if err != nil {
		ui.PrintError("Configuration validation failed", err)
		return errors.New("invalid configuration")
	}

	var warnings, problems []string

	if cfg.ValidateCredentials() != nil {
		found := false
		if manager, err := auth.NewManager(); err == nil {
			gen := cfg.Generator
			_, err := manager.Resolve(&gen)
			found = err == nil
		}
		if !found {
			warnings = append(warnings, "no API key configured; run 'fightgen auth login' or set FIGHTGEN_API_KEY")
		}
	}

	if err := os.MkdirAll(cfg.Output.Directory, 0755); err != nil {
		problems = append(problems, fmt.Sprintf("cannot create output directory: %v", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}
	if cfg.Batch.Size > cfg.Batch.TotalTarget {
		warnings = append(warnings, "batch size is larger than the total target")
	}
	if cfg.RateLimit.RequestsPerMinute == 0 {
		warnings = append(warnings, "rate limiting is disabled")
	}

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		return errors.New("invalid configuration")
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Model: %s (%s)\n", cfg.Generator.Model, cfg.Generator.BaseURL)
	fmt.Printf("  Batches: %d fights, target %d\n", cfg.Batch.Size, cfg.Batch.TotalTarget)
	fmt.Printf("  Retries: %d per batch, stop after %d abandoned rounds\n", cfg.Retry.MaxRetries, cfg.Retry.MaxAbandonedRounds)
	fmt.Printf("  Rate limit: %d requests/minute\n", cfg.RateLimit.RequestsPerMinute)
	fmt.Printf("  Output directory: %s\n", cfg.Output.Directory)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}
