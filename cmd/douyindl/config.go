package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"douyindl/pkg/auth"
	"douyindl/pkg/config"
	"douyindl/pkg/ui"
)

var forceInit bool

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage douyindl configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (DOUYINDL_*)
  - .env file
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	Long: `Write a configuration file with every option set to its default.

The file is written to $XDG_CONFIG_HOME/douyindl/config.yaml unless a
different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration including values from all sources.

The cookie is masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the configuration for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Value types and ranges
  - Saved user URLs
  - Path accessibility`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)

	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = config.DefaultPath()
	}

	if _, err := os.Stat(configPath); err == nil && !forceInit {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Fprintln(ui.Output, "\nUse --force to overwrite it.")
		return fmt.Errorf("refusing to overwrite %s", configPath)
	}

	if err := config.DefaultConfig().Save(configPath); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Fprintln(ui.Output, "\nNext steps:")
	fmt.Fprintln(ui.Output, "1. Adjust output.base_directory and download.threads if needed")
	fmt.Fprintln(ui.Output, "2. Store a browser cookie with 'douyindl auth login'")
	fmt.Fprintln(ui.Output, "3. Start downloading with 'douyindl download <profile-url>'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	// Create a sanitized version for display
	display := *cfg
	if display.Douyin.Cookie != "" {
		display.Douyin.Cookie = auth.SanitizeAccount(&auth.Account{Cookie: display.Douyin.Cookie}).Cookie
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Fprintln(ui.Output)
	fmt.Fprint(ui.Output, string(data))

	fmt.Fprintln(ui.Output, "\nConfiguration sources (in order of priority):")
	fmt.Fprintln(ui.Output, "1. Command line flags")
	fmt.Fprintln(ui.Output, "2. Environment variables (DOUYINDL_*)")
	path := config.ResolvePath(configFile)
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(ui.Output, "3. Configuration file: %s\n", path)
	} else {
		fmt.Fprintln(ui.Output, "3. Configuration file: (none)")
	}
	fmt.Fprintln(ui.Output, "4. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := config.ResolvePath(configFile)
	if _, err := os.Stat(path); err != nil {
		ui.PrintError("No configuration file found", "create one with 'douyindl config init'")
		return err
	}

	ui.PrintInfo("Validating configuration", path)

	cfg, err := config.Load(path, nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		return err
	}

	var problems []string
	if err := os.MkdirAll(cfg.Output.BaseDirectory, 0755); err != nil {
		problems = append(problems, fmt.Sprintf("Cannot create output directory: %v", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("Cannot create log directory: %v", err))
		}
	}

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:")
		for _, p := range problems {
			fmt.Fprintf(ui.Output, "  - %s\n", p)
		}
		return fmt.Errorf("%d configuration problems", len(problems))
	}

	if cfg.Douyin.Cookie != "" && !auth.HasSession(cfg.Douyin.Cookie) {
		ui.PrintWarning("Configured cookie has no sessionid, listings may be rejected")
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Fprintln(ui.Output, "\nConfiguration summary:")
	fmt.Fprintf(ui.Output, "  Output directory: %s\n", cfg.Output.BaseDirectory)
	fmt.Fprintf(ui.Output, "  Threads: %d\n", cfg.Download.Threads)
	fmt.Fprintf(ui.Output, "  Max retries: %d, retry rounds: %d\n", cfg.Download.MaxRetries, cfg.Download.AutoRetryRounds)
	fmt.Fprintf(ui.Output, "  Resume mode: %s\n", cfg.Output.ResumeMode)
	fmt.Fprintf(ui.Output, "  Saved users: %d\n", len(cfg.Users))
	fmt.Fprintf(ui.Output, "  Log level: %s\n", cfg.Logging.Level)
	return nil
}
