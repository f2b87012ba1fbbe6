package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/talefetch/talefetch/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default config file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultPath()
		if len(args) > 0 {
			path = args[0]
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Validate a config file",
	Long:  "Checks TOML syntax, required fields, and environment variable substitution without starting the daemon.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigValidate,
}

var configShowCmd = &cobra.Command{
	Use:   "show [path]",
	Short: "Show the effective configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadFrom(args)
		if err != nil {
			return err
		}
		fmt.Printf("Configuration (%s):\n", path)
		printConfigSummary(cfg)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
}

func loadFrom(args []string) (*config.Config, string, error) {
	path := configPath
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		discovered, err := config.Discover()
		if err != nil {
			return nil, "", err
		}
		path = discovered
	}
	cfg, err := config.Load(path)
	return cfg, path, err
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadFrom(args)
	if err != nil {
		var configErr *config.ConfigError
		if errors.As(err, &configErr) {
			printConfigErrors(configErr)
			return fmt.Errorf("configuration invalid")
		}
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Printf("Validating %s...\n\n", path)
	if errs := cfg.Validate(); len(errs) > 0 {
		printConfigErrors(&config.ConfigError{Path: path, Errors: errs})
		return fmt.Errorf("configuration invalid")
	}

	printConfigSummary(cfg)
	fmt.Println("\nConfiguration valid!")
	return nil
}

func printConfigErrors(e *config.ConfigError) {
	if len(e.Missing) > 0 {
		fmt.Println("Missing environment variables:")
		for _, m := range e.Missing {
			fmt.Printf("  - %s\n", m)
		}
		fmt.Println()
	}

	if len(e.Errors) > 0 {
		fmt.Println("Validation errors:")
		for _, err := range e.Errors {
			fmt.Printf("  - %s\n", err)
		}
		fmt.Println()
	}
}

func printConfigSummary(cfg *config.Config) {
	fmt.Println("Configuration Summary:")
	fmt.Printf("  Listen:     %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("  Log level:  %s\n", cfg.Server.LogLevel)
	fmt.Printf("  Database:   %s\n", cfg.Database.Path)
	fmt.Printf("  Engine:     %s\n", cfg.Engine.URL)
	fmt.Printf("  License:    %s\n", cfg.License.URL)
	fmt.Printf("  Metadata:   %s\n", cfg.Metadata.URL)
	fmt.Printf("  Library:    %s (naming: %s, cover art: %t)\n",
		cfg.Library.Root, cfg.Library.Naming, cfg.Library.CoverArt)
	fmt.Printf("  Staging:    %s\n", cfg.Workflow.StagingDir)
	if cfg.Network.CheckURL != "" {
		fmt.Printf("  Network:    check %s every %ds (restricted only: %t)\n",
			cfg.Network.CheckURL, cfg.Network.CheckInterval, cfg.Network.RestrictedOnly)
	}
}
