package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "talefetch",
	Short: "Audiobook acquisition pipeline",
	Long: `talefetch - audiobook acquisition pipeline

Watches the download engine, decrypts and tags finished downloads,
validates their integrity, and files them into your library.

Run 'talefetch serve' to start the daemon.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: discovered)")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("talefetch {{.Version}}\n")
}
