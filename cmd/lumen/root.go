package main

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lumenlabs/lumen/internal/config"
	"github.com/lumenlabs/lumen/internal/logging"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "lumen",
	Short: "Lumen is a personal AI agent engine",
	Long: "Lumen runs a personal AI agent: a tool-using turn loop, durable\n" +
		"conversations, and a calendar scheduler that lets the agent act on its own.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env is optional; real env vars win
		_ = godotenv.Load()
		if !verbose {
			logging.Disable()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $HOME/.lumen/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
}

// loadConfig resolves the config path and loads it
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, ".lumen", "config.yaml")
	}
	return config.Load(path)
}
