package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pulsefit/livecoach/cmd/livecoach/internal/config"
)

var (
	// Global flags
	verbose bool

	// Global configuration (loaded at init time)
	globalConfig  *config.Config
	configLoadErr error
)

var rootCmd = &cobra.Command{
	Use:   "livecoach",
	Short: "Real-time AI workout coaching from the terminal",
	Long: `livecoach streams microphone audio, camera frames with pose landmarks
and physiological telemetry to a live coaching model, and plays the
coach's spoken replies back without gaps.

Configuration is stored in the OS config directory:
  macOS:   ~/Library/Application Support/livecoach/config.yaml
  Linux:   ~/.config/livecoach/config.yaml
  Windows: %AppData%/livecoach/config.yaml

Examples:
  # Run against the Gemini Live API
  livecoach run

  # Run against a local development server
  livecoach run --server ws://localhost:8700/live

  # Review and export past sessions
  livecoach sessions list
  livecoach sessions export --all`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func initConfig() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load()
	if err != nil {
		// Deferred reporting: commands that need config get a clear error
		// via GetConfig, while commands like 'livecoach version' still run.
		configLoadErr = err
		return
	}
	globalConfig = cfg
}

// GetConfig returns the global configuration.
func GetConfig() (*config.Config, error) {
	if globalConfig == nil {
		if configLoadErr != nil {
			return nil, fmt.Errorf("config not available: %w", configLoadErr)
		}
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("config not available: %w", err)
		}
		globalConfig = cfg
	}
	return globalConfig, nil
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return verbose
}
