// Command chatstream consumes chat reply streams: it serves a local API for
// UI layers, asks one-off questions from the terminal, and replays captured
// streams through the decoder and reducer.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/namikmesic/chatstream/internal/chat"
	"github.com/namikmesic/chatstream/internal/config"
)

var (
	cfg     *config.Config
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "chatstream",
	Short: "Streaming chat reply consumer",
	Long: `Chatstream reads a chat backend's event stream, folds it into a live
transcript, and exposes submit, cancel and snapshot reads to UI layers.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		cfg = loaded
		setupLogging(cfg.LogLevel)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging(levelName string) {
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
}

// controllerOptions maps configuration onto controller options.
func controllerOptions(c *config.Config) []chat.Option {
	return []chat.Option{
		chat.WithInterruptionMarker(c.InterruptionMarker),
		chat.WithReadBufferSize(c.ReadBufferSize),
	}
}
