// Command companion runs the talking-pet orchestration engine, either as a
// loopback service (serve) or as one-shot commands against the pet backend.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"talking-pet/companion/internal/playback"
	"talking-pet/companion/pkg/config"
	"talking-pet/companion/pkg/di"
	"talking-pet/companion/pkg/logger"
)

var (
	// Global flags
	gatewayURL string
	verbose    bool
	jsonLogs   bool
	mute       bool
	timeout    time.Duration
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "companion",
	Short: "Talking pet companion engine",
	Long: `companion keeps a local mirror of the pet, turns chat replies and care
actions into narrated speech with sound effects, and nudges the user with
reminders when the pet needs attention.

Run "companion serve" to expose the loopback control surface.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&gatewayURL, "gateway", "", "Pet backend URL (or set GATEWAY_URL)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Write logs as JSON")
	rootCmd.PersistentFlags().BoolVar(&mute, "mute", false, "Skip speech narration")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Timeout for one-shot commands")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(actionCmd)
	rootCmd.AddCommand(shopCmd)
	rootCmd.AddCommand(transcribeCmd)
	rootCmd.AddCommand(remindCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies command line overrides
func loadConfig() *config.Config {
	cfg := config.New()
	if gatewayURL != "" {
		cfg.Gateway.URL = gatewayURL
	}
	if verbose {
		cfg.Logging.Level = string(logger.LevelDebug)
	}
	if jsonLogs {
		cfg.Logging.Format = "json"
	}
	return cfg
}

func newContainer(ctx context.Context, cfg *config.Config) (*di.Container, error) {
	opts := di.Options{}
	if mute {
		opts.Player = playback.NewNullPlayer(logger.Discard())
	}
	return di.New(ctx, cfg, opts)
}

// runOneShot builds the container, runs fn, then lets background narration
// finish before tearing everything down
func runOneShot(cmd *cobra.Command, fn func(ctx context.Context, c *di.Container) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	c, err := newContainer(ctx, loadConfig())
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := c.Close(shutdownCtx); err != nil {
			c.Logger.LogWarn(err, "Shutdown incomplete")
		}
	}()

	if err := fn(ctx, c); err != nil {
		return err
	}

	c.Store.Wait()
	c.Sequencer.Wait()
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
