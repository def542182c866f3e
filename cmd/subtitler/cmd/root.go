package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/obiente/translate/subtitler/internal/config"
	"github.com/obiente/translate/subtitler/internal/logging"
	"github.com/obiente/translate/subtitler/internal/storage"
)

var (
	cfgFile   string
	verbose   bool
	logFormat string
	appConfig config.Config
)

var rootCmd = &cobra.Command{
	Use:   "subtitler",
	Short: "Audio to subtitle pipeline",
	Long: `subtitler turns speech recordings into time-stamped subtitle files.

Pipeline:
  audio    - WAV, FLAC or raw PCM16LE, resampled to 16 kHz mono
  vad      - speech segmentation (webrtc or energy)
  stt      - whisper.cpp or an OpenAI compatible HTTP endpoint
  diarize  - optional speaker labels
  storage  - subtitle files or SQLite

Configuration comes from .env, the TOML file in SUBTITLER_CONFIG (or
--config) and environment variables, in that order.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			if err := os.Setenv("SUBTITLER_CONFIG", cfgFile); err != nil {
				return err
			}
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if verbose {
			cfg.LogLevel = "debug"
		}
		if logFormat != "" {
			cfg.LogFormat = logFormat
		}
		logging.Setup(cfg.LogLevel, cfg.LogFormat)
		appConfig = cfg
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "TOML config file (overrides SUBTITLER_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "json or console")
}

// readInput reads a file argument, "-" meaning stdin.
func readInput(path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}

// writeOutput replaces path atomically, or writes to stdout when path is
// empty.
func writeOutput(path, content string) error {
	if path == "" {
		_, err := io.WriteString(os.Stdout, content)
		return err
	}
	if err := storage.WriteFileAtomic(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
