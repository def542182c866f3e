package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/obiente/translate/subtitler/internal/app"
	"github.com/obiente/translate/subtitler/internal/audio"
	"github.com/obiente/translate/subtitler/internal/transcript"
	"github.com/obiente/translate/subtitler/internal/translation"
)

var (
	transcribeRate     int
	transcribeChannels int
	transcribeOut      string
	transcribeID       string
	transcribePersist  bool
	transcribeLanguage string
	transcribeTo       []string
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <audio-file>",
	Short: "Transcribe an audio file into a subtitle document",
	Long: `Transcribe decodes the file by extension (.wav, .flac, anything else
is raw PCM16LE described by --rate and --channels) and prints the subtitle
document, or writes it to --out.

Examples:
  subtitler transcribe talk.wav
  subtitler transcribe call.pcm --rate 8000 --out call.srt
  subtitler transcribe talk.flac --persist --to de --to fr`,
	Args: cobra.ExactArgs(1),
	RunE: runTranscribe,
}

func init() {
	rootCmd.AddCommand(transcribeCmd)
	transcribeCmd.Flags().IntVar(&transcribeRate, "rate", audio.TargetSampleRate, "sample rate of raw PCM input")
	transcribeCmd.Flags().IntVar(&transcribeChannels, "channels", 1, "channel count of raw PCM input")
	transcribeCmd.Flags().StringVarP(&transcribeOut, "out", "o", "", "output file (default stdout)")
	transcribeCmd.Flags().StringVar(&transcribeID, "id", "", "job id used for storage (default file name)")
	transcribeCmd.Flags().BoolVar(&transcribePersist, "persist", false, "store the document in the configured store")
	transcribeCmd.Flags().StringVar(&transcribeLanguage, "language", "", "spoken language code (default from config)")
	transcribeCmd.Flags().StringSliceVar(&transcribeTo, "to", nil, "also translate into these languages")
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := appConfig
	if transcribeLanguage != "" {
		cfg.STT.Language = transcribeLanguage
	}
	clip, err := audio.Open(args[0], transcribeRate, transcribeChannels)
	if err != nil {
		return err
	}
	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	id := transcribeID
	if id == "" {
		base := filepath.Base(args[0])
		id = strings.TrimSuffix(base, filepath.Ext(base))
	}
	log.Info().Str("file", args[0]).Float64("seconds", clip.Duration()).Int("sample_rate", clip.SampleRate).Msg("transcribe: decoded")

	res, err := a.Engine.Transcribe(ctx, transcript.Job{
		ID:         id,
		Audio:      clip.Reader(),
		SampleRate: clip.SampleRate,
		Persist:    transcribePersist,
	})
	if err != nil {
		return err
	}
	if res.Skipped > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d segments could not be transcribed\n", res.Skipped, res.Segments)
	}
	if err := writeOutput(transcribeOut, res.Text); err != nil {
		return err
	}

	if len(transcribeTo) == 0 {
		return nil
	}
	if a.Translator == nil {
		return fmt.Errorf("translation is disabled in the configuration")
	}
	for _, target := range transcribeTo {
		out, err := translation.TranslateSubtitle(ctx, a.Translator, res.Text, cfg.STT.Language, target)
		if err != nil {
			return fmt.Errorf("translate to %s: %w", target, err)
		}
		if transcribePersist {
			if err := a.Store.Write(ctx, id+"."+target, out); err != nil {
				return err
			}
		}
		path := ""
		if transcribeOut != "" {
			ext := filepath.Ext(transcribeOut)
			path = strings.TrimSuffix(transcribeOut, ext) + "." + target + ext
		}
		if err := writeOutput(path, out); err != nil {
			return err
		}
	}
	return nil
}
