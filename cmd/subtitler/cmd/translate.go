package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/obiente/translate/subtitler/internal/punctuate"
	"github.com/obiente/translate/subtitler/internal/translation"
)

var (
	translateFrom string
	translateTo   string
	translateOut  string
)

var translateCmd = &cobra.Command{
	Use:   "translate <subtitle-file|->",
	Short: "Translate the text of a subtitle document",
	Long: `Translate sends the spoken text of every block to the LibreTranslate
server in TRANSLATION_BASE_URL and writes the document back with its
original indices and timings.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if translateTo == "" {
			return fmt.Errorf("--to is required")
		}
		text, err := readInput(args[0])
		if err != nil {
			return err
		}
		client := translation.New(appConfig.Translation.BaseURL, appConfig.Translation.TimeoutSec)
		out, err := translation.TranslateSubtitle(cmd.Context(), client, text, translateFrom, translateTo)
		if err != nil {
			return err
		}
		return writeOutput(translateOut, out)
	},
}

var detectCmd = &cobra.Command{
	Use:   "detect <subtitle-file|->",
	Short: "Detect the language of a subtitle document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(args[0])
		if err != nil {
			return err
		}
		client := translation.New(appConfig.Translation.BaseURL, appConfig.Translation.TimeoutSec)
		lang, err := translation.DetectSubtitle(cmd.Context(), client, text)
		if err != nil {
			return err
		}
		fmt.Println(lang)
		return nil
	},
}

var punctuateOut string

var punctuateCmd = &cobra.Command{
	Use:   "punctuate <subtitle-file|->",
	Short: "Capitalize sentences and close them with a full stop",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(args[0])
		if err != nil {
			return err
		}
		out, err := punctuate.Subtitle(cmd.Context(), punctuate.Rules{}, text)
		if err != nil {
			return err
		}
		return writeOutput(punctuateOut, out)
	},
}

func init() {
	rootCmd.AddCommand(translateCmd, detectCmd, punctuateCmd)
	translateCmd.Flags().StringVar(&translateFrom, "from", "", "source language (default auto)")
	translateCmd.Flags().StringVar(&translateTo, "to", "", "target language")
	translateCmd.Flags().StringVarP(&translateOut, "out", "o", "", "output file (default stdout)")
	punctuateCmd.Flags().StringVarP(&punctuateOut, "out", "o", "", "output file (default stdout)")
}
