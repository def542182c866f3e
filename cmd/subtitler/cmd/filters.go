package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/obiente/translate/subtitler/internal/audio"
	"github.com/obiente/translate/subtitler/internal/features"
)

var (
	filtersMel int
	filtersFFT int
)

var filtersCmd = &cobra.Command{
	Use:   "mel-filters <out-file>",
	Short: "Write a Slaney mel filterbank in whisper's binary layout",
	Long: `mel-filters writes a filterbank that MEL_FILTERS_PATH can point at.
Use it when no filter file ships with the model.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Create(args[0])
		if err != nil {
			return err
		}
		filters := features.NewSlaneyFilters(filtersMel, filtersFFT, audio.TargetSampleRate)
		if _, err := filters.WriteTo(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "wrote %d x %d filters to %s\n", filters.NMel, filters.NBins, args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(filtersCmd)
	filtersCmd.Flags().IntVar(&filtersMel, "mel", features.DefaultNMel, "mel bands")
	filtersCmd.Flags().IntVar(&filtersFFT, "fft", features.DefaultFFTSize, "FFT size")
}
