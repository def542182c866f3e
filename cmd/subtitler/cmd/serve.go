package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/obiente/translate/subtitler/internal/app"
	serverhttp "github.com/obiente/translate/subtitler/internal/http"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket API",
	Long: `Serve exposes the pipeline over HTTP:

  GET  /healthz
  POST /v1/transcribe        audio body, ?format=wav|flac|pcm&rate=&channels=&id=
  POST /v1/translate         {"id"|"srt", "source", "target", "persist"}
  POST /v1/detect            {"id"|"srt"}
  GET  /v1/subtitles/{id}
  GET  /ws/transcribe        streaming job`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := appConfig
	if serveAddr != "" {
		cfg.Addr = serveAddr
	}
	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := serverhttp.NewServer(cfg.Addr, a)
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("subtitler server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
