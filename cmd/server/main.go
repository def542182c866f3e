package main

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/subtitler/internal/app"
	"github.com/obiente/translate/subtitler/internal/config"
	serverhttp "github.com/obiente/translate/subtitler/internal/http"
	"github.com/obiente/translate/subtitler/internal/logging"
)

func main() {
	cfg, err := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	a, err := app.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("pipeline setup failed")
	}
	defer a.Close()

	srv := serverhttp.NewServer(cfg.Addr, a)
	log.Info().Str("addr", cfg.Addr).Msg("subtitler server starting")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server failed")
	}
}
