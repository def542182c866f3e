package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/obiente/translate/subtitler/internal/diarize"
	"github.com/obiente/translate/subtitler/internal/storage"
	"github.com/obiente/translate/subtitler/internal/stt"
	"github.com/obiente/translate/subtitler/internal/vad"
)

// Config is read from defaults, then the TOML file named by
// SUBTITLER_CONFIG, then environment variables.
type Config struct {
	Addr      string `toml:"addr"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`

	STT         STTConfig         `toml:"stt"`
	VAD         VADConfig         `toml:"vad"`
	Features    FeaturesConfig    `toml:"features"`
	Storage     StorageConfig     `toml:"storage"`
	Diarize     DiarizeConfig     `toml:"diarize"`
	Punctuate   bool              `toml:"punctuate"`
	Translation TranslationConfig `toml:"translation"`
}

type STTConfig struct {
	Backend   string   `toml:"backend"`
	ModelPath string   `toml:"model_path"`
	Threads   int      `toml:"threads"`
	Language  string   `toml:"language"`
	HTTPURL   string   `toml:"http_url"`
	HTTPModel string   `toml:"http_model"`
	APIKey    string   `toml:"api_key"`
	Timeout   Duration `toml:"timeout"`
}

type VADConfig struct {
	Backend    string   `toml:"backend"`
	Mode       int      `toml:"mode"`
	Threshold  float64  `toml:"threshold"`
	FrameMs    int      `toml:"frame_ms"`
	MinSpeech  Duration `toml:"min_speech"`
	MaxSpeech  Duration `toml:"max_speech"`
	MinSilence Duration `toml:"min_silence"`
}

type FeaturesConfig struct {
	// FiltersPath points at a whisper mel filterbank file; empty uses
	// generated Slaney filters.
	FiltersPath string `toml:"filters_path"`
	Workers     int    `toml:"workers"`
}

type StorageConfig struct {
	Backend string `toml:"backend"`
	Dir     string `toml:"dir"`
	Path    string `toml:"path"`
}

type DiarizeConfig struct {
	Backend   string   `toml:"backend"`
	Gap       Duration `toml:"gap"`
	Speakers  int      `toml:"speakers"`
	Threshold float64  `toml:"threshold"`
}

type TranslationConfig struct {
	BaseURL    string `toml:"base_url"`
	Enabled    bool   `toml:"enabled"`
	TimeoutSec int    `toml:"timeout_sec"`
}

// Duration wraps time.Duration for TOML parsing.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch v {
		case "0", "false", "no", "off", "False", "FALSE":
			return false
		default:
			return true
		}
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvDuration(key string, def Duration) Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return Duration{d}
		}
	}
	return def
}

// Default is the configuration used when nothing is set.
func Default() Config {
	sttDef := stt.DefaultConfig()
	vadDef := vad.DefaultConfig()
	gapDef := diarize.DefaultGapConfig()
	return Config{
		Addr:      ":8080",
		LogLevel:  "info",
		LogFormat: "json",
		STT: STTConfig{
			Backend:   sttDef.Backend,
			ModelPath: sttDef.ModelPath,
			Threads:   runtime.NumCPU(),
			Language:  sttDef.Language,
			HTTPURL:   sttDef.HTTPURL,
			HTTPModel: sttDef.HTTPModel,
			Timeout:   Duration{sttDef.Timeout},
		},
		VAD: VADConfig{
			Backend:    vadDef.Backend,
			Mode:       vadDef.Mode,
			Threshold:  vadDef.Threshold,
			FrameMs:    vadDef.FrameMs,
			MinSpeech:  Duration{vadDef.MinSpeech},
			MaxSpeech:  Duration{vadDef.MaxSpeech},
			MinSilence: Duration{vadDef.MinSilence},
		},
		Storage: StorageConfig{Backend: "file", Dir: "./data/subtitles", Path: "./data/subtitles.db"},
		Diarize: DiarizeConfig{
			Backend:   "none",
			Gap:       Duration{gapDef.Gap},
			Speakers:  gapDef.Speakers,
			Threshold: gapDef.Threshold,
		},
		Punctuate: true,
		Translation: TranslationConfig{
			BaseURL:    "https://libretranslate.obiente.cloud",
			Enabled:    true,
			TimeoutSec: 8,
		},
	}
}

// Load reads .env (if present), the optional TOML file and the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}
	cfg := Default()
	if path := os.Getenv("SUBTITLER_CONFIG"); path != "" {
		if err := cfg.decodeFile(os.ExpandEnv(path)); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) decodeFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", path)
	}
	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Addr = getenv("SUBTITLER_ADDR", c.Addr)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getenv("LOG_FORMAT", c.LogFormat)

	c.STT.Backend = getenv("STT_BACKEND", c.STT.Backend)
	c.STT.ModelPath = getenv("WHISPER_MODEL_PATH", c.STT.ModelPath)
	c.STT.Threads = getenvInt("STT_THREADS", c.STT.Threads)
	c.STT.Language = getenv("STT_LANGUAGE", c.STT.Language)
	c.STT.HTTPURL = getenv("STT_HTTP_URL", c.STT.HTTPURL)
	c.STT.HTTPModel = getenv("STT_HTTP_MODEL", c.STT.HTTPModel)
	c.STT.APIKey = getenv("STT_API_KEY", c.STT.APIKey)
	c.STT.Timeout = getenvDuration("STT_TIMEOUT", c.STT.Timeout)

	c.VAD.Backend = getenv("VAD_BACKEND", c.VAD.Backend)
	c.VAD.Mode = getenvInt("VAD_MODE", c.VAD.Mode)
	c.VAD.Threshold = getenvFloat("VAD_THRESHOLD", c.VAD.Threshold)
	c.VAD.FrameMs = getenvInt("VAD_FRAME_MS", c.VAD.FrameMs)
	c.VAD.MinSpeech = getenvDuration("VAD_MIN_SPEECH", c.VAD.MinSpeech)
	c.VAD.MaxSpeech = getenvDuration("VAD_MAX_SPEECH", c.VAD.MaxSpeech)
	c.VAD.MinSilence = getenvDuration("VAD_MIN_SILENCE", c.VAD.MinSilence)

	c.Features.FiltersPath = getenv("MEL_FILTERS_PATH", c.Features.FiltersPath)
	c.Features.Workers = getenvInt("FEATURE_WORKERS", c.Features.Workers)

	c.Storage.Backend = getenv("STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.Dir = getenv("STORAGE_DIR", c.Storage.Dir)
	c.Storage.Path = getenv("STORAGE_PATH", c.Storage.Path)

	c.Diarize.Backend = getenv("DIARIZER", c.Diarize.Backend)
	c.Diarize.Gap = getenvDuration("DIARIZE_GAP", c.Diarize.Gap)
	c.Diarize.Speakers = getenvInt("DIARIZE_SPEAKERS", c.Diarize.Speakers)

	c.Punctuate = getenvBool("PUNCTUATE", c.Punctuate)

	c.Translation.BaseURL = getenv("TRANSLATION_BASE_URL", c.Translation.BaseURL)
	c.Translation.Enabled = getenvBool("TRANSLATION_ENABLED", c.Translation.Enabled)
	c.Translation.TimeoutSec = getenvInt("TRANSLATION_TIMEOUT", c.Translation.TimeoutSec)
}

func (c Config) STTConfig() stt.Config {
	return stt.Config{
		Backend:   c.STT.Backend,
		ModelPath: c.STT.ModelPath,
		Threads:   c.STT.Threads,
		Language:  c.STT.Language,
		HTTPURL:   c.STT.HTTPURL,
		HTTPModel: c.STT.HTTPModel,
		APIKey:    c.STT.APIKey,
		Timeout:   c.STT.Timeout.Duration,
	}
}

func (c Config) VADConfig() vad.Config {
	return vad.Config{
		Backend:    c.VAD.Backend,
		Mode:       c.VAD.Mode,
		Threshold:  c.VAD.Threshold,
		FrameMs:    c.VAD.FrameMs,
		MinSpeech:  c.VAD.MinSpeech.Duration,
		MaxSpeech:  c.VAD.MaxSpeech.Duration,
		MinSilence: c.VAD.MinSilence.Duration,
	}
}

func (c Config) StorageConfig() storage.Config {
	return storage.Config{Backend: c.Storage.Backend, Dir: c.Storage.Dir, Path: c.Storage.Path}
}

func (c Config) GapConfig() diarize.GapConfig {
	return diarize.GapConfig{Gap: c.Diarize.Gap.Duration, Speakers: c.Diarize.Speakers, Threshold: c.Diarize.Threshold}
}
