package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/word-battle/internal/replay"
	"github.com/word-battle/internal/scan"
)

// Config holds all runtime settings for the replay service
type Config struct {
	Port          string        `env:"PORT"                envDefault:"8080"`
	LogLevel      string        `env:"LOG_LEVEL"           envDefault:"info"`
	DatabaseURL   string        `env:"DATABASE_URL"`
	SQLitePath    string        `env:"WBR_SQLITE_PATH"     envDefault:"data/replays.db"`
	KafkaBrokers  string        `env:"KAFKA_BROKERS"       envDefault:"localhost:9092"`
	ReplayDir     string        `env:"WBR_REPLAY_DIR"      envDefault:"./Data To Analyse/"`
	ReplaySuffix  string        `env:"WBR_REPLAY_SUFFIX"   envDefault:".wbr"`
	BoardMin      int           `env:"WBR_BOARD_MIN"       envDefault:"3"`
	BoardMax      int           `env:"WBR_BOARD_MAX"       envDefault:"15"`
	ScanWorkers   int           `env:"WBR_SCAN_WORKERS"    envDefault:"4"`
	PlaybackDelay time.Duration `env:"WBR_PLAYBACK_DELAY"  envDefault:"1s"`
}

// Load reads an optional .env file and then parses the environment.
// Variables already present in the environment win over the file.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return Parse()
}

// Parse loads configuration from environment variables only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.BoardMin < 2 || cfg.BoardMax < cfg.BoardMin {
		return Config{}, fmt.Errorf("invalid board bounds [%d, %d]", cfg.BoardMin, cfg.BoardMax)
	}
	if cfg.ScanWorkers <= 0 {
		cfg.ScanWorkers = 1
	}
	return cfg, nil
}

// ApplyLogLevel sets the zerolog global level, leaving it untouched on a bad value.
func (c Config) ApplyLogLevel() {
	if lvl, err := zerolog.ParseLevel(c.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
}

// Limits returns the accepted board length range
func (c Config) Limits() replay.Limits {
	return replay.Limits{Min: c.BoardMin, Max: c.BoardMax}
}

// ScanOptions returns the batch scan settings
func (c Config) ScanOptions() scan.Options {
	return scan.Options{Suffix: c.ReplaySuffix, Limits: c.Limits(), Workers: c.ScanWorkers}
}
