// /internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// LoadDotEnv reads .env into the process environment if the file exists.
func LoadDotEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		log.Info().Msg("No .env file found, falling back to system environment variables")
	}
}

type Config struct {
	DiscordToken          string   `env:"DISCORD_TOKEN,required,notEmpty"`
	DiscordGuildBlacklist []string `env:"DISCORD_GUILD_BLACKLIST" envSeparator:","`
	InitSlashCommands     bool     `env:"INIT_SLASH_COMMANDS" envDefault:"true"`

	StoragePath   string `env:"STORAGE_PATH" envDefault:"data/movienight.json"`
	StorageBackup int    `env:"STORAGE_BACKUPS" envDefault:"3"`
	SoundsDir     string `env:"SOUNDS_DIR" envDefault:"./sounds"`

	CatalogBaseURL  string        `env:"CATALOG_BASE_URL" envDefault:"https://api.imdbapi.dev"`
	CatalogCacheTTL time.Duration `env:"CATALOG_CACHE_TTL" envDefault:"1h"`
	CacheAddr       string        `env:"CACHE_ADDR"`
	CachePassword   string        `env:"CACHE_PASSWORD"`
	HTTPTimeout     time.Duration `env:"HTTP_TIMEOUT" envDefault:"15s"`

	EventLocation   string        `env:"EVENT_LOCATION" envDefault:"Dalles Filmklub"`
	LeaveDelay      time.Duration `env:"LEAVE_DELAY" envDefault:"2s"`
	RatingPollDelay time.Duration `env:"RATING_POLL_DELAY" envDefault:"1m"`
	DeleteGrace     time.Duration `env:"DELETE_GRACE" envDefault:"5s"`
	EntranceDelay   time.Duration `env:"ENTRANCE_DELAY" envDefault:"1s"`

	MetricsAddr string `env:"METRICS_ADDR"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
	LogFile   string `env:"LOG_FILE"`
}

// New parses the environment into a Config.
func New() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}
