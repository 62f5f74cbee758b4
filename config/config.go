// config/config.go
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"casefile-progress/archive"
	"casefile-progress/services"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the process configuration, read from the environment.
type Config struct {
	HTTPAddr         string   `env:"HTTP_ADDR" envDefault:":5200"`
	DatabaseURL      string   `env:"DATABASE_URL"` // empty selects the in-memory store
	GameServiceToken string   `env:"GAME_SERVICE_TOKEN"`
	AllowedOrigins   []string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
	LogLevel         string   `env:"LOG_LEVEL" envDefault:"info"`

	StartingHints       int   `env:"STARTING_HINTS" envDefault:"3"`
	RefereeBonusPoints  int64 `env:"REFEREE_BONUS_POINTS" envDefault:"100"`
	RefereeBonusHints   int   `env:"REFEREE_BONUS_HINTS" envDefault:"2"`
	ReferrerBonusPoints int64 `env:"REFERRER_BONUS_POINTS" envDefault:"200"`
	ReferrerBonusHints  int   `env:"REFERRER_BONUS_HINTS" envDefault:"1"`

	LegendExemptionCount int `env:"LEGEND_EXEMPTION_COUNT" envDefault:"2"`

	ReferralReconcileInterval time.Duration `env:"REFERRAL_RECONCILE_INTERVAL" envDefault:"5m"`
	ReferralReconcileBatch    int           `env:"REFERRAL_RECONCILE_BATCH" envDefault:"100"`

	R2AccountID       string `env:"R2_ACCOUNT_ID"`
	R2AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	R2AccessKeySecret string `env:"R2_ACCESS_KEY_SECRET"`
	R2BucketName      string `env:"R2_BUCKET_NAME"`
	R2PublicBaseURL   string `env:"R2_PUBLIC_BASE_URL"`
}

// Load reads .env when present, then the environment. It reports whether a
// .env file was used.
func Load(files ...string) (Config, bool, error) {
	dotenv := godotenv.Load(files...) == nil

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, dotenv, fmt.Errorf("parse env: %w", err)
	}
	for i, origin := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimSpace(origin)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, dotenv, err
	}
	return cfg, dotenv, nil
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.GameServiceToken) == "" {
		errs = append(errs, errors.New("GAME_SERVICE_TOKEN environment variable not set"))
	}
	if c.StartingHints < 0 || c.RefereeBonusHints < 0 || c.ReferrerBonusHints < 0 {
		errs = append(errs, errors.New("hint settings must not be negative"))
	}
	if c.RefereeBonusPoints < 0 || c.ReferrerBonusPoints < 0 {
		errs = append(errs, errors.New("bonus points must not be negative"))
	}
	if c.LegendExemptionCount < 0 {
		errs = append(errs, errors.New("LEGEND_EXEMPTION_COUNT must not be negative"))
	}
	if c.ReferralReconcileInterval <= 0 {
		errs = append(errs, errors.New("REFERRAL_RECONCILE_INTERVAL must be positive"))
	}
	if c.ReferralReconcileBatch <= 0 {
		errs = append(errs, errors.New("REFERRAL_RECONCILE_BATCH must be positive"))
	}
	return errors.Join(errs...)
}

// RewardWeights maps the bonus settings onto the service weights.
func (c Config) RewardWeights() services.RewardWeights {
	return services.RewardWeights{
		StartingHints:       c.StartingHints,
		RefereeBonusPoints:  c.RefereeBonusPoints,
		RefereeBonusHints:   c.RefereeBonusHints,
		ReferrerBonusPoints: c.ReferrerBonusPoints,
		ReferrerBonusHints:  c.ReferrerBonusHints,
	}
}

func (c Config) R2() archive.R2Config {
	return archive.R2Config{
		AccountID:       c.R2AccountID,
		AccessKeyID:     c.R2AccessKeyID,
		AccessKeySecret: c.R2AccessKeySecret,
		Bucket:          c.R2BucketName,
		BaseURL:         c.R2PublicBaseURL,
	}
}

// SlogLevel parses LOG_LEVEL, falling back to info.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return level
}
