package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"

	"sectionbot/internal/common"
)

// Missing token is fatal: the bot cannot do anything without it
var ErrMissingToken = errors.New("DISCORD_TOKEN is not set")

type Config struct {
	Token               string        `envconfig:"DISCORD_TOKEN"`
	DirectoryFile       string        `envconfig:"SECTIONBOT_DIRECTORY"            default:"identities.yaml"`
	MarksFile           string        `envconfig:"SECTIONBOT_MARKS_FILE"`
	CommandPrefix       string        `envconfig:"SECTIONBOT_PREFIX"               default:"!"`
	SectionPrefix       string        `envconfig:"SECTIONBOT_SECTION_PREFIX"       default:"Section-"`
	VerificationChannel string        `envconfig:"SECTIONBOT_VERIFICATION_CHANNEL" default:"verification"`
	ClaimGuard          bool          `envconfig:"SECTIONBOT_CLAIM_GUARD"          default:"false"`
	HideVerification    bool          `envconfig:"SECTIONBOT_HIDE_VERIFICATION"    default:"true"`
	RetractDelay        time.Duration `envconfig:"SECTIONBOT_RETRACT_DELAY"        default:"10s"`
	Attempts            int           `envconfig:"SECTIONBOT_ATTEMPTS"             default:"5"`
	AttemptWindow       time.Duration `envconfig:"SECTIONBOT_ATTEMPT_WINDOW"       default:"1m"`
	MetricsAddr         string        `envconfig:"SECTIONBOT_METRICS_ADDR"`
	Debug               bool          `envconfig:"SECTIONBOT_DEBUG"                default:"false"`
}

// Load the configuration from the environment. If envFile exists it is
// loaded first, without overriding variables already set in the environment
func Load(envFile string) (*Config, error) {

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("could not load %s: %w", envFile, err)
			}
			log.Debug().Msgf("No env file %s found", envFile)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("could not process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate everything except the token, which is only
// required when connecting to discord
func (cfg *Config) Validate() error {
	if cfg.DirectoryFile == "" {
		return errors.New("SECTIONBOT_DIRECTORY cannot be empty")
	}
	if cfg.CommandPrefix == "" {
		return errors.New("SECTIONBOT_PREFIX cannot be empty")
	}
	if cfg.SectionPrefix == "" {
		return errors.New("SECTIONBOT_SECTION_PREFIX cannot be empty")
	}
	if cfg.RetractDelay < 0 {
		return fmt.Errorf("invalid retract delay %s", cfg.RetractDelay)
	}
	if cfg.Attempts < 0 || cfg.AttemptWindow < 0 {
		return fmt.Errorf("invalid attempt restriction %d per %s", cfg.Attempts, cfg.AttemptWindow)
	}
	// A limit needs a window to apply to
	if cfg.Attempts > 0 && cfg.AttemptWindow == 0 {
		return fmt.Errorf("SECTIONBOT_ATTEMPT_WINDOW cannot be zero with %d attempts, set SECTIONBOT_ATTEMPTS=0 to disable the limit", cfg.Attempts)
	}
	return nil
}

func (cfg *Config) RequireToken() error {
	if cfg.Token == "" {
		return ErrMissingToken
	}
	return nil
}

func (cfg *Config) AttemptRestriction() common.Restriction {
	return common.Restriction{Requests: cfg.Attempts, Duration: cfg.AttemptWindow}
}
