package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"sectionbot/internal/bot"
	"sectionbot/internal/common"
	"sectionbot/internal/config"
	"sectionbot/internal/directory"
	"sectionbot/internal/marks"
	"sectionbot/internal/metrics"
	"sectionbot/internal/verify"
)

const programName = "sectionbot"

var globalFlags = struct {
	debug   bool
	envFile string
}{}

func setupLogger(debug bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Str("component", programName).
		Logger()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(globalFlags.envFile)
	if err != nil {
		return nil, err
	}
	setupLogger(globalFlags.debug || cfg.Debug)
	return cfg, nil
}

// Load the identity directory and, if configured, the marks source
func loadSources(cfg *config.Config) (*directory.Directory, marks.Source, error) {
	dir, err := directory.Load(cfg.DirectoryFile)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Msgf("Loaded %d identities from %s", dir.Len(), cfg.DirectoryFile)

	if cfg.MarksFile == "" {
		log.Info().Msg("No marks file configured, marks lookups will find nothing")
		return dir, nil, nil
	}
	source, err := marks.Open(cfg.MarksFile)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Msgf("Marks will be read from %s", cfg.MarksFile)
	return dir, source, nil
}

func runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to discord and serve verifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
}

func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireToken(); err != nil {
		return err
	}
	dir, source, err := loadSources(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Metrics
	var recorder metrics.Recorder = metrics.Nop{}
	if cfg.MetricsAddr != "" {
		registry := prometheus.NewRegistry()
		recorder = metrics.NewCollector(registry)
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, registry); err != nil {
				log.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	// Attempts per member
	limiter := common.NewRateLimiter(cfg.AttemptRestriction())
	if cfg.AttemptRestriction().Enabled() {
		go func() {
			ticker := time.NewTicker(cfg.AttemptWindow)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if pruned := limiter.Prune(); pruned > 0 {
						log.Debug().Msgf("Pruned %d idle attempt limiters", pruned)
					}
				}
			}
		}()
	}

	workflow := verify.NewWorkflow(dir, verify.Options{
		SectionPrefix:       cfg.SectionPrefix,
		VerificationChannel: cfg.VerificationChannel,
		ClaimGuard:          cfg.ClaimGuard,
		HideVerification:    cfg.HideVerification,
		Marks:               source,
		Limiter:             limiter,
		Recorder:            recorder,
	})

	// Create bot
	sectionbot, err := bot.NewBot(cfg.Token, cfg.CommandPrefix, cfg.RetractDelay, workflow)
	if err != nil {
		return err
	}

	// Run bot
	return sectionbot.Run(ctx)
}

func checkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the identity directory and the marks file without connecting",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			dir, source, err := loadSources(cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, record := range dir.Records() {
				if record.HasChannel() {
					fmt.Fprintf(out, "%s -> %s (#%s)\n", record.Id, record.Role, record.Channel)
				} else {
					fmt.Fprintf(out, "%s -> %s\n", record.Id, record.Role)
				}
			}
			if source != nil {
				rows, err := source.Rows(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "marks file %s has %d rows\n", cfg.MarksFile, len(rows))
			}
			if err := cfg.RequireToken(); err != nil {
				fmt.Fprintf(out, "warning: %v\n", err)
			}
			return nil
		},
	}
}

func main() {
	setupLogger(false)

	rootCmd := &cobra.Command{
		Use:          programName,
		Short:        "Discord bot verifying members by id and assigning their section",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}

	// Global flags
	rootCmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")
	rootCmd.PersistentFlags().
		StringVar(&globalFlags.envFile, "env-file", ".env", "path to a file with environment variables")

	// Subcommands
	rootCmd.AddCommand(runCommand())
	rootCmd.AddCommand(checkCommand())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		switch {
		case errors.Is(err, config.ErrMissingToken):
			log.Error().Msg("ERROR: No token found, set DISCORD_TOKEN in the environment or in the .env file")
		case errors.Is(err, bot.ErrAuthentication):
			log.Error().Err(err).Msg("ERROR: Invalid token or improper privileges!")
		default:
			log.Error().Err(err).Msg("ERROR: An unexpected error occurred")
		}
		os.Exit(1)
	}
}
