package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/docscan/internal/config"
)

// cliState is shared by the root command and its subcommands.
type cliState struct {
	cfgFile string
	loader  *config.Loader
	cfg     *config.Config
}

// NewRootCommand builds the docscan command tree. Every call returns fresh
// commands and flags.
func NewRootCommand() *cobra.Command {
	state := &cliState{}

	rootCmd := &cobra.Command{
		Use:   "docscan",
		Short: "Document boundary detection and perspective rectification",
		Long: `docscan finds the four corners of a document in a photograph and warps
the document into a flat, upright scan.

Corner detection tries a contour pass, a line-based pass and a looser
contour retry before falling back to default corners inset from the image
border, so every readable image yields four corners.

Examples:
  docscan detect photo.jpg
  docscan detect *.png --format json
  docscan rectify photo.jpg -o scan.png
  docscan batch photos/ --recursive --output-dir scans/
  docscan serve --port 8080`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := state.load(cmd); err != nil {
				return err
			}
			setupLogging(cmd.ErrOrStderr(), state.cfg)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&state.cfgFile, "config", "",
		"config file (default is search in ., $XDG_CONFIG_HOME/docscan, $HOME/.config/docscan, $HOME, /etc/docscan)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newDetectCmd(state),
		newRectifyCmd(state),
		newBatchCmd(state),
		newBenchmarkCmd(state),
		newServeCmd(state),
		newConfigCmd(state),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// load resolves the configuration from defaults, file, environment and the
// root flags.
func (s *cliState) load(cmd *cobra.Command) error {
	v := viper.New()
	flags := cmd.Root().PersistentFlags()
	if err := v.BindPFlag("verbose", flags.Lookup("verbose")); err != nil {
		return err
	}
	if err := v.BindPFlag("log_level", flags.Lookup("log-level")); err != nil {
		return err
	}

	s.loader = config.NewLoaderWithViper(v)
	cfg, err := s.loader.LoadWithFile(s.cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	s.cfg = cfg
	return nil
}

func setupLogging(w io.Writer, cfg *config.Config) {
	var logLevel slog.Level
	if cfg.Verbose {
		logLevel = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			logLevel = slog.LevelDebug
		case "warn":
			logLevel = slog.LevelWarn
		case "error":
			logLevel = slog.LevelError
		default:
			logLevel = slog.LevelInfo
		}
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
}
