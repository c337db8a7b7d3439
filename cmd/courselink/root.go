package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pearcec/courselink/internal/auth"
	"github.com/pearcec/courselink/internal/calendar"
	"github.com/pearcec/courselink/internal/config"
	"github.com/pearcec/courselink/internal/course"
	"github.com/pearcec/courselink/internal/link"
	"github.com/pearcec/courselink/internal/logging"
)

var (
	settingsPath string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "courselink",
	Short: "Point the current-course link at the class happening now",
	Long: `courselink looks at the next event on your class calendar. If it is
happening right now, the current-course symlink is pointed at the directory
configured for the class named in the event description.

Configuration is read from an .env file when present, otherwise from the
environment:

  CALENDAR_ID           Google Calendar to watch
  CURRENT_COURSE_LINK   Symlink to maintain, e.g. ~/current-course
  <CLASS>               One entry per class, e.g. MATH101=~/courses/math101

Run it periodically from cron; see 'courselink cron'.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runSwitch,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsPath, "config", config.DefaultSettingsPath, "Settings file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// app holds what every command resolves once at startup.
type app struct {
	settings *config.Settings
	cfg      *config.Config
	loc      *time.Location
	log      *zap.Logger
}

func setup() (*app, error) {
	settings, err := config.LoadSettings(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	level := settings.LogLevel
	if verbose {
		level = "debug"
	}
	log, err := logging.New(level)
	if err != nil {
		return nil, err
	}

	loc, err := settings.Location()
	if err != nil {
		return nil, err
	}

	resolver, err := config.NewResolver(settings.EnvPath(), os.Environ())
	if err != nil {
		return nil, err
	}
	if !resolver.HasOverride() {
		log.Info("No '.env' file found. Attempting to get variables from environment.",
			zap.String("path", settings.EnvPath()))
	}

	cfg, err := resolver.Resolve()
	if err != nil {
		return nil, err
	}

	return &app{settings: settings, cfg: cfg, loc: loc, log: log}, nil
}

// source authenticates and returns the Google Calendar event source.
func (a *app) source(ctx context.Context) (*calendar.GoogleSource, error) {
	oauthCfg, err := auth.LoadOAuthConfig(a.settings.CredentialsPath())
	if err != nil {
		return nil, err
	}

	mgr := auth.NewManager(
		oauthCfg,
		auth.FileStore{Path: a.settings.TokenPath()},
		&auth.LocalServerAuthorizer{Log: a.log},
		a.log,
	)
	client, err := mgr.Client(ctx)
	if err != nil {
		return nil, err
	}

	return calendar.NewGoogleSource(ctx, client)
}

func (a *app) runner(src calendar.Source, cmd *cobra.Command) *course.Runner {
	return &course.Runner{
		Source:     src,
		Switcher:   link.NewSwitcher(a.cfg, a.log),
		CalendarID: a.cfg.CalendarID,
		Location:   a.loc,
		Out:        cmd.OutOrStdout(),
		Log:        a.log,
	}
}

func runSwitch(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.log.Sync()

	src, err := a.source(cmd.Context())
	if err != nil {
		a.log.Error("unable to authenticate", zap.Error(err))
		return err
	}

	_, err = a.runner(src, cmd).Run(cmd.Context())
	return err
}
