package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pearcec/courselink/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the courselink settings directory",
	Long: `Create the courselink configuration next to the settings file
(default ~/.config/courselink/):

  config.yaml       Settings pointing at the files below
  .env              Calendar id, link path and class directories

Place the OAuth client secret downloaded from Google Cloud Console as
credentials.json in the same directory. token.json is written on the first
successful authorization.

This command is idempotent - safe to run multiple times.
Existing files are never overwritten.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	created, err := initSettingsDir(config.ExpandHome(settingsPath))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(created) == 0 {
		fmt.Fprintln(out, "courselink is already initialized. All directories and files exist.")
		return nil
	}
	fmt.Fprintln(out, "courselink initialized. Created:")
	for _, item := range created {
		fmt.Fprintf(out, "  %s\n", item)
	}
	return nil
}

// initSettingsDir creates the settings file and an .env template beside it.
func initSettingsDir(settingsFile string) ([]string, error) {
	var created []string
	dir := filepath.Dir(settingsFile)

	if err := createDirIfNotExists(dir, &created); err != nil {
		return created, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	settings := fmt.Sprintf(defaultSettings,
		filepath.Join(dir, config.DefaultEnvFile),
		filepath.Join(dir, config.DefaultCredentialsFile),
		filepath.Join(dir, config.DefaultTokenFile),
	)
	if err := createFileIfNotExists(settingsFile, settings, &created); err != nil {
		return created, fmt.Errorf("failed to create settings file: %w", err)
	}

	envPath := filepath.Join(dir, config.DefaultEnvFile)
	if err := createFileIfNotExists(envPath, defaultEnv, &created); err != nil {
		return created, fmt.Errorf("failed to create .env template: %w", err)
	}

	return created, nil
}

func createDirIfNotExists(path string, created *[]string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0700); err != nil {
			return err
		}
		*created = append(*created, path+"/")
	}
	return nil
}

func createFileIfNotExists(path, content string, created *[]string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			return err
		}
		*created = append(*created, path)
	}
	return nil
}

const defaultSettings = `# courselink settings

env_file: %s
credentials_file: %s
token_file: %s

# Zone used for all-day events (date without time of day).
timezone: UTC

# debug, info, warn, error
log_level: info
`

const defaultEnv = `# Google Calendar holding your classes (Settings > Integrate calendar > Calendar ID)
CALENDAR_ID=

# Symlink courselink keeps pointed at the class in progress
CURRENT_COURSE_LINK=~/current-course

# One line per class: the event description, then the directory
# MATH101=~/courses/math101
`
