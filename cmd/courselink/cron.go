package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/pearcec/courselink/internal/config"
)

const defaultCronExpr = "*/5 * * * *"

var cronCmd = &cobra.Command{
	Use:   "cron [expression]",
	Short: "Print a crontab entry that runs courselink",
	Long: `Validate a five-field cron expression and print the crontab line that
runs courselink on that schedule, followed by the next few run times.

courselink does not schedule itself; add the printed line with 'crontab -e'.

Example:
  courselink cron "*/10 8-18 * * 1-5"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCron,
}

func init() {
	rootCmd.AddCommand(cronCmd)
}

func runCron(cmd *cobra.Command, args []string) error {
	expr := defaultCronExpr
	if len(args) == 1 {
		expr = args[0]
	}

	binary, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(binary); err == nil {
		binary = resolved
	}

	line, next, err := crontabEntry(expr, binary, settingsPath, time.Now(), 3)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, line)
	fmt.Fprintln(out, "\nNext runs:")
	for _, t := range next {
		fmt.Fprintf(out, "  %s\n", t.Format("Mon Jan 2 15:04"))
	}
	return nil
}

// crontabEntry validates expr and returns the crontab line plus the next n
// activation times after from.
func crontabEntry(expr, binary, settings string, from time.Time, n int) (string, []time.Time, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(expr)
	if err != nil {
		return "", nil, fmt.Errorf("invalid cron expression: %w", err)
	}

	line := fmt.Sprintf("%s %s", expr, binary)
	if settings != "" && settings != config.DefaultSettingsPath {
		line += fmt.Sprintf(" --config %s", config.ExpandHome(settings))
	}

	next := make([]time.Time, 0, n)
	t := from
	for i := 0; i < n; i++ {
		t = sched.Next(t)
		next = append(next, t)
	}
	return line, next, nil
}
