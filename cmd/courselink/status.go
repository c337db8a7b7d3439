package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pearcec/courselink/internal/config"
	"github.com/pearcec/courselink/internal/course"
	"github.com/pearcec/courselink/internal/link"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current link and the next event",
	Long:  `Show where the current-course link points and how the next event is classified, without changing anything.`,
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.log.Sync()

	target, err := link.NewSwitcher(a.cfg, a.log).Target()
	if err != nil {
		return err
	}

	src, err := a.source(cmd.Context())
	if err != nil {
		return err
	}
	rep := a.runner(src, cmd).Inspect(cmd.Context())

	printStatus(cmd.OutOrStdout(), a.cfg, target, rep)
	return nil
}

func printStatus(out io.Writer, cfg *config.Config, target string, rep course.Report) {
	fmt.Fprintf(out, "Calendar:     %s\n", cfg.CalendarID)

	linkPath, ok := cfg.CurrentLinkPath()
	if !ok {
		linkPath = "(not configured)"
	}
	fmt.Fprintf(out, "Link:         %s\n", linkPath)
	if target == "" {
		target = "(none)"
	}
	fmt.Fprintf(out, "Target:       %s\n", target)

	switch {
	case rep.FetchErr != nil:
		fmt.Fprintf(out, "Next event:   unavailable (%v)\n", rep.FetchErr)
	case rep.Event == nil:
		fmt.Fprintln(out, "Next event:   none")
	default:
		fmt.Fprintf(out, "Next event:   %s [%s]\n", rep.Event.Summary, rep.State)
		classID := rep.Event.Description
		if path, ok := cfg.ClassPath(classID); ok {
			fmt.Fprintf(out, "Class:        %s -> %s\n", classID, path)
		} else {
			fmt.Fprintf(out, "Class:        %s (no path configured)\n", classID)
		}
	}
}
