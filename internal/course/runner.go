// Package course runs one pass of the current-course check: fetch the next
// event, decide whether it is happening now and point the link at it.
package course

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/pearcec/courselink/internal/calendar"
	"github.com/pearcec/courselink/internal/link"
	"github.com/pearcec/courselink/internal/logging"
)

// Switcher repoints the current-course link.
type Switcher interface {
	Switch(classID string) (link.Outcome, error)
}

// Report summarizes one pass.
type Report struct {
	// Event is the first upcoming event, nil when there was none.
	Event *calendar.Event
	State calendar.State
	// Outcome is only meaningful when State is Ongoing.
	Outcome link.Outcome
	// FetchErr holds a swallowed provider failure.
	FetchErr error
}

// Runner wires the event source to the link switcher.
type Runner struct {
	Source     calendar.Source
	Switcher   Switcher
	CalendarID string

	// Location anchors all-day events; nil means UTC.
	Location *time.Location
	Now      func() time.Time
	Out      io.Writer
	Log      *zap.Logger
}

// Run performs one pass. Provider failures are logged and reported in the
// Report without an error; filesystem failures from the switcher are
// returned.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	rep := r.inspect(ctx)
	if rep.FetchErr != nil || rep.Event == nil {
		return rep, nil
	}

	switch rep.State {
	case calendar.Ongoing:
		classID := rep.Event.Description
		outcome, err := r.Switcher.Switch(classID)
		rep.Outcome = outcome
		if err != nil {
			return rep, fmt.Errorf("switch to %s: %w", classID, err)
		}
		switch outcome {
		case link.OutcomeCreated:
			r.printf("Created Symbolic Link to %s\n", classID)
		case link.OutcomeSwitched:
			r.printf("Switched current-class to %s\n", classID)
		case link.OutcomeSkipped:
			r.printf("Class Path or Current Course Link does not exist!\n")
		}
	case calendar.Upcoming:
		r.printf("No classes ongoing...\n")
	}

	return rep, nil
}

// Inspect fetches and classifies the next event without touching the link.
func (r *Runner) Inspect(ctx context.Context) Report {
	return r.inspect(ctx)
}

// inspect only ever looks at the first event; later events are ignored
// even when the first one is already over.
func (r *Runner) inspect(ctx context.Context) Report {
	log := logging.OrNop(r.Log)
	now := r.now()

	events, err := r.Source.Upcoming(ctx, r.CalendarID, now)
	if err != nil {
		log.Error("An error occurred while fetching events", zap.String("calendar", r.CalendarID), zap.Error(err))
		return Report{FetchErr: err}
	}
	if len(events) == 0 {
		log.Debug("no upcoming events", zap.String("calendar", r.CalendarID))
		return Report{}
	}

	first := events[0]
	rep := Report{Event: &first}

	state, err := calendar.Classify(first, now, r.Location)
	if err != nil {
		log.Warn("cannot classify event", zap.String("summary", first.Summary), zap.Error(err))
		rep.State = calendar.Neither
		return rep
	}
	rep.State = state

	log.Debug("next event",
		zap.String("summary", first.Summary),
		zap.String("class", first.Description),
		zap.Stringer("state", state),
		zap.Int("fetched", len(events)),
	)
	return rep
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func (r *Runner) printf(format string, args ...any) {
	if r.Out == nil {
		return
	}
	fmt.Fprintf(r.Out, format, args...)
}
