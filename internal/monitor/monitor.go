// Package monitor runs one check cycle: load state, fetch the page, extract
// the status date, apply the notification rules, deliver notices and save.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/pfrederiksen/bamf-monitor/internal/exam"
	"github.com/pfrederiksen/bamf-monitor/internal/logger"
	"github.com/pfrederiksen/bamf-monitor/internal/metrics"
	"github.com/pfrederiksen/bamf-monitor/internal/notifier"
)

// Outcome summarizes how a run ended.
type Outcome string

const (
	OutcomeTerminated   Outcome = "terminated"
	OutcomeFetchFailed  Outcome = "fetch_failed"
	OutcomeNoStatusDate Outcome = "no_status_date"
	OutcomeNotifyFailed Outcome = "notify_failed"
	OutcomeSaveFailed   Outcome = "save_failed"
	OutcomeChecked      Outcome = "checked"
)

// Fetcher retrieves the raw page.
type Fetcher interface {
	Fetch(ctx context.Context) (string, error)
}

// Store loads and saves the single state record.
type Store interface {
	Load() (*exam.State, error)
	Save(state *exam.State) error
}

// Result describes a finished run.
type Result struct {
	Outcome    Outcome
	StatusDate string
	Notices    []exam.Notice
	State      exam.State
}

// Notified reports whether any notification was delivered.
func (r *Result) Notified() bool {
	return r != nil && len(r.Notices) > 0 && r.Outcome == OutcomeChecked
}

// Controller wires the components of a check cycle.
type Controller struct {
	Fetcher   Fetcher
	Extractor exam.Extractor
	Store     Store
	Notifier  notifier.Notifier
	Composer  notifier.Composer
	Rules     exam.Rules

	// TextOf turns the fetched page into text before extraction. Nil passes
	// the page through.
	TextOf func(page string) string
	// Now defaults to time.Now.
	Now     func() time.Time
	Log     *logger.Logger
	Metrics *metrics.Recorder
}

// Run performs one check cycle.
//
// Fetch, notification and save failures are returned as errors. A missing
// status date is not an error. State is saved only when the rules were
// evaluated and every notice was delivered.
func (c *Controller) Run(ctx context.Context) (*Result, error) {
	log := c.Log
	if log == nil {
		log = logger.Default()
	}

	state, err := c.Store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading state: %w", err)
	}
	c.Metrics.Phase(state.TargetFoundAt != nil, state.Terminated)

	if state.Terminated {
		log.Info("Monitoring already terminated", nil)
		return c.finish(&Result{Outcome: OutcomeTerminated, State: *state}), nil
	}

	log.Info("Checking BAMF page", logger.Fields{"target_date": c.Rules.TargetDate})

	page, err := c.Fetcher.Fetch(ctx)
	if err != nil {
		log.Error("Could not fetch page, exiting run", nil, err)
		c.finish(&Result{Outcome: OutcomeFetchFailed, State: *state})
		return nil, fmt.Errorf("fetching page: %w", err)
	}

	text := page
	if c.TextOf != nil {
		text = c.TextOf(page)
	}

	statusDate, ok := c.extractor().Extract(text)
	if !ok {
		log.Warn("Official sentence not found", logger.Fields{"marker": exam.Marker})
		return c.finish(&Result{Outcome: OutcomeNoStatusDate, State: *state}), nil
	}

	log.Info("Status date found", logger.Fields{
		"status_date": statusDate,
		"target_date": c.Rules.TargetDate,
		"phase":       string(state.Phase()),
	})

	next, notices := exam.Evaluate(*state, statusDate, c.now().UTC(), c.Rules)

	for _, n := range notices {
		log.Info("Triggering notification", logger.Fields{"kind": string(n.Kind)})
		msg := c.Composer.Compose(n)
		err := c.Notifier.Notify(ctx, msg)
		c.Metrics.Notification(string(n.Kind), err)
		if err != nil {
			log.Error("Notification failed, state not saved", logger.Fields{"kind": string(n.Kind)}, err)
			c.finish(&Result{Outcome: OutcomeNotifyFailed, StatusDate: statusDate, State: *state})
			return nil, fmt.Errorf("sending %s notification: %w", n.Kind, err)
		}
		log.Info("Notification sent", logger.Fields{"kind": string(n.Kind), "subject": msg.Subject})
	}

	if err := c.Store.Save(&next); err != nil {
		c.finish(&Result{Outcome: OutcomeSaveFailed, StatusDate: statusDate, Notices: notices, State: *state})
		return nil, fmt.Errorf("saving state: %w", err)
	}

	if len(notices) == 0 {
		log.Debug("No rule fired", logger.Fields{"last_date": next.LastDateString()})
	}

	return c.finish(&Result{
		Outcome:    OutcomeChecked,
		StatusDate: statusDate,
		Notices:    notices,
		State:      next,
	}), nil
}

func (c *Controller) finish(r *Result) *Result {
	c.Metrics.Run(string(r.Outcome), c.now())
	c.Metrics.Phase(r.State.TargetFoundAt != nil, r.State.Terminated)
	return r
}

func (c *Controller) extractor() exam.Extractor {
	if c.Extractor == nil {
		return exam.FragmentExtractor{}
	}
	return c.Extractor
}

func (c *Controller) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}
