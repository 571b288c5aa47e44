package portal

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Step is one stage of a portal flow. Selectors are tried in order; the
// first visible match wins. Completion is inferred from the resulting
// URL and title because the portal never signals stage transitions
// explicitly.
type Step struct {
	Stage     string
	Selectors []string
	Timeout   time.Duration

	// Act performs the stage action on the matched selector. Nil means a
	// plain click.
	Act func(ctx context.Context, d Driver, matched string) error

	// ClickRace runs the bounded navigation-wait/idle-wait race after the
	// action, for stages where the portal unpredictably triggers either a
	// full navigation or only an in-page update.
	ClickRace   bool
	NavTimeout  time.Duration
	IdleTimeout time.Duration

	// Complete judges the resulting URL/title. Nil means always complete.
	Complete func(url, title string) bool

	// Required makes a failed Complete predicate abort the flow. Stages
	// past login treat a miss as soft success.
	Required bool
}

// Navigator runs ordered steps against a page driver.
type Navigator struct {
	driver      Driver
	logger      *zerolog.Logger
	screenshots bool
	shotDir     string
}

func NewNavigator(d Driver, logger *zerolog.Logger, screenshots bool, shotDir string) *Navigator {
	return &Navigator{driver: d, logger: logger, screenshots: screenshots, shotDir: shotDir}
}

// Run executes steps in order. Any stage failure aborts the flow; there
// is no resumption mid-flow.
func (n *Navigator) Run(ctx context.Context, steps []Step) error {
	for _, step := range steps {
		if err := n.runStep(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

func (n *Navigator) runStep(ctx context.Context, step Step) error {
	matched, err := n.firstVisible(ctx, step)
	if err != nil {
		n.captureFailure(ctx, step.Stage)
		return err
	}
	n.logger.Debug().Str("stage", step.Stage).Str("selector", matched).Msg("selector matched")

	if step.Act != nil {
		err = step.Act(ctx, n.driver, matched)
	} else {
		err = n.driver.Click(ctx, matched)
	}
	if err != nil {
		return &AuthError{Stage: step.Stage, Err: err}
	}

	if step.ClickRace {
		n.settle(ctx, step)
	}

	url, title, err := n.driver.Location(ctx)
	if err != nil {
		return &AuthError{Stage: step.Stage, Err: err}
	}
	n.logger.Info().Str("stage", step.Stage).Str("url", url).Str("title", title).Msg("stage finished")

	if step.Complete != nil && !step.Complete(url, title) {
		if step.Required {
			n.captureFailure(ctx, step.Stage)
			return &AuthError{Stage: step.Stage, Err: fmt.Errorf("completion check failed at %s", url)}
		}
		// Soft success: the portal's post-stage pages are inconsistent
		// enough that a missed marker is only a warning.
		n.logger.Warn().Str("stage", step.Stage).Str("url", url).Msg("expected page marker missing, continuing")
	}
	return nil
}

// firstVisible walks the fallback chain, giving each selector an equal
// slice of the stage timeout.
func (n *Navigator) firstVisible(ctx context.Context, step Step) (string, error) {
	timeout := step.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if len(step.Selectors) == 0 {
		return "", &SelectorExhaustedError{Stage: step.Stage, Timeout: timeout}
	}
	per := timeout / time.Duration(len(step.Selectors))

	for i, sel := range step.Selectors {
		err := n.driver.WaitVisible(ctx, sel, per)
		if err == nil {
			return sel, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		n.logger.Debug().Str("stage", step.Stage).Int("fallback", i).Str("selector", sel).Msg("selector not found, trying next")
	}
	return "", &SelectorExhaustedError{Stage: step.Stage, Selectors: step.Selectors, Timeout: timeout}
}

// settle races a bounded navigation wait against a shorter idle wait and
// accepts whichever completes; neither outcome is a failure.
func (n *Navigator) settle(ctx context.Context, step Step) {
	navTimeout := step.NavTimeout
	if navTimeout <= 0 {
		navTimeout = 5 * time.Second
	}
	idleTimeout := step.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = time.Second
	}

	navCh := make(chan error, 1)
	idleCh := make(chan error, 1)
	go func() { navCh <- n.driver.WaitNavigation(ctx, navTimeout) }()
	go func() { idleCh <- n.driver.WaitIdle(ctx, idleTimeout) }()

	select {
	case err := <-navCh:
		var nte *NavigationTimeoutError
		if errors.As(err, &nte) {
			n.logger.Debug().Str("stage", step.Stage).Msg("no full navigation detected, accepting idle settle")
			<-idleCh
		}
	case <-idleCh:
	}
}

func (n *Navigator) captureFailure(ctx context.Context, stage string) {
	if !n.screenshots {
		return
	}
	path := filepath.Join(n.shotDir, fmt.Sprintf("%s_debug.png", stage))
	if err := n.driver.Screenshot(ctx, path); err != nil {
		n.logger.Warn().Err(err).Str("stage", stage).Msg("failed to capture debug screenshot")
		return
	}
	n.logger.Info().Str("stage", stage).Str("path", path).Msg("debug screenshot saved")
}
