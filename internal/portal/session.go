package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"jerseysync/internal/config"
)

// Session owns one browser context and page for a sync run. It is never
// shared across concurrent order operations; the run that created it must
// close it.
type Session struct {
	cfg    config.PortalConfig
	dlCfg  config.DownloadConfig
	logger *zerolog.Logger

	allocCancel context.CancelFunc
	ctxCancel   context.CancelFunc
	browserCtx  context.Context

	driver        Driver
	authenticated bool
}

// NewSession launches the browser and prepares a page. Close must be
// called when the run ends.
func NewSession(ctx context.Context, cfg config.PortalConfig, dlCfg config.DownloadConfig, logger *zerolog.Logger) (*Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.WindowSize(1280, 720),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, ctxCancel := chromedp.NewContext(allocCtx)

	// Materialize the browser process up front so startup failures
	// surface here, not on the first navigation.
	if err := chromedp.Run(browserCtx); err != nil {
		ctxCancel()
		allocCancel()
		return nil, fmt.Errorf("browser startup failed: %w", err)
	}

	s := &Session{
		cfg:         cfg,
		dlCfg:       dlCfg,
		logger:      logger,
		allocCancel: allocCancel,
		ctxCancel:   ctxCancel,
		browserCtx:  browserCtx,
	}
	s.driver = &chromedpDriver{ctx: browserCtx}

	logger.Info().Bool("headless", cfg.Headless).Msg("browser session started")
	return s, nil
}

// Driver exposes the page surface for the navigator.
func (s *Session) Driver() Driver { return s.driver }

// Authenticated reports whether the login flow has completed.
func (s *Session) Authenticated() bool { return s.authenticated }

func (s *Session) setAuthenticated(v bool) { s.authenticated = v }

// Context returns the browser context for download listeners.
func (s *Session) Context() context.Context { return s.browserCtx }

// Close tears down the page and browser.
func (s *Session) Close() {
	s.authenticated = false
	if s.ctxCancel != nil {
		s.ctxCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	s.logger.Info().Msg("browser session closed")
}

// chromedpDriver implements Driver over a chromedp browser context.
type chromedpDriver struct {
	ctx context.Context
}

func (d *chromedpDriver) run(ctx context.Context, actions ...chromedp.Action) error {
	// chromedp actions run on the session's target; the caller context
	// only bounds this invocation.
	runCtx := d.ctx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(d.ctx, deadline)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}

func (d *chromedpDriver) Navigate(ctx context.Context, url string) error {
	return d.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (d *chromedpDriver) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.run(tctx, chromedp.WaitVisible(sel, chromedp.ByQuery))
}

func (d *chromedpDriver) Click(ctx context.Context, sel string) error {
	return d.run(ctx, chromedp.Click(sel, chromedp.ByQuery))
}

func (d *chromedpDriver) ClickNth(ctx context.Context, sel string, n int) error {
	js := fmt.Sprintf(`(function() {
		const els = document.querySelectorAll(%q);
		if (els.length <= %d) return false;
		els[%d].click();
		return true;
	})()`, sel, n, n)
	var clicked bool
	if err := d.run(ctx, chromedp.Evaluate(js, &clicked)); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("selector %q has no element at index %d", sel, n)
	}
	return nil
}

func (d *chromedpDriver) Fill(ctx context.Context, sel, value string) error {
	return d.run(ctx, chromedp.SetValue(sel, value, chromedp.ByQuery))
}

func (d *chromedpDriver) Links(ctx context.Context, sel string) ([]Link, error) {
	js := fmt.Sprintf(`Array.from(document.querySelectorAll(%q)).map((a, i) => ({
		index: i,
		text: (a.textContent || '').trim(),
		onclick: a.getAttribute('onclick') || ''
	}))`, sel)
	var raw json.RawMessage
	if err := d.run(ctx, chromedp.Evaluate(js, &raw)); err != nil {
		return nil, err
	}
	var links []Link
	if err := json.Unmarshal(raw, &links); err != nil {
		return nil, err
	}
	return links, nil
}

func (d *chromedpDriver) Location(ctx context.Context) (string, string, error) {
	var url, title string
	err := d.run(ctx,
		chromedp.Location(&url),
		chromedp.Title(&title),
	)
	return url, title, err
}

func (d *chromedpDriver) WaitNavigation(ctx context.Context, timeout time.Duration) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	navigated := make(chan struct{}, 1)
	listenCtx, stopListening := context.WithCancel(d.ctx)
	defer stopListening()
	chromedp.ListenTarget(listenCtx, func(ev interface{}) {
		if fn, ok := ev.(*page.EventFrameNavigated); ok && fn.Frame.ParentID == "" {
			select {
			case navigated <- struct{}{}:
			default:
			}
		}
	})

	select {
	case <-navigated:
		return d.run(tctx, chromedp.WaitReady("body", chromedp.ByQuery))
	case <-tctx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &NavigationTimeoutError{Timeout: timeout}
	}
}

func (d *chromedpDriver) WaitIdle(ctx context.Context, timeout time.Duration) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	<-tctx.Done()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return d.run(ctx, chromedp.WaitReady("body", chromedp.ByQuery))
}

func (d *chromedpDriver) SavedReports(ctx context.Context, containerSel string) ([]SavedReport, error) {
	js := fmt.Sprintf(`Array.from(document.querySelectorAll(%q)).map((c, i) => ({
		index: i,
		fields: ((c.querySelector('.saved-report-fields') || {}).textContent || '').trim(),
		filters: ((c.querySelector('.saved-report-filters') || {}).textContent || '').trim()
	}))`, containerSel)
	var raw json.RawMessage
	if err := d.run(ctx, chromedp.Evaluate(js, &raw)); err != nil {
		return nil, err
	}
	var reports []SavedReport
	if err := json.Unmarshal(raw, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

func (d *chromedpDriver) ClickWithin(ctx context.Context, containerSel string, n int, innerSel string) error {
	js := fmt.Sprintf(`(function() {
		const containers = document.querySelectorAll(%q);
		if (containers.length <= %d) return false;
		const el = containers[%d].querySelector(%q);
		if (!el) return false;
		el.click();
		return true;
	})()`, containerSel, n, n, innerSel)
	var clicked bool
	if err := d.run(ctx, chromedp.Evaluate(js, &clicked)); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("no %q inside match %d of %q", innerSel, n, containerSel)
	}
	return nil
}

func (d *chromedpDriver) ExpectDownload(ctx context.Context, dir string) (<-chan string, func(), error) {
	if err := d.run(ctx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(dir).
			WithEventsEnabled(true),
	); err != nil {
		return nil, nil, err
	}

	completed := make(chan string, 1)
	listenCtx, stop := context.WithCancel(d.ctx)
	chromedp.ListenBrowser(listenCtx, func(ev interface{}) {
		if p, ok := ev.(*browser.EventDownloadProgress); ok && p.State == browser.DownloadProgressStateCompleted {
			select {
			case completed <- filepath.Join(dir, p.GUID):
			default:
			}
		}
	})
	return completed, stop, nil
}

func (d *chromedpDriver) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := d.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}
