package portal

import (
	"context"
	"time"
)

// Link is one anchor element matched by a selector, in document order.
type Link struct {
	Index   int    `json:"index"`
	Text    string `json:"text"`
	OnClick string `json:"onclick"`
}

// Driver is the minimal page surface the navigator and download protocol
// need. The production implementation drives a Chrome target through
// chromedp; tests substitute a fake.
type Driver interface {
	// Navigate loads a URL and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error
	// WaitVisible blocks until the selector has a visible match or the
	// timeout elapses.
	WaitVisible(ctx context.Context, sel string, timeout time.Duration) error
	// Click clicks the first match of the selector.
	Click(ctx context.Context, sel string) error
	// ClickNth clicks the nth match of the selector (0-based).
	ClickNth(ctx context.Context, sel string, n int) error
	// Fill sets the value of the first match of the selector.
	Fill(ctx context.Context, sel, value string) error
	// Links returns all anchors matched by the selector.
	Links(ctx context.Context, sel string) ([]Link, error)
	// Location reports the current URL and document title.
	Location(ctx context.Context) (url, title string, err error)
	// WaitNavigation blocks until a full navigation completes, returning
	// NavigationTimeoutError when none happens within the bound.
	WaitNavigation(ctx context.Context, timeout time.Duration) error
	// WaitIdle waits a bounded settle period for in-page DOM updates.
	WaitIdle(ctx context.Context, timeout time.Duration) error
	// Screenshot captures the page to a file.
	Screenshot(ctx context.Context, path string) error
	// SavedReports lists the saved-report containers on the reports page
	// with their raw fields/filters annotations.
	SavedReports(ctx context.Context, containerSel string) ([]SavedReport, error)
	// ClickWithin clicks innerSel inside the nth match of containerSel.
	ClickWithin(ctx context.Context, containerSel string, n int, innerSel string) error
	// ExpectDownload registers a download expectation targeting dir and
	// returns a channel that delivers the completed file's path. The
	// returned stop func releases the listener. Must be called before the
	// action that triggers the download.
	ExpectDownload(ctx context.Context, dir string) (<-chan string, func(), error)
}

// SavedReport is one saved custom report listed on the reports page.
type SavedReport struct {
	Index   int    `json:"index"`
	Fields  string `json:"fields"`
	Filters string `json:"filters"`
}
