package portal

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"jerseysync/internal/config"
)

// Master registration report link, most specific first. The portal's
// markup shifts between releases, so several shapes are tried.
var masterReportSelectors = []string{
	`a[href$='master_registration.csv']`,
	`a[href*='master_registration.csv']`,
	`a[href*='master_registration']`,
}

// Saved custom report containers, again with markup drift fallbacks.
var savedReportSelectors = []string{
	`.saved-report-container`,
	`.report-item`,
	`[class*='saved-report']`,
}

// Filter is one custom-report filter, e.g. {Type: "eq", Value: "CO"}.
type Filter struct {
	Type  string
	Value string
}

// Client downloads registration reports from an authenticated Session.
type Client struct {
	session *Session
	flow    *LoginFlow
	cfg     config.PortalConfig
	logger  *zerolog.Logger
}

func NewClient(s *Session, logger *zerolog.Logger) *Client {
	return &Client{
		session: s,
		flow:    NewLoginFlow(s, logger),
		cfg:     s.cfg,
		logger:  logger,
	}
}

// Authenticate runs the three-stage login flow.
func (c *Client) Authenticate(ctx context.Context) error {
	return c.flow.Authenticate(ctx)
}

// AvailableSeasons lists seasons offered by the portal.
func (c *Client) AvailableSeasons(ctx context.Context) ([]Season, error) {
	return c.flow.AvailableSeasons(ctx)
}

// DownloadMasterReport captures the master registration CSV. The backend
// generating the report is slow; the download timeout is generous by
// config.
func (c *Client) DownloadMasterReport(ctx context.Context) (string, error) {
	if !c.session.Authenticated() {
		return "", ErrNotAuthenticated
	}

	d := c.session.Driver()
	c.logger.Info().Str("url", c.cfg.ReportsURL).Msg("navigating to reports page")
	if err := d.Navigate(ctx, c.cfg.ReportsURL); err != nil {
		return "", err
	}

	sel, err := firstMatch(ctx, d, masterReportSelectors, 15*time.Second)
	if err != nil {
		return "", fmt.Errorf("master registration report link not found: %w", err)
	}

	return c.session.Download(ctx, DownloadRequest{
		Trigger:      func(ctx context.Context) error { return d.Click(ctx, sel) },
		PathTemplate: c.session.dlCfg.FilenamePattern,
		Ext:          ".csv",
	})
}

// DownloadCustomReport finds a saved report whose fields and filters
// match the request and captures its CSV or XLS download. There is no
// support for creating a new saved report through the UI; a miss returns
// ErrNoMatchingReport.
func (c *Client) DownloadCustomReport(ctx context.Context, fields []string, filters map[string]Filter, format string) (string, error) {
	if !c.session.Authenticated() {
		return "", ErrNotAuthenticated
	}
	if format != "csv" && format != "xls" {
		return "", fmt.Errorf("unsupported report format: %s", format)
	}

	d := c.session.Driver()
	if err := d.Navigate(ctx, c.cfg.ReportsURL); err != nil {
		return "", err
	}

	containerSel, reports, err := c.listSavedReports(ctx, d)
	if err != nil {
		return "", err
	}
	c.logger.Info().Int("count", len(reports)).Msg("saved reports found")

	match := -1
	for _, r := range reports {
		if matchesSavedReport(r, fields, filters) {
			match = r.Index
			break
		}
	}
	if match < 0 {
		return "", ErrNoMatchingReport
	}

	buttonSel := `a.btn-download-csv`
	if format == "xls" {
		buttonSel = `a.btn-download-xls`
	}

	return c.session.Download(ctx, DownloadRequest{
		Trigger: func(ctx context.Context) error {
			return d.ClickWithin(ctx, containerSel, match, buttonSel)
		},
		PathTemplate: "custom_report_{timestamp}",
		Ext:          "." + format,
	})
}

func (c *Client) listSavedReports(ctx context.Context, d Driver) (string, []SavedReport, error) {
	for _, sel := range savedReportSelectors {
		reports, err := d.SavedReports(ctx, sel)
		if err != nil {
			return "", nil, err
		}
		if len(reports) > 0 {
			return sel, reports, nil
		}
	}
	return "", nil, ErrNoMatchingReport
}

// matchesSavedReport compares a saved report's annotations against the
// requested fields and filters, ignoring order.
func matchesSavedReport(r SavedReport, fields []string, filters map[string]Filter) bool {
	return equalStringSets(splitFieldList(r.Fields), fields) &&
		equalFilterMaps(parseFilterList(r.Filters), filters)
}

// splitFieldList parses "First Name, Last Name, Email" into its parts.
func splitFieldList(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// parseFilterList parses the portal's annotation format "State:eq,CO;".
func parseFilterList(s string) map[string]Filter {
	out := make(map[string]Filter)
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		field, rest, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		ftype, value, ok := strings.Cut(rest, ",")
		if !ok {
			continue
		}
		out[strings.TrimSpace(field)] = Filter{Type: strings.TrimSpace(ftype), Value: strings.TrimSpace(value)}
	}
	return out
}

func equalStringSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func equalFilterMaps(a, b map[string]Filter) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}
