package portal

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reportsClient(t *testing.T, d Driver, authenticated bool) *Client {
	t.Helper()
	cfg := testPortalConfig()
	cfg.ReportsURL = "https://portal.example.com/tool/reports"
	s := downloadSession(t, d)
	s.cfg = cfg
	s.authenticated = authenticated
	return NewClient(s, nopLogger())
}

func TestDownloadMasterReportRequiresAuth(t *testing.T) {
	c := reportsClient(t, newFakeDriver(), false)
	_, err := c.DownloadMasterReport(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestDownloadMasterReport(t *testing.T) {
	d := newFakeDriver()
	d.visible[`a[href*='master_registration']`] = true
	c := reportsClient(t, d, true)

	tmp := filepath.Join(c.session.dlCfg.Directory, "guid-master")
	require.NoError(t, os.WriteFile(tmp, []byte("csv data"), 0o644))
	d.downloadCh <- tmp

	path, err := c.DownloadMasterReport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ".csv", filepath.Ext(path))
	// The least specific fallback was the one that matched.
	assert.Equal(t, []string{`a[href*='master_registration']`}, d.clicks)
	assert.Equal(t, "https://portal.example.com/tool/reports", d.url)
}

func TestDownloadCustomReportRejectsFormat(t *testing.T) {
	c := reportsClient(t, newFakeDriver(), true)
	_, err := c.DownloadCustomReport(context.Background(), nil, nil, "pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdf")
}

func TestDownloadCustomReportNoMatch(t *testing.T) {
	d := newFakeDriver()
	d.reports[`.saved-report-container`] = []SavedReport{
		{Index: 0, Fields: "First Name, Last Name", Filters: "State:eq,CO;"},
	}
	c := reportsClient(t, d, true)

	_, err := c.DownloadCustomReport(context.Background(),
		[]string{"First Name", "Email"}, nil, "csv")
	assert.ErrorIs(t, err, ErrNoMatchingReport)
}

func TestDownloadCustomReportMatches(t *testing.T) {
	d := newFakeDriver()
	// Only the fallback container shape has any reports.
	d.reports[`.report-item`] = []SavedReport{
		{Index: 0, Fields: "First Name, Last Name", Filters: ""},
		{Index: 1, Fields: "Last Name, First Name, Email", Filters: "State:eq,CO;"},
	}
	c := reportsClient(t, d, true)

	tmp := filepath.Join(c.session.dlCfg.Directory, "guid-custom")
	require.NoError(t, os.WriteFile(tmp, []byte("xls data"), 0o644))
	d.downloadCh <- tmp

	path, err := c.DownloadCustomReport(context.Background(),
		[]string{"First Name", "Email", "Last Name"},
		map[string]Filter{"State": {Type: "eq", Value: "CO"}},
		"xls")
	require.NoError(t, err)
	assert.Equal(t, ".xls", filepath.Ext(path))
	assert.Equal(t, []string{`.report-item[1] a.btn-download-xls`}, d.clickWithin)
}

func TestSplitFieldList(t *testing.T) {
	assert.Equal(t, []string{"First Name", "Last Name", "Email"},
		splitFieldList("First Name, Last Name , Email"))
	assert.Empty(t, splitFieldList(" , "))
}

func TestParseFilterList(t *testing.T) {
	got := parseFilterList("State:eq,CO; Division:eq,12U;")
	assert.Equal(t, map[string]Filter{
		"State":    {Type: "eq", Value: "CO"},
		"Division": {Type: "eq", Value: "12U"},
	}, got)

	// Malformed fragments are skipped, not fatal.
	assert.Empty(t, parseFilterList("garbage"))
	assert.Empty(t, parseFilterList("State:eq"))
}

func TestMatchesSavedReport(t *testing.T) {
	r := SavedReport{Fields: "First Name, Email", Filters: "State:eq,CO;"}
	want := map[string]Filter{"State": {Type: "eq", Value: "CO"}}

	assert.True(t, matchesSavedReport(r, []string{"Email", "First Name"}, want))
	assert.False(t, matchesSavedReport(r, []string{"Email"}, want))
	assert.False(t, matchesSavedReport(r, []string{"Email", "First Name"},
		map[string]Filter{"State": {Type: "eq", Value: "NY"}}))
	assert.False(t, matchesSavedReport(r, []string{"Email", "First Name"}, nil))
}

func TestAvailableSeasonsViaClient(t *testing.T) {
	d := newFakeDriver()
	d.links[`a[onclick*='check_waiver']`] = []Link{
		{Index: 0, Text: "2023-24", OnClick: "check_waiver('20232024')"},
	}
	c := reportsClient(t, d, true)

	seasons, err := c.AvailableSeasons(context.Background())
	require.NoError(t, err)
	require.Len(t, seasons, 1)
	assert.Equal(t, "2023-2024", seasons[0].DisplayName())
}

func TestDownloadMasterReportLinkMissing(t *testing.T) {
	d := newFakeDriver()
	c := reportsClient(t, d, true)

	_, err := c.DownloadMasterReport(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "master registration report link not found")
}
