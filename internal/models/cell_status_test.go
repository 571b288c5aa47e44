package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseCellStatusEmpty(t *testing.T) {
	assert.Equal(t, Empty, ParseCellStatus(nil))
	assert.Equal(t, Empty, ParseCellStatus(""))
	assert.Equal(t, Empty, ParseCellStatus("   "))
	assert.Equal(t, Empty, ParseCellStatus(float64(0)))
	assert.Equal(t, Empty, ParseCellStatus(-3))
}

func TestParseCellStatusSlashDates(t *testing.T) {
	full := ParseCellStatus("6/15/2024")
	assert.True(t, full.Done)
	assert.Equal(t, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), full.Date)

	shortYear := ParseCellStatus("6/15/24")
	assert.Equal(t, 2024, shortYear.Date.Year())

	// M/D with no year means the current year.
	md := ParseCellStatus("6/15")
	assert.True(t, md.Done)
	assert.Equal(t, time.Now().Year(), md.Date.Year())
	assert.Equal(t, time.June, md.Date.Month())
}

func TestParseCellStatusSerialNumber(t *testing.T) {
	// Serial 45458 is 2024-06-15 on the 1899-12-30 epoch.
	got := ParseCellStatus(float64(45458))
	assert.True(t, got.Done)
	assert.Equal(t, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), got.Date)
}

func TestParseCellStatusLegacyText(t *testing.T) {
	got := ParseCellStatus("spoke at practice")
	assert.True(t, got.Done)
	assert.True(t, got.Date.IsZero())
	assert.Equal(t, "spoke at practice", got.Raw)

	// Invalid date shapes fall back to legacy text.
	bad := ParseCellStatus("13/45/2024")
	assert.True(t, bad.Done)
	assert.True(t, bad.Date.IsZero())
}

func TestSheetValueRoundTrip(t *testing.T) {
	assert.Equal(t, "", Empty.SheetValue())
	assert.Equal(t, "06/15/2024", DoneOn(time.Date(2024, 6, 15, 14, 30, 0, 0, time.Local)).SheetValue())
	assert.Equal(t, "yes", CellStatus{Done: true, Raw: "yes"}.SheetValue())

	parsed := ParseCellStatus("06/15/2024")
	assert.Equal(t, "06/15/2024", parsed.SheetValue())
}

func TestCellStatusString(t *testing.T) {
	assert.Equal(t, "empty", Empty.String())
	assert.Equal(t, "done(2024-06-15)", DoneOn(time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)).String())
	assert.Equal(t, "done(yes)", CellStatus{Done: true, Raw: "yes"}.String())
}
