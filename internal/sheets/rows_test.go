package sheets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jerseysync/internal/models"
)

func row(vals ...interface{}) []interface{} { return vals }

func TestHeaderColumns(t *testing.T) {
	cols := headerColumns(row("First", "Last", "", "  Contacted  ", "First"))

	assert.Equal(t, 0, cols["First"], "first occurrence wins over the duplicate")
	assert.Equal(t, 1, cols["Last"])
	assert.Equal(t, 3, cols["Contacted"])
	assert.NotContains(t, cols, "")
}

func TestOrderFromRow(t *testing.T) {
	header := row("First", "Last", "Jersey Size", "Contacted", "Fitting",
		"Parent 1", "Email 1", "Phone 1", "Volunteer 1",
		"Parent 2", "Email 2")
	cols := headerColumns(header)

	o := orderFromRow(cols, row(
		"John", "Doe", "M", "6/15/2024", "",
		"Jane Doe", "jane@example.com", "555-1234", "Yes",
		"Jim Doe", "jim@example.com",
	), 5)

	assert.Equal(t, 5, o.Row)
	assert.Equal(t, "John Doe", o.FullName())
	assert.Equal(t, "M", o.JerseySize)
	assert.True(t, o.Contacted.Done)
	assert.Equal(t, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), o.Contacted.Date)
	assert.False(t, o.Fitting.Done)

	assert.Equal(t, "Jane Doe", o.Parents[0].Name)
	assert.True(t, o.Parents[0].Volunteer)
	assert.False(t, o.Parents[1].Volunteer)
	assert.Equal(t, []string{"jane@example.com", "jim@example.com"}, o.ParentEmails())
}

func TestOrderFromRowShortRow(t *testing.T) {
	cols := headerColumns(row("First", "Last", "Jersey Size", "Contacted"))

	// Trailing empty cells are omitted by the API; short rows must read
	// as empty, not panic.
	o := orderFromRow(cols, row("John"), 2)
	assert.Equal(t, "John", o.FirstName)
	assert.Empty(t, o.LastName)
	assert.False(t, o.Contacted.Done)
	assert.False(t, o.HasIdentity())
}

func TestOrderFromRowSentinelTrailer(t *testing.T) {
	cols := headerColumns(row("First", "Last", "Jersey Name"))
	o := orderFromRow(cols, row("", "", "Last Jersey Name"), 40)
	assert.True(t, o.IsSentinelTrailer())
}

func TestOrderFromRowNumericCells(t *testing.T) {
	cols := headerColumns(row("First", "Last", "Jersey #", "Zip", "Contacted"))
	o := orderFromRow(cols, row("John", "Doe", float64(42), float64(80301), float64(45458)), 3)

	assert.Equal(t, "42", o.JerseyNumber)
	assert.Equal(t, "80301", o.Zip)
	// A serial date number still parses as a contacted date.
	assert.True(t, o.Contacted.Done)
}

func TestTruthy(t *testing.T) {
	for _, s := range []string{"Yes", "y", "TRUE", "x", "1"} {
		assert.True(t, truthy(s), s)
	}
	for _, s := range []string{"", "no", "0", "false", "maybe"} {
		assert.False(t, truthy(s), s)
	}
}

func TestColumnLetter(t *testing.T) {
	cases := map[int]string{0: "A", 1: "B", 25: "Z", 26: "AA", 27: "AB", 51: "AZ", 52: "BA", 701: "ZZ", 702: "AAA"}
	for col, want := range cases {
		assert.Equal(t, want, columnLetter(col))
	}
}

func TestCellRefUsesSheetName(t *testing.T) {
	s := &Service{sheetName: "Jersey Orders", columns: map[string]int{models.ColContacted: 12}}

	col, err := s.columnFor(models.ColContacted)
	require.NoError(t, err)
	assert.Equal(t, "'Jersey Orders'!M9", s.rangeRef(columnLetter(col)+"9"))

	_, err = s.columnFor("Nope")
	assert.Error(t, err)
}
