package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CellStatus models a tracking cell that is either empty or carries the
// date the step was completed. Legacy sheets sometimes hold free text in
// these cells; any non-empty value counts as done, but only real dates
// round-trip as dates.
type CellStatus struct {
	Done bool
	Date time.Time
	Raw  string
}

// Empty is the zero CellStatus.
var Empty = CellStatus{}

// DoneOn returns a CellStatus completed on the given day.
func DoneOn(date time.Time) CellStatus {
	d := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return CellStatus{Done: true, Date: d}
}

// excelEpoch is the serial-number epoch Sheets uses for unformatted
// date values (accounting for the 1900 leap-year defect).
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// ParseCellStatus interprets a raw sheet cell. Recognized date shapes are
// M/D, M/D/YYYY and spreadsheet serial numbers; other non-empty text is
// treated as done with no date.
func ParseCellStatus(value interface{}) CellStatus {
	switch v := value.(type) {
	case nil:
		return Empty
	case float64:
		if v <= 0 {
			return Empty
		}
		return CellStatus{Done: true, Date: excelEpoch.AddDate(0, 0, int(v)), Raw: strconv.FormatFloat(v, 'f', -1, 64)}
	case int:
		if v <= 0 {
			return Empty
		}
		return CellStatus{Done: true, Date: excelEpoch.AddDate(0, 0, v), Raw: strconv.Itoa(v)}
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return Empty
		}
		if d, ok := parseSlashDate(s); ok {
			return CellStatus{Done: true, Date: d, Raw: s}
		}
		// Legacy free text, e.g. "yes" or a volunteer's initials.
		return CellStatus{Done: true, Raw: s}
	default:
		return Empty
	}
}

func parseSlashDate(s string) (time.Time, bool) {
	parts := strings.Split(s, "/")
	switch len(parts) {
	case 2:
		m, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		d, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err1 != nil || err2 != nil || m < 1 || m > 12 || d < 1 || d > 31 {
			return time.Time{}, false
		}
		return time.Date(time.Now().Year(), time.Month(m), d, 0, 0, 0, 0, time.UTC), true
	case 3:
		m, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		d, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
		y, err3 := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err1 != nil || err2 != nil || err3 != nil || m < 1 || m > 12 || d < 1 || d > 31 {
			return time.Time{}, false
		}
		if y < 100 {
			y += 2000
		}
		return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// SheetValue renders the status the way the worksheet stores it.
func (c CellStatus) SheetValue() string {
	if !c.Done {
		return ""
	}
	if c.Date.IsZero() {
		return c.Raw
	}
	return c.Date.Format("01/02/2006")
}

func (c CellStatus) String() string {
	if !c.Done {
		return "empty"
	}
	if c.Date.IsZero() {
		return fmt.Sprintf("done(%s)", c.Raw)
	}
	return fmt.Sprintf("done(%s)", c.Date.Format("2006-01-02"))
}
