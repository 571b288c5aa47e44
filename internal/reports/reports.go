package reports

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// Table is a loaded registration report: a header and its data rows, all
// values as text. Row widths are normalized to the header width.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Processor loads, cleans and exports downloaded registration reports.
type Processor struct {
	logger *zerolog.Logger
}

func NewProcessor(logger *zerolog.Logger) *Processor {
	return &Processor{logger: logger}
}

// LoadCSV reads a downloaded report. Ragged rows are tolerated and padded
// or truncated to the header width.
func (p *Processor) LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse report csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("report %s has no header row", path)
	}

	t := &Table{Columns: normalizeColumns(records[0])}
	width := len(t.Columns)
	for _, rec := range records[1:] {
		row := make([]string, width)
		for i := 0; i < width && i < len(rec); i++ {
			row[i] = rec[i]
		}
		t.Rows = append(t.Rows, row)
	}

	p.logger.Info().Str("path", path).Int("rows", len(t.Rows)).Int("columns", width).Msg("report loaded")
	return t, nil
}

// Clean drops empty and duplicate rows and standardizes name, email and
// phone values in place.
func (p *Processor) Clean(t *Table) *Table {
	initial := len(t.Rows)

	var cleaned [][]string
	seen := make(map[string]bool)
	for _, row := range t.Rows {
		if rowEmpty(row) {
			continue
		}
		for i, col := range t.Columns {
			switch {
			case strings.Contains(col, "name"):
				row[i] = titleCase(row[i])
			case strings.Contains(col, "email"):
				row[i] = strings.ToLower(strings.TrimSpace(row[i]))
			case strings.Contains(col, "phone"):
				row[i] = StandardizePhone(row[i])
			}
		}
		key := strings.Join(row, "\x1f")
		if seen[key] {
			continue
		}
		seen[key] = true
		cleaned = append(cleaned, row)
	}
	t.Rows = cleaned

	if dropped := initial - len(cleaned); dropped > 0 {
		p.logger.Info().Int("dropped", dropped).Msg("empty and duplicate rows removed")
	}
	return t
}

// RequireColumns drops rows that are blank in any of the named columns.
// Column names use the normalized form.
func (p *Processor) RequireColumns(t *Table, required ...string) *Table {
	idx := make([]int, 0, len(required))
	for _, name := range required {
		for i, col := range t.Columns {
			if col == name {
				idx = append(idx, i)
				break
			}
		}
	}

	var kept [][]string
	for _, row := range t.Rows {
		ok := true
		for _, i := range idx {
			if strings.TrimSpace(row[i]) == "" {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, row)
		}
	}

	if dropped := len(t.Rows) - len(kept); dropped > 0 {
		p.logger.Warn().Int("dropped", dropped).Strs("required", required).Msg("rows missing required fields removed")
	}
	t.Rows = kept
	return t
}

// ExportXLSX writes the table as a spreadsheet for sharing with the club.
func (p *Processor) ExportXLSX(t *Table, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	for i, col := range t.Columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
	}
	for r, row := range t.Rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	p.logger.Info().Str("path", path).Int("rows", len(t.Rows)).Msg("report exported")
	return nil
}

var columnCharRe = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// normalizeColumns maps raw CSV headers to stable snake_case names, with
// placeholders for blanks and numeric suffixes for duplicates.
func normalizeColumns(header []string) []string {
	out := make([]string, 0, len(header))
	counts := make(map[string]int)
	for _, col := range header {
		name := strings.TrimSpace(col)
		name = strings.ReplaceAll(name, " ", "_")
		name = columnCharRe.ReplaceAllString(name, "")
		name = strings.ToLower(name)
		if name == "" {
			name = fmt.Sprintf("unnamed_column_%d", len(out))
		}
		counts[name]++
		if counts[name] > 1 {
			name = fmt.Sprintf("%s_%d", name, counts[name])
		}
		out = append(out, name)
	}
	return out
}

var nonDigitRe = regexp.MustCompile(`\D`)

// StandardizePhone formats 10- and 11-digit US numbers as
// "(303) 555-0142"; anything else passes through trimmed.
func StandardizePhone(phone string) string {
	s := strings.TrimSpace(phone)
	if s == "" {
		return ""
	}
	digits := nonDigitRe.ReplaceAllString(s, "")
	switch {
	case len(digits) == 10:
		return fmt.Sprintf("(%s) %s-%s", digits[:3], digits[3:6], digits[6:])
	case len(digits) == 11 && digits[0] == '1':
		return fmt.Sprintf("(%s) %s-%s", digits[1:4], digits[4:7], digits[7:])
	}
	return s
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func rowEmpty(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
