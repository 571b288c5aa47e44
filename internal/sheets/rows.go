package sheets

import (
	"fmt"
	"strings"

	"jerseysync/internal/models"
)

// headerColumns maps trimmed header names to zero-based column indexes.
// Later duplicates do not shadow the first occurrence.
func headerColumns(header []interface{}) map[string]int {
	cols := make(map[string]int, len(header))
	for i, v := range header {
		name := strings.TrimSpace(cellString(v))
		if name == "" {
			continue
		}
		if _, seen := cols[name]; !seen {
			cols[name] = i
		}
	}
	return cols
}

// orderFromRow maps one sheet row into an Order. Missing columns read as
// empty; the sheet's header decides the layout, not column positions.
func orderFromRow(cols map[string]int, row []interface{}, rowNum int) models.Order {
	get := func(header string) string {
		col, ok := cols[header]
		if !ok || col >= len(row) {
			return ""
		}
		return strings.TrimSpace(cellString(row[col]))
	}
	getRaw := func(header string) interface{} {
		col, ok := cols[header]
		if !ok || col >= len(row) {
			return nil
		}
		return row[col]
	}

	o := models.Order{
		Row:           rowNum,
		Link:          get(models.ColLink),
		FirstName:     get(models.ColFirst),
		LastName:      get(models.ColLast),
		Birthdate:     get(models.ColBirthdate),
		BirthYear:     get(models.ColBirthYear),
		JerseyName:    get(models.ColJerseyName),
		JerseySize:    get(models.ColJerseySize),
		JerseyNumber:  get(models.ColJerseyNumber),
		JerseyType:    get(models.ColJerseyType),
		PantShellSize: get(models.ColPantShellSize),
		SockSize:      get(models.ColSockSize),
		SockType:      get(models.ColSockType),
		Contacted:     models.ParseCellStatus(getRaw(models.ColContacted)),
		Fitting:       models.ParseCellStatus(getRaw(models.ColFitting)),
		Confirmed:     models.ParseCellStatus(getRaw(models.ColConfirmed)),
		Address:       get(models.ColAddress),
		City:          get(models.ColCity),
		State:         get(models.ColState),
		Zip:           get(models.ColZip),
		Membership:    get(models.ColMembership),
		Registered:    get(models.ColRegistered),
	}

	for i := 0; i < models.MaxParents; i++ {
		n := i + 1
		o.Parents[i] = models.ParentContact{
			Name:      get(fmt.Sprintf("Parent %d", n)),
			Email:     get(fmt.Sprintf("Email %d", n)),
			Phone:     get(fmt.Sprintf("Phone %d", n)),
			Volunteer: truthy(get(fmt.Sprintf("Volunteer %d", n))),
		}
	}
	return o
}

// cellString renders a sheet cell as text. The API returns strings for
// USER_ENTERED sheets but numbers can still arrive as float64.
func cellString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprintf("%v", val)
	}
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "x", "1":
		return true
	}
	return false
}

// columnLetter converts a zero-based column index to its A1 letter form.
func columnLetter(col int) string {
	letters := ""
	for col >= 0 {
		letters = string(rune('A'+col%26)) + letters
		col = col/26 - 1
	}
	return letters
}
