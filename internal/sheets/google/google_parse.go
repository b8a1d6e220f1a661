package google

import (
	"fmt"
	"strings"
)

// indexRows maps entry ids in column A to 1-based row numbers. The header
// row and blank cells are skipped; the first occurrence of an id wins.
func indexRows(values [][]any) map[string]int {
	out := make(map[string]int, len(values))
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		id := strings.TrimSpace(fmt.Sprint(row[0]))
		if id == "" || (i == 0 && strings.EqualFold(id, "Entry ID")) {
			continue
		}
		if _, seen := out[id]; seen {
			continue
		}
		out[id] = i + 1
	}
	return out
}

// quoteSheet wraps a sheet name for use in A1 notation.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func rowRange(sheet string, n int) string {
	return fmt.Sprintf("%s!A%d:H%d", quoteSheet(sheet), n, n)
}

func columnRange(sheet, col string) string {
	return fmt.Sprintf("%s!%s:%s", quoteSheet(sheet), col, col)
}
