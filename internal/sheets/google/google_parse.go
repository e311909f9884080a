package google

import (
	"fmt"
	"strconv"
	"strings"
)

// a1Range builds "Sheet!A:F", quoting sheet names that need it.
func a1Range(sheet, cols string) string {
	return quoteSheet(sheet) + "!" + cols
}

func quoteSheet(name string) string {
	plain := name != ""
	for _, r := range name {
		if !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			plain = false
			break
		}
	}
	if plain {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// rowSpan extracts the row numbers of an updated range such as
// "'My Sheet'!A12:F15".
func rowSpan(updated string) (int, int, error) {
	i := strings.LastIndex(updated, "!")
	if i < 0 {
		return 0, 0, fmt.Errorf("range %q has no sheet separator", updated)
	}
	cells := strings.Split(updated[i+1:], ":")
	first, err := cellRow(cells[0])
	if err != nil {
		return 0, 0, err
	}
	last := first
	if len(cells) > 1 {
		if last, err = cellRow(cells[1]); err != nil {
			return 0, 0, err
		}
	}
	return first, last, nil
}

func cellRow(cell string) (int, error) {
	digits := strings.TrimLeft(cell, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("cell %q has no row number", cell)
	}
	return n, nil
}
