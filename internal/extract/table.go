package extract

import "strings"

// tableToMarkdown converts a grid of cell strings (row-major, header first)
// into the canonical markdown grid: header row, a "---" separator, then
// data rows. Rows shorter than the header are right-padded with empty
// cells; rows longer are truncated. Internal newlines in cells become
// single spaces.
func tableToMarkdown(rows [][]string) (md string, numRows, numCols int) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return "", 0, 0
	}
	cols := len(rows[0])
	clean := make([][]string, len(rows))
	for i, row := range rows {
		cleaned := make([]string, 0, cols)
		for _, cell := range row {
			cleaned = append(cleaned, strings.Join(strings.Fields(strings.ReplaceAll(cell, "\n", " ")), " "))
		}
		for len(cleaned) < cols {
			cleaned = append(cleaned, "")
		}
		if len(cleaned) > cols {
			cleaned = cleaned[:cols]
		}
		clean[i] = cleaned
	}

	var b strings.Builder
	b.WriteString("| " + strings.Join(clean[0], " | ") + " |")
	sep := make([]string, cols)
	for i := range sep {
		sep[i] = "---"
	}
	b.WriteString("\n| " + strings.Join(sep, " | ") + " |")
	for _, row := range clean[1:] {
		b.WriteString("\n| " + strings.Join(row, " | ") + " |")
	}
	return b.String(), len(clean), cols
}
