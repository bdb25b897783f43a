package util

import (
	"fmt"
	"io"
	"strings"
)

// TableColumn is one column of a rendered table.
type TableColumn struct {
	Header string
	Key    string // row map key
	Width  int    // computed by RenderTable
}

// RenderTable writes rows as left-aligned columns sized to their widest
// cell. ANSI colour codes do not count toward the width.
func RenderTable(w io.Writer, columns []TableColumn, rows []map[string]any) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No data to display")
		return
	}

	for i := range columns {
		columns[i].Width = displayWidth(columns[i].Header)
		for _, row := range rows {
			if v, ok := row[columns[i].Key]; ok {
				columns[i].Width = max(columns[i].Width, displayWidth(fmt.Sprint(v)))
			}
		}
	}

	line := func(cell func(TableColumn) string) {
		parts := make([]string, len(columns))
		for i, col := range columns {
			parts[i] = padToWidth(cell(col), col.Width)
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	line(func(c TableColumn) string { return c.Header })
	line(func(c TableColumn) string { return strings.Repeat("-", c.Width) })
	for _, row := range rows {
		line(func(c TableColumn) string {
			if v, ok := row[c.Key]; ok {
				return fmt.Sprint(v)
			}
			return ""
		})
	}
}

func stripANSI(s string) string {
	for {
		start := strings.Index(s, "\033[")
		if start == -1 {
			return s
		}
		end := strings.IndexByte(s[start:], 'm')
		if end == -1 {
			return s
		}
		s = s[:start] + s[start+end+1:]
	}
}

func displayWidth(s string) int {
	return len([]rune(stripANSI(s)))
}

func padToWidth(s string, width int) string {
	if n := displayWidth(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
