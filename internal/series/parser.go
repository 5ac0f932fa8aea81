package series

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseDelimited turns a raw delimited text payload into a Series.
//
// The payload must carry a header row with case-insensitive "date" and
// "close" columns; the delimiter is ";" when the header contains one,
// "," otherwise. Rows with an empty date, a non-numeric close, or a close
// <= 0 are dropped. A shape mismatch (missing header columns, fewer than
// two lines) yields an empty series rather than an error: upstream returning
// the wrong shape is a data condition, not a failure of this parser.
//
// Surviving rows are sorted ascending by date; upstream ordering is not
// guaranteed. Parsing is idempotent: identical input yields an identical
// series.
func ParseDelimited(text string) Series {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	var lines []string
	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) < 2 {
		return nil
	}

	header := lines[0]
	delimiter := ","
	if strings.Contains(header, ";") {
		delimiter = ";"
	}

	idxDate, idxClose := -1, -1
	for i, cell := range strings.Split(header, delimiter) {
		switch strings.ToLower(strings.TrimSpace(cell)) {
		case "date":
			if idxDate == -1 {
				idxDate = i
			}
		case "close":
			if idxClose == -1 {
				idxClose = i
			}
		}
	}
	if idxDate == -1 || idxClose == -1 {
		return nil
	}

	rows := make(Series, 0, len(lines)-1)
	for _, line := range lines[1:] {
		cells := strings.Split(line, delimiter)
		if idxDate >= len(cells) || idxClose >= len(cells) {
			continue
		}

		date := strings.TrimSpace(cells[idxDate])
		if date == "" {
			continue
		}

		close, err := decimal.NewFromString(strings.TrimSpace(cells[idxClose]))
		if err != nil || close.LessThanOrEqual(decimal.Zero) {
			continue
		}

		rows = append(rows, Point{Date: date, Close: close})
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })
	return rows
}
