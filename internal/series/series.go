// Package series models ordered historical price points and parses the
// delimited day-level payloads upstream sources return.
package series

import (
	"github.com/shopspring/decimal"
)

// Point is one day-level observation. Dates are ISO-8601 YYYY-MM-DD, so
// lexicographic order equals chronological order.
type Point struct {
	Date  string
	Close decimal.Decimal
}

// Series is an ascending-by-date sequence of points with all closes > 0.
// Parsers return a fresh slice per call; a Series is never mutated in place.
type Series []Point

// Last returns the final point of the series.
func (s Series) Last() (Point, bool) {
	if len(s) == 0 {
		return Point{}, false
	}
	return s[len(s)-1], true
}

// TrimLast keeps at most n trailing points.
func (s Series) TrimLast(n int) Series {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// HighLow returns the maximum and minimum close over the series.
func (s Series) HighLow() (high, low decimal.Decimal, ok bool) {
	if len(s) == 0 {
		return decimal.Decimal{}, decimal.Decimal{}, false
	}
	high, low = s[0].Close, s[0].Close
	for _, p := range s[1:] {
		if p.Close.GreaterThan(high) {
			high = p.Close
		}
		if p.Close.LessThan(low) {
			low = p.Close
		}
	}
	return high, low, true
}
