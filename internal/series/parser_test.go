package series

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestParseDelimitedDropsBadRows(t *testing.T) {
	input := "date,close\n2024-01-01,100\n2024-01-02,abc\n2024-01-03,-5"

	got := ParseDelimited(input)

	require.Len(t, got, 1)
	require.Equal(t, "2024-01-01", got[0].Date)
	require.True(t, got[0].Close.Equal(decimal.NewFromInt(100)))
}

func TestParseDelimitedSortsByDate(t *testing.T) {
	shuffled := "date,close\n2024-03-02,200\n2024-03-01,100\n2024-03-04,400\n2024-03-03,300"
	ordered := "date,close\n2024-03-01,100\n2024-03-02,200\n2024-03-03,300\n2024-03-04,400"

	got := ParseDelimited(shuffled)
	want := ParseDelimited(ordered)

	require.Equal(t, want, got)
	for i := 1; i < len(got); i++ {
		require.Less(t, got[i-1].Date, got[i].Date)
	}
}

func TestParseDelimitedIdempotent(t *testing.T) {
	input := "date,close\n2024-02-01,2050.5\n2024-02-02,2061.25\n2024-02-05,2049.9"

	first := ParseDelimited(input)
	second := ParseDelimited(input)

	require.Equal(t, first, second)
}

func TestParseDelimitedSemicolonHeader(t *testing.T) {
	comma := "date,close\n2024-01-01,100.5\n2024-01-02,101"
	semicolon := "date;close\n2024-01-01;100.5\n2024-01-02;101"

	require.Equal(t, ParseDelimited(comma), ParseDelimited(semicolon))
}

func TestParseDelimitedExtraColumns(t *testing.T) {
	input := "Date,Open,High,Low,Close,Volume\n2024-01-02,2060,2070,2050,2065.4,0\n2024-01-03,2065,2075,2061,2071.1,0"

	got := ParseDelimited(input)

	require.Len(t, got, 2)
	require.True(t, got[1].Close.Equal(decimal.NewFromFloat(2071.1)))
}

func TestParseDelimitedShapeMismatch(t *testing.T) {
	require.Empty(t, ParseDelimited(""))
	require.Empty(t, ParseDelimited("date,close"))
	require.Empty(t, ParseDelimited("ts,price\n2024-01-01,100"))
	require.Empty(t, ParseDelimited("<html>rate limited</html>"))
}

func TestParseDelimitedCRLF(t *testing.T) {
	input := "date,close\r\n2024-01-01,100\r\n\r\n2024-01-02,101\r\n"

	got := ParseDelimited(input)

	require.Len(t, got, 2)
}

func TestSeriesHighLow(t *testing.T) {
	s := ParseDelimited("date,close\n2024-01-01,10\n2024-01-02,30\n2024-01-03,20")

	high, low, ok := s.HighLow()
	require.True(t, ok)
	require.True(t, high.Equal(decimal.NewFromInt(30)))
	require.True(t, low.Equal(decimal.NewFromInt(10)))
}

func TestSeriesTrimLast(t *testing.T) {
	s := ParseDelimited("date,close\n2024-01-01,1\n2024-01-02,2\n2024-01-03,3")

	trimmed := s.TrimLast(2)
	require.Len(t, trimmed, 2)
	require.Equal(t, "2024-01-02", trimmed[0].Date)

	require.Len(t, s.TrimLast(10), 3)
}
