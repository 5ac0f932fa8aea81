package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"metalpulse/internal/metals"
)

// Quotes prints the current quote board for all tracked metals.
func (a *App) Quotes(ctx context.Context) error {
	agg, err := a.newAggregator()
	if err != nil {
		return err
	}

	quotes, err := agg.GetAllQuotes(ctx)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Symbol\tName\tPrice\tChange\tChange%\tHigh\tLow\tDate")

	for _, m := range metals.All {
		q, ok := quotes[m.Symbol]
		if !ok {
			continue
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			m.Symbol,
			m.Name,
			formatDecimal(q.Price, 2),
			formatDecimal(q.Change, 2),
			formatDecimal(q.ChangePercent, 2),
			formatDecimal(q.High, 2),
			formatDecimal(q.Low, 2),
			q.EffectiveDate,
		)
	}

	writer.Flush()
	return nil
}
