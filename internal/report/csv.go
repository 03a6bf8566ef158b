package report

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"homepay/internal/analytics"
)

// SummaryRecord is one CSV line of the summary export.
type SummaryRecord struct {
	Type        string `csv:"Type"`
	Description string `csv:"Description"`
	Total       string `csv:"Total Amount"`
	Jan         string `csv:"Jan"`
	Feb         string `csv:"Feb"`
	Mar         string `csv:"Mar"`
	Apr         string `csv:"Apr"`
	May         string `csv:"May"`
	Jun         string `csv:"Jun"`
	Jul         string `csv:"Jul"`
	Aug         string `csv:"Aug"`
	Sep         string `csv:"Sep"`
	Oct         string `csv:"Oct"`
	Nov         string `csv:"Nov"`
	Dec         string `csv:"Dec"`
}

func record(r analytics.SummaryRow) SummaryRecord {
	m := func(i int) string { return r.Monthly[i].StringFixed(2) }
	return SummaryRecord{
		Type: r.Type, Description: r.Descriptions, Total: r.Total.StringFixed(2),
		Jan: m(0), Feb: m(1), Mar: m(2), Apr: m(3), May: m(4), Jun: m(5),
		Jul: m(6), Aug: m(7), Sep: m(8), Oct: m(9), Nov: m(10), Dec: m(11),
	}
}

// SummaryRecords lists the totals row first, then one record per type.
func SummaryRecords(t *analytics.SummaryTable) []*SummaryRecord {
	out := make([]*SummaryRecord, 0, len(t.Rows)+1)
	tot := record(t.Totals)
	out = append(out, &tot)
	for _, r := range t.Rows {
		rec := record(r)
		out = append(out, &rec)
	}
	return out
}

// WriteSummaryCSV writes the summary table with a header line.
func WriteSummaryCSV(w io.Writer, t *analytics.SummaryTable) error {
	if err := gocsv.Marshal(SummaryRecords(t), w); err != nil {
		return fmt.Errorf("write summary csv: %w", err)
	}
	return nil
}

// ReadSummaryCSV parses a file written by WriteSummaryCSV.
func ReadSummaryCSV(r io.Reader) ([]*SummaryRecord, error) {
	var out []*SummaryRecord
	if err := gocsv.Unmarshal(r, &out); err != nil {
		return nil, fmt.Errorf("read summary csv: %w", err)
	}
	return out, nil
}
