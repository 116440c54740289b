package report

import (
	"fmt"
	"os"
	"time"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/teslashibe/shelfscan/pkg/catalog"
)

// SummaryExt is appended to the report path for the session summary.
const SummaryExt = ".summary.pdf"

var (
	colorPrimary = &props.Color{Red: 0, Green: 110, Blue: 60}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
)

// SummaryInput is what a session hands over for its PDF summary.
type SummaryInput struct {
	SessionID string
	Source    string
	Started   time.Time
	Ended     time.Time
	Records   []Record
}

// CategoryTotal aggregates one category's verified scans.
type CategoryTotal struct {
	Category catalog.Category
	Count    int
	Value    decimal.Decimal
}

// Totals groups records by category in Food, Electronics, Grocery, Other order
// and returns the grand total value.
func Totals(records []Record) ([]CategoryTotal, decimal.Decimal) {
	order := []catalog.Category{catalog.Food, catalog.Electronics, catalog.Grocery, catalog.Other}
	byCat := make(map[catalog.Category]*CategoryTotal, len(order))
	for _, c := range order {
		byCat[c] = &CategoryTotal{Category: c, Value: decimal.Zero}
	}

	grand := decimal.Zero
	for _, r := range records {
		t := byCat[r.Entry.Category]
		t.Count++
		t.Value = t.Value.Add(r.Entry.Amount)
		grand = grand.Add(r.Entry.Amount)
	}

	out := make([]CategoryTotal, 0, len(order))
	for _, c := range order {
		out = append(out, *byCat[c])
	}
	return out, grand
}

// SummaryPath returns where the summary for reportPath is written.
func SummaryPath(reportPath string) string {
	return reportPath + SummaryExt
}

// RenderSummary renders the session summary PDF and returns its bytes.
func RenderSummary(in SummaryInput) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Inventory Scan Summary", true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(summaryHeaderRow(in))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))

	totals, grand := Totals(in.Records)
	m.AddRows(totalsRows(totals, grand)...)
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(recordHeaderRow())
	m.AddRows(recordRows(in.Records)...)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("report: render summary: %w", err)
	}
	return doc.GetBytes(), nil
}

// WriteSummary renders the summary and writes it to path, replacing any previous one.
func WriteSummary(path string, in SummaryInput) error {
	data, err := RenderSummary(in)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("report: write summary: %w", err)
	}
	return nil
}

func summaryHeaderRow(in SummaryInput) core.Row {
	started := in.Started.Format(DateLayout + " " + TimeLayout)
	ended := in.Ended.Format(TimeLayout)
	qr := in.SessionID
	if qr == "" {
		qr = "shelfscan"
	}

	return row.New(30).Add(
		col.New(9).Add(
			text.New("INVENTORY SCAN SUMMARY", props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New(fmt.Sprintf("Session %s", in.SessionID), props.Text{
				Size: 8, Top: 10, Color: colorGray,
			}),
			text.New(fmt.Sprintf("%s - %s   |   Source: %s", started, ended, in.Source), props.Text{
				Size: 8, Top: 15, Color: colorGray,
			}),
			text.New(fmt.Sprintf("%d verified item(s)", len(in.Records)), props.Text{
				Style: fontstyle.Bold, Size: 9, Top: 21,
			}),
		),
		col.New(3).Add(code.NewQr(qr, props.Rect{
			Percent: 90,
			Center:  true,
		})),
	)
}

func totalsRows(totals []CategoryTotal, grand decimal.Decimal) []core.Row {
	rows := make([]core.Row, 0, len(totals)+1)
	for _, t := range totals {
		rows = append(rows, row.New(6).Add(
			col.New(6).Add(text.New(t.Category.String(), props.Text{Size: 9, Top: 1})),
			col.New(2).Add(text.New(fmt.Sprintf("%d", t.Count), props.Text{Size: 9, Align: align.Right, Top: 1})),
			col.New(4).Add(text.New("Rs."+t.Value.StringFixed(2), props.Text{Size: 9, Align: align.Right, Top: 1})),
		))
	}
	rows = append(rows, row.New(8).Add(
		col.New(8).Add(text.New("TOTAL VALUE", props.Text{
			Style: fontstyle.Bold, Size: 10, Color: colorPrimary, Top: 2,
		})),
		col.New(4).Add(text.New("Rs."+grand.StringFixed(2), props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Top: 2,
		})),
	))
	return rows
}

func recordHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a, Top: 2,
		}))
	}
	return row.New(8).Add(
		h("Time", 2, align.Left),
		h("Code", 3, align.Left),
		h("Item", 4, align.Left),
		h("Category", 1, align.Left),
		h("Price", 2, align.Right),
	)
}

func recordRows(records []Record) []core.Row {
	rows := make([]core.Row, 0, len(records))
	for _, r := range records {
		name := r.ItemName()
		if name == "" {
			name = r.Entry.Name
		}
		rows = append(rows, row.New(6).Add(
			col.New(2).Add(text.New(r.Time, props.Text{Size: 8, Top: 1})),
			col.New(3).Add(text.New(r.Code, props.Text{Size: 8, Top: 1})),
			col.New(4).Add(text.New(name, props.Text{Size: 8, Top: 1})),
			col.New(1).Add(text.New(r.Entry.Category.String(), props.Text{Size: 8, Top: 1})),
			col.New(2).Add(text.New(r.Price, props.Text{Size: 8, Align: align.Right, Top: 1})),
		))
	}
	return rows
}
