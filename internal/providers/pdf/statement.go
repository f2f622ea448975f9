package pdf

import (
	"bytes"
	"context"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// StatementData is one user's monthly usage statement.
type StatementData struct {
	Handle      string
	Plan        string
	Period      string
	GeneratedAt string

	Rows []StatementRow
}

// StatementRow is one metric line of the statement table.
type StatementRow struct {
	Metric  string
	Used    string
	Limit   string
	Overage string
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateStatement(ctx context.Context, data StatementData) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, "Usage statement", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	// Statement Meta
	m.AddRow(20,
		col.New(6).Add(
			text.New("Account: "+data.Handle, props.Text{Top: 0}),
			text.New("Plan: "+data.Plan, props.Text{Top: 5}),
			text.New("Period: "+data.Period, props.Text{Top: 10}),
		),
		col.New(6),
	)

	// Table Header
	m.AddRow(10,
		text.NewCol(6, "Metric", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Used", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Limit", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Overage", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, row := range data.Rows {
		m.AddRow(8,
			text.NewCol(6, row.Metric, props.Text{Size: 9}),
			text.NewCol(2, row.Used, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, row.Limit, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, row.Overage, props.Text{Size: 9, Align: align.Right}),
		)
	}

	// Footer
	m.AddRow(14,
		text.NewCol(12, "Generated at "+data.GeneratedAt, props.Text{
			Size: 8,
			Top:  6,
		}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}
