package sheets

import "context"

// BillRow is one customer's line on the monthly bills sheet.
type BillRow struct {
	CustomerName string
	Phone        string
	Opening      float64
	Quantity     float64
	Amount       float64
	Paid         float64
	Closing      float64
	Status       string
}

// BillSheetWriter publishes a month of bills to a spreadsheet.
type BillSheetWriter interface {
	// WriteMonth replaces the tab for period ("YYYY-MM") with rows and
	// returns the written range.
	WriteMonth(ctx context.Context, period string, rows []BillRow) (rangeRef string, err error)
}
