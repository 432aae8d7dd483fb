package pdf

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strconv"
	"time"

	"ssfarm/internal/billing"
	"ssfarm/internal/core"
)

//go:embed assets/bill.html
var assets embed.FS

var billTemplate = template.Must(template.New("bill.html").Funcs(template.FuncMap{
	"rupees": core.FormatRupees,
	"litres": core.FormatLitres,
	"day":    func(d core.Date) string { return d.Format("02 Jan") },
	"monthTitle": func(p billing.Period) string {
		return p.Month.String() + " " + strconv.Itoa(p.Year)
	},
}).ParseFS(assets, "assets/bill.html"))

// BillDocument is the data behind one printable bill.
type BillDocument struct {
	FarmName    string
	FarmPhone   string
	Customer    core.Customer
	Period      billing.Period
	Summary     billing.BillSummary
	Items       []billing.LineItem
	Payments    []core.Payment
	UPIPayload  string
	GeneratedAt time.Time
}

// RenderBillHTML renders doc as a standalone HTML page ready for conversion.
func RenderBillHTML(doc BillDocument) ([]byte, error) {
	if doc.GeneratedAt.IsZero() {
		doc.GeneratedAt = time.Now()
	}
	var buf bytes.Buffer
	if err := billTemplate.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("render bill: %w", err)
	}
	return buf.Bytes(), nil
}
