// Package csvio reads and writes the dashboard's CSV exchange formats.
package csvio

import (
	"bufio"
	"encoding/csv"
	"io"
	"strconv"

	"ssfarm/internal/billing"
	"ssfarm/internal/core"
)

// flushEvery bounds how many rows sit in the buffer before they reach w.
const flushEvery = 500

// Writer streams CSV records with CRLF line endings, flushing periodically
// so large exports start reaching the client early.
type Writer struct {
	buf  *bufio.Writer
	csv  *csv.Writer
	rows int
}

func NewWriter(w io.Writer) *Writer {
	buf := bufio.NewWriter(w)
	cw := csv.NewWriter(buf)
	cw.UseCRLF = true
	return &Writer{buf: buf, csv: cw}
}

func (w *Writer) Write(record []string) error {
	if err := w.csv.Write(record); err != nil {
		return err
	}
	w.rows++
	if w.rows%flushEvery == 0 {
		return w.Flush()
	}
	return nil
}

// Flush pushes buffered rows to the underlying writer.
func (w *Writer) Flush() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return err
	}
	return w.buf.Flush()
}

// Rows returns the number of records written, header included.
func (w *Writer) Rows() int { return w.rows }

var customerHeader = []string{"id", "name", "address", "phone", "milk_price", "default_qty", "status", "previous_balance", "balance_as_of"}

func WriteCustomers(out io.Writer, customers []core.Customer) error {
	w := NewWriter(out)
	if err := w.Write(customerHeader); err != nil {
		return err
	}
	for _, c := range customers {
		prev, asOf := "", ""
		if c.PreviousBalance != nil {
			prev = formatFloat(*c.PreviousBalance)
		}
		if c.BalanceAsOf != nil {
			asOf = c.BalanceAsOf.String()
		}
		if err := w.Write([]string{
			c.ID, c.Name, c.Address, c.Phone,
			formatFloat(c.MilkPrice), formatFloat(c.DefaultQty),
			string(c.Status), prev, asOf,
		}); err != nil {
			return err
		}
	}
	return w.Flush()
}

// WriteDeliveries writes one row per delivery. names maps customer IDs
// to display names; unknown IDs leave the name blank.
func WriteDeliveries(out io.Writer, deliveries []core.Delivery, names map[string]string) error {
	w := NewWriter(out)
	if err := w.Write([]string{"date", "customer_id", "customer", "quantity"}); err != nil {
		return err
	}
	for _, d := range deliveries {
		if err := w.Write([]string{d.Date.String(), d.CustomerID, names[d.CustomerID], formatFloat(d.Quantity)}); err != nil {
			return err
		}
	}
	return w.Flush()
}

// BillLine is one customer's row in a monthly bills export.
type BillLine struct {
	Customer core.Customer
	Summary  billing.BillSummary
}

func WriteBills(out io.Writer, period billing.Period, lines []BillLine) error {
	w := NewWriter(out)
	if err := w.Write([]string{"period", "customer_id", "customer", "phone", "milk_price", "opening", "litres", "bill", "paid", "closing", "status"}); err != nil {
		return err
	}
	for _, l := range lines {
		s := l.Summary
		if err := w.Write([]string{
			period.String(), l.Customer.ID, l.Customer.Name, l.Customer.Phone,
			money(l.Customer.MilkPrice), money(s.OpeningBalance),
			formatFloat(s.PeriodDeliveryQuantity), money(s.PeriodDeliveryAmount),
			money(s.PeriodPaymentTotal), money(s.ClosingBalance),
			s.Status().Label(),
		}); err != nil {
			return err
		}
	}
	return w.Flush()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// money rounds for display; exports are read by people, not re-imported as balances.
func money(v float64) string {
	return strconv.FormatFloat(core.Round2(v), 'f', 2, 64)
}
