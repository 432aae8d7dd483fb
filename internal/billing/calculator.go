// Package billing computes monthly bills and running balances.
//
// Everything here is pure: callers pass a fully materialised snapshot of a
// customer's deliveries and payments and get a value back. No I/O, no state.
package billing

import (
	"fmt"
	"time"

	"ssfarm/internal/core"
)

// Epsilon is the tolerance used when comparing currency amounts.
const Epsilon = 0.001

type (
	// Account is the part of a customer the calculator needs.
	Account struct {
		MilkPrice       float64
		PreviousBalance *float64
		BalanceAsOf     *core.Date
	}

	DeliveryEntry struct {
		Date     core.Date
		Quantity float64
	}

	PaymentEntry struct {
		Date   core.Date
		Amount float64
	}

	// Period is one calendar month.
	Period struct {
		Year  int
		Month time.Month
	}

	BillSummary struct {
		PeriodStart            core.Date
		PeriodEnd              core.Date
		OpeningBalance         float64
		PeriodDeliveryQuantity float64
		PeriodDeliveryAmount   float64
		PeriodPaymentTotal     float64
		ClosingBalance         float64

		// Number of records that fell inside the period.
		DeliveryCount int
		PaymentCount  int
	}
)

// AccountOf extracts the calculator view of c.
func AccountOf(c core.Customer) Account {
	return Account{MilkPrice: c.MilkPrice, PreviousBalance: c.PreviousBalance, BalanceAsOf: c.BalanceAsOf}
}

// NewPeriod returns the period for year and month (1-12).
func NewPeriod(year, month int) (Period, error) {
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("invalid month %d", month)
	}
	if year < 1970 || year > 9999 {
		return Period{}, fmt.Errorf("invalid year %d", year)
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

// PeriodOf returns the period containing d.
func PeriodOf(d core.Date) Period {
	return Period{Year: d.Year(), Month: d.Month()}
}

// Bounds returns the first and last calendar day of the month in UTC.
func (p Period) Bounds() (start, end core.Date) {
	first := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return core.Date{Time: first}, core.Date{Time: last}
}

// Days returns the number of days in the month.
func (p Period) Days() int {
	_, end := p.Bounds()
	return end.Day()
}

func (p Period) Next() Period {
	start, _ := p.Bounds()
	return PeriodOf(core.Date{Time: start.AddDate(0, 1, 0)})
}

func (p Period) Prev() Period {
	start, _ := p.Bounds()
	return PeriodOf(core.Date{Time: start.AddDate(0, -1, 0)})
}

// String formats the period as YYYY-MM.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Calculate produces the bill for one customer and one month.
//
// The opening balance is carried forward from the operator snapshot when both
// PreviousBalance and BalanceAsOf are set, adding activity in
// [BalanceAsOf, periodStart). Otherwise it is derived from all history before
// periodStart. A snapshot dated after periodStart yields an empty interim
// window, so the opening balance is exactly PreviousBalance.
//
// The current period window is [periodStart, periodEnd], inclusive on both ends.
func Calculate(acct Account, deliveries []DeliveryEntry, payments []PaymentEntry, p Period) BillSummary {
	start, end := p.Bounds()
	s := BillSummary{PeriodStart: start, PeriodEnd: end}

	inPeriod := func(d core.Date) bool { return !d.Before(start) && !d.After(end) }
	var beforePeriod func(d core.Date) bool

	if acct.PreviousBalance != nil && acct.BalanceAsOf != nil {
		asOf := *acct.BalanceAsOf
		s.OpeningBalance = *acct.PreviousBalance
		beforePeriod = func(d core.Date) bool { return !d.Before(asOf) && d.Before(start) }
	} else {
		beforePeriod = func(d core.Date) bool { return d.Before(start) }
	}

	var priorQty, priorPaid float64
	for _, d := range deliveries {
		switch {
		case inPeriod(d.Date):
			s.PeriodDeliveryQuantity += d.Quantity
			s.DeliveryCount++
		case beforePeriod(d.Date):
			priorQty += d.Quantity
		}
	}
	for _, pm := range payments {
		switch {
		case inPeriod(pm.Date):
			s.PeriodPaymentTotal += pm.Amount
			s.PaymentCount++
		case beforePeriod(pm.Date):
			priorPaid += pm.Amount
		}
	}

	s.OpeningBalance += priorQty*acct.MilkPrice - priorPaid
	s.PeriodDeliveryAmount = s.PeriodDeliveryQuantity * acct.MilkPrice
	s.ClosingBalance = s.OpeningBalance + s.PeriodDeliveryAmount - s.PeriodPaymentTotal
	return s
}

// HadActivity reports whether any delivery or payment fell in the period.
func (s BillSummary) HadActivity() bool {
	return s.DeliveryCount > 0 || s.PaymentCount > 0
}

// Status classifies the month using only this month's bill and payments.
func (s BillSummary) Status() PaymentStatus {
	return ClassifyStatus(s.PeriodDeliveryAmount, s.PeriodPaymentTotal)
}

// Pending is this month's bill minus this month's payments.
func (s BillSummary) Pending() float64 {
	return s.PeriodDeliveryAmount - s.PeriodPaymentTotal
}

// Period returns the month the summary covers.
func (s BillSummary) Period() Period {
	return PeriodOf(s.PeriodStart)
}
