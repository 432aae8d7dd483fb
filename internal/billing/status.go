package billing

import (
	"math"

	"ssfarm/internal/core"
)

// PaymentStatus describes how a month's bill has been settled.
type PaymentStatus string

const (
	StatusNoBill        PaymentStatus = "no_bill"
	StatusPaid          PaymentStatus = "paid"
	StatusOverpaid      PaymentStatus = "overpaid"
	StatusPartiallyPaid PaymentStatus = "partially_paid"
	StatusPending       PaymentStatus = "pending"
)

// Label returns the human readable status used in views and messages.
func (s PaymentStatus) Label() string {
	switch s {
	case StatusNoBill:
		return "No bill"
	case StatusPaid:
		return "Paid"
	case StatusOverpaid:
		return "Overpaid"
	case StatusPartiallyPaid:
		return "Partially paid"
	case StatusPending:
		return "Pending"
	}
	return string(s)
}

// ClassifyStatus compares the month's bill with the month's payments.
// Differences within Epsilon count as equal, so a payment of 100.0005
// against a bill of 100 is Paid rather than Overpaid.
func ClassifyStatus(bill, paid float64) PaymentStatus {
	pending := bill - paid
	switch {
	case bill <= Epsilon:
		return StatusNoBill
	case pending <= Epsilon && paid-bill > Epsilon:
		return StatusOverpaid
	case pending <= Epsilon:
		return StatusPaid
	case paid > 0:
		return StatusPartiallyPaid
	default:
		return StatusPending
	}
}

// IsVisible decides whether a customer belongs in a monthly listing:
// active customers always do, others only when they owe or are owed
// money or had activity in the month.
func IsVisible(status core.CustomerStatus, s BillSummary) bool {
	if status == core.CustomerActive {
		return true
	}
	if math.Abs(s.ClosingBalance) > Epsilon {
		return true
	}
	return s.HadActivity()
}
