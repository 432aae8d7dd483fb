// Package whatsapp formats bills as chat messages and builds the
// wa.me and UPI links that go with them.
package whatsapp

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"ssfarm/internal/billing"
	"ssfarm/internal/core"
)

// defaultCountryCode is prefixed to bare 10-digit mobile numbers.
const defaultCountryCode = "91"

type Options struct {
	FarmName  string
	FarmPhone string
	UPIVPA    string
	// DailyLines lists every delivery day under the milk line.
	DailyLines bool
}

// Bill is everything a message needs about one customer's month.
type Bill struct {
	Customer core.Customer
	Period   billing.Period
	Summary  billing.BillSummary
	Items    []billing.LineItem
	Payments []core.Payment
}

// FormatBillMessage renders b as a WhatsApp text. Amounts are rounded for
// display only.
func FormatBillMessage(b Bill, opts Options) string {
	var sb strings.Builder
	s := b.Summary

	farm := opts.FarmName
	if farm == "" {
		farm = "SS Farm"
	}
	fmt.Fprintf(&sb, "*%s* - Milk bill for %s\n\n", farm, monthTitle(b.Period))
	fmt.Fprintf(&sb, "Dear %s,\n\n", b.Customer.Name)

	fmt.Fprintf(&sb, "Opening balance: %s\n", core.FormatRupees(s.OpeningBalance))
	fmt.Fprintf(&sb, "Milk: %s L x %s = %s\n",
		core.FormatLitres(s.PeriodDeliveryQuantity),
		core.FormatRupees(b.Customer.MilkPrice),
		core.FormatRupees(s.PeriodDeliveryAmount))
	if opts.DailyLines {
		for _, it := range b.Items {
			fmt.Fprintf(&sb, "  %s: %s L\n", it.Date.Format("02 Jan"), core.FormatLitres(it.Quantity))
		}
	}

	if len(b.Payments) > 0 {
		fmt.Fprintf(&sb, "Payments: %s\n", core.FormatRupees(s.PeriodPaymentTotal))
		for _, p := range b.Payments {
			label := ""
			if p.IsRefund() {
				label = " (refund)"
			}
			fmt.Fprintf(&sb, "  %s: %s%s\n", p.Date.Format("02 Jan"), core.FormatRupees(p.Amount), label)
		}
	}

	fmt.Fprintf(&sb, "*Closing balance: %s*\n", core.FormatRupees(s.ClosingBalance))
	fmt.Fprintf(&sb, "Status: %s\n", s.Status().Label())

	switch {
	case s.ClosingBalance > billing.Epsilon:
		fmt.Fprintf(&sb, "\nPlease pay %s", core.FormatRupees(s.ClosingBalance))
		if opts.UPIVPA != "" {
			fmt.Fprintf(&sb, " via UPI to %s", opts.UPIVPA)
		}
		sb.WriteString(".\n")
	case s.ClosingBalance < -billing.Epsilon:
		fmt.Fprintf(&sb, "\nYou have an advance of %s.\n", core.FormatRupees(math.Abs(s.ClosingBalance)))
	}

	sb.WriteString("\nThank you!\n")
	sb.WriteString(farm)
	if opts.FarmPhone != "" {
		sb.WriteString(" - ")
		sb.WriteString(opts.FarmPhone)
	}
	return sb.String()
}

// Link returns a wa.me click-to-chat URL. An empty phone opens the
// contact picker.
func Link(phone, message string) string {
	d := core.PhoneDigits(phone)
	if len(d) == 10 {
		d = defaultCountryCode + d
	}
	return "https://wa.me/" + d + "?text=" + escape(message)
}

// UPIPayload builds the upi://pay URI encoded into payment QR codes.
// amount <= 0 leaves the amount for the payer to fill in.
func UPIPayload(vpa, payee string, amount float64, note string) string {
	v := url.Values{}
	v.Set("pa", vpa)
	v.Set("pn", payee)
	v.Set("cu", "INR")
	if amount > 0 {
		v.Set("am", strconv.FormatFloat(core.Round2(amount), 'f', 2, 64))
	}
	if note != "" {
		v.Set("tn", note)
	}
	return "upi://pay?" + strings.ReplaceAll(v.Encode(), "+", "%20")
}

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func monthTitle(p billing.Period) string {
	return p.Month.String() + " " + strconv.Itoa(p.Year)
}
