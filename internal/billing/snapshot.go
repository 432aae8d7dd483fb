package billing

import (
	"sort"

	"ssfarm/internal/core"
)

// Snapshot is one customer's full record set as read from the store.
type Snapshot struct {
	Customer   core.Customer
	Deliveries []core.Delivery
	Payments   []core.Payment
}

// LineItem is one delivery day on a bill.
type LineItem struct {
	Date     core.Date
	Quantity float64
	Amount   float64
}

// Bill runs Calculate over the snapshot.
func (s Snapshot) Bill(p Period) BillSummary {
	return Calculate(AccountOf(s.Customer), DeliveryEntries(s.Deliveries), PaymentEntries(s.Payments), p)
}

// LineItems lists the period's deliveries in date order, priced at the customer's rate.
func (s Snapshot) LineItems(p Period) []LineItem {
	start, end := p.Bounds()
	var items []LineItem
	for _, d := range s.Deliveries {
		if d.Date.Before(start) || d.Date.After(end) {
			continue
		}
		items = append(items, LineItem{Date: d.Date, Quantity: d.Quantity, Amount: d.Quantity * s.Customer.MilkPrice})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Date.Before(items[j].Date) })
	return items
}

// PeriodPayments lists the period's payments in date order.
func (s Snapshot) PeriodPayments(p Period) []core.Payment {
	start, end := p.Bounds()
	var out []core.Payment
	for _, pm := range s.Payments {
		if pm.Date.Before(start) || pm.Date.After(end) {
			continue
		}
		out = append(out, pm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func DeliveryEntries(ds []core.Delivery) []DeliveryEntry {
	out := make([]DeliveryEntry, len(ds))
	for i, d := range ds {
		out[i] = DeliveryEntry{Date: d.Date, Quantity: d.Quantity}
	}
	return out
}

func PaymentEntries(ps []core.Payment) []PaymentEntry {
	out := make([]PaymentEntry, len(ps))
	for i, p := range ps {
		out[i] = PaymentEntry{Date: p.Date, Amount: p.Amount}
	}
	return out
}
