package billing

import (
	"math"
	"testing"
	"time"

	"ssfarm/internal/core"
)

func d(s string) core.Date {
	date, err := core.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return date
}

func ptr[T any](v T) *T { return &v }

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestPeriodBounds(t *testing.T) {
	tests := []struct {
		year, month int
		start, end  string
	}{
		{2024, 6, "2024-06-01", "2024-06-30"},
		{2024, 2, "2024-02-01", "2024-02-29"},
		{2023, 2, "2023-02-01", "2023-02-28"},
		{2024, 12, "2024-12-01", "2024-12-31"},
	}
	for _, tt := range tests {
		p, err := NewPeriod(tt.year, tt.month)
		if err != nil {
			t.Fatalf("NewPeriod(%d, %d) error = %v", tt.year, tt.month, err)
		}
		start, end := p.Bounds()
		if start.String() != tt.start || end.String() != tt.end {
			t.Errorf("%s bounds = [%s, %s], want [%s, %s]", p, start, end, tt.start, tt.end)
		}
		if start.Location() != time.UTC {
			t.Errorf("%s start not UTC", p)
		}
	}

	if _, err := NewPeriod(2024, 13); err == nil {
		t.Error("month 13 should be rejected")
	}
	p := Period{Year: 2024, Month: time.December}
	if p.Next().String() != "2025-01" || p.Prev().String() != "2024-11" {
		t.Errorf("Next/Prev = %s/%s", p.Next(), p.Prev())
	}
}

func TestCalculate_CurrentMonthScenario(t *testing.T) {
	acct := Account{MilkPrice: 50}
	deliveries := []DeliveryEntry{{Date: d("2024-06-05"), Quantity: 2}, {Date: d("2024-06-20"), Quantity: 1}}
	payments := []PaymentEntry{{Date: d("2024-06-10"), Amount: 100}}

	got := Calculate(acct, deliveries, payments, Period{Year: 2024, Month: time.June})

	if got.PeriodDeliveryQuantity != 3 {
		t.Errorf("PeriodDeliveryQuantity = %v, want 3", got.PeriodDeliveryQuantity)
	}
	if got.PeriodDeliveryAmount != 150 {
		t.Errorf("PeriodDeliveryAmount = %v, want 150", got.PeriodDeliveryAmount)
	}
	if got.PeriodPaymentTotal != 100 {
		t.Errorf("PeriodPaymentTotal = %v, want 100", got.PeriodPaymentTotal)
	}
	if got.OpeningBalance != 0 {
		t.Errorf("OpeningBalance = %v, want 0", got.OpeningBalance)
	}
	if got.ClosingBalance != 50 {
		t.Errorf("ClosingBalance = %v, want 50", got.ClosingBalance)
	}
	if got.Status() != StatusPartiallyPaid {
		t.Errorf("Status() = %v, want %v", got.Status(), StatusPartiallyPaid)
	}
}

func TestCalculate_SnapshotScenario(t *testing.T) {
	acct := Account{MilkPrice: 50, PreviousBalance: ptr(200.0), BalanceAsOf: ptr(d("2024-05-15"))}
	deliveries := []DeliveryEntry{
		{Date: d("2024-05-01"), Quantity: 7}, // before the snapshot, already in previousBalance
		{Date: d("2024-05-20"), Quantity: 2},
	}

	got := Calculate(acct, deliveries, nil, Period{Year: 2024, Month: time.June})

	if got.OpeningBalance != 300 {
		t.Errorf("OpeningBalance = %v, want 300", got.OpeningBalance)
	}
	if got.ClosingBalance != 300 {
		t.Errorf("ClosingBalance = %v, want 300", got.ClosingBalance)
	}
}

func TestCalculate_EdgeCases(t *testing.T) {
	june := Period{Year: 2024, Month: time.June}

	tests := []struct {
		name        string
		acct        Account
		deliveries  []DeliveryEntry
		payments    []PaymentEntry
		wantOpening float64
		wantAmount  float64
		wantClosing float64
	}{
		{
			name:        "zero price bills nothing",
			acct:        Account{MilkPrice: 0},
			deliveries:  []DeliveryEntry{{Date: d("2024-05-10"), Quantity: 4}, {Date: d("2024-06-10"), Quantity: 3}},
			wantOpening: 0,
			wantAmount:  0,
			wantClosing: 0,
		},
		{
			name:        "empty history",
			acct:        Account{MilkPrice: 60},
			wantOpening: 0,
			wantAmount:  0,
			wantClosing: 0,
		},
		{
			name:        "snapshot on period start uses previous balance exactly",
			acct:        Account{MilkPrice: 50, PreviousBalance: ptr(-25.0), BalanceAsOf: ptr(d("2024-06-01"))},
			deliveries:  []DeliveryEntry{{Date: d("2024-05-31"), Quantity: 10}},
			payments:    []PaymentEntry{{Date: d("2024-05-20"), Amount: 500}},
			wantOpening: -25,
			wantAmount:  0,
			wantClosing: -25,
		},
		{
			name:        "snapshot after period start clamps interim window",
			acct:        Account{MilkPrice: 50, PreviousBalance: ptr(120.0), BalanceAsOf: ptr(d("2024-06-10"))},
			deliveries:  []DeliveryEntry{{Date: d("2024-05-28"), Quantity: 3}, {Date: d("2024-06-12"), Quantity: 1}},
			wantOpening: 120,
			wantAmount:  50,
			wantClosing: 170,
		},
		{
			name:        "snapshot date itself is inside the interim window",
			acct:        Account{MilkPrice: 40, PreviousBalance: ptr(0.0), BalanceAsOf: ptr(d("2024-05-15"))},
			deliveries:  []DeliveryEntry{{Date: d("2024-05-15"), Quantity: 1}, {Date: d("2024-05-14"), Quantity: 9}},
			wantOpening: 40,
			wantClosing: 40,
		},
		{
			name:        "period end day is inclusive",
			acct:        Account{MilkPrice: 50},
			deliveries:  []DeliveryEntry{{Date: d("2024-06-30"), Quantity: 1}, {Date: d("2024-07-01"), Quantity: 5}},
			wantAmount:  50,
			wantClosing: 50,
		},
		{
			name:        "refund raises balance",
			acct:        Account{MilkPrice: 50},
			payments:    []PaymentEntry{{Date: d("2024-05-02"), Amount: 100}, {Date: d("2024-06-03"), Amount: -40}},
			wantOpening: -100,
			wantClosing: -60,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(tt.acct, tt.deliveries, tt.payments, june)
			if !approx(got.OpeningBalance, tt.wantOpening) {
				t.Errorf("OpeningBalance = %v, want %v", got.OpeningBalance, tt.wantOpening)
			}
			if !approx(got.PeriodDeliveryAmount, tt.wantAmount) {
				t.Errorf("PeriodDeliveryAmount = %v, want %v", got.PeriodDeliveryAmount, tt.wantAmount)
			}
			if !approx(got.ClosingBalance, tt.wantClosing) {
				t.Errorf("ClosingBalance = %v, want %v", got.ClosingBalance, tt.wantClosing)
			}
		})
	}
}

func history() ([]DeliveryEntry, []PaymentEntry) {
	var deliveries []DeliveryEntry
	var payments []PaymentEntry
	start := d("2024-01-01")
	for i := 0; i < 200; i++ {
		day := start.AddDays(i)
		if i%3 != 0 {
			deliveries = append(deliveries, DeliveryEntry{Date: day, Quantity: 0.5 * float64(1+i%4)})
		}
		if i%17 == 0 {
			payments = append(payments, PaymentEntry{Date: day, Amount: float64(250 + 10*(i%5))})
		}
	}
	return deliveries, payments
}

func TestCalculate_Additivity(t *testing.T) {
	deliveries, payments := history()
	acct := Account{MilkPrice: 64}

	split := Period{Year: 2024, Month: time.March}
	later := Period{Year: 2024, Month: time.July}

	running := Calculate(acct, deliveries, payments, split).OpeningBalance
	for p := split; p != later; p = p.Next() {
		s := Calculate(acct, deliveries, payments, p)
		if !approx(s.OpeningBalance, running) {
			t.Fatalf("%s opening = %v, chained = %v", p, s.OpeningBalance, running)
		}
		running = s.ClosingBalance
	}

	direct := Calculate(acct, deliveries, payments, later).OpeningBalance
	if !approx(direct, running) {
		t.Fatalf("direct opening %v != chained %v", direct, running)
	}
}

func TestCalculate_SnapshotEquivalence(t *testing.T) {
	deliveries, payments := history()
	target := Period{Year: 2024, Month: time.May}
	start, _ := target.Bounds()

	full := Calculate(Account{MilkPrice: 64}, deliveries, payments, target)

	snap := Calculate(Account{MilkPrice: 64, PreviousBalance: ptr(full.OpeningBalance), BalanceAsOf: ptr(start)}, deliveries, payments, target)
	if !approx(full.OpeningBalance, snap.OpeningBalance) {
		t.Fatalf("snapshot opening %v != full history %v", snap.OpeningBalance, full.OpeningBalance)
	}
	if !approx(full.ClosingBalance, snap.ClosingBalance) {
		t.Fatalf("snapshot closing %v != full history %v", snap.ClosingBalance, full.ClosingBalance)
	}

	// A snapshot taken mid-history must also agree when previousBalance is
	// the true balance at that date.
	mid := d("2024-03-10")
	before := Calculate(Account{MilkPrice: 64}, deliveries, payments, Period{Year: 2024, Month: time.March})
	var toMid float64 = before.OpeningBalance
	for _, e := range deliveries {
		if !e.Date.Before(before.PeriodStart) && e.Date.Before(mid) {
			toMid += e.Quantity * 64
		}
	}
	for _, e := range payments {
		if !e.Date.Before(before.PeriodStart) && e.Date.Before(mid) {
			toMid -= e.Amount
		}
	}
	midSnap := Calculate(Account{MilkPrice: 64, PreviousBalance: ptr(toMid), BalanceAsOf: ptr(mid)}, deliveries, payments, target)
	if !approx(full.OpeningBalance, midSnap.OpeningBalance) {
		t.Fatalf("mid snapshot opening %v != full history %v", midSnap.OpeningBalance, full.OpeningBalance)
	}
}

func TestCalculate_ZeroActivityIdempotence(t *testing.T) {
	deliveries := []DeliveryEntry{{Date: d("2024-01-15"), Quantity: 3}}
	payments := []PaymentEntry{{Date: d("2024-01-20"), Amount: 40}}
	acct := Account{MilkPrice: 50}

	for m := time.February; m <= time.December; m++ {
		s := Calculate(acct, deliveries, payments, Period{Year: 2024, Month: m})
		if s.PeriodDeliveryAmount != 0 || s.PeriodPaymentTotal != 0 {
			t.Fatalf("%v: expected no activity, got amount=%v payments=%v", m, s.PeriodDeliveryAmount, s.PeriodPaymentTotal)
		}
		if s.ClosingBalance != s.OpeningBalance {
			t.Fatalf("%v: closing %v != opening %v", m, s.ClosingBalance, s.OpeningBalance)
		}
		if s.OpeningBalance != 110 {
			t.Fatalf("%v: opening %v, want 110", m, s.OpeningBalance)
		}
		if s.HadActivity() {
			t.Fatalf("%v: HadActivity should be false", m)
		}
	}
}

func TestSnapshot_LineItems(t *testing.T) {
	snap := Snapshot{
		Customer: core.Customer{MilkPrice: 50},
		Deliveries: []core.Delivery{
			{Date: d("2024-06-20"), Quantity: 1},
			{Date: d("2024-05-31"), Quantity: 4},
			{Date: d("2024-06-05"), Quantity: 2},
		},
		Payments: []core.Payment{{Date: d("2024-06-10"), Amount: 100}, {Date: d("2024-07-01"), Amount: 5}},
	}
	june := Period{Year: 2024, Month: time.June}

	items := snap.LineItems(june)
	if len(items) != 2 {
		t.Fatalf("expected 2 line items, got %d", len(items))
	}
	if items[0].Date.String() != "2024-06-05" || items[0].Amount != 100 {
		t.Errorf("first item = %+v", items[0])
	}
	if pays := snap.PeriodPayments(june); len(pays) != 1 || pays[0].Amount != 100 {
		t.Errorf("PeriodPayments = %+v", pays)
	}

	bill := snap.Bill(june)
	if bill.OpeningBalance != 200 || bill.ClosingBalance != 250 {
		t.Errorf("Bill() opening=%v closing=%v, want 200/250", bill.OpeningBalance, bill.ClosingBalance)
	}
}
