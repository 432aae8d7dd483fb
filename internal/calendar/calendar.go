// Package calendar lays out a month of deliveries as a Monday-first grid.
package calendar

import (
	"time"

	"ssfarm/internal/core"
)

type (
	Cell struct {
		Date     core.Date
		InMonth  bool
		Today    bool
		Quantity float64
		// Delivered is true when a record exists, even if the quantity is tiny.
		Delivered bool
	}

	Week struct {
		Days  [7]Cell
		Total float64
	}

	Month struct {
		Year         int
		Month        time.Month
		Weeks        []Week
		Total        float64
		DeliveryDays int
		PrevYear     int
		PrevMonth    time.Month
		NextYear     int
		NextMonth    time.Month
	}
)

// Weekdays are the column headers, Monday first.
var Weekdays = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// Build returns the grid for year/month. quantities is keyed by
// YYYY-MM-DD; entries outside the month are shown on padding days
// but are not added to any total.
func Build(year int, month time.Month, quantities map[string]float64, today core.Date) Month {
	first := core.NewDate(year, int(month), 1)
	last := core.NewDate(year, int(month)+1, 0)

	// Offset of the first day from Monday.
	offset := (int(first.Weekday()) + 6) % 7
	start := first.AddDays(-offset)

	prev := first.AddDays(-1)
	next := last.AddDays(1)
	m := Month{
		Year:      year,
		Month:     month,
		PrevYear:  prev.Year(),
		PrevMonth: prev.Month(),
		NextYear:  next.Year(),
		NextMonth: next.Month(),
	}

	for day := start; !day.After(last); {
		var w Week
		for i := 0; i < 7; i++ {
			q, ok := quantities[day.String()]
			c := Cell{
				Date:      day,
				InMonth:   day.Month() == month && day.Year() == year,
				Today:     day.Equal(today),
				Quantity:  q,
				Delivered: ok,
			}
			if c.InMonth {
				w.Total += q
				if ok {
					m.DeliveryDays++
				}
			}
			w.Days[i] = c
			day = day.AddDays(1)
		}
		m.Total += w.Total
		m.Weeks = append(m.Weeks, w)
	}
	return m
}

// Quantities indexes deliveries by date for Build.
func Quantities(ds []core.Delivery) map[string]float64 {
	out := make(map[string]float64, len(ds))
	for _, d := range ds {
		out[d.Date.String()] += d.Quantity
	}
	return out
}
