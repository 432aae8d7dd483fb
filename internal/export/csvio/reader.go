package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"ssfarm/internal/core"
)

var ErrMissingColumn = errors.New("missing required column")

type (
	// RowError reports a rejected input line.
	RowError struct {
		Line int    `json:"line"`
		Err  string `json:"error"`
	}

	ImportResult struct {
		Imported int        `json:"imported"`
		Skipped  int        `json:"skipped"`
		Errors   []RowError `json:"errors,omitempty"`
	}

	CustomerRecord struct {
		Line     int
		Customer core.Customer
	}

	// DeliveryRecord names its customer by ID or by name; the caller resolves it.
	DeliveryRecord struct {
		Line        int
		CustomerRef string
		Date        core.Date
		Quantity    float64
	}
)

func (r *ImportResult) Fail(line int, err error) {
	r.Skipped++
	r.Errors = append(r.Errors, RowError{Line: line, Err: err.Error()})
}

// Header aliases accepted on import, lower-cased.
var columnAliases = map[string][]string{
	"id":               {"id", "customer_id"},
	"name":             {"name", "customer", "customer_name"},
	"address":          {"address"},
	"phone":            {"phone", "mobile", "phone_number"},
	"milk_price":       {"milk_price", "price", "rate"},
	"default_qty":      {"default_qty", "default_quantity", "qty"},
	"status":           {"status"},
	"previous_balance": {"previous_balance", "balance"},
	"balance_as_of":    {"balance_as_of", "balance_date"},
	"date":             {"date", "delivery_date"},
	"quantity":         {"quantity", "litres", "liters"},
}

type header map[string]int

func readHeader(r *csv.Reader) (header, error) {
	rec, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	raw := map[string]int{}
	for i, h := range rec {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		h = strings.ReplaceAll(h, " ", "_")
		if _, dup := raw[h]; !dup {
			raw[h] = i
		}
	}
	out := header{}
	for canonical, aliases := range columnAliases {
		for _, a := range aliases {
			if i, ok := raw[a]; ok {
				out[canonical] = i
				break
			}
		}
	}
	return out, nil
}

func (h header) require(cols ...string) error {
	for _, c := range cols {
		if _, ok := h[c]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}
	return nil
}

func (h header) get(rec []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func newReader(in io.Reader) *csv.Reader {
	r := csv.NewReader(in)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	return r
}

// eachRow calls fn for every data row with its 1-based line number.
// Malformed CSV lines are reported to res and skipped.
func eachRow(r *csv.Reader, res *ImportResult, fn func(line int, rec []string)) error {
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			res.Fail(perr.Line, perr.Err)
			continue
		}
		if err != nil {
			return fmt.Errorf("read row: %w", err)
		}
		line, _ := r.FieldPos(0)
		if isBlank(rec) {
			continue
		}
		fn(line, rec)
	}
}

// ReadCustomers parses a customer sheet. Rows failing validation are
// recorded in the result and left out of the returned records.
func ReadCustomers(in io.Reader) ([]CustomerRecord, ImportResult, error) {
	var res ImportResult
	r := newReader(in)
	h, err := readHeader(r)
	if err != nil {
		return nil, res, err
	}
	if err := h.require("name"); err != nil {
		return nil, res, err
	}

	var out []CustomerRecord
	err = eachRow(r, &res, func(line int, rec []string) {
		c, err := parseCustomer(h, rec)
		if err != nil {
			res.Fail(line, err)
			return
		}
		out = append(out, CustomerRecord{Line: line, Customer: c})
	})
	return out, res, err
}

func parseCustomer(h header, rec []string) (core.Customer, error) {
	c := core.Customer{
		ID:      h.get(rec, "id"),
		Name:    h.get(rec, "name"),
		Address: h.get(rec, "address"),
		Phone:   h.get(rec, "phone"),
		Status:  core.CustomerActive,
	}
	if s := h.get(rec, "status"); s != "" {
		c.Status = core.CustomerStatus(strings.ToLower(s))
	}
	if s := h.get(rec, "milk_price"); s != "" {
		v, err := core.ParseAmount(s)
		if err != nil {
			return c, fmt.Errorf("milk_price: %w", err)
		}
		c.MilkPrice = v
	}
	q, err := core.ParseQuantity(h.get(rec, "default_qty"))
	if err != nil {
		return c, fmt.Errorf("default_qty: %w", err)
	}
	c.DefaultQty = q

	prev, asOf := h.get(rec, "previous_balance"), h.get(rec, "balance_as_of")
	if prev != "" || asOf != "" {
		if prev == "" || asOf == "" {
			return c, core.ErrIncompleteSnap
		}
		v, err := core.ParseAmount(prev)
		if err != nil {
			return c, fmt.Errorf("previous_balance: %w", err)
		}
		d, err := core.ParseDate(asOf)
		if err != nil {
			return c, fmt.Errorf("balance_as_of: %w", err)
		}
		c.PreviousBalance, c.BalanceAsOf = &v, &d
	}
	return c, c.Validate()
}

// ReadDeliveries parses a delivery sheet with date, customer and quantity columns.
// The customer column may hold an ID or a name.
func ReadDeliveries(in io.Reader) ([]DeliveryRecord, ImportResult, error) {
	var res ImportResult
	r := newReader(in)
	h, err := readHeader(r)
	if err != nil {
		return nil, res, err
	}
	if err := h.require("date", "quantity"); err != nil {
		return nil, res, err
	}
	_, hasID := h["id"]
	_, hasName := h["name"]
	if !hasID && !hasName {
		return nil, res, fmt.Errorf("%w: customer_id or customer", ErrMissingColumn)
	}

	var out []DeliveryRecord
	err = eachRow(r, &res, func(line int, rec []string) {
		ref := h.get(rec, "id")
		if ref == "" {
			ref = h.get(rec, "name")
		}
		if ref == "" {
			res.Fail(line, core.ErrMissingCustomer)
			return
		}
		d, err := core.ParseDate(h.get(rec, "date"))
		if err != nil {
			res.Fail(line, err)
			return
		}
		q, err := core.ParseQuantity(h.get(rec, "quantity"))
		if err != nil {
			res.Fail(line, err)
			return
		}
		out = append(out, DeliveryRecord{Line: line, CustomerRef: ref, Date: d, Quantity: q})
	})
	return out, res, err
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
