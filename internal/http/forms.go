package http

import (
	"errors"
	"math"
	"net/url"
	"strings"

	"ssfarm/internal/core"
)

var errRefundSign = errors.New("negative amounts must be marked as a refund")

type loginForm struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
}

type customerForm struct {
	Name       string `form:"name" validate:"required,max=100"`
	Address    string `form:"address" validate:"max=300"`
	Phone      string `form:"phone" validate:"max=20"`
	MilkPrice  string `form:"milk_price" validate:"required"`
	DefaultQty string `form:"default_qty"`
	Status     string `form:"status" validate:"omitempty,oneof=active inactive"`
}

func readCustomerForm(v url.Values) customerForm {
	return customerForm{
		Name:       sanitizeInput(v.Get("name")),
		Address:    sanitizeInput(v.Get("address")),
		Phone:      sanitizeInput(v.Get("phone")),
		MilkPrice:  sanitizeInput(v.Get("milk_price")),
		DefaultQty: sanitizeInput(v.Get("default_qty")),
		Status:     sanitizeInput(v.Get("status")),
	}
}

func (f customerForm) customer() (core.Customer, error) {
	price, err := core.ParseAmount(f.MilkPrice)
	if err != nil {
		return core.Customer{}, core.ErrInvalidPrice
	}
	qty, err := core.ParseQuantity(f.DefaultQty)
	if err != nil {
		return core.Customer{}, core.ErrInvalidQuantity
	}
	return core.Customer{
		Name:       f.Name,
		Address:    f.Address,
		Phone:      f.Phone,
		MilkPrice:  price,
		DefaultQty: qty,
		Status:     core.CustomerStatus(f.Status),
	}, nil
}

// balanceForm sets or clears a customer's opening balance snapshot.
// An empty amount clears it.
type balanceForm struct {
	Amount string `form:"amount"`
	AsOf   string `form:"as_of" validate:"required_with=Amount,omitempty,datetime=2006-01-02"`
}

func readBalanceForm(v url.Values) balanceForm {
	return balanceForm{Amount: sanitizeInput(v.Get("amount")), AsOf: sanitizeInput(v.Get("as_of"))}
}

func (f balanceForm) snapshot() (*float64, core.Date, error) {
	if f.Amount == "" {
		return nil, core.Date{}, nil
	}
	amount, err := core.ParseAmount(f.Amount)
	if err != nil {
		return nil, core.Date{}, core.ErrInvalidAmount
	}
	asOf, err := core.ParseDate(f.AsOf)
	if err != nil {
		return nil, core.Date{}, err
	}
	return &amount, asOf, nil
}

type paymentForm struct {
	CustomerID string `form:"customer_id" validate:"required"`
	Date       string `form:"date" validate:"required,datetime=2006-01-02"`
	Amount     string `form:"amount" validate:"required"`
	Note       string `form:"note" validate:"max=200"`
	Refund     bool   `form:"refund"`
}

func readPaymentForm(v url.Values) paymentForm {
	refund := v.Get("refund")
	return paymentForm{
		CustomerID: sanitizeInput(v.Get("customer_id")),
		Date:       sanitizeInput(v.Get("date")),
		Amount:     sanitizeInput(v.Get("amount")),
		Note:       sanitizeInput(v.Get("note")),
		Refund:     refund == "on" || refund == "true" || refund == "1",
	}
}

// payment converts the form. Refunds are entered as positive amounts with
// the refund box ticked and stored negative.
func (f paymentForm) payment() (core.Payment, error) {
	amount, err := core.ParseAmount(f.Amount)
	if err != nil {
		return core.Payment{}, core.ErrInvalidAmount
	}
	switch {
	case f.Refund:
		amount = -math.Abs(amount)
	case amount < 0:
		return core.Payment{}, errRefundSign
	}
	date, err := core.ParseDate(f.Date)
	if err != nil {
		return core.Payment{}, err
	}
	return core.Payment{CustomerID: f.CustomerID, Date: date, Amount: amount, Note: f.Note}, nil
}

type orderRequest struct {
	CustomerID string `form:"customer_id" validate:"required,max=64"`
	Date       string `form:"date" validate:"required,datetime=2006-01-02"`
	Quantity   string `form:"quantity" validate:"required"`
}

type dateRange struct {
	From string `form:"from" validate:"omitempty,datetime=2006-01-02"`
	To   string `form:"to" validate:"omitempty,datetime=2006-01-02"`
}

// daySheetEntries reads qty_<customerID> fields from the daily entry form.
// Blank fields are skipped; an explicit 0 clears the day.
func daySheetEntries(v url.Values) (map[string]string, []string) {
	raw := map[string]string{}
	var order []string
	for key, vals := range v {
		id, ok := strings.CutPrefix(key, "qty_")
		if !ok || id == "" || len(vals) == 0 {
			continue
		}
		val := sanitizeInput(vals[0])
		if val == "" {
			continue
		}
		raw[id] = val
		order = append(order, id)
	}
	return raw, order
}
